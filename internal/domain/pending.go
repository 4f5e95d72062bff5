package domain

import (
	"maps"
	"slices"
)

// PendingQuestion tags the deterministic follow-up state a conversation is in.
type PendingQuestion string

const (
	PendingNone             PendingQuestion = ""
	PendingHotelOrHealth    PendingQuestion = "offer_hotel_or_health"
	PendingCheckout         PendingQuestion = "awaiting_checkout"
	PendingOrigin           PendingQuestion = "awaiting_origin"
	PendingCabOffer         PendingQuestion = "offer_cab_to_hotel"
	PendingHotelSelection   PendingQuestion = "awaiting_hotel_selection"
	PendingHotelAfterHealth PendingQuestion = "offer_hotel_after_health"
	PendingCountry          PendingQuestion = "awaiting_country"
	PendingLocationFix      PendingQuestion = "awaiting_location_fix"
)

var knownPending = []PendingQuestion{
	PendingHotelOrHealth,
	PendingCheckout,
	PendingOrigin,
	PendingCabOffer,
	PendingHotelSelection,
	PendingHotelAfterHealth,
	PendingCountry,
	PendingLocationFix,
}

// Known reports whether q is one of the tags the router understands.
func (q PendingQuestion) Known() bool {
	return slices.Contains(knownPending, q)
}

// PendingPayload carries whatever a pending question needs to be resolved.
type PendingPayload struct {
	// Slots holds the next domain's seeded slots.
	Slots Slots `json:"slots,omitempty"`
	// City is remembered to synthesize an airport pickup.
	City       string   `json:"city,omitempty"`
	Candidates []string `json:"candidates,omitempty"`

	// Action, Field and Suggestions describe a lookup to retry once the user
	// corrects an unresolved location.
	Action      string               `json:"action,omitempty"`
	Field       string               `json:"field,omitempty"`
	Suggestions []LocationSuggestion `json:"suggestions,omitempty"`
}

func (p PendingPayload) clone() PendingPayload {
	p.Slots = maps.Clone(p.Slots)
	p.Candidates = slices.Clone(p.Candidates)
	p.Suggestions = slices.Clone(p.Suggestions)
	return p
}
