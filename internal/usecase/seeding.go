package usecase

import (
	"errors"
	"strings"

	"github.com/elliotchance/pie/v2"

	"travel-agent/internal/domain"
)

const (
	maxCandidates  = 10
	maxSuggestions = 5
)

// seedAfterFlights prepares the hotel hand-off and fills the destination
// country so health stats never has to ask for it.
func (e *Engine) seedAfterFlights(t *turn, best domain.FlightOffer) TurnResult {
	s := t.mem.Slots
	seeded := domain.Slots{
		domain.SlotCity:    s.Get(domain.SlotDestination),
		domain.SlotCheckin: s.Get(domain.SlotDate),
	}
	e.resolveCountry(t)

	reply := flightsFound(s.Get(domain.SlotOrigin), s.Get(domain.SlotDestination), s.Get(domain.SlotDate), best)
	t.addTrace("seed_hotel", map[string]any{"slots": seeded})
	return TurnResult{
		Action:       ActionFlights,
		Reply:        reply,
		NextQuestion: questionHotelOrHealth,
		NextPending:  domain.PendingHotelOrHealth,
		NextPayload:  &domain.PendingPayload{Slots: seeded},
	}
}

func (e *Engine) seedAfterHotels(t *turn, offers []domain.HotelOffer, best domain.HotelOffer) TurnResult {
	s := t.mem.Slots
	payload := &domain.PendingPayload{
		City:       s.Get(domain.SlotCity),
		Candidates: hotelCandidates(offers),
	}
	t.addTrace("seed_cab", map[string]any{"city": payload.City, "candidates": len(payload.Candidates)})
	return TurnResult{
		Action:       ActionHotels,
		Reply:        hotelsFound(s.Get(domain.SlotCity), s.Get(domain.SlotCheckin), s.Get(domain.SlotCheckout), best),
		NextQuestion: questionCabOffer,
		NextPending:  domain.PendingCabOffer,
		NextPayload:  payload,
	}
}

func (e *Engine) seedAfterCabs(t *turn, best domain.CabOffer) TurnResult {
	s := t.mem.Slots
	return TurnResult{
		Action:       ActionCabs,
		Reply:        cabsFound(s.Get(domain.SlotPickup), s.Get(domain.SlotDropoff), best),
		NextQuestion: questionAnythingElse,
		NextPending:  domain.PendingNone,
	}
}

// seedAfterHealth seeds nothing: a hotel city is unrelated to this flow.
func (e *Engine) seedAfterHealth(t *turn, stats domain.HealthStats) TurnResult {
	return TurnResult{
		Action:       ActionHealthStats,
		Reply:        healthFound(stats),
		NextQuestion: questionHotelAfterHealth,
		NextPending:  domain.PendingHotelAfterHealth,
	}
}

// resolveCountry fills the country slots from the destination. Failures are
// traced and otherwise ignored.
func (e *Engine) resolveCountry(t *turn) {
	dest := t.mem.Slots.Get(domain.SlotDestination)
	if dest == "" {
		t.addTrace("dest_country_skip", map[string]any{"reason": "missing destination"})
		return
	}
	c, err := e.providers.Locations.ResolveCountry(t.ctx, dest)
	if err != nil {
		step := "dest_country_resolve_failed"
		if errors.Is(err, domain.ErrLocationNotFound) {
			step = "dest_country_not_found"
		}
		t.addTrace(step, map[string]any{"destination": dest, "error": err.Error()})
		return
	}
	code := strings.ToUpper(strings.TrimSpace(c.Code))
	name := strings.TrimSpace(c.Name)
	if code == "" && name == "" {
		t.addTrace("dest_country_not_found", map[string]any{"destination": dest})
		return
	}

	delta := domain.Slots{
		domain.SlotDestinationCountryCode: code,
		domain.SlotDestinationCountry:     name,
		domain.SlotCountry:                name,
	}
	if name == "" {
		delta[domain.SlotCountry] = code
	}
	t.mergeSlots(delta, "destination_country")
}

// hotelCandidates returns up to maxCandidates distinct hotel names in result order.
func hotelCandidates(offers []domain.HotelOffer) []string {
	names := pie.Filter(
		pie.Map(offers, func(o domain.HotelOffer) string { return strings.TrimSpace(o.Name) }),
		func(n string) bool { return n != "" },
	)
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, maxCandidates)
	for _, n := range names {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
		if len(out) == maxCandidates {
			break
		}
	}
	return out
}
