package domain

import (
	"maps"
	"slices"
	"strings"
)

// MaxHistory bounds the number of history entries kept per conversation.
const MaxHistory = 30

// Slot names shared by the dialogue core, the oracle prompt and providers.
const (
	SlotOrigin                 = "origin"
	SlotDestination            = "destination"
	SlotDate                   = "date"
	SlotCity                   = "city"
	SlotCheckin                = "checkin"
	SlotCheckout               = "checkout"
	SlotPickup                 = "pickup"
	SlotDropoff                = "dropoff"
	SlotCountry                = "country"
	SlotDestinationCountry     = "destination_country"
	SlotDestinationCountryCode = "destination_country_code"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Slots is the typed key-value memory of one conversation. A missing key is
// the null value.
type Slots map[string]string

// Get returns the trimmed value for key, or "" when unset.
func (s Slots) Get(key string) string {
	return strings.TrimSpace(s[key])
}

// Has reports whether key holds a non-blank value.
func (s Slots) Has(key string) bool {
	return s.Get(key) != ""
}

// Merge returns old overlaid with the non-blank entries of delta. Keys absent
// from delta, or blank in it, keep their previous value.
func Merge(old, delta Slots) Slots {
	out := make(Slots, len(old)+len(delta))
	for k, v := range old {
		out[k] = v
	}
	for k, v := range delta {
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// HistoryEntry is one line of the conversation as seen by the planner.
type HistoryEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// ConversationMemory is everything the dialogue core remembers between turns.
type ConversationMemory struct {
	Slots           Slots           `json:"slots"`
	Results         Results         `json:"results"`
	History         []HistoryEntry  `json:"history"`
	PendingQuestion PendingQuestion `json:"pendingQuestion,omitempty"`
	PendingPayload  *PendingPayload `json:"pendingPayload,omitempty"`
	LastReply       string          `json:"lastReply,omitempty"`

	// Version is owned by the store and used to detect lost updates.
	Version int64 `json:"-"`
}

// NewMemory returns the empty memory a conversation starts with.
func NewMemory() ConversationMemory {
	return ConversationMemory{Slots: Slots{}}
}

// Clone returns a copy that shares no mutable maps or slices with m.
func (m ConversationMemory) Clone() ConversationMemory {
	out := m
	out.Slots = maps.Clone(m.Slots)
	if out.Slots == nil {
		out.Slots = Slots{}
	}
	out.History = slices.Clone(m.History)
	if m.PendingPayload != nil {
		p := m.PendingPayload.clone()
		out.PendingPayload = &p
	}
	return out
}

// AppendHistory appends an entry and evicts the oldest ones beyond MaxHistory.
func (m *ConversationMemory) AppendHistory(role, text string) {
	m.History = append(m.History, HistoryEntry{Role: role, Text: text})
	if n := len(m.History); n > MaxHistory {
		m.History = slices.Clone(m.History[n-MaxHistory:])
	}
}

// SetPending replaces the pending question and its payload together.
func (m *ConversationMemory) SetPending(q PendingQuestion, payload *PendingPayload) {
	m.PendingQuestion = q
	if q == PendingNone {
		m.PendingPayload = nil
		return
	}
	m.PendingPayload = payload
}

// ClearPending drops the pending question and its payload.
func (m *ConversationMemory) ClearPending() {
	m.SetPending(PendingNone, nil)
}
