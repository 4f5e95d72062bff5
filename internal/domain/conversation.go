package domain

// Message is a single persisted transcript line.
type Message struct {
	PK             string
	SK             string
	ConversationID string
	Role           string
	Content        string
	Meta           string
	CreatedAt      string
	TTL            int64
}

// ConversationMeta stores the serialized memory and aggregate conversation state.
type ConversationMeta struct {
	PK             string
	SK             string
	ConversationID string
	Memory         string
	Version        int64
	LastActivity   string
	Turns          int
	TTL            int64
}

// TraceEntry is one diagnostic decision point recorded during a turn.
type TraceEntry struct {
	Step   string         `json:"step"`
	Detail map[string]any `json:"detail,omitempty"`
}

// TurnRecord is what a store persists alongside the memory after one turn.
type TurnRecord struct {
	UserText string
	Reply    string
	Trace    []TraceEntry
}
