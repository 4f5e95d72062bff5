package usecase

import (
	"encoding/json"
	"strings"

	"travel-agent/internal/domain"
)

// planInput is the normalized view of a conversation the planner sees.
type planInput struct {
	UserInput       string                 `json:"user_input"`
	Slots           domain.Slots           `json:"slots"`
	Results         map[string]any         `json:"results"`
	History         []domain.HistoryEntry  `json:"history"`
	LastReply       string                 `json:"last_reply"`
	PendingQuestion domain.PendingQuestion `json:"last_question_key"`
}

func newPlanInput(t *turn) planInput {
	return planInput{
		UserInput:       t.text,
		Slots:           t.mem.Slots,
		Results:         summarizeResults(t.mem.Results),
		History:         t.prior,
		LastReply:       t.mem.LastReply,
		PendingQuestion: t.mem.PendingQuestion,
	}
}

// summarizeResults keeps only the cheapest offer per domain to bound the prompt.
func summarizeResults(r domain.Results) map[string]any {
	out := map[string]any{}
	if r.Flights != nil {
		out["flights"] = map[string]any{"origin": r.Flights.Origin, "destination": r.Flights.Destination, "date": r.Flights.Date, "cheapest": r.Flights.Cheapest}
	}
	if r.Hotels != nil {
		out["hotels"] = map[string]any{"city": r.Hotels.City, "checkin": r.Hotels.Checkin, "checkout": r.Hotels.Checkout, "cheapest": r.Hotels.Cheapest}
	}
	if r.Cabs != nil {
		out["cabs"] = map[string]any{"pickup": r.Cabs.Pickup, "dropoff": r.Cabs.Dropoff, "cheapest": r.Cabs.Cheapest}
	}
	if r.HealthStats != nil {
		out["covid"] = map[string]any{"location": r.HealthStats.Country, "totals": r.HealthStats.Totals}
	}
	return out
}

func buildPlannerMessages(in planInput) ([]domain.ChatMessage, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return nil, err
	}
	return []domain.ChatMessage{
		{Role: "system", Content: buildPlannerPrompt()},
		{Role: "user", Content: string(payload)},
	}, nil
}

func buildPlannerPrompt() string {
	return strings.Join([]string{
		"Role:",
		"You are the Dialogue Manager for an agentic travel planner.",
		"",
		"Task:",
		"Decide the NEXT best action from user_input, memory slots, memory results,",
		"conversation history, last_reply and last_question_key.",
		"",
		"Allowed actions:",
		"- flights",
		"- hotels",
		"- cabs",
		"- covid",
		"- ask_user",
		"",
		"Slots:",
		slotGuide(),
		"",
		"Behavior Rules:",
		plannerRules(),
		"",
		"Output Contract:",
		planOutputContract(),
	}, "\n")
}

func slotGuide() string {
	return strings.Join([]string{
		"Flights: origin (city), destination (city), date (YYYY-MM-DD)",
		"Hotels: city, checkin (YYYY-MM-DD), checkout (YYYY-MM-DD)",
		"Cabs: pickup, dropoff",
		"Covid: country (preferred) or destination",
	}, "\n")
}

func plannerRules() string {
	return strings.Join([]string{
		"1) Only fill slots the user actually stated; use null for everything else.",
		"2) If critical info for an action is missing, still choose the action; the caller asks for it.",
		"3) If the user replies yes/no, infer meaning from last_question_key, else last_reply and history.",
		"4) If the user explicitly says covid / cases / covid update, choose covid.",
		"5) If the intent is unclear, choose ask_user with one short, actionable question.",
	}, "\n")
}

func planOutputContract() string {
	return "Return JSON only with keys action (string), slots (object), missing (array of slot names) " +
		"and ask_user (string or null). ask_user must be set when action=ask_user."
}
