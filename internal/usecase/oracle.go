package usecase

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"travel-agent/internal/domain"
	"travel-agent/internal/textparse"
)

// rawPlan is the planner reply as decoded, before validation.
type rawPlan struct {
	Action  string             `json:"action"`
	Slots   map[string]*string `json:"slots"`
	Missing []string           `json:"missing"`
	AskUser *string            `json:"ask_user"`
}

// plan is a validated planner decision. Action is always a domain action or
// ActionAskUser; Degraded marks a planner failure.
type plan struct {
	Action     Action
	SlotDeltas domain.Slots
	Missing    []string
	Question   string
	Degraded   bool
}

var plannerSlots = []string{
	domain.SlotOrigin,
	domain.SlotDestination,
	domain.SlotDate,
	domain.SlotCity,
	domain.SlotCheckin,
	domain.SlotCheckout,
	domain.SlotPickup,
	domain.SlotDropoff,
	domain.SlotCountry,
}

var (
	dateSlots = []string{domain.SlotDate, domain.SlotCheckin, domain.SlotCheckout}
	citySlots = []string{domain.SlotOrigin, domain.SlotDestination, domain.SlotCity, domain.SlotCountry}
)

func (e *Engine) consultPlanner(t *turn) TurnResult {
	p := e.plan(t)
	if p.Degraded {
		return TurnResult{
			Action:       ActionNone,
			Reply:        replyRephrase,
			NextQuestion: replyRephrase,
			NextPending:  domain.PendingNone,
		}
	}

	t.mergeSlots(p.SlotDeltas, "planner")
	if p.Action == ActionAskUser {
		res := ask(p.Question, domain.PendingNone, nil)
		res.MissingSlots = p.Missing
		return res
	}
	return e.dispatch(t, p.Action)
}

// plan consults the planner and always returns a usable decision.
func (e *Engine) plan(t *turn) plan {
	messages, err := buildPlannerMessages(newPlanInput(t))
	if err != nil {
		t.addTrace("planner_error", map[string]any{"error": err.Error()})
		return plan{Action: ActionAskUser, Degraded: true}
	}

	raw, err := e.llm.Chat(t.ctx, e.model, messages)
	if err != nil {
		t.addTrace("planner_unavailable", map[string]any{"error": err.Error()})
		return plan{Action: ActionAskUser, Degraded: true}
	}

	rp, err := parsePlan(raw)
	if err != nil {
		t.addTrace("planner_malformed", map[string]any{"error": err.Error()})
		return plan{Action: ActionAskUser, Degraded: true}
	}

	p := e.validatePlan(rp)
	t.addTrace("planner_plan", map[string]any{
		"raw_action": rp.Action,
		"action":     string(p.Action),
		"slots":      p.SlotDeltas,
		"missing":    p.Missing,
	})
	return p
}

// validatePlan clamps the action to the known set and normalizes slot deltas.
func (e *Engine) validatePlan(rp rawPlan) plan {
	p := plan{
		Action:     normalizeAction(rp.Action),
		SlotDeltas: domain.Slots{},
	}

	for k, v := range rp.Slots {
		if v == nil || !slices.Contains(plannerSlots, k) {
			continue
		}
		val := strings.TrimSpace(*v)
		switch {
		case val == "":
			continue
		case slices.Contains(dateSlots, k):
			iso, ok := e.dates.ParseDate(val)
			if !ok {
				continue
			}
			val = iso
		case slices.Contains(citySlots, k):
			val = textparse.NormalizeCity(val)
		}
		p.SlotDeltas[k] = val
	}

	for _, m := range rp.Missing {
		if slices.Contains(plannerSlots, m) && !slices.Contains(p.Missing, m) {
			p.Missing = append(p.Missing, m)
		}
	}

	if rp.AskUser != nil {
		p.Question = strings.TrimSpace(*rp.AskUser)
	}
	if p.Action == ActionAskUser && p.Question == "" {
		p.Question = replyClarify
	}
	return p
}

func normalizeAction(s string) Action {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionFlights, ActionHotels, ActionCabs, ActionHealthStats:
		return a
	case "covid", "health", "health-stats":
		return ActionHealthStats
	}
	return ActionAskUser
}

// parsePlan decodes a single JSON object, tolerating a code fence or prose
// around it.
func parsePlan(raw string) (rawPlan, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return rawPlan{}, errors.New("usecase: empty plan")
	}
	out, err := decodePlan(s)
	if err == nil {
		return out, nil
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return rawPlan{}, err
	}
	return decodePlan(s[start : end+1])
}

func decodePlan(s string) (rawPlan, error) {
	var out rawPlan
	dec := json.NewDecoder(bytes.NewBufferString(s))
	if err := dec.Decode(&out); err != nil {
		return rawPlan{}, fmt.Errorf("usecase: decode plan: %w", err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return rawPlan{}, errors.New("usecase: decode plan: multiple JSON values")
		}
		return rawPlan{}, fmt.Errorf("usecase: decode plan trailing data: %w", err)
	}
	return out, nil
}
