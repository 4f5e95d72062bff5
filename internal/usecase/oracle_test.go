package usecase

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"travel-agent/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestParsePlan(t *testing.T) {
	out, err := parsePlan(`{"action":"hotels","slots":{"city":"Goa","date":null},"missing":["checkout"],"ask_user":null}`)
	require.NoError(t, err)
	require.Equal(t, "hotels", out.Action)
	require.Equal(t, "Goa", *out.Slots["city"])
	require.Nil(t, out.Slots["date"])
	require.Equal(t, []string{"checkout"}, out.Missing)
	require.Nil(t, out.AskUser)

	out, err = parsePlan("```json\n{\"action\":\"cabs\",\"slots\":{}}\n```")
	require.NoError(t, err)
	require.Equal(t, "cabs", out.Action)

	_, err = parsePlan("")
	require.Error(t, err)

	_, err = parsePlan("not-json")
	require.Error(t, err)

	_, err = parsePlan(`{"action":"cabs"} {"action":"hotels"}`)
	require.Error(t, err)
}

func TestNormalizeAction(t *testing.T) {
	cases := map[string]Action{
		"flights":      ActionFlights,
		" Hotels ":     ActionHotels,
		"cabs":         ActionCabs,
		"covid":        ActionHealthStats,
		"health_stats": ActionHealthStats,
		"ask_user":     ActionAskUser,
		"none":         ActionAskUser,
		"book_train":   ActionAskUser,
		"":             ActionAskUser,
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeAction(in), "input %q", in)
	}
}

func TestValidatePlan_NormalizesSlots(t *testing.T) {
	fx := newFixture(t)
	p := fx.engine.validatePlan(rawPlan{
		Action: "flights",
		Slots: map[string]*string{
			"origin":      strPtr(" bombay "),
			"destination": strPtr("goa"),
			"date":        strPtr("2026-01-15"),
			"checkin":     strPtr("someday"),
			"checkout":    strPtr("  "),
			"pickup":      strPtr("Terminal 2, BOM"),
			"city":        nil,
			"price":       strPtr("cheap"),
		},
		Missing: []string{"date", "date", "budget"},
	})

	require.Equal(t, ActionFlights, p.Action)
	require.Equal(t, domain.Slots{
		domain.SlotOrigin:      "Mumbai",
		domain.SlotDestination: "Goa",
		domain.SlotDate:        "2026-01-15",
		domain.SlotPickup:      "Terminal 2, BOM",
	}, p.SlotDeltas)
	require.Equal(t, []string{"date"}, p.Missing)
	require.Empty(t, p.Question)
}

func TestValidatePlan_AskUserNeedsQuestion(t *testing.T) {
	fx := newFixture(t)

	p := fx.engine.validatePlan(rawPlan{Action: "ask_user", AskUser: strPtr("  ")})
	require.Equal(t, ActionAskUser, p.Action)
	require.Equal(t, replyClarify, p.Question)

	p = fx.engine.validatePlan(rawPlan{Action: "ask_user", AskUser: strPtr("Which date?")})
	require.Equal(t, "Which date?", p.Question)
}

func TestPlannerMessages(t *testing.T) {
	fx := newFixture(t)
	fx.llm.replies = []string{planWithQuestion("ask_user", nil, `"Where to?"`)}
	mem := domain.NewMemory()
	mem.Slots[domain.SlotCity] = "Goa"
	mem.AppendHistory(domain.RoleUser, "earlier question")
	mem.LastReply = "earlier reply"
	mem.Results.Hotels = &domain.HotelResults{
		City:     "Goa",
		Offers:   []domain.HotelOffer{{Name: "A", PriceTotal: 10}, {Name: "B", PriceTotal: 20}},
		Cheapest: domain.HotelOffer{Name: "A", PriceTotal: 10},
	}

	fx.turn(mem, "something else")

	require.Len(t, fx.llm.messages, 2)
	require.Equal(t, "system", fx.llm.messages[0].Role)
	require.Contains(t, fx.llm.messages[0].Content, "Allowed actions:")
	require.Contains(t, fx.llm.messages[0].Content, "Output Contract:")

	var in map[string]any
	require.NoError(t, json.Unmarshal([]byte(fx.llm.messages[1].Content), &in))
	require.Equal(t, "something else", in["user_input"])
	require.Equal(t, "earlier reply", in["last_reply"])
	require.Equal(t, map[string]any{"city": "Goa"}, in["slots"])

	history := in["history"].([]any)
	require.Len(t, history, 1, "current utterance is not part of history")

	hotels := in["results"].(map[string]any)["hotels"].(map[string]any)
	require.NotContains(t, hotels, "offers")
	require.Equal(t, "A", hotels["cheapest"].(map[string]any)["name"])
}

func TestBuildPlannerPrompt_IncludesRules(t *testing.T) {
	content := buildPlannerPrompt()
	require.Contains(t, content, "Role:")
	require.Contains(t, content, "Slots:")
	require.Contains(t, content, "Behavior Rules:")
	require.Contains(t, content, "still choose the action")
	require.Contains(t, content, "Return JSON only with keys action")
}
