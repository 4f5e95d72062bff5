package openai

import (
	"encoding/json"

	"travel-agent/internal/domain"
)

// PlanSlots are the slot names the planner may fill, in prompt order.
var PlanSlots = []string{
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

var planActions = []string{"flights", "hotels", "cabs", "covid", "ask_user"}

// planSchema is the strict JSON schema of one planner decision. Strict mode
// requires every property to be listed as required, so optional values are
// typed as nullable.
func planSchema() json.RawMessage {
	nullableString := map[string]any{"type": []string{"string", "null"}}

	slotProps := make(map[string]any, len(PlanSlots))
	for _, s := range PlanSlots {
		slotProps[s] = nullableString
	}

	schema := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"action": map[string]any{"type": "string", "enum": planActions},
			"slots": map[string]any{
				"type":                 "object",
				"additionalProperties": false,
				"properties":           slotProps,
				"required":             PlanSlots,
			},
			"missing": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string", "enum": PlanSlots},
			},
			"ask_user": nullableString,
		},
		"required": []string{"action", "slots", "missing", "ask_user"},
	}

	raw, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return raw
}

func planResponseFormat() *responseFormat {
	return &responseFormat{
		Type: "json_schema",
		JSONSchema: jsonSchemaConfig{
			Name:   "travel_plan",
			Strict: true,
			Schema: planSchema(),
		},
	}
}
