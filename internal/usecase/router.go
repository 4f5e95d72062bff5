package usecase

import (
	"strconv"
	"strings"

	"travel-agent/internal/domain"
	"travel-agent/internal/textparse"
)

// route resolves a reply to the pending question without the planner. ok is
// false only for tags it does not know, which are dropped.
func (e *Engine) route(t *turn) (TurnResult, bool) {
	q := t.mem.PendingQuestion
	p := domain.PendingPayload{}
	if t.mem.PendingPayload != nil {
		p = *t.mem.PendingPayload
	}
	t.addTrace("router", map[string]any{"pending": string(q), "text": t.text})

	switch q {
	case domain.PendingHotelOrHealth:
		return e.routeHotelOrHealth(t, p), true
	case domain.PendingCheckout:
		return e.routeCheckout(t, p), true
	case domain.PendingOrigin:
		return e.routeOrigin(t, p), true
	case domain.PendingCabOffer:
		return e.routeCabOffer(t, p), true
	case domain.PendingHotelSelection:
		return e.routeHotelSelection(t, p), true
	case domain.PendingHotelAfterHealth:
		return e.routeHotelAfterHealth(t, p), true
	case domain.PendingCountry:
		return e.routeCountry(t, p), true
	case domain.PendingLocationFix:
		return e.routeLocationFix(t, p), true
	}

	t.addTrace("router_unknown_pending", map[string]any{"pending": string(q)})
	t.mem.ClearPending()
	return TurnResult{}, false
}

func (e *Engine) routeHotelOrHealth(t *turn, p domain.PendingPayload) TurnResult {
	switch {
	case t.sig.wantsHealth:
		t.mem.ClearPending()
		return e.dispatch(t, ActionHealthStats)
	case t.sig.answer == answerNo && !t.sig.wantsHotel:
		t.mem.ClearPending()
		return openEnded()
	case t.sig.wantsHotel || t.sig.answer == answerYes:
		t.mem.ClearPending()
		t.mergeSlots(p.Slots, "flight_seed")
		return e.dispatch(t, ActionHotels)
	}
	return ask(reaskHotelOrHealth, domain.PendingHotelOrHealth, &p)
}

func (e *Engine) routeCheckout(t *turn, p domain.PendingPayload) TurnResult {
	date, ok := e.dates.ParseDate(t.text)
	if !ok {
		if t.sig.answer == answerNo {
			t.mem.ClearPending()
			return openEnded()
		}
		return ask(reaskCheckout, domain.PendingCheckout, &p)
	}
	if checkin := t.mem.Slots.Get(domain.SlotCheckin); checkin != "" && date <= checkin {
		t.addTrace("checkout_not_after_checkin", map[string]any{"checkin": checkin, "checkout": date})
		return ask(checkoutBeforeCheckin(checkin), domain.PendingCheckout, &p)
	}
	t.mem.ClearPending()
	t.mergeSlots(domain.Slots{domain.SlotCheckout: date}, "checkout_reply")
	return e.dispatch(t, ActionHotels)
}

func (e *Engine) routeOrigin(t *turn, p domain.PendingPayload) TurnResult {
	if t.sig.answer == answerNo {
		t.mem.ClearPending()
		return openEnded()
	}
	origin := textparse.NormalizeCity(t.text)
	if origin == "" {
		return ask(questionOrigin, domain.PendingOrigin, &p)
	}
	t.mem.ClearPending()
	t.mergeSlots(domain.Slots{domain.SlotOrigin: origin}, "origin_reply")
	return e.dispatch(t, ActionFlights)
}

func (e *Engine) routeCabOffer(t *turn, p domain.PendingPayload) TurnResult {
	if name := matchCandidate(t.text, p.Candidates); name != "" {
		t.mem.ClearPending()
		return e.selectDropoff(t, p, name)
	}
	switch {
	case t.sig.answer == answerNo:
		t.mem.ClearPending()
		return openEnded()
	case t.sig.answer == answerYes || t.sig.wantsCab:
		return ask(hotelSelectionQuestion(p.Candidates), domain.PendingHotelSelection, &p)
	}
	return ask(reaskYesNo, domain.PendingCabOffer, &p)
}

func (e *Engine) routeHotelSelection(t *turn, p domain.PendingPayload) TurnResult {
	if t.text == "" {
		return ask(hotelSelectionQuestion(p.Candidates), domain.PendingHotelSelection, &p)
	}
	name := matchCandidate(t.text, p.Candidates)
	if name == "" {
		if t.sig.answer == answerNo {
			t.mem.ClearPending()
			return openEnded()
		}
		name = t.text
	}
	t.mem.ClearPending()
	return e.selectDropoff(t, p, name)
}

// selectDropoff takes the chosen hotel as the cab drop-off and synthesizes the
// airport pickup from the remembered city.
func (e *Engine) selectDropoff(t *turn, p domain.PendingPayload, dropoff string) TurnResult {
	delta := domain.Slots{domain.SlotDropoff: dropoff}
	if city := strings.TrimSpace(p.City); city != "" {
		delta[domain.SlotPickup] = city + " Airport"
	}
	t.mergeSlots(delta, "hotel_selection")
	return e.dispatch(t, ActionCabs)
}

func (e *Engine) routeHotelAfterHealth(t *turn, p domain.PendingPayload) TurnResult {
	switch {
	case t.sig.answer == answerNo && !t.sig.wantsHotel:
		t.mem.ClearPending()
		return openEnded()
	case t.sig.answer == answerYes || t.sig.wantsHotel:
		t.mem.ClearPending()
		return e.dispatch(t, ActionHotels)
	}
	return ask(reaskYesNo, domain.PendingHotelAfterHealth, &p)
}

func (e *Engine) routeCountry(t *turn, p domain.PendingPayload) TurnResult {
	if t.sig.answer == answerNo {
		t.mem.ClearPending()
		return openEnded()
	}
	country := textparse.NormalizeCity(t.text)
	if country == "" {
		return ask(questionCountry, domain.PendingCountry, &p)
	}
	t.mem.ClearPending()
	t.mergeSlots(domain.Slots{domain.SlotCountry: country}, "country_reply")
	return e.dispatch(t, ActionHealthStats)
}

func (e *Engine) routeLocationFix(t *turn, p domain.PendingPayload) TurnResult {
	action := Action(p.Action)
	if !action.isDomain() || p.Field == "" {
		t.mem.ClearPending()
		return openEnded()
	}
	if t.sig.answer == answerNo && t.sig.words == 1 {
		t.mem.ClearPending()
		return openEnded()
	}
	if t.text == "" {
		return ask(reaskLocation, domain.PendingLocationFix, &p)
	}

	value := pickSuggestion(t.text, p.Suggestions)
	if value == "" {
		value = t.text
		if action != ActionCabs {
			value = textparse.NormalizeCity(value)
		}
	}
	t.mem.ClearPending()
	t.mergeSlots(domain.Slots{p.Field: value}, "location_fix")
	return e.dispatch(t, action)
}

// fastPath handles bare keyword replies that follow earlier flight results.
func (e *Engine) fastPath(t *turn) (Action, bool) {
	flights := t.mem.Results.Flights
	if flights == nil || !t.sig.isBareKeyword() {
		return "", false
	}
	switch {
	case t.sig.wantsHealth:
		t.addTrace("fast_path", map[string]any{"action": string(ActionHealthStats)})
		return ActionHealthStats, true
	case t.sig.wantsHotel:
		seed := domain.Slots{}
		if !t.mem.Slots.Has(domain.SlotCity) {
			seed[domain.SlotCity] = flights.Destination
		}
		if !t.mem.Slots.Has(domain.SlotCheckin) {
			seed[domain.SlotCheckin] = flights.Date
		}
		t.mergeSlots(seed, "flight_seed")
		t.addTrace("fast_path", map[string]any{"action": string(ActionHotels)})
		return ActionHotels, true
	}
	return "", false
}

// matchCandidate resolves a numbered or by-name pick from the candidate list.
func matchCandidate(text string, candidates []string) string {
	text = strings.TrimSpace(text)
	if text == "" || len(candidates) == 0 {
		return ""
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(candidates) {
		return candidates[n-1]
	}
	for _, c := range candidates {
		if strings.EqualFold(c, text) {
			return c
		}
	}
	return ""
}

// pickSuggestion resolves a numbered, by-code or by-name pick from provider
// suggestions, preferring the code the provider can look up directly.
func pickSuggestion(text string, suggestions []domain.LocationSuggestion) string {
	text = strings.TrimSpace(text)
	pick := func(s domain.LocationSuggestion) string {
		if s.Code != "" {
			return s.Code
		}
		return s.Name
	}
	if n, err := strconv.Atoi(text); err == nil && n >= 1 && n <= len(suggestions) {
		return pick(suggestions[n-1])
	}
	for _, s := range suggestions {
		if strings.EqualFold(s.Code, text) || strings.EqualFold(s.Name, text) {
			return pick(s)
		}
	}
	return ""
}
