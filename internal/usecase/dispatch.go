package usecase

import (
	"errors"

	"travel-agent/internal/domain"
)

var requiredSlots = map[Action][]string{
	ActionFlights:     {domain.SlotOrigin, domain.SlotDestination, domain.SlotDate},
	ActionHotels:      {domain.SlotCity, domain.SlotCheckin, domain.SlotCheckout},
	ActionCabs:        {domain.SlotPickup, domain.SlotDropoff},
	ActionHealthStats: {domain.SlotCountry},
}

// missingSlots lists unmet requirements for action in priority order. A hotel
// checkout that is not strictly after checkin counts as missing.
func missingSlots(action Action, slots domain.Slots) []string {
	var missing []string
	for _, k := range requiredSlots[action] {
		if !slots.Has(k) {
			missing = append(missing, k)
		}
	}
	if action == ActionHotels && slots.Has(domain.SlotCheckin) && slots.Has(domain.SlotCheckout) &&
		slots.Get(domain.SlotCheckout) <= slots.Get(domain.SlotCheckin) {
		missing = append(missing, domain.SlotCheckout)
	}
	return missing
}

func (e *Engine) dispatch(t *turn, action Action) TurnResult {
	if !action.isDomain() {
		return ask(replyClarify, domain.PendingNone, nil)
	}
	if action == ActionHealthStats && !t.mem.Slots.Has(domain.SlotCountry) {
		if c := t.mem.Slots.Get(domain.SlotDestinationCountry); c != "" {
			t.mergeSlots(domain.Slots{domain.SlotCountry: c}, "destination_country")
		} else {
			e.resolveCountry(t)
		}
	}

	missing := missingSlots(action, t.mem.Slots)
	t.addTrace("dispatch", map[string]any{"action": string(action), "missing": missing})
	if len(missing) > 0 {
		res := e.clarify(t, action, missing[0])
		res.Action = action
		res.MissingSlots = missing
		return res
	}

	switch action {
	case ActionFlights:
		return e.searchFlights(t)
	case ActionHotels:
		return e.searchHotels(t)
	case ActionCabs:
		return e.searchCabs(t)
	default:
		return e.fetchHealthStats(t)
	}
}

// clarify asks for exactly one slot, entering a dedicated follow-up state when
// the slot has one.
func (e *Engine) clarify(t *turn, action Action, slot string) TurnResult {
	s := t.mem.Slots
	switch slot {
	case domain.SlotOrigin:
		return ask(questionOrigin, domain.PendingOrigin, nil)
	case domain.SlotDestination:
		return ask(questionDestination, domain.PendingNone, nil)
	case domain.SlotDate:
		return ask(questionDate, domain.PendingNone, nil)
	case domain.SlotCity:
		return ask(questionCity, domain.PendingNone, nil)
	case domain.SlotCheckin:
		return ask(questionCheckin, domain.PendingNone, nil)
	case domain.SlotCheckout:
		if s.Has(domain.SlotCheckout) {
			return ask(checkoutBeforeCheckin(s.Get(domain.SlotCheckin)), domain.PendingCheckout, nil)
		}
		return ask(questionCheckout, domain.PendingCheckout, nil)
	case domain.SlotPickup:
		return ask(questionPickup, domain.PendingNone, nil)
	case domain.SlotDropoff:
		payload := &domain.PendingPayload{}
		if h := t.mem.Results.Hotels; h != nil {
			payload.Candidates = hotelCandidates(h.Offers)
		}
		return ask(dropoffQuestion(payload.Candidates), domain.PendingHotelSelection, payload)
	case domain.SlotCountry:
		return ask(questionCountry, domain.PendingCountry, nil)
	}
	return ask(replyClarify, domain.PendingNone, nil)
}

func (e *Engine) searchFlights(t *turn) TurnResult {
	s := t.mem.Slots
	origin, dest, date := s.Get(domain.SlotOrigin), s.Get(domain.SlotDestination), s.Get(domain.SlotDate)

	offers, err := e.providers.Flights.SearchFlights(t.ctx, origin, dest, date)
	if err != nil {
		return e.lookupFailed(t, ActionFlights, err)
	}
	best, ok := domain.Cheapest(offers)
	if !ok {
		t.addTrace("flights_none", nil)
		return e.noResults(t, ActionFlights, noFlights(origin, dest, date))
	}

	t.mem.Results.Flights = &domain.FlightResults{
		Origin:      origin,
		Destination: dest,
		Date:        date,
		Offers:      offers,
		Cheapest:    best,
	}
	t.addTrace("flights_ok", map[string]any{"offers": len(offers), "cheapest": best})
	return e.seedAfterFlights(t, best)
}

func (e *Engine) searchHotels(t *turn) TurnResult {
	s := t.mem.Slots
	city, checkin, checkout := s.Get(domain.SlotCity), s.Get(domain.SlotCheckin), s.Get(domain.SlotCheckout)

	offers, err := e.providers.Hotels.SearchHotels(t.ctx, city, checkin, checkout)
	if err != nil {
		return e.lookupFailed(t, ActionHotels, err)
	}
	best, ok := domain.Cheapest(offers)
	if !ok {
		t.addTrace("hotels_none", nil)
		return e.noResults(t, ActionHotels, noHotels(city, checkin, checkout))
	}

	t.mem.Results.Hotels = &domain.HotelResults{
		City:     city,
		Checkin:  checkin,
		Checkout: checkout,
		Offers:   offers,
		Cheapest: best,
	}
	t.addTrace("hotels_ok", map[string]any{"offers": len(offers), "cheapest": best})
	return e.seedAfterHotels(t, offers, best)
}

func (e *Engine) searchCabs(t *turn) TurnResult {
	s := t.mem.Slots
	pickup, dropoff := s.Get(domain.SlotPickup), s.Get(domain.SlotDropoff)

	offers, err := e.providers.Cabs.SearchCabs(t.ctx, pickup, dropoff)
	if err != nil {
		return e.lookupFailed(t, ActionCabs, err)
	}
	best, ok := domain.Cheapest(offers)
	if !ok {
		t.addTrace("cabs_none", nil)
		return e.noResults(t, ActionCabs, noCabs(pickup, dropoff))
	}

	t.mem.Results.Cabs = &domain.CabResults{
		Pickup:   pickup,
		Dropoff:  dropoff,
		Offers:   offers,
		Cheapest: best,
	}
	t.addTrace("cabs_ok", map[string]any{"offers": len(offers), "cheapest": best})
	return e.seedAfterCabs(t, best)
}

func (e *Engine) fetchHealthStats(t *turn) TurnResult {
	country := t.mem.Slots.Get(domain.SlotCountry)

	stats, err := e.providers.Health.CountryStats(t.ctx, country)
	if err != nil {
		return e.lookupFailed(t, ActionHealthStats, err)
	}
	if stats.Country == "" {
		stats.Country = country
	}

	t.mem.Results.HealthStats = &stats
	t.addTrace("health_ok", map[string]any{"country": stats.Country})
	return e.seedAfterHealth(t, stats)
}

// noResults leaves the pending state as it currently is.
func (e *Engine) noResults(t *turn, action Action, reply string) TurnResult {
	return TurnResult{
		Action:       action,
		Reply:        reply,
		NextQuestion: reply,
		NextPending:  t.mem.PendingQuestion,
		NextPayload:  t.mem.PendingPayload,
	}
}

// lookupFailed turns a provider error into a recoverable question. Results for
// the domain are left untouched.
func (e *Engine) lookupFailed(t *turn, action Action, err error) TurnResult {
	var unresolved *domain.UnresolvedLocationError
	if errors.As(err, &unresolved) {
		suggestions := unresolved.Suggestions
		if len(suggestions) > maxSuggestions {
			suggestions = suggestions[:maxSuggestions]
		}
		t.addTrace("unknown_location", map[string]any{
			"action":      string(action),
			"field":       unresolved.Field,
			"query":       unresolved.Query,
			"suggestions": len(suggestions),
		})
		reply := unresolvedLocationReply(action, unresolved.Field, unresolved.Query, suggestions)
		return TurnResult{
			Action:       action,
			Reply:        reply,
			NextQuestion: reply,
			NextPending:  domain.PendingLocationFix,
			NextPayload: &domain.PendingPayload{
				Action:      string(action),
				Field:       unresolved.Field,
				Suggestions: suggestions,
			},
		}
	}

	if action == ActionHealthStats && errors.Is(err, domain.ErrLocationNotFound) {
		country := t.mem.Slots.Get(domain.SlotCountry)
		t.addTrace("country_not_found", map[string]any{"country": country})
		reply := countryNotFound(country)
		return TurnResult{
			Action:       action,
			Reply:        reply,
			NextQuestion: reply,
			NextPending:  domain.PendingCountry,
		}
	}

	t.addTrace("lookup_error", map[string]any{"action": string(action), "error": err.Error()})
	reply := lookupFailedReply(action, t.mem.Slots.Get(domain.SlotCountry), err)
	return TurnResult{
		Action:       action,
		Reply:        reply,
		NextQuestion: reply,
		NextPending:  t.mem.PendingQuestion,
		NextPayload:  t.mem.PendingPayload,
	}
}
