package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"travel-agent/internal/domain"
	"travel-agent/internal/textparse"
)

type fakeFlights struct {
	offers []domain.FlightOffer
	err    error
	calls  int
	args   []string
}

func (f *fakeFlights) SearchFlights(_ context.Context, origin, destination, date string) ([]domain.FlightOffer, error) {
	f.calls++
	f.args = []string{origin, destination, date}
	return f.offers, f.err
}

type fakeHotels struct {
	offers []domain.HotelOffer
	err    error
	calls  int
	args   []string
}

func (f *fakeHotels) SearchHotels(_ context.Context, city, checkin, checkout string) ([]domain.HotelOffer, error) {
	f.calls++
	f.args = []string{city, checkin, checkout}
	return f.offers, f.err
}

type fakeCabs struct {
	offers []domain.CabOffer
	errs   []error
	calls  int
	args   []string
}

func (f *fakeCabs) SearchCabs(_ context.Context, pickup, dropoff string) ([]domain.CabOffer, error) {
	f.calls++
	f.args = []string{pickup, dropoff}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return f.offers, nil
}

type fakeHealth struct {
	stats domain.HealthStats
	err   error
	calls int
	got   string
}

func (f *fakeHealth) CountryStats(_ context.Context, country string) (domain.HealthStats, error) {
	f.calls++
	f.got = country
	return f.stats, f.err
}

type fakeLocations struct {
	country domain.Country
	err     error
	calls   int
	got     string
}

func (f *fakeLocations) ResolveCountry(_ context.Context, query string) (domain.Country, error) {
	f.calls++
	f.got = query
	return f.country, f.err
}

type fakeLLM struct {
	replies  []string
	err      error
	calls    int
	model    string
	messages []domain.ChatMessage
}

func (f *fakeLLM) Chat(_ context.Context, model string, messages []domain.ChatMessage) (string, error) {
	f.calls++
	f.model = model
	f.messages = messages
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "", errors.New("no planner reply configured")
	}
	idx := f.calls - 1
	if idx >= len(f.replies) {
		idx = len(f.replies) - 1
	}
	return f.replies[idx], nil
}

type fixture struct {
	flights   *fakeFlights
	hotels    *fakeHotels
	cabs      *fakeCabs
	health    *fakeHealth
	locations *fakeLocations
	llm       *fakeLLM
	engine    *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	fx := &fixture{
		flights:   &fakeFlights{},
		hotels:    &fakeHotels{},
		cabs:      &fakeCabs{},
		health:    &fakeHealth{},
		locations: &fakeLocations{country: domain.Country{Code: "IN", Name: "India"}},
		llm:       &fakeLLM{},
	}
	engine, err := NewEngine(Providers{
		Flights:   fx.flights,
		Hotels:    fx.hotels,
		Cabs:      fx.cabs,
		Health:    fx.health,
		Locations: fx.locations,
	}, fx.llm, "gpt-test", textparse.NewDateParser())
	require.NoError(t, err)
	fx.engine = engine
	return fx
}

func (fx *fixture) turn(mem domain.ConversationMemory, text string) TurnOutput {
	return fx.engine.Turn(context.Background(), TurnInput{ConversationID: "conv-1", UserText: text, Memory: mem})
}

func planJSON(action string, slots map[string]any) string {
	return planWithQuestion(action, slots, "null")
}

func planWithQuestion(action string, slots map[string]any, askUser string) string {
	all := map[string]any{}
	for _, k := range plannerSlots {
		all[k] = nil
	}
	for k, v := range slots {
		all[k] = v
	}
	return `{"action":"` + action + `","slots":` + mustJSON(all) + `,"missing":[],"ask_user":` + askUser + `}`
}

func traceSteps(trace []domain.TraceEntry) []string {
	steps := make([]string, len(trace))
	for i, e := range trace {
		steps[i] = e.Step
	}
	return steps
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
