package usecase

import (
	"context"
	"errors"
	"slices"
	"strings"

	"travel-agent/internal/domain"
)

// Action is the domain a turn resolved to, or one of the ask/none sentinels.
type Action string

const (
	ActionFlights     Action = "flights"
	ActionHotels      Action = "hotels"
	ActionCabs        Action = "cabs"
	ActionHealthStats Action = "health_stats"
	ActionAskUser     Action = "ask_user"
	ActionNone        Action = "none"
)

var domainActions = []Action{ActionFlights, ActionHotels, ActionCabs, ActionHealthStats}

func (a Action) isDomain() bool {
	return slices.Contains(domainActions, a)
}

type FlightSearcher interface {
	SearchFlights(ctx context.Context, origin, destination, date string) ([]domain.FlightOffer, error)
}

type HotelSearcher interface {
	SearchHotels(ctx context.Context, city, checkin, checkout string) ([]domain.HotelOffer, error)
}

type CabSearcher interface {
	SearchCabs(ctx context.Context, pickup, dropoff string) ([]domain.CabOffer, error)
}

type HealthStatsSource interface {
	CountryStats(ctx context.Context, country string) (domain.HealthStats, error)
}

type LocationResolver interface {
	ResolveCountry(ctx context.Context, query string) (domain.Country, error)
}

type DateParser interface {
	ParseDate(text string) (string, bool)
}

type LLMClient interface {
	Chat(ctx context.Context, model string, messages []domain.ChatMessage) (string, error)
}

// Providers groups the lookup capabilities the engine dispatches to.
type Providers struct {
	Flights   FlightSearcher
	Hotels    HotelSearcher
	Cabs      CabSearcher
	Health    HealthStatsSource
	Locations LocationResolver
}

// Engine runs one dialogue turn at a time. It holds no per-conversation state.
type Engine struct {
	providers Providers
	llm       LLMClient
	model     string
	dates     DateParser
}

type TurnInput struct {
	ConversationID string
	UserText       string
	Memory         domain.ConversationMemory
}

// TurnResult is the decision taken for one turn.
type TurnResult struct {
	Action       Action
	MissingSlots []string
	Reply        string
	NextQuestion string
	NextPending  domain.PendingQuestion
	NextPayload  *domain.PendingPayload
}

type TurnOutput struct {
	Reply        string
	NextQuestion string
	Memory       domain.ConversationMemory
	Trace        []domain.TraceEntry
	Result       TurnResult
}

func NewEngine(p Providers, llm LLMClient, model string, dates DateParser) (*Engine, error) {
	if p.Flights == nil || p.Hotels == nil || p.Cabs == nil || p.Health == nil {
		return nil, errors.New("usecase: all domain providers must be set")
	}
	if p.Locations == nil {
		return nil, errors.New("usecase: location resolver must not be nil")
	}
	if llm == nil {
		return nil, errors.New("usecase: llm client must not be nil")
	}
	if strings.TrimSpace(model) == "" {
		return nil, errors.New("usecase: model must not be empty")
	}
	if dates == nil {
		return nil, errors.New("usecase: date parser must not be nil")
	}
	return &Engine{providers: p, llm: llm, model: model, dates: dates}, nil
}

// turn is the working state of a single Turn call.
type turn struct {
	ctx   context.Context
	text  string
	sig   signals
	prior []domain.HistoryEntry
	mem   *domain.ConversationMemory
	trace []domain.TraceEntry
}

func (t *turn) addTrace(step string, detail map[string]any) {
	t.trace = append(t.trace, domain.TraceEntry{Step: step, Detail: detail})
}

func (t *turn) mergeSlots(delta domain.Slots, source string) {
	if len(delta) == 0 {
		return
	}
	t.mem.Slots = domain.Merge(t.mem.Slots, delta)
	t.addTrace("slots_merged", map[string]any{"source": source, "delta": delta})
}

// Turn processes one user utterance against the given memory and returns the
// reply together with the memory to persist. It never fails.
func (e *Engine) Turn(ctx context.Context, in TurnInput) TurnOutput {
	mem := in.Memory.Clone()
	text := strings.TrimSpace(in.UserText)
	t := &turn{
		ctx:   ctx,
		text:  text,
		sig:   classify(text),
		prior: slices.Clone(mem.History),
		mem:   &mem,
	}
	mem.AppendHistory(domain.RoleUser, text)

	res := e.decide(t)

	mem.SetPending(res.NextPending, res.NextPayload)
	mem.AppendHistory(domain.RoleAssistant, res.Reply)
	mem.LastReply = res.Reply
	t.addTrace("turn_done", map[string]any{
		"action":  string(res.Action),
		"pending": string(mem.PendingQuestion),
	})

	return TurnOutput{
		Reply:        res.Reply,
		NextQuestion: res.NextQuestion,
		Memory:       mem,
		Trace:        t.trace,
		Result:       res,
	}
}

func (e *Engine) decide(t *turn) TurnResult {
	if t.mem.PendingQuestion != domain.PendingNone {
		if res, ok := e.route(t); ok {
			return res
		}
	}
	if action, ok := e.fastPath(t); ok {
		return e.dispatch(t, action)
	}
	return e.consultPlanner(t)
}

// ask builds a result that only poses a question.
func ask(text string, pending domain.PendingQuestion, payload *domain.PendingPayload) TurnResult {
	return TurnResult{
		Action:       ActionAskUser,
		Reply:        text,
		NextQuestion: text,
		NextPending:  pending,
		NextPayload:  payload,
	}
}

func openEnded() TurnResult {
	return ask(replyOpenEnded, domain.PendingNone, nil)
}
