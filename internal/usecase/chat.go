package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"travel-agent/internal/domain"
)

const (
	defaultMaxMessage = 500
	transcriptLimit   = 2 * domain.MaxHistory
)

type Turner interface {
	Turn(ctx context.Context, in TurnInput) TurnOutput
}

// MemoryStore persists one conversation's memory and transcript. SaveTurn must
// fail with domain.ErrConflict when the memory version changed since it was read.
type MemoryStore interface {
	GetMemory(ctx context.Context, conversationID string) (domain.ConversationMemory, error)
	SaveTurn(ctx context.Context, conversationID string, mem domain.ConversationMemory, rec domain.TurnRecord) error
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}

// ChatService reads memory once, runs one engine turn and writes memory once.
type ChatService struct {
	engine        Turner
	store         MemoryStore
	maxMessageLen int
}

type ChatInput struct {
	Message        string
	ConversationID string
}

type ChatOutput struct {
	ConversationID string
	Reply          string
	NextQuestion   string
	Results        domain.Results
	Trace          []domain.TraceEntry
}

func NewChatService(engine Turner, store MemoryStore, maxMessageLen int) (*ChatService, error) {
	if engine == nil {
		return nil, errors.New("usecase: engine must not be nil")
	}
	if store == nil {
		return nil, errors.New("usecase: memory store must not be nil")
	}
	if maxMessageLen <= 0 {
		maxMessageLen = defaultMaxMessage
	}
	return &ChatService{engine: engine, store: store, maxMessageLen: maxMessageLen}, nil
}

func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ChatOutput, error) {
	message := strings.TrimSpace(in.Message)
	if message == "" {
		return ChatOutput{}, newError(ErrorInvalidInput, "empty_message", nil)
	}
	if len(message) > s.maxMessageLen {
		return ChatOutput{}, newError(ErrorInvalidInput, "message_too_long", nil)
	}
	convID := strings.TrimSpace(in.ConversationID)
	if convID == "" {
		convID = newUUID()
	}

	mem, err := s.store.GetMemory(ctx, convID)
	if err != nil {
		return ChatOutput{}, newError(ErrorInternal, "memory_read_error", err)
	}

	out := s.engine.Turn(ctx, TurnInput{
		ConversationID: convID,
		UserText:       message,
		Memory:         mem,
	})

	rec := domain.TurnRecord{UserText: message, Reply: out.Reply, Trace: out.Trace}
	if err := s.store.SaveTurn(ctx, convID, out.Memory, rec); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return ChatOutput{}, newError(ErrorConflict, "concurrent_turn", err)
		}
		return ChatOutput{}, newError(ErrorInternal, "memory_write_error", err)
	}

	slog.InfoContext(ctx, "turn complete",
		"conversation_id", convID,
		"action", string(out.Result.Action),
		"missing", out.Result.MissingSlots,
		"pending", string(out.Memory.PendingQuestion),
	)

	return ChatOutput{
		ConversationID: convID,
		Reply:          out.Reply,
		NextQuestion:   out.NextQuestion,
		Results:        out.Memory.Results,
		Trace:          out.Trace,
	}, nil
}

// Transcript returns the stored messages of a conversation, oldest first.
func (s *ChatService) Transcript(ctx context.Context, conversationID string) ([]domain.Message, error) {
	convID := strings.TrimSpace(conversationID)
	if convID == "" {
		return nil, newError(ErrorInvalidInput, "empty_conversation_id", nil)
	}
	msgs, err := s.store.ListMessages(ctx, convID, transcriptLimit)
	if err != nil {
		return nil, newError(ErrorInternal, "transcript_read_error", err)
	}
	if len(msgs) == 0 {
		return nil, newError(ErrorNotFound, "conversation_not_found", nil)
	}
	return msgs, nil
}

var newUUID = func() string {
	return uuid.NewString()
}
