package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"travel-agent/internal/domain"
)

const maxStoredMessages = 200

// redisAPI is the subset of *redis.Client used by RedisStore.
type redisAPI interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// RedisStore keeps memory as a JSON string and the transcript as a capped list.
// A turn is written in one MULTI/EXEC block. Writes are last-writer-wins;
// callers serialize turns per conversation.
type RedisStore struct {
	api redisAPI
	ttl time.Duration
	now func() time.Time
}

type redisSnapshot struct {
	Version int64                     `json:"version"`
	Memory  domain.ConversationMemory `json:"memory"`
}

type redisMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Meta      string `json:"meta,omitempty"`
	CreatedAt string `json:"createdAt"`
}

func NewRedisStore(api redisAPI, ttl time.Duration) (*RedisStore, error) {
	if api == nil {
		return nil, errors.New("repository: redis client must not be nil")
	}
	return &RedisStore{api: api, ttl: ttl, now: time.Now}, nil
}

func memoryKey(conversationID string) string {
	return "travel:conv:" + conversationID + ":memory"
}

func messagesKey(conversationID string) string {
	return "travel:conv:" + conversationID + ":messages"
}

func (s *RedisStore) GetMemory(ctx context.Context, conversationID string) (domain.ConversationMemory, error) {
	raw, err := s.api.Get(ctx, memoryKey(conversationID)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.NewMemory(), nil
	}
	if err != nil {
		return domain.ConversationMemory{}, fmt.Errorf("repository: redis GetMemory: %w", err)
	}

	var snap redisSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return domain.ConversationMemory{}, fmt.Errorf("repository: redis GetMemory decode memory: %w", err)
	}
	mem := snap.Memory
	if mem.Slots == nil {
		mem.Slots = domain.Slots{}
	}
	mem.Version = snap.Version
	return mem, nil
}

func (s *RedisStore) SaveTurn(ctx context.Context, conversationID string, mem domain.ConversationMemory, rec domain.TurnRecord) error {
	if strings.TrimSpace(conversationID) == "" {
		return errors.New("repository: redis SaveTurn: conversation id is required")
	}
	snap, err := json.Marshal(redisSnapshot{Version: mem.Version + 1, Memory: mem})
	if err != nil {
		return fmt.Errorf("repository: redis SaveTurn encode memory: %w", err)
	}

	now := s.now().UTC().Format(time.RFC3339Nano)
	user := redisMessage{Role: domain.RoleUser, Content: rec.UserText, CreatedAt: now}
	assistant := redisMessage{Role: domain.RoleAssistant, Content: rec.Reply, CreatedAt: now}
	if len(rec.Trace) > 0 {
		trace, err := json.Marshal(rec.Trace)
		if err != nil {
			return fmt.Errorf("repository: redis SaveTurn encode trace: %w", err)
		}
		assistant.Meta = string(trace)
	}
	userRaw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("repository: redis SaveTurn encode message: %w", err)
	}
	assistantRaw, err := json.Marshal(assistant)
	if err != nil {
		return fmt.Errorf("repository: redis SaveTurn encode message: %w", err)
	}

	key := messagesKey(conversationID)
	_, err = s.api.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, memoryKey(conversationID), snap, s.ttl)
		pipe.RPush(ctx, key, string(userRaw), string(assistantRaw))
		pipe.LTrim(ctx, key, -maxStoredMessages, -1)
		if s.ttl > 0 {
			pipe.Expire(ctx, key, s.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("repository: redis SaveTurn: %w", err)
	}
	return nil
}

// ListMessages returns up to limit of the most recent messages, oldest first.
func (s *RedisStore) ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error) {
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	raws, err := s.api.LRange(ctx, messagesKey(conversationID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("repository: redis ListMessages: %w", err)
	}

	msgs := make([]domain.Message, 0, len(raws))
	for _, raw := range raws {
		var m redisMessage
		if err := json.Unmarshal([]byte(raw), &m); err != nil {
			return nil, fmt.Errorf("repository: redis ListMessages decode: %w", err)
		}
		msgs = append(msgs, domain.Message{
			ConversationID: conversationID,
			Role:           m.Role,
			Content:        m.Content,
			Meta:           m.Meta,
			CreatedAt:      m.CreatedAt,
		})
	}
	return msgs, nil
}
