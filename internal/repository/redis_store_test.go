package repository

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"

	"travel-agent/internal/domain"
)

type fakeRedis struct {
	values   map[string]string
	lists    map[string][]string
	getErr   error
	execErr  error
	rangeErr error

	setTTL      time.Duration
	expired     map[string]time.Duration
	trimStart   int64
	rangeStart  int64
	rangeCalled bool
	txCalls     int
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}, lists: map[string][]string{}, expired: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

// TxPipelined applies the queued commands only when the transaction succeeds.
func (f *fakeRedis) TxPipelined(_ context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error) {
	f.txCalls++
	pipe := &fakePipe{f: f}
	if err := fn(pipe); err != nil {
		return nil, err
	}
	if f.execErr != nil {
		return nil, f.execErr
	}
	for _, op := range pipe.ops {
		op()
	}
	return nil, nil
}

// fakePipe queues the commands SaveTurn uses. Any other Pipeliner method
// panics on the nil embedded interface.
type fakePipe struct {
	redis.Pipeliner
	f   *fakeRedis
	ops []func()
}

func (p *fakePipe) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	p.ops = append(p.ops, func() {
		switch v := value.(type) {
		case []byte:
			p.f.values[key] = string(v)
		case string:
			p.f.values[key] = v
		}
		p.f.setTTL = expiration
	})
	return redis.NewStatusResult("", nil)
}

func (p *fakePipe) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	p.ops = append(p.ops, func() {
		for _, v := range values {
			p.f.lists[key] = append(p.f.lists[key], v.(string))
		}
	})
	return redis.NewIntResult(0, nil)
}

func (p *fakePipe) LTrim(_ context.Context, key string, start, _ int64) *redis.StatusCmd {
	p.ops = append(p.ops, func() {
		p.f.trimStart = start
		if l := p.f.lists[key]; int64(len(l)) > -start {
			p.f.lists[key] = l[int64(len(l))+start:]
		}
	})
	return redis.NewStatusResult("", nil)
}

func (p *fakePipe) Expire(_ context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	p.ops = append(p.ops, func() { p.f.expired[key] = expiration })
	return redis.NewBoolResult(false, nil)
}

func (f *fakeRedis) LRange(_ context.Context, key string, start, _ int64) *redis.StringSliceCmd {
	f.rangeCalled = true
	f.rangeStart = start
	if f.rangeErr != nil {
		return redis.NewStringSliceResult(nil, f.rangeErr)
	}
	l := f.lists[key]
	if start < 0 && int64(len(l)) > -start {
		l = l[int64(len(l))+start:]
	}
	return redis.NewStringSliceResult(l, nil)
}

func mustNewRedisStore(t *testing.T, f *fakeRedis, ttl time.Duration) *RedisStore {
	t.Helper()
	s, err := NewRedisStore(f, ttl)
	require.NoError(t, err)
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestRedisStore_RoundTrip(t *testing.T) {
	f := newFakeRedis()
	s := mustNewRedisStore(t, f, time.Hour)
	ctx := context.Background()

	mem, err := s.GetMemory(ctx, "abc")
	require.NoError(t, err)
	require.Zero(t, mem.Version)
	require.NotNil(t, mem.Slots)

	rec := domain.TurnRecord{UserText: "hotel", Reply: "Which city?", Trace: []domain.TraceEntry{{Step: "dispatch"}}}
	require.NoError(t, s.SaveTurn(ctx, "abc", sampleMemory(), rec))
	require.Equal(t, time.Hour, f.setTTL)
	require.Equal(t, time.Hour, f.expired[messagesKey("abc")])
	require.Equal(t, int64(-maxStoredMessages), f.trimStart)
	require.Equal(t, 1, f.txCalls)

	got, err := s.GetMemory(ctx, "abc")
	require.NoError(t, err)
	require.Equal(t, int64(1), got.Version)
	require.Equal(t, "Mumbai", got.Slots[domain.SlotCity])
	require.Equal(t, domain.PendingCheckout, got.PendingQuestion)

	msgs, err := s.ListMessages(ctx, "abc", 10)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, domain.RoleUser, msgs[0].Role)
	require.Equal(t, "hotel", msgs[0].Content)
	require.Equal(t, "Which city?", msgs[1].Content)
	require.Contains(t, msgs[1].Meta, "dispatch")
	require.Equal(t, int64(-10), f.rangeStart)
}

func TestRedisStore_TrimsTranscript(t *testing.T) {
	f := newFakeRedis()
	s := mustNewRedisStore(t, f, 0)
	for i := 0; i < maxStoredMessages; i++ {
		require.NoError(t, s.SaveTurn(context.Background(), "abc", domain.NewMemory(), domain.TurnRecord{UserText: "u", Reply: "a"}))
	}
	require.Len(t, f.lists[messagesKey("abc")], maxStoredMessages)
}

func TestRedisStore_NoExpiryWhenTTLZero(t *testing.T) {
	f := newFakeRedis()
	s := mustNewRedisStore(t, f, 0)

	require.NoError(t, s.SaveTurn(context.Background(), "abc", domain.NewMemory(), domain.TurnRecord{UserText: "a", Reply: "b"}))
	require.Empty(t, f.expired)
	require.Zero(t, f.setTTL)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()

	f := newFakeRedis()
	f.getErr = errors.New("connection refused")
	_, err := mustNewRedisStore(t, f, 0).GetMemory(ctx, "abc")
	require.ErrorContains(t, err, "redis GetMemory")

	f = newFakeRedis()
	f.values[memoryKey("abc")] = "{broken"
	_, err = mustNewRedisStore(t, f, 0).GetMemory(ctx, "abc")
	require.ErrorContains(t, err, "decode memory")

	f = newFakeRedis()
	f.execErr = errors.New("EXECABORT")
	err = mustNewRedisStore(t, f, 0).SaveTurn(ctx, "abc", domain.NewMemory(), domain.TurnRecord{UserText: "hi"})
	require.ErrorContains(t, err, "redis SaveTurn")
	require.Empty(t, f.values)
	require.Empty(t, f.lists)

	err = mustNewRedisStore(t, newFakeRedis(), 0).SaveTurn(ctx, "", domain.NewMemory(), domain.TurnRecord{})
	require.ErrorContains(t, err, "conversation id is required")

	f = newFakeRedis()
	f.rangeErr = errors.New("timeout")
	_, err = mustNewRedisStore(t, f, 0).ListMessages(ctx, "abc", 5)
	require.ErrorContains(t, err, "redis ListMessages")
}

func TestRedisStore_VersionAdvances(t *testing.T) {
	f := newFakeRedis()
	s := mustNewRedisStore(t, f, 0)
	mem := domain.NewMemory()
	mem.Version = 3

	require.NoError(t, s.SaveTurn(context.Background(), "abc", mem, domain.TurnRecord{}))
	var snap redisSnapshot
	require.NoError(t, json.Unmarshal([]byte(f.values[memoryKey("abc")]), &snap))
	require.Equal(t, int64(4), snap.Version)
}

func TestNewRedisStore_NilClient(t *testing.T) {
	_, err := NewRedisStore(nil, 0)
	require.ErrorContains(t, err, "must not be nil")
}
