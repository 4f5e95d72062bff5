package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"travel-agent/internal/domain"
)

// fakeGetter is a minimal paramstore.Getter stub for use within this package.
type fakeGetter struct {
	val   string
	err   error
	calls int
	name  string
}

func (f *fakeGetter) GetParameter(_ context.Context, name string) (string, error) {
	f.calls++
	f.name = name
	return f.val, f.err
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(
		&fakeGetter{val: `{"token":"sk-test"}`},
		"/travel-agent",
		WithBaseURL(srv.URL),
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}),
	)
	require.NoError(t, err)
	return c
}

func respond(body string, status int) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"https://api.openai.com/v1/", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
		{"", "https://api.openai.com/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, "/travel-agent")
	require.ErrorContains(t, err, "nil")

	_, err = NewClient(&fakeGetter{}, " / ")
	require.ErrorContains(t, err, "prefix")

	c, err := NewClient(&fakeGetter{}, "/travel-agent/")
	require.NoError(t, err)
	require.Equal(t, defaultBaseURL, c.baseURL)
	require.Equal(t, "/travel-agent", c.paramPrefix)
}

func TestResolveAPIKey_CachedAfterSuccess(t *testing.T) {
	g := &fakeGetter{err: errors.New("ssm unavailable")}
	c, err := NewClient(g, "/travel-agent")
	require.NoError(t, err)

	_, err = c.resolveAPIKey(context.Background())
	require.ErrorContains(t, err, "ssm unavailable")

	g.err = nil
	g.val = `{"token":"sk-from-ssm"}`
	key, err := c.resolveAPIKey(context.Background())
	require.NoError(t, err)
	require.Equal(t, "sk-from-ssm", key)
	require.Equal(t, "/travel-agent/open-ai-token", g.name)

	_, _ = c.resolveAPIKey(context.Background())
	require.Equal(t, 2, g.calls)
}

func TestFetchAPIKey(t *testing.T) {
	key, err := fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{val: `{"token":" sk-json "}`}, "/p/open-ai-token")
	require.NoError(t, err)
	require.Equal(t, "sk-json", key)

	_, err = fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{val: `{"other":"value"}`}, "/p/open-ai-token")
	require.ErrorContains(t, err, "API token is empty")

	_, err = fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{val: `{"broken`}, "/p/open-ai-token")
	require.ErrorContains(t, err, "unmarshal")

	_, err = fetchAPIKeyFromParamStore(context.Background(), nil, "/p/open-ai-token")
	require.ErrorContains(t, err, "nil")

	_, err = fetchAPIKeyFromParamStore(context.Background(), &fakeGetter{}, " ")
	require.ErrorContains(t, err, "empty")
}

func TestClient_Chat_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req struct {
			Model          string               `json:"model"`
			Messages       []domain.ChatMessage `json:"messages"`
			Temperature    float64              `json:"temperature"`
			ResponseFormat struct {
				Type       string `json:"type"`
				JSONSchema struct {
					Name   string `json:"name"`
					Strict bool   `json:"strict"`
				} `json:"json_schema"`
			} `json:"response_format"`
		}
		require.NoError(t, json.Unmarshal(raw, &req))
		require.Equal(t, "gpt-mock", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "json_schema", req.ResponseFormat.Type)
		require.Equal(t, "travel_plan", req.ResponseFormat.JSONSchema.Name)
		require.True(t, req.ResponseFormat.JSONSchema.Strict)

		respond(`{
			"id": "chatcmpl-123",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": " {\"action\":\"flights\"} " },
				"finish_reason": "stop"
			}]
		}`, http.StatusOK)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	resp, err := c.Chat(context.Background(), "gpt-mock", []domain.ChatMessage{
		{Role: "system", Content: "plan"},
		{Role: "user", Content: "{}"},
	})
	require.NoError(t, err)
	require.Equal(t, `{"action":"flights"}`, resp)
}

func TestClient_Chat_Errors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status int
		want   string
	}{
		{name: "400", body: `{"error":"bad request"}`, status: 400, want: "unexpected status 400"},
		{name: "429", body: `{"error":"rate limited"}`, status: 429, want: "429"},
		{name: "500", body: `{"error":"boom"}`, status: 500, want: "500"},
		{name: "invalid json", body: `not-a-json`, status: 200, want: "decode response"},
		{name: "no choices", body: `{"choices":[]}`, status: 200, want: "no choices"},
		{name: "empty content", body: `{"choices":[{"message":{"role":"assistant","content":""},"finish_reason":"length"}]}`, status: 200, want: "finish_reason=length"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(respond(tc.body, tc.status))
			defer srv.Close()

			_, err := newTestClient(t, srv).Chat(context.Background(), "gpt-mock", nil)
			require.ErrorContains(t, err, tc.want)
		})
	}
}

func TestClient_Chat_StatusErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(respond(`{}`, http.StatusTooManyRequests))
	defer srv.Close()

	_, err := newTestClient(t, srv).Chat(context.Background(), "gpt-mock", nil)
	var statusErr *HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.HTTPStatusCode())
}

func TestClient_Chat_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		respond(`{"choices":[]}`, http.StatusOK)(w, r)
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}
	_, err := c.Chat(context.Background(), "gpt-mock", nil)
	require.ErrorContains(t, err, "request failed")
}

func TestClient_Chat_EmptyModel(t *testing.T) {
	c, err := NewClient(&fakeGetter{val: `{"token":"sk-test"}`}, "/travel-agent")
	require.NoError(t, err)
	_, err = c.Chat(context.Background(), "", nil)
	require.ErrorContains(t, err, "model")
}

func TestPlanSchema(t *testing.T) {
	var schema struct {
		Required   []string `json:"required"`
		Properties struct {
			Action struct {
				Enum []string `json:"enum"`
			} `json:"action"`
			Slots struct {
				AdditionalProperties bool                       `json:"additionalProperties"`
				Required             []string                   `json:"required"`
				Properties           map[string]json.RawMessage `json:"properties"`
			} `json:"slots"`
		} `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(planSchema(), &schema))

	require.ElementsMatch(t, []string{"action", "slots", "missing", "ask_user"}, schema.Required)
	require.Contains(t, schema.Properties.Action.Enum, "covid")
	require.Equal(t, PlanSlots, schema.Properties.Slots.Required)
	require.Len(t, schema.Properties.Slots.Properties, len(PlanSlots))
	require.False(t, schema.Properties.Slots.AdditionalProperties)
	require.JSONEq(t, `{"type":["string","null"]}`, string(schema.Properties.Slots.Properties[domain.SlotCheckout]))
}
