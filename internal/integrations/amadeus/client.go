package amadeus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"travel-agent/internal/integrations/paramstore"
)

const (
	defaultBaseURL = "https://test.api.amadeus.com"
	defaultRPS     = 5
	currencyINR    = "INR"
	tokenPath      = "/v1/security/oauth2/token"
)

// Credentials is the JSON document stored in SSM under "<prefix>/amadeus".
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

// HTTPStatusError captures non-2xx Amadeus responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("amadeus: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to the Amadeus self-service APIs. One Client serves flights,
// hotels, transfers and location lookups so they share a token, a rate limit
// and the location cache.
type Client struct {
	baseURL     string
	getter      paramstore.Getter
	paramPrefix string
	creds       *Credentials
	transport   *http.Client
	limiter     *rate.Limiter
	now         func() time.Time

	authMu sync.Mutex
	authed *http.Client

	lookups   singleflight.Group
	cacheMu   sync.RWMutex
	iataCache map[string]string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

// WithHTTPClient sets the client used for both token and API calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.transport = httpClient
	}
}

// WithRateLimit caps outbound API calls per second. Zero or less disables the limit.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCredentials skips the SSM lookup.
func WithCredentials(creds Credentials) Option {
	return func(c *Client) {
		c.creds = &creds
	}
}

// NewClient creates a Client whose OAuth2 credentials are read from
// "<paramPrefix>/amadeus" on first use unless WithCredentials is given.
func NewClient(ps paramstore.Getter, paramPrefix string, opts ...Option) (*Client, error) {
	c := &Client{
		baseURL:     defaultBaseURL,
		getter:      ps,
		paramPrefix: strings.TrimRight(strings.TrimSpace(paramPrefix), "/"),
		transport:   &http.Client{Timeout: 20 * time.Second},
		limiter:     rate.NewLimiter(rate.Limit(defaultRPS), defaultRPS),
		now:         time.Now,
		iataCache:   map[string]string{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.creds == nil {
		if c.getter == nil {
			return nil, errors.New("amadeus: paramstore getter must not be nil")
		}
		if c.paramPrefix == "" {
			return nil, errors.New("amadeus: parameter prefix must not be empty")
		}
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.transport == nil {
		c.transport = &http.Client{Timeout: 20 * time.Second}
	}
	return c, nil
}

func (c *Client) credentials(ctx context.Context) (Credentials, error) {
	if c.creds != nil {
		return *c.creds, nil
	}
	var creds Credentials
	if err := paramstore.GetJSON(ctx, c.getter, c.paramPrefix+"/amadeus", &creds); err != nil {
		return Credentials{}, fmt.Errorf("amadeus: fetch credentials: %w", err)
	}
	return creds, nil
}

// httpClient returns an oauth2 client that fetches and refreshes the access
// token on demand. It is built once, after credentials were read successfully.
func (c *Client) httpClient(ctx context.Context) (*http.Client, error) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	if c.authed != nil {
		return c.authed, nil
	}

	creds, err := c.credentials(ctx)
	if err != nil {
		return nil, err
	}
	creds.ClientID = strings.TrimSpace(creds.ClientID)
	creds.ClientSecret = strings.TrimSpace(creds.ClientSecret)
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, errors.New("amadeus: client id and secret are required")
	}

	cfg := clientcredentials.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		TokenURL:     c.baseURL + tokenPath,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	// Token refreshes outlive any single request, so they get a background
	// context carrying only the transport.
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, c.transport)
	authed := cfg.Client(tokenCtx)
	authed.Timeout = c.transport.Timeout
	c.authed = authed
	return authed, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("amadeus: create request: %w", err)
	}
	return c.do(req, dst)
}

func (c *Client) postJSON(ctx context.Context, path string, body, dst any) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("amadeus: marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return fmt.Errorf("amadeus: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, dst)
}

func (c *Client) do(req *http.Request, dst any) error {
	ctx := req.Context()
	hc, err := c.httpClient(ctx)
	if err != nil {
		return err
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("amadeus: rate limit: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("amadeus: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: req.URL.Path, Body: string(raw)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 4<<20)).Decode(dst); err != nil {
		return fmt.Errorf("amadeus: decode response: %w", err)
	}
	return nil
}
