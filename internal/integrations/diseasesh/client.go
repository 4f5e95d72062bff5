package diseasesh

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"travel-agent/internal/domain"
)

const (
	defaultBaseURL = "https://disease.sh/v3/covid-19"
	// One extra day is fetched as the baseline for the first delta.
	historyDays = 15
	dayLayout   = "1/2/06"
	isoDate     = "2006-01-02"
)

// HTTPStatusError captures non-2xx disease.sh responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("diseasesh: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

type countryResponse struct {
	Country     string `json:"country"`
	Updated     int64  `json:"updated"`
	Cases       int64  `json:"cases"`
	Deaths      int64  `json:"deaths"`
	Recovered   int64  `json:"recovered"`
	Active      int64  `json:"active"`
	TodayCases  int64  `json:"todayCases"`
	TodayDeaths int64  `json:"todayDeaths"`
}

type historicalResponse struct {
	Timeline struct {
		Cases  map[string]int64 `json:"cases"`
		Deaths map[string]int64 `json:"deaths"`
	} `json:"timeline"`
}

// Client reads country-level COVID-19 statistics from disease.sh. No API key
// is required.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// CountryStats returns totals and the last 14 days of new cases and deaths.
// The totals and the history are fetched concurrently; a failed history only
// leaves Last14Days empty. An unknown country wraps domain.ErrLocationNotFound.
func (c *Client) CountryStats(ctx context.Context, country string) (domain.HealthStats, error) {
	country = strings.TrimSpace(country)
	if country == "" {
		return domain.HealthStats{}, fmt.Errorf("diseasesh: empty country: %w", domain.ErrLocationNotFound)
	}
	escaped := url.PathEscape(country)

	var (
		latest countryResponse
		hist   historicalResponse
		histOK bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.getJSON(gctx, "/countries/"+escaped, url.Values{"strict": {"true"}}, &latest)
	})
	g.Go(func() error {
		err := c.getJSON(gctx, "/historical/"+escaped, url.Values{"lastdays": {fmt.Sprint(historyDays)}}, &hist)
		if err != nil {
			c.logger.WarnContext(ctx, "diseasesh history unavailable", slog.String("country", country), slog.Any("error", err))
			return nil
		}
		histOK = true
		return nil
	})
	if err := g.Wait(); err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return domain.HealthStats{}, fmt.Errorf("diseasesh: %q: %w", country, domain.ErrLocationNotFound)
		}
		return domain.HealthStats{}, fmt.Errorf("diseasesh: country stats for %q: %w", country, err)
	}

	stats := domain.HealthStats{
		Country: cmp.Or(latest.Country, country),
		Totals: domain.HealthTotals{
			Cases:       latest.Cases,
			Deaths:      latest.Deaths,
			Recovered:   latest.Recovered,
			Active:      latest.Active,
			TodayCases:  latest.TodayCases,
			TodayDeaths: latest.TodayDeaths,
		},
	}
	if latest.Updated > 0 {
		stats.Updated = time.UnixMilli(latest.Updated).UTC()
	}
	if histOK {
		stats.Last14Days = lastDays(hist.Timeline.Cases, hist.Timeline.Deaths, historyDays-1)
	}
	return stats, nil
}

type point struct {
	day   time.Time
	value int64
}

// series orders a cumulative "m/d/yy" keyed series by real date. Keys that do
// not parse are skipped.
func series(cumulative map[string]int64) []point {
	out := make([]point, 0, len(cumulative))
	for k, v := range cumulative {
		d, err := time.Parse(dayLayout, k)
		if err != nil {
			continue
		}
		out = append(out, point{day: d, value: v})
	}
	slices.SortFunc(out, func(a, b point) int { return a.day.Compare(b.day) })
	return out
}

// dailyNew converts a cumulative series into per-day increases. The first
// point is the baseline and produces no delta. Downward corrections count as
// zero.
func dailyNew(points []point) map[time.Time]int64 {
	out := make(map[time.Time]int64, len(points))
	for i := 1; i < len(points); i++ {
		out[points[i].day] = max(0, points[i].value-points[i-1].value)
	}
	return out
}

// lastDays joins the case and death deltas on the case series dates and keeps
// the most recent n days.
func lastDays(cases, deaths map[string]int64, n int) []domain.DailyDelta {
	casePoints := series(cases)
	newCases := dailyNew(casePoints)
	newDeaths := dailyNew(series(deaths))

	out := make([]domain.DailyDelta, 0, len(newCases))
	for _, p := range casePoints {
		v, ok := newCases[p.day]
		if !ok {
			continue
		}
		out = append(out, domain.DailyDelta{
			Date:      p.day.Format(isoDate),
			NewCases:  v,
			NewDeaths: newDeaths[p.day],
		})
	}
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: req.URL.Path, Body: string(raw)}
	}
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
