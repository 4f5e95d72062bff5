package amadeus

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/elliotchance/pie/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"travel-agent/internal/domain"
)

const (
	locationsPath   = "/v1/reference-data/locations"
	maxLocations    = 6
	maxSuggestions  = 5
	subTypeAirport  = "AIRPORT"
	subTypeCity     = "CITY"
	fallbackPrefix  = 3
	airportKeyword  = "airport"
	locationSubType = subTypeAirport + "," + subTypeCity
)

// cityCodes covers the cities users name most often so they skip the
// location API entirely.
var cityCodes = map[string]string{
	"delhi":     "DEL",
	"new delhi": "DEL",
	"mumbai":    "BOM",
	"bombay":    "BOM",
	"bangalore": "BLR",
	"bengaluru": "BLR",
	"hyderabad": "HYD",
	"chennai":   "MAA",
	"kolkata":   "CCU",
	"goa":       "GOI",
}

// Location is one Airport & City Search match.
type Location struct {
	Name        string
	IATACode    string
	SubType     string
	CityName    string
	CountryCode string
}

type locationsResponse struct {
	Data []struct {
		SubType  string `json:"subType"`
		Name     string `json:"name"`
		IATACode string `json:"iataCode"`
		Address  struct {
			CityName    string `json:"cityName"`
			CountryCode string `json:"countryCode"`
		} `json:"address"`
	} `json:"data"`
}

// SearchLocations returns up to six airports or cities matching keyword.
// Entries without an IATA code are skipped.
func (c *Client) SearchLocations(ctx context.Context, keyword string) ([]Location, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, nil
	}
	q := url.Values{}
	q.Set("keyword", keyword)
	q.Set("subType", locationSubType)
	q.Set("page[limit]", fmt.Sprint(maxLocations*2))

	var resp locationsResponse
	if err := c.getJSON(ctx, locationsPath, q, &resp); err != nil {
		return nil, err
	}

	out := make([]Location, 0, maxLocations)
	for _, it := range resp.Data {
		if it.IATACode == "" {
			continue
		}
		out = append(out, Location{
			Name:        it.Name,
			IATACode:    strings.ToUpper(it.IATACode),
			SubType:     strings.ToUpper(it.SubType),
			CityName:    it.Address.CityName,
			CountryCode: strings.ToUpper(it.Address.CountryCode),
		})
		if len(out) == maxLocations {
			break
		}
	}
	return out, nil
}

// ResolveIATA maps free text to an IATA airport or city code. Well-known
// cities come from a static table, other three-letter input is taken as a code
// and anything else goes through the location API. Successful lookups are
// cached and concurrent lookups of the same text share one request.
func (c *Client) ResolveIATA(ctx context.Context, field, text string) (string, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return "", &domain.UnresolvedLocationError{Field: field, Query: text}
	}
	key := strings.ToLower(strings.Join(strings.Fields(raw), " "))
	if code, ok := cityCodes[key]; ok {
		return code, nil
	}
	if isIATACode(raw) {
		return strings.ToUpper(raw), nil
	}

	c.cacheMu.RLock()
	code, ok := c.iataCache[key]
	c.cacheMu.RUnlock()
	if ok {
		return code, nil
	}

	v, err, _ := c.lookups.Do("iata:"+key, func() (any, error) {
		return c.lookupIATA(ctx, raw, strings.Contains(key, airportKeyword))
	})
	if err != nil {
		var unresolved *domain.UnresolvedLocationError
		if errors.As(err, &unresolved) {
			return "", &domain.UnresolvedLocationError{Field: field, Query: raw, Suggestions: unresolved.Suggestions}
		}
		return "", err
	}

	code = v.(string)
	c.cacheMu.Lock()
	c.iataCache[key] = code
	c.cacheMu.Unlock()
	return code, nil
}

// lookupIATA picks the best match of a full-text search. When only the
// three-letter prefix matches anything, those matches are returned as
// suggestions instead of guessing.
func (c *Client) lookupIATA(ctx context.Context, raw string, wantsAirport bool) (string, error) {
	locs, err := c.SearchLocations(ctx, raw)
	if err != nil {
		return "", err
	}
	if len(locs) > 0 {
		return bestLocation(locs, wantsAirport).IATACode, nil
	}

	if len([]rune(raw)) > fallbackPrefix {
		prefix := string([]rune(raw)[:fallbackPrefix])
		locs, err = c.SearchLocations(ctx, prefix)
		if err != nil {
			return "", err
		}
	}
	return "", &domain.UnresolvedLocationError{Query: raw, Suggestions: suggestions(locs)}
}

// bestLocation prefers airports when the user said "airport", cities
// otherwise. Ties keep API order.
func bestLocation(locs []Location, wantsAirport bool) Location {
	score := func(l Location) int {
		first, second := subTypeCity, subTypeAirport
		if wantsAirport {
			first, second = subTypeAirport, subTypeCity
		}
		switch l.SubType {
		case first:
			return 2
		case second:
			return 1
		}
		return 0
	}
	best := locs[0]
	for _, l := range locs[1:] {
		if score(l) > score(best) {
			best = l
		}
	}
	return best
}

func suggestions(locs []Location) []domain.LocationSuggestion {
	out := pie.Map(locs, func(l Location) domain.LocationSuggestion {
		return domain.LocationSuggestion{
			Name:        displayName(l.Name),
			Code:        l.IATACode,
			CountryCode: l.CountryCode,
		}
	})
	if len(out) > maxSuggestions {
		out = out[:maxSuggestions]
	}
	return out
}

// ResolveCountry finds the country of a destination through the location API
// and names it in English.
func (c *Client) ResolveCountry(ctx context.Context, query string) (domain.Country, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return domain.Country{}, domain.ErrLocationNotFound
	}
	v, err, _ := c.lookups.Do("country:"+strings.ToLower(query), func() (any, error) {
		locs, err := c.SearchLocations(ctx, query)
		if err != nil {
			return domain.Country{}, err
		}
		for _, l := range locs {
			if l.CountryCode != "" {
				return domain.Country{Code: l.CountryCode, Name: CountryName(l.CountryCode)}, nil
			}
		}
		return domain.Country{}, fmt.Errorf("amadeus: country of %q: %w", query, domain.ErrLocationNotFound)
	})
	if err != nil {
		return domain.Country{}, err
	}
	return v.(domain.Country), nil
}

// CountryName returns the English name of an ISO 3166-1 alpha-2 code, or ""
// when the code is not a known region.
func CountryName(code string) string {
	region, err := language.ParseRegion(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		return ""
	}
	return display.English.Regions().Name(region)
}

func displayName(name string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(name)))
}

func isIATACode(s string) bool {
	if len(s) != 3 {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
