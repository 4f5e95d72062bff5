package amadeus

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/elliotchance/pie/v2"

	"travel-agent/internal/domain"
)

const (
	hotelsByCityPath = "/v1/reference-data/locations/hotels/by-city"
	hotelOffersPath  = "/v3/shopping/hotel-offers"
	maxHotelIDs      = 15
	isoDate          = "2006-01-02"
)

// flexString accepts a JSON string or number. Ratings come back as either.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(b)
	return nil
}

type hotelRef struct {
	HotelID string `json:"hotelId"`
}

type hotelsByCityResponse struct {
	Data []hotelRef `json:"data"`
}

type hotelOffersResponse struct {
	Data []struct {
		Hotel struct {
			HotelID     string     `json:"hotelId"`
			Name        string     `json:"name"`
			Rating      flexString `json:"rating"`
			HotelRating flexString `json:"hotelRating"`
		} `json:"hotel"`
		Offers []struct {
			ID    string `json:"id"`
			Price struct {
				Total string `json:"total"`
			} `json:"price"`
		} `json:"offers"`
	} `json:"data"`
}

// SearchHotels lists hotels in city, prices them for the stay and returns
// the cheapest offer per hotel, cheapest first. PricePerNight is the stay
// total divided by the number of nights.
func (c *Client) SearchHotels(ctx context.Context, city, checkin, checkout string) ([]domain.HotelOffer, error) {
	cityCode, err := c.ResolveIATA(ctx, domain.SlotCity, city)
	if err != nil {
		return nil, err
	}

	var byCity hotelsByCityResponse
	if err := c.getJSON(ctx, hotelsByCityPath, url.Values{"cityCode": {cityCode}}, &byCity); err != nil {
		return nil, fmt.Errorf("amadeus: list hotels in %s: %w", cityCode, err)
	}
	ids := pie.Filter(
		pie.Map(byCity.Data, func(h hotelRef) string { return h.HotelID }),
		func(id string) bool { return id != "" },
	)
	if len(ids) > maxHotelIDs {
		ids = ids[:maxHotelIDs]
	}
	if len(ids) == 0 {
		return nil, nil
	}

	q := url.Values{}
	q.Set("hotelIds", strings.Join(ids, ","))
	q.Set("adults", "1")
	q.Set("checkInDate", checkin)
	q.Set("checkOutDate", checkout)

	var resp hotelOffersResponse
	if err := c.getJSON(ctx, hotelOffersPath, q, &resp); err != nil {
		return nil, fmt.Errorf("amadeus: hotel offers in %s: %w", cityCode, err)
	}

	n := nights(checkin, checkout)
	out := make([]domain.HotelOffer, 0, len(resp.Data))
	for _, h := range resp.Data {
		var (
			best    float64
			offerID string
			found   bool
		)
		for _, off := range h.Offers {
			p, err := strconv.ParseFloat(strings.TrimSpace(off.Price.Total), 64)
			if err != nil {
				continue
			}
			if !found || p < best {
				best, offerID, found = p, off.ID, true
			}
		}
		if !found {
			continue
		}

		rating := string(h.Hotel.Rating)
		if rating == "" {
			rating = string(h.Hotel.HotelRating)
		}
		out = append(out, domain.HotelOffer{
			Name:          h.Hotel.Name,
			City:          cityCode,
			HotelID:       h.Hotel.HotelID,
			Rating:        rating,
			PriceTotal:    best,
			PricePerNight: math.Round(best/float64(n)*100) / 100,
			OfferID:       offerID,
		})
	}
	slices.SortStableFunc(out, func(a, b domain.HotelOffer) int { return cmp.Compare(a.PriceTotal, b.PriceTotal) })
	return out, nil
}

// nights is at least one, also for unparseable dates.
func nights(checkin, checkout string) int {
	in, err := time.Parse(isoDate, checkin)
	if err != nil {
		return 1
	}
	out, err := time.Parse(isoDate, checkout)
	if err != nil {
		return 1
	}
	return max(1, int(out.Sub(in).Hours()/24))
}
