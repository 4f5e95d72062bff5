package amadeus

import (
	"cmp"
	"context"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"travel-agent/internal/domain"
)

const (
	flightOffersPath = "/v2/shopping/flight-offers"
	maxFlightOffers  = 15
)

type flightOffersResponse struct {
	Data []struct {
		Price struct {
			GrandTotal string `json:"grandTotal"`
		} `json:"price"`
		Itineraries []struct {
			Segments []struct {
				CarrierCode string `json:"carrierCode"`
				Number      string `json:"number"`
				Departure   struct {
					At string `json:"at"`
				} `json:"departure"`
				Arrival struct {
					At string `json:"at"`
				} `json:"arrival"`
			} `json:"segments"`
		} `json:"itineraries"`
	} `json:"data"`
}

// SearchFlights returns one-adult economy offers in INR, cheapest first.
// Offers without a parseable price are dropped.
func (c *Client) SearchFlights(ctx context.Context, origin, destination, date string) ([]domain.FlightOffer, error) {
	o, err := c.ResolveIATA(ctx, domain.SlotOrigin, origin)
	if err != nil {
		return nil, err
	}
	d, err := c.ResolveIATA(ctx, domain.SlotDestination, destination)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("originLocationCode", o)
	q.Set("destinationLocationCode", d)
	q.Set("departureDate", date)
	q.Set("adults", "1")
	q.Set("currencyCode", currencyINR)
	q.Set("max", strconv.Itoa(maxFlightOffers))

	var resp flightOffersResponse
	if err := c.getJSON(ctx, flightOffersPath, q, &resp); err != nil {
		return nil, fmt.Errorf("amadeus: search flights %s-%s: %w", o, d, err)
	}

	out := make([]domain.FlightOffer, 0, len(resp.Data))
	for _, off := range resp.Data {
		price, err := strconv.ParseFloat(strings.TrimSpace(off.Price.GrandTotal), 64)
		if err != nil {
			continue
		}
		offer := domain.FlightOffer{
			Origin:      o,
			Destination: d,
			Date:        date,
			Price:       price,
		}
		if len(off.Itineraries) > 0 && len(off.Itineraries[0].Segments) > 0 {
			seg := off.Itineraries[0].Segments[0]
			offer.Airline = seg.CarrierCode
			if seg.CarrierCode != "" && seg.Number != "" {
				offer.FlightNo = seg.CarrierCode + seg.Number
			}
			offer.Depart = seg.Departure.At
			offer.Arrive = seg.Arrival.At
		}
		out = append(out, offer)
	}
	slices.SortStableFunc(out, func(a, b domain.FlightOffer) int { return cmp.Compare(a.Price, b.Price) })
	return out, nil
}
