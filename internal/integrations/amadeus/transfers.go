package amadeus

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"travel-agent/internal/domain"
)

const (
	transferOffersPath = "/v1/shopping/transfer-offers"
	transferPrivate    = "PRIVATE"
	defaultVendor      = "Transfer"
	defaultVehicle     = "Car"
)

type transferRequest struct {
	StartLocationCode string `json:"startLocationCode"`
	EndLocationCode   string `json:"endLocationCode"`
	TransferType      string `json:"transferType"`
	StartDateTime     string `json:"startDateTime"`
	Passengers        int    `json:"passengers"`
	Currency          string `json:"currency"`
}

type amount struct {
	MonetaryAmount json.RawMessage `json:"monetaryAmount"`
}

type transferOffersResponse struct {
	Data []struct {
		Quotation struct {
			amount
			Base  *amount `json:"base"`
			Total *amount `json:"total"`
		} `json:"quotation"`
		Vehicle struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"vehicle"`
		ServiceProvider struct {
			Name string `json:"name"`
		} `json:"serviceProvider"`
	} `json:"data"`
}

// value reads monetaryAmount, which the API sends as a string or a number.
func (a *amount) value() (float64, bool) {
	if a == nil || len(a.MonetaryAmount) == 0 {
		return 0, false
	}
	raw := strings.Trim(strings.TrimSpace(string(a.MonetaryAmount)), `"`)
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// SearchCabs prices a private transfer between two free-text locations for
// one passenger, tomorrow at 10:00 UTC. Both ends are resolved to IATA codes
// first; an unknown location yields *domain.UnresolvedLocationError.
func (c *Client) SearchCabs(ctx context.Context, pickup, dropoff string) ([]domain.CabOffer, error) {
	start, err := c.ResolveIATA(ctx, domain.SlotPickup, pickup)
	if err != nil {
		return nil, err
	}
	end, err := c.ResolveIATA(ctx, domain.SlotDropoff, dropoff)
	if err != nil {
		return nil, err
	}

	body := transferRequest{
		StartLocationCode: start,
		EndLocationCode:   end,
		TransferType:      transferPrivate,
		StartDateTime:     transferStart(c.now()),
		Passengers:        1,
		Currency:          currencyINR,
	}
	var resp transferOffersResponse
	if err := c.postJSON(ctx, transferOffersPath, body, &resp); err != nil {
		return nil, fmt.Errorf("amadeus: transfer offers %s-%s: %w", start, end, err)
	}

	out := make([]domain.CabOffer, 0, len(resp.Data))
	for _, off := range resp.Data {
		fare, ok := off.Quotation.value()
		if !ok {
			fare, ok = off.Quotation.Base.value()
		}
		if !ok {
			fare, ok = off.Quotation.Total.value()
		}
		if !ok {
			continue
		}

		vendor := cmp.Or(strings.TrimSpace(off.ServiceProvider.Name), defaultVendor)
		vehicle := cmp.Or(strings.TrimSpace(off.Vehicle.Code), strings.TrimSpace(off.Vehicle.Description), defaultVehicle)
		out = append(out, domain.CabOffer{
			Vendor:  vendor,
			Type:    vehicle,
			Pickup:  pickup,
			Dropoff: dropoff,
			Fare:    fare,
		})
	}
	slices.SortStableFunc(out, func(a, b domain.CabOffer) int { return cmp.Compare(a.Fare, b.Fare) })
	return out, nil
}

// transferStart is 10:00 UTC on the day after now.
func transferStart(now time.Time) string {
	d := now.UTC().AddDate(0, 0, 1)
	return time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, time.UTC).Format("2006-01-02T15:04:05")
}
