// Package mockcabs quotes cab fares without calling any provider. Quotes are
// derived from the route text, so the same route always prices the same.
package mockcabs

import (
	"cmp"
	"context"
	"hash/fnv"
	"slices"
	"strings"

	"travel-agent/internal/domain"
)

var (
	vendors = []string{"Uber", "Ola", "BluSmart"}
	types   = []string{"Mini", "Sedan", "SUV"}

	surcharge = map[string]float64{"Mini": 0, "Sedan": 200, "SUV": 450}
)

const (
	minFare  = 180
	fareSpan = 1020
	minETA   = 3
	etaSpan  = 10
)

type Provider struct{}

func New() *Provider {
	return &Provider{}
}

// SearchCabs returns one quote per vendor and vehicle type, cheapest first.
func (p *Provider) SearchCabs(ctx context.Context, pickup, dropoff string) ([]domain.CabOffer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	route := strings.ToLower(strings.TrimSpace(pickup)) + "|" + strings.ToLower(strings.TrimSpace(dropoff))

	out := make([]domain.CabOffer, 0, len(vendors)*len(types))
	for _, v := range vendors {
		for _, t := range types {
			h := seed(route, v, t)
			out = append(out, domain.CabOffer{
				Vendor:     v,
				Type:       t,
				Pickup:     pickup,
				Dropoff:    dropoff,
				ETAMinutes: minETA + int(h%etaSpan),
				Fare:       float64(minFare+int((h>>8)%fareSpan)) + surcharge[t],
			})
		}
	}
	slices.SortStableFunc(out, func(a, b domain.CabOffer) int { return cmp.Compare(a.Fare, b.Fare) })
	return out, nil
}

func seed(parts ...string) uint64 {
	h := fnv.New64a()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}
