package domain

import "time"

// Priced is implemented by every offer a domain lookup can return.
type Priced interface {
	OfferPrice() float64
}

// Cheapest returns the minimum-price offer. Ties keep the first one in input
// order. ok is false for an empty slice.
func Cheapest[T Priced](offers []T) (best T, ok bool) {
	for i, o := range offers {
		if i == 0 || o.OfferPrice() < best.OfferPrice() {
			best = o
		}
		ok = true
	}
	return best, ok
}

type FlightOffer struct {
	Airline     string  `json:"airline"`
	FlightNo    string  `json:"flight_no"`
	Origin      string  `json:"origin"`
	Destination string  `json:"destination"`
	Date        string  `json:"date"`
	Depart      string  `json:"depart"`
	Arrive      string  `json:"arrive"`
	Price       float64 `json:"price_inr"`
}

func (o FlightOffer) OfferPrice() float64 { return o.Price }

type HotelOffer struct {
	Name          string  `json:"name"`
	City          string  `json:"city"`
	HotelID       string  `json:"hotel_id"`
	Rating        string  `json:"rating,omitempty"`
	PricePerNight float64 `json:"price_per_night_inr"`
	PriceTotal    float64 `json:"price_total_inr"`
	OfferID       string  `json:"offer_id,omitempty"`
}

func (o HotelOffer) OfferPrice() float64 { return o.PriceTotal }

type CabOffer struct {
	Vendor     string  `json:"vendor"`
	Type       string  `json:"type"`
	Pickup     string  `json:"pickup"`
	Dropoff    string  `json:"dropoff"`
	ETAMinutes int     `json:"eta_min,omitempty"`
	Fare       float64 `json:"fare_inr"`
}

func (o CabOffer) OfferPrice() float64 { return o.Fare }

// HealthTotals are the cumulative and same-day figures for a country.
type HealthTotals struct {
	Cases       int64 `json:"cases"`
	Deaths      int64 `json:"deaths"`
	Recovered   int64 `json:"recovered"`
	Active      int64 `json:"active"`
	TodayCases  int64 `json:"todayCases"`
	TodayDeaths int64 `json:"todayDeaths"`
}

// DailyDelta is one day of newly reported cases and deaths.
type DailyDelta struct {
	Date      string `json:"date"`
	NewCases  int64  `json:"new_cases"`
	NewDeaths int64  `json:"new_deaths"`
}

type HealthStats struct {
	Country    string       `json:"location"`
	Updated    time.Time    `json:"updated_utc"`
	Totals     HealthTotals `json:"totals"`
	Last14Days []DailyDelta `json:"last14_days"`
}

type FlightResults struct {
	Origin      string        `json:"origin"`
	Destination string        `json:"destination"`
	Date        string        `json:"date"`
	Offers      []FlightOffer `json:"flights"`
	Cheapest    FlightOffer   `json:"cheapest"`
}

type HotelResults struct {
	City     string       `json:"city"`
	Checkin  string       `json:"checkin"`
	Checkout string       `json:"checkout"`
	Offers   []HotelOffer `json:"hotels"`
	Cheapest HotelOffer   `json:"cheapest"`
}

type CabResults struct {
	Pickup   string     `json:"pickup"`
	Dropoff  string     `json:"dropoff"`
	Offers   []CabOffer `json:"cabs"`
	Cheapest CabOffer   `json:"cheapest"`
}

// Results keeps the last successful payload per domain, keyed by domain name
// on the wire.
type Results struct {
	Flights     *FlightResults `json:"flights,omitempty"`
	Hotels      *HotelResults  `json:"hotels,omitempty"`
	Cabs        *CabResults    `json:"cabs,omitempty"`
	HealthStats *HealthStats   `json:"covid,omitempty"`
}
