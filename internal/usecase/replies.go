package usecase

import (
	"fmt"
	"strconv"
	"strings"

	"travel-agent/internal/domain"
)

const (
	replyOpenEnded = "Okay 👍 Anything else you'd like to search (flights/hotels/cabs/covid)?"
	replyClarify   = "Can you clarify what you'd like to search: flights, hotels, cabs or COVID updates?"
	replyRephrase  = "Sorry, I didn't catch that. Can you rephrase? I can search flights, hotels, cabs or COVID updates."

	reaskHotelOrHealth = "Please reply with: hotel / covid / no."
	reaskYesNo         = "Please reply with: yes / no."
	reaskCheckout      = "Please enter the check-out date (for example 2026-01-20)."
	reaskLocation      = "Please reply with the correct location."

	questionOrigin      = "Which city are you flying from?"
	questionDestination = "Where would you like to fly to?"
	questionDate        = "What date would you like to travel? (YYYY-MM-DD)"
	questionCity        = "Which city would you like to book the hotel in?"
	questionCheckin     = "What is your check-in date?"
	questionCheckout    = "Please enter last day of your stay (check-out date)."
	questionPickup      = "Where should the cab pick you up from? (Example: 'Mumbai Airport' or 'BOM')"
	questionDropoff     = "Which hotel/area/address is your drop-off? (Example: 'Courtyard Mumbai Airport' or 'BOM' or full address)"
	questionCountry     = "I couldn't infer the destination country. Please tell me the country name for COVID updates."

	questionHotelOrHealth    = "Hotel or COVID updates?"
	questionCabOffer         = "Do you want to arrange transport from airport to hotel?"
	questionHotelAfterHealth = "Do you want to book a hotel as well? (Yes/No)"
	questionAnythingElse     = "Anything else you want to add?"
	questionWhichHotel       = "Which hotel should the cab drop you at?"
)

func checkoutBeforeCheckin(checkin string) string {
	return fmt.Sprintf("Check-out must be after check-in (%s). %s", checkin, questionCheckout)
}

func hotelSelectionQuestion(candidates []string) string {
	if len(candidates) == 0 {
		return questionWhichHotel + " Reply with the hotel name or address."
	}
	return questionWhichHotel + "\n" + numbered(candidates) + "\n\nReply with a number or the hotel name."
}

func dropoffQuestion(candidates []string) string {
	if len(candidates) == 0 {
		return questionDropoff
	}
	return questionDropoff + "\n" + numbered(candidates)
}

func numbered(items []string) string {
	lines := make([]string, len(items))
	for i, it := range items {
		lines[i] = fmt.Sprintf("%d) %s", i+1, it)
	}
	return strings.Join(lines, "\n")
}

func formatINR(v float64) string {
	return "₹" + strconv.FormatFloat(v, 'f', -1, 64)
}

func flightsFound(origin, dest, date string, best domain.FlightOffer) string {
	return fmt.Sprintf(
		"Here are flights from %s to %s on %s (cheapest first).\n"+
			"Cheapest: %s %s %s (%s → %s).\n\n"+
			"What would you like next?\n"+
			"1) Book a hotel\n"+
			"2) See COVID updates for your destination country\n\n"+
			"Reply with: hotel / covid / or no",
		origin, dest, date, best.Airline, best.FlightNo, formatINR(best.Price), best.Depart, best.Arrive,
	)
}

func hotelsFound(city, checkin, checkout string, best domain.HotelOffer) string {
	name := best.Name
	if name == "" {
		name = "Unknown Hotel"
	}
	var price string
	switch {
	case best.PricePerNight > 0 && best.PriceTotal > 0:
		price = fmt.Sprintf("%s/night (%s total)", formatINR(best.PricePerNight), formatINR(best.PriceTotal))
	case best.PriceTotal > 0:
		price = formatINR(best.PriceTotal) + " total"
	default:
		price = "Price unavailable"
	}
	rating := ""
	if best.Rating != "" {
		rating = fmt.Sprintf(" (⭐ %s)", best.Rating)
	}
	return fmt.Sprintf(
		"Here are hotels in %s from %s to %s (cheapest first).\nCheapest: %s %s%s.\n\n%s",
		city, checkin, checkout, name, price, rating, questionCabOffer,
	)
}

func cabsFound(pickup, dropoff string, best domain.CabOffer) string {
	return fmt.Sprintf(
		"Transfer options from %s to %s (cheapest first).\nCheapest: %s %s %s.\n\n"+
			"Anything else you want to add (flights/hotels/cabs/covid)?",
		pickup, dropoff, best.Vendor, best.Type, formatINR(best.Fare),
	)
}

func healthFound(stats domain.HealthStats) string {
	tt := stats.Totals
	return fmt.Sprintf(
		"COVID update for %s.\nTotal cases: %d | Total deaths: %d | Active: %d\n"+
			"Today: +%d cases, +%d deaths.\n\n%s",
		stats.Country, tt.Cases, tt.Deaths, tt.Active, tt.TodayCases, tt.TodayDeaths, questionHotelAfterHealth,
	)
}

func noFlights(origin, dest, date string) string {
	return fmt.Sprintf("No flights found for %s → %s on %s. Try another date?", origin, dest, date)
}

func noHotels(city, checkin, checkout string) string {
	return fmt.Sprintf("No hotels found in %s for %s → %s. Try different dates?", city, checkin, checkout)
}

func noCabs(pickup, dropoff string) string {
	return fmt.Sprintf("No transfers found for %s → %s. Try changing pickup/dropoff?", pickup, dropoff)
}

func unresolvedLocationReply(action Action, field, query string, suggestions []domain.LocationSuggestion) string {
	if len(suggestions) > 0 {
		lines := make([]string, len(suggestions))
		for i, s := range suggestions {
			line := fmt.Sprintf("- %s (%s)", s.Name, s.Code)
			if s.CountryCode != "" {
				line += ", " + s.CountryCode
			}
			lines[i] = line
		}
		return fmt.Sprintf(
			"I couldn't find a matching %s for “%s”. Did you mean one of these?\n%s\n\nReply with the correct one.",
			field, query, strings.Join(lines, "\n"),
		)
	}

	switch {
	case action == ActionHotels:
		return fmt.Sprintf("I couldn't find the city “%s”. Please confirm the city and country/state (e.g., ‘Springfield, IL, USA’).", query)
	case action == ActionCabs && field == domain.SlotPickup:
		return fmt.Sprintf("I couldn't resolve the pickup location “%s”.\n\n"+
			"Reply with an airport/city (e.g., 'Mumbai Airport' / 'BOM') or a full pickup address.", query)
	case action == ActionCabs:
		return fmt.Sprintf("I couldn't resolve the drop-off location “%s”.\n\n"+
			"Reply with a hotel/area/airport/city (e.g., 'Taj Lands End' / 'BOM') or a full drop-off address.", query)
	}
	return fmt.Sprintf("I couldn't find a matching %s for “%s”. "+
		"Please tell me a nearby major airport/city (e.g., ‘near Surat’, ‘near Pune’).", field, query)
}

func countryNotFound(country string) string {
	return fmt.Sprintf("I couldn't find COVID data for “%s”. Which country should I check?", country)
}

func lookupFailedReply(action Action, country string, err error) string {
	switch action {
	case ActionFlights:
		return fmt.Sprintf("Flight search failed: %v. Try a different date/city.", err)
	case ActionHotels:
		return fmt.Sprintf("Hotel search failed: %v. Try another city or dates.", err)
	case ActionCabs:
		return fmt.Sprintf("Transfer search failed: %v. Try a different pickup or drop-off.", err)
	}
	return fmt.Sprintf("Sorry, I couldn't fetch COVID updates for %s. (%v) Please try again.", country, err)
}
