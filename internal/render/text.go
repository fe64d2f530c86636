package render

import (
	"fmt"
	"io"
	"strings"

	"bus-router/internal/route"
	"bus-router/internal/transit"
)

// Text writes a human readable itinerary: one header per boarded bus, one
// line per visited stop and the trip totals.
func Text(w io.Writer, it route.Itinerary) error {
	_, err := io.WriteString(w, String(it))
	return err
}

func String(it route.Itinerary) string {
	if it.Empty() {
		return "Cannot find such route\n"
	}

	var sb strings.Builder
	currentLine := -1
	for _, leg := range it.Legs {
		if leg.Node.Line != currentLine {
			currentLine = leg.Node.Line
			fmt.Fprintf(&sb, "Take a seat on bus %d. It will cost you %d\n", currentLine, leg.Fare)
		}
		fmt.Fprintf(&sb, "You're at stop number %d. The bus arrives - %s\n", leg.Node.Stop, transit.FormatClock(leg.Arrival))
	}
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Total money spent: %d\n", it.TotalFare())
	fmt.Fprintf(&sb, "Total time spent: %s\n", transit.FormatClock(it.TotalTime()))
	return sb.String()
}

// Summary is a single-line description used in logs.
func Summary(it route.Itinerary) string {
	if it.Empty() {
		return fmt.Sprintf("%s: no route %d -> %d", it.Objective, it.Departure.From, it.Departure.To)
	}
	return fmt.Sprintf("%s: %d -> %d, arrive %s, fare %d, %d legs, %d boardings",
		it.Objective, it.Departure.From, it.Departure.To,
		transit.FormatClock(it.Arrival()), it.TotalFare(), len(it.Legs), it.Boardings())
}
