package transit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrMalformedLine    = errors.New("malformed line")
	ErrDuplicateLine    = errors.New("duplicate line id")
	ErrInvalidDeparture = errors.New("invalid departure")
)

// Line is a bus route running a fixed loop of stops.
type Line struct {
	ID           int
	Stops        []int           // loop order
	Gaps         []time.Duration // Gaps[i]: Stops[i] -> Stops[(i+1)%n], last entry closes the loop
	ServiceStart time.Duration   // time of day the first loop leaves Stops[0]
	Fare         int             // charged once per boarding
}

// Validate checks the loop invariants. Duplicate stops inside one line are
// left to the graph builder.
func (l Line) Validate() error {
	if l.ID <= 0 {
		return fmt.Errorf("%w: line id %d must be positive", ErrMalformedLine, l.ID)
	}
	if len(l.Stops) == 0 {
		return fmt.Errorf("%w: line %d has no stops", ErrMalformedLine, l.ID)
	}
	if len(l.Stops) != len(l.Gaps) {
		return fmt.Errorf("%w: line %d has %d stops but %d gaps", ErrMalformedLine, l.ID, len(l.Stops), len(l.Gaps))
	}
	for _, s := range l.Stops {
		if s < 0 {
			return fmt.Errorf("%w: line %d serves negative stop %d", ErrMalformedLine, l.ID, s)
		}
	}
	for i, g := range l.Gaps {
		if g < 0 {
			return fmt.Errorf("%w: line %d gap %d is negative (%s)", ErrMalformedLine, l.ID, i, g)
		}
	}
	if l.LoopDuration() <= 0 {
		return fmt.Errorf("%w: line %d loop duration must be positive", ErrMalformedLine, l.ID)
	}
	if l.ServiceStart < 0 {
		return fmt.Errorf("%w: line %d service start is negative", ErrMalformedLine, l.ID)
	}
	if l.Fare < 0 {
		return fmt.Errorf("%w: line %d fare is negative", ErrMalformedLine, l.ID)
	}
	return nil
}

// LoopDuration is the time one vehicle needs to run the whole loop.
func (l Line) LoopDuration() time.Duration {
	var total time.Duration
	for _, g := range l.Gaps {
		total += g
	}
	return total
}

// ValidateLines validates every line and rejects repeated line IDs.
func ValidateLines(lines []Line) error {
	seen := make(map[int]bool, len(lines))
	for _, l := range lines {
		if err := l.Validate(); err != nil {
			return err
		}
		if seen[l.ID] {
			return fmt.Errorf("%w: %d", ErrDuplicateLine, l.ID)
		}
		seen[l.ID] = true
	}
	return nil
}

// Departure is a single route request.
type Departure struct {
	From int           `json:"from"`
	To   int           `json:"to"`
	At   time.Duration `json:"at"` // time of day
}

// Validate rejects times before midnight. From == To is a valid request:
// it asks for the next vehicle leaving the stop.
func (d Departure) Validate() error {
	if d.At < 0 {
		return fmt.Errorf("%w: negative departure time", ErrInvalidDeparture)
	}
	return nil
}

// ParseClock parses HH:MM or HH:MM:SS into an offset from midnight.
func ParseClock(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	var fields [3]int
	for i, p := range parts {
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid time of day %q", s)
		}
		fields[i] = v
	}
	if fields[1] > 59 || fields[2] > 59 {
		return 0, fmt.Errorf("invalid time of day %q", s)
	}
	return time.Duration(fields[0])*time.Hour + time.Duration(fields[1])*time.Minute + time.Duration(fields[2])*time.Second, nil
}

// FormatClock renders an offset from midnight as HH:MM, or HH:MM:SS when
// seconds are present. Hours are not wrapped at 24.
func FormatClock(d time.Duration) string {
	neg := d < 0
	if neg {
		d = -d
	}
	d = d.Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d % time.Hour / time.Minute)
	sec := int(d % time.Minute / time.Second)
	out := fmt.Sprintf("%02d:%02d", h, m)
	if sec != 0 {
		out += fmt.Sprintf(":%02d", sec)
	}
	if neg {
		out = "-" + out
	}
	return out
}
