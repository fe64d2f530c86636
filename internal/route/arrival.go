package route

import (
	"errors"
	"fmt"
	"time"

	"bus-router/internal/transit"
)

var (
	ErrUnknownLine   = errors.New("unknown line")
	ErrStopNotOnLine = errors.New("stop not served by line")
)

// loop holds the precomputed timetable of one line.
type loop struct {
	line   transit.Line
	prefix []time.Duration // prefix[i]: travel time from Stops[0] to Stops[i]; prefix[n] is the loop duration
	index  map[int]int     // stop -> position in Stops
}

// Calculator answers "how long until line L next reaches stop s" for a
// traveler ready at a given time of day. It is immutable after construction
// and safe to share between searches.
type Calculator struct {
	loops map[int]*loop
}

func NewCalculator(lines []transit.Line) (*Calculator, error) {
	if err := transit.ValidateLines(lines); err != nil {
		return nil, err
	}
	c := &Calculator{loops: make(map[int]*loop, len(lines))}
	for _, l := range lines {
		lp := &loop{
			line:   l,
			prefix: make([]time.Duration, len(l.Gaps)+1),
			index:  make(map[int]int, len(l.Stops)),
		}
		for i := 1; i < len(lp.prefix); i++ {
			lp.prefix[i] = lp.prefix[i-1] + l.Gaps[i-1]
		}
		for i, s := range l.Stops {
			if _, dup := lp.index[s]; !dup {
				lp.index[s] = i
			}
		}
		c.loops[l.ID] = lp
	}
	return c, nil
}

// Lines returns the number of registered lines.
func (c *Calculator) Lines() int { return len(c.loops) }

// Wait returns the time from at until the next visit of line lineID to stop.
func (c *Calculator) Wait(lineID, stop int, at time.Duration) (time.Duration, error) {
	lp, ok := c.loops[lineID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownLine, lineID)
	}
	idx, ok := lp.index[stop]
	if !ok {
		return 0, fmt.Errorf("%w: line %d, stop %d", ErrStopNotOnLine, lineID, stop)
	}
	offset := lp.prefix[idx]
	start := lp.line.ServiceStart

	// Before service opens the first loop is the only candidate.
	if at < start {
		return start - at + offset, nil
	}

	period := lp.prefix[len(lp.prefix)-1]
	elapsed := at - start
	lesser := (elapsed/period)*period + offset - elapsed
	if lesser >= 0 {
		return lesser, nil
	}
	// Already passed in the current loop; elapsed is not a multiple of the
	// period here, so the ceiling is exactly one loop later.
	return lesser + period, nil
}
