package schedule

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"bus-router/internal/transit"
)

// ParseText reads the plain schedule format:
//
//	N                  number of lines
//	K                  number of stops (informational)
//	t1 ... tN          service start per line, HH:MM[:SS]
//	f1 ... fN          fare per line
//	k s1..sk g1..gk    one row per line, gaps in minutes
//
// Line i gets ID i, counting from 1. Blank rows are ignored.
func ParseText(r io.Reader) ([]transit.Line, error) {
	type row struct {
		num    int
		fields []string
	}
	var rows []row
	sc := bufio.NewScanner(r)
	num := 0
	for sc.Scan() {
		num++
		f := strings.Fields(sc.Text())
		if len(f) == 0 {
			continue
		}
		rows = append(rows, row{num: num, fields: f})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read schedule: %w", err)
	}
	if len(rows) < 4 {
		return nil, fmt.Errorf("schedule: expected at least 4 rows, got %d", len(rows))
	}

	n, err := singleInt(rows[0].fields, rows[0].num)
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return nil, fmt.Errorf("schedule line %d: line count must be positive", rows[0].num)
	}
	if _, err := singleInt(rows[1].fields, rows[1].num); err != nil {
		return nil, err
	}

	starts := rows[2]
	if len(starts.fields) != n {
		return nil, fmt.Errorf("schedule line %d: expected %d start times, got %d", starts.num, n, len(starts.fields))
	}
	fares := rows[3]
	if len(fares.fields) != n {
		return nil, fmt.Errorf("schedule line %d: expected %d fares, got %d", fares.num, n, len(fares.fields))
	}
	if len(rows) < 4+n {
		return nil, fmt.Errorf("schedule: expected %d line rows, got %d", n, len(rows)-4)
	}

	lines := make([]transit.Line, 0, n)
	for i := 0; i < n; i++ {
		start, err := transit.ParseClock(starts.fields[i])
		if err != nil {
			return nil, fmt.Errorf("schedule line %d: %w", starts.num, err)
		}
		fare, err := strconv.Atoi(fares.fields[i])
		if err != nil {
			return nil, fmt.Errorf("schedule line %d: invalid fare %q", fares.num, fares.fields[i])
		}

		r := rows[4+i]
		ints, err := atoiAll(r.fields, r.num)
		if err != nil {
			return nil, err
		}
		k := ints[0]
		if k <= 0 || len(ints) != 2*k+1 {
			return nil, fmt.Errorf("schedule line %d: %w: row must hold a stop count k followed by k stops and k gaps", r.num, transit.ErrMalformedLine)
		}
		gaps := make([]time.Duration, k)
		for j, g := range ints[k+1:] {
			gaps[j] = time.Duration(g) * time.Minute
		}
		lines = append(lines, transit.Line{
			ID:           i + 1,
			Stops:        append([]int(nil), ints[1:k+1]...),
			Gaps:         gaps,
			ServiceStart: start,
			Fare:         fare,
		})
	}
	if err := transit.ValidateLines(lines); err != nil {
		return nil, err
	}
	return lines, nil
}

func singleInt(fields []string, num int) (int, error) {
	if len(fields) != 1 {
		return 0, fmt.Errorf("schedule line %d: expected a single number", num)
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, fmt.Errorf("schedule line %d: invalid number %q", num, fields[0])
	}
	return v, nil
}

func atoiAll(fields []string, num int) ([]int, error) {
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("schedule line %d: invalid number %q", num, f)
		}
		out[i] = v
	}
	return out, nil
}
