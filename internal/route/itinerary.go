package route

import (
	"time"

	"bus-router/internal/transit"
)

// Leg is one visited node of an itinerary. Fare is the amount charged on
// arrival at this node, not the running total.
type Leg struct {
	Node    NodeID        `json:"node"`
	Arrival time.Duration `json:"arrival"`
	Fare    int           `json:"fare"`
}

// Itinerary is an ordered trip from the origin (exclusive) to the
// destination (inclusive). An itinerary without legs means no route exists.
type Itinerary struct {
	Objective string            `json:"objective"`
	Departure transit.Departure `json:"departure"`
	Legs      []Leg             `json:"legs"`
}

func (it Itinerary) Empty() bool { return len(it.Legs) == 0 }

func (it Itinerary) TotalFare() int {
	total := 0
	for _, l := range it.Legs {
		total += l.Fare
	}
	return total
}

// Arrival is the time of day the destination is reached.
func (it Itinerary) Arrival() time.Duration {
	if it.Empty() {
		return 0
	}
	return it.Legs[len(it.Legs)-1].Arrival
}

// TotalTime is the elapsed time from the requested departure to arrival.
func (it Itinerary) TotalTime() time.Duration {
	if it.Empty() {
		return 0
	}
	return it.Arrival() - it.Departure.At
}

// Boardings counts how many times a fare-charging vehicle is entered.
func (it Itinerary) Boardings() int {
	n := 0
	prev := -1
	for _, l := range it.Legs {
		if l.Node.Line != prev {
			n++
			prev = l.Node.Line
		}
	}
	return n
}

// Itinerary backtracks predecessors from node to Origin. A node that was
// never settled yields an empty itinerary.
func (r *Result) Itinerary(node NodeID) Itinerary {
	it := Itinerary{Objective: r.objective.Name, Departure: r.departure}
	if node.IsOrigin() || r.labels[node].State != Settled {
		return it
	}

	var chain []NodeID
	for cur := node; !cur.IsOrigin(); cur = r.labels[cur].Pred {
		if len(chain) > len(r.labels) {
			// predecessor cycle; labels are corrupt
			return it
		}
		chain = append(chain, cur)
	}

	it.Legs = make([]Leg, 0, len(chain))
	prevFare := 0
	for i := len(chain) - 1; i >= 0; i-- {
		l := r.labels[chain[i]]
		it.Legs = append(it.Legs, Leg{Node: chain[i], Arrival: l.Arrival, Fare: l.Fare - prevFare})
		prevFare = l.Fare
	}
	return it
}
