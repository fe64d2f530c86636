package route

import (
	"container/heap"
	"errors"
	"fmt"
	"time"

	"bus-router/internal/transit"
)

var ErrSearchDiverged = errors.New("search did not converge")

// State is the lifecycle of a node label within one search.
type State int

const (
	Unvisited State = iota
	Labeled
	Settled
)

func (s State) String() string {
	switch s {
	case Unvisited:
		return "unvisited"
	case Labeled:
		return "labeled"
	case Settled:
		return "settled"
	default:
		return "unknown"
	}
}

// Label is the best known way to reach a node.
type Label struct {
	Fare    int
	Arrival time.Duration // time of day
	Pred    NodeID
	State   State
}

// Objective decides which of two labels is better. Less must be a strict
// weak order that is preserved when both labels are extended by the same
// edge, otherwise label-setting is not optimal.
type Objective struct {
	Name string
	Less func(a, b Label) bool
}

// Cheapest minimizes fare, then arrival.
var Cheapest = Objective{
	Name: "cheapest",
	Less: func(a, b Label) bool {
		if a.Fare != b.Fare {
			return a.Fare < b.Fare
		}
		return a.Arrival < b.Arrival
	},
}

// Fastest minimizes arrival, then fare.
var Fastest = Objective{
	Name: "fastest",
	Less: func(a, b Label) bool {
		if a.Arrival != b.Arrival {
			return a.Arrival < b.Arrival
		}
		return a.Fare < b.Fare
	},
}

// Objectives lists the objectives a plan is computed for, in print order.
var Objectives = []Objective{Fastest, Cheapest}

// Result holds the labels of one finished search.
type Result struct {
	objective Objective
	departure transit.Departure
	labels    map[NodeID]Label
	settled   int
}

// Search runs a label-setting search from Origin over g. Edge costs are
// priced lazily against the settled arrival time of the node being expanded.
// The search stops as soon as a node at dep.To is settled. An unreachable
// destination is not an error.
func Search(g *Graph, calc *Calculator, obj Objective, dep transit.Departure) (*Result, error) {
	s := &searcher{
		graph:  g,
		calc:   calc,
		obj:    obj,
		labels: make(map[NodeID]Label, len(g.nodes)+1),
	}
	s.labels[Origin] = Label{Arrival: dep.At, Pred: Origin, State: Settled}
	if err := s.expand(Origin); err != nil {
		return nil, err
	}

	// Each edge is relaxed at most once per settled tail, so the queue can
	// never receive more entries than there are edges.
	maxPops := g.EdgeCount() + 1
	pops := 0
	settled := 0
	for s.queue.Len() > 0 {
		pops++
		if pops > maxPops {
			return nil, fmt.Errorf("%w after %d steps", ErrSearchDiverged, pops)
		}
		it := heap.Pop(&s.queue).(*queueItem)
		cur := s.labels[it.node]
		if cur.State == Settled || cur.Fare != it.label.Fare || cur.Arrival != it.label.Arrival {
			continue
		}
		cur.State = Settled
		s.labels[it.node] = cur
		settled++
		if it.node.Stop == dep.To {
			break
		}
		if err := s.expand(it.node); err != nil {
			return nil, err
		}
	}

	return &Result{objective: obj, departure: dep, labels: s.labels, settled: settled}, nil
}

type searcher struct {
	graph  *Graph
	calc   *Calculator
	obj    Objective
	labels map[NodeID]Label
	queue  labelQueue
}

// expand relaxes every edge out of a settled node.
func (s *searcher) expand(from NodeID) error {
	base := s.labels[from]
	for _, e := range s.graph.Edges(from) {
		next := s.labels[e.To]
		if next.State == Settled {
			continue
		}
		wait, err := s.calc.Wait(e.To.Line, e.To.Stop, base.Arrival)
		if err != nil {
			return fmt.Errorf("price %s -> %s: %w", from, e.To, err)
		}
		cand := Label{
			Fare:    base.Fare + e.Fare,
			Arrival: base.Arrival + wait,
			Pred:    from,
			State:   Labeled,
		}
		if next.State == Unvisited || s.obj.Less(cand, next) {
			s.labels[e.To] = cand
			heap.Push(&s.queue, &queueItem{node: e.To, label: cand, less: s.obj.Less})
		}
	}
	return nil
}

// Objective returns the objective the result was computed for.
func (r *Result) Objective() Objective { return r.objective }

// Departure returns the request the result answers.
func (r *Result) Departure() transit.Departure { return r.departure }

// Settled returns how many line nodes were settled.
func (r *Result) Settled() int { return r.settled }

// Label returns the label of n; unreached nodes report Unvisited.
func (r *Result) Label(n NodeID) Label { return r.labels[n] }

// Best returns the settled node at stop that is best under the objective.
// Ties fall back to node order so results are reproducible.
func (r *Result) Best(stop int) (NodeID, bool) {
	var (
		best  NodeID
		found bool
	)
	for id, l := range r.labels {
		if id.IsOrigin() || id.Stop != stop || l.State != Settled {
			continue
		}
		if !found {
			best, found = id, true
			continue
		}
		cur := r.labels[best]
		if r.objective.Less(l, cur) || (!r.objective.Less(cur, l) && nodeLess(id, best)) {
			best = id
		}
	}
	return best, found
}

// Route builds the itinerary to the departure's destination stop.
func (r *Result) Route() Itinerary {
	id, ok := r.Best(r.departure.To)
	if !ok {
		return Itinerary{Objective: r.objective.Name, Departure: r.departure}
	}
	return r.Itinerary(id)
}

type queueItem struct {
	node  NodeID
	label Label
	less  func(a, b Label) bool
}

// labelQueue is a min-heap of tentative labels. Stale entries are skipped on
// pop instead of being removed.
type labelQueue []*queueItem

func (q labelQueue) Len() int { return len(q) }

func (q labelQueue) Less(i, j int) bool {
	a, b := q[i], q[j]
	if a.less(a.label, b.label) {
		return true
	}
	if a.less(b.label, a.label) {
		return false
	}
	return nodeLess(a.node, b.node)
}

func (q labelQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *labelQueue) Push(x any) { *q = append(*q, x.(*queueItem)) }

func (q *labelQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}
