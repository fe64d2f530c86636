package route

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"bus-router/internal/transit"
)

var ErrSameLineTransfer = errors.New("line visits stop more than once")

// NodeID identifies a stop as served by one line.
type NodeID struct {
	Line int `json:"line"`
	Stop int `json:"stop"`
}

// Origin is the virtual start of every trip.
var Origin = NodeID{Line: -1, Stop: -1}

func (n NodeID) IsOrigin() bool { return n == Origin }

func (n NodeID) String() string {
	if n.IsOrigin() {
		return "origin"
	}
	return fmt.Sprintf("line %d/stop %d", n.Line, n.Stop)
}

func nodeLess(a, b NodeID) bool {
	if a.Line != b.Line {
		return a.Line < b.Line
	}
	return a.Stop < b.Stop
}

type EdgeKind int

const (
	InLine EdgeKind = iota
	Transfer
	Boarding
)

func (k EdgeKind) String() string {
	switch k {
	case InLine:
		return "in_line"
	case Transfer:
		return "transfer"
	case Boarding:
		return "boarding"
	default:
		return "unknown"
	}
}

// Edge is a directed connection out of a node. Duration is the scheduled
// gap for in-line edges and zero otherwise; the real cost of every edge is
// priced at search time by the Calculator.
type Edge struct {
	To       NodeID
	Kind     EdgeKind
	Duration time.Duration
	Fare     int
}

// Graph is the node/edge structure for one origin stop. It is read-only once
// built.
type Graph struct {
	originStop int
	nodes      []NodeID
	edges      map[NodeID][]Edge
	byStop     map[int][]NodeID
	edgeCount  int
}

// BuildGraph wires in-line, transfer and boarding edges for lines and breaks
// every loop at originStop.
func BuildGraph(lines []transit.Line, originStop int) (*Graph, error) {
	if err := transit.ValidateLines(lines); err != nil {
		return nil, err
	}
	g := &Graph{
		originStop: originStop,
		edges:      make(map[NodeID][]Edge),
		byStop:     make(map[int][]NodeID),
	}
	fares := make(map[int]int, len(lines))

	for _, l := range lines {
		fares[l.ID] = l.Fare
		for _, s := range l.Stops {
			id := NodeID{Line: l.ID, Stop: s}
			if _, dup := g.edges[id]; dup {
				return nil, fmt.Errorf("%w: line %d, stop %d", ErrSameLineTransfer, l.ID, s)
			}
			g.edges[id] = nil
			g.nodes = append(g.nodes, id)
			g.byStop[s] = append(g.byStop[s], id)
		}
	}
	sort.Slice(g.nodes, func(i, j int) bool { return nodeLess(g.nodes[i], g.nodes[j]) })
	for s := range g.byStop {
		ns := g.byStop[s]
		sort.Slice(ns, func(i, j int) bool { return nodeLess(ns[i], ns[j]) })
	}

	for _, l := range lines {
		n := len(l.Stops)
		for i := 0; i < n; i++ {
			from := NodeID{Line: l.ID, Stop: l.Stops[i]}
			to := NodeID{Line: l.ID, Stop: l.Stops[(i+1)%n]}
			if to.Stop == originStop {
				continue
			}
			g.add(from, Edge{To: to, Kind: InLine, Duration: l.Gaps[i]})
		}
	}

	// Boarding from origin only happens through the Origin node, so the
	// origin stop gets no transfer edges.
	for _, id := range g.byStop[originStop] {
		g.add(Origin, Edge{To: id, Kind: Boarding, Fare: fares[id.Line]})
	}

	stops := make([]int, 0, len(g.byStop))
	for s := range g.byStop {
		stops = append(stops, s)
	}
	sort.Ints(stops)
	for _, s := range stops {
		if s == originStop {
			continue
		}
		group := g.byStop[s]
		for _, a := range group {
			for _, b := range group {
				if a == b {
					continue
				}
				g.add(a, Edge{To: b, Kind: Transfer, Fare: fares[b.Line]})
			}
		}
	}
	return g, nil
}

func (g *Graph) add(from NodeID, e Edge) {
	g.edges[from] = append(g.edges[from], e)
	g.edgeCount++
}

// Nodes lists every line node in (line, stop) order. Origin is not included.
func (g *Graph) Nodes() []NodeID {
	out := make([]NodeID, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Edges returns the outgoing edges of n in construction order.
func (g *Graph) Edges(n NodeID) []Edge { return g.edges[n] }

// NodesAt returns the nodes for a physical stop.
func (g *Graph) NodesAt(stop int) []NodeID {
	out := make([]NodeID, len(g.byStop[stop]))
	copy(out, g.byStop[stop])
	return out
}

func (g *Graph) OriginStop() int { return g.originStop }

func (g *Graph) EdgeCount() int { return g.edgeCount }
