package route

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bus-router/internal/transit"
)

func plan(t *testing.T, lines []transit.Line, dep transit.Departure, obj Objective) Itinerary {
	t.Helper()
	g, err := BuildGraph(lines, dep.From)
	require.NoError(t, err)
	calc, err := NewCalculator(lines)
	require.NoError(t, err)
	res, err := Search(g, calc, obj, dep)
	require.NoError(t, err)
	return res.Route()
}

func TestSearchSingleLoop(t *testing.T) {
	lines := []transit.Line{loopLine()}
	dep := transit.Departure{From: 1, To: 3, At: clock(8, 0)}

	for _, obj := range Objectives {
		t.Run(obj.Name, func(t *testing.T) {
			it := plan(t, lines, dep, obj)
			require.Equal(t, []Leg{
				{Node: NodeID{1, 1}, Arrival: clock(8, 0), Fare: 5},
				{Node: NodeID{1, 2}, Arrival: clock(8, 10), Fare: 0},
				{Node: NodeID{1, 3}, Arrival: clock(8, 20), Fare: 0},
			}, it.Legs)
			assert.Equal(t, 5, it.TotalFare())
			assert.Equal(t, clock(8, 20), it.Arrival())
			assert.Equal(t, 20*time.Minute, it.TotalTime())
			assert.Equal(t, obj.Name, it.Objective)
		})
	}
}

func TestSearchWaitsForNextLoop(t *testing.T) {
	it := plan(t, []transit.Line{loopLine()}, transit.Departure{From: 1, To: 3, At: clock(8, 1)}, Fastest)
	require.Len(t, it.Legs, 3)
	assert.Equal(t, clock(8, 30), it.Legs[0].Arrival)
	assert.Equal(t, clock(8, 50), it.Arrival())
	assert.Equal(t, 49*time.Minute, it.TotalTime())
}

func TestSearchTransfer(t *testing.T) {
	lines := []transit.Line{
		{ID: 1, Stops: []int{1, 2}, Gaps: mins(5, 5), ServiceStart: clock(8, 0), Fare: 5},
		{ID: 2, Stops: []int{2, 3}, Gaps: mins(5, 5), ServiceStart: clock(8, 5), Fare: 3},
	}
	dep := transit.Departure{From: 1, To: 3, At: clock(8, 0)}

	for _, obj := range Objectives {
		t.Run(obj.Name, func(t *testing.T) {
			it := plan(t, lines, dep, obj)
			require.Equal(t, []Leg{
				{Node: NodeID{1, 1}, Arrival: clock(8, 0), Fare: 5},
				{Node: NodeID{1, 2}, Arrival: clock(8, 5), Fare: 0},
				{Node: NodeID{2, 2}, Arrival: clock(8, 5), Fare: 3},
				{Node: NodeID{2, 3}, Arrival: clock(8, 10), Fare: 0},
			}, it.Legs)
			assert.Equal(t, 8, it.TotalFare())
			assert.Equal(t, 10*time.Minute, it.TotalTime())
			assert.Equal(t, 2, it.Boardings())
		})
	}
}

func TestSearchObjectivesDiverge(t *testing.T) {
	lines := []transit.Line{
		{ID: 1, Stops: []int{1, 2}, Gaps: mins(5, 5), ServiceStart: clock(8, 0), Fare: 10},
		{ID: 2, Stops: []int{1, 3, 2}, Gaps: mins(10, 10, 10), ServiceStart: clock(8, 0), Fare: 2},
	}
	dep := transit.Departure{From: 1, To: 2, At: clock(8, 0)}

	fast := plan(t, lines, dep, Fastest)
	assert.Equal(t, clock(8, 5), fast.Arrival())
	assert.Equal(t, 10, fast.TotalFare())
	assert.Equal(t, 1, fast.Legs[0].Node.Line)

	cheap := plan(t, lines, dep, Cheapest)
	assert.Equal(t, clock(8, 20), cheap.Arrival())
	assert.Equal(t, 2, cheap.TotalFare())
	assert.Equal(t, []NodeID{{2, 1}, {2, 3}, {2, 2}}, []NodeID{cheap.Legs[0].Node, cheap.Legs[1].Node, cheap.Legs[2].Node})
}

func TestSearchCheapestPrefersEarlierOnTie(t *testing.T) {
	lines := []transit.Line{
		{ID: 1, Stops: []int{1, 2}, Gaps: mins(30, 30), ServiceStart: clock(8, 0), Fare: 4},
		{ID: 2, Stops: []int{1, 2}, Gaps: mins(5, 5), ServiceStart: clock(8, 0), Fare: 4},
	}
	it := plan(t, lines, transit.Departure{From: 1, To: 2, At: clock(8, 0)}, Cheapest)
	assert.Equal(t, 4, it.TotalFare())
	assert.Equal(t, clock(8, 5), it.Arrival())
}

func TestSearchNoRoute(t *testing.T) {
	lines := []transit.Line{
		loopLine(),
		{ID: 2, Stops: []int{7, 8}, Gaps: mins(5, 5), ServiceStart: clock(8, 0), Fare: 1},
	}
	for _, dep := range []transit.Departure{
		{From: 1, To: 8, At: clock(8, 0)},  // destination on a disconnected line
		{From: 1, To: 99, At: clock(8, 0)}, // destination not served at all
		{From: 42, To: 3, At: clock(8, 0)}, // origin not served
	} {
		for _, obj := range Objectives {
			it := plan(t, lines, dep, obj)
			assert.True(t, it.Empty(), "%+v %s", dep, obj.Name)
			assert.Zero(t, it.TotalFare())
			assert.Zero(t, it.TotalTime())
		}
	}
}

func TestSearchSameStopBoardsNextVehicle(t *testing.T) {
	lines := []transit.Line{
		loopLine(),
		{ID: 2, Stops: []int{1, 5}, Gaps: mins(5, 5), ServiceStart: clock(8, 0), Fare: 9},
	}
	dep := transit.Departure{From: 1, To: 1, At: clock(8, 1)}

	fast := plan(t, lines, dep, Fastest)
	require.Len(t, fast.Legs, 1)
	assert.Equal(t, Leg{Node: NodeID{2, 1}, Arrival: clock(8, 10), Fare: 9}, fast.Legs[0])
	assert.Equal(t, 9*time.Minute, fast.TotalTime())
	assert.Equal(t, 1, fast.Boardings())

	cheap := plan(t, lines, dep, Cheapest)
	require.Len(t, cheap.Legs, 1)
	assert.Equal(t, Leg{Node: NodeID{1, 1}, Arrival: clock(8, 30), Fare: 5}, cheap.Legs[0])

	// A stop no line serves stays unreachable even from itself.
	assert.True(t, plan(t, lines, transit.Departure{From: 99, To: 99, At: clock(8, 0)}, Fastest).Empty())
}

func TestSearchUnknownLine(t *testing.T) {
	lines := []transit.Line{
		loopLine(),
		{ID: 2, Stops: []int{1, 5}, Gaps: mins(5, 5), Fare: 1},
	}
	g, err := BuildGraph(lines, 1)
	require.NoError(t, err)
	calc, err := NewCalculator(lines[:1])
	require.NoError(t, err)

	_, err = Search(g, calc, Fastest, transit.Departure{From: 1, To: 5, At: clock(8, 0)})
	require.ErrorIs(t, err, ErrUnknownLine)
}

func TestSearchStopsAtDestination(t *testing.T) {
	lines := []transit.Line{{ID: 1, Stops: []int{1, 2, 3, 4, 5}, Gaps: mins(1, 1, 1, 1, 1), ServiceStart: clock(8, 0), Fare: 1}}
	g, err := BuildGraph(lines, 1)
	require.NoError(t, err)
	calc, err := NewCalculator(lines)
	require.NoError(t, err)

	res, err := Search(g, calc, Fastest, transit.Departure{From: 1, To: 3, At: clock(8, 0)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Settled())
	assert.Equal(t, Settled, res.Label(NodeID{1, 3}).State)
	assert.Equal(t, Unvisited, res.Label(NodeID{1, 5}).State)

	id, ok := res.Best(3)
	require.True(t, ok)
	assert.Equal(t, NodeID{1, 3}, id)
	_, ok = res.Best(5)
	assert.False(t, ok)
}

func TestItineraryFareDeltas(t *testing.T) {
	for seed := int64(1); seed <= 60; seed++ {
		lines, origin, at := randomNetwork(seed)
		g, err := BuildGraph(lines, origin)
		require.NoError(t, err)
		calc, err := NewCalculator(lines)
		require.NoError(t, err)

		for _, stop := range allStops(lines) {
			if stop == origin {
				continue
			}
			dep := transit.Departure{From: origin, To: stop, At: at}
			res, err := Search(g, calc, Cheapest, dep)
			require.NoError(t, err)
			id, ok := res.Best(stop)
			if !ok {
				assert.True(t, res.Route().Empty())
				continue
			}
			it := res.Itinerary(id)

			n := 0
			for cur := id; !cur.IsOrigin(); cur = res.Label(cur).Pred {
				n++
			}
			assert.Len(t, it.Legs, n)
			assert.Equal(t, res.Label(id).Fare, it.TotalFare())
			assert.Equal(t, id, it.Legs[len(it.Legs)-1].Node)
			assert.Equal(t, origin, it.Legs[0].Node.Stop)
			for _, l := range it.Legs {
				assert.GreaterOrEqual(t, l.Fare, 0)
			}
		}
	}
}

func TestItineraryOfUnreachedNode(t *testing.T) {
	res := &Result{objective: Fastest, labels: map[NodeID]Label{}}
	assert.True(t, res.Itinerary(NodeID{1, 1}).Empty())
	assert.True(t, res.Itinerary(Origin).Empty())
}

// TestSearchMatchesBruteForce compares both objectives against exhaustive
// enumeration of simple paths on small random networks.
func TestSearchMatchesBruteForce(t *testing.T) {
	for seed := int64(1); seed <= 150; seed++ {
		lines, origin, at := randomNetwork(seed)
		g, err := BuildGraph(lines, origin)
		require.NoError(t, err)
		calc, err := NewCalculator(lines)
		require.NoError(t, err)

		cheapest, fastest := bruteForce(t, g, calc, at)

		for _, stop := range allStops(lines) {
			if stop == origin {
				continue
			}
			dep := transit.Departure{From: origin, To: stop, At: at}

			res, err := Search(g, calc, Cheapest, dep)
			require.NoError(t, err)
			it := res.Route()
			want, reachable := cheapest[stop]
			require.Equal(t, reachable, !it.Empty(), "seed %d stop %d", seed, stop)
			if reachable {
				assert.Equal(t, want.Fare, it.TotalFare(), "seed %d stop %d fare", seed, stop)
				assert.Equal(t, want.Arrival, it.Arrival(), "seed %d stop %d arrival among cheapest", seed, stop)
			}

			res, err = Search(g, calc, Fastest, dep)
			require.NoError(t, err)
			it = res.Route()
			want, reachable = fastest[stop]
			require.Equal(t, reachable, !it.Empty(), "seed %d stop %d", seed, stop)
			if reachable {
				assert.Equal(t, want.Arrival, it.Arrival(), "seed %d stop %d arrival", seed, stop)
			}
		}
	}
}

// bruteForce walks every simple path from Origin and keeps, per stop, the
// lexicographically best (fare, arrival) and the earliest arrival. Two
// transfers in a row are never better than one direct transfer, so such
// paths are skipped to keep the enumeration small.
func bruteForce(t *testing.T, g *Graph, calc *Calculator, at time.Duration) (cheapest, fastest map[int]Label) {
	t.Helper()
	cheapest = map[int]Label{}
	fastest = map[int]Label{}
	visited := map[NodeID]bool{}

	var walk func(n NodeID, cur Label, lastKind EdgeKind)
	walk = func(n NodeID, cur Label, lastKind EdgeKind) {
		if !n.IsOrigin() {
			if best, ok := cheapest[n.Stop]; !ok || Cheapest.Less(cur, best) {
				cheapest[n.Stop] = cur
			}
			if best, ok := fastest[n.Stop]; !ok || cur.Arrival < best.Arrival {
				fastest[n.Stop] = cur
			}
		}
		visited[n] = true
		for _, e := range g.Edges(n) {
			if visited[e.To] || (e.Kind == Transfer && lastKind == Transfer) {
				continue
			}
			wait, err := calc.Wait(e.To.Line, e.To.Stop, cur.Arrival)
			require.NoError(t, err)
			walk(e.To, Label{Fare: cur.Fare + e.Fare, Arrival: cur.Arrival + wait}, e.Kind)
		}
		visited[n] = false
	}
	walk(Origin, Label{Arrival: at}, Boarding)
	return cheapest, fastest
}

// randomNetwork builds up to 4 lines of up to 4 distinct stops each.
func randomNetwork(seed int64) ([]transit.Line, int, time.Duration) {
	rng := rand.New(rand.NewSource(seed))
	const pool = 7
	nLines := 1 + rng.Intn(4)
	lines := make([]transit.Line, 0, nLines)
	for id := 1; id <= nLines; id++ {
		k := 1 + rng.Intn(4)
		perm := rng.Perm(pool)[:k]
		stops := make([]int, k)
		gaps := make([]time.Duration, k)
		for i := range stops {
			stops[i] = perm[i] + 1
			gaps[i] = time.Duration(rng.Intn(16)) * time.Minute
		}
		gaps[0] += time.Minute
		lines = append(lines, transit.Line{
			ID:           id,
			Stops:        stops,
			Gaps:         gaps,
			ServiceStart: clock(6, 0) + time.Duration(rng.Intn(25))*5*time.Minute,
			Fare:         1 + rng.Intn(9),
		})
	}
	origin := lines[rng.Intn(nLines)].Stops[0]
	at := clock(7, 0) + time.Duration(rng.Intn(91))*time.Minute
	return lines, origin, at
}

func allStops(lines []transit.Line) []int {
	seen := map[int]bool{}
	var out []int
	for _, l := range lines {
		for _, s := range l.Stops {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	}
	return out
}
