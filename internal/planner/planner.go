package planner

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"bus-router/internal/cache"
	mmetrics "bus-router/internal/metrics"
	"bus-router/internal/publisher"
	"bus-router/internal/route"
	"bus-router/internal/transit"
)

// Publisher receives every answered plan.
type Publisher interface {
	PublishPlan(msg publisher.PlanMessage) error
}

// Store caches plans as JSON documents.
type Store interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any) error
}

// Plan answers one departure with both itineraries.
type Plan struct {
	QueryID   string            `json:"queryId"`
	Departure transit.Departure `json:"departure"`
	Fastest   route.Itinerary   `json:"fastest"`
	Cheapest  route.Itinerary   `json:"cheapest"`
	Cached    bool              `json:"-"`
}

// Planner answers departures against one loaded schedule. It is safe for
// concurrent use.
type Planner struct {
	lines       []transit.Line
	calc        *route.Calculator
	fingerprint uint64
	timeout     time.Duration
	pub         Publisher
	store       Store
	metrics     *mmetrics.Collector

	mu     sync.Mutex
	graphs map[int]*route.Graph // served origin stop -> graph
}

type Option func(*Planner)

func WithPublisher(p Publisher) Option { return func(pl *Planner) { pl.pub = p } }

func WithStore(s Store) Option { return func(pl *Planner) { pl.store = s } }

func WithMetrics(m *mmetrics.Collector) Option { return func(pl *Planner) { pl.metrics = m } }

// WithTimeout bounds a single Plan call. Zero disables the deadline.
func WithTimeout(d time.Duration) Option { return func(pl *Planner) { pl.timeout = d } }

func New(lines []transit.Line, opts ...Option) (*Planner, error) {
	calc, err := route.NewCalculator(lines)
	if err != nil {
		return nil, err
	}
	// A graph rooted nowhere catches stops repeated within a line up front
	// and sizes the schedule for the graph gauges.
	probe, err := route.BuildGraph(lines, math.MinInt)
	if err != nil {
		return nil, err
	}
	p := &Planner{
		lines:       append([]transit.Line(nil), lines...),
		calc:        calc,
		fingerprint: cache.Fingerprint(lines),
		graphs:      make(map[int]*route.Graph),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.metrics != nil {
		p.metrics.Lines.Set(float64(len(lines)))
		p.metrics.GraphNodes.Set(float64(len(probe.Nodes())))
		p.metrics.GraphEdges.Set(float64(probe.EdgeCount()))
	}
	return p, nil
}

// Fingerprint identifies the loaded schedule.
func (p *Planner) Fingerprint() uint64 { return p.fingerprint }

// Lines returns the number of loaded lines.
func (p *Planner) Lines() int { return p.calc.Lines() }

// Plan computes the fastest and cheapest itineraries for dep. An unreachable
// destination yields empty itineraries and no error; From == To boards the
// next vehicle at that stop.
func (p *Planner) Plan(ctx context.Context, dep transit.Departure) (*Plan, error) {
	if err := dep.Validate(); err != nil {
		return nil, err
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	plan := &Plan{QueryID: uuid.New().String(), Departure: dep}
	key := cache.Key(p.fingerprint, dep)
	if p.lookup(ctx, key, plan) {
		p.publish(plan)
		return plan, nil
	}

	g, err := p.graph(dep.From)
	if err != nil {
		return nil, err
	}

	itineraries := make([]route.Itinerary, len(route.Objectives))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, obj := range route.Objectives {
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			start := time.Now()
			res, err := route.Search(g, p.calc, obj, dep)
			if err != nil {
				p.observe(obj.Name, "error", time.Since(start), 0)
				return fmt.Errorf("%s search: %w", obj.Name, err)
			}
			it := res.Route()
			outcome := "found"
			if it.Empty() {
				outcome = "no_route"
			}
			p.observe(obj.Name, outcome, time.Since(start), res.Settled())
			itineraries[i] = it
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, obj := range route.Objectives {
		switch obj.Name {
		case route.Fastest.Name:
			plan.Fastest = itineraries[i]
		case route.Cheapest.Name:
			plan.Cheapest = itineraries[i]
		}
	}

	if p.store != nil {
		if err := p.store.SetJSON(ctx, key, plan); err != nil {
			log.Printf("cache set %s: %v", key, err)
			if p.metrics != nil {
				p.metrics.CacheErrors.Inc()
			}
		}
	}
	p.publish(plan)
	return plan, nil
}

func (p *Planner) lookup(ctx context.Context, key string, plan *Plan) bool {
	if p.store == nil {
		return false
	}
	var cached Plan
	ok, err := p.store.GetJSON(ctx, key, &cached)
	if err != nil {
		log.Printf("cache get %s: %v", key, err)
		if p.metrics != nil {
			p.metrics.CacheErrors.Inc()
		}
		return false
	}
	if p.metrics != nil {
		if ok {
			p.metrics.CacheHits.Inc()
		} else {
			p.metrics.CacheMisses.Inc()
		}
	}
	if !ok {
		return false
	}
	plan.Fastest = cached.Fastest
	plan.Cheapest = cached.Cheapest
	plan.Cached = true
	return true
}

// graph returns the loop-broken graph for origin, building it once per
// served stop. Graphs for unserved stops are not kept.
func (p *Planner) graph(origin int) (*route.Graph, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if g, ok := p.graphs[origin]; ok {
		return g, nil
	}
	g, err := route.BuildGraph(p.lines, origin)
	if err != nil {
		return nil, err
	}
	if len(g.NodesAt(origin)) > 0 {
		p.graphs[origin] = g
	}
	return g, nil
}

func (p *Planner) observe(objective, outcome string, d time.Duration, settled int) {
	if p.metrics != nil {
		p.metrics.ObserveSearch(objective, outcome, d, settled)
	}
}

func (p *Planner) publish(plan *Plan) {
	if p.pub == nil {
		return
	}
	msg := publisher.PlanMessage{
		QueryID:   plan.QueryID,
		From:      plan.Departure.From,
		To:        plan.Departure.To,
		Departure: transit.FormatClock(plan.Departure.At),
		Cached:    plan.Cached,
		PlannedAt: time.Now().UTC(),
		Fastest:   plan.Fastest,
		Cheapest:  plan.Cheapest,
	}
	if err := p.pub.PublishPlan(msg); err != nil {
		log.Printf("publish plan %s: %v", plan.QueryID, err)
	}
}
