package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bus-router/internal/cache"
	"bus-router/internal/config"
	"bus-router/internal/db"
	"bus-router/internal/metrics"
	"bus-router/internal/planner"
	"bus-router/internal/publisher"
	"bus-router/internal/render"
	"bus-router/internal/schedule"
	"bus-router/internal/transit"
)

func main() {
	var (
		schedulePath  = flag.String("schedule", "", "Schedule file (text or .yaml); overrides SCHEDULE_FILE")
		from          = flag.String("from", "", "Initial stop")
		to            = flag.String("to", "", "Final stop")
		at            = flag.String("at", "", "Start time, HH:MM[:SS]")
		importVersion = flag.String("import-version", "", "Store the schedule file in the database under this version, then exit")
	)
	flag.Parse()

	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if *schedulePath != "" {
		cfg.ScheduleFile = *schedulePath
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	con := newConsole(os.Stdin, os.Stdout)

	if *importVersion != "" {
		if err := importSchedule(ctx, cfg, *importVersion); err != nil {
			log.Fatalf("import error: %v", err)
		}
		return
	}

	lines, err := loadLines(ctx, cfg, con)
	if err != nil {
		log.Fatalf("schedule error: %v", err)
	}

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.SearchTimeout)
		srv := mcol.Serve(cfg.MetricsAddr)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := []planner.Option{planner.WithTimeout(cfg.SearchTimeout)}
	if mcol != nil {
		opts = append(opts, planner.WithMetrics(mcol))
	}
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		opts = append(opts, planner.WithPublisher(pub))
	}
	if cfg.RedisAddr != "" {
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL)
		if err != nil {
			// Planning works without the cache.
			log.Printf("redis unavailable, caching disabled: %v", err)
		} else {
			defer rc.Close()
			opts = append(opts, planner.WithStore(rc))
		}
	}

	p, err := planner.New(lines, opts...)
	if err != nil {
		log.Fatalf("planner error: %v", err)
	}
	log.Printf("planner ready: %d lines, schedule fingerprint %016x", p.Lines(), p.Fingerprint())

	if *from != "" || *to != "" || *at != "" {
		dep, err := parseDeparture(*from, *to, *at)
		if err != nil {
			log.Fatalf("departure error: %v", err)
		}
		plan, err := p.Plan(ctx, dep)
		if err != nil {
			log.Fatalf("plan error: %v", err)
		}
		log.Print(render.Summary(plan.Fastest))
		log.Print(render.Summary(plan.Cheapest))
		if err := printPlan(os.Stdout, plan); err != nil {
			log.Fatalf("write error: %v", err)
		}
		return
	}

	if err := con.interactive(ctx, p); err != nil {
		log.Fatalf("console error: %v", err)
	}
	log.Println("shutdown complete")
}

// loadLines reads the schedule from the database when one is configured,
// otherwise from the schedule file, asking for a path if it does not exist.
func loadLines(ctx context.Context, cfg *config.Config, con *console) ([]transit.Line, error) {
	if cfg.ScheduleDSN != "" {
		sqlDB, err := db.Open(cfg.ScheduleDSN)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		version, err := db.ResolveLatestVersion(ctx, sqlDB, cfg.ScheduleNetwork)
		if err != nil {
			return nil, err
		}
		log.Printf("using schedule version %q for network %q", version, cfg.ScheduleNetwork)
		return db.FetchLines(ctx, sqlDB, version)
	}

	path := cfg.ScheduleFile
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		path, err = con.prompt("Enter schedule file path = ")
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("no schedule file given")
		}
		if err != nil {
			return nil, err
		}
	}
	return schedule.Load(path)
}

func importSchedule(ctx context.Context, cfg *config.Config, version string) error {
	if cfg.ScheduleDSN == "" {
		return fmt.Errorf("SCHEDULE_DSN or DATABASE_URL is required to import")
	}
	lines, err := schedule.Load(cfg.ScheduleFile)
	if err != nil {
		return err
	}
	sqlDB, err := db.Open(cfg.ScheduleDSN)
	if err != nil {
		return fmt.Errorf("db open: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return fmt.Errorf("db ping: %w", err)
	}
	if err := db.EnsureSchema(ctx, sqlDB); err != nil {
		return err
	}
	if err := db.ImportLines(ctx, sqlDB, cfg.ScheduleNetwork, version, time.Now(), lines); err != nil {
		return err
	}
	log.Printf("imported %d lines as version %q for network %q", len(lines), version, cfg.ScheduleNetwork)
	return nil
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
