package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/kilianp07/mixbot/api/cocktails"
	"github.com/kilianp07/mixbot/config"
	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/availability"
	"github.com/kilianp07/mixbot/core/events"
	coremetrics "github.com/kilianp07/mixbot/core/metrics"
	"github.com/kilianp07/mixbot/core/mixing"
	coremon "github.com/kilianp07/mixbot/core/monitoring"
	"github.com/kilianp07/mixbot/core/recipe"
	_ "github.com/kilianp07/mixbot/infra/actuator"
	"github.com/kilianp07/mixbot/infra/logger"
	"github.com/kilianp07/mixbot/infra/metrics"
	"github.com/kilianp07/mixbot/infra/monitoring"
	"github.com/kilianp07/mixbot/internal/eventbus"
)

// Version is reported by the API banner.
var Version = "dev"

// Service owns the mixer and everything it drives.
type Service struct {
	Engine      *actuation.Engine
	Coordinator *mixing.Coordinator
	Inventory   *Inventory
	Resolver    *recipe.Resolver
	Handler     http.Handler

	cfg     *config.Config
	driver  actuation.Driver
	sink    coremetrics.MetricsSink
	monitor coremon.Monitor
	bus     *eventbus.Bus
	log     logger.Logger
}

// New creates a Service from the configuration. All channels are switched
// off before it returns.
func New(ctx context.Context, cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	driver, err := actuation.NewDriver(cfg.Actuation.Backend)
	if err != nil {
		return nil, fmt.Errorf("actuator %s: %w", cfg.Actuation.Backend.Type, err)
	}
	bus := eventbus.New()
	engine, err := actuation.NewEngine(driver, cfg.Actuation.Calibration(), logger.New("actuation"), bus)
	if err != nil {
		_ = driver.Close()
		return nil, err
	}
	if err := engine.Reset(); err != nil {
		logg.Errorf("reset channels: %v", err)
		monitor.CaptureException(err, map[string]string{"stage": "startup"})
	}

	inv, err := OpenInventory(ctx, cfg, driver.Channels())
	if err != nil {
		_ = driver.Close()
		return nil, err
	}
	js, err := cfg.Journal.Open()
	if err != nil {
		_ = inv.Close()
		_ = driver.Close()
		return nil, fmt.Errorf("journal: %w", err)
	}

	resolver := recipe.NewResolver(inv.Book, inv.Store, recipe.DefaultInstructions())
	evaluator := availability.NewEvaluator(inv.Store)
	coord, err := mixing.NewCoordinator(cfg.Mixing.Coordinator(), mixing.Deps{
		Planner:   resolver,
		Checker:   evaluator,
		Actuator:  engine,
		Inventory: inv.Store,
		Logger:    logger.New("mixing"),
		Bus:       bus,
		Metrics:   sink,
		Journal:   js,
		Monitor:   monitor,
	})
	if err != nil {
		_ = js.Close()
		_ = inv.Close()
		_ = driver.Close()
		return nil, err
	}

	var limiter *rate.Limiter
	if cfg.HTTP.OrderRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.HTTP.OrderRate), cfg.HTTP.OrderBurst)
	}
	api := cocktails.NewHandler(resolver, evaluator, inv.Store, coord, engine, js, cocktails.Options{
		GlassSizeML:        cfg.Mixing.GlassSizeML,
		ImageDir:           cfg.Mixing.ImageDir,
		RefillAllDefaultML: cfg.Inventory.RefillAllDefaultML,
		TestDuration:       cfg.Actuation.TestDuration(),
		Version:            Version,
		OrderLimiter:       limiter,
	}, logger.New("api"))

	mux := http.NewServeMux()
	mux.Handle("/", api)
	if cfg.Metrics.PrometheusAddress == "" {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return &Service{
		Engine:      engine,
		Coordinator: coord,
		Inventory:   inv,
		Resolver:    resolver,
		Handler:     mux,
		cfg:         cfg,
		driver:      driver,
		sink:        sink,
		monitor:     monitor,
		bus:         bus,
		log:         logg,
	}, nil
}

// Run starts the workers and the HTTP server and blocks until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.Coordinator.Start(ctx)
	go s.observe(ctx, s.bus.Subscribe())
	if addr := s.cfg.Metrics.PrometheusAddress; addr != "" {
		go func() {
			if err := metrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}

	srv := &http.Server{Addr: s.cfg.HTTP.Address, Handler: s.Handler, ReadHeaderTimeout: 5 * time.Second}
	errc := make(chan error, 1)
	go func() {
		s.log.Infof("listening on %s", s.cfg.HTTP.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Errorf("http shutdown: %v", err)
	}
	return nil
}

// observe logs mixer events and forwards fill levels to sinks that record
// them.
func (s *Service) observe(ctx context.Context, sub <-chan eventbus.Event) {
	recorder, _ := s.sink.(coremetrics.InventoryRecorder)
	if recorder != nil {
		s.recordLevels(ctx, recorder)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			switch e := ev.(type) {
			case events.JobEvent:
				fields := map[string]any{"job_id": e.JobID, "cocktail": e.Cocktail, "state": e.State}
				if e.Err != nil {
					fields["error"] = e.Err.Error()
				}
				s.log.Debugw("job", fields)
			case events.ChannelEvent:
				if e.Action == events.ChannelFailed {
					s.log.Warnf("channel %d failed: %v", e.Channel, e.Err)
				}
			case events.InventoryEvent:
				if e.LevelML <= 0 {
					s.log.Warnf("%s is empty", e.Name)
				}
				if recorder != nil {
					s.recordLevels(ctx, recorder)
				}
			}
		}
	}
}

func (s *Service) recordLevels(ctx context.Context, rec coremetrics.InventoryRecorder) {
	ings, err := s.Inventory.Store.Ingredients(ctx)
	if err != nil {
		s.log.Errorf("read levels: %v", err)
		return
	}
	if err := rec.RecordInventoryLevels(ings, time.Now()); err != nil {
		s.log.Errorf("record levels: %v", err)
	}
}

// Close stops the coordinator, switches every channel off and releases the
// stores.
func (s *Service) Close() error {
	var errs []error
	if err := s.Coordinator.Close(); err != nil {
		errs = append(errs, fmt.Errorf("coordinator: %w", err))
	}
	if err := s.driver.Close(); err != nil {
		errs = append(errs, fmt.Errorf("actuator: %w", err))
	}
	if err := s.Inventory.Close(); err != nil {
		errs = append(errs, fmt.Errorf("inventory: %w", err))
	}
	s.bus.Close()
	s.monitor.Flush(2 * time.Second)
	return errors.Join(errs...)
}
