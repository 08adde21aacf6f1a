package scenarios

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/mixbot/core/actuation"
	"github.com/kilianp07/mixbot/core/availability"
	"github.com/kilianp07/mixbot/core/inventory"
	"github.com/kilianp07/mixbot/core/mixing"
	"github.com/kilianp07/mixbot/core/model"
	"github.com/kilianp07/mixbot/core/recipe"
	"github.com/kilianp07/mixbot/infra/actuator"
	"github.com/kilianp07/mixbot/infra/logger"
	"github.com/kilianp07/mixbot/infra/metrics"
	"github.com/kilianp07/mixbot/internal/eventbus"
)

// stuckBoard fails to switch on the listed channels.
type stuckBoard struct {
	*actuator.LogDriver
	stuck map[int]bool
}

func (b stuckBoard) SetChannelActive(ch int, active bool) error {
	if active && b.stuck[ch] {
		return fmt.Errorf("relay %d stuck", ch)
	}
	return b.LogDriver.SetChannelActive(ch, active)
}

func RunScenario(t *testing.T, sc *Scenario) {
	ctx := context.Background()
	sink, err := metrics.NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	ings := make([]model.Ingredient, len(sc.Ingredients))
	for i, d := range sc.Ingredients {
		ings[i] = d.ToModel()
	}
	recs := make([]model.Recipe, len(sc.Recipes))
	for i, d := range sc.Recipes {
		recs[i] = d.ToModel()
	}
	store, err := inventory.NewMemoryStore(ings, inventory.Options{})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	book, err := recipe.NewMemoryBook(recs)
	if err != nil {
		t.Fatalf("book: %v", err)
	}

	board := stuckBoard{LogDriver: actuator.NewLogDriver(actuator.DefaultChannels, logger.NopLogger{}), stuck: map[int]bool{}}
	for _, ch := range sc.FailChannels {
		board.stuck[ch] = true
	}
	bus := eventbus.New()
	defer bus.Close()
	engine, err := actuation.NewEngine(board, actuation.Calibration{SecondsPerML: 0.5}, logger.NopLogger{}, bus)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	engine.SetWaiter(func(time.Duration) {})

	coord, err := mixing.NewCoordinator(mixing.Config{}, mixing.Deps{
		Planner:   recipe.NewResolver(book, store, recipe.DefaultInstructions()),
		Checker:   availability.NewEvaluator(store),
		Actuator:  engine,
		Inventory: store,
		Logger:    logger.NopLogger{},
		Bus:       bus,
		Metrics:   sink,
	})
	if err != nil {
		t.Fatalf("coordinator: %v", err)
	}
	coord.Start(ctx)
	defer coord.Close()

	accepted, rejected := 0, 0
	var states []string
	for i, id := range sc.Orders {
		for ingID, delta := range sc.Refills[i] {
			if _, err := store.AdjustLevel(ctx, ingID, delta); err != nil {
				t.Fatalf("refill %d: %v", ingID, err)
			}
		}
		order, err := coord.StartMix(ctx, id)
		if errors.Is(err, mixing.ErrCocktailUnavailable) {
			rejected++
			continue
		}
		if err != nil {
			t.Fatalf("order %d: %v", id, err)
		}
		accepted++
		wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		job, err := coord.Wait(wctx, order.JobID)
		cancel()
		if err != nil {
			t.Fatalf("wait %s: %v", order.JobID, err)
		}
		states = append(states, job.State.String())
	}

	if accepted != sc.Expected.Accepted || rejected != sc.Expected.Rejected {
		t.Errorf("scenario %s expected %d accepted / %d rejected, got %d / %d",
			sc.Name, sc.Expected.Accepted, sc.Expected.Rejected, accepted, rejected)
	}
	if len(sc.Expected.States) > 0 && fmt.Sprint(states) != fmt.Sprint(sc.Expected.States) {
		t.Errorf("scenario %s expected states %v, got %v", sc.Name, sc.Expected.States, states)
	}
	for id, want := range sc.Expected.Levels {
		got, err := store.Level(ctx, id)
		if err != nil {
			t.Fatalf("level %d: %v", id, err)
		}
		if got != want {
			t.Errorf("scenario %s ingredient %d expected %gml, got %gml", sc.Name, id, want, got)
		}
	}
}
