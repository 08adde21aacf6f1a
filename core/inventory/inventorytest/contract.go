// Package inventorytest provides a behavioural test suite shared by every
// inventory.Store implementation.
package inventorytest

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/kilianp07/mixbot/core/inventory"
	"github.com/kilianp07/mixbot/core/model"
)

// Factory builds a fresh store seeded with ingredients and options.
type Factory func(t *testing.T, ingredients []model.Ingredient, opts inventory.Options) inventory.Store

// Fixture returns a small ingredient table: three liquids on channels 0..2
// and one manual garnish.
func Fixture() []model.Ingredient {
	return []model.Ingredient{
		{ID: 1, Name: "Cola", Kind: model.KindLiquid, LevelML: 1000, Channel: model.ChannelPtr(0)},
		{ID: 2, Name: "Limettensaft", Kind: model.KindLiquid, LevelML: 500, Channel: model.ChannelPtr(1)},
		{ID: 3, Name: "Zitronensaft", Kind: model.KindLiquid, LevelML: 30, Channel: model.ChannelPtr(2)},
		{ID: 4, Name: "Limette", Kind: model.KindManual, LevelML: 0},
	}
}

// Run executes the contract against stores produced by f.
//
//gocyclo:ignore
func Run(t *testing.T, f Factory) {
	ctx := context.Background()

	t.Run("unknown id", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{})
		if _, err := s.Level(ctx, 99); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("expected not found got %v", err)
		}
		if _, err := s.AdjustLevel(ctx, 99, 200); !errors.Is(err, model.ErrNotFound) {
			t.Fatalf("expected not found got %v", err)
		}
		all, err := s.Ingredients(ctx)
		if err != nil {
			t.Fatalf("ingredients: %v", err)
		}
		for i, ing := range all {
			if ing.LevelML != Fixture()[i].LevelML {
				t.Fatalf("failed refill mutated %d", ing.ID)
			}
		}
	})

	t.Run("set clamps negative", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{})
		ing, err := s.SetLevel(ctx, 1, -20)
		if err != nil {
			t.Fatalf("set: %v", err)
		}
		if ing.LevelML != 0 {
			t.Fatalf("expected 0 got %v", ing.LevelML)
		}
	})

	t.Run("refill additive", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{})
		if _, err := s.SetLevel(ctx, 2, 300); err != nil {
			t.Fatalf("set: %v", err)
		}
		ing, err := s.AdjustLevel(ctx, 2, 200)
		if err != nil {
			t.Fatalf("adjust: %v", err)
		}
		if ing.LevelML != 500 {
			t.Fatalf("expected 500 got %v", ing.LevelML)
		}
		ing, err = s.AdjustLevel(ctx, 2, -900)
		if err != nil {
			t.Fatalf("adjust: %v", err)
		}
		if ing.LevelML != 0 {
			t.Fatalf("expected clamp at 0 got %v", ing.LevelML)
		}
	})

	t.Run("refill capacity", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{MaxCapacityML: 1200})
		ing, err := s.AdjustLevel(ctx, 1, 500)
		if err != nil {
			t.Fatalf("adjust: %v", err)
		}
		if ing.LevelML != 1200 {
			t.Fatalf("expected capacity 1200 got %v", ing.LevelML)
		}
	})

	t.Run("decrement clamps", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{})
		ing, err := s.DecrementAfterUse(ctx, 3, 50)
		if err != nil {
			t.Fatalf("decrement: %v", err)
		}
		if ing.LevelML != 0 {
			t.Fatalf("expected 0 got %v", ing.LevelML)
		}
		if _, err := s.DecrementAfterUse(ctx, 3, -1); !errors.Is(err, model.ErrValidation) {
			t.Fatalf("expected validation error got %v", err)
		}
	})

	t.Run("bulk set", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{})
		n, err := s.BulkSetLevel(ctx, 2000)
		if err != nil {
			t.Fatalf("bulk: %v", err)
		}
		if n != len(Fixture()) {
			t.Fatalf("expected %d updated got %d", len(Fixture()), n)
		}
		all, err := s.Ingredients(ctx)
		if err != nil {
			t.Fatalf("ingredients: %v", err)
		}
		for _, ing := range all {
			if ing.LevelML != 2000 {
				t.Fatalf("ingredient %d at %v", ing.ID, ing.LevelML)
			}
		}
	})

	t.Run("classification", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{})
		ing, err := s.Ingredient(ctx, 4)
		if err != nil {
			t.Fatalf("ingredient: %v", err)
		}
		if ing.IsLiquid() || ing.Channel != nil {
			t.Fatalf("manual ingredient misclassified: %+v", ing)
		}
		ing, err = s.Ingredient(ctx, 2)
		if err != nil {
			t.Fatalf("ingredient: %v", err)
		}
		if ch, ok := ing.ChannelIndex(); !ok || ch != 1 {
			t.Fatalf("expected channel 1 got %d", ch)
		}
	})

	t.Run("concurrent decrements", func(t *testing.T) {
		s := f(t, Fixture(), inventory.Options{})
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(2)
			go func() {
				defer wg.Done()
				_, _ = s.DecrementAfterUse(ctx, 1, 10)
			}()
			go func() {
				defer wg.Done()
				_, _ = s.DecrementAfterUse(ctx, 2, 5)
			}()
		}
		wg.Wait()
		if lvl, _ := s.Level(ctx, 1); lvl != 800 {
			t.Fatalf("expected 800 got %v", lvl)
		}
		if lvl, _ := s.Level(ctx, 2); lvl != 400 {
			t.Fatalf("expected 400 got %v", lvl)
		}
	})
}
