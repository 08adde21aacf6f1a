// Package inventory tracks the fill level of every ingredient known to the
// machine. Each ingredient is mutated independently: read-modify-write cycles
// on one ingredient are serialized while different ingredients never contend.
package inventory

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/mixbot/core/model"
)

// Store is the key-value view of the ingredient table used by the mixer.
type Store interface {
	// Ingredient returns a copy of the ingredient or model.ErrNotFound.
	Ingredient(ctx context.Context, id int) (model.Ingredient, error)
	// Ingredients returns every ingredient ordered by id.
	Ingredients(ctx context.Context) ([]model.Ingredient, error)
	// Level returns the current fill level in millilitres.
	Level(ctx context.Context, id int) (float64, error)
	// SetLevel stores an absolute level, clamping negative values to zero.
	SetLevel(ctx context.Context, id int, ml float64) (model.Ingredient, error)
	// AdjustLevel adds delta to the level. The result is clamped at zero and,
	// for refills, at the configured container capacity.
	AdjustLevel(ctx context.Context, id int, delta float64) (model.Ingredient, error)
	// DecrementAfterUse removes a dispensed amount, never going below zero.
	DecrementAfterUse(ctx context.Context, id int, ml float64) (model.Ingredient, error)
	// BulkSetLevel sets every ingredient to ml and returns the number updated.
	BulkSetLevel(ctx context.Context, ml float64) (int, error)
}

// Options configures level policies shared by all store implementations.
type Options struct {
	// MaxCapacityML bounds additive refills. Zero disables the bound.
	MaxCapacityML float64 `json:"max_capacity_ml"`
}

// ValidateVolume rejects NaN and infinite volumes.
func ValidateVolume(ml float64) error {
	if math.IsNaN(ml) || math.IsInf(ml, 0) {
		return fmt.Errorf("%w: volume %v", model.ErrValidation, ml)
	}
	return nil
}

// ValidateUsage rejects volumes that cannot have been dispensed.
func ValidateUsage(ml float64) error {
	if err := ValidateVolume(ml); err != nil {
		return err
	}
	if ml < 0 {
		return fmt.Errorf("%w: negative usage %v", model.ErrValidation, ml)
	}
	return nil
}

// NotFound wraps model.ErrNotFound for the ingredient id.
func NotFound(id int) error {
	return fmt.Errorf("ingredient %d: %w", id, model.ErrNotFound)
}

// Adjusted computes the level after adding delta under the capacity policy.
// A refill never lowers a level that is already above capacity.
func Adjusted(current, delta, capacity float64) float64 {
	next := current + delta
	if next < 0 {
		return 0
	}
	if delta > 0 && capacity > 0 && next > capacity {
		return math.Max(capacity, current)
	}
	return next
}
