// Package availability decides whether the machine holds enough liquid stock
// for a dispensing plan. Manual ingredients are never checked: the machine
// cannot see what the user has on hand.
package availability

import (
	"context"

	"github.com/kilianp07/mixbot/core/model"
)

// LevelReader returns the current level of an ingredient.
type LevelReader interface {
	Level(ctx context.Context, id int) (float64, error)
}

// Shortage describes a liquid entry not covered by stock.
type Shortage struct {
	IngredientID int     `json:"ingredient_id"`
	Name         string  `json:"ingredient_name"`
	RequiredML   float64 `json:"required_ml"`
	AvailableML  float64 `json:"available_ml"`
}

// Evaluator compares plans with the inventory.
type Evaluator struct {
	levels LevelReader
}

// NewEvaluator returns an Evaluator reading from levels.
func NewEvaluator(levels LevelReader) *Evaluator {
	return &Evaluator{levels: levels}
}

// Shortages lists every liquid entry whose required amount exceeds stock.
func (e *Evaluator) Shortages(ctx context.Context, plan model.DispensingPlan) ([]Shortage, error) {
	var out []Shortage
	for _, entry := range plan.Liquid {
		lvl, err := e.levels.Level(ctx, entry.IngredientID)
		if err != nil {
			return nil, err
		}
		if lvl < entry.AmountML {
			out = append(out, Shortage{
				IngredientID: entry.IngredientID,
				Name:         entry.Name,
				RequiredML:   entry.AmountML,
				AvailableML:  lvl,
			})
		}
	}
	return out, nil
}

// Available reports whether every liquid entry is covered by stock.
func (e *Evaluator) Available(ctx context.Context, plan model.DispensingPlan) (bool, error) {
	s, err := e.Shortages(ctx, plan)
	if err != nil {
		return false, err
	}
	return len(s) == 0, nil
}
