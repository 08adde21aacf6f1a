// Package recipe turns cocktail definitions into dispensing plans.
package recipe

import (
	"context"
	"fmt"
	"sort"

	"github.com/kilianp07/mixbot/core/model"
)

// Book provides read access to the static recipe definitions.
type Book interface {
	Recipe(ctx context.Context, id int) (model.Recipe, error)
	Recipes(ctx context.Context) ([]model.Recipe, error)
}

// MemoryBook is an immutable Book loaded once at startup.
type MemoryBook struct {
	recipes map[int]model.Recipe
	ids     []int
}

// NewMemoryBook copies the recipes into a new book.
func NewMemoryBook(recipes []model.Recipe) (*MemoryBook, error) {
	b := &MemoryBook{recipes: make(map[int]model.Recipe, len(recipes))}
	for _, r := range recipes {
		if _, dup := b.recipes[r.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate recipe id %d", model.ErrValidation, r.ID)
		}
		amounts := make(map[int]float64, len(r.Amounts))
		for k, v := range r.Amounts {
			amounts[k] = v
		}
		r.Amounts = amounts
		b.recipes[r.ID] = r
		b.ids = append(b.ids, r.ID)
	}
	sort.Ints(b.ids)
	return b, nil
}

// Recipe returns the recipe with the given id.
func (b *MemoryBook) Recipe(_ context.Context, id int) (model.Recipe, error) {
	r, ok := b.recipes[id]
	if !ok {
		return model.Recipe{}, fmt.Errorf("cocktail %d: %w", id, model.ErrNotFound)
	}
	return r, nil
}

// Recipes returns all recipes ordered by id.
func (b *MemoryBook) Recipes(_ context.Context) ([]model.Recipe, error) {
	out := make([]model.Recipe, 0, len(b.ids))
	for _, id := range b.ids {
		out = append(out, b.recipes[id])
	}
	return out, nil
}
