package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/mixbot/core/model"
)

type slot struct {
	mu  sync.Mutex
	ing model.Ingredient
}

// MemoryStore keeps the ingredient table in memory. The set of ingredients is
// fixed at construction; each entry carries its own lock.
type MemoryStore struct {
	slots map[int]*slot
	ids   []int
	opts  Options
}

// NewMemoryStore builds a store seeded with the given ingredients.
func NewMemoryStore(ingredients []model.Ingredient, opts Options) (*MemoryStore, error) {
	s := &MemoryStore{slots: make(map[int]*slot, len(ingredients)), opts: opts}
	for _, ing := range ingredients {
		if _, dup := s.slots[ing.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate ingredient id %d", model.ErrValidation, ing.ID)
		}
		ing.LevelML = model.ClampLevel(ing.LevelML, 0)
		s.slots[ing.ID] = &slot{ing: ing}
		s.ids = append(s.ids, ing.ID)
	}
	sort.Ints(s.ids)
	return s, nil
}

func (s *MemoryStore) slot(id int) (*slot, error) {
	sl, ok := s.slots[id]
	if !ok {
		return nil, NotFound(id)
	}
	return sl, nil
}

// Ingredient returns a copy of the ingredient.
func (s *MemoryStore) Ingredient(_ context.Context, id int) (model.Ingredient, error) {
	sl, err := s.slot(id)
	if err != nil {
		return model.Ingredient{}, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.ing, nil
}

// Ingredients returns all ingredients ordered by id.
func (s *MemoryStore) Ingredients(ctx context.Context) ([]model.Ingredient, error) {
	out := make([]model.Ingredient, 0, len(s.ids))
	for _, id := range s.ids {
		ing, err := s.Ingredient(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, ing)
	}
	return out, nil
}

// Level returns the current level of an ingredient.
func (s *MemoryStore) Level(ctx context.Context, id int) (float64, error) {
	ing, err := s.Ingredient(ctx, id)
	if err != nil {
		return 0, err
	}
	return ing.LevelML, nil
}

func (s *MemoryStore) update(id int, fn func(current float64) float64) (model.Ingredient, error) {
	sl, err := s.slot(id)
	if err != nil {
		return model.Ingredient{}, err
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.ing.LevelML = fn(sl.ing.LevelML)
	return sl.ing, nil
}

// SetLevel stores an absolute level.
func (s *MemoryStore) SetLevel(_ context.Context, id int, ml float64) (model.Ingredient, error) {
	if err := ValidateVolume(ml); err != nil {
		return model.Ingredient{}, err
	}
	return s.update(id, func(float64) float64 { return model.ClampLevel(ml, 0) })
}

// AdjustLevel adds delta to the current level.
func (s *MemoryStore) AdjustLevel(_ context.Context, id int, delta float64) (model.Ingredient, error) {
	if err := ValidateVolume(delta); err != nil {
		return model.Ingredient{}, err
	}
	return s.update(id, func(cur float64) float64 { return Adjusted(cur, delta, s.opts.MaxCapacityML) })
}

// DecrementAfterUse subtracts a dispensed amount.
func (s *MemoryStore) DecrementAfterUse(_ context.Context, id int, ml float64) (model.Ingredient, error) {
	if err := ValidateUsage(ml); err != nil {
		return model.Ingredient{}, err
	}
	return s.update(id, func(cur float64) float64 { return model.ClampLevel(cur-ml, 0) })
}

// BulkSetLevel sets every ingredient to ml.
func (s *MemoryStore) BulkSetLevel(_ context.Context, ml float64) (int, error) {
	if err := ValidateVolume(ml); err != nil {
		return 0, err
	}
	level := model.ClampLevel(ml, 0)
	for _, id := range s.ids {
		if _, err := s.update(id, func(float64) float64 { return level }); err != nil {
			return 0, err
		}
	}
	return len(s.ids), nil
}
