package model

import "slices"

// Recipe is the static definition of a cocktail. Amounts are keyed by
// ingredient id and expressed in millilitres for liquids and in the
// ingredient's own unit (slices, grams, leaves) for manual ingredients.
type Recipe struct {
	ID        int             `json:"id"`
	Name      string          `json:"name"`
	Alcoholic bool            `json:"alkoholisch"`
	ServingML float64         `json:"glass_size_ml"`
	Amounts   map[int]float64 `json:"amounts"`
}

// IngredientIDs returns the ids referenced by the recipe in ascending order.
func (r Recipe) IngredientIDs() []int {
	ids := make([]int, 0, len(r.Amounts))
	for id := range r.Amounts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
