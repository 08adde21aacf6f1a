package model

// LiquidEntry is one channel actuation of a dispensing plan.
type LiquidEntry struct {
	Channel      int     `json:"pump_id"`
	IngredientID int     `json:"ingredient_id"`
	Name         string  `json:"ingredient_name"`
	AmountML     float64 `json:"amount_ml"`
}

// ManualEntry is one step the user performs after the machine has poured.
type ManualEntry struct {
	IngredientID int     `json:"ingredient_id"`
	Name         string  `json:"ingredient_name"`
	Amount       float64 `json:"amount_ml"`
	Instruction  string  `json:"instruction"`
}

// DispensingPlan is the per-request resolution of a recipe against the
// current ingredient table. It is never cached.
type DispensingPlan struct {
	CocktailID int           `json:"id"`
	Name       string        `json:"name"`
	Alcoholic  bool          `json:"alkoholisch"`
	ServingML  float64       `json:"glass_size_ml"`
	Liquid     []LiquidEntry `json:"liquid_recipe"`
	Manual     []ManualEntry `json:"manual_ingredients"`
}

// RequiresManualSteps reports whether the user has to finish the drink.
func (p DispensingPlan) RequiresManualSteps() bool { return len(p.Manual) > 0 }

// Instructions returns the manual instructions in plan order.
func (p DispensingPlan) Instructions() []string {
	out := make([]string, 0, len(p.Manual))
	for _, m := range p.Manual {
		out = append(out, m.Instruction)
	}
	return out
}

// TotalLiquidML sums the machine-dispensed volume.
func (p DispensingPlan) TotalLiquidML() float64 {
	var total float64
	for _, e := range p.Liquid {
		total += e.AmountML
	}
	return total
}
