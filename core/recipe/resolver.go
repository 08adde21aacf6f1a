package recipe

import (
	"context"
	"fmt"
	"math"

	"github.com/kilianp07/mixbot/core/model"
)

// Classifier exposes the ingredient classification table.
type Classifier interface {
	Ingredient(ctx context.Context, id int) (model.Ingredient, error)
}

// Resolver joins recipes with the live ingredient table.
type Resolver struct {
	book         Book
	classifier   Classifier
	instructions Instructions
}

// NewResolver creates a resolver. A zero Instructions value selects the
// default templates.
func NewResolver(book Book, classifier Classifier, in Instructions) *Resolver {
	if in.Templates == nil && in.Fallback == "" {
		in = DefaultInstructions()
	}
	return &Resolver{book: book, classifier: classifier, instructions: in}
}

// Resolve builds a fresh plan for the cocktail. Amounts that are zero or
// negative are left out of the plan entirely.
func (r *Resolver) Resolve(ctx context.Context, cocktailID int) (model.DispensingPlan, error) {
	rec, err := r.book.Recipe(ctx, cocktailID)
	if err != nil {
		return model.DispensingPlan{}, err
	}
	return r.Plan(ctx, rec)
}

// Plan resolves an already loaded recipe.
func (r *Resolver) Plan(ctx context.Context, rec model.Recipe) (model.DispensingPlan, error) {
	plan := model.DispensingPlan{
		CocktailID: rec.ID,
		Name:       rec.Name,
		Alcoholic:  rec.Alcoholic,
		ServingML:  rec.ServingML,
		Liquid:     []model.LiquidEntry{},
		Manual:     []model.ManualEntry{},
	}
	for _, id := range rec.IngredientIDs() {
		amount := rec.Amounts[id]
		if !(amount > 0) || math.IsInf(amount, 0) {
			continue
		}
		ing, err := r.classifier.Ingredient(ctx, id)
		if err != nil {
			return model.DispensingPlan{}, fmt.Errorf("cocktail %d: %w", rec.ID, err)
		}
		if !ing.IsLiquid() {
			plan.Manual = append(plan.Manual, model.ManualEntry{
				IngredientID: id,
				Name:         ing.Name,
				Amount:       amount,
				Instruction:  r.instructions.Render(ing.Name, amount),
			})
			continue
		}
		ch, ok := ing.ChannelIndex()
		if !ok {
			return model.DispensingPlan{}, fmt.Errorf("cocktail %d: liquid ingredient %d has no channel: %w", rec.ID, id, model.ErrInvalidChannel)
		}
		plan.Liquid = append(plan.Liquid, model.LiquidEntry{
			Channel:      ch,
			IngredientID: id,
			Name:         ing.Name,
			AmountML:     amount,
		})
	}
	return plan, nil
}

// Recipes lists the recipe definitions known to the resolver's book.
func (r *Resolver) Recipes(ctx context.Context) ([]model.Recipe, error) {
	return r.book.Recipes(ctx)
}
