package config

import (
	"errors"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/mixbot/core/model"
)

// CatalogConfig points at the ingredient and recipe catalog.
type CatalogConfig struct {
	// Path to a YAML catalog; empty selects the built-in one.
	Path string `json:"path"`
}

// Catalog is the static description of the machine: which ingredients sit on
// which channel and the cocktails it can make.
type Catalog struct {
	Ingredients []CatalogIngredient `yaml:"ingredients"`
	Recipes     []CatalogRecipe     `yaml:"recipes"`
}

// CatalogIngredient is one row of the ingredient table.
type CatalogIngredient struct {
	ID      int     `yaml:"id"`
	Name    string  `yaml:"name"`
	Liquid  bool    `yaml:"liquid"`
	Channel *int    `yaml:"channel,omitempty"`
	LevelML float64 `yaml:"level"`
}

// CatalogRecipe maps ingredient ids to amounts.
type CatalogRecipe struct {
	ID        int             `yaml:"id"`
	Name      string          `yaml:"name"`
	Alcoholic bool            `yaml:"alcoholic"`
	ServingML float64         `yaml:"serving_ml,omitempty"`
	Amounts   map[int]float64 `yaml:"ingredients"`
}

// LoadCatalog reads the catalog at path, or returns DefaultCatalog when path
// is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &c, nil
}

// Validate checks ids, channel assignment and recipe references. channels is
// the number of outputs of the actuator backend.
func (c Catalog) Validate(channels int) error {
	var errs []error
	ids := make(map[int]bool, len(c.Ingredients))
	used := make(map[int]string)
	for _, ing := range c.Ingredients {
		if ing.ID < 1 {
			errs = append(errs, fmt.Errorf("ingredient %q: id must be positive", ing.Name))
		}
		if ids[ing.ID] {
			errs = append(errs, fmt.Errorf("ingredient %d: duplicate id", ing.ID))
		}
		ids[ing.ID] = true
		switch {
		case ing.Liquid && ing.Channel == nil:
			errs = append(errs, fmt.Errorf("ingredient %d: liquid without channel", ing.ID))
		case ing.Liquid && (*ing.Channel < 0 || *ing.Channel >= channels):
			errs = append(errs, fmt.Errorf("ingredient %d: channel %d outside 0..%d", ing.ID, *ing.Channel, channels-1))
		case ing.Liquid:
			if other, ok := used[*ing.Channel]; ok {
				errs = append(errs, fmt.Errorf("ingredient %d: channel %d already used by %s", ing.ID, *ing.Channel, other))
			}
			used[*ing.Channel] = ing.Name
		case ing.Channel != nil:
			errs = append(errs, fmt.Errorf("ingredient %d: manual ingredient with channel", ing.ID))
		}
	}
	recipes := make(map[int]bool, len(c.Recipes))
	for _, r := range c.Recipes {
		if recipes[r.ID] {
			errs = append(errs, fmt.Errorf("recipe %d: duplicate id", r.ID))
		}
		recipes[r.ID] = true
		for id, amount := range r.Amounts {
			if !ids[id] {
				errs = append(errs, fmt.Errorf("recipe %d (%s): unknown ingredient %d", r.ID, r.Name, id))
			}
			if amount < 0 || math.IsNaN(amount) || math.IsInf(amount, 0) {
				errs = append(errs, fmt.Errorf("recipe %d (%s): invalid amount %v for ingredient %d", r.ID, r.Name, amount, id))
			}
		}
	}
	return errors.Join(errs...)
}

// Model converts the catalog into domain values. Recipes without a serving
// size get glassML.
func (c Catalog) Model(glassML float64) ([]model.Ingredient, []model.Recipe) {
	ings := make([]model.Ingredient, 0, len(c.Ingredients))
	for _, ci := range c.Ingredients {
		ing := model.Ingredient{ID: ci.ID, Name: ci.Name, Kind: model.KindManual, LevelML: ci.LevelML}
		if ci.Liquid {
			ing.Kind = model.KindLiquid
			if ci.Channel != nil {
				ing.Channel = model.ChannelPtr(*ci.Channel)
			}
		}
		ings = append(ings, ing)
	}
	recs := make([]model.Recipe, 0, len(c.Recipes))
	for _, cr := range c.Recipes {
		r := model.Recipe{ID: cr.ID, Name: cr.Name, Alcoholic: cr.Alcoholic, ServingML: cr.ServingML, Amounts: map[int]float64{}}
		if r.ServingML <= 0 {
			r.ServingML = glassML
		}
		for id, a := range cr.Amounts {
			r.Amounts[id] = a
		}
		recs = append(recs, r)
	}
	return ings, recs
}

// Default ingredient names in id order. Ids 17 to 19 are garnishes.
var defaultIngredients = []string{
	"Cola", "Limettensaft", "Zitronensaft", "Maracujasaft", "Orangensaft",
	"Ananassaft", "Gernadine", "Kokossyrup", "Tonic", "Havana",
	"Bacardi Hell", "Wodka", "Gin", "Tequilla", "Pitu", "Whisky",
	"Limette", "Rohrzucker", "Minze",
}

const firstManualID = 17

// DefaultCatalog returns the stock machine: 16 liquids on channels 0..15,
// where channel = id - 1, plus lime, cane sugar and mint.
func DefaultCatalog() *Catalog {
	c := &Catalog{}
	for i, name := range defaultIngredients {
		id := i + 1
		ing := CatalogIngredient{ID: id, Name: name, LevelML: 1000}
		if id < firstManualID {
			ch := id - 1
			ing.Liquid = true
			ing.Channel = &ch
		} else {
			ing.LevelML = 0
		}
		c.Ingredients = append(c.Ingredients, ing)
	}
	c.Recipes = []CatalogRecipe{
		{ID: 1, Name: "Cuba Libre", Alcoholic: true, Amounts: map[int]float64{10: 40, 1: 160, 2: 10, 17: 1}},
		{ID: 2, Name: "Gin Tonic", Alcoholic: true, Amounts: map[int]float64{13: 40, 9: 160, 17: 1}},
		{ID: 3, Name: "Caipirinha", Alcoholic: true, Amounts: map[int]float64{15: 50, 2: 20, 17: 4, 18: 10}},
		{ID: 4, Name: "Mojito", Alcoholic: true, Amounts: map[int]float64{11: 40, 2: 20, 18: 10, 19: 8}},
		{ID: 5, Name: "Tequila Sunrise", Alcoholic: true, Amounts: map[int]float64{14: 40, 5: 120, 7: 15}},
		{ID: 6, Name: "Pina Colada", Alcoholic: true, Amounts: map[int]float64{11: 40, 6: 120, 8: 40}},
		{ID: 7, Name: "Wodka Maracuja", Alcoholic: true, Amounts: map[int]float64{12: 40, 4: 160}},
		{ID: 8, Name: "Whisky Cola", Alcoholic: true, Amounts: map[int]float64{16: 40, 1: 160}},
		{ID: 9, Name: "Virgin Colada", Amounts: map[int]float64{6: 160, 8: 40}},
		{ID: 10, Name: "Ipanema", Amounts: map[int]float64{4: 120, 2: 20, 17: 2, 18: 10}},
		{ID: 11, Name: "Sunrise Punch", Amounts: map[int]float64{5: 100, 6: 80, 7: 15}},
		{ID: 12, Name: "Zitronenlimo", Amounts: map[int]float64{3: 30, 9: 150, 19: 4}},
	}
	return c
}
