package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/mixbot/core/model"
)

type IngredientDef struct {
	ID      int     `yaml:"id"`
	Name    string  `yaml:"name"`
	Channel *int    `yaml:"channel,omitempty"`
	Level   float64 `yaml:"level"`
}

func (d IngredientDef) ToModel() model.Ingredient {
	ing := model.Ingredient{ID: d.ID, Name: d.Name, Kind: model.KindManual, LevelML: d.Level}
	if d.Channel != nil {
		ing.Kind = model.KindLiquid
		ing.Channel = model.ChannelPtr(*d.Channel)
	}
	return ing
}

type RecipeDef struct {
	ID        int             `yaml:"id"`
	Name      string          `yaml:"name"`
	Alcoholic bool            `yaml:"alcoholic"`
	Amounts   map[int]float64 `yaml:"ingredients"`
}

func (d RecipeDef) ToModel() model.Recipe {
	return model.Recipe{ID: d.ID, Name: d.Name, Alcoholic: d.Alcoholic, ServingML: 350, Amounts: d.Amounts}
}

type Expected struct {
	Accepted int             `yaml:"accepted"`
	Rejected int             `yaml:"rejected"`
	States   []string        `yaml:"states"`
	Levels   map[int]float64 `yaml:"levels"`
}

type Scenario struct {
	Name         string          `yaml:"name"`
	Description  string          `yaml:"description,omitempty"`
	Ingredients  []IngredientDef `yaml:"ingredients"`
	Recipes      []RecipeDef     `yaml:"recipes"`
	Orders       []int           `yaml:"orders"`
	FailChannels []int           `yaml:"fail_channels,omitempty"`
	// Refills are applied before the order with the same index.
	Refills  map[int]map[int]float64 `yaml:"refills,omitempty"`
	Expected Expected                `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
