package events

import "time"

// JobEvent is published whenever a mix job changes state. State uses the
// string form of mixing.JobState.
type JobEvent struct {
	JobID      string
	CocktailID int
	Cocktail   string
	State      string
	Err        error
	Time       time.Time
}

// InventoryEvent is published after a committed level change.
type InventoryEvent struct {
	IngredientID int
	Name         string
	DeltaML      float64
	LevelML      float64
	Reason       string
	Time         time.Time
}
