// Package journal persists one record per finished mix job.
package journal

import (
	"context"
	"time"
)

// Record captures one mix job and what it did to the inventory.
type Record struct {
	Timestamp  time.Time       `json:"timestamp"`
	JobID      string          `json:"job_id"`
	CocktailID int             `json:"cocktail_id"`
	Cocktail   string          `json:"cocktail"`
	State      string          `json:"state"`
	Error      string          `json:"error,omitempty"`
	Duration   float64         `json:"duration_s"`
	Channels   []ChannelResult `json:"channels"`
	Manual     []string        `json:"manual_instructions,omitempty"`
}

// ChannelResult mirrors one actuation of the job.
type ChannelResult struct {
	Channel      int     `json:"pump_id"`
	IngredientID int     `json:"ingredient_id"`
	Ingredient   string  `json:"ingredient_name"`
	AmountML     float64 `json:"amount_ml"`
	CommittedML  float64 `json:"committed_ml"`
	DurationS    float64 `json:"duration_s"`
	Error        string  `json:"error,omitempty"`
}

// Query defines filters for retrieving records. Zero fields match everything.
type Query struct {
	Start      time.Time
	End        time.Time
	JobID      string
	CocktailID int
	State      string
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Match reports whether r passes every filter of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.JobID != "" && r.JobID != q.JobID {
		return false
	}
	if q.CocktailID != 0 && r.CocktailID != q.CocktailID {
		return false
	}
	if q.State != "" && r.State != q.State {
		return false
	}
	return true
}

// NopStore drops every record.
type NopStore struct{}

func (NopStore) Append(context.Context, Record) error           { return nil }
func (NopStore) Query(context.Context, Query) ([]Record, error) { return nil, nil }
func (NopStore) Close() error                                   { return nil }
