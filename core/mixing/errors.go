package mixing

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/mixbot/core/availability"
	"github.com/kilianp07/mixbot/core/model"
)

var (
	// ErrCocktailUnavailable is returned when a cocktail cannot be served,
	// either because it does not exist or because stock is short.
	ErrCocktailUnavailable = errors.New("cocktail unavailable")
	// ErrBusy is returned when the job backlog is full.
	ErrBusy = errors.New("mixer busy")
	// ErrClosed is returned once the coordinator has been closed.
	ErrClosed = errors.New("mixer closed")
)

// UnavailableError lists the liquids that are short for a cocktail.
type UnavailableError struct {
	CocktailID int
	Cocktail   string
	Shortages  []availability.Shortage
}

func (e *UnavailableError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		parts = append(parts, fmt.Sprintf("%s needs %gml has %gml", s.Name, s.RequiredML, s.AvailableML))
	}
	return fmt.Sprintf("%s: %s: %s", ErrCocktailUnavailable, e.Cocktail, strings.Join(parts, ", "))
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrCocktailUnavailable, model.ErrUnavailable}
}
