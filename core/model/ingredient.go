package model

import "fmt"

// Kind classifies how an ingredient reaches the glass.
type Kind int

const (
	// KindLiquid ingredients are pumped by the appliance through a channel.
	KindLiquid Kind = iota
	// KindManual ingredients are added by a person following an instruction.
	KindManual
)

// String returns a human-readable representation of the ingredient kind.
func (k Kind) String() string {
	switch k {
	case KindLiquid:
		return "liquid"
	case KindManual:
		return "manual"
	default:
		return "unknown"
	}
}

// ParseKind converts "liquid" or "manual" to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "liquid":
		return KindLiquid, nil
	case "manual":
		return KindManual, nil
	default:
		return 0, fmt.Errorf("%w: unknown ingredient kind %q", ErrValidation, s)
	}
}

// Ingredient is one reservoir (liquid) or one garnish/solid (manual) known to
// the machine. Channel is only set for liquid ingredients.
type Ingredient struct {
	ID      int     `json:"ingredient_id"`
	Name    string  `json:"ingredient_name"`
	Kind    Kind    `json:"-"`
	LevelML float64 `json:"current_level"`
	Channel *int    `json:"pump_id"`
}

// IsLiquid reports whether the ingredient is dispensed by a channel.
func (i Ingredient) IsLiquid() bool { return i.Kind == KindLiquid }

// ChannelIndex returns the assigned channel and whether one exists.
func (i Ingredient) ChannelIndex() (int, bool) {
	if i.Channel == nil || i.Kind != KindLiquid {
		return 0, false
	}
	return *i.Channel, true
}

// ChannelPtr is a helper for building ingredient literals.
func ChannelPtr(ch int) *int { return &ch }

// ClampLevel returns ml bounded below by zero and, when capacity is positive,
// above by capacity.
func ClampLevel(ml, capacity float64) float64 {
	if ml < 0 {
		return 0
	}
	if capacity > 0 && ml > capacity {
		return capacity
	}
	return ml
}
