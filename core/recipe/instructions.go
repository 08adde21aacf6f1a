package recipe

import (
	"strconv"
	"strings"
)

// Instructions renders the human step for a manual ingredient. Templates use
// the {amount} and {name} placeholders.
type Instructions struct {
	Templates map[string]string
	Fallback  string
}

// DefaultInstructions returns the templates for the garnishes shipped with the
// machine.
func DefaultInstructions() Instructions {
	return Instructions{
		Templates: map[string]string{
			"Limette":    "Schneide {amount} Limettenscheibe(n) und gib sie ins Glas",
			"Rohrzucker": "Füge {amount}g Rohrzucker hinzu",
			"Minze":      "Gib {amount} Minzblätter ins Glas und muddle sie leicht",
		},
		Fallback: "{name} manuell hinzufügen: {amount} Einheit(en)",
	}
}

// Render returns the instruction for name and amount.
func (in Instructions) Render(name string, amount float64) string {
	tpl, ok := in.Templates[name]
	if !ok {
		tpl = in.Fallback
	}
	if tpl == "" {
		tpl = DefaultInstructions().Fallback
	}
	r := strings.NewReplacer("{amount}", formatAmount(amount), "{name}", name)
	return r.Replace(tpl)
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
