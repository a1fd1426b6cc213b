package operator

import "fmt"

// Operator combines the terms of a lexical query.
type Operator string

const (
	// And requires every term to match.
	And Operator = "and"
	// Or requires at least one term to match.
	Or Operator = "or"
)

// Parse validates s and returns the Operator. Empty means def.
func Parse(s string, def Operator) (Operator, error) {
	switch Operator(s) {
	case "":
		return def, nil
	case And, Or:
		return Operator(s), nil
	default:
		return "", fmt.Errorf("unknown operator %q (want and|or)", s)
	}
}

// IsValid reports whether o is a known operator.
func (o Operator) IsValid() bool { return o == And || o == Or }
