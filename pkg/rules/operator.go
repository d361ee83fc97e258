package rules

import "fmt"

// Operator is one of the arithmetic comparisons allowed in rules.
type Operator int

const (
	OpLT Operator = iota + 1
	OpGT
	OpLE
	OpGE
	OpEQ
	OpNE
)

var operatorSymbols = map[Operator]string{
	OpLT: "<",
	OpGT: ">",
	OpLE: "<=",
	OpGE: ">=",
	OpEQ: "==",
	OpNE: "!=",
}

// ParseOperator parses a comparison symbol. "=" is accepted as "==".
func ParseOperator(s string) (Operator, error) {
	if s == "=" {
		return OpEQ, nil
	}
	for op, sym := range operatorSymbols {
		if sym == s {
			return op, nil
		}
	}
	return 0, fmt.Errorf("%w %q (valid: <, >, <=, >=, ==, !=)", ErrBadOperator, s)
}

func (o Operator) String() string {
	if sym, ok := operatorSymbols[o]; ok {
		return sym
	}
	return fmt.Sprintf("Operator(%d)", int(o))
}

// Compare evaluates "a o b".
func (o Operator) Compare(a, b int) bool {
	switch o {
	case OpLT:
		return a < b
	case OpGT:
		return a > b
	case OpLE:
		return a <= b
	case OpGE:
		return a >= b
	case OpEQ:
		return a == b
	case OpNE:
		return a != b
	default:
		return false
	}
}

// Retirable reports whether "a o b" can never become true again once a has
// grown past b.
func (o Operator) Retirable() bool {
	return o == OpLT || o == OpLE || o == OpEQ
}
