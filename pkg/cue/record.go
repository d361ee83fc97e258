package cue

import (
	"strconv"

	"rigdiogo/pkg/rules"
)

// Entry is the mapping form of a cue in a team file.
type Entry struct {
	Filename     string       `yaml:"filename" json:"filename"`
	Conditions   []RuleRecord `yaml:"conditions" json:"conditions"`
	Instructions []RuleRecord `yaml:"instructions" json:"instructions"`
}

// RuleRecord is {type: nil | scalar | [scalars]}.
type RuleRecord map[string]any

// Record returns the serialised form of the cue: the bare file name when it
// has no rules, an Entry otherwise.
func (c *Cue) Record() any {
	if len(c.spec.Rules) == 0 {
		return c.File()
	}
	e := Entry{Filename: c.File(), Conditions: []RuleRecord{}, Instructions: []RuleRecord{}}
	for _, r := range c.spec.Rules {
		if _, ok := r.(*rules.Instruction); ok {
			e.Instructions = append(e.Instructions, RecordRule(r))
		} else {
			e.Conditions = append(e.Conditions, RecordRule(r))
		}
	}
	return e
}

// RecordRule serialises one rule. Integer tokens are kept as numbers.
func RecordRule(r rules.Rule) RuleRecord {
	tokens := r.Tokens()
	switch len(tokens) {
	case 0:
		return RuleRecord{r.Type(): nil}
	case 1:
		return RuleRecord{r.Type(): scalar(tokens[0])}
	}
	vals := make([]any, len(tokens))
	for i, t := range tokens {
		vals[i] = scalar(t)
	}
	return RuleRecord{r.Type(): vals}
}

func scalar(tok string) any {
	if n, err := strconv.Atoi(tok); err == nil && strconv.Itoa(n) == tok {
		return n
	}
	return tok
}
