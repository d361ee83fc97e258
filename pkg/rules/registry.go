package rules

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// Rule is either a *Condition or an *Instruction.
type Rule interface {
	Type() string
	Tokens() []string
	String() string
}

type builder func(args []string, owner Owner) (Rule, error)

var registry map[string]builder

func init() {
	registry = map[string]builder{
		"goals":     comparison(CondGoals),
		"teamgoals": comparison(CondTeamGoals),
		"lead":      comparison(CondLead),
		"time":      comparison(CondTime),
		"every":     buildEvery,
		"opponent":  buildOpponent,
		"match":     buildMatch,
		"home":      bare(CondHome),
		"first":     bare(CondFirst),
		"comeback":  bare(CondComeback),
		"once":      bare(CondOnce),
		"mostgoals": buildMostGoals,
		"special":   buildSpecial,
		"not":       buildNot,
		"or":        group(CondOr),
		"and":       group(CondAnd),
		"if":        group(CondIf),

		"start":     buildStart,
		"speed":     buildSpeed,
		"randomise": bareInstruction(InstrRandomise),
		"unrandom":  bareInstruction(InstrUnrandom),
		"warcry":    bareInstruction(InstrWarcry),
		"pause":     buildPause,
		"end":       buildEnd,
		"event":     buildEvent,
	}
}

// Types lists every registered rule name.
func Types() []string {
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// IsInstructionType reports whether name is an instruction rather than a condition.
func IsInstructionType(name string) bool {
	switch strings.ToLower(name) {
	case "start", "speed", "randomise", "unrandom", "warcry", "pause", "end", "event":
		return true
	}
	return false
}

// Build constructs a rule from tokens; tokens[0] selects the variant
// case-insensitively and the rest are its arguments.
func Build(tokens []string, owner Owner) (Rule, error) {
	if len(tokens) == 0 {
		return nil, ErrEmptyRule
	}
	name := strings.ToLower(tokens[0])
	build, ok := registry[name]
	if !ok {
		return nil, &BuildError{Type: tokens[0], Token: tokens[0], Err: ErrUnknownType}
	}
	rule, err := build(tokens[1:], owner)
	if err != nil {
		return nil, &BuildError{Type: name, Token: badToken(err, tokens[1:]), Err: err}
	}
	return rule, nil
}

// ParseLine tokenizes and builds one rule line.
func ParseLine(line string, owner Owner) (Rule, error) {
	tokens, err := Tokenize(line)
	if err != nil {
		return nil, err
	}
	return Build(tokens, owner)
}

// tokenError carries the token a builder rejected.
type tokenError struct {
	token string
	err   error
}

func (e *tokenError) Error() string { return e.err.Error() }
func (e *tokenError) Unwrap() error { return e.err }

func rejectToken(tok string, err error) error { return &tokenError{token: tok, err: err} }

func badToken(err error, args []string) string {
	var te *tokenError
	if errors.As(err, &te) {
		return te.token
	}
	if len(args) > 0 {
		return args[0]
	}
	return ""
}

func need(args []string, n int) error {
	if len(args) < n {
		return fmt.Errorf("%w: want %d, got %d", ErrMissingArgument, n, len(args))
	}
	return nil
}

func comparison(kind ConditionKind) builder {
	return func(args []string, owner Owner) (Rule, error) {
		if err := need(args, 2); err != nil {
			return nil, err
		}
		op, err := ParseOperator(args[0])
		if err != nil {
			return nil, rejectToken(args[0], err)
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return nil, rejectToken(args[1], fmt.Errorf("%w: %q is not an integer", ErrBadValue, args[1]))
		}
		return &Condition{Kind: kind, Owner: owner, Op: op, Value: v}, nil
	}
}

func bare(kind ConditionKind) builder {
	return func(_ []string, owner Owner) (Rule, error) {
		return &Condition{Kind: kind, Owner: owner}, nil
	}
}

func buildEvery(args []string, owner Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n <= 0 {
		return nil, rejectToken(args[0], fmt.Errorf("%w: every needs a positive integer", ErrBadValue))
	}
	return &Condition{Kind: CondEvery, Owner: owner, Value: n}, nil
}

func buildOpponent(args []string, owner Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	var names []string
	for _, a := range args {
		names = append(names, strings.Fields(a)...)
	}
	return &Condition{Kind: CondOpponent, Owner: owner, Names: names}, nil
}

func buildMatch(args []string, owner Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	if len(args) == 1 && strings.EqualFold(args[0], "knockouts") {
		args = KnockoutRounds
	}
	names := make([]string, 0, len(args))
	for _, a := range args {
		n := strings.ToLower(a)
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	return &Condition{Kind: CondMatch, Owner: owner, Names: names}, nil
}

func buildMostGoals(args []string, owner Owner) (Rule, error) {
	c := &Condition{Kind: CondMostGoals, Owner: owner}
	if len(args) > 0 {
		c.Player = args[0]
	}
	return c, nil
}

func buildSpecial(args []string, owner Owner) (Rule, error) {
	c := &Condition{Kind: CondSpecial, Owner: owner}
	if len(args) > 0 {
		c.Label = strings.Join(args, " ")
	}
	return c, nil
}

func buildNot(args []string, owner Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	sub, err := Build(args, owner)
	if err != nil {
		return nil, err
	}
	cond, ok := sub.(*Condition)
	if !ok {
		return nil, rejectToken(args[0], fmt.Errorf("%w: not can only wrap a condition", ErrBadValue))
	}
	return &Condition{Kind: CondNot, Owner: owner, Sub: cond}, nil
}

// SubSeparator splits the sub-conditions of or, and and if.
const SubSeparator = ","

// splitGroups cuts args at "," tokens and at tokens with a trailing comma.
func splitGroups(args []string) [][]string {
	var groups [][]string
	var cur []string
	for _, a := range args {
		if a == SubSeparator {
			groups = append(groups, cur)
			cur = nil
			continue
		}
		if trimmed, ok := strings.CutSuffix(a, SubSeparator); ok {
			if trimmed != "" {
				cur = append(cur, trimmed)
			}
			groups = append(groups, cur)
			cur = nil
			continue
		}
		cur = append(cur, a)
	}
	return append(groups, cur)
}

func group(kind ConditionKind) builder {
	return func(args []string, owner Owner) (Rule, error) {
		if err := need(args, 1); err != nil {
			return nil, err
		}
		groups := splitGroups(args)
		if kind == CondIf && len(groups) != 3 {
			return nil, rejectToken(args[0], fmt.Errorf("%w: if needs condition, then, else separated by commas", ErrBadValue))
		}
		c := &Condition{Kind: kind, Owner: owner}
		for _, g := range groups {
			if len(g) == 0 {
				return nil, fmt.Errorf("%w: empty sub-condition in %s", ErrMissingArgument, kind)
			}
			sub, err := Build(g, owner)
			if err != nil {
				return nil, err
			}
			cond, ok := sub.(*Condition)
			if !ok {
				return nil, rejectToken(g[0], fmt.Errorf("%w: %s can only combine conditions", ErrBadValue, kind))
			}
			c.Subs = append(c.Subs, cond)
		}
		return c, nil
	}
}

func bareInstruction(kind InstructionKind) builder {
	return func(_ []string, _ Owner) (Rule, error) {
		return &Instruction{Kind: kind}, nil
	}
}

func buildStart(args []string, _ Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	d, err := ParseClock(args[0])
	if err != nil {
		return nil, rejectToken(args[0], err)
	}
	return &Instruction{Kind: InstrStart, Raw: args[0], Offset: d}, nil
}

func buildSpeed(args []string, _ Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	f, err := strconv.ParseFloat(args[0], 64)
	if err != nil || f < minSpeed || f > maxSpeed {
		return nil, rejectToken(args[0], fmt.Errorf("%w: speed must be between %.2f and %.2f", ErrBadValue, minSpeed, maxSpeed))
	}
	return &Instruction{Kind: InstrSpeed, Raw: args[0], Speed: f}, nil
}

func buildPause(args []string, _ Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	mode := PauseMode(strings.ToLower(args[0]))
	if mode != PauseContinue && mode != PauseRestart {
		return nil, rejectToken(args[0], fmt.Errorf("%w: pause type (allowed: continue, restart)", ErrBadValue))
	}
	in := &Instruction{Kind: InstrPause, Pause: mode, Every: 1}
	if len(args) > 1 {
		if !strings.EqualFold(args[1], "every") {
			return nil, rejectToken(args[1], fmt.Errorf("%w: expected \"every\"", ErrBadValue))
		}
		if err := need(args, 3); err != nil {
			return nil, err
		}
		n, err := strconv.Atoi(args[2])
		if err != nil || n <= 0 {
			return nil, rejectToken(args[2], fmt.Errorf("%w: every needs a positive integer", ErrBadValue))
		}
		in.Every = n
	}
	return in, nil
}

func buildEnd(args []string, _ Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	mode := EndMode(strings.ToLower(args[0]))
	switch mode {
	case EndLoop, EndStop, EndNext:
		return &Instruction{Kind: InstrEnd, End: mode}, nil
	}
	return nil, rejectToken(args[0], fmt.Errorf("%w: end type (allowed: loop, stop, next)", ErrBadValue))
}

func buildEvent(args []string, _ Owner) (Rule, error) {
	if err := need(args, 1); err != nil {
		return nil, err
	}
	etype := strings.ToLower(args[0])
	if !slices.Contains(EventTypes, etype) {
		return nil, rejectToken(args[0], fmt.Errorf("%w: event type (allowed: %s)", ErrBadValue, strings.Join(EventTypes, ", ")))
	}
	return &Instruction{Kind: InstrEvent, Event: etype}, nil
}
