package rules

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
)

// Owner identifies who a rule belongs to.
type Owner struct {
	Player string
	Team   string
	Home   bool
}

// ConditionKind tags the Condition variant.
type ConditionKind int

const (
	CondGoals ConditionKind = iota + 1
	CondTeamGoals
	CondLead
	CondEvery
	CondOpponent
	CondMatch
	CondHome
	CondFirst
	CondComeback
	CondMostGoals
	CondOnce
	CondNot
	CondTime
	CondSpecial
	CondOr
	CondAnd
	CondIf
)

var conditionNames = map[ConditionKind]string{
	CondGoals:     "goals",
	CondTeamGoals: "teamgoals",
	CondLead:      "lead",
	CondEvery:     "every",
	CondOpponent:  "opponent",
	CondMatch:     "match",
	CondHome:      "home",
	CondFirst:     "first",
	CondComeback:  "comeback",
	CondMostGoals: "mostgoals",
	CondOnce:      "once",
	CondNot:       "not",
	CondTime:      "time",
	CondSpecial:   "special",
	CondOr:        "or",
	CondAnd:       "and",
	CondIf:        "if",
}

func (k ConditionKind) String() string {
	if n, ok := conditionNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ConditionKind(%d)", int(k))
}

// KnockoutRounds are the match types "match knockouts" expands to.
var KnockoutRounds = []string{"RO16", "Quarterfinal", "Semifinal", "Final", "Third-Place"}

// Condition decides whether a cue may play for the current game state.
type Condition struct {
	Kind  ConditionKind
	Owner Owner

	Op    Operator // goals, teamgoals, lead, time
	Value int      // comparison operand, divisor for every

	Names  []string     // opponent names or lowercased match types
	Player string       // mostgoals override
	Label  string       // special
	Sub    *Condition   // not
	Subs   []*Condition // or, and, if (condition, then, else)

	spent atomic.Bool // once
}

// Type returns the rule name used in cue files.
func (c *Condition) Type() string { return c.Kind.String() }

// Tokens returns the constructor arguments, excluding the type.
func (c *Condition) Tokens() []string {
	switch c.Kind {
	case CondGoals, CondTeamGoals, CondLead, CondTime:
		return []string{c.Op.String(), strconv.Itoa(c.Value)}
	case CondEvery:
		return []string{strconv.Itoa(c.Value)}
	case CondOpponent, CondMatch:
		return slices.Clone(c.Names)
	case CondMostGoals:
		if c.Player != "" {
			return []string{c.Player}
		}
	case CondSpecial:
		if c.Label != "" {
			return []string{c.Label}
		}
	case CondNot:
		return append([]string{c.Sub.Type()}, c.Sub.Tokens()...)
	case CondOr, CondAnd, CondIf:
		var out []string
		for i, sub := range c.Subs {
			if i > 0 {
				out = append(out, SubSeparator)
			}
			out = append(out, sub.Type())
			out = append(out, sub.Tokens()...)
		}
		return out
	}
	return []string{}
}

func (c *Condition) String() string {
	return strings.TrimSpace(c.Type() + " " + JoinTokens(c.Tokens()))
}

// Check evaluates the condition. A Retire result means the owning cue can
// never match again. Errors only come from prompting for the goal minute.
func (c *Condition) Check(gs GameState) (Result, error) {
	home := c.Owner.Home
	switch c.Kind {
	case CondGoals:
		return resultOf(c.Op.Compare(gs.PlayerGoals(c.Owner.Player, home), c.Value)), nil
	case CondTeamGoals:
		return resultOf(c.Op.Compare(gs.TeamScore(home), c.Value)), nil
	case CondLead:
		return resultOf(c.Op.Compare(gs.TeamScore(home)-gs.OpponentScore(home), c.Value)), nil
	case CondEvery:
		return resultOf(gs.PlayerGoals(c.Owner.Player, home)%c.Value == 0), nil
	case CondOpponent:
		return resultOf(slices.Contains(c.Names, gs.OpponentName(home))), nil
	case CondMatch:
		return resultOf(slices.Contains(c.Names, strings.ToLower(gs.MatchType()))), nil
	case CondHome:
		return resultOf(home), nil
	case CondFirst:
		return resultOf(gs.TeamScore(home) == 1), nil
	case CondComeback:
		ours, theirs := gs.TeamScore(home), gs.OpponentScore(home)
		return resultOf(ours <= theirs && theirs > 0), nil
	case CondMostGoals:
		return resultOf(c.mostGoals(gs)), nil
	case CondOnce:
		if c.spent.Swap(true) {
			return Retire, nil
		}
		return Matched, nil
	case CondNot:
		res, err := c.Sub.Check(gs)
		if err != nil || res == Retire {
			return res, err
		}
		return resultOf(res == NotMatched), nil
	case CondOr, CondAnd:
		want := c.Kind == CondOr
		for _, sub := range c.Subs {
			res, err := sub.Check(gs)
			if err != nil || res == Retire {
				return res, err
			}
			if (res == Matched) == want {
				return resultOf(want), nil
			}
		}
		return resultOf(!want), nil
	case CondIf:
		res, err := c.Subs[0].Check(gs)
		if err != nil || res == Retire {
			return res, err
		}
		if res == Matched {
			return c.Subs[1].Check(gs)
		}
		return c.Subs[2].Check(gs)
	case CondTime:
		return c.checkTime(gs)
	case CondSpecial:
		return NotMatched, nil
	default:
		return NotMatched, fmt.Errorf("unhandled condition kind %v", c.Kind)
	}
}

func (c *Condition) mostGoals(gs GameState) bool {
	player := c.Player
	if player == "" {
		player = c.Owner.Player
	}
	mine := gs.PlayerGoals(player, c.Owner.Home)
	for _, goals := range gs.TeamScorers(c.Owner.Home) {
		if mine < goals {
			return false
		}
	}
	return true
}

func (c *Condition) checkTime(gs GameState) (Result, error) {
	minute, ok := gs.GoalMinute()
	if !ok {
		var err error
		minute, err = gs.PromptGoalMinute()
		if err != nil {
			return NotMatched, fmt.Errorf("goal minute: %w", err)
		}
		gs.SetGoalMinute(minute)
	}
	if minute > c.Value && c.Op.Retirable() {
		return Retire, nil
	}
	return resultOf(c.Op.Compare(minute, c.Value)), nil
}
