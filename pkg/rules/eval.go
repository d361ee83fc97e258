package rules

// GameState is the read view of a live match that conditions evaluate
// against. All queries are side-effect free except SetGoalMinute.
type GameState interface {
	PlayerGoals(player string, home bool) int
	TeamScore(home bool) int
	OpponentScore(home bool) int
	OpponentName(home bool) string
	MatchType() string
	TeamScorers(home bool) map[string]int

	// GoalMinute returns the minute of the current goal if it is known.
	GoalMinute() (int, bool)
	// SetGoalMinute caches the minute for the rest of this goal's evaluation.
	SetGoalMinute(minute int)
	// PromptGoalMinute asks the operator when the current goal was scored.
	PromptGoalMinute() (int, error)
}

// Result is the outcome of checking a condition.
type Result int

const (
	NotMatched Result = iota
	Matched
	// Retire means the cue can never match again and must be evicted.
	Retire
)

func (r Result) String() string {
	switch r {
	case Matched:
		return "matched"
	case NotMatched:
		return "not-matched"
	case Retire:
		return "retire"
	default:
		return "unknown"
	}
}

func resultOf(ok bool) Result {
	if ok {
		return Matched
	}
	return NotMatched
}

// CheckAll ANDs conds in order, stopping at the first NotMatched or Retire.
// An empty list matches.
func CheckAll(conds []*Condition, gs GameState) (Result, error) {
	for _, c := range conds {
		res, err := c.Check(gs)
		if err != nil {
			return NotMatched, err
		}
		if res != Matched {
			return res, nil
		}
	}
	return Matched, nil
}
