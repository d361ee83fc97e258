// Package game holds the live state of one match.
package game

import (
	"errors"
	"log/slog"
	"maps"
	"sync"
)

// ErrNoPrompter is returned when a goal minute is needed but nobody can be asked.
var ErrNoPrompter = errors.New("no goal minute prompter configured")

// MinutePrompter asks the operator for the minute of the current goal.
type MinutePrompter interface {
	PromptMinute() (int, error)
}

// PrompterFunc adapts a function to MinutePrompter.
type PrompterFunc func() (int, error)

func (f PrompterFunc) PromptMinute() (int, error) { return f() }

type team struct {
	name    string
	scorers map[string]int
	total   int
}

// State is the mutable match state. It satisfies rules.GameState.
type State struct {
	mu        sync.RWMutex
	home      team
	away      team
	matchType string
	minute    *int
	prompter  MinutePrompter
}

// NewState creates the state for a match between home and away.
func NewState(home, away, matchType string, prompter MinutePrompter) *State {
	return &State{
		home:      team{name: home, scorers: make(map[string]int)},
		away:      team{name: away, scorers: make(map[string]int)},
		matchType: matchType,
		prompter:  prompter,
	}
}

func (s *State) team(home bool) *team {
	if home {
		return &s.home
	}
	return &s.away
}

// AddGoal records a goal for player. A minute left over from an earlier
// goal is forgotten.
func (s *State) AddGoal(home bool, player string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minute = nil
	t := s.team(home)
	t.scorers[player]++
	t.total++
	slog.Debug("Game: goal recorded", "team", t.name, "player", player, "score", s.home.total, "against", s.away.total)
}

// RemoveGoal undoes one goal for player. It returns false if player had none.
func (s *State) RemoveGoal(home bool, player string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.team(home)
	if t.scorers[player] == 0 {
		return false
	}
	t.scorers[player]--
	if t.scorers[player] == 0 {
		delete(t.scorers, player)
	}
	t.total--
	return true
}

// SetMatchType changes the match phase (Group, Final, ...).
func (s *State) SetMatchType(mt string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchType = mt
}

// ClearGoalFlags forgets data that only applies to the goal just handled.
func (s *State) ClearGoalFlags() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minute = nil
}

func (s *State) PlayerGoals(player string, home bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.team(home).scorers[player]
}

func (s *State) TeamScore(home bool) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.team(home).total
}

func (s *State) OpponentScore(home bool) int {
	return s.TeamScore(!home)
}

// TeamName returns the name of the home or away team.
func (s *State) TeamName(home bool) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.team(home).name
}

func (s *State) OpponentName(home bool) string {
	return s.TeamName(!home)
}

func (s *State) MatchType() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchType
}

// TeamScorers returns a copy of the per-player tally.
func (s *State) TeamScorers(home bool) map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.team(home).scorers)
}

func (s *State) GoalMinute() (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.minute == nil {
		return 0, false
	}
	return *s.minute, true
}

func (s *State) SetGoalMinute(minute int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.minute = &minute
}

func (s *State) PromptGoalMinute() (int, error) {
	s.mu.RLock()
	p := s.prompter
	s.mu.RUnlock()
	if p == nil {
		return 0, ErrNoPrompter
	}
	return p.PromptMinute()
}
