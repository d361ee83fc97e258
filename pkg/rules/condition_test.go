package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type side struct {
	name    string
	scorers map[string]int
}

type fakeState struct {
	home, away side
	matchType  string
	minute     *int
	prompted   int
	promptWith int
	promptErr  error
}

func newFakeState() *fakeState {
	return &fakeState{
		home:      side{name: "Canada", scorers: map[string]int{}},
		away:      side{name: "Mexico", scorers: map[string]int{}},
		matchType: "Group",
	}
}

func (f *fakeState) side(home bool) *side {
	if home {
		return &f.home
	}
	return &f.away
}

func (f *fakeState) score(home bool) int {
	total := 0
	for _, g := range f.side(home).scorers {
		total += g
	}
	return total
}

func (f *fakeState) PlayerGoals(p string, home bool) int  { return f.side(home).scorers[p] }
func (f *fakeState) TeamScore(home bool) int              { return f.score(home) }
func (f *fakeState) OpponentScore(home bool) int          { return f.score(!home) }
func (f *fakeState) OpponentName(home bool) string        { return f.side(!home).name }
func (f *fakeState) MatchType() string                    { return f.matchType }
func (f *fakeState) TeamScorers(home bool) map[string]int { return f.side(home).scorers }
func (f *fakeState) SetGoalMinute(m int)                  { f.minute = &m }

func (f *fakeState) GoalMinute() (int, bool) {
	if f.minute == nil {
		return 0, false
	}
	return *f.minute, true
}

func (f *fakeState) PromptGoalMinute() (int, error) {
	f.prompted++
	return f.promptWith, f.promptErr
}

var homeOwner = Owner{Player: "Alice", Team: "Canada", Home: true}

func mustCondition(t *testing.T, line string) *Condition {
	t.Helper()
	r, err := ParseLine(line, homeOwner)
	require.NoError(t, err)
	c, ok := r.(*Condition)
	require.True(t, ok, "%q is not a condition", line)
	return c
}

func TestParseOperator(t *testing.T) {
	for _, sym := range []string{"<", ">", "<=", ">=", "==", "!="} {
		op, err := ParseOperator(sym)
		require.NoError(t, err, sym)
		assert.Equal(t, sym, op.String())
	}

	op, err := ParseOperator("=")
	require.NoError(t, err)
	assert.Equal(t, OpEQ, op)
}

func TestParseOperator_RejectsEverythingElse(t *testing.T) {
	valid := map[string]bool{"<": true, ">": true, "<=": true, ">=": true, "==": true, "!=": true, "=": true}
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.StringMatching(`[<>=!~a-z0-9]{0,3}`).Draw(t, "op")
		_, err := ParseOperator(s)
		if valid[s] && err != nil {
			t.Fatalf("%q rejected: %v", s, err)
		}
		if !valid[s] && !errors.Is(err, ErrBadOperator) {
			t.Fatalf("%q accepted", s)
		}
	})
}

func TestComparisonConstruction(t *testing.T) {
	for _, typ := range []string{"goals", "teamgoals", "lead", "time"} {
		for _, op := range []string{"<", ">", "<=", ">=", "==", "!=", "="} {
			_, err := ParseLine(typ+" "+op+" 2", homeOwner)
			assert.NoError(t, err, "%s %s", typ, op)
		}
		_, err := ParseLine(typ+" => 2", homeOwner)
		var be *BuildError
		require.True(t, errors.As(err, &be), "%s: want BuildError, got %v", typ, err)
		assert.Equal(t, "=>", be.Token)
		assert.True(t, errors.Is(err, ErrBadOperator))
	}
}

func TestCondition_Check(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		setup func(*fakeState)
		want  Result
	}{
		{"Goals Match", "goals == 2", func(s *fakeState) { s.home.scorers["Alice"] = 2 }, Matched},
		{"Goals Alias", "goals = 1", func(s *fakeState) { s.home.scorers["Alice"] = 2 }, NotMatched},
		{"Team Goals", "teamgoals > 2", func(s *fakeState) { s.home.scorers["Alice"] = 2; s.home.scorers["Bob"] = 1 }, Matched},
		{"Lead", "lead >= 1", func(s *fakeState) { s.home.scorers["Alice"] = 2; s.away.scorers["Zed"] = 1 }, Matched},
		{"Lead Behind", "lead >= 1", func(s *fakeState) { s.away.scorers["Zed"] = 1 }, NotMatched},
		{"Every Hit", "every 2", func(s *fakeState) { s.home.scorers["Alice"] = 4 }, Matched},
		{"Every Miss", "every 2", func(s *fakeState) { s.home.scorers["Alice"] = 3 }, NotMatched},
		{"Opponent", "opponent Peru Mexico", nil, Matched},
		{"Opponent Bracketed", "opponent [Peru Mexico]", nil, Matched},
		{"Opponent Miss", "opponent Peru", nil, NotMatched},
		{"Match Case Insensitive", "match group final", nil, Matched},
		{"Match Knockouts", "match knockouts", func(s *fakeState) { s.matchType = "Semifinal" }, Matched},
		{"Match Knockouts Group", "match knockouts", nil, NotMatched},
		{"Home", "home", nil, Matched},
		{"Not Home", "not home", nil, NotMatched},
		{"First", "first", func(s *fakeState) { s.home.scorers["Alice"] = 1 }, Matched},
		{"First Second Goal", "first", func(s *fakeState) { s.home.scorers["Alice"] = 2 }, NotMatched},
		{"Comeback Equaliser", "comeback", func(s *fakeState) { s.home.scorers["Alice"] = 1; s.away.scorers["Zed"] = 1 }, Matched},
		{"Comeback Ahead", "comeback", func(s *fakeState) { s.home.scorers["Alice"] = 2; s.away.scorers["Zed"] = 1 }, NotMatched},
		{"Comeback Nil", "comeback", func(s *fakeState) { s.home.scorers["Alice"] = 1 }, NotMatched},
		{"Most Goals", "mostgoals", func(s *fakeState) { s.home.scorers["Alice"] = 2; s.home.scorers["Bob"] = 2 }, Matched},
		{"Most Goals Behind", "mostgoals", func(s *fakeState) { s.home.scorers["Alice"] = 1; s.home.scorers["Bob"] = 2 }, NotMatched},
		{"Most Goals Specified", "mostgoals Bob", func(s *fakeState) { s.home.scorers["Alice"] = 1; s.home.scorers["Bob"] = 2 }, Matched},
		{"Special Never Matches", "special [Champions!]", nil, NotMatched},
		{"Not Goals", "not goals > 1", func(s *fakeState) { s.home.scorers["Alice"] = 1 }, Matched},
		{"Or", "or opponent Peru, home", nil, Matched},
		{"Or Neither", "or opponent Peru , not home", nil, NotMatched},
		{"And", "and home, goals > 1", func(s *fakeState) { s.home.scorers["Alice"] = 1 }, NotMatched},
		{"If Then", "if home, goals == 1, goals == 2", func(s *fakeState) { s.home.scorers["Alice"] = 1 }, Matched},
		{"If Else", "if not home, goals == 1, goals == 2", func(s *fakeState) { s.home.scorers["Alice"] = 2 }, Matched},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gs := newFakeState()
			if tt.setup != nil {
				tt.setup(gs)
			}
			c := mustCondition(t, tt.line)
			got, err := c.Check(gs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOnce_RetiresAfterFirstMatch(t *testing.T) {
	gs := newFakeState()
	c := mustCondition(t, "once")

	res, err := c.Check(gs)
	require.NoError(t, err)
	assert.Equal(t, Matched, res)

	for i := 0; i < 3; i++ {
		res, err = c.Check(gs)
		require.NoError(t, err)
		assert.Equal(t, Retire, res, "check %d", i+2)
	}
}

func TestNot_PropagatesRetire(t *testing.T) {
	gs := newFakeState()
	c := mustCondition(t, "not once")

	res, _ := c.Check(gs)
	assert.Equal(t, NotMatched, res)
	res, _ = c.Check(gs)
	assert.Equal(t, Retire, res)
}

func TestGroup_PropagatesRetire(t *testing.T) {
	gs := newFakeState()
	c := mustCondition(t, "or once, home")

	res, _ := c.Check(gs)
	assert.Equal(t, Matched, res)
	res, _ = c.Check(gs)
	assert.Equal(t, Retire, res)
}

func TestGroup_Construction(t *testing.T) {
	c := mustCondition(t, "and goals >= 2, opponent [Costa Rica]")
	require.Len(t, c.Subs, 2)
	assert.Equal(t, []string{"goals", ">=", "2", ",", "opponent", "Costa", "Rica"}, c.Tokens())

	for _, bad := range []string{"if home, first", "or home,, first", "and home, warcry"} {
		_, err := ParseLine(bad, homeOwner)
		assert.Error(t, err, bad)
	}
}

func TestTime(t *testing.T) {
	tests := []struct {
		line   string
		minute int
		want   Result
	}{
		{"time < 10", 5, Matched},
		{"time < 10", 10, NotMatched},
		{"time < 10", 11, Retire},
		{"time <= 10", 11, Retire},
		{"time == 10", 10, Matched},
		{"time == 10", 9, NotMatched},
		{"time == 10", 12, Retire},
		{"time > 80", 85, Matched},
		{"time > 80", 20, NotMatched},
		{"time >= 80", 90, Matched},
		{"time != 45", 90, Matched},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			gs := newFakeState()
			gs.SetGoalMinute(tt.minute)
			res, err := mustCondition(t, tt.line).Check(gs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
			assert.Zero(t, gs.prompted)
		})
	}
}

func TestTime_PromptsOnceAndCaches(t *testing.T) {
	gs := newFakeState()
	gs.promptWith = 30
	early := mustCondition(t, "time < 45")
	late := mustCondition(t, "time > 20")

	res, err := CheckAll([]*Condition{early, late}, gs)
	require.NoError(t, err)
	assert.Equal(t, Matched, res)
	assert.Equal(t, 1, gs.prompted)

	m, ok := gs.GoalMinute()
	assert.True(t, ok)
	assert.Equal(t, 30, m)
}

func TestTime_PromptError(t *testing.T) {
	gs := newFakeState()
	gs.promptErr = errors.New("cancelled")

	_, err := mustCondition(t, "time < 45").Check(gs)
	assert.Error(t, err)
}

func TestCheckAll_ShortCircuits(t *testing.T) {
	gs := newFakeState()
	once := mustCondition(t, "once")
	never := mustCondition(t, "goals > 5")

	res, err := CheckAll([]*Condition{never, once}, gs)
	require.NoError(t, err)
	assert.Equal(t, NotMatched, res)

	// once was never reached, so it still has its single match
	res, err = CheckAll([]*Condition{once}, gs)
	require.NoError(t, err)
	assert.Equal(t, Matched, res)

	res, err = CheckAll([]*Condition{once, never}, gs)
	require.NoError(t, err)
	assert.Equal(t, Retire, res)
}

func TestCheckAll_Empty(t *testing.T) {
	res, err := CheckAll(nil, newFakeState())
	require.NoError(t, err)
	assert.Equal(t, Matched, res)
}
