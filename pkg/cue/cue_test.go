package cue

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"rigdiogo/pkg/audio"
	"rigdiogo/pkg/audio/mockaudio"
	"rigdiogo/pkg/rules"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var owner = rules.Owner{Player: "Alice", Team: "Canada", Home: true}

func parseRules(t *testing.T, lines ...string) []rules.Rule {
	t.Helper()
	out := make([]rules.Rule, 0, len(lines))
	for _, l := range lines {
		r, err := rules.ParseLine(l, owner)
		require.NoError(t, err, l)
		out = append(out, r)
	}
	return out
}

func newCue(t *testing.T, e *mockaudio.Engine, kind Kind, path string, opts Options, lines ...string) *Cue {
	t.Helper()
	c, err := New(Spec{Owner: owner, Roster: "Alice", Kind: kind, Path: path, Rules: parseRules(t, lines...)}, e, opts)
	require.NoError(t, err)
	return c
}

type fakeSeq struct {
	next  atomic.Int32
	intro atomic.Int32
}

func (s *fakeSeq) PlayNext() error       { s.next.Add(1); return nil }
func (s *fakeSeq) PlayAfterIntro() error { s.intro.Add(1); return nil }

type nullState struct{ goals int }

func (n nullState) PlayerGoals(string, bool) int    { return n.goals }
func (n nullState) TeamScore(bool) int              { return n.goals }
func (n nullState) OpponentScore(bool) int          { return 0 }
func (n nullState) OpponentName(bool) string        { return "Mexico" }
func (n nullState) MatchType() string               { return "Group" }
func (n nullState) TeamScorers(bool) map[string]int { return map[string]int{"Alice": n.goals} }
func (n nullState) GoalMinute() (int, bool)         { return 0, false }
func (n nullState) SetGoalMinute(int)               {}
func (n nullState) PromptGoalMinute() (int, error)  { return 0, errors.New("no prompt") }

func TestNew_DerivedFlags(t *testing.T) {
	tests := []struct {
		name       string
		kind       Kind
		path       string
		lines      []string
		repeat     bool
		manualLoop bool
		nativeLoop bool
	}{
		{name: "Goalhorn Loops Natively", kind: KindGoalhorn, path: "horn.mp3", repeat: true, nativeLoop: true},
		{name: "Victory No Repeat", kind: KindVictory, path: "win.mp3"},
		{name: "Chant No Repeat", kind: KindChant, path: "olé.mp3"},
		{name: "Ogg Manual Loop", kind: KindGoalhorn, path: "horn.ogg", repeat: true, manualLoop: true},
		{name: "Start Offset Manual Loop", kind: KindAnthem, path: "anthem.mp3", lines: []string{"start 0:15"}, repeat: true, manualLoop: true},
		{name: "End Stop", kind: KindGoalhorn, path: "horn.mp3", lines: []string{"end stop"}},
		{name: "End Loop Keeps Repeat", kind: KindGoalhorn, path: "horn.mp3", lines: []string{"end loop"}, repeat: true, nativeLoop: true},
		{name: "Warcry", kind: KindGoalhorn, path: "cry.mp3", lines: []string{"warcry"}},
		{name: "Event Instruction", kind: KindGoalhorn, path: "card.mp3", lines: []string{"event red"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := mockaudio.New()
			c := newCue(t, e, tt.kind, tt.path, Options{}, tt.lines...)
			assert.Equal(t, tt.repeat, c.Repeat(), "repeat")
			assert.Equal(t, tt.manualLoop, c.ManualLoop(), "manual loop")
			assert.Equal(t, tt.nativeLoop, e.Latest(tt.path).Looping(), "native loop")
			assert.True(t, c.FirstPlay())
		})
	}

	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "a.mp3", Options{}, "randomise", "warcry", "event sub")
	assert.True(t, c.Randomise())
	assert.True(t, c.Warcry())
	assert.Equal(t, "sub", c.Event())
	assert.Equal(t, 1, c.EndInstructions())

	c = newCue(t, e, KindChant, "b.mp3", Options{}, "unrandom")
	assert.True(t, c.Unrandom())
	assert.False(t, c.Randomise())
}

func TestNew_Missing(t *testing.T) {
	e := mockaudio.New()
	e.SetMissing("gone.mp3")
	_, err := New(Spec{Roster: "Alice", Kind: KindGoalhorn, Path: "gone.mp3"}, e, Options{})
	var missing *audio.MissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, "gone.mp3", missing.Path)
}

func TestNew_PrefersNormalized(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"horn.mp3", "horn_normalized.mp3"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, filepath.Join(dir, "horn.mp3"), Options{UseNormalized: true})
	assert.Equal(t, filepath.Join(dir, "horn_normalized.mp3"), c.MediaPath())
	assert.Equal(t, "horn.mp3", c.File())
}

func TestPlay_StartInstructionsRunOnce(t *testing.T) {
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{MaxVolume: 70}, "start 0:30", "speed 1.5")
	track := e.Latest("horn.mp3")
	track.ResetCalls()

	require.NoError(t, c.Play())
	assert.Equal(t, []string{"play", "seek 30s", "rate 1.5"}, track.Calls())
	assert.Equal(t, 70, track.Volume())
	assert.False(t, c.FirstPlay())

	c.Pause()
	track.ResetCalls()
	require.NoError(t, c.Play())
	assert.Equal(t, []string{"play"}, track.Calls())
}

func TestPause_RestartEverySecond(t *testing.T) {
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{}, "start 0:10", "pause restart every 2")
	track := e.Latest("horn.mp3")

	require.NoError(t, c.Play())
	track.SetPosition(42 * time.Second)
	track.ResetCalls()

	c.Pause()
	assert.Equal(t, []string{"pause"}, track.Calls(), "first pause keeps position")
	assert.Equal(t, 42*time.Second, track.Position())

	require.NoError(t, c.Play())
	track.ResetCalls()
	c.Pause()
	assert.Equal(t, []string{"seek 10s", "pause"}, track.Calls(), "second pause rewinds to start offset")
}

func TestPause_Continue(t *testing.T) {
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{}, "pause continue")
	track := e.Latest("horn.mp3")

	require.NoError(t, c.Play())
	for i := 0; i < 3; i++ {
		track.ResetCalls()
		c.Pause()
		assert.Equal(t, []string{"pause"}, track.Calls())
		require.NoError(t, c.Play())
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPause_FadeCompletes(t *testing.T) {
	e := mockaudio.New()
	opts := Options{MaxVolume: 60, Fade: true, FadeDuration: 40 * time.Millisecond, FadeSteps: 4}
	c := newCue(t, e, KindAnthem, "anthem.mp3", opts, "pause restart")
	track := e.Latest("anthem.mp3")

	require.NoError(t, c.Play())
	c.Pause()
	assert.True(t, c.Fading())
	assert.True(t, track.Playing(), "fade keeps playing while ramping")

	waitFor(t, func() bool { return !c.Fading() })
	assert.False(t, track.Playing())
	assert.Equal(t, 60, track.Volume(), "volume restored after fade")
	assert.Contains(t, track.Calls(), "seek 0s")
}

func TestPlay_CancelsFade(t *testing.T) {
	e := mockaudio.New()
	opts := Options{MaxVolume: 80, Fade: true, FadeDuration: 5 * time.Second, FadeSteps: 100}
	c := newCue(t, e, KindGoalhorn, "horn.mp3", opts)
	track := e.Latest("horn.mp3")

	require.NoError(t, c.Play())
	c.Pause()
	require.True(t, c.Fading())

	start := time.Now()
	require.NoError(t, c.Play())
	assert.Less(t, time.Since(start), time.Second, "cancel must not wait out the ramp")
	assert.False(t, c.Fading())
	assert.True(t, track.Playing())
	assert.Equal(t, 80, track.Volume())
}

func TestFade_ReloadsWhenEndedDuringFade(t *testing.T) {
	e := mockaudio.New()
	opts := Options{Fade: true, FadeDuration: 60 * time.Millisecond, FadeSteps: 3}
	c := newCue(t, e, KindVictory, "win.mp3", opts)
	first := e.Latest("win.mp3")

	require.NoError(t, c.Play())
	c.Pause()
	first.ForceEnd()
	waitFor(t, func() bool { return !c.Fading() })

	assert.Len(t, e.Tracks(), 2)
	assert.True(t, first.Closed())
	assert.True(t, c.FirstPlay())
}

func TestRunEnd(t *testing.T) {
	t.Run("Stop Reloads", func(t *testing.T) {
		e := mockaudio.New()
		c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{}, "end stop")
		require.True(t, c.NeedsEndMonitor())
		require.NoError(t, c.Play())
		e.Latest("horn.mp3").ForceEnd()
		require.True(t, c.EndReached())

		seq := &fakeSeq{}
		assert.False(t, c.RunEnd(seq))
		assert.Len(t, e.Tracks(), 2)
		assert.True(t, c.FirstPlay())
		assert.Zero(t, seq.next.Load())
	})

	t.Run("Next Advances", func(t *testing.T) {
		e := mockaudio.New()
		c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{}, "end next")
		require.NoError(t, c.Play())
		seq := &fakeSeq{}
		assert.False(t, c.RunEnd(seq))
		assert.EqualValues(t, 1, seq.next.Load())
		assert.Len(t, e.Tracks(), 2)
	})

	t.Run("Warcry Hands Over", func(t *testing.T) {
		e := mockaudio.New()
		c := newCue(t, e, KindGoalhorn, "cry.mp3", Options{}, "warcry")
		require.NoError(t, c.Play())
		seq := &fakeSeq{}
		assert.False(t, c.RunEnd(seq))
		assert.EqualValues(t, 1, seq.intro.Load())
	})

	t.Run("Manual Loop Restarts", func(t *testing.T) {
		e := mockaudio.New()
		c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{LoopSettle: time.Millisecond, MaxVolume: 50}, "start 1:00")
		require.True(t, c.NeedsEndMonitor())
		track := e.Latest("horn.mp3")
		require.NoError(t, c.Play())
		track.ForceEnd()
		track.ResetCalls()

		assert.True(t, c.RunEnd(&fakeSeq{}))
		assert.Equal(t, []string{"stop", "play", "seek 1m0s"}, track.Calls())
		assert.Equal(t, 50, track.Volume())
		assert.False(t, c.EndReached())
	})

	t.Run("No Monitor For Plain Cue", func(t *testing.T) {
		e := mockaudio.New()
		c := newCue(t, e, KindVictory, "win.mp3", Options{})
		assert.False(t, c.NeedsEndMonitor())
		assert.False(t, c.RunEnd(&fakeSeq{}))
	})
}

func TestRestart_AbortsWhenPausedWhileSettling(t *testing.T) {
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "horn.ogg", Options{LoopSettle: 100 * time.Millisecond})
	track := e.Latest("horn.ogg")
	require.NoError(t, c.Play())
	track.ForceEnd()

	done := make(chan bool)
	go func() { done <- c.RunEnd(&fakeSeq{}) }()
	time.Sleep(20 * time.Millisecond)
	c.Pause()

	assert.False(t, <-done)
	assert.False(t, track.Playing())
}

func TestDisable(t *testing.T) {
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{})
	c.Disable()

	res, err := c.Check(nullState{})
	require.NoError(t, err)
	assert.Equal(t, rules.Retire, res)
	assert.ErrorIs(t, c.Play(), ErrDisabled)
	assert.True(t, e.Latest("horn.mp3").Closed())
	assert.True(t, c.Disabled())
}

func TestCheck(t *testing.T) {
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{}, "goals >= 2", "opponent Mexico", "start 0:05")

	res, err := c.Check(nullState{goals: 1})
	require.NoError(t, err)
	assert.Equal(t, rules.NotMatched, res)

	res, err = c.Check(nullState{goals: 2})
	require.NoError(t, err)
	assert.Equal(t, rules.Matched, res)
}

func TestAdjustVolume(t *testing.T) {
	e := mockaudio.New()
	c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{})
	c.AdjustVolume(130)
	assert.Equal(t, 100, c.Volume())
	c.AdjustVolume(35)
	assert.Equal(t, 35, e.Latest("horn.mp3").Volume())
}

func TestTitle(t *testing.T) {
	e := mockaudio.New()
	e.SetMetadata("horn.mp3", audio.Metadata{Title: "Kernkraft 400", Artist: "Zombie Nation"})
	c := newCue(t, e, KindGoalhorn, "horn.mp3", Options{})
	assert.Equal(t, "Kernkraft 400 - Zombie Nation", c.Title())

	c = newCue(t, e, KindGoalhorn, "other.mp3", Options{})
	assert.Equal(t, "other", c.Title())
}

func TestRecord(t *testing.T) {
	e := mockaudio.New()
	bare := newCue(t, e, KindGoalhorn, "teams/canada/horn.mp3", Options{})
	assert.Equal(t, "horn.mp3", bare.Record())

	full := newCue(t, e, KindGoalhorn, "teams/canada/horn.mp3", Options{}, "goals >= 2", "home", "opponent [Costa Rica]", "start 0:30", "warcry")
	want := Entry{
		Filename: "horn.mp3",
		Conditions: []RuleRecord{
			{"goals": []any{">=", 2}},
			{"home": nil},
			{"opponent": []any{"Costa", "Rica"}},
		},
		Instructions: []RuleRecord{
			{"start": "0:30"},
			{"warcry": nil},
		},
	}
	assert.Equal(t, want, full.Record())

	onlyInstr := newCue(t, e, KindChant, "chant.mp3", Options{}, "unrandom")
	entry, ok := onlyInstr.Record().(Entry)
	require.True(t, ok)
	assert.NotNil(t, entry.Conditions)
	assert.Empty(t, entry.Conditions)
}
