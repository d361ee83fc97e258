package rules

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_Instructions(t *testing.T) {
	tests := []struct {
		line   string
		check  func(t *testing.T, in *Instruction)
		tokens []string
		point  Point
	}{
		{
			line: "start 1:30",
			check: func(t *testing.T, in *Instruction) {
				assert.Equal(t, 90*time.Second, in.Offset)
			},
			tokens: []string{"1:30"},
			point:  AtStart,
		},
		{
			line: "speed 1.25",
			check: func(t *testing.T, in *Instruction) {
				assert.InDelta(t, 1.25, in.Speed, 1e-9)
			},
			tokens: []string{"1.25"},
			point:  AtStart,
		},
		{
			line: "pause restart every 2",
			check: func(t *testing.T, in *Instruction) {
				assert.Equal(t, PauseRestart, in.Pause)
				assert.Equal(t, 2, in.Every)
			},
			tokens: []string{"restart", "every", "2"},
			point:  AtPause,
		},
		{
			line: "PAUSE continue",
			check: func(t *testing.T, in *Instruction) {
				assert.Equal(t, PauseContinue, in.Pause)
				assert.Equal(t, 1, in.Every)
			},
			tokens: []string{"continue"},
			point:  AtPause,
		},
		{line: "end stop", tokens: []string{"stop"}, point: AtEnd},
		{line: "end next", tokens: []string{"next"}, point: AtEnd},
		{line: "warcry", tokens: []string{}, point: AtEnd},
		{line: "randomise", tokens: []string{}, point: AtStart},
		{line: "unrandom", tokens: []string{}, point: AtStart},
		{line: "event yellow", tokens: []string{"yellow"}, point: AtStart},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			r, err := ParseLine(tt.line, homeOwner)
			require.NoError(t, err)
			in, ok := r.(*Instruction)
			require.True(t, ok)
			if tt.check != nil {
				tt.check(t, in)
			}
			assert.Equal(t, tt.tokens, in.Tokens())
			assert.Equal(t, tt.point, in.Point())
			assert.True(t, IsInstructionType(in.Type()))
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		line  string
		token string
		want  error
	}{
		{"bogus 1", "bogus", ErrUnknownType},
		{"pause rewind", "rewind", ErrBadValue},
		{"pause restart often 2", "often", ErrBadValue},
		{"pause restart every x", "x", ErrBadValue},
		{"end fade", "fade", ErrBadValue},
		{"event penalty", "penalty", ErrBadValue},
		{"speed 9", "9", ErrBadValue},
		{"start soon", "soon", ErrBadValue},
		{"every 0", "0", ErrBadValue},
		{"goals > many", "many", ErrBadValue},
		{"goals", "", ErrMissingArgument},
		{"not warcry", "warcry", ErrBadValue},
		{"not nothing", "nothing", ErrUnknownType},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := ParseLine(tt.line, homeOwner)
			var be *BuildError
			require.True(t, errors.As(err, &be), "want BuildError, got %v", err)
			assert.Equal(t, tt.token, be.Token)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestBuild_Empty(t *testing.T) {
	_, err := Build(nil, homeOwner)
	assert.ErrorIs(t, err, ErrEmptyRule)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"45", 45 * time.Second},
		{"0:07", 7 * time.Second},
		{"2:03.5", 123500 * time.Millisecond},
		{"1:00:00", time.Hour},
	}
	for _, tt := range tests {
		got, err := ParseClock(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"", "a:b", "-1", "1:2:3:4"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, bad)
	}
}

func TestRule_StringRoundTrip(t *testing.T) {
	lines := []string{
		"goals >= 2",
		"opponent Peru Mexico",
		"match group final",
		"not teamgoals == 3",
		"or goals > 1, home",
		"if home, first, comeback",
		"mostgoals Bob",
		"special [We are the champions]",
		"time < 30",
		"start 0:45",
		"pause restart every 3",
		"end loop",
	}
	for _, line := range lines {
		r, err := ParseLine(line, homeOwner)
		require.NoError(t, err, line)
		again, err := ParseLine(r.String(), homeOwner)
		require.NoError(t, err, r.String())
		assert.Equal(t, r.Type(), again.Type(), line)
		assert.Equal(t, r.Tokens(), again.Tokens(), line)
	}
}
