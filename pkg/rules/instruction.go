package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// InstructionKind tags the Instruction variant.
type InstructionKind int

const (
	InstrStart InstructionKind = iota + 1
	InstrSpeed
	InstrRandomise
	InstrUnrandom
	InstrPause
	InstrEnd
	InstrWarcry
	InstrEvent
)

var instructionNames = map[InstructionKind]string{
	InstrStart:     "start",
	InstrSpeed:     "speed",
	InstrRandomise: "randomise",
	InstrUnrandom:  "unrandom",
	InstrPause:     "pause",
	InstrEnd:       "end",
	InstrWarcry:    "warcry",
	InstrEvent:     "event",
}

func (k InstructionKind) String() string {
	if n, ok := instructionNames[k]; ok {
		return n
	}
	return fmt.Sprintf("InstructionKind(%d)", int(k))
}

// Point is the lifecycle point an instruction runs at.
type Point int

const (
	AtStart Point = iota
	AtPause
	AtEnd
)

// PauseMode is what a pause instruction does to the playback position.
type PauseMode string

const (
	PauseContinue PauseMode = "continue"
	PauseRestart  PauseMode = "restart"
)

// EndMode is what an end instruction does when the media runs out.
type EndMode string

const (
	EndLoop EndMode = "loop"
	EndStop EndMode = "stop"
	EndNext EndMode = "next"
)

// EventTypes are the values the deprecated event instruction accepts.
var EventTypes = []string{"red", "yellow", "owngoal", "sub"}

const (
	minSpeed = 0.25
	maxSpeed = 4.0
)

// Instruction modifies how a cue plays rather than when.
type Instruction struct {
	Kind InstructionKind

	Raw    string        // start and speed arguments as written
	Offset time.Duration // start
	Speed  float64       // speed
	Pause  PauseMode
	Every  int // pause restart gating, 1 = every pause
	End    EndMode
	Event  string
}

// Type returns the rule name used in cue files.
func (in *Instruction) Type() string { return in.Kind.String() }

// Point returns the bucket the instruction is attached to.
func (in *Instruction) Point() Point {
	switch in.Kind {
	case InstrPause:
		return AtPause
	case InstrEnd, InstrWarcry:
		return AtEnd
	default:
		return AtStart
	}
}

// Tokens returns the constructor arguments, excluding the type.
func (in *Instruction) Tokens() []string {
	switch in.Kind {
	case InstrStart, InstrSpeed:
		return []string{in.Raw}
	case InstrPause:
		toks := []string{string(in.Pause)}
		if in.Every > 1 {
			toks = append(toks, "every", strconv.Itoa(in.Every))
		}
		return toks
	case InstrEnd:
		return []string{string(in.End)}
	case InstrEvent:
		return []string{in.Event}
	}
	return []string{}
}

func (in *Instruction) String() string {
	return strings.TrimSpace(in.Type() + " " + JoinTokens(in.Tokens()))
}

// ParseClock parses "SS", "M:SS" or "H:MM:SS", with optional fractional seconds.
func ParseClock(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("%w: time %q", ErrBadValue, s)
	}
	var secs float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: time %q", ErrBadValue, s)
		}
		secs = secs*60 + v
	}
	return time.Duration(secs * float64(time.Second)), nil
}
