// Package cue implements one playable audio cue: its rules, its media and
// the playback state machine (play, fade or pause, end, manual loop).
package cue

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"rigdiogo/pkg/audio"
	"rigdiogo/pkg/logging"
	"rigdiogo/pkg/rules"
)

// Kind is the role a cue plays in the match.
type Kind string

const (
	KindGoalhorn Kind = "goalhorn"
	KindAnthem   Kind = "anthem"
	KindVictory  Kind = "victory"
	KindChant    Kind = "chant"
	KindEvent    Kind = "event"
)

// ErrDisabled is returned when playing a retired cue.
var ErrDisabled = errors.New("cue is disabled")

// Sequencer lets end-of-media instructions hand playback to the roster.
type Sequencer interface {
	PlayNext() error
	PlayAfterIntro() error
}

// Spec is the declarative description of a cue.
type Spec struct {
	Owner  rules.Owner
	Roster string // trigger identity: player name, "anthem", "goal", an event type, ...
	Kind   Kind
	Path   string
	Rules  []rules.Rule // file order
}

// Options tune playback.
type Options struct {
	MaxVolume     int
	Fade          bool
	FadeDuration  time.Duration
	FadeSteps     int
	LoopSettle    time.Duration
	UseNormalized bool
}

func (o Options) withDefaults() Options {
	if o.MaxVolume <= 0 {
		o.MaxVolume = 80
	}
	if o.FadeSteps <= 0 {
		o.FadeSteps = 100
	}
	if o.LoopSettle <= 0 {
		o.LoopSettle = 100 * time.Millisecond
	}
	return o
}

type fadeTask struct {
	cancel chan struct{}
	done   chan struct{}
}

// stop cancels the ramp and waits for the fade goroutine to finish.
func (f *fadeTask) stop() {
	close(f.cancel)
	<-f.done
}

// Cue owns one media track and the rules deciding when and how it plays.
type Cue struct {
	spec   Spec
	engine audio.Engine
	opts   Options
	path   string

	conditions   []*rules.Condition
	instructions []*rules.Instruction
	startBucket  []*rules.Instruction
	pauseBucket  []*rules.Instruction
	endBucket    []*rules.Instruction

	mu          sync.Mutex
	track       audio.Track
	disabled    bool
	maxVolume   int
	startOffset time.Duration
	customSpeed bool
	randomise   bool
	unrandom    bool
	warcry      bool
	event       string
	repeat      bool
	manualLoop  bool
	firstPlay   bool
	pauseCounts map[*rules.Instruction]int
	fade        *fadeTask
	epoch       uint64
}

// New loads the cue's media and prepares its instructions.
func New(spec Spec, engine audio.Engine, opts Options) (*Cue, error) {
	opts = opts.withDefaults()
	c := &Cue{
		spec:      spec,
		engine:    engine,
		opts:      opts,
		path:      spec.Path,
		maxVolume: opts.MaxVolume,
	}
	if opts.UseNormalized {
		c.path = audio.ResolveNormalized(spec.Path)
	}

	for _, r := range spec.Rules {
		switch v := r.(type) {
		case *rules.Condition:
			c.conditions = append(c.conditions, v)
		case *rules.Instruction:
			c.instructions = append(c.instructions, v)
			c.appendToBucket(v)
		default:
			return nil, fmt.Errorf("cue %s: unsupported rule %T", filepath.Base(spec.Path), r)
		}
	}

	track, err := engine.Load(c.path)
	if err != nil {
		return nil, fmt.Errorf("cue %s: %w", filepath.Base(spec.Path), err)
	}
	c.track = track
	c.prepareLocked()
	return c, nil
}

func (c *Cue) appendToBucket(in *rules.Instruction) {
	switch in.Point() {
	case rules.AtStart:
		c.startBucket = append(c.startBucket, in)
	case rules.AtPause:
		c.pauseBucket = append(c.pauseBucket, in)
	case rules.AtEnd:
		c.endBucket = append(c.endBucket, in)
	}
}

// prepareLocked derives the cue flags from its instructions. It runs at load
// and again on every reload.
func (c *Cue) prepareLocked() {
	c.firstPlay = true
	c.startOffset = 0
	c.customSpeed = false
	c.randomise = false
	c.unrandom = false
	c.warcry = false
	c.event = ""
	c.pauseCounts = make(map[*rules.Instruction]int)

	switch c.spec.Kind {
	case KindVictory, KindChant, KindEvent:
		c.repeat = false
	default:
		c.repeat = true
	}

	for _, in := range c.instructions {
		switch in.Kind {
		case rules.InstrStart:
			c.startOffset = in.Offset
		case rules.InstrSpeed:
			c.customSpeed = true
		case rules.InstrRandomise:
			c.randomise = true
		case rules.InstrUnrandom:
			c.unrandom = true
		case rules.InstrPause:
			c.pauseCounts[in] = 0
		case rules.InstrEnd:
			if in.End != rules.EndLoop {
				c.repeat = false
			}
		case rules.InstrWarcry:
			c.repeat = false
			c.warcry = true
		case rules.InstrEvent:
			c.event = in.Event
			c.repeat = false
		}
	}

	ext := strings.ToLower(filepath.Ext(c.path))
	c.manualLoop = ext == ".ogg" || ext == ".oga" || ext == ".flac" || c.startOffset > 0
	c.track.SetLoop(c.repeat && !c.manualLoop && c.event == "")
}

// Check evaluates the cue's conditions. A disabled cue always retires.
func (c *Cue) Check(gs rules.GameState) (rules.Result, error) {
	c.mu.Lock()
	disabled := c.disabled
	c.mu.Unlock()
	if disabled {
		return rules.Retire, nil
	}
	return rules.CheckAll(c.conditions, gs)
}

// Play starts or resumes playback. An in-flight fade is cancelled first.
func (c *Cue) Play() error {
	c.cancelFade()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return ErrDisabled
	}
	c.epoch++
	if c.track.EndReached() {
		c.reloadLocked()
	}
	c.track.Play()
	c.track.SetVolume(c.maxVolume)
	if c.firstPlay {
		c.runStartLocked()
		c.firstPlay = false
	}
	slog.Debug("Cue: playing", "file", c.File(), "volume", c.maxVolume)
	return nil
}

func (c *Cue) cancelFade() {
	c.mu.Lock()
	f := c.fade
	c.fade = nil
	c.mu.Unlock()

	if f != nil {
		slog.Debug("Cue: played quickly after pause, cancelling fade", "file", c.File())
		f.stop()
	}
}

// Pause fades out or pauses immediately, depending on Options.Fade.
func (c *Cue) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled || c.fade != nil {
		return
	}
	c.epoch++
	if c.opts.Fade && c.opts.FadeDuration > 0 {
		slog.Debug("Cue: fading out", "file", c.File())
		f := &fadeTask{cancel: make(chan struct{}), done: make(chan struct{})}
		c.fade = f
		go c.fadeOut(f, c.track, c.maxVolume)
		return
	}
	c.runPauseLocked()
	c.track.Pause()
}

// Fading reports whether a fade-out is in progress.
func (c *Cue) Fading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fade != nil
}

func (c *Cue) fadeOut(f *fadeTask, track audio.Track, volume int) {
	defer close(f.done)

	steps := c.opts.FadeSteps
	ticker := time.NewTicker(max(c.opts.FadeDuration/time.Duration(steps), time.Millisecond))
	defer ticker.Stop()

ramp:
	for i := steps; i > 0; i-- {
		track.SetVolume(volume * i / steps)
		select {
		case <-f.cancel:
			break ramp
		case <-ticker.C:
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	c.runPauseLocked()
	c.track.Pause()
	if c.track.EndReached() {
		c.reloadLocked()
	}
	c.track.SetVolume(c.maxVolume)
	if c.fade == f {
		c.fade = nil
	}
}

func (c *Cue) runStartLocked() {
	for _, in := range c.startBucket {
		c.runLocked(in)
	}
}

func (c *Cue) runPauseLocked() {
	for _, in := range c.pauseBucket {
		c.runLocked(in)
	}
}

// runLocked executes a start or pause instruction.
func (c *Cue) runLocked(in *rules.Instruction) {
	logging.TraceDefault("Cue: running instruction", "file", c.File(), "instruction", in.String())
	switch in.Kind {
	case rules.InstrStart:
		c.track.SetPosition(in.Offset)
	case rules.InstrSpeed:
		c.track.SetRate(in.Speed)
	case rules.InstrPause:
		c.pauseCounts[in]++
		if in.Pause == rules.PauseRestart && c.pauseCounts[in]%in.Every == 0 {
			c.track.SetPosition(c.startOffset)
		}
	}
}

// NeedsEndMonitor reports whether playback must be watched for end-of-media.
func (c *Cue) NeedsEndMonitor() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.endBucket) > 0 || (c.repeat && c.manualLoop)
}

// EndReached reports whether the media ran out.
func (c *Cue) EndReached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.disabled && c.track.EndReached()
}

// RunEnd handles end-of-media: it runs the end instructions or, for a
// repeating cue that loops manually, restarts from the start offset. The
// return value says whether the caller should keep watching for the end.
func (c *Cue) RunEnd(seq Sequencer) bool {
	c.mu.Lock()
	if c.disabled {
		c.mu.Unlock()
		return false
	}

	var then []func() error
	restart := false
	if len(c.endBucket) > 0 {
		for _, in := range c.endBucket {
			switch {
			case in.Kind == rules.InstrWarcry:
				then = append(then, seq.PlayAfterIntro)
			case in.End == rules.EndStop:
				c.reloadLocked()
			case in.End == rules.EndNext:
				c.reloadLocked()
				then = append(then, seq.PlayNext)
			case in.End == rules.EndLoop:
				restart = true
			}
		}
	} else if c.repeat && c.manualLoop {
		restart = true
	}
	c.mu.Unlock()

	// Sequencer calls re-enter the roster, which pauses this cue.
	for _, f := range then {
		if err := f(); err != nil {
			slog.Warn("Cue: end instruction could not continue playback", "file", c.File(), "error", err)
		}
	}
	if restart {
		return c.restart()
	}
	return false
}

// restart is the manual loop: stop, settle, seek to the start offset, play.
// It gives up if the cue was paused, played or retired while settling.
func (c *Cue) restart() bool {
	c.mu.Lock()
	c.track.Stop()
	epoch := c.epoch
	c.mu.Unlock()

	time.Sleep(c.opts.LoopSettle)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled || c.epoch != epoch {
		return false
	}
	c.track.Play()
	c.track.SetVolume(c.maxVolume)
	c.runStartLocked()
	slog.Debug("Cue: looped", "file", c.File(), "offset", c.startOffset)
	return true
}

// Reload replaces the media with a fresh instance and resets first play.
func (c *Cue) Reload() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.disabled {
		c.reloadLocked()
	}
}

func (c *Cue) reloadLocked() {
	c.epoch++
	track, err := c.engine.Load(c.path)
	if err != nil {
		slog.Error("Cue: reload failed, keeping old media", "file", c.File(), "error", err)
		c.track.Stop()
		c.firstPlay = true
		return
	}
	old := c.track
	old.Stop()
	if err := old.Close(); err != nil {
		slog.Warn("Cue: closing old media", "file", c.File(), "error", err)
	}
	c.track = track
	c.prepareLocked()
	c.track.SetVolume(c.maxVolume)
}

// Disable retires the cue for good and releases its media.
func (c *Cue) Disable() {
	c.cancelFade()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disabled {
		return
	}
	c.disabled = true
	c.epoch++
	c.track.Stop()
	if err := c.track.Close(); err != nil {
		slog.Warn("Cue: closing media", "file", c.File(), "error", err)
	}
}

// AdjustVolume sets the cue's maximum volume (0-100).
func (c *Cue) AdjustVolume(level int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maxVolume = max(0, min(100, level))
	if !c.disabled && c.fade == nil {
		c.track.SetVolume(c.maxVolume)
	}
}

// Stop halts playback and rewinds without running pause instructions.
func (c *Cue) Stop() {
	c.cancelFade()
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.disabled {
		c.epoch++
		c.track.Stop()
	}
}

func (c *Cue) Volume() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxVolume
}

func (c *Cue) FirstPlay() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.firstPlay
}

func (c *Cue) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

func (c *Cue) Randomise() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.randomise
}

func (c *Cue) Unrandom() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unrandom
}

func (c *Cue) Warcry() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.warcry
}

func (c *Cue) Event() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.event
}

func (c *Cue) Repeat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.repeat
}

func (c *Cue) ManualLoop() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.manualLoop
}

func (c *Cue) StartOffset() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.startOffset
}

func (c *Cue) Kind() Kind           { return c.spec.Kind }
func (c *Cue) Roster() string       { return c.spec.Roster }
func (c *Cue) Owner() rules.Owner   { return c.spec.Owner }
func (c *Cue) Spec() Spec           { return c.spec }
func (c *Cue) MediaPath() string    { return c.path }
func (c *Cue) File() string         { return filepath.Base(c.spec.Path) }
func (c *Cue) Rules() []rules.Rule  { return c.spec.Rules }
func (c *Cue) HasConditions() bool  { return len(c.conditions) > 0 }
func (c *Cue) String() string       { return c.spec.Roster + ":" + c.File() }
func (c *Cue) EndInstructions() int { return len(c.endBucket) }

// Title is the media's tag title and artist, or the file name.
func (c *Cue) Title() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t := c.track.Metadata().Display(); t != "" {
		return t
	}
	return c.File()
}
