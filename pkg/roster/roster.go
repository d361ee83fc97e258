// Package roster selects and plays cues for one trigger identity: a player,
// the anthem, the victory song, a team event.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"rigdiogo/pkg/cue"
	"rigdiogo/pkg/logging"
	"rigdiogo/pkg/rules"
)

// ErrNoCue is returned when no cue in the roster matches the game state.
var ErrNoCue = errors.New("no cue available")

// Observer is notified of playback changes. Calls are made without any
// roster lock held.
type Observer interface {
	CuePlayed(r *Roster, c *cue.Cue, firstPlay bool)
	CuePaused(r *Roster, c *cue.Cue)
	CueRetired(r *Roster, c *cue.Cue)
	NoCue(r *Roster)
}

// goalFlagClearer is implemented by game states that cache per-goal data.
type goalFlagClearer interface {
	ClearGoalFlags()
}

// Options tune a Roster.
type Options struct {
	// EndPoll is how often the end-of-media monitor polls the engine.
	EndPoll   time.Duration
	Observers []Observer
	// IntN picks a random index in [0, n). Defaults to math/rand/v2.
	IntN func(n int) int
}

// Roster is the ordered group of cues sharing one trigger identity. Index 0
// has the highest priority.
type Roster struct {
	id   string
	gs   rules.GameState
	opts Options

	mu           sync.Mutex
	cues         []*cue.Cue
	current      *cue.Cue
	last         *cue.Cue
	futureVolume *int
	introAllowed bool
	stopMonitor  context.CancelFunc
}

// New creates a roster over cues in priority order.
func New(id string, cues []*cue.Cue, gs rules.GameState, opts Options) *Roster {
	if opts.EndPoll <= 0 {
		opts.EndPoll = 50 * time.Millisecond
	}
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	return &Roster{
		id:           id,
		gs:           gs,
		opts:         opts,
		cues:         slices.Clone(cues),
		introAllowed: true,
	}
}

func (r *Roster) ID() string { return r.id }

// GetSong selects the cue to play. An explicit cue present in the roster is
// returned as is; otherwise the rules decide.
func (r *Roster) GetSong(explicit *cue.Cue) (*cue.Cue, error) {
	r.mu.Lock()
	c, retired, err := r.selectLocked(explicit)
	r.mu.Unlock()

	for _, rc := range retired {
		r.notify(func(o Observer) { o.CueRetired(r, rc) })
	}
	return c, err
}

func (r *Roster) selectLocked(explicit *cue.Cue) (*cue.Cue, []*cue.Cue, error) {
	if explicit != nil && slices.Contains(r.cues, explicit) {
		return explicit, nil, nil
	}

	var retired []*cue.Cue
	for i := 0; i < len(r.cues); {
		c := r.cues[i]
		res, err := c.Check(r.gs)
		if err != nil {
			return nil, retired, fmt.Errorf("roster %s: checking %s: %w", r.id, c.File(), err)
		}
		if res == rules.Retire {
			slog.Info("Roster: retiring cue", "roster", r.id, "file", c.File())
			c.Disable()
			r.cues = slices.Delete(r.cues, i, i+1)
			retired = append(retired, c)
			continue
		}

		if pool := r.randomPoolLocked(c); len(pool) > 0 {
			r.introAllowed = true
			pick := pool[r.opts.IntN(len(pool))]
			logging.TraceDefault("Roster: random pick", "roster", r.id, "file", pick.File(), "pool", len(pool))
			return pick, retired, nil
		}

		if res == rules.Matched {
			if r.introAllowed {
				return c, retired, nil
			}
			if !c.Warcry() {
				r.introAllowed = true
				return c, retired, nil
			}
		}
		i++
	}
	return nil, retired, ErrNoCue
}

// randomPoolLocked returns the cues c may be randomly swapped for, or nil
// when randomisation does not apply. Every non-intro sibling of c must be
// marked randomise.
func (r *Roster) randomPoolLocked(c *cue.Cue) []*cue.Cue {
	if !c.Randomise() || c.Warcry() {
		return nil
	}
	var pool []*cue.Cue
	for _, s := range r.cues {
		if s.Roster() != c.Roster() || s.Warcry() {
			continue
		}
		if !s.Randomise() {
			return nil
		}
		pool = append(pool, s)
	}
	return pool
}

// PlaySong pauses whatever this roster is playing, selects a cue and plays
// it. It reports whether this was the cue's first play.
func (r *Roster) PlaySong(explicit *cue.Cue) (bool, error) {
	r.PauseSong()

	c, err := r.GetSong(explicit)
	if err != nil {
		if errors.Is(err, ErrNoCue) {
			r.notify(func(o Observer) { o.NoCue(r) })
		}
		return false, err
	}

	r.mu.Lock()
	if r.futureVolume != nil {
		c.AdjustVolume(*r.futureVolume)
	}
	r.current = c
	r.mu.Unlock()

	first := c.FirstPlay()
	if err := c.Play(); err != nil {
		r.mu.Lock()
		if r.current == c {
			r.current = nil
		}
		r.mu.Unlock()
		return false, fmt.Errorf("roster %s: %w", r.id, err)
	}
	slog.Info("Roster: playing", "roster", r.id, "file", c.File(), "first", first)

	if c.NeedsEndMonitor() {
		r.startMonitor(c)
	}
	if gf, ok := r.gs.(goalFlagClearer); ok {
		gf.ClearGoalFlags()
	}
	r.notify(func(o Observer) { o.CuePlayed(r, c, first) })
	return first, nil
}

// PauseSong pauses the current cue and remembers it as last played.
func (r *Roster) PauseSong() {
	r.mu.Lock()
	c := r.current
	if c == nil {
		r.mu.Unlock()
		return
	}
	r.cancelMonitorLocked()
	r.last = c
	r.current = nil
	r.mu.Unlock()

	slog.Debug("Roster: pausing", "roster", r.id, "file", c.File())
	c.Pause()
	r.notify(func(o Observer) { o.CuePaused(r, c) })
}

// Stop halts the current cue without running pause instructions.
func (r *Roster) Stop() {
	r.mu.Lock()
	c := r.current
	r.cancelMonitorLocked()
	if c != nil {
		r.last = c
		r.current = nil
	}
	r.mu.Unlock()

	if c != nil {
		c.Stop()
		r.notify(func(o Observer) { o.CuePaused(r, c) })
	}
}

// PlayNext plays the non-intro cue after the current (or last played) one in
// priority order, wrapping around. Rules are not consulted.
func (r *Roster) PlayNext() error {
	r.mu.Lock()
	ref := r.current
	if ref == nil {
		ref = r.last
	}
	next := r.nextAfterLocked(ref)
	r.mu.Unlock()

	if next == nil {
		return fmt.Errorf("roster %s: %w", r.id, ErrNoCue)
	}
	_, err := r.PlaySong(next)
	return err
}

func (r *Roster) nextAfterLocked(ref *cue.Cue) *cue.Cue {
	n := len(r.cues)
	if n == 0 {
		return nil
	}
	start := slices.Index(r.cues, ref)
	for step := 1; step <= n; step++ {
		c := r.cues[(start+step+n)%n]
		if !c.Warcry() {
			return c
		}
	}
	return nil
}

// PlayAfterIntro is called when an intro cue ends: intros are skipped until
// a main cue has been picked.
func (r *Roster) PlayAfterIntro() error {
	r.mu.Lock()
	r.introAllowed = false
	r.mu.Unlock()
	_, err := r.PlaySong(nil)
	return err
}

// AdjustVolume sets the volume of the current cue and of every cue played
// after it.
func (r *Roster) AdjustVolume(level int) {
	r.mu.Lock()
	c := r.current
	r.futureVolume = &level
	r.mu.Unlock()
	if c != nil {
		c.AdjustVolume(level)
	}
}

// ResetLastPlayed stops and reloads the cue played last so its next play
// starts over with its start instructions.
func (r *Roster) ResetLastPlayed() {
	r.PauseSong()
	r.mu.Lock()
	c := r.last
	r.mu.Unlock()
	if c == nil {
		return
	}
	c.Stop()
	c.Reload()
}

// IntroAllowed reports whether a matching intro cue may be selected.
func (r *Roster) IntroAllowed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.introAllowed
}

func (r *Roster) Current() *cue.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

func (r *Roster) Last() *cue.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Cues returns the cues still in the roster, in priority order.
func (r *Roster) Cues() []*cue.Cue {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.cues)
}

// Volume returns the pending volume override, or -1 when none is set.
func (r *Roster) Volume() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.futureVolume == nil {
		return -1
	}
	return *r.futureVolume
}

// Close stops playback and releases every cue.
func (r *Roster) Close() {
	r.mu.Lock()
	r.cancelMonitorLocked()
	cues := r.cues
	r.cues = nil
	r.current = nil
	r.last = nil
	r.mu.Unlock()

	for _, c := range cues {
		c.Disable()
	}
}

func (r *Roster) startMonitor(c *cue.Cue) {
	ctx, cancel := context.WithCancel(context.Background())
	r.mu.Lock()
	r.cancelMonitorLocked()
	r.stopMonitor = cancel
	r.mu.Unlock()
	go r.watchEnd(ctx, c)
}

func (r *Roster) cancelMonitorLocked() {
	if r.stopMonitor != nil {
		r.stopMonitor()
		r.stopMonitor = nil
	}
}

// watchEnd polls c for end-of-media until cancelled or until the end
// instructions say to stop watching.
func (r *Roster) watchEnd(ctx context.Context, c *cue.Cue) {
	ticker := time.NewTicker(r.opts.EndPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if ctx.Err() != nil || !c.EndReached() {
			continue
		}
		logging.TraceDefault("Roster: end of media", "roster", r.id, "file", c.File())
		if !c.RunEnd(r) {
			return
		}
	}
}

func (r *Roster) notify(f func(Observer)) {
	for _, o := range r.opts.Observers {
		f(o)
	}
}
