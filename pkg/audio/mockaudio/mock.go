// Package mockaudio is an in-memory audio.Engine for tests and dry runs.
package mockaudio

import (
	"fmt"
	"sync"
	"time"

	"rigdiogo/pkg/audio"
)

// Engine records loads and hands out Tracks that never touch a device.
type Engine struct {
	mu sync.Mutex
	// CheckDisk makes Load report files absent from the filesystem as missing.
	CheckDisk bool
	missing   map[string]bool
	meta      map[string]audio.Metadata
	tracks    []*Track
}

// New creates an engine where every path exists.
func New() *Engine {
	return &Engine{missing: make(map[string]bool), meta: make(map[string]audio.Metadata)}
}

// SetMissing marks path as absent.
func (e *Engine) SetMissing(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.missing[path] = true
}

// SetMetadata sets the tags reported for path.
func (e *Engine) SetMetadata(path string, md audio.Metadata) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.meta[path] = md
}

func (e *Engine) Load(path string) (audio.Track, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.missing[path] {
		return nil, &audio.MissingError{Path: path}
	}
	if e.CheckDisk {
		if err := audio.CheckExists(path); err != nil {
			return nil, err
		}
	}
	md, ok := e.meta[path]
	if !ok {
		md = audio.Metadata{Title: audio.TitleFromPath(path)}
	}
	t := &Track{path: path, meta: md, rate: 1, volume: 100}
	e.tracks = append(e.tracks, t)
	return t, nil
}

// Tracks returns every track loaded so far, oldest first.
func (e *Engine) Tracks() []*Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Track(nil), e.tracks...)
}

// Latest returns the most recent track loaded for path.
func (e *Engine) Latest(path string) *Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.tracks) - 1; i >= 0; i-- {
		if e.tracks[i].path == path {
			return e.tracks[i]
		}
	}
	return nil
}

// Track is a fake audio.Track. Every call is appended to Calls.
type Track struct {
	mu       sync.Mutex
	path     string
	meta     audio.Metadata
	playing  bool
	position time.Duration
	rate     float64
	volume   int
	loop     bool
	ended    bool
	closed   bool
	calls    []string
}

func (t *Track) record(format string, args ...any) {
	t.calls = append(t.calls, fmt.Sprintf(format, args...))
}

func (t *Track) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("play")
	if t.ended {
		t.ended = false
		t.position = 0
	}
	t.playing = true
}

func (t *Track) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("pause")
	t.playing = false
}

func (t *Track) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("stop")
	t.playing = false
	t.position = 0
	t.ended = false
}

func (t *Track) SetPosition(pos time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("seek %s", pos)
	t.position = pos
	t.ended = false
}

func (t *Track) SetRate(rate float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("rate %g", rate)
	t.rate = rate
}

func (t *Track) SetVolume(level int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.volume = max(0, min(100, level))
}

func (t *Track) Volume() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

func (t *Track) SetLoop(loop bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("loop %t", loop)
	t.loop = loop
}

func (t *Track) EndReached() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ended
}

func (t *Track) Metadata() audio.Metadata { return t.meta }
func (t *Track) Path() string             { return t.path }

func (t *Track) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.record("close")
	t.closed = true
	t.playing = false
	return nil
}

// ForceEnd simulates the media running out. A looping track rewinds instead.
func (t *Track) ForceEnd() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.loop {
		t.position = 0
		return
	}
	t.playing = false
	t.ended = true
}

// Calls returns the recorded call log. Volume changes are not logged.
func (t *Track) Calls() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.calls...)
}

// ResetCalls empties the call log.
func (t *Track) ResetCalls() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = nil
}

func (t *Track) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

func (t *Track) Position() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.position
}

func (t *Track) Rate() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rate
}

func (t *Track) Looping() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loop
}

func (t *Track) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
