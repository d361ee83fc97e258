package logging

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// TitleLog keeps a one-line file holding the title of the cue now playing,
// for stream overlays. A non-zero clearAfter blanks the file that long after
// each write; a newer title cancels the pending clear.
type TitleLog struct {
	mu         sync.Mutex
	path       string
	clearAfter time.Duration
	timer      *time.Timer
	gen        uint64
}

// NewTitleLog creates the directory for path and empties the file.
func NewTitleLog(path string, clearAfter time.Duration) (*TitleLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create title log directory: %w", err)
	}
	t := &TitleLog{path: path, clearAfter: clearAfter}
	if err := t.write(""); err != nil {
		return nil, err
	}
	return t, nil
}

// Show writes title and schedules the clear.
func (t *TitleLog) Show(title string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	if err := t.write(title); err != nil {
		slog.Warn("TitleLog: write failed", "path", t.path, "error", err)
		return
	}
	if t.clearAfter <= 0 {
		return
	}
	gen := t.gen
	t.timer = time.AfterFunc(t.clearAfter, func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		// A Show that raced with the timer firing wins.
		if t.gen != gen {
			return
		}
		t.timer = nil
		if err := t.write(""); err != nil {
			slog.Warn("TitleLog: clear failed", "path", t.path, "error", err)
		}
	})
}

// Clear blanks the file now.
func (t *TitleLog) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
	_ = t.write("")
}

// Close cancels any pending clear.
func (t *TitleLog) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.gen++
}

func (t *TitleLog) write(title string) error {
	return os.WriteFile(t.path, []byte(title), 0o644)
}
