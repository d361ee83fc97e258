// Package audio loads and plays the media behind each cue.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// Engine opens media files as independently controllable tracks.
type Engine interface {
	// Load opens path. A missing file yields a *MissingError.
	Load(path string) (Track, error)
}

// Track is one loaded media instance.
type Track interface {
	Play()
	Pause()
	// Stop halts playback and rewinds to the beginning.
	Stop()
	SetPosition(pos time.Duration)
	// SetRate changes playback speed; 1 is normal.
	SetRate(rate float64)
	// SetVolume takes a level from 0 to 100.
	SetVolume(level int)
	Volume() int
	// SetLoop makes the track restart from the beginning when it ends.
	SetLoop(loop bool)
	// EndReached reports whether playback ran off the end of the media.
	EndReached() bool
	Metadata() Metadata
	Path() string
	Close() error
}

// Metadata is best-effort information read from the media file.
type Metadata struct {
	Title    string
	Artist   string
	Duration time.Duration
}

// Display returns "title - artist", or just the title when the artist is unknown.
func (m Metadata) Display() string {
	if m.Artist == "" {
		return m.Title
	}
	return m.Title + " - " + m.Artist
}

// MissingError reports a media file that does not exist.
type MissingError struct {
	Path string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("audio file not found: %s", e.Path)
}

// CheckExists returns a *MissingError when path is absent.
func CheckExists(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return &MissingError{Path: path}
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}

// ResolveNormalized prefers a loudness-normalised sibling named
// <stem>_normalized.<any ext> over path itself.
func ResolveNormalized(path string) string {
	dir := filepath.Dir(path)
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if strings.HasSuffix(stem, "_normalized") {
		return path
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return path
	}
	prefix := stem + "_normalized."
	var found []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasPrefix(e.Name(), prefix) {
			found = append(found, e.Name())
		}
	}
	if len(found) == 0 {
		return path
	}
	sort.Strings(found)
	return filepath.Join(dir, found[0])
}

// TitleFromPath is the metadata fallback: the file name without extension.
func TitleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
