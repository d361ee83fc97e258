package audio

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned for media the decoders cannot read.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

type decoder func(f *os.File) (beep.StreamSeekCloser, beep.Format, error)

func decodeMP3(f *os.File) (beep.StreamSeekCloser, beep.Format, error)    { return mp3.Decode(f) }
func decodeVorbis(f *os.File) (beep.StreamSeekCloser, beep.Format, error) { return vorbis.Decode(f) }
func decodeWAV(f *os.File) (beep.StreamSeekCloser, beep.Format, error)    { return wav.Decode(f) }

// DecodeMedia opens and decodes path, choosing the decoder by extension.
// Unknown extensions are tried as MP3 then WAV.
func DecodeMedia(path string) (beep.StreamSeekCloser, beep.Format, error) {
	if err := CheckExists(path); err != nil {
		return nil, beep.Format{}, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeWith(path, decodeMP3)
	case ".ogg", ".oga":
		return decodeWith(path, decodeVorbis)
	case ".wav":
		return decodeWith(path, decodeWAV)
	case ".flac", ".m4a", ".aac", ".wma":
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}

	// MP3 decode failure can leave the file offset anywhere, so each attempt reopens.
	if s, format, err := decodeWith(path, decodeMP3); err == nil {
		return s, format, nil
	}
	s, format, err := decodeWith(path, decodeWAV)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return s, format, nil
}

func decodeWith(path string, decode decoder) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}
	s, format, err := decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode %s: %w", path, err)
	}
	return s, format, nil
}

// GetDuration returns the duration of the audio file at the given path.
func GetDuration(path string) (time.Duration, error) {
	streamer, format, err := DecodeMedia(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}

// ReadMetadata reads title and artist tags, falling back to the file name.
func ReadMetadata(path string) Metadata {
	md := Metadata{Title: TitleFromPath(path)}

	f, err := os.Open(path)
	if err != nil {
		return md
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		slog.Debug("Audio: no tag metadata", "path", path, "error", err)
		return md
	}
	if t := strings.TrimSpace(m.Title()); t != "" {
		md.Title = t
		md.Artist = strings.TrimSpace(m.Artist())
	}
	return md
}
