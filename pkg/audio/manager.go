package audio

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"rigdiogo/pkg/config"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/speaker"
)

// BeepEngine plays tracks through one shared gopxl/beep speaker.
type BeepEngine struct {
	mu                 sync.Mutex
	cfg                config.AudioConfig
	speakerInitialized bool
	sampleRate         beep.SampleRate
}

// NewBeepEngine creates an engine. The speaker is opened on first Load.
func NewBeepEngine(cfg config.AudioConfig) *BeepEngine {
	return &BeepEngine{cfg: cfg}
}

func (e *BeepEngine) ensureSpeakerInitialized() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.speakerInitialized {
		return nil
	}
	rate := beep.SampleRate(e.cfg.SampleRate)
	if rate <= 0 {
		rate = 48000
	}
	buf := time.Duration(e.cfg.BufferSize)
	if buf <= 0 {
		buf = time.Second / 10
	}
	if err := speaker.Init(rate, rate.N(buf)); err != nil {
		slog.Error("Failed to initialize speaker", "error", err)
		return fmt.Errorf("init speaker: %w", err)
	}
	e.speakerInitialized = true
	e.sampleRate = rate
	slog.Debug("Audio: speaker initialized", "sample_rate", int(rate), "buffer", buf)
	return nil
}

// Load decodes path and prepares it paused at the beginning.
func (e *BeepEngine) Load(path string) (Track, error) {
	if err := CheckExists(path); err != nil {
		return nil, err
	}
	src, format, err := DecodeMedia(path)
	if err != nil {
		return nil, err
	}
	if err := e.ensureSpeakerInitialized(); err != nil {
		src.Close()
		return nil, err
	}

	quality := e.cfg.ResampleQuality
	if quality < 1 || quality > 64 {
		quality = 4
	}

	t := &beepTrack{
		path:      path,
		src:       src,
		format:    format,
		baseRatio: float64(format.SampleRate) / float64(e.sampleRate),
		rate:      1,
		level:     100,
		meta:      ReadMetadata(path),
	}
	t.meta.Duration = format.SampleRate.D(src.Len())
	t.loop = &loopStreamer{src: src}
	t.resampler = beep.ResampleRatio(quality, t.baseRatio, t.loop)
	t.volume = &effects.Volume{Streamer: t.resampler, Base: 2}
	t.ctrl = &beep.Ctrl{Streamer: t.volume, Paused: true}
	t.applyVolumeLocked()

	slog.Debug("Audio: loaded", "path", path, "title", t.meta.Display())
	return t, nil
}

// beepTrack is a Track backed by the speaker. Fields touched by the audio
// callback are guarded by speaker.Lock.
type beepTrack struct {
	path   string
	format beep.Format
	meta   Metadata

	src       beep.StreamSeekCloser
	loop      *loopStreamer
	resampler *beep.Resampler
	volume    *effects.Volume
	ctrl      *beep.Ctrl

	baseRatio float64
	rate      float64
	level     int

	attached bool
	closed   bool
	ended    atomic.Bool
}

// Stream feeds the speaker and detaches the track once the media runs out.
func (t *beepTrack) Stream(samples [][2]float64) (int, bool) {
	if t.closed {
		t.attached = false
		return 0, false
	}
	n, ok := t.ctrl.Stream(samples)
	if !ok {
		t.ended.Store(true)
		t.attached = false
		return n, false
	}
	return n, true
}

func (t *beepTrack) Err() error {
	return t.src.Err()
}

func (t *beepTrack) Play() {
	speaker.Lock()
	if t.closed {
		speaker.Unlock()
		return
	}
	if t.ended.Load() {
		_ = t.src.Seek(0)
		t.ended.Store(false)
	}
	t.ctrl.Paused = false
	attach := !t.attached
	t.attached = true
	speaker.Unlock()

	if attach {
		speaker.Play(t)
	}
}

func (t *beepTrack) Pause() {
	speaker.Lock()
	t.ctrl.Paused = true
	speaker.Unlock()
}

func (t *beepTrack) Stop() {
	speaker.Lock()
	defer speaker.Unlock()
	t.ctrl.Paused = true
	if !t.closed {
		_ = t.src.Seek(0)
	}
	t.ended.Store(false)
}

func (t *beepTrack) SetPosition(pos time.Duration) {
	speaker.Lock()
	defer speaker.Unlock()
	if t.closed {
		return
	}
	n := t.format.SampleRate.N(pos)
	if n >= t.src.Len() {
		n = t.src.Len() - 1
	}
	if n < 0 {
		n = 0
	}
	if err := t.src.Seek(n); err != nil {
		slog.Warn("Audio: seek failed", "path", t.path, "position", pos, "error", err)
		return
	}
	t.ended.Store(false)
}

func (t *beepTrack) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	speaker.Lock()
	defer speaker.Unlock()
	t.rate = rate
	t.resampler.SetRatio(t.baseRatio * rate)
}

func (t *beepTrack) SetVolume(level int) {
	speaker.Lock()
	defer speaker.Unlock()
	t.level = clampLevel(level)
	t.applyVolumeLocked()
}

func (t *beepTrack) applyVolumeLocked() {
	vol := float64(t.level) / 100
	t.volume.Volume = volumeToPower(vol)
	t.volume.Silent = vol <= 0.01
}

func (t *beepTrack) Volume() int {
	speaker.Lock()
	defer speaker.Unlock()
	return t.level
}

func (t *beepTrack) SetLoop(loop bool) {
	speaker.Lock()
	defer speaker.Unlock()
	t.loop.loop = loop
}

func (t *beepTrack) EndReached() bool {
	return t.ended.Load()
}

func (t *beepTrack) Metadata() Metadata {
	return t.meta
}

func (t *beepTrack) Path() string {
	return t.path
}

func (t *beepTrack) Close() error {
	speaker.Lock()
	if t.closed {
		speaker.Unlock()
		return nil
	}
	t.closed = true
	t.ctrl.Paused = true
	speaker.Unlock()
	return t.src.Close()
}
