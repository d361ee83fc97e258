package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
	Audio    AudioConfig    `yaml:"audio"`
	Fade     FadeConfig     `yaml:"fade"`
	Playback PlaybackConfig `yaml:"playback"`
	Library  LibraryConfig  `yaml:"library"`
	Match    MatchConfig    `yaml:"match"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Server   LogSettings    `yaml:"server"`
	Requests LogSettings    `yaml:"requests"`
	Events   LogSettings    `yaml:"events"`
	Title    TitleLogConfig `yaml:"title"`
	Enabled  bool           `yaml:"enabled"` // some systems forbid writing next to the binary
}

// LogSettings holds settings for a specific logger.
type LogSettings struct {
	Path  string `yaml:"path"`
	Level string `yaml:"level"`
}

// TitleLogConfig controls the now-playing file read by stream overlays.
type TitleLogConfig struct {
	Enabled    bool     `yaml:"enabled"`
	Path       string   `yaml:"path"`
	ClearAfter Duration `yaml:"clear_after"` // 0 keeps the title until the next cue
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Address string `yaml:"address"`
}

// AudioConfig holds media engine settings.
type AudioConfig struct {
	Provider        string   `yaml:"provider"` // "beep", "mock"
	SampleRate      int      `yaml:"sample_rate"`
	BufferSize      Duration `yaml:"buffer_size"`
	ResampleQuality int      `yaml:"resample_quality"`
	MaxVolume       int      `yaml:"max_volume"`
	UseNormalized   bool     `yaml:"use_normalized"`
}

// FadeConfig selects which cue kinds fade out on pause.
type FadeConfig struct {
	Anthem   bool     `yaml:"anthem"`
	Goalhorn bool     `yaml:"goalhorn"`
	Victory  bool     `yaml:"victory"`
	Chant    bool     `yaml:"chant"`
	Time     Duration `yaml:"time"`
	Steps    int      `yaml:"steps"`
}

// Enabled reports whether cues of kind fade out.
func (f FadeConfig) Enabled(kind string) bool {
	switch kind {
	case "anthem":
		return f.Anthem
	case "goalhorn":
		return f.Goalhorn
	case "victory":
		return f.Victory
	case "chant":
		return f.Chant
	}
	return false
}

// PlaybackConfig holds timing of the playback monitors.
type PlaybackConfig struct {
	EndPoll    Duration `yaml:"end_poll"`
	LoopSettle Duration `yaml:"loop_settle"`
}

// LibraryConfig controls how team files are read.
type LibraryConfig struct {
	Dir           string `yaml:"dir"`
	SortGoalhorns bool   `yaml:"sort_goalhorns"`
	SortChants    bool   `yaml:"sort_chants"`
}

// MatchConfig holds the default match setup.
type MatchConfig struct {
	Type       string `yaml:"type"`
	Home       string `yaml:"home"` // team file
	Away       string `yaml:"away"`
	PromptTime bool   `yaml:"prompt_time"` // ask on stdin when a time condition needs the minute
}

// MetricsConfig holds Prometheus settings.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Namespace string `yaml:"namespace"`
}

// AudioProviders lists the accepted audio.provider values.
var AudioProviders = []string{"beep", "mock"}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{
			Enabled: true,
			Server: LogSettings{
				Path:  "./logs/server.log",
				Level: "INFO",
			},
			Requests: LogSettings{
				Path:  "./logs/requests.log",
				Level: "INFO",
			},
			Events: LogSettings{
				Path:  "./logs/events.log",
				Level: "INFO",
			},
			Title: TitleLogConfig{
				Enabled:    false,
				Path:       "./logs/title.log",
				ClearAfter: Duration(10 * time.Second),
			},
		},
		Server: ServerConfig{
			Address: "localhost:4646",
		},
		Audio: AudioConfig{
			Provider:        "beep",
			SampleRate:      48000,
			BufferSize:      Duration(100 * time.Millisecond),
			ResampleQuality: 4,
			MaxVolume:       80,
			UseNormalized:   true,
		},
		Fade: FadeConfig{
			Anthem:   true,
			Goalhorn: true,
			Time:     Duration(2 * time.Second),
			Steps:    100,
		},
		Playback: PlaybackConfig{
			EndPoll:    Duration(50 * time.Millisecond),
			LoopSettle: Duration(100 * time.Millisecond),
		},
		Library: LibraryConfig{
			Dir: "./teams",
		},
		Match: MatchConfig{
			Type:       "Group",
			PromptTime: true,
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "rigdio",
		},
	}
}

// Load loads the configuration from the given path.
// If the file does not exist, it creates it with default values.
// If the file exists, it merges defaults with existing values but does NOT save back to disk (to preserve user formatting and comments).
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := Save(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to save config file: %w", err)
	}

	// Env values fill gaps only and are never written back.
	if cfg.Match.Home == "" {
		cfg.Match.Home = os.Getenv("RIGDIO_HOME_TEAM")
	}
	if cfg.Match.Away == "" {
		cfg.Match.Away = os.Getenv("RIGDIO_AWAY_TEAM")
	}
	if addr := os.Getenv("RIGDIO_ADDRESS"); addr != "" && cfg.Server.Address == "" {
		cfg.Server.Address = addr
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the player cannot run with.
func (c *Config) Validate() error {
	if !slices.Contains(AudioProviders, strings.ToLower(c.Audio.Provider)) {
		return fmt.Errorf("invalid audio provider '%s': must be one of %s", c.Audio.Provider, strings.Join(AudioProviders, ", "))
	}
	if c.Audio.MaxVolume < 0 || c.Audio.MaxVolume > 100 {
		return fmt.Errorf("invalid max_volume %d: must be 0-100", c.Audio.MaxVolume)
	}
	if c.Fade.Steps < 1 {
		return fmt.Errorf("invalid fade steps %d: must be at least 1", c.Fade.Steps)
	}
	if c.Playback.EndPoll <= 0 {
		return fmt.Errorf("invalid end_poll %s: must be positive", time.Duration(c.Playback.EndPoll))
	}
	return nil
}

// Save writes the configuration to the path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# rigdio Configuration
# ---------------------
# Supported Units:
#   Duration: ns, us (or µs), ms, s, m, h, d (day), w (week)

`)
	data = append(header, data...)

	reProvider := regexp.MustCompile(`(?m)^(\s+)provider:`)
	data = reProvider.ReplaceAll(data, []byte("${1}# Options: beep, mock\n${1}provider:"))

	reClear := regexp.MustCompile(`(?m)^(\s+)clear_after:`)
	data = reClear.ReplaceAll(data, []byte("${1}# 0 keeps the title until the next cue starts\n${1}clear_after:"))

	reSteps := regexp.MustCompile(`(?m)^(\s+)steps:`)
	data = reSteps.ReplaceAll(data, []byte("${1}# Volume steps in one fade-out; each lasts time/steps\n${1}steps:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GenerateDefault creates a default config file at the given path.
// Returns nil if the file already exists.
func GenerateDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return Save(path, DefaultConfig())
}
