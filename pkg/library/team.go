// Package library loads team files: the cues a team brings to a match and
// the rules attached to each of them.
package library

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"rigdiogo/pkg/audio"
	"rigdiogo/pkg/config"
	"rigdiogo/pkg/cue"
	"rigdiogo/pkg/rules"
)

// Reserved roster names in team files.
const (
	RosterAnthem  = "anthem"
	RosterGoal    = "goal"
	RosterVictory = "victory"
	RosterChant   = "chant"
)

// Team is everything loaded from one team file. Player and event rosters
// keep the order they were written in.
type Team struct {
	Name string
	Path string
	Home bool

	Anthem  []*cue.Cue
	Goal    []*cue.Cue
	Victory []*cue.Cue
	Chants  []*cue.Cue

	Players     map[string][]*cue.Cue
	PlayerOrder []string
	Events      map[string][]*cue.Cue
	EventOrder  []string
}

func newTeam(name, path string, home bool) *Team {
	return &Team{
		Name:    name,
		Path:    path,
		Home:    home,
		Players: make(map[string][]*cue.Cue),
		Events:  make(map[string][]*cue.Cue),
	}
}

// Options control how cues are built.
type Options struct {
	Cue  cue.Options
	Fade config.FadeConfig

	SortGoalhorns bool
	SortChants    bool
}

// OptionsFromConfig derives loader options from the application config.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Cue: cue.Options{
			MaxVolume:     cfg.Audio.MaxVolume,
			FadeDuration:  time.Duration(cfg.Fade.Time),
			FadeSteps:     cfg.Fade.Steps,
			LoopSettle:    time.Duration(cfg.Playback.LoopSettle),
			UseNormalized: cfg.Audio.UseNormalized,
		},
		Fade:          cfg.Fade,
		SortGoalhorns: cfg.Library.SortGoalhorns,
		SortChants:    cfg.Library.SortChants,
	}
}

func (o Options) forKind(kind cue.Kind) cue.Options {
	opts := o.Cue
	opts.Fade = o.Fade.Enabled(string(kind))
	return opts
}

// Load reads a team file. YAML (.yml, .yaml) is the current format, .4ccm
// the legacy line format. The returned error is fatal; problems with single
// cues go to the report and the rest of the team still loads.
func Load(path string, home bool, engine audio.Engine, opts Options) (*Team, *LoadReport, error) {
	l := &loader{engine: engine, opts: opts, file: path, dir: filepath.Dir(path), report: &LoadReport{}}

	var (
		team *Team
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		team, err = l.loadYAML(home)
	case ".4ccm":
		team, err = l.loadLegacy(home)
	default:
		return nil, nil, fmt.Errorf("unsupported team file %s: want .yml, .yaml or .4ccm", path)
	}
	if err != nil {
		return nil, nil, err
	}

	if opts.SortGoalhorns {
		sort.Strings(team.PlayerOrder)
	}
	if opts.SortChants {
		slices.SortStableFunc(team.Chants, func(a, b *cue.Cue) int {
			return strings.Compare(strings.ToLower(a.File()), strings.ToLower(b.File()))
		})
	}

	slog.Info("Library: team loaded", "team", team.Name, "file", path, "players", len(team.PlayerOrder), "chants", len(team.Chants), "missing", len(l.report.Missing), "errors", len(l.report.Errors))
	return team, l.report, nil
}

type loader struct {
	engine audio.Engine
	opts   Options
	file   string
	dir    string
	report *LoadReport
}

// rawCue is one cue as read from a file, before its rules are built.
type rawCue struct {
	file  string
	line  int
	rules []rawRule
}

type rawRule struct {
	tokens []string
	text   string // legacy line text, tokenized at build time
	line   int
}

func (l *loader) resolve(file string) string {
	if filepath.IsAbs(file) {
		return file
	}
	return filepath.Join(l.dir, filepath.FromSlash(file))
}

// build constructs one cue. It returns nil after recording the problem.
func (l *loader) build(raw rawCue, owner rules.Owner, roster string, kind cue.Kind) *cue.Cue {
	rs := make([]rules.Rule, 0, len(raw.rules))
	for _, rr := range raw.rules {
		var (
			r   rules.Rule
			err error
		)
		if rr.tokens != nil {
			r, err = rules.Build(rr.tokens, owner)
		} else {
			r, err = rules.ParseLine(rr.text, owner)
		}
		if err != nil {
			l.fail(rr.line, err)
			return nil
		}
		rs = append(rs, r)
	}

	c, err := cue.New(cue.Spec{
		Owner:  owner,
		Roster: roster,
		Kind:   kind,
		Path:   l.resolve(raw.file),
		Rules:  rs,
	}, l.engine, l.opts.forKind(kind))
	if err != nil {
		var missing *audio.MissingError
		if errors.As(err, &missing) {
			slog.Warn("Library: missing media", "file", missing.Path)
			l.report.Missing = append(l.report.Missing, missing.Path)
			return nil
		}
		l.fail(raw.line, err)
		return nil
	}
	return c
}

func (l *loader) fail(line int, err error) {
	e := &EntryError{File: l.file, Line: line, Err: err}
	var be *rules.BuildError
	if errors.As(err, &be) {
		e.Token = be.Token
	}
	slog.Warn("Library: cue not loaded", "error", e)
	l.report.Errors = append(l.report.Errors, e)
}

// add places a built cue in the roster the file named. Event cues from
// legacy files are routed by their event instruction.
func (t *Team) add(roster string, c *cue.Cue) {
	switch roster {
	case RosterAnthem:
		t.Anthem = append(t.Anthem, c)
	case RosterGoal:
		t.Goal = append(t.Goal, c)
	case RosterVictory:
		t.Victory = append(t.Victory, c)
	case RosterChant:
		t.Chants = append(t.Chants, c)
	default:
		if ev := c.Event(); ev != "" {
			t.addEvent(ev, c)
			return
		}
		if _, ok := t.Players[roster]; !ok {
			t.PlayerOrder = append(t.PlayerOrder, roster)
		}
		t.Players[roster] = append(t.Players[roster], c)
	}
}

func (t *Team) addEvent(event string, c *cue.Cue) {
	if _, ok := t.Events[event]; !ok {
		t.EventOrder = append(t.EventOrder, event)
	}
	t.Events[event] = append(t.Events[event], c)
}

// kindFor maps a roster name to the cue kind it holds.
func kindFor(roster string) cue.Kind {
	switch roster {
	case RosterAnthem:
		return cue.KindAnthem
	case RosterVictory:
		return cue.KindVictory
	case RosterChant:
		return cue.KindChant
	default:
		return cue.KindGoalhorn
	}
}

// Close releases every cue of the team.
func (t *Team) Close() {
	for _, c := range t.All() {
		c.Disable()
	}
}

// All returns every cue of the team.
func (t *Team) All() []*cue.Cue {
	var out []*cue.Cue
	out = append(out, t.Anthem...)
	out = append(out, t.Goal...)
	out = append(out, t.Victory...)
	out = append(out, t.Chants...)
	for _, p := range t.PlayerOrder {
		out = append(out, t.Players[p]...)
	}
	for _, e := range t.EventOrder {
		out = append(out, t.Events[e]...)
	}
	return out
}
