// Package match coordinates one live match: the game state, both teams'
// rosters and the shared chant board.
package match

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"
	"sync"
	"time"

	"rigdiogo/pkg/cue"
	"rigdiogo/pkg/game"
	"rigdiogo/pkg/library"
	"rigdiogo/pkg/logging"
	"rigdiogo/pkg/metrics"
	"rigdiogo/pkg/model"
	"rigdiogo/pkg/roster"

	"github.com/google/uuid"
)

var (
	ErrUnknownRoster = errors.New("unknown roster")
	ErrUnknownChant  = errors.New("unknown chant")
)

// EventSink receives every match event, e.g. a live feed.
type EventSink interface {
	Publish(model.MatchEvent)
}

// Options configure a Match.
type Options struct {
	MatchType string
	EndPoll   time.Duration
	Prompter  game.MinutePrompter

	Metrics   *metrics.Collector
	Title     *logging.TitleLog
	Observers []roster.Observer
	Sinks     []EventSink

	// IntN picks random chants. Defaults to math/rand/v2.
	IntN func(n int) int
}

// Side is one team and its rosters.
type Side struct {
	Team    *library.Team
	Anthem  *roster.Roster
	Goal    *roster.Roster
	Victory *roster.Roster
	Players map[string]*roster.Roster
	Events  map[string]*roster.Roster
}

// Match is a live match between two loaded teams.
type Match struct {
	id    string
	state *game.State
	opts  Options
	home  *Side
	away  *Side

	chants *roster.Roster
	teamOf map[*roster.Roster]string
	gates  map[*roster.Roster]*noCueGate

	mu     sync.Mutex
	active *roster.Roster
}

// New starts a match. The teams' cues are owned by the match from here on.
func New(home, away *library.Team, opts Options) *Match {
	if opts.IntN == nil {
		opts.IntN = rand.IntN
	}
	m := &Match{
		id:     uuid.NewString(),
		state:  game.NewState(home.Name, away.Name, opts.MatchType, opts.Prompter),
		opts:   opts,
		teamOf: make(map[*roster.Roster]string),
		gates:  make(map[*roster.Roster]*noCueGate),
	}
	m.home = m.buildSide(home)
	m.away = m.buildSide(away)

	chants := slices.Concat(home.Chants, away.Chants)
	m.chants = m.newRoster(library.RosterChant, chants, "")

	slog.Info("Match: started", "id", m.id, "home", home.Name, "away", away.Name, "type", opts.MatchType)
	return m
}

func (m *Match) buildSide(t *library.Team) *Side {
	s := &Side{
		Team:    t,
		Anthem:  m.newRoster(library.RosterAnthem, t.Anthem, t.Name),
		Goal:    m.newRoster(library.RosterGoal, t.Goal, t.Name),
		Victory: m.newRoster(library.RosterVictory, t.Victory, t.Name),
		Players: make(map[string]*roster.Roster),
		Events:  make(map[string]*roster.Roster),
	}
	for _, p := range t.PlayerOrder {
		s.Players[p] = m.newPlayerRoster(p, t.Players[p], t.Name)
	}
	for _, e := range t.EventOrder {
		s.Events[e] = m.newRoster(e, t.Events[e], t.Name)
	}
	return s
}

func (m *Match) observers() []roster.Observer {
	observers := []roster.Observer{m}
	if m.opts.Metrics != nil {
		observers = append(observers, m.opts.Metrics)
	}
	return append(observers, m.opts.Observers...)
}

func (m *Match) newRoster(id string, cues []*cue.Cue, team string) *roster.Roster {
	r := roster.New(id, cues, m.state, roster.Options{EndPoll: m.opts.EndPoll, Observers: m.observers()})
	m.teamOf[r] = team
	return r
}

// newPlayerRoster routes the roster's notifications through a gate so Goal
// can hold back its NoCue while the team goalhorn is tried.
func (m *Match) newPlayerRoster(id string, cues []*cue.Cue, team string) *roster.Roster {
	g := &noCueGate{next: m.observers()}
	r := roster.New(id, cues, m.state, roster.Options{EndPoll: m.opts.EndPoll, Observers: []roster.Observer{g}})
	m.teamOf[r] = team
	m.gates[r] = g
	return r
}

func (m *Match) ID() string         { return m.id }
func (m *Match) State() *game.State { return m.state }

func (m *Match) side(home bool) *Side {
	if home {
		return m.home
	}
	return m.away
}

// Side returns the home or away side.
func (m *Match) Side(home bool) *Side { return m.side(home) }

// Roster finds a roster of one side by name: anthem, goal, victory, a
// player or an event type.
func (s *Side) Roster(name string) (*roster.Roster, bool) {
	switch name {
	case library.RosterAnthem:
		return s.Anthem, true
	case library.RosterGoal:
		return s.Goal, true
	case library.RosterVictory:
		return s.Victory, true
	}
	if r, ok := s.Players[name]; ok {
		return r, true
	}
	r, ok := s.Events[name]
	return r, ok
}

func (s *Side) all() []*roster.Roster {
	out := []*roster.Roster{s.Anthem, s.Goal, s.Victory}
	for _, p := range s.Team.PlayerOrder {
		out = append(out, s.Players[p])
	}
	for _, e := range s.Team.EventOrder {
		out = append(out, s.Events[e])
	}
	return out
}

// play hands the match's main output to r: the previously active roster
// is paused first.
func (m *Match) play(r *roster.Roster, explicit *cue.Cue) error {
	m.mu.Lock()
	prev := m.active
	m.active = r
	m.mu.Unlock()

	if prev != nil && prev != r {
		prev.PauseSong()
	}
	_, err := r.PlaySong(explicit)
	return err
}

// Goal records a goal for player and plays their goalhorn, falling back to
// the team goalhorn when the player has nothing to play.
func (m *Match) Goal(home bool, player string) error {
	s := m.side(home)
	m.state.AddGoal(home, player)
	if m.opts.Metrics != nil {
		m.opts.Metrics.RecordGoal(s.Team.Name)
	}
	m.emit(model.EventGoal, s.Team.Name, player, player, m.score())

	err := roster.ErrNoCue
	r, ok := s.Players[player]
	if ok {
		g := m.gates[r]
		g.hold()
		err = m.play(r, nil)
		defer g.release(r)
	}
	if errors.Is(err, roster.ErrNoCue) {
		slog.Debug("Match: no player cue, using team goalhorn", "team", s.Team.Name, "player", player)
		err = m.play(s.Goal, nil)
		if err == nil && ok {
			m.gates[r].drop()
		}
	}
	return err
}

// UndoGoal takes back a goal recorded by mistake.
func (m *Match) UndoGoal(home bool, player string) bool {
	if !m.state.RemoveGoal(home, player) {
		return false
	}
	m.emit(model.EventUndo, m.side(home).Team.Name, player, player, m.score())
	return true
}

func (m *Match) PlayAnthem(home bool) error {
	return m.play(m.side(home).Anthem, nil)
}

func (m *Match) PlayVictory(home bool) error {
	return m.play(m.side(home).Victory, nil)
}

// Play plays the named roster of one side through its rules.
func (m *Match) Play(home bool, name string) error {
	r, ok := m.side(home).Roster(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoster, name)
	}
	return m.play(r, nil)
}

// Event plays the cue for a match event such as a red card.
func (m *Match) Event(home bool, event string) error {
	r, ok := m.side(home).Events[event]
	if !ok {
		return fmt.Errorf("%w: event %s", ErrUnknownRoster, event)
	}
	return m.play(r, nil)
}

// PlayChant restarts chant index of one side from the top.
func (m *Match) PlayChant(home bool, index int) error {
	chants := m.side(home).Team.Chants
	if index < 0 || index >= len(chants) {
		return fmt.Errorf("%w: %d", ErrUnknownChant, index)
	}
	return m.playChant(chants[index])
}

// PlayRandomChant plays a random chant of one side. Chants marked unrandom
// are never picked.
func (m *Match) PlayRandomChant(home bool) error {
	var pool []*cue.Cue
	for _, c := range m.side(home).Team.Chants {
		if !c.Unrandom() && !c.Disabled() {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return fmt.Errorf("%w: no random chants", ErrUnknownChant)
	}
	return m.playChant(pool[m.opts.IntN(len(pool))])
}

func (m *Match) playChant(c *cue.Cue) error {
	m.chants.PauseSong()
	c.Reload()
	_, err := m.chants.PlaySong(c)
	return err
}

// Pause pauses the named roster of one side; an empty name pauses whatever
// holds the main output.
func (m *Match) Pause(home bool, name string) error {
	if name == "" {
		m.mu.Lock()
		r := m.active
		m.mu.Unlock()
		if r != nil {
			r.PauseSong()
		}
		return nil
	}
	if name == library.RosterChant {
		m.chants.PauseSong()
		return nil
	}
	r, ok := m.side(home).Roster(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoster, name)
	}
	r.PauseSong()
	return nil
}

// StopAll pauses every roster of the match.
func (m *Match) StopAll() {
	for _, r := range m.rosters() {
		r.PauseSong()
	}
	m.mu.Lock()
	m.active = nil
	m.mu.Unlock()
	if m.opts.Title != nil {
		m.opts.Title.Clear()
	}
	m.emit(model.EventStop, "", "", "all", m.score())
}

// SetVolume sets the volume of one roster, now and for later cues.
func (m *Match) SetVolume(home bool, name string, level int) error {
	r, ok := m.side(home).Roster(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRoster, name)
	}
	r.AdjustVolume(level)
	m.emit(model.EventVolume, m.side(home).Team.Name, name, fmt.Sprintf("%d", level), "")
	return nil
}

// SetChantVolume sets the volume of every chant.
func (m *Match) SetChantVolume(level int) {
	for _, c := range m.chants.Cues() {
		c.AdjustVolume(level)
	}
	m.chants.AdjustVolume(level)
	m.emit(model.EventVolume, "", library.RosterChant, fmt.Sprintf("%d", level), "")
}

// SetMatchType changes the match type, e.g. when a knockout round starts.
func (m *Match) SetMatchType(mt string) {
	m.state.SetMatchType(mt)
}

func (m *Match) rosters() []*roster.Roster {
	return append(append(m.home.all(), m.away.all()...), m.chants)
}

// Status is a snapshot of scores and of what is playing.
func (m *Match) Status() model.Status {
	st := model.Status{
		MatchID:   m.id,
		MatchType: m.state.MatchType(),
		Home:      m.teamStatus(true),
		Away:      m.teamStatus(false),
		Playing:   []model.NowPlaying{},
	}
	for _, r := range m.rosters() {
		c := r.Current()
		if c == nil {
			continue
		}
		st.Playing = append(st.Playing, model.NowPlaying{
			Team:   c.Owner().Team,
			Roster: r.ID(),
			Title:  c.Title(),
			File:   c.File(),
			Volume: c.Volume(),
		})
	}
	return st
}

func (m *Match) teamStatus(home bool) model.TeamStatus {
	t := m.side(home).Team
	ts := model.TeamStatus{
		Name:    t.Name,
		Score:   m.state.TeamScore(home),
		Scorers: m.state.TeamScorers(home),
		Rosters: slices.Clone(t.PlayerOrder),
		Chants:  make([]string, 0, len(t.Chants)),
	}
	for _, c := range t.Chants {
		ts.Chants = append(ts.Chants, c.File())
	}
	return ts
}

func (m *Match) score() string {
	return fmt.Sprintf("%d-%d", m.state.TeamScore(true), m.state.TeamScore(false))
}

// Close stops playback and releases every cue.
func (m *Match) Close() {
	for _, r := range m.rosters() {
		r.Close()
	}
}

func (m *Match) emit(typ, team, rosterID, title, summary string) {
	ev := model.MatchEvent{
		Timestamp: time.Now(),
		Type:      typ,
		Team:      team,
		Roster:    rosterID,
		Title:     title,
		Summary:   summary,
	}
	logging.LogEvent(&ev)
	for _, s := range m.opts.Sinks {
		s.Publish(ev)
	}
}

// CuePlayed implements roster.Observer.
func (m *Match) CuePlayed(r *roster.Roster, c *cue.Cue, first bool) {
	title := c.Title()
	if m.opts.Title != nil {
		m.opts.Title.Show(title)
	}
	summary := m.score()
	if first {
		summary += " first play"
	}
	m.emit(model.EventPlay, c.Owner().Team, r.ID(), title, summary)
}

// CuePaused implements roster.Observer.
func (m *Match) CuePaused(r *roster.Roster, c *cue.Cue) {
	m.emit(model.EventPause, c.Owner().Team, r.ID(), c.Title(), "")
}

// CueRetired implements roster.Observer.
func (m *Match) CueRetired(r *roster.Roster, c *cue.Cue) {
	m.emit(model.EventRetire, c.Owner().Team, r.ID(), c.File(), "")
}

// NoCue implements roster.Observer.
func (m *Match) NoCue(r *roster.Roster) {
	m.emit(model.EventNoCue, m.teamOf[r], r.ID(), "", m.score())
}

// noCueGate forwards roster notifications. While held, a NoCue is kept
// back and is delivered on release unless it was dropped.
type noCueGate struct {
	next []roster.Observer

	mu     sync.Mutex
	held   bool
	missed bool
}

func (g *noCueGate) hold() {
	g.mu.Lock()
	g.held, g.missed = true, false
	g.mu.Unlock()
}

func (g *noCueGate) drop() {
	g.mu.Lock()
	g.missed = false
	g.mu.Unlock()
}

func (g *noCueGate) release(r *roster.Roster) {
	g.mu.Lock()
	missed := g.missed
	g.held, g.missed = false, false
	g.mu.Unlock()
	if missed {
		g.forwardNoCue(r)
	}
}

func (g *noCueGate) forwardNoCue(r *roster.Roster) {
	for _, o := range g.next {
		o.NoCue(r)
	}
}

func (g *noCueGate) CuePlayed(r *roster.Roster, c *cue.Cue, first bool) {
	for _, o := range g.next {
		o.CuePlayed(r, c, first)
	}
}

func (g *noCueGate) CuePaused(r *roster.Roster, c *cue.Cue) {
	for _, o := range g.next {
		o.CuePaused(r, c)
	}
}

func (g *noCueGate) CueRetired(r *roster.Roster, c *cue.Cue) {
	for _, o := range g.next {
		o.CueRetired(r, c)
	}
}

func (g *noCueGate) NoCue(r *roster.Roster) {
	g.mu.Lock()
	if g.held {
		g.missed = true
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	g.forwardNoCue(r)
}
