// Package metrics exposes playback counters in the Prometheus format.
package metrics

import (
	"net/http"
	"strconv"

	"rigdiogo/pkg/config"
	"rigdiogo/pkg/cue"
	"rigdiogo/pkg/roster"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records match playback metrics. It is a roster.Observer.
//
// Metrics:
//   - <ns>_cues_played_total: cue plays by team, roster, kind and first play
//   - <ns>_cues_paused_total: cue pauses by team and roster
//   - <ns>_cues_retired_total: cues evicted for good by team and roster
//   - <ns>_no_cue_total: selections that found nothing to play, by roster
//   - <ns>_goals_total: goals by team
//   - <ns>_missing_media: media files missing at load, by team
//   - <ns>_playing: 1 while a roster has a cue playing
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	played  *prometheus.CounterVec
	paused  *prometheus.CounterVec
	retired *prometheus.CounterVec
	noCue   *prometheus.CounterVec
	goals   *prometheus.CounterVec
	missing *prometheus.GaugeVec
	playing *prometheus.GaugeVec
}

// NewCollector creates and registers the metrics. A nil registry gets a
// fresh one.
func NewCollector(cfg config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "rigdio"
	}

	c := &Collector{
		enabled:  cfg.Enabled,
		registry: registry,
		played: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cues_played_total",
			Help:      "Total number of cue plays",
		}, []string{"team", "roster", "kind", "first"}),
		paused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cues_paused_total",
			Help:      "Total number of cue pauses",
		}, []string{"team", "roster"}),
		retired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "cues_retired_total",
			Help:      "Total number of cues retired by their rules",
		}, []string{"team", "roster"}),
		noCue: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "no_cue_total",
			Help:      "Total number of selections with no matching cue",
		}, []string{"roster"}),
		goals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "goals_total",
			Help:      "Total number of goals scored",
		}, []string{"team"}),
		missing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "missing_media",
			Help:      "Media files that could not be found when the team loaded",
		}, []string{"team"}),
		playing: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "playing",
			Help:      "Whether a roster currently has a cue playing",
		}, []string{"team", "roster"}),
	}
	registry.MustRegister(c.played, c.paused, c.retired, c.noCue, c.goals, c.missing, c.playing)
	return c
}

// Registry returns the registry the metrics live in.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry for scraping.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

func (c *Collector) CuePlayed(r *roster.Roster, cu *cue.Cue, first bool) {
	if !c.enabled {
		return
	}
	team := cu.Owner().Team
	c.played.WithLabelValues(team, r.ID(), string(cu.Kind()), strconv.FormatBool(first)).Inc()
	c.playing.WithLabelValues(team, r.ID()).Set(1)
}

func (c *Collector) CuePaused(r *roster.Roster, cu *cue.Cue) {
	if !c.enabled {
		return
	}
	team := cu.Owner().Team
	c.paused.WithLabelValues(team, r.ID()).Inc()
	c.playing.WithLabelValues(team, r.ID()).Set(0)
}

func (c *Collector) CueRetired(r *roster.Roster, cu *cue.Cue) {
	if !c.enabled {
		return
	}
	c.retired.WithLabelValues(cu.Owner().Team, r.ID()).Inc()
}

func (c *Collector) NoCue(r *roster.Roster) {
	if !c.enabled {
		return
	}
	c.noCue.WithLabelValues(r.ID()).Inc()
}

// RecordGoal counts a goal for team.
func (c *Collector) RecordGoal(team string) {
	if !c.enabled {
		return
	}
	c.goals.WithLabelValues(team).Inc()
}

// RecordMissing sets the number of missing media files for team.
func (c *Collector) RecordMissing(team string, n int) {
	if !c.enabled {
		return
	}
	c.missing.WithLabelValues(team).Set(float64(n))
}
