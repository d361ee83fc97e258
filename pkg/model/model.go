// Package model holds the plain data types shared by the match, logging and API layers.
package model

import "time"

// Match event types.
const (
	EventGoal    = "goal"
	EventUndo    = "undo"
	EventPlay    = "play"
	EventPause   = "pause"
	EventStop    = "stop"
	EventRetire  = "retire"
	EventNoCue   = "no_cue"
	EventVolume  = "volume"
	EventMissing = "missing"
)

// MatchEvent is one line of the match log and the live feed.
type MatchEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Type      string    `json:"type"`
	Team      string    `json:"team,omitempty"`
	Roster    string    `json:"roster,omitempty"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary,omitempty"`
}

// NowPlaying describes the cue currently sounding for one roster.
type NowPlaying struct {
	Team   string `json:"team"`
	Roster string `json:"roster"`
	Title  string `json:"title"`
	File   string `json:"file"`
	Volume int    `json:"volume"`
}

// TeamStatus is the public view of one side of the match.
type TeamStatus struct {
	Name    string         `json:"name"`
	Score   int            `json:"score"`
	Scorers map[string]int `json:"scorers"`
	Rosters []string       `json:"rosters"`
	Chants  []string       `json:"chants"`
}

// Status is a snapshot of the whole match.
type Status struct {
	MatchID   string       `json:"match_id"`
	MatchType string       `json:"match_type"`
	Home      TeamStatus   `json:"home"`
	Away      TeamStatus   `json:"away"`
	Playing   []NowPlaying `json:"playing"`
}
