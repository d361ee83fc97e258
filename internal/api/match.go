package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"rigdiogo/pkg/library"
	"rigdiogo/pkg/match"
	"rigdiogo/pkg/model"
	"rigdiogo/pkg/roster"
)

// Controller is the match surface the handlers drive.
type Controller interface {
	Goal(home bool, player string) error
	UndoGoal(home bool, player string) bool
	PlayAnthem(home bool) error
	PlayVictory(home bool) error
	Play(home bool, name string) error
	Event(home bool, event string) error
	PlayChant(home bool, index int) error
	PlayRandomChant(home bool) error
	Pause(home bool, name string) error
	StopAll()
	SetVolume(home bool, name string, level int) error
	SetChantVolume(level int)
	SetMatchType(mt string)
	Status() model.Status
}

// MatchHandler serves the match control endpoints.
type MatchHandler struct {
	match Controller
}

// NewMatchHandler creates a new MatchHandler.
func NewMatchHandler(m Controller) *MatchHandler {
	return &MatchHandler{match: m}
}

// TeamRequest names one side and, depending on the endpoint, a player,
// roster or event.
type TeamRequest struct {
	Team   string `json:"team"` // "home" or "away"
	Player string `json:"player,omitempty"`
	Roster string `json:"roster,omitempty"`
	Event  string `json:"event,omitempty"`
}

// ChantRequest selects a chant by index or at random.
type ChantRequest struct {
	Team   string `json:"team"`
	Index  *int   `json:"index,omitempty"`
	Random bool   `json:"random,omitempty"`
}

// VolumeRequest sets the volume of a roster, or of every chant when Roster
// is "chant".
type VolumeRequest struct {
	Team   string `json:"team"`
	Roster string `json:"roster"`
	Volume int    `json:"volume"`
}

// MatchTypeRequest changes the match type.
type MatchTypeRequest struct {
	Type string `json:"type"`
}

// ActionResponse reports the outcome of a control request.
type ActionResponse struct {
	Status  string `json:"status"` // "ok", "no_cue", "error"
	Message string `json:"message,omitempty"`
}

var errBadTeam = errors.New(`team must be "home" or "away"`)

func parseTeam(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "home":
		return true, nil
	case "away":
		return false, nil
	}
	return false, fmt.Errorf("%w: %q", errBadTeam, s)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

// writeResult maps a match error to a response. Finding nothing to play is
// not a failure.
func writeResult(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, ActionResponse{Status: "ok"})
	case errors.Is(err, roster.ErrNoCue):
		writeJSON(w, http.StatusOK, ActionResponse{Status: "no_cue", Message: err.Error()})
	case errors.Is(err, errBadTeam):
		writeJSON(w, http.StatusBadRequest, ActionResponse{Status: "error", Message: err.Error()})
	case errors.Is(err, match.ErrUnknownRoster), errors.Is(err, match.ErrUnknownChant):
		writeJSON(w, http.StatusNotFound, ActionResponse{Status: "error", Message: err.Error()})
	default:
		slog.Error("API: match action failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, ActionResponse{Status: "error", Message: err.Error()})
	}
}

// HandleStatus handles GET /api/status
func (h *MatchHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.match.Status())
}

// HandleGoal handles POST /api/goal
func (h *MatchHandler) HandleGoal(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if !decode(w, r, &req) {
		return
	}
	home, err := parseTeam(req.Team)
	if err == nil {
		err = h.match.Goal(home, req.Player)
	}
	writeResult(w, err)
}

// HandleUndo handles POST /api/goal/undo
func (h *MatchHandler) HandleUndo(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if !decode(w, r, &req) {
		return
	}
	home, err := parseTeam(req.Team)
	if err != nil {
		writeResult(w, err)
		return
	}
	if !h.match.UndoGoal(home, req.Player) {
		writeJSON(w, http.StatusNotFound, ActionResponse{Status: "error", Message: "no goal to undo"})
		return
	}
	writeResult(w, nil)
}

// HandlePlay handles POST /api/play
func (h *MatchHandler) HandlePlay(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if !decode(w, r, &req) {
		return
	}
	home, err := parseTeam(req.Team)
	if err == nil {
		switch req.Roster {
		case library.RosterAnthem:
			err = h.match.PlayAnthem(home)
		case library.RosterVictory:
			err = h.match.PlayVictory(home)
		default:
			err = h.match.Play(home, req.Roster)
		}
	}
	writeResult(w, err)
}

// HandleEvent handles POST /api/event
func (h *MatchHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if !decode(w, r, &req) {
		return
	}
	home, err := parseTeam(req.Team)
	if err == nil {
		err = h.match.Event(home, req.Event)
	}
	writeResult(w, err)
}

// HandleChant handles POST /api/chant
func (h *MatchHandler) HandleChant(w http.ResponseWriter, r *http.Request) {
	var req ChantRequest
	if !decode(w, r, &req) {
		return
	}
	home, err := parseTeam(req.Team)
	if err == nil {
		switch {
		case req.Random:
			err = h.match.PlayRandomChant(home)
		case req.Index != nil:
			err = h.match.PlayChant(home, *req.Index)
		default:
			http.Error(w, "index or random required", http.StatusBadRequest)
			return
		}
	}
	writeResult(w, err)
}

// HandlePause handles POST /api/pause. Without a team and roster the
// active roster is paused.
func (h *MatchHandler) HandlePause(w http.ResponseWriter, r *http.Request) {
	var req TeamRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Roster == "" {
		writeResult(w, h.match.Pause(true, ""))
		return
	}
	home := true
	if req.Roster != library.RosterChant {
		var err error
		if home, err = parseTeam(req.Team); err != nil {
			writeResult(w, err)
			return
		}
	}
	writeResult(w, h.match.Pause(home, req.Roster))
}

// HandleStop handles POST /api/stop
func (h *MatchHandler) HandleStop(w http.ResponseWriter, r *http.Request) {
	h.match.StopAll()
	writeResult(w, nil)
}

// HandleVolume handles POST /api/volume
func (h *MatchHandler) HandleVolume(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Volume < 0 || req.Volume > 100 {
		http.Error(w, "volume must be 0-100", http.StatusBadRequest)
		return
	}
	if req.Roster == library.RosterChant {
		h.match.SetChantVolume(req.Volume)
		writeResult(w, nil)
		return
	}
	home, err := parseTeam(req.Team)
	if err == nil {
		err = h.match.SetVolume(home, req.Roster, req.Volume)
	}
	writeResult(w, err)
}

// HandleMatchType handles POST /api/match-type
func (h *MatchHandler) HandleMatchType(w http.ResponseWriter, r *http.Request) {
	var req MatchTypeRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Type == "" {
		http.Error(w, "type required", http.StatusBadRequest)
		return
	}
	h.match.SetMatchType(req.Type)
	writeResult(w, nil)
}
