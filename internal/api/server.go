package api

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"rigdiogo/pkg/version"
)

// NewServer creates and configures the HTTP server.
// metricsH may be nil when metrics are disabled.
func NewServer(addr string, matchH *MatchHandler, events *EventHub, metricsH http.Handler, shutdown func()) *http.Server {
	mux := http.NewServeMux()

	// 1. Health and version
	mux.HandleFunc("GET /health", handleHealth)
	mux.HandleFunc("GET /api/version", handleVersion)
	mux.HandleFunc("GET /api/log/latest", handleLatestLog)

	// 2. Match control
	mux.HandleFunc("GET /api/status", matchH.HandleStatus)
	mux.HandleFunc("POST /api/goal", matchH.HandleGoal)
	mux.HandleFunc("POST /api/goal/undo", matchH.HandleUndo)
	mux.HandleFunc("POST /api/play", matchH.HandlePlay)
	mux.HandleFunc("POST /api/event", matchH.HandleEvent)
	mux.HandleFunc("POST /api/chant", matchH.HandleChant)
	mux.HandleFunc("POST /api/pause", matchH.HandlePause)
	mux.HandleFunc("POST /api/stop", matchH.HandleStop)
	mux.HandleFunc("POST /api/volume", matchH.HandleVolume)
	mux.HandleFunc("POST /api/match-type", matchH.HandleMatchType)

	// 3. Live feed
	if events != nil {
		mux.Handle("GET /api/events", events)
	}

	// 4. Metrics
	if metricsH != nil {
		mux.Handle("GET /metrics", metricsH)
	}

	// 5. Shutdown
	mux.HandleFunc("POST /api/shutdown", func(w http.ResponseWriter, r *http.Request) {
		slog.Info("Graceful shutdown initiated via API")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("Shutting down...")); err != nil {
			slog.Error("Failed to write shutdown response", "error", err)
		}
		// Let the response flush first.
		go func() {
			time.Sleep(100 * time.Millisecond)
			shutdown()
		}()
	})

	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		slog.Error("Failed to write health response", "error", err)
	}
}

func handleVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if _, err := fmt.Fprintf(w, `{"version": "%s"}`, version.Version); err != nil {
		slog.Error("Failed to write version response", "error", err)
	}
}
