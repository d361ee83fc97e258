package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"time"

	"rigdiogo/pkg/logging"
)

// key=value or key="value with spaces"
var logRegex = regexp.MustCompile(`([a-zA-Z0-9_\-.]+)=(?:"([^"]*)"|([^ ]+))`)

// maxParamLen drops long attribute values from the condensed line.
const maxParamLen = 20

// handleLatestLog returns the last server log line and the last match event.
func handleLatestLog(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(map[string]string{
		"log":   formatLogLine(logging.GlobalLogCapture.GetLastLine()),
		"event": logging.GlobalEventCapture.GetLastLine(),
	}); err != nil {
		slog.Error("Failed to write log response", "error", err)
	}
}

// formatLogLine condenses a slog text line to "HH:MM:SS msg (k=v, k=v)".
// Attributes are sorted and long values dropped; level is omitted.
func formatLogLine(raw string) string {
	matches := logRegex.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return raw
	}

	var msg, clock string
	var params []string
	for _, m := range matches {
		key, val := m[1], m[2]
		if val == "" {
			val = m[3]
		}
		val = strings.TrimSpace(val)

		switch {
		case key == "time":
			if t, err := time.Parse(time.RFC3339, val); err == nil {
				clock = t.Format("15:04:05")
			}
		case key == "level":
		case key == "msg":
			msg = val
		case len(val) <= maxParamLen:
			params = append(params, fmt.Sprintf("%s=%s", key, val))
		}
	}
	if msg == "" {
		return raw
	}

	sort.Strings(params)
	out := msg
	if clock != "" {
		out = clock + " " + msg
	}
	if len(params) > 0 {
		out = fmt.Sprintf("%s (%s)", out, strings.Join(params, ", "))
	}
	return out
}
