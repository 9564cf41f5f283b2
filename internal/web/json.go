package web

import (
	"encoding/json"
	"net/http"

	"github.com/sweeney/tank-controller/internal/control"
)

// CommandJSON is the response to a command request.
type CommandJSON struct {
	Command    string `json:"command"`
	Accepted   bool   `json:"accepted"`
	Pump       *int   `json:"pump,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v CommandJSON) {
	data, _ := json.Marshal(v)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

func writeCommandAccepted(w http.ResponseWriter, cmd control.Command) {
	resp := CommandJSON{Command: cmd.Kind.String(), Accepted: true}
	if cmd.Kind == control.CommandRun {
		p := cmd.Pump
		resp.Pump = &p
		resp.DurationMs = cmd.Duration.Milliseconds()
	}
	writeJSON(w, http.StatusAccepted, resp)
}

func writeCommandError(w http.ResponseWriter, code int, command string, err error) {
	writeJSON(w, code, CommandJSON{Command: command, Error: err.Error()})
}
