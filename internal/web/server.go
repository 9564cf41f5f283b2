// Package web provides the HTTP status and command server for the
// tank-controller daemon.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/sweeney/tank-controller/internal/control"
	"github.com/sweeney/tank-controller/internal/status"
)

// Commander queues manual commands for the control loop.
type Commander interface {
	Submit(cmd control.Command) error
}

// Server serves the status page, JSON, metrics and command endpoints.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   Commander
}

// New creates a Server that reads state from tracker and queues commands on
// commands. metrics may be nil to disable /metrics; commands may be nil to
// disable the POST endpoints.
func New(addr string, tracker *status.Tracker, commands Commander, metrics http.Handler) *Server {
	s := &Server{tracker: tracker, commands: commands}

	r := mux.NewRouter()
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.html", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/index.json", s.handleJSON).Methods(http.MethodGet)
	if metrics != nil {
		r.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
	if commands != nil {
		r.HandleFunc("/pumps/{index:[0-9]+}/run", s.handleRun).Methods(http.MethodPost)
		r.HandleFunc("/pumps/stop", s.handleStop).Methods(http.MethodPost)
		r.HandleFunc("/stats/reset", s.handleResetStats).Methods(http.MethodPost)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the router. Useful for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(mux.Vars(r)["index"])
	if err != nil {
		writeCommandError(w, http.StatusBadRequest, "run", err)
		return
	}
	if n := len(s.tracker.Snapshot().Pumps); n > 0 && index >= n {
		writeCommandError(w, http.StatusNotFound, "run", errors.New("no such pump"))
		return
	}
	ms, err := strconv.Atoi(r.URL.Query().Get("ms"))
	if err != nil || ms <= 0 {
		writeCommandError(w, http.StatusBadRequest, "run", errors.New("ms must be a positive integer"))
		return
	}
	s.submit(w, control.Command{
		Kind:     control.CommandRun,
		Pump:     index,
		Duration: time.Duration(ms) * time.Millisecond,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.submit(w, control.Command{Kind: control.CommandStop})
}

func (s *Server) handleResetStats(w http.ResponseWriter, r *http.Request) {
	s.submit(w, control.Command{Kind: control.CommandResetStats})
}

func (s *Server) submit(w http.ResponseWriter, cmd control.Command) {
	if err := s.commands.Submit(cmd); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, control.ErrQueueFull) {
			code = http.StatusServiceUnavailable
		}
		writeCommandError(w, code, cmd.Kind.String(), err)
		return
	}
	writeCommandAccepted(w, cmd)
}
