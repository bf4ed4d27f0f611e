// Package api exposes receiver state over HTTP: demultiplexer counters,
// the capture session index, and on-demand health reports for indexed
// sessions.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/banshee-data/ml2raw/internal/httputil"
	"github.com/banshee-data/ml2raw/internal/mlraw/mux"
	"github.com/banshee-data/ml2raw/internal/mlraw/report"
	"github.com/banshee-data/ml2raw/internal/mlraw/sessiondb"
	"github.com/banshee-data/ml2raw/internal/security"
	"github.com/banshee-data/ml2raw/internal/version"
)

type Server struct {
	receiver *mux.Receiver
	sessions *sessiondb.SessionStore

	// captureDir bounds which session paths the report endpoint will
	// open. Empty disables the endpoint.
	captureDir string
}

func NewServer(receiver *mux.Receiver, sessions *sessiondb.SessionStore, captureDir string) *Server {
	return &Server{
		receiver:   receiver,
		sessions:   sessions,
		captureDir: captureDir,
	}
}

func (s *Server) ServeMux() *http.ServeMux {
	m := http.NewServeMux()
	m.HandleFunc("/stats", s.statsHandler)
	m.HandleFunc("/sessions", s.listSessionsHandler)
	m.HandleFunc("/sessions/report", s.sessionReportHandler)
	m.HandleFunc("/", s.homeHandler)
	return m
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	fmt.Fprintf(w, "ML2 raw telemetry receiver %s (%s)", version.Version, version.GitSHA)
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}

	st := s.receiver.Demux().Stats()
	httputil.WriteJSONOK(w, map[string]any{
		"frames":          st.Frames,
		"bytes":           st.Bytes,
		"unrouted_frames": st.UnroutedFrames,
		"state":           st.State.String(),
		"connections":     s.receiver.Connections(),
	})
}

func (s *Server) listSessionsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.sessions == nil {
		httputil.NotFound(w, "session index not enabled")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = n
	}

	list, err := s.sessions.List(r.URL.Query().Get("kind"), limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to list sessions: %v", err))
		return
	}
	httputil.WriteJSONOK(w, list)
}

// sessionReportHandler re-analyzes an indexed capture file and returns
// the plain-text health report. Only paths inside the configured
// capture directory are opened.
func (s *Server) sessionReportHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	if s.sessions == nil || s.captureDir == "" {
		httputil.NotFound(w, "session reports not enabled")
		return
	}

	id := r.URL.Query().Get("id")
	if id == "" {
		httputil.BadRequest(w, "missing session id")
		return
	}

	sess, err := s.sessions.GetByID(id)
	if err != nil {
		httputil.NotFound(w, fmt.Sprintf("session %s not found", id))
		return
	}

	if err := security.ValidatePathWithinDirectory(sess.Path, s.captureDir); err != nil {
		httputil.BadRequest(w, "session path outside capture directory")
		return
	}

	var buf strings.Builder
	if _, err := report.Analyze(sess.Path, &buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to analyze session: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(buf.String()))
}
