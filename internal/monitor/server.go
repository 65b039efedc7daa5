// Package monitor implements the read-only HTTP/websocket server behind
// the `attach` command (spec.md §4.8, §6.2): it serves a snapshot of an
// experiment's reconstructed state and tails a conversation's event log
// over a websocket. It never writes to the experiment directory and can
// never influence a running conversation, mirroring the teacher's
// http.ServeMux-based internal/httpapi/server.go wiring style.
package monitor

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"pidgin/internal/paths"
	"pidgin/internal/statebuilder"
)

// pollInterval is how often the tail loop checks the event log for new
// lines. Readers never affect experiment pacing, so this is purely a
// responsiveness/CPU tradeoff.
const pollInterval = 250 * time.Millisecond

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server exposes the monitor's read-only HTTP endpoints.
type Server struct {
	outputDir string
	cache     *statebuilder.Cache
	mux       *http.ServeMux
}

// NewServer wires a Server over outputDir. cache may be shared with other
// readers; pass statebuilder.NewCache() for a dedicated one.
func NewServer(outputDir string, cache *statebuilder.Cache) *Server {
	s := &Server{outputDir: outputDir, cache: cache, mux: http.NewServeMux()}
	s.registerRoutes()
	return s
}

// ServeHTTP satisfies http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /experiments/{experimentID}", s.handleSnapshot)
	s.mux.HandleFunc("GET /experiments/{experimentID}/conversations/{conversationID}/attach", s.handleAttach)
}

// handleSnapshot returns the current reconstructed ExperimentView as JSON,
// served from the cache so repeated polling (e.g. a `pidgin status` loop)
// doesn't re-scan every conversation's event log each time.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	experimentID := r.PathValue("experimentID")
	view, err := s.cache.Build(s.outputDir, experimentID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(view); err != nil {
		log.Error().Err(err).Str("experiment_id", experimentID).Msg("monitor: encode snapshot failed")
	}
}

// handleAttach upgrades to a websocket and streams every event appended to
// one conversation's log, replaying the full history first.
func (s *Server) handleAttach(w http.ResponseWriter, r *http.Request) {
	experimentID := r.PathValue("experimentID")
	conversationID := r.PathValue("conversationID")
	logPath := paths.EventLogPath(s.outputDir, experimentID, conversationID)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("monitor: websocket upgrade failed")
		return
	}
	defer conn.Close()

	closed := make(chan struct{})
	go drainClientReads(conn, closed)

	if err := tailLoop(conn, logPath, closed); err != nil {
		log.Debug().Err(err).Str("conversation_id", conversationID).Msg("monitor: tail loop ended")
	}
}

// drainClientReads discards inbound messages (clients never send commands
// over this socket) and closes `closed` once the client disconnects, so
// tailLoop can stop writing to a dead connection.
func drainClientReads(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
