package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/net/websocket"

	"github.com/dgallion1/docstruct/internal/pipeline"
)

// handleJobWebSocket streams a job's progress events: everything published
// so far, then live events until the complete or error event. A client that
// disconnects early cancels the job.
func (s *Server) handleJobWebSocket(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	ws := websocket.Server{
		// Any origin; access is guarded by the API key.
		Handshake: func(*websocket.Config, *http.Request) error { return nil },
		Handler:   func(conn *websocket.Conn) { s.streamJob(conn, job) },
	}
	ws.ServeHTTP(w, r)
}

func (s *Server) streamJob(conn *websocket.Conn, job *pipeline.Job) {
	defer conn.Close()
	log := s.log.With("job_id", job.ID)

	// The client sends nothing; a read error means it went away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		var msg string
		for {
			if err := websocket.Message.Receive(conn, &msg); err != nil {
				return
			}
		}
	}()

	next := 0
	for {
		evs, changed, done := job.EventsSince(next)
		for _, e := range evs {
			if err := websocket.JSON.Send(conn, e); err != nil {
				log.Info("websocket send failed", "error", err)
				s.cancelOnDisconnect(job)
				return
			}
			next++
		}
		if done {
			return
		}
		select {
		case <-changed:
		case <-gone:
			s.cancelOnDisconnect(job)
			return
		}
	}
}

func (s *Server) cancelOnDisconnect(job *pipeline.Job) {
	if s.orchestrator.CancelJob(job.ID) {
		s.log.Info("websocket client disconnected, job cancelled", "job_id", job.ID)
	}
}
