package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/docstruct/internal/pipeline"
)

// handleSubmitJob queues an asynchronous conversion.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	if herr := s.parseForm(w, r, 1); herr != nil {
		jsonError(w, herr.msg, herr.code)
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, herr := s.formMode(r)
	if herr != nil {
		jsonError(w, herr.msg, herr.code)
		return
	}
	fh, herr := formFile(r, "file")
	if herr != nil {
		jsonError(w, herr.msg, herr.code)
		return
	}
	filename, data, herr := s.readUpload(fh)
	if herr != nil {
		jsonError(w, herr.msg, herr.code)
		return
	}

	job := pipeline.NewJob(filename, r.FormValue("title"), mode, data)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id":     job.ID,
		"status":     pipeline.StatusQueued,
		"poll_url":   fmt.Sprintf("/api/jobs/%s/status", job.ID),
		"result_url": fmt.Sprintf("/api/jobs/%s/result", job.ID),
		"ws_url":     fmt.Sprintf("/ws/jobs/%s", job.ID),
	})
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

// handleJobResult returns the XML of a completed, partial or cancelled job
// that produced sections.
func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	out := job.Result()
	if out == nil {
		snap := job.Snapshot()
		jsonError(w, fmt.Sprintf("no result for job in status %q", snap.Status), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	if s.orchestrator.GetJob(jobID) == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	if !s.orchestrator.CancelJob(jobID) {
		jsonError(w, "job already finished", http.StatusConflict)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": jobID,
		"status": "cancelling",
	})
}
