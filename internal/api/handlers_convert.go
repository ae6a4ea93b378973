package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dgallion1/docstruct/internal/locate"
	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/dgallion1/docstruct/internal/pipeline"
)

// handleConvert converts one upload synchronously and returns the XML book.
func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
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

	res, err := s.orchestrator.Converter().ConvertShared(r.Context(), pipeline.Request{
		Filename: filename,
		Data:     data,
		Title:    r.FormValue("title"),
		Mode:     mode,
	})
	if err != nil {
		s.log.Error("conversion failed", "filename", filename, "error", err)
		jsonError(w, err.Error(), convertErrorStatus(err))
		return
	}
	out, err := res.XML()
	if err != nil {
		jsonError(w, "failed to serialize result", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.Header().Set("X-Docstruct-Strategy", string(res.Strategy))
	w.Header().Set("X-Docstruct-Warnings", strconv.Itoa(len(res.Warnings)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// handleConvertBatch converts several uploads concurrently and reports each.
func (s *Server) handleConvertBatch(w http.ResponseWriter, r *http.Request) {
	if herr := s.parseForm(w, r, 10); herr != nil {
		jsonError(w, herr.msg, herr.code)
		return
	}
	defer r.MultipartForm.RemoveAll()

	mode, herr := s.formMode(r)
	if herr != nil {
		jsonError(w, herr.msg, herr.code)
		return
	}
	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	// Rejected uploads keep their slot so results line up with the request.
	results := make([]pipeline.BatchItem, len(files))
	var reqs []pipeline.Request
	var slots []int
	for i, fh := range files {
		filename, data, herr := s.readUpload(fh)
		if herr != nil {
			results[i] = pipeline.BatchItem{Filename: filename, Warnings: []string{}, Error: herr.msg}
			continue
		}
		reqs = append(reqs, pipeline.Request{Filename: filename, Data: data, Mode: mode})
		slots = append(slots, i)
	}

	items := s.orchestrator.Converter().ConvertBatch(r.Context(), reqs, s.cfg.WorkerCount)
	for j, it := range items {
		results[slots[j]] = it
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func convertErrorStatus(err error) int {
	switch {
	case errors.Is(err, parser.ErrEmptyDocument), errors.Is(err, locate.ErrEmptyText):
		return http.StatusUnprocessableEntity
	case errors.Is(err, parser.ErrUnsupportedFormat):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
