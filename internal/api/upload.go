package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docstruct/internal/parser"
	"github.com/dgallion1/docstruct/internal/pipeline"
)

// httpError carries a status code for handler helpers.
type httpError struct {
	code int
	msg  string
}

func (e *httpError) Error() string { return e.msg }

func badRequest(format string, args ...any) *httpError {
	return &httpError{code: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// parseForm limits the body and parses a multipart form. files is how many
// uploads the form may carry.
func (s *Server) parseForm(w http.ResponseWriter, r *http.Request, files int64) *httpError {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*files+1024*1024) // extra 1MB for form overhead
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &httpError{
				code: http.StatusRequestEntityTooLarge,
				msg:  fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return badRequest("invalid multipart form: %s", err)
	}
	return nil
}

// readUpload reads one uploaded file, checking its extension and size.
func (s *Server) readUpload(fh *multipart.FileHeader) (string, []byte, *httpError) {
	filename := sanitizeFilename(fh.Filename)
	if !parser.IsSupportedExtension(filename) {
		return filename, nil, badRequest("unsupported file type: %s", filepath.Ext(filename))
	}
	f, err := fh.Open()
	if err != nil {
		return filename, nil, &httpError{code: http.StatusInternalServerError, msg: "failed to open file"}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, &httpError{code: http.StatusInternalServerError, msg: "failed to read file"}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, &httpError{
			code: http.StatusRequestEntityTooLarge,
			msg:  fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes),
		}
	}
	return filename, data, nil
}

// formFile returns the single upload under field.
func formFile(r *http.Request, field string) (*multipart.FileHeader, *httpError) {
	fhs := r.MultipartForm.File[field]
	if len(fhs) == 0 {
		return nil, badRequest("%s is required", field)
	}
	return fhs[0], nil
}

// formMode reads the mode field, defaulting to the configured mode. Neural
// mode is rejected when no LLM is configured.
func (s *Server) formMode(r *http.Request) (pipeline.Mode, *httpError) {
	mode, err := pipeline.ParseMode(r.FormValue("mode"), pipeline.Mode(s.cfg.DefaultMode))
	if err != nil {
		return "", badRequest("%s", err)
	}
	if mode == pipeline.ModeNeural && !s.orchestrator.Converter().LLMEnabled() {
		return "", badRequest("neural mode is unavailable: no LLM endpoint configured")
	}
	return mode, nil
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
