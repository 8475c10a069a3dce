package server

import (
	"encoding/json"
	"net/http"

	"github.com/deepfocus-ai/deepfocus/internal/library"
)

// rootBody is the GET/PUT /api/library/root payload.
type rootBody struct {
	Root string `json:"root"`
	OK   bool   `json:"ok,omitempty"`
}

func (s *Server) handleGetRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rootBody{Root: s.lib.Root()})
}

func (s *Server) handlePutRoot(w http.ResponseWriter, r *http.Request) {
	var body rootBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing JSON body")
		return
	}
	if err := s.lib.SetRoot(body.Root); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rootBody{Root: s.lib.Root(), OK: true})
}

// validateBody is the POST /api/library/validate request.
type validateBody struct {
	Path string `json:"path"`
}

// validateResult is its reply.
type validateResult struct {
	OK        bool   `json:"ok"`
	FileCount int    `json:"file_count,omitempty"`
	Path      string `json:"path,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var body validateBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid or missing JSON body")
		return
	}
	count, err := s.lib.Validate(body.Path)
	if err != nil {
		writeJSON(w, http.StatusOK, validateResult{OK: false, Path: body.Path, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, validateResult{OK: true, FileCount: count, Path: body.Path})
}

func (s *Server) handleSuggestedRoots(w http.ResponseWriter, _ *http.Request) {
	roots := library.SuggestedRoots()
	if roots == nil {
		roots = []library.SuggestedRoot{}
	}
	writeJSON(w, http.StatusOK, map[string][]library.SuggestedRoot{"roots": roots})
}

// indexResult is the POST /api/library/index reply.
type indexResult struct {
	OK     bool           `json:"ok"`
	Status library.Status `json:"status"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if !s.lib.Enabled() {
		writeError(w, http.StatusBadRequest, "valid library root not set")
		return
	}
	status, err := s.lib.Index(r.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, indexResult{OK: true, Status: status})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.lib.IndexStatus())
}

// handleTranscribe is a deliberate stub: audio transcription is not part of
// this deployment.
func (s *Server) handleTranscribe(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotImplemented, "transcription is not supported by this server")
}
