package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/lucasnoah/compiletutor/internal/backend"
	"github.com/lucasnoah/compiletutor/internal/diagnosis"
	"github.com/lucasnoah/compiletutor/internal/session"
	"github.com/lucasnoah/compiletutor/internal/toolchain"
)

type analyzeRequest struct {
	Path string `json:"path"`
	// Source is embedded in the prompt when present.
	Source *string `json:"source,omitempty"`
}

type analyzeResponse struct {
	Outcome  toolchain.Outcome `json:"outcome"`
	Summary  string            `json:"summary"`
	Analysis string            `json:"analysis,omitempty"`
	Turns    []session.Turn    `json:"turns"`
	Error    string            `json:"error,omitempty"`
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string         `json:"answer,omitempty"`
	Turns  []session.Turn `json:"turns"`
	Error  string         `json:"error,omitempty"`
}

type transcriptResponse struct {
	Active  bool               `json:"active"`
	Outcome *toolchain.Outcome `json:"outcome,omitempty"`
	Turns   []session.Turn     `json:"turns"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps a pipeline error to an HTTP status.
func statusFor(err error) int {
	var (
		authErr  *backend.AuthError
		notFound *backend.ModelNotFoundError
		unavail  *backend.UnavailableError
	)
	switch {
	case errors.Is(err, diagnosis.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, diagnosis.ErrNoActiveSession):
		return http.StatusPreconditionFailed
	case errors.Is(err, diagnosis.ErrEmptyQuestion):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &authErr), errors.As(err, &notFound):
		return http.StatusServiceUnavailable
	case errors.As(err, &unavail):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func nonNil(turns []session.Turn) []session.Turn {
	if turns == nil {
		return []session.Turn{}
	}
	return turns
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": s.backend})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	res, err := s.analyzer.RunInitialAnalysis(r.Context(), req.Path, req.Source)
	if errors.Is(err, diagnosis.ErrBusy) {
		writeError(w, http.StatusConflict, diagnosis.Message(err))
		return
	}

	resp := analyzeResponse{
		Outcome:  res.Outcome,
		Summary:  res.Outcome.Describe(),
		Analysis: res.Analysis,
		Turns:    nonNil(s.analyzer.Transcript()),
	}
	if err != nil {
		resp.Error = diagnosis.Message(err)
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if !decodeBody(w, r, &req) {
		return
	}

	answer, err := s.analyzer.AskFollowUp(r.Context(), req.Question)
	resp := askResponse{Answer: answer, Turns: nonNil(s.analyzer.Transcript())}
	if err != nil {
		resp.Error = diagnosis.Message(err)
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.analyzer.Clear()
	writeJSON(w, http.StatusOK, transcriptResponse{Turns: []session.Turn{}})
}

func (s *Server) transcript() transcriptResponse {
	turns := s.analyzer.Transcript()
	resp := transcriptResponse{Active: len(turns) > 0, Turns: nonNil(turns)}
	if o, ok := s.analyzer.Outcome(); ok {
		resp.Outcome = &o
	}
	return resp
}

func (s *Server) handleTranscript(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.transcript())
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	analyses, err := s.history.ListAnalyses(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, analysesView(analyses))
}

func (s *Server) handleHistoryDetail(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "history is disabled")
		return
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}
	a, err := s.history.GetAnalysis(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, analysisView(*a))
}
