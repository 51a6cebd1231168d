package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/lucasnoah/compiletutor/internal/db"
	"github.com/lucasnoah/compiletutor/internal/diagnosis"
	"github.com/lucasnoah/compiletutor/internal/session"
	"github.com/lucasnoah/compiletutor/internal/toolchain"
)

// maxBodyBytes bounds request bodies; source files ride along in analyze requests.
const maxBodyBytes = 8 << 20

// Analyzer is the session a UI drives. *diagnosis.Pipeline implements it.
type Analyzer interface {
	RunInitialAnalysis(ctx context.Context, filePath string, fileText *string) (diagnosis.Result, error)
	AskFollowUp(ctx context.Context, question string) (string, error)
	Clear()
	Transcript() []session.Turn
	Outcome() (toolchain.Outcome, bool)
}

// History is the read side of the analysis history. *db.DB implements it.
type History interface {
	ListAnalyses(limit int) ([]db.Analysis, error)
	GetAnalysis(id int64) (*db.Analysis, error)
}

// Server exposes the session commands as a JSON API.
type Server struct {
	analyzer Analyzer
	history  History
	port     int
	backend  string

	// pollInterval is how often the transcript stream checks for new turns.
	pollInterval time.Duration
}

// NewServer creates a Server. history may be nil when recording is disabled.
func NewServer(analyzer Analyzer, history History, port int, backendName string) *Server {
	return &Server{
		analyzer:     analyzer,
		history:      history,
		port:         port,
		backend:      backendName,
		pollInterval: time.Second,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/ask", s.handleAsk)
	mux.HandleFunc("POST /api/clear", s.handleClear)
	mux.HandleFunc("GET /api/transcript", s.handleTranscript)
	mux.HandleFunc("GET /api/transcript/stream", s.handleTranscriptStream)
	mux.HandleFunc("GET /api/history", s.handleHistoryList)
	mux.HandleFunc("GET /api/history/{id}", s.handleHistoryDetail)
	return logRequests(mux)
}

// Start listens on the configured port until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Tutor API (%s): http://localhost%s", s.backend, addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
