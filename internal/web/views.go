package web

import (
	"github.com/lucasnoah/compiletutor/internal/db"
	"github.com/lucasnoah/compiletutor/internal/session"
)

// AnalysisView is the JSON shape of a recorded analysis.
type AnalysisView struct {
	ID          int64          `json:"id"`
	FilePath    string         `json:"file_path"`
	Backend     string         `json:"backend"`
	OutcomeKind string         `json:"outcome_kind"`
	OutcomeText string         `json:"outcome_text,omitempty"`
	ExitCode    *int           `json:"exit_code,omitempty"`
	CreatedAt   string         `json:"created_at"`
	Turns       []session.Turn `json:"turns,omitempty"`
}

func analysisView(a db.Analysis) AnalysisView {
	return AnalysisView{
		ID:          a.ID,
		FilePath:    a.FilePath,
		Backend:     a.Backend,
		OutcomeKind: a.OutcomeKind,
		OutcomeText: a.OutcomeText,
		ExitCode:    a.ExitCode,
		CreatedAt:   a.CreatedAt,
		Turns:       a.Turns,
	}
}

func analysesView(analyses []db.Analysis) []AnalysisView {
	out := make([]AnalysisView, 0, len(analyses))
	for _, a := range analyses {
		out = append(out, analysisView(a))
	}
	return out
}
