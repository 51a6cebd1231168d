package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lucasnoah/compiletutor/internal/session"
	"github.com/lucasnoah/compiletutor/internal/toolchain"
)

// Analysis represents a row in the analyses table, with its turns when loaded
// through GetAnalysis.
type Analysis struct {
	ID          int64
	FilePath    string
	Backend     string
	OutcomeKind string
	OutcomeText string
	ExitCode    *int
	CreatedAt   string
	Turns       []session.Turn
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// RecordAnalysis inserts an analysis and returns its ID.
func (d *DB) RecordAnalysis(filePath, backendName string, outcome toolchain.Outcome) (int64, error) {
	var id int64
	err := d.conn.QueryRow(
		d.rebind(`INSERT INTO analyses (file_path, backend, outcome_kind, outcome_text, exit_code, created_at) VALUES (?, ?, ?, ?, ?, ?) RETURNING id`),
		filePath, backendName, string(outcome.Kind), outcome.Text, outcome.ExitCode, now(),
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("record analysis: %w", err)
	}
	return id, nil
}

// RecordTurn appends a turn to an analysis.
func (d *DB) RecordTurn(analysisID int64, turn session.Turn) error {
	_, err := d.conn.Exec(
		d.rebind(`INSERT INTO turns (analysis_id, seq, role, content, created_at) VALUES (?, ?, ?, ?, ?)`),
		analysisID, turn.Seq, string(turn.Role), turn.Content, now(),
	)
	if err != nil {
		return fmt.Errorf("record turn: %w", err)
	}
	d.cache.Remove(analysisID)
	return nil
}

// ListAnalyses returns the most recent analyses, newest first, without turns.
// limit <= 0 returns all.
func (d *DB) ListAnalyses(limit int) ([]Analysis, error) {
	query := `SELECT id, file_path, backend, outcome_kind, outcome_text, exit_code, created_at FROM analyses ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := d.conn.Query(d.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list analyses: %w", err)
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// GetAnalysis returns an analysis with its turns in order, or nil if not found.
func (d *DB) GetAnalysis(id int64) (*Analysis, error) {
	if a, ok := d.cache.Get(id); ok {
		return a, nil
	}

	row := d.conn.QueryRow(
		d.rebind(`SELECT id, file_path, backend, outcome_kind, outcome_text, exit_code, created_at FROM analyses WHERE id = ?`),
		id,
	)
	a, err := scanAnalysis(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := d.conn.Query(
		d.rebind(`SELECT seq, role, content FROM turns WHERE analysis_id = ? ORDER BY seq`),
		id,
	)
	if err != nil {
		return nil, fmt.Errorf("get turns: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var t session.Turn
		var role string
		if err := rows.Scan(&t.Seq, &role, &t.Content); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = session.Role(role)
		a.Turns = append(a.Turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	d.cache.Add(id, a)
	return a, nil
}

// DeleteAnalysis removes an analysis and its turns. It reports whether a row existed.
func (d *DB) DeleteAnalysis(id int64) (bool, error) {
	if _, err := d.conn.Exec(d.rebind(`DELETE FROM turns WHERE analysis_id = ?`), id); err != nil {
		return false, fmt.Errorf("delete turns: %w", err)
	}
	res, err := d.conn.Exec(d.rebind(`DELETE FROM analyses WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete analysis: %w", err)
	}
	d.cache.Remove(id)
	n, _ := res.RowsAffected()
	return n > 0, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (*Analysis, error) {
	var (
		a        Analysis
		text     sql.NullString
		exitCode sql.NullInt64
	)
	if err := s.Scan(&a.ID, &a.FilePath, &a.Backend, &a.OutcomeKind, &text, &exitCode, &a.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan analysis: %w", err)
	}
	a.OutcomeText = text.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		a.ExitCode = &code
	}
	return &a, nil
}
