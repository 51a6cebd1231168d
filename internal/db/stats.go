package db

import (
	"fmt"
	"sort"
)

// OutcomeCount holds how often one outcome kind was analyzed.
type OutcomeCount struct {
	Kind  string  `json:"kind"`
	Count int     `json:"count"`
	Pct   float64 `json:"pct"`
}

// BackendUsage holds per-backend activity.
type BackendUsage struct {
	Backend   string  `json:"backend"`
	Analyses  int     `json:"analyses"`
	FollowUps int     `json:"follow_ups"`
	AvgTurns  float64 `json:"avg_turns"`
}

// Stats summarizes recorded history.
type Stats struct {
	Total    int            `json:"total"`
	Outcomes []OutcomeCount `json:"outcomes"`
	Backends []BackendUsage `json:"backends"`
}

// QueryStats summarizes analyses created at or after since, an RFC 3339
// timestamp or date prefix. An empty since covers all history.
func (d *DB) QueryStats(since string) (*Stats, error) {
	where := ""
	args := []any{}
	if since != "" {
		where = ` WHERE a.created_at >= ?`
		args = append(args, since)
	}

	rows, err := d.conn.Query(d.rebind(`SELECT a.outcome_kind, COUNT(*) FROM analyses a`+where+` GROUP BY a.outcome_kind`), args...)
	if err != nil {
		return nil, fmt.Errorf("query outcome counts: %w", err)
	}
	defer rows.Close()

	st := &Stats{}
	for rows.Next() {
		var oc OutcomeCount
		if err := rows.Scan(&oc.Kind, &oc.Count); err != nil {
			return nil, fmt.Errorf("scan outcome count: %w", err)
		}
		st.Total += oc.Count
		st.Outcomes = append(st.Outcomes, oc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range st.Outcomes {
		st.Outcomes[i].Pct = pct(st.Outcomes[i].Count, st.Total)
	}
	sort.Slice(st.Outcomes, func(i, j int) bool {
		if st.Outcomes[i].Count != st.Outcomes[j].Count {
			return st.Outcomes[i].Count > st.Outcomes[j].Count
		}
		return st.Outcomes[i].Kind < st.Outcomes[j].Kind
	})

	backendQuery := `
		SELECT a.backend,
			COUNT(DISTINCT a.id),
			SUM(CASE WHEN t.role = 'user' THEN 1 ELSE 0 END),
			COUNT(t.id)
		FROM analyses a
		LEFT JOIN turns t ON t.analysis_id = a.id` + where + `
		GROUP BY a.backend`
	bRows, err := d.conn.Query(d.rebind(backendQuery), args...)
	if err != nil {
		return nil, fmt.Errorf("query backend usage: %w", err)
	}
	defer bRows.Close()

	for bRows.Next() {
		var (
			bu    BackendUsage
			turns int
		)
		if err := bRows.Scan(&bu.Backend, &bu.Analyses, &bu.FollowUps, &turns); err != nil {
			return nil, fmt.Errorf("scan backend usage: %w", err)
		}
		if bu.Analyses > 0 {
			bu.AvgTurns = float64(turns) / float64(bu.Analyses)
		}
		st.Backends = append(st.Backends, bu)
	}
	if err := bRows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(st.Backends, func(i, j int) bool {
		return st.Backends[i].Backend < st.Backends[j].Backend
	})
	return st, nil
}

func pct(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) * 100 / float64(total)
}
