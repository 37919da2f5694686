package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// StartRun records a new running collection run and returns it
func (s *Store) StartRun(source, domain string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		Source:    source,
		Domain:    domain,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, source, domain, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Source, run.Domain, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	return run, nil
}

// RecordPage stores the outcome of one page and updates the run counters
func (s *Store) RecordPage(p *PageResult) error {
	if p.FetchedAt.IsZero() {
		p.FetchedAt = time.Now().UTC()
	}

	return s.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO page_results (run_id, page, status, row_count, error, fetched_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, page) DO UPDATE SET
				status = excluded.status,
				row_count = excluded.row_count,
				error = excluded.error,
				fetched_at = excluded.fetched_at
		`, p.RunID, p.Page, p.Status, p.Rows, p.Error, p.FetchedAt)
		if err != nil {
			return fmt.Errorf("failed to insert page result: %w", err)
		}

		_, err = tx.Exec(`
			UPDATE runs SET
				pages_ok = (SELECT COUNT(*) FROM page_results WHERE run_id = ? AND status != ?),
				pages_failed = (SELECT COUNT(*) FROM page_results WHERE run_id = ? AND status = ?),
				row_count = (SELECT COALESCE(SUM(row_count), 0) FROM page_results WHERE run_id = ?)
			WHERE id = ?
		`, p.RunID, PageFailed, p.RunID, PageFailed, p.RunID, p.RunID)
		if err != nil {
			return fmt.Errorf("failed to update run counters: %w", err)
		}
		return nil
	})
}

// FinishRun closes a run, deriving its status from the page counters
func (s *Store) FinishRun(runID, outputPath string) (*Run, error) {
	run, err := s.GetRun(runID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, fmt.Errorf("run %s not found", runID)
	}

	switch {
	case run.PagesFailed > 0 && run.PagesOK == 0:
		run.Status = RunFailed
	case run.PagesFailed > 0:
		run.Status = RunPartial
	default:
		run.Status = RunOK
	}
	run.FinishedAt = time.Now().UTC()
	run.OutputPath = outputPath

	_, err = s.db.Exec(`
		UPDATE runs SET status = ?, finished_at = ?, output_path = ?
		WHERE id = ?
	`, run.Status, run.FinishedAt, run.OutputPath, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to finish run: %w", err)
	}

	return run, nil
}

const runColumns = `id, source, domain, status, started_at, finished_at,
	pages_ok, pages_failed, row_count, COALESCE(output_path, '')`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	r := &Run{}
	var finished sql.NullTime
	err := row.Scan(
		&r.ID, &r.Source, &r.Domain, &r.Status, &r.StartedAt, &finished,
		&r.PagesOK, &r.PagesFailed, &r.Rows, &r.OutputPath,
	)
	if err != nil {
		return nil, err
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, nil
}

// GetRun retrieves a run by id; a missing run is (nil, nil)
func (s *Store) GetRun(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first; limit <= 0 returns all
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY started_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// GetPageResults returns every page of a run in page order
func (s *Store) GetPageResults(runID string) ([]*PageResult, error) {
	rows, err := s.db.Query(`
		SELECT run_id, page, status, row_count, COALESCE(error, ''), fetched_at
		FROM page_results WHERE run_id = ?
		ORDER BY page
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query page results: %w", err)
	}
	defer rows.Close()

	var pages []*PageResult
	for rows.Next() {
		p := &PageResult{}
		if err := rows.Scan(&p.RunID, &p.Page, &p.Status, &p.Rows, &p.Error, &p.FetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan page result: %w", err)
		}
		pages = append(pages, p)
	}

	return pages, rows.Err()
}

// ErrorCount is a distinct page error message and how often it occurred
type ErrorCount struct {
	Source string
	Error  string
	Count  int
}

// TopPageErrors returns the most frequent page failure messages
func (s *Store) TopPageErrors(limit int) ([]ErrorCount, error) {
	rows, err := s.db.Query(`
		SELECT r.source, p.error, COUNT(*) AS n
		FROM page_results p
		JOIN runs r ON r.id = p.run_id
		WHERE p.status = ? AND p.error IS NOT NULL AND p.error != ''
		GROUP BY r.source, p.error
		ORDER BY n DESC, r.source
		LIMIT ?
	`, PageFailed, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query page errors: %w", err)
	}
	defer rows.Close()

	var out []ErrorCount
	for rows.Next() {
		var e ErrorCount
		if err := rows.Scan(&e.Source, &e.Error, &e.Count); err != nil {
			return nil, fmt.Errorf("failed to scan page error: %w", err)
		}
		out = append(out, e)
	}

	return out, rows.Err()
}
