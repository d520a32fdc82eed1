// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists completed research runs: the request, its result
// with citations, and the run's timeline. SQLite keeps history queryable
// from the CLI without a server.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/research-agent/pkg/types"
)

// Store manages the research history SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the history database at cfg.Path, creating
// parent directories and the schema as needed.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	path := cfg.Path
	if path == "" {
		path = "research-agent.db"
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS requests (
			id TEXT PRIMARY KEY,
			question_text TEXT NOT NULL,
			channel TEXT NOT NULL,
			max_iterations INTEGER NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			request_id TEXT PRIMARY KEY REFERENCES requests(id),
			answer_text TEXT NOT NULL,
			iterations_used INTEGER NOT NULL,
			confidence_score REAL NOT NULL,
			status TEXT NOT NULL,
			completed_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS citations (
			request_id TEXT NOT NULL REFERENCES requests(id),
			position INTEGER NOT NULL,
			url TEXT NOT NULL,
			title TEXT,
			relevance_score REAL,
			PRIMARY KEY (request_id, position)
		)`,
		`CREATE TABLE IF NOT EXISTS timeline_events (
			request_id TEXT NOT NULL REFERENCES requests(id),
			seq INTEGER NOT NULL,
			step TEXT NOT NULL,
			message TEXT,
			elapsed_ms INTEGER NOT NULL,
			status TEXT NOT NULL,
			PRIMARY KEY (request_id, seq)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_status ON results(status)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// Save writes one completed run atomically: request, result, citations,
// and timeline. Saving the same request twice replaces the earlier run.
func (s *Store) Save(ctx context.Context, req types.ResearchRequest, result types.ResearchResult, events []types.TimelineEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO requests (id, question_text, channel, max_iterations, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			question_text=excluded.question_text, channel=excluded.channel,
			max_iterations=excluded.max_iterations, created_at=excluded.created_at`,
		req.ID, req.QuestionText, req.Channel, req.MaxIterations,
		req.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("upserting request: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO results (request_id, answer_text, iterations_used, confidence_score, status, completed_at, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(request_id) DO UPDATE SET
			answer_text=excluded.answer_text, iterations_used=excluded.iterations_used,
			confidence_score=excluded.confidence_score, status=excluded.status,
			completed_at=excluded.completed_at, duration_ms=excluded.duration_ms`,
		result.RequestID, result.AnswerText, result.IterationsUsed,
		result.ConfidenceScore, string(result.Status),
		result.CompletedAt.UTC().Format(time.RFC3339Nano),
		result.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("upserting result: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM citations WHERE request_id = ?`, req.ID); err != nil {
		return fmt.Errorf("clearing citations: %w", err)
	}
	for i, c := range result.Citations {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO citations (request_id, position, url, title, relevance_score) VALUES (?, ?, ?, ?, ?)`,
			req.ID, i+1, c.URL, c.Title, c.RelevanceScore,
		)
		if err != nil {
			return fmt.Errorf("inserting citation %d: %w", i+1, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM timeline_events WHERE request_id = ?`, req.ID); err != nil {
		return fmt.Errorf("clearing timeline: %w", err)
	}
	for _, ev := range events {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO timeline_events (request_id, seq, step, message, elapsed_ms, status) VALUES (?, ?, ?, ?, ?, ?)`,
			req.ID, ev.Seq, ev.Step, ev.Message, ev.Elapsed.Milliseconds(), ev.Status,
		)
		if err != nil {
			return fmt.Errorf("inserting timeline event %d: %w", ev.Seq, err)
		}
	}

	return tx.Commit()
}

// Run is one persisted research run pulled back out of the store.
type Run struct {
	Request types.ResearchRequest `json:"request" yaml:"request"`
	Result  types.ResearchResult  `json:"result" yaml:"result"`
}

// Load returns one run by request ID, or sql.ErrNoRows if absent.
func (s *Store) Load(ctx context.Context, requestID string) (Run, error) {
	var run Run
	var createdAt, completedAt, status string
	var durationMS int64

	err := s.db.QueryRowContext(ctx,
		`SELECT r.id, r.question_text, r.channel, r.max_iterations, r.created_at,
			res.answer_text, res.iterations_used, res.confidence_score, res.status, res.completed_at, res.duration_ms
		 FROM requests r JOIN results res ON res.request_id = r.id
		 WHERE r.id = ?`, requestID,
	).Scan(
		&run.Request.ID, &run.Request.QuestionText, &run.Request.Channel,
		&run.Request.MaxIterations, &createdAt,
		&run.Result.AnswerText, &run.Result.IterationsUsed,
		&run.Result.ConfidenceScore, &status, &completedAt, &durationMS,
	)
	if err != nil {
		return Run{}, err
	}

	run.Result.RequestID = run.Request.ID
	run.Result.Status = types.Status(status)
	run.Result.Duration = time.Duration(durationMS) * time.Millisecond
	run.Request.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.Result.CompletedAt, _ = time.Parse(time.RFC3339Nano, completedAt)

	citations, err := s.loadCitations(ctx, requestID)
	if err != nil {
		return Run{}, err
	}
	run.Result.Citations = citations
	return run, nil
}

func (s *Store) loadCitations(ctx context.Context, requestID string) ([]types.Citation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT url, title, relevance_score FROM citations WHERE request_id = ? ORDER BY position`, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var citations []types.Citation
	for rows.Next() {
		var c types.Citation
		if err := rows.Scan(&c.URL, &c.Title, &c.RelevanceScore); err != nil {
			return nil, fmt.Errorf("scanning citation: %w", err)
		}
		citations = append(citations, c)
	}
	return citations, rows.Err()
}

// Timeline returns the persisted timeline for a request in emit order.
func (s *Store) Timeline(ctx context.Context, requestID string) ([]types.TimelineEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT seq, step, message, elapsed_ms, status FROM timeline_events WHERE request_id = ? ORDER BY seq`, requestID)
	if err != nil {
		return nil, fmt.Errorf("querying timeline: %w", err)
	}
	defer rows.Close()

	var events []types.TimelineEvent
	for rows.Next() {
		var ev types.TimelineEvent
		var elapsedMS int64
		if err := rows.Scan(&ev.Seq, &ev.Step, &ev.Message, &elapsedMS, &ev.Status); err != nil {
			return nil, fmt.Errorf("scanning timeline event: %w", err)
		}
		ev.RequestID = requestID
		ev.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		events = append(events, ev)
	}
	return events, rows.Err()
}

// History lists the most recent runs, newest first.
func (s *Store) History(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id FROM requests r JOIN results res ON res.request_id = r.id
		 ORDER BY res.completed_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning history row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	runs := make([]Run, 0, len(ids))
	for _, id := range ids {
		run, err := s.Load(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// ExportYAML writes the full run history to path as YAML, newest first.
func (s *Store) ExportYAML(ctx context.Context, path string, limit int) error {
	runs, err := s.History(ctx, limit)
	if err != nil {
		return err
	}

	doc := struct {
		ExportedAt time.Time `yaml:"exported_at"`
		Runs       []Run     `yaml:"runs"`
	}{
		ExportedAt: time.Now().UTC(),
		Runs:       runs,
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	return nil
}
