// Package store records the classification runs of collections in a sqlite database.
package store

import (
	"database/sql"
	_ "embed"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

//go:embed schema.sql
var schema string

// Run is one classification of a collection.
type Run struct {
	ID            string
	Collection    string
	StartedAt     time.Time
	FinishedAt    time.Time
	Finished      bool
	EstimatedSize float64
	SampleSize    int
	SummaryPath   string
}

// Failure is a probe, document or size estimate that failed during a run.
type Failure struct {
	Stage     string
	Target    string
	Message   string
	CreatedAt time.Time
}

// Store handles database operations.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "open database %s", path)
	}
	// sqlite allows one writer; a single connection also keeps an in-memory database alive.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init schema")
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun records the start of a run against a collection.
func (s *Store) StartRun(collection string) (*Run, error) {
	r := &Run{
		ID:         uuid.New().String(),
		Collection: collection,
		StartedAt:  time.Now(),
	}
	_, err := s.db.Exec(
		"INSERT INTO runs (id, collection, started_at) VALUES (?, ?, ?)",
		r.ID, r.Collection, r.StartedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert run")
	}
	return r, nil
}

// FinishRun records the outcome of a run.
func (s *Store) FinishRun(id string, estimatedSize float64, sampleSize int, summaryPath string) error {
	res, err := s.db.Exec(
		"UPDATE runs SET finished_at = ?, estimated_size = ?, sample_size = ?, summary_path = ? WHERE id = ?",
		time.Now(), estimatedSize, sampleSize, summaryPath, id,
	)
	if err != nil {
		return errors.Wrap(err, "update run")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.Errorf("no run %s", id)
	}
	return nil
}

// AddCategories records the categories a run classified its collection into.
func (s *Store) AddCategories(id string, categories []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return errors.Wrap(err, "begin")
	}
	defer tx.Rollback()

	var offset int
	if err := tx.QueryRow("SELECT COUNT(*) FROM classifications WHERE run_id = ?", id).Scan(&offset); err != nil {
		return errors.Wrap(err, "count categories")
	}
	for i, category := range categories {
		_, err := tx.Exec(
			"INSERT INTO classifications (run_id, position, category) VALUES (?, ?, ?)",
			id, offset+i, category,
		)
		if err != nil {
			return errors.Wrapf(err, "insert category %s", category)
		}
	}
	return errors.Wrap(tx.Commit(), "commit categories")
}

// AddFailure records a failure during a run. stage is one of "classification", "document" or "size".
func (s *Store) AddFailure(id, stage, target string, failure error) error {
	_, err := s.db.Exec(
		"INSERT INTO failures (run_id, stage, target, message, created_at) VALUES (?, ?, ?, ?, ?)",
		id, stage, target, failure.Error(), time.Now(),
	)
	return errors.Wrap(err, "insert failure")
}

const runColumns = "id, collection, started_at, finished_at, estimated_size, sample_size, summary_path"

func scanRun(row interface{ Scan(...interface{}) error }) (*Run, error) {
	var (
		r        Run
		finished sql.NullTime
	)
	if err := row.Scan(&r.ID, &r.Collection, &r.StartedAt, &finished, &r.EstimatedSize, &r.SampleSize, &r.SummaryPath); err != nil {
		return nil, err
	}
	r.Finished = finished.Valid
	r.FinishedAt = finished.Time
	return &r, nil
}

// Run retrieves a run by id.
func (s *Store) Run(id string) (*Run, error) {
	r, err := scanRun(s.db.QueryRow("SELECT "+runColumns+" FROM runs WHERE id = ?", id))
	if err != nil {
		return nil, errors.Wrapf(err, "get run %s", id)
	}
	return r, nil
}

// Runs lists the runs against a collection, most recent first.
func (s *Store) Runs(collection string) ([]Run, error) {
	rows, err := s.db.Query("SELECT "+runColumns+" FROM runs WHERE collection = ? ORDER BY started_at DESC", collection)
	if err != nil {
		return nil, errors.Wrap(err, "list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		runs = append(runs, *r)
	}
	return runs, errors.Wrap(rows.Err(), "list runs")
}

// Categories lists the categories of a run in the order they were recorded.
func (s *Store) Categories(id string) ([]string, error) {
	rows, err := s.db.Query("SELECT category FROM classifications WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return nil, errors.Wrap(err, "list categories")
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, errors.Wrap(err, "scan category")
		}
		categories = append(categories, c)
	}
	return categories, errors.Wrap(rows.Err(), "list categories")
}

// Failures lists the failures of a run in the order they were recorded.
func (s *Store) Failures(id string) ([]Failure, error) {
	rows, err := s.db.Query("SELECT stage, target, message, created_at FROM failures WHERE run_id = ? ORDER BY rowid", id)
	if err != nil {
		return nil, errors.Wrap(err, "list failures")
	}
	defer rows.Close()

	var failures []Failure
	for rows.Next() {
		var f Failure
		if err := rows.Scan(&f.Stage, &f.Target, &f.Message, &f.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan failure")
		}
		failures = append(failures, f)
	}
	return failures, errors.Wrap(rows.Err(), "list failures")
}
