// Package jobs keeps a history of everything sent to the printer in a SQLite
// database.
package jobs

import (
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schema string

type Status string

const (
	Printed Status = "printed"
	Failed  Status = "failed"
)

type Job struct {
	Id                        int
	Uuid                      uuid.UUID
	CreatedAt                 time.Time
	SourceWidth, SourceHeight int
	Lines, Blocks             int
	FeedLines                 int
	ByteSize                  int
	Transport                 string
	Status                    Status
	Error                     string
}

type JobRepository struct {
	Db *sql.DB
}

// Opens (creating if needed) the job database at path, e.g. "file:app.db"
func Open(path string) (*JobRepository, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("Couldn't open database:\n%w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("Couldn't initialise database:\n%w", err)
	}
	return &JobRepository{Db: db}, nil
}

func (r *JobRepository) Close() error {
	return r.Db.Close()
}

const jobColumns = `id, uuid, created_at, source_width, source_height, lines, blocks,
  feed_lines, byte_size, transport, status, error`

type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner, j *Job) error {
	var uuidString, createdAt string
	if err := s.Scan(&j.Id, &uuidString, &createdAt, &j.SourceWidth, &j.SourceHeight,
		&j.Lines, &j.Blocks, &j.FeedLines, &j.ByteSize, &j.Transport, &j.Status, &j.Error); err != nil {
		return err
	}

	var err error
	if j.Uuid, err = uuid.Parse(uuidString); err != nil {
		return fmt.Errorf("Invalid job UUID %q:\n%w", uuidString, err)
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return fmt.Errorf("Invalid job timestamp %q:\n%w", createdAt, err)
	}
	return nil
}

func (r *JobRepository) Get(u uuid.UUID) (*Job, error) {
	row := r.Db.QueryRow(`
    SELECT `+jobColumns+`
    FROM print_job
    WHERE uuid = ?`, u.String())

	var j Job
	if err := scanJob(row, &j); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		} else {
			return nil, fmt.Errorf("Failed to read job:\n%w", err)
		}
	}

	return &j, nil
}

// Lists every job, newest first
func (r *JobRepository) List() ([]Job, error) {
	return QueryAndScanRows(r.Db, `
    SELECT `+jobColumns+`
    FROM print_job
    ORDER BY id DESC`, func(rows *sql.Rows, j *Job) error {
		return scanJob(rows, j)
	})
}

// Inserts the job, filling in its Id, and its Uuid and CreatedAt if unset
func (r *JobRepository) Create(tx *sql.Tx, j *Job) error {
	if j.Uuid == uuid.Nil {
		j.Uuid = uuid.New()
	}
	if j.CreatedAt.IsZero() {
		j.CreatedAt = time.Now()
	}
	j.CreatedAt = j.CreatedAt.UTC()

	row := tx.QueryRow(`
    INSERT INTO print_job(uuid, created_at, source_width, source_height, lines, blocks,
      feed_lines, byte_size, transport, status, error)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    RETURNING id`,
		j.Uuid.String(), j.CreatedAt.Format(time.RFC3339Nano), j.SourceWidth, j.SourceHeight,
		j.Lines, j.Blocks, j.FeedLines, j.ByteSize, j.Transport, string(j.Status), j.Error)
	if err := row.Scan(&j.Id); err != nil {
		return fmt.Errorf("Failed to insert into print_job:\n%w", err)
	}

	return nil
}

func QueryAndScanRows[T any](db *sql.DB, query string, scanRow func(*sql.Rows, *T) error, args ...any) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("Query execution failed:\n%w", err)
	}
	defer rows.Close()

	results := []T{}
	for rows.Next() {
		var result T
		if err := scanRow(rows, &result); err != nil {
			return nil, fmt.Errorf("row scanning failed:\n%w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Error iterating rows:\n%w", err)
	}

	return results, nil
}

// Run operations in a transaction, committing afterward, or rolling back if the
// passed function returns an error
func (r *JobRepository) Transact(f func(*sql.Tx) error) error {
	tx, err := r.Db.Begin()
	if err != nil {
		return err
	}

	err = f(tx)
	if err != nil {
		err2 := tx.Rollback()
		if err2 != nil {
			return fmt.Errorf("Failed to roll back transaction: %w\n\nAfter handling: %v", err2, err)
		}
		return err
	} else {
		err2 := tx.Commit()
		if err2 != nil {
			return fmt.Errorf("Failed to commit transaction:\n%w", err2)
		}
		return nil
	}
}
