package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bdougie/subseqlabel/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ConnString builds a postgres:// URL from the config
func (c PostgresConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
	)
}

// PostgresJournal records submissions in PostgreSQL
type PostgresJournal struct {
	pool       *pgxpool.Pool
	sequenceID int
	sequence   string
}

// NewPostgresJournal connects and registers the sequence
func NewPostgresJournal(ctx context.Context, connString, sequence string) (*PostgresJournal, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	journal := &PostgresJournal{
		pool:     pool,
		sequence: sequence,
	}

	sequenceID, err := journal.getOrCreateSequence(ctx, sequence)
	if err != nil {
		pool.Close()
		return nil, err
	}
	journal.sequenceID = sequenceID

	return journal, nil
}

// Close closes the database connection
func (j *PostgresJournal) Close() {
	if j.pool != nil {
		j.pool.Close()
	}
}

func (j *PostgresJournal) getOrCreateSequence(ctx context.Context, name string) (int, error) {
	var id int
	err := j.pool.QueryRow(ctx,
		"SELECT id FROM sequences WHERE name = $1",
		name).Scan(&id)

	if err == nil {
		return id, nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("error checking for existing sequence: %w", err)
	}

	err = j.pool.QueryRow(ctx,
		"INSERT INTO sequences (name, created_at) VALUES ($1, $2) RETURNING id",
		name, time.Now()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create sequence entry: %w", err)
	}

	return id, nil
}

// Record stores the submission and its target frames in one transaction
func (j *PostgresJournal) Record(ctx context.Context, submission models.Submission) error {
	tx, err := j.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	a := submission.Annotation
	_, err = tx.Exec(ctx,
		`INSERT INTO submissions
        (id, sequence_id, image_id, task_id, label_id, quality, rejected, comments, submitted_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		submission.ID, j.sequenceID, a.ImageID, a.TaskID, a.LabelID, a.Quality, a.Rejected, a.Comments, submission.SubmittedAt)
	if err != nil {
		return fmt.Errorf("failed to store submission: %w", err)
	}

	batch := &pgx.Batch{}
	for _, tf := range a.TargetFrames {
		batch.Queue(
			"INSERT INTO target_frames (submission_id, frame_number, label_id) VALUES ($1, $2, $3)",
			submission.ID, tf.Frame, tf.Label)
	}
	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to store target frames: %w", err)
		}
	}

	return tx.Commit(ctx)
}

// Latest returns the newest submission of the sequence
func (j *PostgresJournal) Latest(ctx context.Context) (*models.Submission, error) {
	s := models.Submission{Sequence: j.sequence}
	a := &s.Annotation

	err := j.pool.QueryRow(ctx,
		`SELECT id, image_id, task_id, label_id, quality, rejected, comments, submitted_at
        FROM submissions
        WHERE sequence_id = $1
        ORDER BY submitted_at DESC
        LIMIT 1`,
		j.sequenceID).Scan(&s.ID, &a.ImageID, &a.TaskID, &a.LabelID, &a.Quality, &a.Rejected, &a.Comments, &s.SubmittedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest submission: %w", err)
	}

	rows, err := j.pool.Query(ctx,
		"SELECT frame_number, label_id FROM target_frames WHERE submission_id = $1 ORDER BY frame_number",
		s.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load target frames: %w", err)
	}
	defer rows.Close()

	a.TargetFrames = []models.TargetFrame{}
	for rows.Next() {
		var tf models.TargetFrame
		if err := rows.Scan(&tf.Frame, &tf.Label); err != nil {
			return nil, fmt.Errorf("failed to scan target frame: %w", err)
		}
		a.TargetFrames = append(a.TargetFrames, tf)
	}

	return &s, rows.Err()
}

// Flush implements the Journal interface - no-op for Postgres as we save immediately
func (j *PostgresJournal) Flush() error {
	return nil
}

// InitSchema creates the database schema if it doesn't exist
func InitSchema(ctx context.Context, connString string) error {
	conn, err := pgx.Connect(ctx, connString)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	_, err = conn.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS sequences (
            id SERIAL PRIMARY KEY,
            name VARCHAR(255) NOT NULL,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(name)
        );

        CREATE TABLE IF NOT EXISTS submissions (
            id VARCHAR(36) PRIMARY KEY,
            sequence_id INTEGER REFERENCES sequences(id) ON DELETE CASCADE,
            image_id INTEGER NOT NULL,
            task_id INTEGER NOT NULL,
            label_id INTEGER NOT NULL,
            quality VARCHAR(64) NOT NULL DEFAULT '',
            rejected BOOLEAN NOT NULL DEFAULT FALSE,
            comments TEXT NOT NULL DEFAULT '',
            submitted_at TIMESTAMPTZ NOT NULL
        );

        CREATE TABLE IF NOT EXISTS target_frames (
            submission_id VARCHAR(36) REFERENCES submissions(id) ON DELETE CASCADE,
            frame_number INTEGER NOT NULL,
            label_id INTEGER NOT NULL,
            PRIMARY KEY(submission_id, frame_number)
        );
    `)
	if err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}

	_, err = conn.Exec(ctx, `
        CREATE INDEX IF NOT EXISTS idx_submissions_sequence_id ON submissions(sequence_id, submitted_at);
    `)
	if err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}

	return nil
}
