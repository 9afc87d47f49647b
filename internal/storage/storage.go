package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/subseqlabel/internal/models"
)

const batchSize = 10 // Number of submissions to batch write

const journalFile = "submissions.json"

// Journal keeps a local record of every save request sent for a sequence
type Journal interface {
	// Record adds a single submission
	Record(ctx context.Context, submission models.Submission) error

	// Latest returns the most recent submission, or nil if there is none
	Latest(ctx context.Context) (*models.Submission, error)

	// Flush ensures all pending submissions are saved
	Flush() error
}

var (
	_ Journal = (*FileJournal)(nil)
	_ Journal = (*PostgresJournal)(nil)
)

// FileJournal appends submissions to a JSON file under the output directory
type FileJournal struct {
	pending  []models.Submission
	mu       sync.Mutex
	dir      string
	sequence string
}

// NewFileJournal creates a journal at outputDir/sequence/submissions.json
func NewFileJournal(outputDir, sequence string) *FileJournal {
	return &FileJournal{
		pending:  []models.Submission{},
		dir:      outputDir,
		sequence: sequence,
	}
}

func (j *FileJournal) path() string {
	return filepath.Join(j.dir, j.sequence, journalFile)
}

// Record adds a submission to the batch and flushes if the batch is full
func (j *FileJournal) Record(ctx context.Context, submission models.Submission) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.pending = append(j.pending, submission)

	if len(j.pending) >= batchSize {
		if err := j.flush(); err != nil {
			return err
		}
	}
	return nil
}

// Latest returns the newest submission, pending ones included
func (j *FileJournal) Latest(ctx context.Context) (*models.Submission, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if n := len(j.pending); n > 0 {
		latest := j.pending[n-1]
		return &latest, nil
	}

	existing, err := j.read()
	if err != nil {
		return nil, err
	}
	if len(existing) == 0 {
		return nil, nil
	}
	latest := existing[len(existing)-1]
	return &latest, nil
}

// Flush writes all pending submissions to disk
func (j *FileJournal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flush()
}

func (j *FileJournal) read() ([]models.Submission, error) {
	var existing []models.Submission
	data, err := os.ReadFile(j.path())
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	if err := json.Unmarshal(data, &existing); err != nil {
		return nil, fmt.Errorf("failed to unmarshal journal: %w", err)
	}
	return existing, nil
}

func (j *FileJournal) flush() error {
	if len(j.pending) == 0 {
		return nil
	}

	existing, err := j.read()
	if err != nil {
		return err
	}
	all := append(existing, j.pending...)

	dir := filepath.Dir(j.path())
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory for journal: %w", err)
	}

	file, err := os.Create(j.path())
	if err != nil {
		return fmt.Errorf("failed to create journal file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(all); err != nil {
		return fmt.Errorf("failed to encode journal: %w", err)
	}

	j.pending = nil
	return nil
}
