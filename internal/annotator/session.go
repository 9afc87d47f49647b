// Package annotator drives a label store from user events and hands save
// requests to the submitter.
package annotator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bdougie/subseqlabel/internal/labelstore"
	"github.com/bdougie/subseqlabel/internal/models"
	"github.com/bdougie/subseqlabel/internal/storage"
)

// Submitter sends a save request without waiting for it
type Submitter interface {
	Submit(ctx context.Context, id string, annotation models.Annotation) <-chan models.SubmitResult
}

// Session is the page controller for one loaded sequence
type Session struct {
	ImageID  int
	TaskID   int
	Sequence string

	store     *labelstore.Store
	submitter Submitter
	journal   storage.Journal
	logger    *slog.Logger

	quality  string
	rejected bool
	comments string

	pending []<-chan models.SubmitResult
}

// NewSession wires a store to a submitter. journal may be nil.
func NewSession(imageID, taskID int, sequence string, store *labelstore.Store, submitter Submitter, journal storage.Journal, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		ImageID:   imageID,
		TaskID:    taskID,
		Sequence:  sequence,
		store:     store,
		submitter: submitter,
		journal:   journal,
		logger:    logger.With("sequence", sequence),
	}
}

// Store returns the session's label store
func (s *Session) Store() *labelstore.Store {
	return s.store
}

// Dispatch applies one event. Store errors are returned unchanged so callers
// can match ErrOutOfRange and ErrUnknownLabel.
func (s *Session) Dispatch(ctx context.Context, ev Event) error {
	switch ev.Kind {
	case EventClear:
		s.store.ClearAll()
		s.quality = ""
	case EventFrame:
		return s.store.SetCurrentFrame(ev.Value)
	case EventLabel:
		return s.applyLabel(ev.Value)
	case EventUnlabel:
		if frame := s.store.CurrentFrame(); frame >= 0 {
			return s.store.AssignLabel(frame, models.UnsetLabel)
		}
	case EventQuality:
		s.quality = ev.Text
	case EventComment:
		s.comments = ev.Text
	case EventReject:
		s.rejected = true
	case EventAccept:
		s.rejected = false
	case EventSave:
		_, err := s.Save(ctx)
		return err
	default:
		return fmt.Errorf("unhandled event '%s'", ev.Kind)
	}
	return nil
}

// Replay dispatches events in order. Events naming a frame outside the
// sequence or an unknown label are logged and skipped; any other error stops
// the replay. It returns the number of skipped events.
func (s *Session) Replay(ctx context.Context, events []Event) (int, error) {
	skipped := 0
	for i, ev := range events {
		err := s.Dispatch(ctx, ev)
		switch {
		case err == nil:
		case errors.Is(err, labelstore.ErrOutOfRange), errors.Is(err, labelstore.ErrUnknownLabel):
			skipped++
			s.logger.Warn("ignored event", "index", i, "event", ev.Kind, "value", ev.Value, "err", err)
		default:
			return skipped, fmt.Errorf("event %d (%s): %w", i, ev.Kind, err)
		}
	}
	return skipped, nil
}

func (s *Session) applyLabel(labelID int) error {
	if err := s.store.SetCurrentLabel(labelID); err != nil {
		return err
	}
	frame := s.store.CurrentFrame()
	if frame < 0 {
		return nil
	}
	return s.store.AssignLabel(frame, labelID)
}

// Annotation builds the save request from the current state
func (s *Session) Annotation() models.Annotation {
	return models.Annotation{
		ImageID:      s.ImageID,
		TaskID:       s.TaskID,
		LabelID:      s.store.CurrentLabel(),
		Quality:      s.quality,
		Rejected:     s.rejected,
		Comments:     s.comments,
		TargetFrames: s.store.TargetFramesPayload(),
	}
}

// Save journals the current annotation and submits it. It does not wait for
// the endpoint; results are collected by Wait.
func (s *Session) Save(ctx context.Context) (string, error) {
	submission := models.Submission{
		ID:          uuid.NewString(),
		Sequence:    s.Sequence,
		Annotation:  s.Annotation(),
		SubmittedAt: time.Now().UTC(),
	}

	if s.journal != nil {
		if err := s.journal.Record(ctx, submission); err != nil {
			return "", fmt.Errorf("failed to journal submission: %w", err)
		}
	}

	s.logger.Info("saving annotation",
		"submission", submission.ID,
		"label", submission.Annotation.LabelID,
		"frames", len(submission.Annotation.TargetFrames),
		"rejected", submission.Annotation.Rejected)

	s.pending = append(s.pending, s.submitter.Submit(ctx, submission.ID, submission.Annotation))
	return submission.ID, nil
}

// Wait blocks until every outstanding save has answered and returns the
// results in submission order.
func (s *Session) Wait() []models.SubmitResult {
	results := make([]models.SubmitResult, 0, len(s.pending))
	for _, ch := range s.pending {
		results = append(results, <-ch)
	}
	s.pending = nil
	return results
}

// Resume restores the target frames, selected label and form fields of the
// latest journaled submission.
// It reports whether anything was restored.
func (s *Session) Resume(ctx context.Context) (bool, error) {
	if s.journal == nil {
		return false, nil
	}
	latest, err := s.journal.Latest(ctx)
	if err != nil {
		return false, err
	}
	if latest == nil {
		return false, nil
	}
	if err := s.store.Restore(latest.Annotation.LabelID, latest.Annotation.TargetFrames); err != nil {
		return false, fmt.Errorf("failed to restore submission %s: %w", latest.ID, err)
	}
	s.quality = latest.Annotation.Quality
	s.rejected = latest.Annotation.Rejected
	s.comments = latest.Annotation.Comments
	s.logger.Info("resumed from journal", "submission", latest.ID, "label", latest.Annotation.LabelID, "frames", len(latest.Annotation.TargetFrames))
	return true, nil
}
