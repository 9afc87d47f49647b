// Package labelstore keeps the frame-to-label assignments of one loaded
// sequence and the in-progress selection of the annotator.
package labelstore

import (
	"errors"
	"fmt"
	"sort"

	"github.com/bdougie/subseqlabel/internal/models"
)

var (
	// ErrOutOfRange is returned when a frame index is outside the loaded sequence
	ErrOutOfRange = errors.New("frame index out of range")

	// ErrUnknownLabel is returned for label ids that are not known categories
	ErrUnknownLabel = errors.New("unknown label")
)

// Selection is the in-progress labeling cursor
type Selection struct {
	Frame int
	Label int
	Color string
}

// Store holds the frame label map for one sequence. It is not safe for
// concurrent use.
type Store struct {
	length     int
	categories map[int]models.Label
	labels     map[int]int
	current    Selection
	changed    bool
}

// New creates a store for a sequence of length frames. An empty categories
// list disables label id validation.
func New(length int, categories []models.Label) *Store {
	if length < 0 {
		length = 0
	}
	known := make(map[int]models.Label, len(categories))
	for _, c := range categories {
		known[c.ID] = c
	}
	return &Store{
		length:     length,
		categories: known,
		labels:     make(map[int]int),
		current:    Selection{Frame: -1, Label: models.UnsetLabel},
	}
}

// Len returns the sequence length
func (s *Store) Len() int {
	return s.length
}

func (s *Store) checkFrame(frame int) error {
	if frame < 0 || frame >= s.length {
		return fmt.Errorf("%w: frame %d not in [0, %d)", ErrOutOfRange, frame, s.length)
	}
	return nil
}

func (s *Store) checkLabel(labelID int) error {
	if labelID == models.UnsetLabel || len(s.categories) == 0 {
		return nil
	}
	if _, ok := s.categories[labelID]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLabel, labelID)
	}
	return nil
}

// SetCurrentLabel selects labelID for the next assignment and marks the
// sequence as changed.
func (s *Store) SetCurrentLabel(labelID int) error {
	if err := s.checkLabel(labelID); err != nil {
		return err
	}
	s.current.Label = labelID
	s.current.Color = s.categories[labelID].Color
	s.changed = true
	return nil
}

// SetCurrentFrame moves the cursor to frame
func (s *Store) SetCurrentFrame(frame int) error {
	if err := s.checkFrame(frame); err != nil {
		return err
	}
	s.current.Frame = frame
	return nil
}

// AssignLabel writes labelID at frame, overwriting any previous label.
// Assigning UnsetLabel removes the frame's label. The map is untouched when
// an error is returned.
func (s *Store) AssignLabel(frame, labelID int) error {
	if err := s.checkFrame(frame); err != nil {
		return err
	}
	if err := s.checkLabel(labelID); err != nil {
		return err
	}
	if labelID == models.UnsetLabel {
		delete(s.labels, frame)
	} else {
		s.labels[frame] = labelID
	}
	s.changed = true
	return nil
}

// Restore replaces the map with pairs and selects labelID, as loaded from an
// earlier save. Nothing is written unless every value is valid, and the store
// is not marked changed.
func (s *Store) Restore(labelID int, pairs []models.TargetFrame) error {
	if err := s.checkLabel(labelID); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := s.checkFrame(p.Frame); err != nil {
			return err
		}
		if err := s.checkLabel(p.Label); err != nil {
			return err
		}
	}
	s.labels = make(map[int]int, len(pairs))
	for _, p := range pairs {
		if p.Label != models.UnsetLabel {
			s.labels[p.Frame] = p.Label
		}
	}
	s.current.Label = labelID
	s.current.Color = s.categories[labelID].Color
	return nil
}

// ClearAll removes every assignment and resets the selected label
func (s *Store) ClearAll() {
	s.labels = make(map[int]int)
	s.current.Label = models.UnsetLabel
	s.current.Color = ""
	s.changed = true
}

// LabelAt returns the label assigned to frame, if any
func (s *Store) LabelAt(frame int) (int, bool) {
	label, ok := s.labels[frame]
	return label, ok
}

// TargetFramesPayload returns the assignments ordered by frame index
func (s *Store) TargetFramesPayload() []models.TargetFrame {
	payload := make([]models.TargetFrame, 0, len(s.labels))
	for frame, label := range s.labels {
		payload = append(payload, models.TargetFrame{Frame: frame, Label: label})
	}
	sort.Slice(payload, func(i, j int) bool {
		return payload[i].Frame < payload[j].Frame
	})
	return payload
}

func (s *Store) CurrentFrame() int    { return s.current.Frame }
func (s *Store) CurrentLabel() int    { return s.current.Label }
func (s *Store) CurrentColor() string { return s.current.Color }

// Changed reports whether the sequence was modified since it was loaded
func (s *Store) Changed() bool {
	return s.changed
}
