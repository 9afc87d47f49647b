package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// UnsetLabel marks "no label chosen"
const UnsetLabel = -1

// Label is a classification category that can be assigned to frames
type Label struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// TargetFrame is one (frame, label) assignment of a sequence
type TargetFrame struct {
	Frame int
	Label int
}

// MarshalJSON encodes the pair as [frame, label]
func (t TargetFrame) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{t.Frame, t.Label})
}

// UnmarshalJSON decodes a [frame, label] pair
func (t *TargetFrame) UnmarshalJSON(data []byte) error {
	var pair []int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("target frame must have 2 elements, got %d", len(pair))
	}
	t.Frame, t.Label = pair[0], pair[1]
	return nil
}

// Annotation is the save request for one labeled sequence.
// TargetFrames is encoded separately as a JSON string field.
type Annotation struct {
	ImageID      int           `url:"image_id" json:"image_id"`
	TaskID       int           `url:"task_id" json:"task_id"`
	LabelID      int           `url:"label_id" json:"label_id"`
	Quality      string        `url:"quality,omitempty" json:"quality,omitempty"`
	Rejected     bool          `url:"rejected" json:"rejected"`
	Comments     string        `url:"comments" json:"comments"`
	TargetFrames []TargetFrame `url:"-" json:"target_frames"`
}

// Submission is a journaled save request
type Submission struct {
	ID          string     `json:"id"`
	Sequence    string     `json:"sequence"`
	Annotation  Annotation `json:"annotation"`
	SubmittedAt time.Time  `json:"submitted_at"`
}

// SubmitResult is what the save endpoint answered for one submission
type SubmitResult struct {
	SubmissionID string
	StatusCode   int
	Body         json.RawMessage
	Err          error
}
