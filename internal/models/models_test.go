package models

import (
	"encoding/json"
	"testing"
)

func TestTargetFrameJSON(t *testing.T) {
	frames := []TargetFrame{{Frame: 1, Label: 5}, {Frame: 2, Label: 0}}
	data, err := json.Marshal(frames)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != "[[1,5],[2,0]]" {
		t.Errorf("Marshal = %s, expected [[1,5],[2,0]]", data)
	}

	var decoded []TargetFrame
	if err := json.Unmarshal([]byte("[[4,1],[7,2]]"), &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(decoded) != 2 || decoded[1].Frame != 7 || decoded[1].Label != 2 {
		t.Errorf("Unmarshal = %v", decoded)
	}

	if err := json.Unmarshal([]byte("[[1,2,3]]"), &decoded); err == nil {
		t.Error("expected error for a triple")
	}
}
