package extractor

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestListFrames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame_0003.jpg", "frame_0001.jpg", "frame_0002.JPG", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.jpg"), 0755); err != nil {
		t.Fatal(err)
	}

	frames, err := ListFrames(dir)
	if err != nil {
		t.Fatalf("ListFrames failed: %v", err)
	}
	expected := []string{"frame_0001.jpg", "frame_0002.JPG", "frame_0003.jpg"}
	if !reflect.DeepEqual(frames, expected) {
		t.Errorf("ListFrames() = %v, expected %v", frames, expected)
	}
}

func TestListFramesOrdering(t *testing.T) {
	tests := []struct {
		name     string
		files    []string
		expected []string
		wantErr  bool
	}{
		{
			name:     "png sequence",
			files:    []string{"us_2.png", "us_0.png", "us_1.png"},
			expected: []string{"us_0.png", "us_1.png", "us_2.png"},
		},
		{
			name:     "unpadded numbers",
			files:    []string{"us_0.jpg", "us_1.jpg", "us_2.jpg", "us_10.jpg"},
			expected: []string{"us_0.jpg", "us_1.jpg", "us_2.jpg", "us_10.jpg"},
		},
		{
			name:     "metaimage with raw data files",
			files:    []string{"seq_1.mhd", "seq_1.raw", "seq_0.mhd", "seq_0.raw"},
			expected: []string{"seq_0.mhd", "seq_1.mhd"},
		},
		{
			name:     "underscores in the name",
			files:    []string{"patient_a_11.png", "patient_a_9.png"},
			expected: []string{"patient_a_9.png", "patient_a_11.png"},
		},
		{
			name:     "unnumbered frames after numbered",
			files:    []string{"cover.jpg", "f_3.jpg", "f_1.jpg"},
			expected: []string{"f_1.jpg", "f_3.jpg", "cover.jpg"},
		},
		{
			name:    "mixed formats",
			files:   []string{"us_0.png", "us_1.jpg"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, name := range tt.files {
				if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
					t.Fatal(err)
				}
			}

			frames, err := ListFrames(dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ListFrames() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !reflect.DeepEqual(frames, tt.expected) {
				t.Errorf("ListFrames() = %v, expected %v", frames, tt.expected)
			}
		})
	}
}

func TestListFramesMissingDir(t *testing.T) {
	if _, err := ListFrames(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("expected error for a missing directory")
	}
}

func TestSequenceName(t *testing.T) {
	tests := []struct {
		path     string
		expected string
	}{
		{"/data/videos/echo_01.mp4", "echo_01"},
		{"clip.tar.gz", "clip.tar"},
		{"noext", "noext"},
	}
	for _, tt := range tests {
		if got := SequenceName(tt.path); got != tt.expected {
			t.Errorf("SequenceName(%q) = %q, expected %q", tt.path, got, tt.expected)
		}
	}
}

func TestExtractFramesReusesExisting(t *testing.T) {
	outputDir := t.TempDir()
	video := filepath.Join(t.TempDir(), "echo_01.mp4")
	if err := os.WriteFile(video, []byte("not a real video"), 0644); err != nil {
		t.Fatal(err)
	}
	frameDir := filepath.Join(outputDir, "echo_01")
	if err := os.MkdirAll(frameDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(frameDir, "frame_0001.jpg"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	dir, err := ExtractFrames(context.Background(), nil, video, outputDir, 1)
	if err != nil {
		t.Fatalf("ExtractFrames failed: %v", err)
	}
	if dir != frameDir {
		t.Errorf("ExtractFrames() = %q, expected %q", dir, frameDir)
	}
}

func TestExtractFramesMissingVideo(t *testing.T) {
	_, err := ExtractFrames(context.Background(), nil, filepath.Join(t.TempDir(), "none.mp4"), t.TempDir(), 1)
	if err == nil {
		t.Error("expected error for a missing video")
	}
}
