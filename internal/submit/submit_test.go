package submit

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/bdougie/subseqlabel/internal/models"
)

func TestEncode(t *testing.T) {
	annotation := models.Annotation{
		ImageID:      12,
		TaskID:       3,
		LabelID:      models.UnsetLabel,
		Rejected:     true,
		Comments:     "blurry start",
		TargetFrames: []models.TargetFrame{{Frame: 0, Label: 1}, {Frame: 4, Label: 1}},
	}

	values, err := Encode(annotation)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	expected := map[string]string{
		"image_id":      "12",
		"task_id":       "3",
		"label_id":      "-1",
		"rejected":      "true",
		"comments":      "blurry start",
		"target_frames": "[[0,1],[4,1]]",
	}
	for key, want := range expected {
		if got := values.Get(key); got != want {
			t.Errorf("%s = %q, expected %q", key, got, want)
		}
	}
	if _, ok := values["quality"]; ok {
		t.Error("empty quality should be omitted")
	}
}

func TestEncodeEmptyTargetFrames(t *testing.T) {
	values, err := Encode(models.Annotation{Quality: "good"})
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if got := values.Get("target_frames"); got != "[]" {
		t.Errorf("target_frames = %q, expected []", got)
	}
	if got := values.Get("rejected"); got != "false" {
		t.Errorf("rejected = %q, expected false", got)
	}
	if got := values.Get("quality"); got != "good" {
		t.Errorf("quality = %q, expected good", got)
	}
}

func TestEndpoint(t *testing.T) {
	tests := []struct {
		base, path, expected string
	}{
		{"http://localhost:8000", "", "http://localhost:8000/subsequence_classification/save/"},
		{"http://localhost:8000/", "/custom/save/", "http://localhost:8000/custom/save/"},
		{"http://host", "save", "http://host/save"},
	}
	for _, tt := range tests {
		if got := Endpoint(tt.base, tt.path); got != tt.expected {
			t.Errorf("Endpoint(%q, %q) = %q, expected %q", tt.base, tt.path, got, tt.expected)
		}
	}
}

func TestSubmitPostsForm(t *testing.T) {
	var mu sync.Mutex
	var received url.Values

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, expected POST", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		values, err := url.ParseQuery(string(body))
		if err != nil {
			t.Errorf("bad form body: %v", err)
		}
		mu.Lock()
		received = values
		mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"success": "true"}`)
	}))
	defer server.Close()

	client := NewClient(Endpoint(server.URL, ""), server.Client(), 2, nil)
	defer client.Close()

	annotation := models.Annotation{
		ImageID:      7,
		TaskID:       1,
		LabelID:      2,
		TargetFrames: []models.TargetFrame{{Frame: 1, Label: 2}},
	}
	result := <-client.Submit(context.Background(), "sub-1", annotation)
	if result.Err != nil {
		t.Fatalf("Submit failed: %v", result.Err)
	}
	if result.SubmissionID != "sub-1" {
		t.Errorf("SubmissionID = %q, expected sub-1", result.SubmissionID)
	}
	if result.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, expected 200", result.StatusCode)
	}
	if !strings.Contains(string(result.Body), "success") {
		t.Errorf("Body = %s", result.Body)
	}

	mu.Lock()
	defer mu.Unlock()
	if received.Get("target_frames") != "[[1,2]]" {
		t.Errorf("server saw target_frames = %q", received.Get("target_frames"))
	}
	if received.Get("image_id") != "7" {
		t.Errorf("server saw image_id = %q", received.Get("image_id"))
	}
}

func TestSubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"server error", http.StatusInternalServerError, `{"error": "boom"}`, true},
		{"non json body", http.StatusOK, "<html>ok</html>", true},
		{"json body", http.StatusOK, `{"success": "true"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}))
			defer server.Close()

			client := NewClient(server.URL, server.Client(), 1, nil)
			defer client.Close()

			result := <-client.Submit(context.Background(), "id", models.Annotation{})
			if (result.Err != nil) != tt.wantErr {
				t.Errorf("Err = %v, wantErr %v", result.Err, tt.wantErr)
			}
			if result.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, expected %d", result.StatusCode, tt.status)
			}
		})
	}
}

func TestSubmitQueueFull(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		io.WriteString(w, "{}")
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client(), 1, nil)

	// one request held by the worker plus a full queue
	var results []<-chan models.SubmitResult
	for i := 0; i < queueSize+2; i++ {
		results = append(results, client.Submit(context.Background(), "id", models.Annotation{}))
	}

	last := <-results[len(results)-1]
	if last.Err == nil || !strings.Contains(last.Err.Error(), "queue is full") {
		t.Errorf("expected queue full error, got %v", last.Err)
	}

	close(release)
	for _, ch := range results[:len(results)-1] {
		<-ch
	}
	client.Close()
}
