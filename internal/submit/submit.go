package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/go-querystring/query"

	"github.com/bdougie/subseqlabel/internal/models"
)

// DefaultSavePath is where the annotation server accepts subsequence labels
const DefaultSavePath = "/subsequence_classification/save/"

const queueSize = 16

// work is one queued save request
type work struct {
	id         string
	annotation models.Annotation
	ctx        context.Context
	result     chan<- models.SubmitResult
}

// Client posts annotations to the save endpoint from a small worker pool
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	numWorkers int
	workQueue  chan work
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewClient creates a client for endpoint with numWorkers senders
func NewClient(endpoint string, httpClient *http.Client, numWorkers int, logger *slog.Logger) *Client {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		endpoint:   endpoint,
		httpClient: httpClient,
		logger:     logger,
		numWorkers: numWorkers,
		workQueue:  make(chan work, queueSize),
	}
	c.startWorkers()
	return c
}

// Endpoint joins baseURL and savePath
func Endpoint(baseURL, savePath string) string {
	if savePath == "" {
		savePath = DefaultSavePath
	}
	return strings.TrimSuffix(baseURL, "/") + "/" + strings.TrimPrefix(savePath, "/")
}

func (c *Client) startWorkers() {
	for i := 0; i < c.numWorkers; i++ {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			for w := range c.workQueue {
				w.result <- c.post(w.ctx, w.id, w.annotation)
				close(w.result)
			}
		}()
	}
}

// Submit queues a save and returns immediately. The channel receives exactly
// one result. A full queue is reported as an error result. Submit must not
// be called after Close.
func (c *Client) Submit(ctx context.Context, id string, annotation models.Annotation) <-chan models.SubmitResult {
	resultChan := make(chan models.SubmitResult, 1)

	select {
	case c.workQueue <- work{id: id, annotation: annotation, ctx: ctx, result: resultChan}:
	default:
		resultChan <- models.SubmitResult{
			SubmissionID: id,
			Err:          fmt.Errorf("save queue is full, try again later"),
		}
		close(resultChan)
	}

	return resultChan
}

// Encode builds the form body of a save request
func Encode(annotation models.Annotation) (url.Values, error) {
	values, err := query.Values(annotation)
	if err != nil {
		return nil, fmt.Errorf("failed to encode annotation: %w", err)
	}

	targetFrames := annotation.TargetFrames
	if targetFrames == nil {
		targetFrames = []models.TargetFrame{}
	}
	encoded, err := json.Marshal(targetFrames)
	if err != nil {
		return nil, fmt.Errorf("failed to encode target frames: %w", err)
	}
	values.Set("target_frames", string(encoded))
	return values, nil
}

func (c *Client) post(ctx context.Context, id string, annotation models.Annotation) models.SubmitResult {
	result := models.SubmitResult{SubmissionID: id}

	form, err := Encode(annotation)
	if err != nil {
		result.Err = err
		return result
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		result.Err = fmt.Errorf("failed to build save request: %w", err)
		return result
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("posting annotation", "submission", id, "image_id", annotation.ImageID, "frames", len(annotation.TargetFrames))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		result.Err = fmt.Errorf("save request failed: %w", err)
		return result
	}
	defer resp.Body.Close()

	result.StatusCode = resp.StatusCode
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = fmt.Errorf("failed to read save response: %w", err)
		return result
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		result.Err = fmt.Errorf("save endpoint returned %s", resp.Status)
		return result
	}
	if !json.Valid(bytes.TrimSpace(body)) {
		result.Err = fmt.Errorf("save endpoint returned a non-JSON body")
		return result
	}

	result.Body = json.RawMessage(body)
	return result
}

// Close stops accepting work and waits for in-flight saves
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.workQueue)
	})
	c.wg.Wait()
}
