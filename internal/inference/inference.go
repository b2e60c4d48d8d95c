// Path: internal/inference/inference.go
package inference

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"top-loras/internal/cache"
	"top-loras/internal/config"
)

// PlaceholderImage is a 1x1 transparent PNG returned by mock jobs.
const PlaceholderImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGNgYAAAAAMAAWgmWQ0AAAAASUVORK5CYII="

const (
	statusSucceeded = "succeeded"
	maxBackoff      = 3 * time.Second
)

// ErrUnauthorized is returned by the remote endpoint on HTTP 401.
var ErrUnauthorized = errors.New("inference endpoint returned 401 unauthorized")

// Params are the generation inputs for one job.
type Params struct {
	Task           string  `json:"task"`
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Size           string  `json:"size,omitempty"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Seed           int64   `json:"seed"`
	// JobID, when set, replaces the generated id.
	JobID string `json:"-"`
}

// DefaultParams returns the inputs used when the caller sets none.
func DefaultParams(task string) Params {
	return Params{Task: task, Steps: 20, Guidance: 7.5}
}

// Meta identifies a job.
type Meta struct {
	JobID     string `json:"job_id"`
	Task      string `json:"task"`
	ModelID   string `json:"model_id"`
	CreatedAt string `json:"created_at"`
}

// Job is what Submit records and returns.
type Job struct {
	Meta     Meta            `json:"meta"`
	Status   string          `json:"status"`
	Result   json.RawMessage `json:"result"`
	Remote   bool            `json:"remote"`
	Error    string          `json:"error,omitempty"`
	FilePath string          `json:"file_path,omitempty"`
}

type remoteRequest struct {
	Model  string       `json:"model"`
	Task   string       `json:"task"`
	Inputs remoteInputs `json:"inputs"`
}

type remoteInputs struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Size           string  `json:"size,omitempty"`
	Steps          int     `json:"steps"`
	Guidance       float64 `json:"guidance"`
	Seed           int64   `json:"seed"`
}

type mockResult struct {
	Image   string `json:"image"`
	ModelID string `json:"model_id"`
	Prompt  string `json:"prompt"`
	Seed    int64  `json:"seed"`
}

// Client submits generation jobs to a remote endpoint, falling back to a
// local mock result.
type Client struct {
	endpoint  string
	outputDir string
	retries   int
	backoff   time.Duration
	client    *http.Client
	now       func() time.Time
}

// NewClient creates a client from the inference configuration.
func NewClient(cfg config.InferenceConfig) *Client {
	retries := cfg.Retries
	if retries <= 0 {
		retries = 1
	}
	return &Client{
		endpoint:  cfg.Endpoint,
		outputDir: cfg.OutputDir,
		retries:   retries,
		backoff:   time.Second,
		client:    &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		now:       time.Now,
	}
}

// WithBackoff sets the base delay between remote attempts; attempt n waits
// n*d, capped at three seconds.
func (c *Client) WithBackoff(d time.Duration) *Client {
	c.backoff = d
	return c
}

// NewJobID returns a short random job id.
func NewJobID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// Submit runs one job. With a token it tries the remote endpoint; without
// one, or when every remote attempt fails, the job gets a mock result. The
// job is written to <output_dir>/<task>/<job_id>.json. Only a failure to
// write that file is returned as an error.
func (c *Client) Submit(ctx context.Context, modelID string, params Params, token string) (*Job, error) {
	// Task and job id become path segments under the output directory.
	task := cache.SanitizeFilename(params.Task)
	if params.Task == "" || task == "." || task == ".." {
		task = "unknown"
	}

	jobID := NewJobID()
	if params.JobID != "" {
		jobID = cache.SanitizeFilename(params.JobID)
	}

	job := &Job{
		Meta: Meta{
			JobID:     jobID,
			Task:      task,
			ModelID:   modelID,
			CreatedAt: c.now().UTC().Format("2006-01-02T15:04:05Z"),
		},
		Status: statusSucceeded,
	}
	logger := log.WithFields(log.Fields{"job": jobID, "model": modelID})

	if token != "" {
		status, result, err := c.remote(ctx, modelID, params, token)
		if err == nil {
			job.Status, job.Result, job.Remote = status, result, true
		} else {
			logger.Warnf("Remote inference failed, using mock result: %v", err)
			job.Error = err.Error()
		}
	}
	if !job.Remote {
		job.Result = mock(modelID, params)
	}

	path, err := c.write(task, job)
	if err != nil {
		return nil, err
	}
	job.FilePath = path
	logger.Infof("Job %s recorded at %s", job.Status, path)
	return job, nil
}

func (c *Client) remote(ctx context.Context, modelID string, params Params, token string) (string, json.RawMessage, error) {
	body, err := json.Marshal(remoteRequest{
		Model: modelID,
		Task:  params.Task,
		Inputs: remoteInputs{
			Prompt:         params.Prompt,
			NegativePrompt: params.NegativePrompt,
			Size:           params.Size,
			Steps:          params.Steps,
			Guidance:       params.Guidance,
			Seed:           params.Seed,
		},
	})
	if err != nil {
		return "", nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		status, result, err := c.post(ctx, body, token)
		if err == nil {
			return status, result, nil
		}
		lastErr = err
		if attempt == c.retries {
			break
		}
		wait := time.Duration(attempt) * c.backoff
		if wait > maxBackoff {
			wait = maxBackoff
		}
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return "", nil, lastErr
}

func (c *Client) post(ctx context.Context, body []byte, token string) (string, json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return "", nil, ErrUnauthorized
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", nil, fmt.Errorf("inference endpoint returned status %d", resp.StatusCode)
	}
	if !gjson.ValidBytes(raw) {
		return "", nil, errors.New("inference endpoint returned invalid JSON")
	}

	doc := gjson.ParseBytes(raw)
	status := doc.Get("status").String()
	if status == "" {
		status = statusSucceeded
	}
	result := doc.Get("result")
	if !result.Exists() || result.Type == gjson.Null {
		result = doc.Get("output")
	}
	if !result.Exists() || result.Type == gjson.Null {
		return status, json.RawMessage("{}"), nil
	}
	return status, json.RawMessage(result.Raw), nil
}

func mock(modelID string, params Params) json.RawMessage {
	raw, _ := json.Marshal(mockResult{
		Image:   PlaceholderImage,
		ModelID: modelID,
		Prompt:  params.Prompt,
		Seed:    params.Seed,
	})
	return raw
}

func (c *Client) write(task string, job *Job) (string, error) {
	dir := filepath.Join(c.outputDir, task)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	raw, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode job: %w", err)
	}
	path := filepath.Join(dir, job.Meta.JobID+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("failed to write job file: %w", err)
	}
	return path, nil
}
