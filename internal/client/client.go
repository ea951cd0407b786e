// Package client implements the reattaching submission flow used by the CLI:
// equivalent submissions resolve to the same server-side job, in-flight jobs
// are picked back up after a restart, and a dropped progress stream degrades
// to polling without ever re-uploading the file.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	retry "github.com/avast/retry-go/v4"
	"golang.org/x/sync/singleflight"

	"github.com/sheetbuilder/sheetbuilder/internal/api"
	"github.com/sheetbuilder/sheetbuilder/internal/home"
	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
)

const (
	// entryTTL is how long a persisted fingerprint entry is trusted before
	// the client falls back to a fresh upload.
	entryTTL = time.Hour

	defaultPollInterval = 3 * time.Second

	submitPath = "/api/pdf/process-with-progress"
	statusPath = "/api/pdf/status/"
	streamPath = "/api/pdf/progress/"
)

// Options configures a Client.
type Options struct {
	ServerURL string
	// Store persists job state between runs. Nil selects a file store under
	// the sheetbuilder home directory.
	Store Store
	// PollInterval is the status poll cadence after a stream drop.
	PollInterval time.Duration
	Logger       *slog.Logger
}

// Client submits PDFs for composition and follows them to completion.
type Client struct {
	api    *api.Client
	store  Store
	poll   time.Duration
	logger *slog.Logger
	flight singleflight.Group
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	store := opts.Store
	if store == nil {
		h, err := home.New("")
		if err != nil {
			return nil, err
		}
		store, err = NewFileStore(h.JobsPath())
		if err != nil {
			return nil, err
		}
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		api:    api.NewClient(opts.ServerURL),
		store:  store,
		poll:   poll,
		logger: logger,
	}, nil
}

// Submission describes one file to compose.
type Submission struct {
	FilePath string
	Rotation int
	// Order is Norm or Rev; empty means Norm.
	Order string
}

// ProgressFunc receives progress events as the job advances.
type ProgressFunc func(jobs.ProgressEvent)

// submitResponse mirrors the server's submission response.
type submitResponse struct {
	Success     bool         `json:"success"`
	JobID       string       `json:"jobId"`
	DuplicateOf bool         `json:"duplicateOf"`
	Result      *jobs.Result `json:"result"`
}

// statusResponse mirrors the server's status snapshot.
type statusResponse struct {
	Success   bool                `json:"success"`
	JobID     string              `json:"jobId"`
	Stage     string              `json:"stage"`
	StartTime time.Time           `json:"startTime"`
	EndTime   *time.Time          `json:"endTime"`
	Progress  *jobs.ProgressEvent `json:"progress"`
	Result    *jobs.Result        `json:"result"`
	Error     *string             `json:"error"`
}

// Submit composes a PDF and blocks until the job finishes, returning the
// result. A submission equivalent to a tracked in-flight or recently
// completed job reattaches to it instead of uploading again; simultaneous
// equivalent submissions from the same process share one flow.
func (c *Client) Submit(ctx context.Context, sub Submission, onProgress ProgressFunc) (*jobs.Result, error) {
	info, err := os.Stat(sub.FilePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sub.FilePath, err)
	}

	order := sub.Order
	if order == "" {
		order = "Norm"
	}
	fp := reliability.NewFingerprint(filepath.Base(sub.FilePath), info.Size(), sub.Rotation, order)
	digest := fp.Digest()

	v, err, _ := c.flight.Do(digest, func() (any, error) {
		return c.submit(ctx, digest, sub, onProgress)
	})
	if err != nil {
		return nil, err
	}
	return v.(*jobs.Result), nil
}

func (c *Client) submit(ctx context.Context, digest string, sub Submission, onProgress ProgressFunc) (*jobs.Result, error) {
	if jobID, ok := c.reattachTarget(digest); ok {
		status, err := c.getStatus(ctx, jobID)
		switch {
		case err != nil && !isNotFound(err):
			return nil, err
		case err != nil:
			// The server no longer knows the job (reaped or restarted).
			c.purge(digest)
		case jobs.Stage(status.Stage) == jobs.StageCompleted && status.Result != nil:
			c.logger.Debug("reattached to completed job", "job_id", jobID)
			return status.Result, nil
		case jobs.Stage(status.Stage) == jobs.StageFailed:
			c.purge(digest)
		default:
			c.logger.Info("reattaching to in-flight job", "job_id", jobID)
			if err := c.watch(ctx, jobID, onProgress); err != nil {
				return nil, err
			}
			return c.finalize(ctx, digest, jobID)
		}
	}

	resp, err := c.uploadWithRetry(ctx, sub)
	if err != nil {
		return nil, err
	}

	if resp.DuplicateOf && resp.Result != nil {
		// Answered from the server's recent-result cache.
		c.put(digest, Entry{JobID: resp.JobID, Status: "completed", UpdatedAt: time.Now()})
		return resp.Result, nil
	}

	c.put(digest, Entry{JobID: resp.JobID, Status: "processing", UpdatedAt: time.Now()})

	if err := c.watch(ctx, resp.JobID, onProgress); err != nil {
		return nil, err
	}
	return c.finalize(ctx, digest, resp.JobID)
}

// reattachTarget returns the persisted jobID for this fingerprint when the
// entry is still within its TTL.
func (c *Client) reattachTarget(digest string) (string, bool) {
	entry, ok, err := c.store.Get(digest)
	if err != nil || !ok {
		return "", false
	}
	if time.Since(entry.UpdatedAt) >= entryTTL {
		c.purge(digest)
		return "", false
	}
	return entry.JobID, true
}

// uploadWithRetry submits the file, retrying transport and server failures.
// Retrying a submission is safe: the server deduplicates equivalent uploads,
// so a retry lands on the job the lost response created.
func (c *Client) uploadWithRetry(ctx context.Context, sub Submission) (submitResponse, error) {
	var resp submitResponse
	err := retry.Do(
		func() error {
			r, err := c.upload(ctx, sub)
			if err != nil {
				return err
			}
			resp = r
			return nil
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(500*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
	)
	return resp, err
}

// upload streams the file to the asynchronous endpoint through a pipe, so
// large PDFs are never buffered in memory.
func (c *Client) upload(ctx context.Context, sub Submission) (submitResponse, error) {
	f, err := os.Open(sub.FilePath)
	if err != nil {
		return submitResponse{}, fmt.Errorf("opening %s: %w", sub.FilePath, err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		err := writeSubmissionForm(mw, filepath.Base(sub.FilePath), f, sub.Rotation, sub.Order)
		if cerr := mw.Close(); err == nil {
			err = cerr
		}
		pw.CloseWithError(err)
	}()

	var resp submitResponse
	if err := c.api.PostMultipart(ctx, submitPath, mw.FormDataContentType(), pr, &resp); err != nil {
		return submitResponse{}, err
	}
	return resp, nil
}

func writeSubmissionForm(mw *multipart.Writer, filename string, file io.Reader, rotation int, order string) error {
	part, err := mw.CreateFormFile("pdfFile", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := mw.WriteField("rotationAngle", strconv.Itoa(rotation)); err != nil {
		return err
	}
	if order == "" {
		order = "Norm"
	}
	return mw.WriteField("order", order)
}

// watch follows a job to its terminal stage, preferring the progress stream
// and degrading to polling when the stream drops. It never re-uploads.
func (c *Client) watch(ctx context.Context, jobID string, onProgress ProgressFunc) error {
	err := c.stream(ctx, jobID, onProgress)
	if err == nil {
		return nil
	}
	if isNotFound(err) || ctx.Err() != nil {
		return err
	}

	c.logger.Warn("progress stream lost, polling instead", "job_id", jobID, "error", err)
	return c.pollUntilDone(ctx, jobID, onProgress)
}

// stream consumes the server-sent event feed. It returns nil once a terminal
// event arrives and an error when the stream could not be opened, dropped
// early, or produced an unparseable event.
func (c *Client) stream(ctx context.Context, jobID string, onProgress ProgressFunc) error {
	body, err := c.api.Stream(ctx, streamPath+jobID)
	if err != nil {
		return err
	}
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if len(line) < 6 || line[:6] != "data: " {
			continue // event separators and keepalive comments
		}

		var evt jobs.ProgressEvent
		if err := json.Unmarshal([]byte(line[6:]), &evt); err != nil {
			return fmt.Errorf("unparseable progress event: %w", err)
		}
		if onProgress != nil {
			onProgress(evt)
		}
		if evt.Stage.Terminal() {
			return nil
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("progress stream dropped: %w", err)
	}
	return errors.New("progress stream ended before the job finished")
}

// pollUntilDone polls the status endpoint until the job reaches a terminal
// stage. Transient poll errors are retried on the next tick.
func (c *Client) pollUntilDone(ctx context.Context, jobID string, onProgress ProgressFunc) error {
	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := c.getStatus(ctx, jobID)
		if err != nil {
			if isNotFound(err) {
				return err
			}
			continue
		}

		if status.Progress != nil && onProgress != nil {
			onProgress(*status.Progress)
		}
		if jobs.Stage(status.Stage).Terminal() {
			return nil
		}
	}
}

// finalize reads the terminal status and settles the persisted entry: a
// completed job is cached for duplicate submissions, a failed one is
// forgotten so the user can retry immediately.
func (c *Client) finalize(ctx context.Context, digest, jobID string) (*jobs.Result, error) {
	status, err := c.getStatus(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch jobs.Stage(status.Stage) {
	case jobs.StageCompleted:
		c.put(digest, Entry{JobID: jobID, Status: "completed", UpdatedAt: time.Now()})
		if status.Result == nil {
			return nil, fmt.Errorf("job %s completed without a result", jobID)
		}
		return status.Result, nil
	case jobs.StageFailed:
		c.purge(digest)
		msg := "composition failed"
		if status.Error != nil {
			msg = *status.Error
		}
		return nil, fmt.Errorf("job %s failed: %s", jobID, msg)
	default:
		return nil, fmt.Errorf("job %s settled in non-terminal stage %s", jobID, status.Stage)
	}
}

func (c *Client) getStatus(ctx context.Context, jobID string) (statusResponse, error) {
	var resp statusResponse
	if err := c.api.Get(ctx, statusPath+jobID, &resp); err != nil {
		return statusResponse{}, err
	}
	return resp, nil
}

func (c *Client) put(digest string, e Entry) {
	if err := c.store.Put(digest, e); err != nil {
		c.logger.Warn("persisting job state failed", "error", err)
	}
}

func (c *Client) purge(digest string) {
	if err := c.store.Delete(digest); err != nil {
		c.logger.Warn("clearing job state failed", "error", err)
	}
}

func isNotFound(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// isRetryable rejects retries for client errors: a 4xx submission will not
// heal on its own, while transport failures and 5xx responses may.
func isRetryable(err error) bool {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500
	}
	return true
}
