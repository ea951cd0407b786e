package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/sheetbuilder/sheetbuilder/internal/jobs"
	"github.com/sheetbuilder/sheetbuilder/internal/reliability"
	"github.com/sheetbuilder/sheetbuilder/internal/server/endpoints"
)

// TestServer_FullLifecycle runs the whole pipeline over HTTP: submit a real
// PDF, follow the job to completion, download the composed output, and check
// deduplication along the way.
func TestServer_FullLifecycle(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	port := freePort(t)
	srv, err := New(Config{
		Host:       "127.0.0.1",
		Port:       port,
		StorageDir: t.TempDir(),
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	// Start server in background
	serverErr := make(chan error, 1)
	serverCtx, serverCancel := context.WithCancel(ctx)

	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)
	if err := waitForServer(ctx, baseURL, 30*time.Second); err != nil {
		serverCancel()
		t.Fatalf("server did not start: %v", err)
	}

	pdfPath := filepath.Join(t.TempDir(), "tiny.pdf")
	writeTestPDF(t, pdfPath, 4)
	pdfBytes, err := os.ReadFile(pdfPath)
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	t.Run("health_endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			t.Fatalf("health check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("health status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "ok" {
			t.Errorf("health.Status = %q, want %q", health.Status, "ok")
		}
	})

	t.Run("ready_endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/ready")
		if err != nil {
			t.Fatalf("ready check failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusOK)
		}

		var health HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Storage != "ok" {
			t.Errorf("health.Storage = %q, want %q", health.Storage, "ok")
		}
	})

	t.Run("api_health_endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/pdf/health")
		if err != nil {
			t.Fatalf("api health check failed: %v", err)
		}
		defer resp.Body.Close()

		var health endpoints.HealthResponse
		if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if health.Status != "Healthy" {
			t.Errorf("health.Status = %q, want %q", health.Status, "Healthy")
		}
		if health.Service != endpoints.ServiceName {
			t.Errorf("health.Service = %q, want %q", health.Service, endpoints.ServiceName)
		}
	})

	var firstJobID string

	t.Run("submit_and_complete", func(t *testing.T) {
		status, body := postPDF(t, baseURL+"/api/pdf/process-with-progress", "tiny.pdf", pdfBytes, nil)
		if status != http.StatusOK {
			t.Fatalf("submit status = %d, body %s", status, body)
		}

		var sub endpoints.SubmitResponse
		if err := json.Unmarshal(body, &sub); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !sub.Success || sub.JobID == "" {
			t.Fatalf("submit response = %+v, want success with job id", sub)
		}
		if sub.DuplicateOf {
			t.Errorf("first submission marked duplicate")
		}
		firstJobID = sub.JobID

		st := waitForCompletion(t, baseURL, sub.JobID, 60*time.Second)
		if st.Result == nil {
			t.Fatal("completed job has no result")
		}
		if st.Result.OutputFileName != "tiny_A0_NORM.pdf" {
			t.Errorf("output name = %q, want %q", st.Result.OutputFileName, "tiny_A0_NORM.pdf")
		}
		if st.Result.InputPages != 4 {
			t.Errorf("input pages = %d, want 4", st.Result.InputPages)
		}
		// Four A4 pages at 841.89pt each: three fit under the 2778pt sheet
		// cap, the fourth starts a second sheet.
		if st.Result.OutputPages != 2 {
			t.Errorf("output pages = %d, want 2", st.Result.OutputPages)
		}

		resp, err := http.Get(baseURL + st.Result.DownloadPath)
		if err != nil {
			t.Fatalf("download failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("download status = %d", resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("download content type = %q", ct)
		}
		out, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("reading download: %v", err)
		}
		if !bytes.HasPrefix(out, []byte("%PDF")) {
			t.Errorf("downloaded file does not look like a PDF")
		}
	})

	t.Run("duplicate_submission_returns_cached_result", func(t *testing.T) {
		status, body := postPDF(t, baseURL+"/api/pdf/process-with-progress", "tiny.pdf", pdfBytes, nil)
		if status != http.StatusOK {
			t.Fatalf("submit status = %d, body %s", status, body)
		}

		var sub endpoints.SubmitResponse
		if err := json.Unmarshal(body, &sub); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !sub.DuplicateOf {
			t.Error("resubmission not marked duplicate")
		}
		if sub.JobID != firstJobID {
			t.Errorf("duplicate job id = %q, want %q", sub.JobID, firstJobID)
		}
		if sub.Result == nil || !sub.Result.Success {
			t.Errorf("duplicate result = %+v, want the cached result", sub.Result)
		}
	})

	t.Run("progress_stream_replays_terminal_event", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/pdf/progress/" + firstJobID)
		if err != nil {
			t.Fatalf("progress stream failed: %v", err)
		}
		defer resp.Body.Close()

		if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
			t.Errorf("content type = %q, want text/event-stream", ct)
		}
		// The job is already terminal, so the stream replays the final event
		// and closes.
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		if !strings.Contains(string(body), "data: ") {
			t.Errorf("stream body has no data frame: %q", body)
		}
		if !strings.Contains(string(body), `"stage":"Completed"`) {
			t.Errorf("stream body missing terminal event: %q", body)
		}
	})

	t.Run("different_rotation_is_fresh_work", func(t *testing.T) {
		status, body := postPDF(t, baseURL+"/api/pdf/process-with-progress", "tiny.pdf", pdfBytes,
			map[string]string{"rotationAngle": "90"})
		if status != http.StatusOK {
			t.Fatalf("submit status = %d, body %s", status, body)
		}

		var sub endpoints.SubmitResponse
		if err := json.Unmarshal(body, &sub); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if sub.DuplicateOf {
			t.Error("rotated submission deduplicated against the unrotated job")
		}
		if sub.JobID == firstJobID {
			t.Error("rotated submission reused the unrotated job id")
		}

		st := waitForCompletion(t, baseURL, sub.JobID, 60*time.Second)
		if st.Result.OutputFileName != "tiny_A90_NORM.pdf" {
			t.Errorf("output name = %q, want %q", st.Result.OutputFileName, "tiny_A90_NORM.pdf")
		}
	})

	t.Run("sync_process_small_file", func(t *testing.T) {
		status, body := postPDF(t, baseURL+"/api/pdf/process", "tiny.pdf", pdfBytes,
			map[string]string{"order": "Rev"})
		if status != http.StatusOK {
			t.Fatalf("sync status = %d, body %s", status, body)
		}

		var result jobs.Result
		if err := json.Unmarshal(body, &result); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if !result.Success || result.InputPages != 4 {
			t.Errorf("sync result = %+v", result)
		}
		if result.OutputFileName != "tiny_A0_REV.pdf" {
			t.Errorf("output name = %q, want %q", result.OutputFileName, "tiny_A0_REV.pdf")
		}
	})

	t.Run("sync_process_blocks_large_file", func(t *testing.T) {
		cfg := reliability.Config{
			IdempotencyActive:       true,
			EnforceProgressForLarge: true,
			LargeFileThresholdMB:    1,
			ResultTTL:               30 * time.Minute,
		}
		srv.Registry().UpdateConfig(cfg)
		defer func() {
			cfg.LargeFileThresholdMB = 200
			srv.Registry().UpdateConfig(cfg)
		}()

		big := make([]byte, 2<<20)
		status, body := postPDF(t, baseURL+"/api/pdf/process", "big.pdf", big, nil)
		if status != http.StatusConflict {
			t.Fatalf("oversize sync status = %d, want %d (body %s)", status, http.StatusConflict, body)
		}

		var blocked endpoints.LegacyBlockedResponse
		if err := json.Unmarshal(body, &blocked); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if blocked.Success {
			t.Error("blocked response marked success")
		}
		if blocked.RequiredEndpoint != "/api/pdf/process-with-progress" {
			t.Errorf("required endpoint = %q", blocked.RequiredEndpoint)
		}
	})

	t.Run("metrics_endpoint", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/metrics")
		if err != nil {
			t.Fatalf("metrics scrape failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Fatalf("metrics status = %d, want %d", resp.StatusCode, http.StatusOK)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatalf("reading metrics: %v", err)
		}
		if !strings.Contains(string(body), "sheetbuilder_jobs_completed_total") {
			t.Errorf("metrics output missing job counters")
		}
	})

	t.Run("unknown_job_returns_404", func(t *testing.T) {
		resp, err := http.Get(baseURL + "/api/pdf/status/no-such-job")
		if err != nil {
			t.Fatalf("status check failed: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
		}
	})

	t.Run("is_running", func(t *testing.T) {
		if !srv.IsRunning() {
			t.Error("IsRunning() = false, want true")
		}
	})

	// Shutdown server
	serverCancel()

	select {
	case err := <-serverErr:
		if err != nil {
			t.Logf("server returned error (expected during shutdown): %v", err)
		}
	case <-time.After(30 * time.Second):
		t.Fatal("server did not shut down within timeout")
	}

	t.Run("not_running_after_shutdown", func(t *testing.T) {
		if srv.IsRunning() {
			t.Error("IsRunning() = true after shutdown, want false")
		}
	})
}

// TestServer_DoubleStart tests that starting a running server returns an error.
func TestServer_DoubleStart(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	port := freePort(t)
	srv, err := New(Config{
		Host:       "127.0.0.1",
		Port:       port,
		StorageDir: t.TempDir(),
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	go func() {
		_ = srv.Start(serverCtx)
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)
	if err := waitForServer(ctx, baseURL, 30*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	// Try to start again - should fail
	if err := srv.Start(ctx); err == nil {
		t.Error("second Start() should return error")
	}
}

// TestServer_ReadyDegradedWithoutStorage verifies /ready flips to 503 when the
// storage directory disappears.
func TestServer_ReadyDegradedWithoutStorage(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	storageDir := filepath.Join(t.TempDir(), "uploads")
	port := freePort(t)
	srv, err := New(Config{
		Host:       "127.0.0.1",
		Port:       port,
		StorageDir: storageDir,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Start(serverCtx)
	}()

	baseURL := fmt.Sprintf("http://127.0.0.1:%s", port)
	if err := waitForServer(ctx, baseURL, 30*time.Second); err != nil {
		t.Fatalf("server did not start: %v", err)
	}

	if err := os.RemoveAll(storageDir); err != nil {
		t.Fatalf("removing storage dir: %v", err)
	}

	resp, err := http.Get(baseURL + "/ready")
	if err != nil {
		t.Fatalf("ready check failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("ready status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}

	serverCancel()
	<-serverErr
}

// writeTestPDF builds an n-page A4 document fixture.
func writeTestPDF(t *testing.T, path string, pages int) {
	t.Helper()
	pdf := gofpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 24)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.Text(72, 72, fmt.Sprintf("page %d", i+1))
	}
	if err := pdf.OutputFileAndClose(path); err != nil {
		t.Fatalf("writing fixture pdf: %v", err)
	}
}

// postPDF issues a multipart submission and returns the status and body.
func postPDF(t *testing.T, url, filename string, content []byte, fields map[string]string) (int, []byte) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("pdfFile", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing form: %v", err)
	}

	resp, err := http.Post(url, mw.FormDataContentType(), &buf)
	if err != nil {
		t.Fatalf("POST %s failed: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	return resp.StatusCode, body
}

// waitForCompletion polls the status endpoint until the job completes.
func waitForCompletion(t *testing.T, baseURL, jobID string, timeout time.Duration) endpoints.StatusResponse {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(baseURL + "/api/pdf/status/" + jobID)
		if err != nil {
			t.Fatalf("status check failed: %v", err)
		}
		var st endpoints.StatusResponse
		err = json.NewDecoder(resp.Body).Decode(&st)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("failed to decode status: %v", err)
		}

		switch st.Stage {
		case string(jobs.StageCompleted):
			return st
		case string(jobs.StageFailed):
			msg := "composition failed"
			if st.Error != nil {
				msg = *st.Error
			}
			t.Fatalf("job %s failed: %s", jobID, msg)
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("job %s did not complete within %s", jobID, timeout)
	return endpoints.StatusResponse{}
}

// waitForServer polls the server until it responds or timeout.
func waitForServer(ctx context.Context, baseURL string, timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		req, err := http.NewRequestWithContext(ctx, "GET", baseURL+"/health", nil)
		if err != nil {
			return err
		}

		resp, err := client.Do(req)
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("server not ready after %s", timeout)
}

// freePort asks the kernel for an unused TCP port.
func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close()
	_, port, err := net.SplitHostPort(l.Addr().String())
	if err != nil {
		t.Fatalf("parsing port: %v", err)
	}
	return port
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
