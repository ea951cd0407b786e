package endpoints

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/sheetbuilder/sheetbuilder/internal/storage"
	"github.com/sheetbuilder/sheetbuilder/internal/svcctx"
)

// downloadServer mounts the download endpoint with a real file store behind
// it, the way the server wires services into request contexts.
func downloadServer(t *testing.T, store *storage.Store) *httptest.Server {
	t.Helper()

	method, path, handler := (&DownloadEndpoint{}).Route()
	mux := http.NewServeMux()
	mux.HandleFunc(method+" "+path, handler)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), &svcctx.Services{Store: store})
		mux.ServeHTTP(w, r.WithContext(ctx))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(storage.Config{
		Directory:  t.TempDir(),
		MaxAgeDays: 7,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	return store
}

func TestDownloadServesStoredFile(t *testing.T) {
	store := newTestStore(t)
	content := []byte("%PDF-1.4 composed output")
	path := store.NewOutputPath("book_A0_NORM.pdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("writing output: %v", err)
	}

	srv := downloadServer(t, store)
	resp, err := http.Get(srv.URL + "/api/pdf/download/book_A0_NORM.pdf")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q, want application/pdf", ct)
	}
	if cd := resp.Header.Get("Content-Disposition"); !strings.Contains(cd, `filename="book_A0_NORM.pdf"`) {
		t.Errorf("content disposition = %q, want the clean filename", cd)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != string(content) {
		t.Errorf("body = %q, want stored content", body)
	}

	// Without the delete flag the file stays for later downloads.
	if _, err := os.Stat(path); err != nil {
		t.Errorf("stored file should survive a plain download: %v", err)
	}
}

func TestDownloadRangeRequest(t *testing.T) {
	store := newTestStore(t)
	path := store.NewOutputPath("book_A0_NORM.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 composed output"), 0o644); err != nil {
		t.Fatalf("writing output: %v", err)
	}

	srv := downloadServer(t, store)
	req, err := http.NewRequest("GET", srv.URL+"/api/pdf/download/book_A0_NORM.pdf", nil)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	req.Header.Set("Range", "bytes=0-3")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusPartialContent {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusPartialContent)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading body: %v", err)
	}
	if string(body) != "%PDF" {
		t.Errorf("range body = %q, want %q", body, "%PDF")
	}
}

func TestDownloadDeleteAfterDownload(t *testing.T) {
	store := newTestStore(t)
	path := store.NewOutputPath("book_A0_NORM.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 one-shot"), 0o644); err != nil {
		t.Fatalf("writing output: %v", err)
	}

	srv := downloadServer(t, store)
	resp, err := http.Get(srv.URL + "/api/pdf/download/book_A0_NORM.pdf?deleteAfterDownload=true")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("file should be deleted after download, stat err = %v", err)
	}

	resp2, err := http.Get(srv.URL + "/api/pdf/download/book_A0_NORM.pdf")
	if err != nil {
		t.Fatalf("second GET failed: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("second download status = %d, want %d", resp2.StatusCode, http.StatusNotFound)
	}
}

func TestDownloadUnknownFile(t *testing.T) {
	srv := downloadServer(t, newTestStore(t))
	resp, err := http.Get(srv.URL + "/api/pdf/download/missing.pdf")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}
