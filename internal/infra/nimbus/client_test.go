package nimbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/metrics"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/ratelimit"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/export/retry"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	bucket, err := ratelimit.NewBucket(1000, 100)
	if err != nil {
		t.Fatal(err)
	}
	c := New(Config{
		BaseURL: srv.URL,
		Timeout: 5 * time.Second,
		Retry: retry.Config{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     5 * time.Millisecond,
			Multiplier:   2,
		},
	}, bucket, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return c, srv
}

func TestLoginStoresSession(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/api/auth" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req loginRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Login != "a@b.c" || req.Password != "pw" {
			t.Errorf("credentials = %+v", req)
		}
		json.NewEncoder(w).Encode(loginResponse{SessionID: "sess-1"})
	}))

	if err := c.Login(context.Background(), "a@b.c", "pw"); err != nil {
		t.Fatal(err)
	}
	if c.token != "sess-1" {
		t.Errorf("token = %q", c.token)
	}
}

func TestLoginRejected(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(loginResponse{ErrorCode: 2, Message: "wrong password"})
	}))

	err := c.Login(context.Background(), "a@b.c", "pw")
	if err == nil {
		t.Fatal("expected login error")
	}
}

func TestRateLimitStatusRaisesTypedError(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))

	err := c.doJSON(context.Background(), "GET", "/api/anything", "test", nil, nil)
	var rl *retry.RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("err = %v, want RateLimitedError", err)
	}
	if rl.Code != http.StatusTooManyRequests {
		t.Errorf("code = %d", rl.Code)
	}
}

func TestNonSuccessStatusCarriesDetail(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream sad")
	}))

	err := c.doJSON(context.Background(), "GET", "/api/anything", "test", nil, nil)
	var se *retry.StatusError
	if !errors.As(err, &se) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if se.Code != http.StatusBadGateway || se.Detail != "upstream sad" {
		t.Errorf("status error = %+v", se)
	}
	if !retry.Retryable(err) {
		t.Error("502 should be retryable")
	}
}

func TestListNotesPaginates(t *testing.T) {
	total := listPageSize + 3
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req listNotesRequest
		json.NewDecoder(r.Body).Decode(&req)

		var resp listNotesResponse
		for i := req.Offset; i < total && i < req.Offset+req.Limit; i++ {
			resp.Notes = append(resp.Notes, noteEntry{
				GlobalID: fmt.Sprintf("note-%d", i),
				Title:    fmt.Sprintf("Note %d", i),
			})
		}
		resp.Total = total
		json.NewEncoder(w).Encode(resp)
	}))

	items, err := c.ListNotes(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != total {
		t.Fatalf("listed %d items, want %d", len(items), total)
	}
	if items[0].ID != "note-0" || items[total-1].ID != fmt.Sprintf("note-%d", total-1) {
		t.Errorf("unexpected item IDs at boundaries")
	}
}

func TestSubmitExportReturnsJobID(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req submitExportRequest
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.NoteIDs) != 1 || req.NoteIDs[0] != "n1" {
			t.Errorf("note IDs = %v", req.NoteIDs)
		}
		json.NewEncoder(w).Encode(submitExportResponse{JobID: "job-7"})
	}))

	jobID, err := c.SubmitExport(context.Background(), "n1")
	if err != nil {
		t.Fatal(err)
	}
	if jobID != "job-7" {
		t.Errorf("job ID = %q", jobID)
	}
}

func TestSubmitExportEmptyJobID(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(submitExportResponse{})
	}))

	if _, err := c.SubmitExport(context.Background(), "n1"); err == nil {
		t.Error("expected error for empty job id")
	}
}

func TestProbe(t *testing.T) {
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s, want HEAD", r.Method)
		}
		if r.URL.Path == "/exists" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	if !c.Probe(context.Background(), srv.URL+"/exists") {
		t.Error("expected probe hit")
	}
	if c.Probe(context.Background(), srv.URL+"/missing") {
		t.Error("expected probe miss")
	}
}

func TestDownloadWritesAtomically(t *testing.T) {
	payload := []byte("zip bytes here")
	c, srv := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload)
	}))

	dest := filepath.Join(t.TempDir(), "out", "note-1.zip")
	n, err := c.Download(context.Background(), srv.URL+"/artifact", dest)
	if err != nil {
		t.Fatal(err)
	}
	if n != int64(len(payload)) {
		t.Errorf("wrote %d bytes, want %d", n, len(payload))
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != string(payload) {
		t.Errorf("artifact content mismatch")
	}
	if _, err := os.Stat(dest + ".part"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestDownloadOutlivesAPITimeout(t *testing.T) {
	payload := []byte("slow but steady artifact body")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(payload[:4])
		w.(http.Flusher).Flush()
		time.Sleep(400 * time.Millisecond)
		w.Write(payload[4:])
	}))
	defer srv.Close()

	bucket, err := ratelimit.NewBucket(1000, 100)
	if err != nil {
		t.Fatal(err)
	}
	// API timeout far below the transfer time; only the download ctx
	// may bound the body read.
	c := New(Config{
		BaseURL: srv.URL,
		Timeout: 100 * time.Millisecond,
		Retry:   retry.Config{InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 2},
	}, bucket, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dest := filepath.Join(t.TempDir(), "slow.zip")
	n, err := c.Download(ctx, srv.URL+"/artifact", dest)
	if err != nil {
		t.Fatalf("download failed: %v", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("wrote %d bytes, want %d", n, len(payload))
	}
}

func TestTagMetricsKeepBoundedLabels(t *testing.T) {
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(noteTagsResponse{Tags: []string{"a"}})
	}))

	if _, err := c.NoteTags(context.Background(), "note-one"); err != nil {
		t.Fatal(err)
	}
	series := testutil.CollectAndCount(metrics.APILatency)

	if _, err := c.NoteTags(context.Background(), "note-two"); err != nil {
		t.Fatal(err)
	}
	if got := testutil.CollectAndCount(metrics.APILatency); got != series {
		t.Errorf("latency series grew from %d to %d across note IDs", series, got)
	}
}

func TestEventPollerDeliversEvents(t *testing.T) {
	calls := 0
	c, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		var resp exportEventsResponse
		if calls == 1 {
			resp.Events = []struct {
				JobID string `json:"job_id"`
				URL   string `json:"url"`
				Error string `json:"error"`
			}{
				{JobID: "j1", URL: "https://cdn/j1.zip"},
				{JobID: "j2", Error: "note is corrupted"},
			}
		}
		json.NewEncoder(w).Encode(resp)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p := NewEventPoller(c)
	go p.Run(ctx)

	ev1 := <-p.Events()
	if ev1.JobID != "j1" || ev1.ArtifactURL != "https://cdn/j1.zip" || ev1.Err != "" {
		t.Errorf("ev1 = %+v", ev1)
	}
	ev2 := <-p.Events()
	if ev2.JobID != "j2" || ev2.Err != "note is corrupted" {
		t.Errorf("ev2 = %+v", ev2)
	}
}
