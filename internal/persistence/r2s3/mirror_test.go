package r2s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"worldbox.ai/pkg/logger"
)

func TestClient_PutFileSigned(t *testing.T) {
	var (
		gotPath, gotAuth, gotBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(srv.URL, "saves", "AKID", "secret")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	local := filepath.Join(t.TempDir(), "a.snap.zst")
	if err := os.WriteFile(local, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := c.PutFile(context.Background(), "/worlds/w 1/a.snap.zst", local); err != nil {
		t.Fatalf("PutFile: %v", err)
	}
	if gotPath != "/saves/worlds/w%201/a.snap.zst" {
		t.Fatalf("path %q", gotPath)
	}
	if gotBody != "payload" {
		t.Fatalf("body %q", gotBody)
	}
	if !strings.HasPrefix(gotAuth, "AWS4-HMAC-SHA256 Credential=AKID/20260102/auto/s3/aws4_request, SignedHeaders=host;x-amz-content-sha256;x-amz-date, Signature=") {
		t.Fatalf("auth %q", gotAuth)
	}

	if err := c.PutFile(context.Background(), "/", local); !errors.Is(err, ErrBadKey) {
		t.Fatalf("empty key: %v", err)
	}
}

func TestClient_PutFileErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	}))
	defer srv.Close()
	c, _ := New(srv.URL, "b", "k", "s")
	local := filepath.Join(t.TempDir(), "x")
	_ = os.WriteFile(local, []byte("x"), 0o644)
	if err := c.PutFile(context.Background(), "x", local); err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}

func TestNew_RequiresConfig(t *testing.T) {
	if _, err := New("", "b", "k", "s"); err == nil {
		t.Fatalf("empty endpoint accepted")
	}
	c, err := New("r2.example.com", "b", "k", "s")
	if err != nil || c.endpoint != "https://r2.example.com" {
		t.Fatalf("scheme default: %v %+v", err, c)
	}
}

type fakeUploader struct {
	mu    sync.Mutex
	keys  []string
	fails int
}

func (f *fakeUploader) PutFile(_ context.Context, key, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("flaky")
	}
	f.keys = append(f.keys, key)
	return nil
}

func TestMirror_UploadsRelativeKeys(t *testing.T) {
	dataDir := t.TempDir()
	save := filepath.Join(dataDir, "worlds", "w1", "saves", "s.snap.zst")
	_ = os.MkdirAll(filepath.Dir(save), 0o755)
	_ = os.WriteFile(save, []byte("x"), 0o644)

	logger.Discard()
	up := &fakeUploader{fails: 1}
	m := NewMirror(up, dataDir, "/backups/", 1, logger.Component("mirror"))
	m.backoff = time.Millisecond
	m.Enqueue(save)
	m.Enqueue(filepath.Join(t.TempDir(), "elsewhere.snap.zst"))
	m.Close()

	if len(up.keys) != 1 || up.keys[0] != "backups/worlds/w1/saves/s.snap.zst" {
		t.Fatalf("keys %v", up.keys)
	}
	st := m.Stats()
	if st.Queued != 2 || st.Uploaded != 1 || st.Failed != 1 {
		t.Fatalf("stats %+v", st)
	}
}

func TestMirror_NilIsInert(t *testing.T) {
	var m *Mirror
	m.Enqueue("x")
	m.Close()
	if m.Stats() != (Stats{}) {
		t.Fatalf("nil mirror stats")
	}
}

func TestMirror_EnqueueAfterClose(t *testing.T) {
	logger.Discard()
	up := &fakeUploader{}
	m := NewMirror(up, t.TempDir(), "", 1, logger.Component("mirror"))
	m.Close()
	m.Enqueue("late")
	m.Close()
	if st := m.Stats(); st.Queued != 0 || len(up.keys) != 0 {
		t.Fatalf("late enqueue handled: %+v", st)
	}
}
