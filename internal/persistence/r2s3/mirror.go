package r2s3

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

type Stats struct {
	Queued   uint64
	Dropped  uint64
	Uploaded uint64
	Failed   uint64
}

// Uploader is the part of Client the mirror needs.
type Uploader interface {
	PutFile(ctx context.Context, key, localPath string) error
}

// Mirror copies finished save files (snapshots, manual saves, era archives)
// to the bucket in the background. Keys are paths relative to the data dir
// under an optional prefix. Files are never removed remotely.
type Mirror struct {
	up      Uploader
	dataDir string
	prefix  string
	log     *logrus.Entry

	mu      sync.RWMutex
	closed  bool
	jobs    chan string
	wg      sync.WaitGroup
	retries int
	backoff time.Duration

	queued, dropped, uploaded, failed atomic.Uint64
}

func NewMirror(up Uploader, dataDir, prefix string, workers int, log *logrus.Entry) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	m := &Mirror{
		up:      up,
		dataDir: dataDir,
		prefix:  strings.Trim(strings.ReplaceAll(prefix, "\\", "/"), "/"),
		log:     log,
		jobs:    make(chan string, 256),
		retries: 4,
		backoff: 200 * time.Millisecond,
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for p := range m.jobs {
				m.upload(p)
			}
		}()
	}
	return m
}

// Enqueue never blocks; a full queue drops the file. Calls after Close are
// ignored.
func (m *Mirror) Enqueue(localPath string) {
	if m == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return
	}
	select {
	case m.jobs <- localPath:
		m.queued.Add(1)
	default:
		m.dropped.Add(1)
		m.log.WithField("path", localPath).Warn("mirror queue full; dropped")
	}
}

// Close drains the queue and waits for in-flight uploads.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.jobs)
	m.mu.Unlock()
	m.wg.Wait()
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		Queued:   m.queued.Load(),
		Dropped:  m.dropped.Load(),
		Uploaded: m.uploaded.Load(),
		Failed:   m.failed.Load(),
	}
}

func (m *Mirror) upload(localPath string) {
	key, err := m.objectKey(localPath)
	if err != nil {
		m.failed.Add(1)
		m.log.WithError(err).WithField("path", localPath).Warn("mirror skip")
		return
	}
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err = m.up.PutFile(ctx, key, localPath)
		cancel()
		if err == nil {
			m.uploaded.Add(1)
			m.log.WithField("key", key).Debug("mirrored")
			return
		}
		if attempt >= m.retries {
			break
		}
		time.Sleep(time.Duration(attempt*attempt) * m.backoff)
	}
	m.failed.Add(1)
	m.log.WithError(err).WithField("key", key).Error("mirror upload failed")
}

func (m *Mirror) objectKey(localPath string) (string, error) {
	base, err := filepath.Abs(m.dataDir)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(localPath)
	if err != nil {
		return "", err
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil {
		return "", err
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("%s is outside %s", abs, base)
	}
	if m.prefix != "" {
		rel = path.Join(m.prefix, rel)
	}
	return rel, nil
}
