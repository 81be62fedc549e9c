package main

import (
	"errors"
	"path/filepath"
	"testing"

	"worldbox.ai/internal/persistence/indexdb"
	"worldbox.ai/internal/sim/world"
)

var errDisk = errors.New("disk full")

type failingLog struct{ calls int }

func (f *failingLog) WriteTick(world.TickSummary) error    { f.calls++; return errDisk }
func (f *failingLog) WriteHazard(world.HazardRecord) error { f.calls++; return errDisk }

type okLog struct{ calls int }

func (o *okLog) WriteTick(world.TickSummary) error    { o.calls++; return nil }
func (o *okLog) WriteHazard(world.HazardRecord) error { o.calls++; return nil }

func TestMultiLoggers_ReportSinkErrors(t *testing.T) {
	f := &failingLog{}
	if err := (multiTickLogger{a: f}).WriteTick(world.TickSummary{Tick: 1}); !errors.Is(err, errDisk) {
		t.Fatalf("tick error swallowed: %v", err)
	}
	if err := (multiHazardLogger{a: f}).WriteHazard(world.HazardRecord{Tick: 1}); !errors.Is(err, errDisk) {
		t.Fatalf("hazard error swallowed: %v", err)
	}
	if f.calls != 2 {
		t.Fatalf("calls %d", f.calls)
	}

	ok := &okLog{}
	if err := (multiTickLogger{a: ok}).WriteTick(world.TickSummary{Tick: 2}); err != nil {
		t.Fatalf("healthy sink: %v", err)
	}
	if err := (multiHazardLogger{}).WriteHazard(world.HazardRecord{}); err != nil {
		t.Fatalf("no sinks: %v", err)
	}
}

func TestMultiLoggers_IndexStillWrittenAfterLogFailure(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open index: %v", err)
	}
	defer idx.Close()

	m := multiTickLogger{a: &failingLog{}, b: idx}
	if err := m.WriteTick(world.TickSummary{Tick: 7, Digest: "abc"}); !errors.Is(err, errDisk) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if err := idx.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}
	if d, ok, err := idx.TickDigest(7); err != nil || !ok || d != "abc" {
		t.Fatalf("index digest %q %v %v", d, ok, err)
	}
}
