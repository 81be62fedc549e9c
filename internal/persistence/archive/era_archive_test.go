package archive

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"worldbox.ai/internal/persistence/snapshot"
)

func writeDummy(t *testing.T, path, body string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestArchiveEraSnapshot_FirstSnapshotOfEra(t *testing.T) {
	worldDir := filepath.Join(t.TempDir(), "worlds", "w1")

	first := filepath.Join(worldDir, "snapshots", "w1-600.snap.zst")
	writeDummy(t, first, "first")
	snap := snapshot.SnapshotV1{
		Header: snapshot.Header{Version: 1, WorldID: "w1", Tick: 600},
		Seed:   42,
		Year:   10,
		Size:   "small",
		Shape:  "island",
	}

	era, archivedPath, ok, err := ArchiveEraSnapshot(worldDir, first, snap, 10)
	if err != nil || !ok || era != 1 {
		t.Fatalf("archive: era=%d ok=%v err=%v", era, ok, err)
	}
	got, err := os.ReadFile(archivedPath)
	if err != nil || string(got) != "first" {
		t.Fatalf("archived content %q %v", got, err)
	}

	raw, err := os.ReadFile(filepath.Join(filepath.Dir(archivedPath), "meta.json"))
	if err != nil {
		t.Fatalf("meta: %v", err)
	}
	var meta EraArchiveMeta
	if err := json.Unmarshal(raw, &meta); err != nil || meta.Year != 10 || meta.Tick != 600 || meta.Shape != "island" {
		t.Fatalf("meta %+v %v", meta, err)
	}

	// A later snapshot of the same era is not archived again.
	second := filepath.Join(worldDir, "snapshots", "w1-660.snap.zst")
	writeDummy(t, second, "second")
	snap.Header.Tick, snap.Year = 660, 11
	if _, _, ok, err := ArchiveEraSnapshot(worldDir, second, snap, 10); ok || err != nil {
		t.Fatalf("same era archived again: ok=%v err=%v", ok, err)
	}
	got, _ = os.ReadFile(archivedPath)
	if string(got) != "first" {
		t.Fatalf("archive overwritten")
	}
}

func TestArchiveEraSnapshot_Skips(t *testing.T) {
	worldDir := t.TempDir()
	src := filepath.Join(worldDir, "s.snap.zst")
	writeDummy(t, src, "x")

	cases := []struct {
		year, every int
	}{
		{0, 10},
		{9, 10},
		{25, 0},
	}
	for _, tc := range cases {
		snap := snapshot.SnapshotV1{Year: tc.year}
		if _, _, ok, err := ArchiveEraSnapshot(worldDir, src, snap, tc.every); ok || err != nil {
			t.Fatalf("year=%d every=%d: ok=%v err=%v", tc.year, tc.every, ok, err)
		}
	}
	if _, err := os.Stat(filepath.Join(worldDir, "archives")); !os.IsNotExist(err) {
		t.Fatalf("archive dir created: %v", err)
	}
}
