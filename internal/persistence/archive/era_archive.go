package archive

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"worldbox.ai/internal/persistence/snapshot"
)

type EraArchiveMeta struct {
	Era       int    `json:"era"`
	Year      int    `json:"year"`
	Tick      uint64 `json:"tick"`
	Seed      int64  `json:"seed"`
	Size      string `json:"size"`
	Shape     string `json:"shape"`
	Creatures int    `json:"creatures"`
	Kingdoms  int    `json:"kingdoms"`
	Snapshot  string `json:"snapshot"`
	CreatedAt string `json:"created_at"`
}

// ArchiveEraSnapshot keeps the first snapshot of every era (a span of
// yearsPerEra years) under `worldDir/archives/era_<NNN>/`. Later snapshots of
// an already archived era are ignored.
func ArchiveEraSnapshot(worldDir, snapshotPath string, snap snapshot.SnapshotV1, yearsPerEra int) (era int, archivedPath string, archived bool, err error) {
	if yearsPerEra <= 0 || snap.Year <= 0 {
		return 0, "", false, nil
	}
	era = snap.Year / yearsPerEra
	if era <= 0 {
		return 0, "", false, nil
	}

	archiveDir := filepath.Join(worldDir, "archives", fmt.Sprintf("era_%03d", era))
	if _, err := os.Stat(filepath.Join(archiveDir, "meta.json")); err == nil {
		return era, "", false, nil
	}
	if err := os.MkdirAll(archiveDir, 0o755); err != nil {
		return 0, "", false, err
	}

	dst := filepath.Join(archiveDir, filepath.Base(snapshotPath))
	if err := copyFile(snapshotPath, dst); err != nil {
		return 0, "", false, err
	}

	meta := EraArchiveMeta{
		Era:       era,
		Year:      snap.Year,
		Tick:      snap.Header.Tick,
		Seed:      snap.Seed,
		Size:      snap.Size,
		Shape:     snap.Shape,
		Creatures: len(snap.Creatures),
		Kingdoms:  len(snap.Kingdoms),
		Snapshot:  filepath.Base(dst),
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	b, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return 0, "", false, err
	}
	// meta.json marks the era as done, so it is written last.
	if err := os.WriteFile(filepath.Join(archiveDir, "meta.json"), b, 0o644); err != nil {
		return 0, "", false, err
	}
	return era, dst, true, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
