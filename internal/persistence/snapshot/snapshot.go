package snapshot

import (
	"bufio"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Version is the only snapshot layout this build reads and writes.
const Version = 1

type Header struct {
	Version int    `json:"version"`
	WorldID string `json:"world_id"`
	SaveID  string `json:"save_id,omitempty"`
	Tick    uint64 `json:"tick"`
	Year    int    `json:"year"`
	Seed    int64  `json:"seed"`
	Size    string `json:"size"`
	Shape   string `json:"shape"`
}

type SnapshotV1 struct {
	Header Header `json:"header"`

	Seed   int64  `json:"seed"`
	Size   string `json:"size"`
	Shape  string `json:"shape"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Year   int    `json:"year"`

	// Simulation PRNG state; the generation stream is re-derived from Seed.
	RNGState uint64 `json:"rng_state"`

	NextCreatureID uint64 `json:"next_creature_id"`
	NextVehicleID  uint64 `json:"next_vehicle_id"`
	NextWeaponID   uint64 `json:"next_weapon_id"`

	Grid GridV1 `json:"grid"`

	Creatures []CreatureV1 `json:"creatures"`
	Buildings []BuildingV1 `json:"buildings"`
	Vehicles  []VehicleV1  `json:"vehicles"`
	Weapons   []WeaponV1   `json:"weapons"`
	Kingdoms  []KingdomV1  `json:"kingdoms"`
}

// GridV1 holds the persisted tile layers, each RLE encoded in row-major
// order. Temperature, humidity and validity are not stored.
type GridV1 struct {
	Types   string `json:"types"`
	Heights string `json:"heights"`
	Flags   string `json:"flags"`
}

type CreatureV1 struct {
	ID        uint64    `json:"id"`
	Kind      uint8     `json:"kind"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
	Age       int       `json:"age"`
	Energy    float64   `json:"energy"`
	Health    float64   `json:"health"`
	Speed     float64   `json:"speed"`
	Direction float64   `json:"direction"`
	Weapon    uint8     `json:"weapon,omitempty"`
	Kingdom   uint32    `json:"kingdom,omitempty"`
	AI        AIStateV1 `json:"ai"`
}

type AIStateV1 struct {
	Ready       bool   `json:"ready"`
	Mode        uint8  `json:"mode"`
	Target      uint64 `json:"target,omitempty"`
	FleeTimer   int    `json:"flee_timer,omitempty"`
	WanderTimer int    `json:"wander_timer,omitempty"`
}

type BuildingV1 struct {
	X       int    `json:"x"`
	Y       int    `json:"y"`
	Kind    uint8  `json:"kind"`
	Kingdom uint32 `json:"kingdom,omitempty"`
}

type VehicleV1 struct {
	ID        uint64  `json:"id"`
	Kind      uint8   `json:"kind"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Direction float64 `json:"direction"`
	Speed     float64 `json:"speed"`
}

type WeaponV1 struct {
	ID   uint64  `json:"id"`
	Kind uint8   `json:"kind"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

type KingdomV1 struct {
	ID           uint32  `json:"id"`
	Name         string  `json:"name"`
	Race         string  `json:"race"`
	CenterX      float64 `json:"center_x"`
	CenterY      float64 `json:"center_y"`
	CitizenCount int     `json:"citizen_count"`
	FoundedYear  int     `json:"founded_year"`
}

// WriteSnapshot writes snap as zstd(header JSON line + gob body). The file is
// written to a temporary name first and renamed into place.
func WriteSnapshot(path string, snap SnapshotV1) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := writeFile(tmp, snap); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

func writeFile(path string, snap SnapshotV1) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}

	bw := bufio.NewWriterSize(enc, 256*1024)
	hb, _ := json.Marshal(snap.Header)
	if _, err := bw.Write(hb); err != nil {
		enc.Close()
		return err
	}
	if err := bw.WriteByte('\n'); err != nil {
		enc.Close()
		return err
	}
	if err := gob.NewEncoder(bw).Encode(&snap); err != nil {
		enc.Close()
		return fmt.Errorf("gob encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return err
	}
	return f.Sync()
}

func ReadSnapshot(path string) (SnapshotV1, error) {
	var snap SnapshotV1
	f, err := os.Open(path)
	if err != nil {
		return snap, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return snap, err
	}
	defer dec.Close()

	br := bufio.NewReaderSize(dec, 256*1024)

	// The gob body repeats the header; the line only serves ReadHeader.
	if _, err := br.ReadBytes('\n'); err != nil {
		return snap, fmt.Errorf("header line: %w", err)
	}

	if err := gob.NewDecoder(br).Decode(&snap); err != nil {
		return snap, fmt.Errorf("gob decode: %w", err)
	}
	if snap.Header.Version != Version {
		return snap, fmt.Errorf("unsupported snapshot version %d", snap.Header.Version)
	}
	return snap, nil
}

// ReadHeader decodes only the leading header line.
func ReadHeader(path string) (Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return h, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return h, err
	}
	defer dec.Close()

	line, err := bufio.NewReader(dec).ReadBytes('\n')
	if err != nil {
		return h, fmt.Errorf("header line: %w", err)
	}
	if err := json.Unmarshal(line, &h); err != nil {
		return h, fmt.Errorf("header json: %w", err)
	}
	return h, nil
}
