package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/tuning"
	"worldbox.ai/internal/sim/world"
)

// ErrNoSave is returned when the index has no matching save.
var ErrNoSave = errors.New("no save recorded")

// SQLiteIndex is a read model of saves, ticks and hazards. All database work
// runs on one writer goroutine; tick and hazard writes are fire-and-forget,
// everything else waits for its result.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropTick   atomic.Uint64
	dropHazard atomic.Uint64
}

type reqKind int

const (
	reqTick reqKind = iota + 1
	reqHazard
	reqCall
)

type req struct {
	kind reqKind

	tick   world.TickSummary
	hazard world.HazardRecord

	call func(tx *sql.Tx) error
	done chan error
}

// Stats counts writes dropped because the writer fell behind.
type Stats struct {
	DropTickTotal   uint64
	DropHazardTotal uint64
}

// SaveRecord is the index row for one written snapshot file.
type SaveRecord struct {
	SaveID     string `json:"save_id"`
	WorldID    string `json:"world_id"`
	Tick       uint64 `json:"tick"`
	Year       int    `json:"year"`
	Seed       int64  `json:"seed"`
	Size       string `json:"size"`
	Shape      string `json:"shape"`
	Path       string `json:"path"`
	Creatures  int    `json:"creatures"`
	Buildings  int    `json:"buildings"`
	Kingdoms   int    `json:"kingdoms"`
	RecordedAt string `json:"recorded_at"`
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS saves (
			save_id TEXT PRIMARY KEY,
			world_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			year INTEGER NOT NULL,
			seed INTEGER NOT NULL,
			size TEXT NOT NULL,
			shape TEXT NOT NULL,
			path TEXT NOT NULL,
			creatures INTEGER NOT NULL,
			buildings INTEGER NOT NULL,
			kingdoms INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_saves_world_recorded ON saves(world_id, recorded_at);`,
		`CREATE TABLE IF NOT EXISTS ticks (
			tick INTEGER PRIMARY KEY,
			year INTEGER NOT NULL,
			digest TEXT NOT NULL,
			creatures INTEGER NOT NULL,
			births INTEGER NOT NULL,
			deaths INTEGER NOT NULL,
			kingdoms INTEGER NOT NULL,
			raw_json TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS hazards (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			hazard TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			radius INTEGER NOT NULL,
			tiles INTEGER NOT NULL,
			killed INTEGER NOT NULL,
			damaged INTEGER NOT NULL,
			buildings INTEGER NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_hazards_kind_tick ON hazards(hazard, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) Stats() Stats {
	return Stats{
		DropTickTotal:   s.dropTick.Load(),
		DropHazardTotal: s.dropHazard.Load(),
	}
}

func (s *SQLiteIndex) WriteTick(entry world.TickSummary) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqTick, tick: entry}:
	default:
		// Drop if the indexer falls behind; JSONL logs remain the source of truth.
		s.dropTick.Add(1)
	}
	return nil
}

func (s *SQLiteIndex) WriteHazard(entry world.HazardRecord) error {
	if s == nil || s.closed.Load() {
		return nil
	}
	select {
	case s.ch <- req{kind: reqHazard, hazard: entry}:
	default:
		s.dropHazard.Add(1)
	}
	return nil
}

// call runs fn in the writer goroutine inside its transaction and waits.
func (s *SQLiteIndex) call(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s == nil || s.closed.Load() {
		return fmt.Errorf("index closed")
	}
	r := req{kind: reqCall, call: fn, done: make(chan error, 1)}
	select {
	case s.ch <- r:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-r.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every write queued so far is committed.
func (s *SQLiteIndex) Flush() error {
	return s.call(context.Background(), func(*sql.Tx) error { return nil })
}

// RecordSnapshot indexes a snapshot file written at path.
func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) error {
	rec := SaveRecord{
		SaveID:     snap.Header.SaveID,
		WorldID:    snap.Header.WorldID,
		Tick:       snap.Header.Tick,
		Year:       snap.Year,
		Seed:       snap.Seed,
		Size:       snap.Size,
		Shape:      snap.Shape,
		Path:       path,
		Creatures:  len(snap.Creatures),
		Buildings:  len(snap.Buildings),
		Kingdoms:   len(snap.Kingdoms),
		RecordedAt: time.Now().UTC().Format(recordedAtLayout),
	}
	if rec.SaveID == "" {
		return fmt.Errorf("snapshot at %s has no save id", path)
	}
	return s.call(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT OR REPLACE INTO saves(save_id,world_id,tick,year,seed,size,shape,path,creatures,buildings,kingdoms,recorded_at)
			VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
			rec.SaveID, rec.WorldID, int64(rec.Tick), rec.Year, rec.Seed, rec.Size, rec.Shape, rec.Path,
			rec.Creatures, rec.Buildings, rec.Kingdoms, rec.RecordedAt)
		return err
	})
}

// Fixed width so recorded_at sorts as text.
const recordedAtLayout = "2006-01-02T15:04:05.000000000Z"

const saveColumns = `save_id,world_id,tick,year,seed,size,shape,path,creatures,buildings,kingdoms,recorded_at`

func scanSave(row interface{ Scan(...any) error }) (SaveRecord, error) {
	var r SaveRecord
	var tick int64
	err := row.Scan(&r.SaveID, &r.WorldID, &tick, &r.Year, &r.Seed, &r.Size, &r.Shape, &r.Path,
		&r.Creatures, &r.Buildings, &r.Kingdoms, &r.RecordedAt)
	r.Tick = uint64(tick)
	return r, err
}

// LatestSave returns the most recently recorded save of worldID, or of any
// world when worldID is empty.
func (s *SQLiteIndex) LatestSave(worldID string) (SaveRecord, error) {
	var rec SaveRecord
	err := s.call(context.Background(), func(tx *sql.Tx) error {
		q := `SELECT ` + saveColumns + ` FROM saves`
		args := []any{}
		if worldID != "" {
			q += ` WHERE world_id = ?`
			args = append(args, worldID)
		}
		q += ` ORDER BY recorded_at DESC, rowid DESC LIMIT 1`
		var err error
		rec, err = scanSave(tx.QueryRow(q, args...))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRecord{}, ErrNoSave
	}
	return rec, err
}

func (s *SQLiteIndex) Save(saveID string) (SaveRecord, error) {
	var rec SaveRecord
	err := s.call(context.Background(), func(tx *sql.Tx) error {
		var err error
		rec, err = scanSave(tx.QueryRow(`SELECT `+saveColumns+` FROM saves WHERE save_id = ?`, saveID))
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return SaveRecord{}, fmt.Errorf("%w: %s", ErrNoSave, saveID)
	}
	return rec, err
}

// ListSaves returns up to limit saves, newest first.
func (s *SQLiteIndex) ListSaves(limit int) ([]SaveRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []SaveRecord
	err := s.call(context.Background(), func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT `+saveColumns+` FROM saves ORDER BY recorded_at DESC, rowid DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			r, err := scanSave(rows)
			if err != nil {
				return err
			}
			out = append(out, r)
		}
		return rows.Err()
	})
	return out, err
}

// Hazards returns up to limit hazard records, newest first.
func (s *SQLiteIndex) Hazards(limit int) ([]world.HazardRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []world.HazardRecord
	err := s.call(context.Background(), func(tx *sql.Tx) error {
		rows, err := tx.Query(`SELECT raw_json FROM hazards ORDER BY tick DESC, seq DESC LIMIT ?`, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var raw string
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			var rec world.HazardRecord
			if err := json.Unmarshal([]byte(raw), &rec); err != nil {
				return err
			}
			out = append(out, rec)
		}
		return rows.Err()
	})
	return out, err
}

// TickDigest returns the logged state digest for tick.
func (s *SQLiteIndex) TickDigest(tick uint64) (string, bool, error) {
	var digest string
	err := s.call(context.Background(), func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT digest FROM ticks WHERE tick = ?`, int64(tick)).Scan(&digest)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return digest, err == nil, err
}

// UpsertTuning stores the tuning in effect, as canonical JSON with its digest.
func (s *SQLiteIndex) UpsertTuning(t tuning.Tuning) error {
	b, err := json.Marshal(t)
	if err != nil {
		return err
	}
	sum := sha256.Sum256(b)
	return s.call(context.Background(), func(tx *sql.Tx) error {
		for k, v := range map[string]string{
			"schema_version": "1",
			"tuning":         string(b),
			"tuning_digest":  hex.EncodeToString(sum[:]),
		} {
			if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES(?,?)`, k, v); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteIndex) Meta(key string) (string, bool, error) {
	var v string
	err := s.call(context.Background(), func(tx *sql.Tx) error {
		return tx.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&v)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	return v, err == nil, err
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertTick, _ := s.db.Prepare(`INSERT OR REPLACE INTO ticks(tick,year,digest,creatures,births,deaths,kingdoms,raw_json) VALUES(?,?,?,?,?,?,?,?)`)
	insertHazard, _ := s.db.Prepare(`INSERT OR REPLACE INTO hazards(tick,seq,hazard,x,y,radius,tiles,killed,damaged,buildings,raw_json) VALUES(?,?,?,?,?,?,?,?,?,?,?)`)
	defer func() {
		if insertTick != nil {
			_ = insertTick.Close()
		}
		if insertHazard != nil {
			_ = insertHazard.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 2000
		commitMaxWait = 2 * time.Second

		lastHazardTick uint64
		hazardSeq      int
	)

	begin := func() error {
		if tx != nil {
			return nil
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
		return nil
	}
	commit := func() error {
		if tx == nil {
			return nil
		}
		err := tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
		return err
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			_ = commit()
		}
	}

	idle := time.NewTicker(commitMaxWait)
	defer idle.Stop()

	for {
		var r req
		select {
		case rr, ok := <-s.ch:
			if !ok {
				_ = commit()
				return
			}
			r = rr
		case <-idle.C:
			flushIfNeeded()
			continue
		}

		if err := begin(); err != nil {
			if r.done != nil {
				r.done <- err
			}
			time.Sleep(50 * time.Millisecond)
			continue
		}

		switch r.kind {
		case reqTick:
			b, _ := json.Marshal(r.tick)
			if insertTick != nil {
				if _, err := tx.Stmt(insertTick).Exec(
					int64(r.tick.Tick),
					r.tick.Year,
					r.tick.Digest,
					r.tick.Creatures,
					r.tick.Births,
					r.tick.Deaths,
					r.tick.Kingdoms,
					string(b),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqHazard:
			h := r.hazard
			if h.Tick != lastHazardTick {
				lastHazardTick = h.Tick
				hazardSeq = 0
			}
			seq := hazardSeq
			hazardSeq++
			raw, _ := json.Marshal(h)
			if insertHazard != nil {
				if _, err := tx.Stmt(insertHazard).Exec(
					int64(h.Tick), seq, string(h.Hazard),
					h.X, h.Y, h.Radius,
					h.Tiles, h.Killed, h.Damaged, h.Buildings,
					string(raw),
				); err != nil {
					rollback()
					continue
				}
				opCount++
			}

		case reqCall:
			// Synchronous requests see everything queued before them and
			// run in their own transaction.
			if err := commit(); err != nil {
				r.done <- err
				continue
			}
			if err := begin(); err != nil {
				r.done <- err
				continue
			}
			err := r.call(tx)
			if err != nil {
				rollback()
			} else {
				err = commit()
			}
			r.done <- err
			continue
		}
		flushIfNeeded()
	}
}
