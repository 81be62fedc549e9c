package httpapi

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"

	"worldbox.ai/internal/persistence/indexdb"
	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/powers"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world"
	"worldbox.ai/pkg/logger"
)

type memIndex struct {
	saves []indexdb.SaveRecord
}

func (m *memIndex) RecordSnapshot(path string, snap snapshot.SnapshotV1) error {
	m.saves = append(m.saves, indexdb.SaveRecord{
		SaveID:  snap.Header.SaveID,
		WorldID: snap.Header.WorldID,
		Tick:    snap.Header.Tick,
		Path:    path,
	})
	return nil
}

func (m *memIndex) LatestSave(worldID string) (indexdb.SaveRecord, error) {
	for i := len(m.saves) - 1; i >= 0; i-- {
		if worldID == "" || m.saves[i].WorldID == worldID {
			return m.saves[i], nil
		}
	}
	return indexdb.SaveRecord{}, indexdb.ErrNoSave
}

func (m *memIndex) Save(id string) (indexdb.SaveRecord, error) {
	for _, r := range m.saves {
		if r.SaveID == id {
			return r, nil
		}
	}
	return indexdb.SaveRecord{}, indexdb.ErrNoSave
}

func (m *memIndex) ListSaves(limit int) ([]indexdb.SaveRecord, error) {
	return m.saves, nil
}

func newHandler(t *testing.T) (*Handler, *memIndex) {
	t.Helper()
	logger.Discard()
	w, err := world.New(world.WorldConfig{ID: "api", Seed: 3, Size: terrain.Small}, world.Deps{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	w.SetPaused(true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	pm, err := powers.NewManager(map[string]int{"lightning": 60})
	if err != nil {
		t.Fatalf("powers: %v", err)
	}
	idx := &memIndex{}
	n := 0
	h := &Handler{
		World:   w,
		Powers:  pm,
		Index:   idx,
		SaveDir: t.TempDir(),
		NewID: func() string {
			n++
			return "save-" + string(rune('0'+n))
		},
		Log: logger.Component("httpapi"),
	}
	return h, idx
}

func call(fn app.HandlerFunc, uri, body string) *app.RequestContext {
	ctx := &app.RequestContext{}
	ctx.Request.SetRequestURI(uri)
	if body != "" {
		ctx.Request.SetBody([]byte(body))
	}
	fn(context.Background(), ctx)
	return ctx
}

func decode(t *testing.T, ctx *app.RequestContext, out any) {
	t.Helper()
	if err := json.Unmarshal(ctx.Response.Body(), out); err != nil {
		t.Fatalf("decode %s: %v", ctx.Response.Body(), err)
	}
}

func errorCode(t *testing.T, ctx *app.RequestContext) string {
	t.Helper()
	var body map[string]map[string]any
	decode(t, ctx, &body)
	code, _ := body["error"]["code"].(string)
	return code
}

func expectError(t *testing.T, ctx *app.RequestContext, status int, code string) {
	t.Helper()
	if got := ctx.Response.StatusCode(); got != status {
		t.Fatalf("status=%d want=%d body=%s", got, status, ctx.Response.Body())
	}
	if got := errorCode(t, ctx); got != code {
		t.Fatalf("code=%q want=%q", got, code)
	}
}

func TestHandler_EditTools(t *testing.T) {
	h, _ := newHandler(t)

	ctx := call(h.clear, "/api/world/clear", "")
	var st world.Stats
	decode(t, ctx, &st)
	if ctx.Response.StatusCode() != consts.StatusOK || st.Creatures != 0 || st.Terrain["grass"] == 0 {
		t.Fatalf("clear: %d %+v", ctx.Response.StatusCode(), st)
	}

	ctx = call(h.brush, "/api/world/brush", `{"x":10,"y":10,"tile":"sand","size":1}`)
	var painted map[string]int
	decode(t, ctx, &painted)
	if painted["painted"] != 9 {
		t.Fatalf("brush: %s", ctx.Response.Body())
	}
	expectError(t, call(h.brush, "/api/world/brush", `{"x":10,"y":10,"tile":"cheese","size":1}`), consts.StatusBadRequest, "bad_request")
	expectError(t, call(h.brush, "/api/world/brush", `{"x":10,`), consts.StatusBadRequest, "invalid_json")

	ctx = call(h.building, "/api/world/building", `{"kind":"house","x":10,"y":10}`)
	if ctx.Response.StatusCode() != consts.StatusOK {
		t.Fatalf("building: %s", ctx.Response.Body())
	}
	expectError(t, call(h.building, "/api/world/building", `{"kind":"house","x":10,"y":10}`), consts.StatusConflict, "tile_occupied")
	expectError(t, call(h.building, "/api/world/building", `{"kind":"castle","x":12,"y":12}`), consts.StatusBadRequest, "unknown_kind")

	ctx = call(h.spawn, "/api/world/spawn", `{"kind":"wolf","x":30,"y":20,"count":2}`)
	var spawned struct {
		IDs    []uint64 `json:"ids"`
		Placed int      `json:"placed"`
	}
	decode(t, ctx, &spawned)
	if spawned.Placed != 2 || len(spawned.IDs) != 2 {
		t.Fatalf("spawn: %s", ctx.Response.Body())
	}
	expectError(t, call(h.spawn, "/api/world/spawn", `{"kind":"dragon","x":30,"y":20}`), consts.StatusBadRequest, "unknown_kind")
	expectError(t, call(h.spawn, "/api/world/spawn", `{"kind":"wolf","x":30,"y":20,"count":51}`), consts.StatusBadRequest, "bad_request")
	expectError(t, call(h.spawn, "/api/world/spawn", `{"kind":"wolf","x":-5,"y":20}`), consts.StatusBadRequest, "out_of_bounds")

	ctx = call(h.weapon, "/api/world/weapon", `{"kind":"sword","x":40,"y":20}`)
	if ctx.Response.StatusCode() != consts.StatusOK {
		t.Fatalf("weapon: %s", ctx.Response.Body())
	}
	expectError(t, call(h.vehicle, "/api/world/vehicle", `{"kind":"rocket","x":40,"y":20}`), consts.StatusBadRequest, "unknown_kind")

	ctx = call(h.inspect, "/api/world/inspect?x=10&y=10", "")
	var info world.TileInfo
	decode(t, ctx, &info)
	if info.Type != "sand" || !info.Valid {
		t.Fatalf("inspect: %s", ctx.Response.Body())
	}
	expectError(t, call(h.inspect, "/api/world/inspect?x=999&y=1", ""), consts.StatusBadRequest, "out_of_bounds")
	expectError(t, call(h.inspect, "/api/world/inspect", ""), consts.StatusBadRequest, "bad_request")
}

func TestHandler_HazardCooldown(t *testing.T) {
	h, _ := newHandler(t)
	call(h.clear, "/api/world/clear", "")

	// An oversized radius is rejected without starting the cooldown.
	expectError(t, call(h.hazard, "/api/world/hazard", `{"hazard":"lightning","x":30,"y":20,"radius":40000}`), consts.StatusBadRequest, "bad_request")

	ctx := call(h.hazard, "/api/world/hazard", `{"hazard":"lightning","x":30,"y":20,"radius":4}`)
	var res world.HazardResult
	decode(t, ctx, &res)
	if ctx.Response.StatusCode() != consts.StatusOK || res.Hazard != world.Lightning || res.Tiles != 25 {
		t.Fatalf("lightning: %s", ctx.Response.Body())
	}
	expectError(t, call(h.hazard, "/api/world/hazard", `{"hazard":"lightning","x":30,"y":20}`), consts.StatusTooManyRequests, "power_cooldown")
	expectError(t, call(h.hazard, "/api/world/hazard", `{"hazard":"flood","x":30,"y":20}`), consts.StatusBadRequest, "unknown_hazard")

	ctx = call(h.powers, "/api/world/powers", "")
	var ps []powerStatus
	decode(t, ctx, &ps)
	found := false
	for _, p := range ps {
		if p.Name == "lightning" {
			found = true
			if p.Remaining != 60 {
				t.Fatalf("lightning remaining %d", p.Remaining)
			}
		}
	}
	if !found || len(ps) != len(world.Hazards()) {
		t.Fatalf("powers: %s", ctx.Response.Body())
	}

	// Regenerating resets cooldowns.
	ctx = call(h.generate, "/api/world/generate", `{"seed":8,"shape":"island"}`)
	var st world.Stats
	decode(t, ctx, &st)
	if st.Seed != 8 || st.Shape != "island" || st.Size != "small" {
		t.Fatalf("generate: %s", ctx.Response.Body())
	}
	ctx = call(h.hazard, "/api/world/hazard", `{"hazard":"lightning","x":32,"y":20}`)
	if ctx.Response.StatusCode() != consts.StatusOK {
		t.Fatalf("lightning after regenerate: %s", ctx.Response.Body())
	}
	expectError(t, call(h.generate, "/api/world/generate", `{"seed":1,"size":"huge"}`), consts.StatusBadRequest, "bad_request")
}

func TestHandler_StepSpeedPause(t *testing.T) {
	h, _ := newHandler(t)

	ctx := call(h.step, "/api/world/step", `{"ticks":3}`)
	var sum world.TickSummary
	decode(t, ctx, &sum)
	if sum.Tick != 3 {
		t.Fatalf("step: %s", ctx.Response.Body())
	}
	expectError(t, call(h.step, "/api/world/step", `{"ticks":5000}`), consts.StatusBadRequest, "bad_request")

	expectError(t, call(h.speed, "/api/world/speed", `{"speed":0}`), consts.StatusBadRequest, "bad_request")
	if ctx := call(h.speed, "/api/world/speed", `{"speed":2}`); ctx.Response.StatusCode() != consts.StatusOK {
		t.Fatalf("speed: %s", ctx.Response.Body())
	}
	if ctx := call(h.pause, "/api/world/pause", `{"paused":true}`); ctx.Response.StatusCode() != consts.StatusOK {
		t.Fatalf("pause: %s", ctx.Response.Body())
	}

	ctx = call(h.stats, "/api/world/stats", "")
	var st world.Stats
	decode(t, ctx, &st)
	if st.Tick != 3 || st.Speed != 2 || !st.Paused {
		t.Fatalf("stats: %+v", st)
	}
}

func TestHandler_SaveLoad(t *testing.T) {
	h, idx := newHandler(t)

	expectError(t, call(h.load, "/api/world/load", ""), consts.StatusNotFound, "no_save")

	call(h.step, "/api/world/step", `{"ticks":3}`)
	ctx := call(h.save, "/api/world/save", "")
	var rec indexdb.SaveRecord
	decode(t, ctx, &rec)
	if rec.SaveID != "save-1" || rec.Tick != 3 || rec.WorldID != "api" {
		t.Fatalf("save: %s", ctx.Response.Body())
	}
	if _, err := os.Stat(rec.Path); err != nil {
		t.Fatalf("snapshot file: %v", err)
	}
	if len(idx.saves) != 1 || idx.saves[0].Path != rec.Path {
		t.Fatalf("index: %+v", idx.saves)
	}
	hdr, err := snapshot.ReadHeader(rec.Path)
	if err != nil || hdr.SaveID != "save-1" {
		t.Fatalf("header %+v %v", hdr, err)
	}

	call(h.step, "/api/world/step", `{"ticks":4}`)
	ctx = call(h.load, "/api/world/load", "")
	var st world.Stats
	decode(t, ctx, &st)
	if ctx.Response.StatusCode() != consts.StatusOK || st.Tick != 3 {
		t.Fatalf("load latest: %s", ctx.Response.Body())
	}

	ctx = call(h.load, "/api/world/load", `{"save_id":"save-1"}`)
	if ctx.Response.StatusCode() != consts.StatusOK {
		t.Fatalf("load by id: %s", ctx.Response.Body())
	}
	expectError(t, call(h.load, "/api/world/load", `{"save_id":"missing"}`), consts.StatusNotFound, "no_save")

	ctx = call(h.saves, "/api/world/saves?limit=5", "")
	var list []indexdb.SaveRecord
	decode(t, ctx, &list)
	if len(list) != 1 {
		t.Fatalf("saves: %s", ctx.Response.Body())
	}
}

func TestSnapshotFileName(t *testing.T) {
	if got := SnapshotFileName(snapshot.Header{WorldID: "w", Tick: 12, SaveID: "abc"}); got != "w-12-abc.snap.zst" {
		t.Fatalf("got %s", got)
	}
	if got := SnapshotFileName(snapshot.Header{Tick: 5}); got != "world-5.snap.zst" {
		t.Fatalf("got %s", got)
	}
}
