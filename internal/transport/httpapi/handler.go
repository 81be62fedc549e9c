package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/persistence/indexdb"
	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/powers"
	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world"
	"worldbox.ai/pkg/logger"
)

// MaxStepTicks bounds a single /step request.
const MaxStepTicks = 1000

var ErrBadRequest = errors.New("bad request")

// SaveIndex is the part of the index DB the API needs.
type SaveIndex interface {
	RecordSnapshot(path string, snap snapshot.SnapshotV1) error
	LatestSave(worldID string) (indexdb.SaveRecord, error)
	Save(saveID string) (indexdb.SaveRecord, error)
	ListSaves(limit int) ([]indexdb.SaveRecord, error)
}

type Handler struct {
	World  *world.World
	Powers *powers.Manager
	// Index is optional; without it save works but load and listing do not.
	Index   SaveIndex
	SaveDir string
	// OnSaved is called with the path of every written save file.
	OnSaved func(path string)

	NewID func() string
	Log   *logrus.Entry
}

func (h *Handler) RegisterRoutes(s *server.Hertz) {
	if h.NewID == nil {
		h.NewID = uuid.NewString
	}
	if h.Log == nil {
		h.Log = logger.Component("httpapi")
	}
	s.Use(corsMiddleware(), h.accessLog())

	api := s.Group("/api/world")
	api.POST("/generate", h.generate)
	api.POST("/clear", h.clear)
	api.POST("/step", h.step)
	api.POST("/hazard", h.hazard)
	api.GET("/powers", h.powers)
	api.POST("/spawn", h.spawn)
	api.POST("/vehicle", h.vehicle)
	api.POST("/weapon", h.weapon)
	api.POST("/building", h.building)
	api.POST("/brush", h.brush)
	api.POST("/save", h.save)
	api.POST("/load", h.load)
	api.GET("/saves", h.saves)
	api.GET("/stats", h.stats)
	api.GET("/inspect", h.inspect)
	api.POST("/pause", h.pause)
	api.POST("/speed", h.speed)
}

type generateRequest struct {
	Seed  int64  `json:"seed"`
	Size  string `json:"size"`
	Shape string `json:"shape"`
}

type stepRequest struct {
	Ticks int `json:"ticks"`
}

type hazardRequest struct {
	Hazard string `json:"hazard"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Radius int    `json:"radius,omitempty"`
}

type placeRequest struct {
	Kind  string  `json:"kind"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Count int     `json:"count,omitempty"`
}

type brushRequest struct {
	X    int    `json:"x"`
	Y    int    `json:"y"`
	Tile string `json:"tile"`
	Size int    `json:"size"`
}

type loadRequest struct {
	SaveID string `json:"save_id,omitempty"`
}

type pauseRequest struct {
	Paused bool `json:"paused"`
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

func (h *Handler) generate(c context.Context, ctx *app.RequestContext) {
	var body generateRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	var st world.Stats
	err := h.World.Do(c, func(w *world.World) error {
		cfg := w.Config()
		size, shape := cfg.Size, cfg.Shape
		if body.Size != "" {
			size = terrain.Size(body.Size)
		}
		if body.Shape != "" {
			shape = terrain.Shape(body.Shape)
		}
		if err := w.Generate(body.Seed, size, shape); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		h.resetPowers()
		st = w.Stats()
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, st)
}

func (h *Handler) clear(c context.Context, ctx *app.RequestContext) {
	var st world.Stats
	err := h.World.Do(c, func(w *world.World) error {
		w.Clear()
		h.resetPowers()
		st = w.Stats()
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, st)
}

func (h *Handler) step(c context.Context, ctx *app.RequestContext) {
	var body stepRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if body.Ticks <= 0 {
		body.Ticks = 1
	}
	if body.Ticks > MaxStepTicks {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", fmt.Sprintf("ticks must be at most %d", MaxStepTicks))
		return
	}
	var last world.TickSummary
	err := h.World.Do(c, func(w *world.World) error {
		for i := 0; i < body.Ticks; i++ {
			last = w.Step()
		}
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, last)
}

func (h *Handler) hazard(c context.Context, ctx *app.RequestContext) {
	var body hazardRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	var res world.HazardResult
	err := h.World.Do(c, func(w *world.World) error {
		if limit := w.MaxHazardRadius(); body.Radius > limit {
			return fmt.Errorf("%w: radius %d above %d", ErrBadRequest, body.Radius, limit)
		}
		var err error
		if h.Powers != nil {
			res, err = h.Powers.TriggerRadius(w, body.Hazard, body.X, body.Y, body.Radius)
			return err
		}
		hz, err := world.ParseHazard(body.Hazard)
		if err != nil {
			return err
		}
		res, err = w.ApplyHazard(hz, body.X, body.Y, body.Radius)
		return err
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, res)
}

type powerStatus struct {
	Name      string `json:"name"`
	Remaining uint64 `json:"remaining_ticks"`
}

func (h *Handler) powers(c context.Context, ctx *app.RequestContext) {
	if h.Powers == nil {
		ctx.JSON(consts.StatusOK, []powerStatus{})
		return
	}
	var out []powerStatus
	err := h.World.Do(c, func(w *world.World) error {
		now := w.CurrentTick()
		for _, name := range h.Powers.Names() {
			rem, err := h.Powers.Remaining(name, now)
			if err != nil {
				return err
			}
			out = append(out, powerStatus{Name: name, Remaining: rem})
		}
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, out)
}

func (h *Handler) spawn(c context.Context, ctx *app.RequestContext) {
	var body placeRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	kind, err := species.Parse(body.Kind)
	if err != nil {
		writeError(ctx, fmt.Errorf("%w: %v", world.ErrUnknownKind, err))
		return
	}
	if body.Count > world.MaxSpawnCount {
		writeError(ctx, fmt.Errorf("%w: count %d above %d", ErrBadRequest, body.Count, world.MaxSpawnCount))
		return
	}
	if body.Count <= 0 {
		body.Count = 1
	}
	var ids []world.CreatureID
	err = h.World.Do(c, func(w *world.World) error {
		var err error
		ids, err = w.SpawnCreature(kind, body.X, body.Y, body.Count)
		return err
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	if ids == nil {
		ids = []world.CreatureID{}
	}
	ctx.JSON(consts.StatusOK, map[string]any{"ids": ids, "placed": len(ids)})
}

func (h *Handler) vehicle(c context.Context, ctx *app.RequestContext) {
	var body placeRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	kind, err := world.ParseVehicleKind(body.Kind)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var id uint64
	err = h.World.Do(c, func(w *world.World) error {
		var err error
		id, err = w.SpawnVehicle(kind, body.X, body.Y)
		return err
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"id": id})
}

func (h *Handler) weapon(c context.Context, ctx *app.RequestContext) {
	var body placeRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	kind, err := world.ParseWeaponKind(body.Kind)
	if err != nil {
		writeError(ctx, err)
		return
	}
	var id uint64
	err = h.World.Do(c, func(w *world.World) error {
		var err error
		id, err = w.DropWeapon(kind, body.X, body.Y)
		return err
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"id": id})
}

func (h *Handler) building(c context.Context, ctx *app.RequestContext) {
	var body placeRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	kind, err := world.ParseBuildingKind(body.Kind)
	if err != nil {
		writeError(ctx, err)
		return
	}
	err = h.World.Do(c, func(w *world.World) error {
		return w.PlaceBuilding(kind, int(body.X), int(body.Y))
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"kind": kind.String(), "x": int(body.X), "y": int(body.Y)})
}

func (h *Handler) brush(c context.Context, ctx *app.RequestContext) {
	var body brushRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	tile, err := terrain.ParseTileType(body.Tile)
	if err != nil {
		writeError(ctx, fmt.Errorf("%w: %v", ErrBadRequest, err))
		return
	}
	var n int
	err = h.World.Do(c, func(w *world.World) error {
		var err error
		n, err = w.Paint(body.X, body.Y, tile, body.Size)
		return err
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"painted": n})
}

func (h *Handler) save(c context.Context, ctx *app.RequestContext) {
	var snap snapshot.SnapshotV1
	err := h.World.Do(c, func(w *world.World) error {
		snap = w.ExportSnapshot()
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	snap.Header.SaveID = h.NewID()
	path := filepath.Join(h.SaveDir, SnapshotFileName(snap.Header))
	if err := snapshot.WriteSnapshot(path, snap); err != nil {
		writeError(ctx, err)
		return
	}
	rec := indexdb.SaveRecord{
		SaveID:    snap.Header.SaveID,
		WorldID:   snap.Header.WorldID,
		Tick:      snap.Header.Tick,
		Year:      snap.Year,
		Seed:      snap.Seed,
		Size:      snap.Size,
		Shape:     snap.Shape,
		Path:      path,
		Creatures: len(snap.Creatures),
		Buildings: len(snap.Buildings),
		Kingdoms:  len(snap.Kingdoms),
	}
	if h.Index != nil {
		if err := h.Index.RecordSnapshot(path, snap); err != nil {
			writeError(ctx, err)
			return
		}
	}
	if h.OnSaved != nil {
		h.OnSaved(path)
	}
	h.Log.WithFields(logrus.Fields{"save_id": rec.SaveID, "tick": rec.Tick, "path": path}).Info("world saved")
	ctx.JSON(consts.StatusOK, rec)
}

// SnapshotFileName names a save file after its world, tick and save id.
func SnapshotFileName(hdr snapshot.Header) string {
	name := hdr.WorldID
	if name == "" {
		name = "world"
	}
	if hdr.SaveID != "" {
		return fmt.Sprintf("%s-%d-%s.snap.zst", name, hdr.Tick, hdr.SaveID)
	}
	return fmt.Sprintf("%s-%d.snap.zst", name, hdr.Tick)
}

func (h *Handler) load(c context.Context, ctx *app.RequestContext) {
	var body loadRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if h.Index == nil {
		writeError(ctx, indexdb.ErrNoSave)
		return
	}
	var (
		rec indexdb.SaveRecord
		err error
	)
	if body.SaveID != "" {
		rec, err = h.Index.Save(body.SaveID)
	} else {
		var worldID string
		if err := h.World.Do(c, func(w *world.World) error { worldID = w.ID(); return nil }); err != nil {
			writeError(ctx, err)
			return
		}
		rec, err = h.Index.LatestSave(worldID)
	}
	if err != nil {
		writeError(ctx, err)
		return
	}
	snap, err := snapshot.ReadSnapshot(rec.Path)
	if err != nil {
		writeError(ctx, fmt.Errorf("%w: %v", world.ErrCorruptSnapshot, err))
		return
	}
	var st world.Stats
	err = h.World.Do(c, func(w *world.World) error {
		if err := w.ImportSnapshot(snap); err != nil {
			return err
		}
		h.resetPowers()
		st = w.Stats()
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	h.Log.WithFields(logrus.Fields{"save_id": rec.SaveID, "tick": rec.Tick}).Info("world loaded")
	ctx.JSON(consts.StatusOK, st)
}

func (h *Handler) saves(c context.Context, ctx *app.RequestContext) {
	if h.Index == nil {
		ctx.JSON(consts.StatusOK, []indexdb.SaveRecord{})
		return
	}
	limit, _ := strconv.Atoi(string(ctx.Query("limit")))
	list, err := h.Index.ListSaves(limit)
	if err != nil {
		writeError(ctx, err)
		return
	}
	if list == nil {
		list = []indexdb.SaveRecord{}
	}
	ctx.JSON(consts.StatusOK, list)
}

func (h *Handler) stats(c context.Context, ctx *app.RequestContext) {
	var st world.Stats
	err := h.World.Do(c, func(w *world.World) error {
		st = w.Stats()
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, st)
}

func (h *Handler) inspect(c context.Context, ctx *app.RequestContext) {
	x, errX := strconv.Atoi(strings.TrimSpace(string(ctx.Query("x"))))
	y, errY := strconv.Atoi(strings.TrimSpace(string(ctx.Query("y"))))
	if errX != nil || errY != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", "x and y are required integers")
		return
	}
	var (
		info world.TileInfo
		ok   bool
	)
	err := h.World.Do(c, func(w *world.World) error {
		info, ok = w.Inspect(x, y)
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	if !ok {
		writeError(ctx, world.ErrOutOfBounds)
		return
	}
	ctx.JSON(consts.StatusOK, info)
}

func (h *Handler) pause(c context.Context, ctx *app.RequestContext) {
	var body pauseRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	err := h.World.Do(c, func(w *world.World) error {
		w.SetPaused(body.Paused)
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"paused": body.Paused})
}

func (h *Handler) speed(c context.Context, ctx *app.RequestContext) {
	var body speedRequest
	if err := decodeJSON(ctx, &body); err != nil {
		writeErrorBody(ctx, consts.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	err := h.World.Do(c, func(w *world.World) error {
		if err := w.SetSpeed(body.Speed); err != nil {
			return fmt.Errorf("%w: %v", ErrBadRequest, err)
		}
		return nil
	})
	if err != nil {
		writeError(ctx, err)
		return
	}
	ctx.JSON(consts.StatusOK, map[string]any{"speed": body.Speed})
}

// resetPowers runs on the world goroutine.
func (h *Handler) resetPowers() {
	if h.Powers != nil {
		h.Powers.Reset()
	}
}

func decodeJSON(ctx *app.RequestContext, out any) error {
	body := ctx.Request.Body()
	if len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}

func writeError(ctx *app.RequestContext, err error) {
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, world.ErrOutOfRange):
		writeErrorBody(ctx, consts.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, world.ErrOutOfBounds):
		writeErrorBody(ctx, consts.StatusBadRequest, "out_of_bounds", err.Error())
	case errors.Is(err, world.ErrUnknownKind):
		writeErrorBody(ctx, consts.StatusBadRequest, "unknown_kind", err.Error())
	case errors.Is(err, world.ErrUnknownHazard), errors.Is(err, powers.ErrUnknownPower):
		writeErrorBody(ctx, consts.StatusBadRequest, "unknown_hazard", err.Error())
	case errors.Is(err, world.ErrTileOccupied):
		writeErrorBody(ctx, consts.StatusConflict, "tile_occupied", err.Error())
	case errors.Is(err, world.ErrBadTerrain):
		writeErrorBody(ctx, consts.StatusConflict, "bad_terrain", err.Error())
	case errors.Is(err, powers.ErrCooldown):
		writeErrorBody(ctx, consts.StatusTooManyRequests, "power_cooldown", err.Error())
	case errors.Is(err, indexdb.ErrNoSave):
		writeErrorBody(ctx, consts.StatusNotFound, "no_save", err.Error())
	case errors.Is(err, world.ErrCorruptSnapshot):
		writeErrorBody(ctx, consts.StatusUnprocessableEntity, "corrupt_snapshot", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeErrorBody(ctx, consts.StatusServiceUnavailable, "world_unavailable", err.Error())
	default:
		writeErrorBody(ctx, consts.StatusInternalServerError, "internal_error", "internal error")
	}
}

func writeErrorBody(ctx *app.RequestContext, status int, code, message string) {
	ctx.JSON(status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
