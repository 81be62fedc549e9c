package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/persistence/archive"
	"worldbox.ai/internal/persistence/indexdb"
	persistlog "worldbox.ai/internal/persistence/log"
	"worldbox.ai/internal/persistence/r2s3"
	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/powers"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/tuning"
	"worldbox.ai/internal/sim/world"
	"worldbox.ai/internal/transport/httpapi"
	"worldbox.ai/internal/transport/observer"
	"worldbox.ai/pkg/logger"
)

func main() {
	var (
		addr       = flag.String("addr", ":8080", "http api listen address")
		obsAddr    = flag.String("observer_addr", "127.0.0.1:8081", "observer websocket and metrics listen address")
		worldID    = flag.String("world", "world_1", "world id")
		seed       = flag.Int64("seed", 0, "world seed for a fresh world (0 picks one from the clock)")
		size       = flag.String("size", string(terrain.Medium), "world size: small, medium or large")
		shape      = flag.String("shape", string(terrain.Rectangular), "world shape: rectangular, circular, island or archipelago")
		configDir  = flag.String("configs", "./configs", "config directory")
		dataDir    = flag.String("data", "./data", "runtime data directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		disableDB  = flag.Bool("disable_db", false, "disable the sqlite index (saves, ticks, hazards)")

		snapPath   = flag.String("snapshot", "", "path to snapshot to load (optional)")
		loadLatest = flag.Bool("load_latest_snapshot", true, "load latest snapshot of this world if present (when -snapshot is empty)")
		remoteObs  = flag.Bool("observer_remote", false, "accept observers from non-loopback addresses")
		eraYears   = flag.Int("archive_era_years", 100, "archive the first snapshot of every N-year era (0 disables)")
	)
	flag.Parse()

	logger.Init()
	log := logger.Component("server")

	worldDir := filepath.Join(*dataDir, "worlds", *worldID)
	_ = os.MkdirAll(worldDir, 0o755)

	tp := strings.TrimSpace(*tuningPath)
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Fatal("load tuning")
		}
		log.WithField("path", tp).Warn("tuning not found; using defaults")
		tune = tuning.Defaults()
	}

	// Read model only; the simulation never reads from it.
	idx, err := openRuntimeIndex(worldDir, *disableDB)
	if err != nil {
		log.WithError(err).Fatal("open index")
	}
	if idx != nil {
		defer idx.Close()
		if err := idx.UpsertTuning(tune); err != nil {
			log.WithError(err).Warn("index: upsert tuning")
		}
	}

	mirror, err := buildMirror(*dataDir)
	if err != nil {
		log.WithError(err).Fatal("r2 mirror")
	}
	defer mirror.Close()

	tickLog := persistlog.NewTickLogger(worldDir)
	hazardLog := persistlog.NewHazardLogger(worldDir)
	defer tickLog.Close()
	defer hazardLog.Close()

	worldSeed := *seed
	if worldSeed == 0 {
		worldSeed = time.Now().UnixNano()
	}
	sz, err := terrain.ParseSize(*size)
	if err != nil {
		log.WithError(err).Fatal("flags")
	}
	sh, err := terrain.ParseShape(*shape)
	if err != nil {
		log.WithError(err).Fatal("flags")
	}

	snapCh := make(chan snapshot.SnapshotV1, 2)
	deps := world.Deps{
		TickLogger:   multiTickLogger{a: tickLog, b: idx},
		HazardLogger: multiHazardLogger{a: hazardLog, b: idx},
		SnapshotSink: snapCh,
	}
	w, err := world.New(tune.WorldConfig(*worldID, worldSeed, sz, sh), deps)
	if err != nil {
		log.WithError(err).Fatal("world")
	}

	snapshotToLoad := strings.TrimSpace(*snapPath)
	if snapshotToLoad == "" && *loadLatest {
		snapshotToLoad = latestSnapshot(idx, worldDir, *worldID)
	}
	if snapshotToLoad != "" {
		snap, err := snapshot.ReadSnapshot(snapshotToLoad)
		if err != nil {
			log.WithError(err).Fatal("read snapshot")
		}
		if snap.Header.WorldID != "" && snap.Header.WorldID != *worldID {
			log.Fatalf("snapshot world id mismatch: flag=%s snap=%s", *worldID, snap.Header.WorldID)
		}
		if err := w.ImportSnapshot(snap); err != nil {
			log.WithError(err).Fatal("import snapshot")
		}
		log.WithFields(logrus.Fields{"snapshot": filepath.Base(snapshotToLoad), "tick": w.CurrentTick()}).Info("resumed from snapshot")
	}

	pm, err := powers.NewManager(tune.Powers)
	if err != nil {
		log.WithError(err).Fatal("powers")
	}

	ctx, cancel := signalContext()
	defer cancel()

	// Snapshot writer.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap := <-snapCh:
				snap.Header.SaveID = uuid.NewString()
				path := filepath.Join(worldDir, "snapshots", httpapi.SnapshotFileName(snap.Header))
				if err := snapshot.WriteSnapshot(path, snap); err != nil {
					log.WithError(err).Error("snapshot write")
					continue
				}
				if idx != nil {
					if err := idx.RecordSnapshot(path, snap); err != nil {
						log.WithError(err).Warn("index: record snapshot")
					}
				}
				mirror.Enqueue(path)
				log.WithFields(logrus.Fields{"tick": snap.Header.Tick, "path": path}).Info("snapshot written")
				if era, apath, ok, err := archive.ArchiveEraSnapshot(worldDir, path, snap, *eraYears); err != nil {
					log.WithError(err).Warn("era archive")
				} else if ok {
					mirror.Enqueue(apath)
					log.WithFields(logrus.Fields{"era": era, "year": snap.Year, "path": apath}).Info("era archived")
				}
			}
		}
	}()

	worldDone := make(chan struct{})
	go func() {
		defer close(worldDone)
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Error("world stopped")
		}
	}()

	// Observer feed, health and metrics on a plain net/http mux.
	obs := observer.NewServer(w)
	obs.AllowRemote = *remoteObs
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.HandleFunc("/metrics", metricsHandler(w, obs, idx, mirror))
	mux.HandleFunc("/observer/stats", obs.StatsHandler())
	mux.HandleFunc("/observer/ws", obs.WSHandler())
	obsSrv := &http.Server{
		Addr:              *obsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.WithField("addr", *obsAddr).Info("observer listening")
		if err := obsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("observer server")
			cancel()
		}
	}()

	api := &httpapi.Handler{
		World:   w,
		Powers:  pm,
		SaveDir: filepath.Join(worldDir, "saves"),
		OnSaved: mirror.Enqueue,
		Log:     logger.Component("httpapi"),
	}
	if idx != nil {
		api.Index = idx
	}
	hz := server.Default(server.WithHostPorts(*addr))
	api.RegisterRoutes(hz)
	go func() {
		log.WithField("addr", *addr).Info("api listening")
		if err := hz.Run(); err != nil {
			log.WithError(err).Error("api server")
			cancel()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = hz.Shutdown(shutdownCtx)
	_ = obsSrv.Shutdown(shutdownCtx)
	<-worldDone
	if idx != nil {
		if err := idx.Flush(); err != nil {
			log.WithError(err).Warn("index flush")
		}
	}
	log.Info("stopped")
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

// latestSnapshot prefers the index and falls back to scanning file headers.
func latestSnapshot(idx *indexdb.SQLiteIndex, worldDir, worldID string) string {
	if idx != nil {
		if rec, err := idx.LatestSave(worldID); err == nil {
			if _, err := os.Stat(rec.Path); err == nil {
				return rec.Path
			}
		}
	}
	var best string
	var bestTick uint64
	for _, sub := range []string{"snapshots", "saves"} {
		dir := filepath.Join(worldDir, sub)
		ents, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range ents {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".snap.zst") {
				continue
			}
			path := filepath.Join(dir, e.Name())
			hdr, err := snapshot.ReadHeader(path)
			if err != nil || (hdr.WorldID != "" && hdr.WorldID != worldID) {
				continue
			}
			if best == "" || hdr.Tick > bestTick {
				bestTick = hdr.Tick
				best = path
			}
		}
	}
	return best
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func metricsHandler(w *world.World, obs *observer.Server, idx *indexdb.SQLiteIndex, mirror *r2s3.Mirror) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		var st world.Stats
		if err := w.Do(ctx, func(w *world.World) error { st = w.Stats(); return nil }); err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}

		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")
		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP worldbox_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE worldbox_world_tick gauge\n")
		fmt.Fprintf(rw, "worldbox_world_tick{world=%q} %d\n", st.ID, st.Tick)

		fmt.Fprintf(rw, "# HELP worldbox_world_year Current world year.\n")
		fmt.Fprintf(rw, "# TYPE worldbox_world_year gauge\n")
		fmt.Fprintf(rw, "worldbox_world_year{world=%q} %d\n", st.ID, st.Year)

		fmt.Fprintf(rw, "# HELP worldbox_population Living creatures by kind.\n")
		fmt.Fprintf(rw, "# TYPE worldbox_population gauge\n")
		for _, kind := range sortedKeys(st.Population) {
			fmt.Fprintf(rw, "worldbox_population{world=%q,kind=%q} %d\n", st.ID, kind, st.Population[kind])
		}

		fmt.Fprintf(rw, "# HELP worldbox_entities Entity counts.\n")
		fmt.Fprintf(rw, "# TYPE worldbox_entities gauge\n")
		fmt.Fprintf(rw, "worldbox_entities{world=%q,type=%q} %d\n", st.ID, "buildings", st.Buildings)
		fmt.Fprintf(rw, "worldbox_entities{world=%q,type=%q} %d\n", st.ID, "vehicles", st.Vehicles)
		fmt.Fprintf(rw, "worldbox_entities{world=%q,type=%q} %d\n", st.ID, "weapons", st.Weapons)
		fmt.Fprintf(rw, "worldbox_entities{world=%q,type=%q} %d\n", st.ID, "particles", st.Particles)
		fmt.Fprintf(rw, "worldbox_entities{world=%q,type=%q} %d\n", st.ID, "kingdoms", len(st.Kingdoms))

		fmt.Fprintf(rw, "# HELP worldbox_observers Connected observers.\n")
		fmt.Fprintf(rw, "# TYPE worldbox_observers gauge\n")
		fmt.Fprintf(rw, "worldbox_observers{world=%q} %d\n", st.ID, obs.Active())

		if idx != nil {
			ds := idx.Stats()
			fmt.Fprintf(rw, "# HELP worldbox_index_dropped_total Index writes dropped under load.\n")
			fmt.Fprintf(rw, "# TYPE worldbox_index_dropped_total counter\n")
			fmt.Fprintf(rw, "worldbox_index_dropped_total{kind=%q} %d\n", "tick", ds.DropTickTotal)
			fmt.Fprintf(rw, "worldbox_index_dropped_total{kind=%q} %d\n", "hazard", ds.DropHazardTotal)
		}
		if mirror != nil {
			ms := mirror.Stats()
			fmt.Fprintf(rw, "# HELP worldbox_mirror_files_total Save files handled by the bucket mirror.\n")
			fmt.Fprintf(rw, "# TYPE worldbox_mirror_files_total counter\n")
			fmt.Fprintf(rw, "worldbox_mirror_files_total{result=%q} %d\n", "uploaded", ms.Uploaded)
			fmt.Fprintf(rw, "worldbox_mirror_files_total{result=%q} %d\n", "failed", ms.Failed)
			fmt.Fprintf(rw, "worldbox_mirror_files_total{result=%q} %d\n", "dropped", ms.Dropped)
		}
	}
}
