package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	persistlog "worldbox.ai/internal/persistence/log"
	"worldbox.ai/internal/persistence/snapshot"
	"worldbox.ai/internal/sim/species"
	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/tuning"
	"worldbox.ai/internal/sim/world"
	"worldbox.ai/pkg/logger"
)

func main() {
	logger.Init()
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "saves":
			savesCmd(os.Args[2:])
			return
		case "hazards":
			hazardsCmd(os.Args[2:])
			return
		case "logs":
			logsCmd(os.Args[2:])
			return
		case "inspect":
			inspectCmd(os.Args[2:])
			return
		case "replay":
			replayCmd(os.Args[2:])
			return
		case "state":
			stateCmd(os.Args[2:])
			return
		case "save":
			saveCmd(os.Args[2:])
			return
		case "strike":
			strikeCmd(os.Args[2:])
			return
		}
	}
	listCmd(os.Args[1:])
}

func listCmd(args []string) {
	fs := flag.NewFlagSet("admin", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id (optional)")
	_ = fs.Parse(args)

	base := filepath.Join(*dataDir, "worlds")
	if *worldID != "" {
		base = filepath.Join(base, *worldID)
	}

	entries, err := os.ReadDir(base)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read:", err)
		os.Exit(1)
	}
	for _, e := range entries {
		fmt.Println(e.Name())
	}
}

func logsCmd(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	worldID := fs.String("world", "", "world id")
	kind := fs.String("kind", "ticks", "log kind: ticks or hazards")
	tail := fs.Int("tail", 20, "print only the last n entries (0 for all)")
	_ = fs.Parse(args)

	if strings.TrimSpace(*worldID) == "" {
		fmt.Fprintln(os.Stderr, "missing -world")
		os.Exit(2)
	}
	if *kind != "ticks" && *kind != "hazards" {
		fmt.Fprintln(os.Stderr, "bad -kind:", *kind)
		os.Exit(2)
	}
	lines, err := persistlog.ReadAll(filepath.Join(*dataDir, "worlds", *worldID, *kind), *kind)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read logs:", err)
		os.Exit(1)
	}
	if *tail > 0 && len(lines) > *tail {
		lines = lines[len(lines)-*tail:]
	}
	for _, l := range lines {
		fmt.Println(string(l))
	}
}

type snapshotSummary struct {
	Header     snapshot.Header `json:"header"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Creatures  int             `json:"creatures"`
	Population map[string]int  `json:"population"`
	Buildings  int             `json:"buildings"`
	Vehicles   int             `json:"vehicles"`
	Weapons    int             `json:"weapons"`
	Kingdoms   []string        `json:"kingdoms"`
	Digest     string          `json:"digest,omitempty"`
	Error      string          `json:"error,omitempty"`
}

func summarize(snap snapshot.SnapshotV1) snapshotSummary {
	sum := snapshotSummary{
		Header:     snap.Header,
		Width:      snap.Width,
		Height:     snap.Height,
		Creatures:  len(snap.Creatures),
		Population: map[string]int{},
		Buildings:  len(snap.Buildings),
		Vehicles:   len(snap.Vehicles),
		Weapons:    len(snap.Weapons),
	}
	for _, c := range snap.Creatures {
		sum.Population[species.Kind(c.Kind).String()]++
	}
	for _, k := range snap.Kingdoms {
		sum.Kingdoms = append(sum.Kingdoms, fmt.Sprintf("%s (%s)", k.Name, k.Race))
	}
	sort.Strings(sum.Kingdoms)
	return sum
}

func inspectCmd(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	snapPath := fs.String("snapshot", "", "snapshot path")
	_ = fs.Parse(args)

	if strings.TrimSpace(*snapPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	sum := summarize(snap)

	// Importing validates the snapshot the same way the server would.
	logger.Discard()
	w, err := loadWorld(snap, tuning.Defaults())
	if err != nil {
		sum.Error = err.Error()
	} else {
		sum.Digest = w.StateDigest()
	}
	printJSON(sum)
	if sum.Error != "" {
		os.Exit(1)
	}
}

func loadWorld(snap snapshot.SnapshotV1, tune tuning.Tuning) (*world.World, error) {
	w, err := world.New(tune.WorldConfig(snap.Header.WorldID, snap.Seed, terrain.Small, terrain.Rectangular), world.Deps{})
	if err != nil {
		return nil, err
	}
	if err := w.ImportSnapshot(snap); err != nil {
		return nil, err
	}
	return w, nil
}

// replayCmd steps a snapshot forward twice from scratch and checks that both
// runs agree with each other and with the recorded tick log.
func replayCmd(args []string) {
	fs := flag.NewFlagSet("replay", flag.ExitOnError)
	snapPath := fs.String("snapshot", "", "snapshot path")
	dataDir := fs.String("data", "./data", "runtime data directory (for tick logs)")
	worldID := fs.String("world", "", "world id (defaults to the snapshot's)")
	tuningPath := fs.String("tuning", "", "tuning.yaml the world ran with (default: built-in defaults)")
	ticks := fs.Int("ticks", 600, "ticks to replay")
	_ = fs.Parse(args)

	if strings.TrimSpace(*snapPath) == "" {
		fmt.Fprintln(os.Stderr, "missing -snapshot")
		os.Exit(2)
	}
	tune := tuning.Defaults()
	if p := strings.TrimSpace(*tuningPath); p != "" {
		t, err := tuning.Load(p)
		if err != nil {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = t
	}
	snap, err := snapshot.ReadSnapshot(*snapPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read snapshot:", err)
		os.Exit(1)
	}
	id := strings.TrimSpace(*worldID)
	if id == "" {
		id = snap.Header.WorldID
	}

	logger.Discard()
	a, err := loadWorld(snap, tune)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	b, _ := loadWorld(snap, tune)

	recorded := map[uint64]string{}
	if id != "" {
		lines, err := persistlog.ReadAll(filepath.Join(*dataDir, "worlds", id, "ticks"), "ticks")
		if err == nil {
			for _, l := range lines {
				var s world.TickSummary
				if json.Unmarshal(l, &s) == nil && s.Digest != "" {
					recorded[s.Tick] = s.Digest
				}
			}
		}
	}

	checked, mismatched := 0, 0
	for i := 0; i < *ticks; i++ {
		sum := a.Step()
		b.Step()
		got := a.StateDigest()
		if got != b.StateDigest() {
			fmt.Fprintf(os.Stderr, "nondeterministic at tick %d\n", sum.Tick)
			os.Exit(1)
		}
		if want, ok := recorded[sum.Tick]; ok {
			checked++
			if want != got {
				mismatched++
				if mismatched <= 5 {
					fmt.Fprintf(os.Stderr, "tick %d: digest %s, log has %s\n", sum.Tick, got, want)
				}
			}
		}
	}
	printJSON(map[string]any{
		"from_tick":  snap.Header.Tick,
		"to_tick":    a.CurrentTick(),
		"digest":     a.StateDigest(),
		"checked":    checked,
		"mismatched": mismatched,
	})
	if mismatched > 0 {
		os.Exit(1)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
