package tuning

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world"
)

//go:embed tuning.schema.json
var schemaJSON []byte

const schemaURL = "tuning.schema.json"

type Tuning struct {
	TickRateHz         int     `yaml:"tick_rate_hz"`
	TicksPerYear       int     `yaml:"ticks_per_year"`
	SnapshotEveryTicks int     `yaml:"snapshot_every_ticks"`
	Speed              float64 `yaml:"speed"`

	Life     Life           `yaml:"life"`
	World    WorldParams    `yaml:"world"`
	Kingdoms Kingdoms       `yaml:"kingdoms"`
	Powers   map[string]int `yaml:"powers"`
}

type Life struct {
	MaxAge          int     `yaml:"max_age"`
	UpkeepEnergy    float64 `yaml:"upkeep_energy"`
	GrazeEnergy     float64 `yaml:"graze_energy"`
	WaterDrain      float64 `yaml:"water_drain"`
	LavaDamage      float64 `yaml:"lava_damage"`
	ReproduceEnergy float64 `yaml:"reproduce_energy"`
	ReproduceChance float64 `yaml:"reproduce_chance"`
	ReproduceCost   float64 `yaml:"reproduce_cost"`
}

type WorldParams struct {
	HazardRadius     int `yaml:"hazard_radius"`
	PlacementRetries int `yaml:"placement_retries"`
	SpawnGroupScale  int `yaml:"spawn_group_scale"`
}

type Kingdoms struct {
	ClusterRadius float64 `yaml:"cluster_radius"`
	MinSize       int     `yaml:"min_size"`
	Spacing       float64 `yaml:"spacing"`
}

// Defaults mirrors configs/tuning.yaml.
func Defaults() Tuning {
	return Tuning{
		TickRateHz:         30,
		TicksPerYear:       60,
		SnapshotEveryTicks: 1800,
		Speed:              1,
		Life: Life{
			MaxAge:          1000,
			UpkeepEnergy:    0.1,
			GrazeEnergy:     0.15,
			WaterDrain:      0.2,
			LavaDamage:      10,
			ReproduceEnergy: 150,
			ReproduceChance: 0.001,
			ReproduceCost:   50,
		},
		World: WorldParams{HazardRadius: 10, PlacementRetries: 10},
		Kingdoms: Kingdoms{
			ClusterRadius: 30,
			MinSize:       5,
			Spacing:       40,
		},
		Powers: DefaultCooldowns(),
	}
}

// DefaultCooldowns are the power cooldowns in ticks.
func DefaultCooldowns() map[string]int {
	return map[string]int{
		"meteor":     300,
		"plague":     600,
		"lightning":  60,
		"volcano":    900,
		"tsunami":    600,
		"blizzard":   300,
		"earthquake": 450,
		"wildfire":   300,
	}
}

// Load reads a tuning file, validates it against the embedded schema and
// lays it over Defaults, so a partial file only overrides what it names.
func Load(path string) (Tuning, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Tuning{}, err
	}
	return Parse(raw)
}

func Parse(raw []byte) (Tuning, error) {
	if err := Validate(raw); err != nil {
		return Tuning{}, err
	}
	t := Defaults()
	powers := t.Powers
	t.Powers = nil
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return Tuning{}, fmt.Errorf("tuning.yaml: %w", err)
	}
	for k, v := range t.Powers {
		powers[k] = v
	}
	t.Powers = powers
	return t, nil
}

// Validate checks a YAML document against the tuning schema.
func Validate(raw []byte) error {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	// The schema validator wants JSON values.
	js, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(js))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}

	schema, err := compileSchema()
	if err != nil {
		return err
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("tuning.yaml: %w", err)
	}
	return nil
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("tuning schema: %w", err)
	}
	s, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("tuning schema: %w", err)
	}
	return s, nil
}

// WorldConfig turns the tuning into a world configuration for the given
// identity. Zero values are filled in by the world itself.
func (t Tuning) WorldConfig(id string, seed int64, size terrain.Size, shape terrain.Shape) world.WorldConfig {
	return world.WorldConfig{
		ID:                 id,
		Seed:               seed,
		Size:               size,
		Shape:              shape,
		TickRateHz:         t.TickRateHz,
		Speed:              t.Speed,
		TicksPerYear:       t.TicksPerYear,
		MaxAge:             t.Life.MaxAge,
		UpkeepEnergy:       t.Life.UpkeepEnergy,
		GrazeEnergy:        t.Life.GrazeEnergy,
		WaterDrain:         t.Life.WaterDrain,
		LavaDamage:         t.Life.LavaDamage,
		ReproduceEnergy:    t.Life.ReproduceEnergy,
		ReproduceChance:    t.Life.ReproduceChance,
		ReproduceCost:      t.Life.ReproduceCost,
		HazardRadius:       t.World.HazardRadius,
		PlacementRetries:   t.World.PlacementRetries,
		ClusterRadius:      t.Kingdoms.ClusterRadius,
		KingdomMinSize:     t.Kingdoms.MinSize,
		KingdomSpacing:     t.Kingdoms.Spacing,
		SpawnGroupScale:    t.World.SpawnGroupScale,
		SnapshotEveryTicks: t.SnapshotEveryTicks,
	}
}
