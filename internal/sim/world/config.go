package world

import "worldbox.ai/internal/sim/terrain"

type WorldConfig struct {
	ID         string
	Seed       int64
	Size       terrain.Size
	Shape      terrain.Shape
	TickRateHz int

	// Speed is the number of ticks per frame in Run; fractions accumulate.
	Speed float64

	TicksPerYear int
	MaxAge       int

	UpkeepEnergy     float64
	GrazeEnergy      float64
	WaterDrain       float64
	LavaDamage       float64
	ReproduceEnergy  float64
	ReproduceChance  float64
	ReproduceCost    float64
	HazardRadius     int
	PlacementRetries int

	// Kingdom auto-formation.
	ClusterRadius  float64
	KingdomMinSize int
	KingdomSpacing float64

	// SpawnGroupScale multiplies the initial seeding group counts; 0 uses
	// the world size default.
	SpawnGroupScale int

	// Operational parameters.
	SnapshotEveryTicks int
}

func (c *WorldConfig) applyDefaults() {
	if c.Size == "" {
		c.Size = terrain.Medium
	}
	if c.Shape == "" {
		c.Shape = terrain.Rectangular
	}
	if c.TickRateHz <= 0 {
		c.TickRateHz = 30
	}
	if c.Speed <= 0 {
		c.Speed = 1
	}
	if c.TicksPerYear <= 0 {
		c.TicksPerYear = 60
	}
	if c.MaxAge <= 0 {
		c.MaxAge = 1000
	}
	if c.UpkeepEnergy <= 0 {
		c.UpkeepEnergy = 0.1
	}
	if c.GrazeEnergy <= 0 {
		c.GrazeEnergy = 0.15
	}
	if c.WaterDrain <= 0 {
		c.WaterDrain = 0.2
	}
	if c.LavaDamage <= 0 {
		c.LavaDamage = 10
	}
	if c.ReproduceEnergy <= 0 {
		c.ReproduceEnergy = 150
	}
	if c.ReproduceChance <= 0 {
		c.ReproduceChance = 0.001
	}
	if c.ReproduceCost <= 0 {
		c.ReproduceCost = 50
	}
	if c.HazardRadius <= 0 {
		c.HazardRadius = 10
	}
	if c.PlacementRetries <= 0 {
		c.PlacementRetries = 10
	}
	if c.ClusterRadius <= 0 {
		c.ClusterRadius = 30
	}
	if c.KingdomMinSize <= 0 {
		c.KingdomMinSize = 5
	}
	if c.KingdomSpacing <= 0 {
		c.KingdomSpacing = 40
	}
	if c.SnapshotEveryTicks < 0 {
		c.SnapshotEveryTicks = 0
	}
}

func (c WorldConfig) groupScale() int {
	if c.SpawnGroupScale > 0 {
		return c.SpawnGroupScale
	}
	switch c.Size {
	case terrain.Small:
		return 1
	case terrain.Large:
		return 3
	default:
		return 2
	}
}
