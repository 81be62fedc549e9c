package world

import (
	"fmt"

	"worldbox.ai/internal/sim/civ"
	"worldbox.ai/internal/sim/species"
)

// CreatureID is a stable, never reused creature handle. A zero ID refers to
// nothing. Holding an ID never keeps a creature alive; resolve it through
// World.creature, which reports whether the creature still exists.
type CreatureID uint64

type AIMode uint8

const (
	ModeIdle AIMode = iota
	ModeFlee
	ModeHunt
	ModePack
	ModeSeekPack
	ModeReturn
	ModeWander
)

var modeNames = [...]string{"idle", "flee", "hunt", "pack", "seek_pack", "return", "wander"}

func (m AIMode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", uint8(m))
}

// AIState is per-creature scratch state, reset to idle on the first update.
type AIState struct {
	Ready       bool
	Mode        AIMode
	Target      CreatureID
	FleeTimer   int
	WanderTimer int
}

type Creature struct {
	ID        CreatureID
	Kind      species.Kind
	X, Y      float64
	Age       int
	Energy    float64
	Health    float64
	Speed     float64
	Direction float64
	Weapon    WeaponKind
	Kingdom   civ.KingdomID
	AI        AIState
}

func (c *Creature) Alive() bool { return c.Health > 0 }

type ParticleKind uint8

const (
	ParticleFire ParticleKind = iota
	ParticleSpark
	ParticleEmber
	ParticlePlague
	ParticleWave
	ParticleSnow
	ParticleDust
	ParticleCombat
)

var particleNames = [...]string{"fire", "spark", "ember", "plague", "wave", "snow", "dust", "combat"}

func (k ParticleKind) String() string {
	if int(k) < len(particleNames) {
		return particleNames[k]
	}
	return fmt.Sprintf("particle(%d)", uint8(k))
}

type Particle struct {
	X, Y float64
	Kind ParticleKind
	Life int
}

type BuildingKind uint8

const (
	BuildingHouse BuildingKind = iota
	BuildingFarm
	BuildingTower

	numBuildingKinds
)

var buildingNames = [...]string{"house", "farm", "tower"}

func (k BuildingKind) String() string {
	if k < numBuildingKinds {
		return buildingNames[k]
	}
	return fmt.Sprintf("building(%d)", uint8(k))
}

func ParseBuildingKind(s string) (BuildingKind, error) {
	for i, n := range buildingNames {
		if n == s {
			return BuildingKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: building %q", ErrUnknownKind, s)
}

// Building occupies exactly one grass or sand tile.
type Building struct {
	X, Y    int
	Kind    BuildingKind
	Kingdom civ.KingdomID
}

type VehicleKind uint8

const (
	VehicleBoat VehicleKind = iota
	VehicleCart

	numVehicleKinds
)

var vehicleNames = [...]string{"boat", "cart"}

func (k VehicleKind) String() string {
	if k < numVehicleKinds {
		return vehicleNames[k]
	}
	return fmt.Sprintf("vehicle(%d)", uint8(k))
}

func ParseVehicleKind(s string) (VehicleKind, error) {
	for i, n := range vehicleNames {
		if n == s {
			return VehicleKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: vehicle %q", ErrUnknownKind, s)
}

type Vehicle struct {
	ID        uint64
	Kind      VehicleKind
	X, Y      float64
	Direction float64
	Speed     float64
}

func (v *Vehicle) mobility() mobility {
	return mobility{aquatic: v.Kind == VehicleBoat}
}

// WeaponKind zero means unarmed.
type WeaponKind uint8

const (
	WeaponNone WeaponKind = iota
	WeaponSword
	WeaponBow
	WeaponAxe

	numWeaponKinds
)

var weaponNames = [...]string{"none", "sword", "bow", "axe"}

func (k WeaponKind) String() string {
	if k < numWeaponKinds {
		return weaponNames[k]
	}
	return fmt.Sprintf("weapon(%d)", uint8(k))
}

func ParseWeaponKind(s string) (WeaponKind, error) {
	for i, n := range weaponNames {
		if i > 0 && n == s {
			return WeaponKind(i), nil
		}
	}
	return 0, fmt.Errorf("%w: weapon %q", ErrUnknownKind, s)
}

// Weapon lies on the ground until a civilized creature picks it up.
type Weapon struct {
	ID   uint64
	Kind WeaponKind
	X, Y float64
}
