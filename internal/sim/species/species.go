// Package species holds the static creature tables: the kind enumeration,
// per-kind movement traits and the AI behaviour descriptors.
package species

import "fmt"

// Kind enumerates creature types. Values are persisted in snapshots.
type Kind uint8

const (
	Human Kind = iota
	Elf
	Dwarf
	Orc
	Undead
	Wolf
	Deer
	Bear
	Rabbit
	Sheep
	Fish
	Shark
	Eagle

	numKinds
)

// Kinds lists every defined kind in enum order.
func Kinds() []Kind {
	out := make([]Kind, numKinds)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

func (k Kind) Known() bool { return k < numKinds }

func (k Kind) String() string {
	if k.Known() {
		return traits[k].Name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func Parse(name string) (Kind, error) {
	for i := Kind(0); i < numKinds; i++ {
		if traits[i].Name == name {
			return i, nil
		}
	}
	return 0, fmt.Errorf("unknown creature kind %q", name)
}

// Traits are the movement and life-cycle properties of a kind.
type Traits struct {
	Name      string
	BaseSpeed float64
	Flying    bool
	Aquatic   bool
	Grazes    bool
}

// Behavior drives the AI priority rules for a kind.
type Behavior struct {
	Hunts     []Kind
	Fears     []Kind
	Pack      bool
	Territory float64
}

// DefaultTerritory applies to kinds without an explicit radius.
const DefaultTerritory = 15.0

var defaultBehavior = Behavior{Territory: DefaultTerritory}

var traits = [numKinds]Traits{
	Human:  {Name: "human", BaseSpeed: 0.5},
	Elf:    {Name: "elf", BaseSpeed: 0.55},
	Dwarf:  {Name: "dwarf", BaseSpeed: 0.4},
	Orc:    {Name: "orc", BaseSpeed: 0.5},
	Undead: {Name: "undead", BaseSpeed: 0.3},
	Wolf:   {Name: "wolf", BaseSpeed: 0.6},
	Deer:   {Name: "deer", BaseSpeed: 0.5, Grazes: true},
	Bear:   {Name: "bear", BaseSpeed: 0.45},
	Rabbit: {Name: "rabbit", BaseSpeed: 0.5, Grazes: true},
	Sheep:  {Name: "sheep", BaseSpeed: 0.35, Grazes: true},
	Fish:   {Name: "fish", BaseSpeed: 0.4, Aquatic: true},
	Shark:  {Name: "shark", BaseSpeed: 0.5, Aquatic: true},
	Eagle:  {Name: "eagle", BaseSpeed: 0.8, Flying: true},
}

var behaviors = [numKinds]Behavior{
	Human:  {Hunts: []Kind{Deer, Rabbit, Sheep}, Territory: 20},
	Elf:    {Hunts: []Kind{Deer, Rabbit}, Territory: 25},
	Dwarf:  {Hunts: []Kind{Sheep}, Fears: []Kind{Bear}, Territory: 15},
	Orc:    {Hunts: []Kind{Human, Elf, Dwarf, Deer}, Territory: 30},
	Undead: {Hunts: []Kind{Human, Elf, Dwarf, Orc}, Territory: DefaultTerritory},
	Wolf:   {Hunts: []Kind{Deer, Rabbit, Sheep}, Fears: []Kind{Bear}, Pack: true, Territory: 20},
	Deer:   {Fears: []Kind{Wolf, Bear, Human, Orc}, Pack: true, Territory: DefaultTerritory},
	Bear:   {Hunts: []Kind{Deer, Sheep, Fish}, Territory: 25},
	Rabbit: {Fears: []Kind{Wolf, Eagle, Human}, Territory: DefaultTerritory},
	Sheep:  {Fears: []Kind{Wolf, Bear}, Pack: true, Territory: DefaultTerritory},
	Fish:   {Fears: []Kind{Shark}, Pack: true, Territory: DefaultTerritory},
	Shark:  {Hunts: []Kind{Fish}, Territory: 30},
	Eagle:  {Hunts: []Kind{Rabbit, Fish}, Territory: 40},
}

// TraitsOf returns the traits for k. Unknown kinds get a slow, grounded profile.
func TraitsOf(k Kind) Traits {
	if k.Known() {
		return traits[k]
	}
	return Traits{Name: k.String(), BaseSpeed: 0.5}
}

// BehaviorOf returns the behaviour descriptor for k, or the default for kinds
// outside the table. Returned slices must not be modified.
func BehaviorOf(k Kind) Behavior {
	if k.Known() {
		return behaviors[k]
	}
	return defaultBehavior
}

// Hunts reports whether hunter preys on prey.
func Hunts(hunter, prey Kind) bool {
	return contains(BehaviorOf(hunter).Hunts, prey)
}

// Fears reports whether k flees from other.
func Fears(k, other Kind) bool {
	return contains(BehaviorOf(k).Fears, other)
}

func contains(ks []Kind, k Kind) bool {
	for _, v := range ks {
		if v == k {
			return true
		}
	}
	return false
}
