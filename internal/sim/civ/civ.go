// Package civ is the default civilization collaborator: the race table and
// an in-memory ledger of kingdoms. The simulation core only creates kingdoms
// and assigns creatures to them; everything else here is bookkeeping.
package civ

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/sim/species"
	"worldbox.ai/pkg/logger"
)

type KingdomID uint32

// Race describes a creature kind as a potential civilization.
type Race struct {
	Name      string
	Kind      species.Kind
	Civilized bool
	BaseSpeed float64
	Culture   string
}

type Kingdom struct {
	ID           KingdomID
	Name         string
	Race         string
	CenterX      float64
	CenterY      float64
	CitizenCount int
	FoundedYear  int
}

func DefaultRaces() []Race {
	return []Race{
		{Name: "dwarf", Kind: species.Dwarf, Civilized: true, BaseSpeed: species.TraitsOf(species.Dwarf).BaseSpeed, Culture: "forge"},
		{Name: "elf", Kind: species.Elf, Civilized: true, BaseSpeed: species.TraitsOf(species.Elf).BaseSpeed, Culture: "grove"},
		{Name: "human", Kind: species.Human, Civilized: true, BaseSpeed: species.TraitsOf(species.Human).BaseSpeed, Culture: "crown"},
		{Name: "orc", Kind: species.Orc, Civilized: true, BaseSpeed: species.TraitsOf(species.Orc).BaseSpeed, Culture: "horde"},
		{Name: "undead", Kind: species.Undead, Civilized: false, BaseSpeed: species.TraitsOf(species.Undead).BaseSpeed, Culture: "crypt"},
	}
}

var kingdomTitles = map[string][]string{
	"forge": {"Hold", "Deep", "Anvil"},
	"grove": {"Glade", "Bough", "Spire"},
	"crown": {"Kingdom", "Realm", "March"},
	"horde": {"Warband", "Clan", "Camp"},
}

// Ledger keeps kingdoms ordered by ID.
type Ledger struct {
	races    []Race
	kingdoms []Kingdom
	nextID   KingdomID
	year     int

	log *logrus.Entry
}

func NewLedger() *Ledger {
	return NewLedgerWithRaces(DefaultRaces())
}

func NewLedgerWithRaces(races []Race) *Ledger {
	rs := append([]Race(nil), races...)
	sort.Slice(rs, func(i, j int) bool { return rs[i].Name < rs[j].Name })
	return &Ledger{
		races:  rs,
		nextID: 1,
		log:    logger.Component("civ"),
	}
}

// Races returns the race table ordered by name.
func (l *Ledger) Races() []Race {
	return append([]Race(nil), l.races...)
}

// RaceOf finds the race for a creature kind.
func (l *Ledger) RaceOf(k species.Kind) (Race, bool) {
	for _, r := range l.races {
		if r.Kind == k {
			return r, true
		}
	}
	return Race{}, false
}

func (l *Ledger) Kingdoms() []Kingdom {
	return append([]Kingdom(nil), l.kingdoms...)
}

func (l *Ledger) Kingdom(id KingdomID) (Kingdom, bool) {
	if i, ok := l.find(id); ok {
		return l.kingdoms[i], true
	}
	return Kingdom{}, false
}

func (l *Ledger) CreateKingdom(x, y float64, race string) KingdomID {
	id := l.nextID
	l.nextID++
	k := Kingdom{
		ID:          id,
		Name:        l.kingdomName(id, race),
		Race:        race,
		CenterX:     x,
		CenterY:     y,
		FoundedYear: l.year,
	}
	l.kingdoms = append(l.kingdoms, k)
	l.log.WithFields(logrus.Fields{"kingdom": id, "race": race, "x": x, "y": y}).Info("kingdom founded")
	return id
}

func (l *Ledger) AssignCreature(creatureID uint64, id KingdomID) {
	if i, ok := l.find(id); ok {
		l.kingdoms[i].CitizenCount++
	}
}

// Update refreshes citizen counts from a census and dissolves kingdoms
// that no longer have citizens.
func (l *Ledger) Update(year int, census map[KingdomID]int) {
	l.year = year
	kept := l.kingdoms[:0]
	for _, k := range l.kingdoms {
		k.CitizenCount = census[k.ID]
		if k.CitizenCount == 0 {
			l.log.WithFields(logrus.Fields{"kingdom": k.ID, "name": k.Name, "year": year}).Info("kingdom dissolved")
			continue
		}
		kept = append(kept, k)
	}
	l.kingdoms = kept
}

// Restore replaces the ledger contents with persisted kingdoms.
func (l *Ledger) Restore(year int, ks []Kingdom) {
	l.kingdoms = append([]Kingdom(nil), ks...)
	sort.Slice(l.kingdoms, func(i, j int) bool { return l.kingdoms[i].ID < l.kingdoms[j].ID })
	l.year = year
	l.nextID = 1
	for _, k := range l.kingdoms {
		if k.ID >= l.nextID {
			l.nextID = k.ID + 1
		}
	}
}

func (l *Ledger) Reset() {
	l.kingdoms = nil
	l.nextID = 1
	l.year = 0
}

func (l *Ledger) find(id KingdomID) (int, bool) {
	i := sort.Search(len(l.kingdoms), func(i int) bool { return l.kingdoms[i].ID >= id })
	if i < len(l.kingdoms) && l.kingdoms[i].ID == id {
		return i, true
	}
	return 0, false
}

func (l *Ledger) kingdomName(id KingdomID, race string) string {
	culture := ""
	for _, r := range l.races {
		if r.Name == race {
			culture = r.Culture
		}
	}
	titles := kingdomTitles[culture]
	if len(titles) == 0 {
		return fmt.Sprintf("%s settlement %d", race, id)
	}
	return fmt.Sprintf("%s %s %d", race, titles[int(id)%len(titles)], id)
}
