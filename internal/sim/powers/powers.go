// Package powers is the destruction-power collaborator. It maps power names
// to hazards and enforces a per-power cooldown measured in world ticks.
package powers

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/sim/world"
	"worldbox.ai/pkg/logger"
)

var (
	ErrUnknownPower = errors.New("unknown power")
	ErrCooldown     = errors.New("power on cooldown")
)

// Target is the world a power is applied to.
type Target interface {
	ApplyHazard(h world.Hazard, x, y, radius int) (world.HazardResult, error)
	CurrentTick() uint64
}

type Manager struct {
	cooldowns map[world.Hazard]uint64
	// tick at which each power was last used
	lastUsed map[world.Hazard]uint64

	log *logrus.Entry
}

// NewManager builds a manager from cooldowns in ticks keyed by power name.
// Every hazard is a power; hazards without an entry have no cooldown.
func NewManager(cooldowns map[string]int) (*Manager, error) {
	m := &Manager{
		cooldowns: map[world.Hazard]uint64{},
		lastUsed:  map[world.Hazard]uint64{},
		log:       logger.Component("powers"),
	}
	for name, ticks := range cooldowns {
		h, err := world.ParseHazard(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPower, name)
		}
		if ticks < 0 {
			return nil, fmt.Errorf("power %s: negative cooldown %d", name, ticks)
		}
		m.cooldowns[h] = uint64(ticks)
	}
	return m, nil
}

// Names lists the available powers in name order.
func (m *Manager) Names() []string {
	out := make([]string, 0, len(world.Hazards()))
	for _, h := range world.Hazards() {
		out = append(out, string(h))
	}
	sort.Strings(out)
	return out
}

// Remaining reports how many ticks are left before name may fire again.
func (m *Manager) Remaining(name string, now uint64) (uint64, error) {
	h, err := parse(name)
	if err != nil {
		return 0, err
	}
	return m.remaining(h, now), nil
}

func (m *Manager) remaining(h world.Hazard, now uint64) uint64 {
	last, used := m.lastUsed[h]
	if !used {
		return 0
	}
	ready := last + m.cooldowns[h]
	if now >= ready {
		return 0
	}
	return ready - now
}

// Trigger fires power name at tile (x, y) with the world's default radius.
func (m *Manager) Trigger(t Target, name string, x, y int) (world.HazardResult, error) {
	return m.TriggerRadius(t, name, x, y, 0)
}

func (m *Manager) TriggerRadius(t Target, name string, x, y, radius int) (world.HazardResult, error) {
	h, err := parse(name)
	if err != nil {
		return world.HazardResult{}, err
	}
	now := t.CurrentTick()
	if left := m.remaining(h, now); left > 0 {
		return world.HazardResult{}, fmt.Errorf("%w: %s ready in %d ticks", ErrCooldown, h, left)
	}
	res, err := t.ApplyHazard(h, x, y, radius)
	if err != nil {
		// A rejected hazard does not start the cooldown.
		return world.HazardResult{}, err
	}
	m.lastUsed[h] = now
	m.log.WithFields(logrus.Fields{"power": h, "tick": now, "cooldown": m.cooldowns[h]}).Debug("power used")
	return res, nil
}

// Reset forgets every cooldown, for a regenerated or loaded world.
func (m *Manager) Reset() {
	m.lastUsed = map[world.Hazard]uint64{}
}

func parse(name string) (world.Hazard, error) {
	h, err := world.ParseHazard(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownPower, name)
	}
	return h, nil
}
