package world

// creatureStore keeps creatures in insertion order, which is also ascending
// ID order. Pointers returned by get stay valid until the next add or sweep;
// the tick defers both until every creature has been updated.
type creatureStore struct {
	list  []Creature
	index map[CreatureID]int
}

func newCreatureStore() creatureStore {
	return creatureStore{index: map[CreatureID]int{}}
}

func (s *creatureStore) len() int { return len(s.list) }

func (s *creatureStore) add(c Creature) {
	s.index[c.ID] = len(s.list)
	s.list = append(s.list, c)
}

// get resolves a handle. Creatures already at zero health are reported as
// gone even before the sweep removes them.
func (s *creatureStore) get(id CreatureID) (*Creature, bool) {
	if id == 0 {
		return nil, false
	}
	i, ok := s.index[id]
	if !ok || !s.list[i].Alive() {
		return nil, false
	}
	return &s.list[i], true
}

// sweep removes every creature with health <= 0 and returns how many.
func (s *creatureStore) sweep() int {
	kept := s.list[:0]
	removed := 0
	for _, c := range s.list {
		if !c.Alive() {
			delete(s.index, c.ID)
			removed++
			continue
		}
		kept = append(kept, c)
	}
	if removed == 0 {
		return 0
	}
	for i := len(kept); i < len(s.list); i++ {
		s.list[i] = Creature{}
	}
	s.list = kept
	for i := range s.list {
		s.index[s.list[i].ID] = i
	}
	return removed
}

func (s *creatureStore) reset() {
	s.list = nil
	s.index = map[CreatureID]int{}
}
