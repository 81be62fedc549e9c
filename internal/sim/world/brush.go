package world

import (
	"fmt"

	"worldbox.ai/internal/sim/terrain"
)

// Paint sets every valid tile in the square brush of half-width size around
// (x, y) to t and returns how many tiles changed. Void tiles are skipped.
// Buildings left on unbuildable terrain are destroyed.
func (w *World) Paint(x, y int, t terrain.TileType, size int) (int, error) {
	if !t.Known() {
		return 0, fmt.Errorf("%w: tile %d", ErrUnknownKind, t)
	}
	if !w.grid.InBounds(x, y) {
		return 0, fmt.Errorf("%w: (%d, %d)", ErrOutOfBounds, x, y)
	}
	if size < 0 {
		size = 0
	}
	changed := 0
	for dy := -size; dy <= size; dy++ {
		for dx := -size; dx <= size; dx++ {
			tx, ty := x+dx, y+dy
			if !w.grid.Valid(tx, ty) {
				continue
			}
			if cur, _ := w.grid.TypeAt(tx, ty); cur == t {
				continue
			}
			if w.grid.SetType(tx, ty, t) {
				changed++
			}
		}
	}
	if changed > 0 {
		w.pruneBuildings()
	}
	return changed, nil
}
