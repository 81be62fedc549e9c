package world

import "errors"

var (
	ErrOutOfBounds     = errors.New("coordinates out of bounds")
	ErrTileOccupied    = errors.New("tile already occupied")
	ErrBadTerrain      = errors.New("terrain does not allow this")
	ErrUnknownHazard   = errors.New("unknown hazard")
	ErrUnknownKind     = errors.New("unknown kind")
	ErrCorruptSnapshot = errors.New("corrupt snapshot")
	ErrOutOfRange      = errors.New("value out of range")
)
