package main

import (
	"errors"

	"worldbox.ai/internal/persistence/indexdb"
	"worldbox.ai/internal/sim/world"
)

// multiTickLogger fans a tick out to the JSONL log and the index. Every sink
// is written even when an earlier one fails; the errors are joined.
type multiTickLogger struct {
	a world.TickLogger
	b *indexdb.SQLiteIndex
}

func (m multiTickLogger) WriteTick(entry world.TickSummary) error {
	var errs []error
	if m.a != nil {
		errs = append(errs, m.a.WriteTick(entry))
	}
	if m.b != nil {
		errs = append(errs, m.b.WriteTick(entry))
	}
	return errors.Join(errs...)
}

type multiHazardLogger struct {
	a world.HazardLogger
	b *indexdb.SQLiteIndex
}

func (m multiHazardLogger) WriteHazard(entry world.HazardRecord) error {
	var errs []error
	if m.a != nil {
		errs = append(errs, m.a.WriteHazard(entry))
	}
	if m.b != nil {
		errs = append(errs, m.b.WriteHazard(entry))
	}
	return errors.Join(errs...)
}
