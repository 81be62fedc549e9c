package world

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const MaxSpeed = 10

type command struct {
	fn   func(*World) error
	done chan error
}

// runState is owned by the Run goroutine.
type runState struct {
	cmds   chan command
	speed  float64
	paused bool

	// fractional ticks carried to the next frame
	accum float64

	observers map[uint64]chan []byte
	nextObsID uint64
}

func (r *runState) init(speed float64) {
	r.cmds = make(chan command, 64)
	r.speed = speed
	r.observers = map[uint64]chan []byte{}
}

// Run drives the world from a ticker until ctx is done. Each frame executes
// speed ticks back to back; commands from Do run between frames.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer w.closeObservers()

	w.log.WithField("tick_rate_hz", w.cfg.TickRateHz).Info("world loop started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case cmd := <-w.run.cmds:
			cmd.done <- cmd.fn(w)
		case <-ticker.C:
			w.frame()
		}
	}
}

// frame runs the ticks owed for one rendered frame and returns how many ran.
func (w *World) frame() int {
	if w.run.paused {
		return 0
	}
	w.run.accum += w.run.speed
	n := int(w.run.accum)
	w.run.accum -= float64(n)
	for i := 0; i < n; i++ {
		w.broadcast(w.Step())
	}
	return n
}

// Do runs fn on the world goroutine between ticks and waits for its result.
// It blocks until Run picks the command up or ctx is done.
func (w *World) Do(ctx context.Context, fn func(*World) error) error {
	cmd := command{fn: fn, done: make(chan error, 1)}
	select {
	case w.run.cmds <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *World) Paused() bool { return w.run.paused }
func (w *World) Speed() float64 { return w.run.speed }
func (w *World) SetPaused(p bool) { w.run.paused = p }

func (w *World) SetSpeed(s float64) error {
	if !(s > 0) || s > MaxSpeed {
		return fmt.Errorf("speed %v outside (0, %d]", s, MaxSpeed)
	}
	w.run.speed = s
	w.run.accum = 0
	return nil
}

// Subscribe registers an observer that receives a JSON TickSummary per tick.
// Slow observers lose the oldest pending summary.
func (w *World) Subscribe(buf int) (uint64, <-chan []byte) {
	if buf <= 0 {
		buf = 1
	}
	w.run.nextObsID++
	id := w.run.nextObsID
	ch := make(chan []byte, buf)
	w.run.observers[id] = ch
	return id, ch
}

func (w *World) Unsubscribe(id uint64) {
	if ch, ok := w.run.observers[id]; ok {
		delete(w.run.observers, id)
		close(ch)
	}
}

func (w *World) closeObservers() {
	for id := range w.run.observers {
		w.Unsubscribe(id)
	}
}

func (w *World) broadcast(sum TickSummary) {
	if len(w.run.observers) == 0 {
		return
	}
	b, err := json.Marshal(sum)
	if err != nil {
		return
	}
	for _, ch := range w.run.observers {
		sendLatest(ch, b)
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
