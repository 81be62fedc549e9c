package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"worldbox.ai/internal/sim/terrain"
	"worldbox.ai/internal/sim/world"
	"worldbox.ai/pkg/logger"
)

func runningWorld(t *testing.T) *world.World {
	t.Helper()
	logger.Discard()
	w, err := world.New(world.WorldConfig{ID: "obs", Seed: 9, Size: terrain.Small, TickRateHz: 100}, world.Deps{})
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = w.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func readFrame(t *testing.T, c *websocket.Conn) Frame {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var f Frame
	if err := json.Unmarshal(msg, &f); err != nil {
		t.Fatalf("decode %s: %v", msg, err)
	}
	return f
}

func TestWSHandler_StreamsStatsThenTicks(t *testing.T) {
	w := runningWorld(t)
	s := NewServer(w)
	mux := http.NewServeMux()
	mux.HandleFunc("/observe", s.WSHandler())
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/observe"
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	f := readFrame(t, c)
	if f.Type != TypeStats || f.Stats == nil || f.Stats.ID != "obs" {
		t.Fatalf("first frame = %+v", f)
	}

	f = readFrame(t, c)
	if f.Type != TypeTick {
		t.Fatalf("second frame type %s", f.Type)
	}
	var sum world.TickSummary
	if err := json.Unmarshal(f.Summary, &sum); err != nil || sum.Tick == 0 {
		t.Fatalf("summary %s: %v", f.Summary, err)
	}

	if err := c.WriteJSON(Frame{Type: TypePing}); err != nil {
		t.Fatalf("ping: %v", err)
	}
	for i := 0; i < 500; i++ {
		f = readFrame(t, c)
		if f.Type == TypeStats {
			break
		}
	}
	if f.Type != TypeStats || f.Stats.Tick == 0 {
		t.Fatalf("no stats after ping: %+v", f)
	}
	if s.Active() != 1 {
		t.Fatalf("active=%d", s.Active())
	}
}

func TestStatsHandler(t *testing.T) {
	w := runningWorld(t)
	s := NewServer(w)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	s.StatsHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("code=%d", rec.Code)
	}
	var st world.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil || st.Size != "small" {
		t.Fatalf("stats %s: %v", rec.Body.String(), err)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/stats", nil)
	req.RemoteAddr = "10.1.2.3:5555"
	s.StatsHandler()(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote code=%d", rec.Code)
	}

	s.AllowRemote = true
	rec = httptest.NewRecorder()
	s.StatsHandler()(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("allowed remote code=%d", rec.Code)
	}

	rec = httptest.NewRecorder()
	s.StatsHandler()(rec, httptest.NewRequest(http.MethodPost, "/stats", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("post code=%d", rec.Code)
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	for addr, want := range map[string]bool{
		"127.0.0.1:80": true,
		"[::1]:80":     true,
		"10.0.0.1:80":  false,
		"garbage":      false,
	} {
		if got := isLoopbackRemote(addr); got != want {
			t.Fatalf("%s: got %v", addr, got)
		}
	}
}

func TestWSHandler_IdleObserverKeptAlive(t *testing.T) {
	w := runningWorld(t)
	if err := w.Do(context.Background(), func(w *world.World) error { w.SetPaused(true); return nil }); err != nil {
		t.Fatalf("pause: %v", err)
	}
	s := NewServer(w)
	s.PongWait = 200 * time.Millisecond
	srv := httptest.NewServer(s.WSHandler())
	defer srv.Close()

	c, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer c.Close()

	var pinged atomic.Int32
	c.SetPingHandler(func(data string) error {
		pinged.Add(1)
		return c.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	if f := readFrame(t, c); f.Type != TypeStats {
		t.Fatalf("first frame %+v", f)
	}

	// Stay silent for several pong windows, then ask for stats.
	go func() {
		time.Sleep(3 * s.PongWait)
		_ = c.WriteJSON(Frame{Type: TypePing})
	}()
	f := readFrame(t, c)
	if f.Type != TypeStats {
		t.Fatalf("frame after idle %+v", f)
	}
	if pinged.Load() < 2 {
		t.Fatalf("server pinged %d times", pinged.Load())
	}
}
