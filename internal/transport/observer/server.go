package observer

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"worldbox.ai/internal/sim/world"
	"worldbox.ai/pkg/logger"
)

const (
	TypeStats = "STATS"
	TypeTick  = "TICK"
	TypePing  = "PING"
)

// Frame is one message on the observer socket.
type Frame struct {
	Type    string          `json:"type"`
	Stats   *world.Stats    `json:"stats,omitempty"`
	Summary json.RawMessage `json:"summary,omitempty"`
}

type Server struct {
	world *world.World
	log   *logrus.Entry

	// AllowRemote lifts the loopback-only restriction.
	AllowRemote bool
	// Buffer is the number of summaries held per observer before the
	// oldest is dropped.
	Buffer int
	// PongWait is how long a connection may stay silent. The server pings
	// at nine tenths of it and every pong extends the read deadline.
	PongWait time.Duration

	upgrader websocket.Upgrader
	active   atomic.Int64
}

func NewServer(w *world.World) *Server {
	return &Server{
		world:  w,
		log:    logger.Component("observer"),
		Buffer:   8,
		PongWait: 60 * time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Active is the number of connected observers.
func (s *Server) Active() int64 { return s.active.Load() }

func (s *Server) stats(ctx context.Context) (world.Stats, error) {
	var st world.Stats
	err := s.world.Do(ctx, func(w *world.World) error {
		st = w.Stats()
		return nil
	})
	return st, err
}

// StatsHandler serves the current world stats as JSON.
func (s *Server) StatsHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		st, err := s.stats(r.Context())
		if err != nil {
			http.Error(rw, err.Error(), http.StatusServiceUnavailable)
			return
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(st)
	}
}

// WSHandler streams a STATS frame on connect and a TICK frame per tick.
// Clients may send PING to get a fresh STATS frame. The server sends
// websocket pings and drops clients that stay silent, pongs included, for
// PongWait.
func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !s.AllowRemote && !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		var (
			subID uint64
			feed  <-chan []byte
			first world.Stats
		)
		err = s.world.Do(ctx, func(w *world.World) error {
			subID, feed = w.Subscribe(s.Buffer)
			first = w.Stats()
			return nil
		})
		if err != nil {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "world stopped"), time.Now().Add(time.Second))
			return
		}
		defer func() {
			// Bounded: the world may already be gone.
			uctx, ucancel := context.WithTimeout(context.Background(), time.Second)
			defer ucancel()
			_ = s.world.Do(uctx, func(w *world.World) error {
				w.Unsubscribe(subID)
				return nil
			})
		}()

		s.active.Add(1)
		defer s.active.Add(-1)
		s.log.WithField("remote", r.RemoteAddr).Info("observer connected")

		pings := make(chan struct{}, 1)
		pongWait := s.PongWait
		if pongWait <= 0 {
			pongWait = 60 * time.Second
		}

		// Writer goroutine. It also pings, so idle observers that answer
		// with pongs stay connected.
		writeErr := make(chan error, 1)
		go func() {
			ticker := time.NewTicker(pongWait * 9 / 10)
			defer ticker.Stop()
			if err := writeFrame(conn, Frame{Type: TypeStats, Stats: &first}); err != nil {
				writeErr <- err
				return
			}
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case <-ticker.C:
					if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
						writeErr <- err
						return
					}
				case b, ok := <-feed:
					if !ok {
						writeErr <- nil
						return
					}
					if err := writeFrame(conn, Frame{Type: TypeTick, Summary: b}); err != nil {
						writeErr <- err
						return
					}
				case <-pings:
					st, err := s.stats(ctx)
					if err != nil {
						writeErr <- err
						return
					}
					if err := writeFrame(conn, Frame{Type: TypeStats, Stats: &st}); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: only PING is understood. Any message or pong extends
		// the deadline.
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		go func() {
			for {
				_, msg, err := conn.ReadMessage()
				if err != nil {
					cancel()
					return
				}
				_ = conn.SetReadDeadline(time.Now().Add(pongWait))
				var f Frame
				if err := json.Unmarshal(msg, &f); err != nil || f.Type != TypePing {
					continue
				}
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}()

		err = <-writeErr
		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
		s.log.WithField("remote", r.RemoteAddr).WithError(err).Info("observer disconnected")
	}
}

func writeFrame(conn *websocket.Conn, f Frame) error {
	b, err := json.Marshal(f)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteMessage(websocket.TextMessage, b)
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
