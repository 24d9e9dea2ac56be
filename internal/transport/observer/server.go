package observer

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"voxelknives.ai/internal/protocol"
	"voxelknives.ai/internal/sim/world"
)

// Server streams per-tick fall tracking to observers. It is registered on the
// world as a TickLogger, so WriteTick runs on the world goroutine and must not block.
type Server struct {
	world *world.World
	log   *log.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu   sync.Mutex
	subs map[string]*subscriber
}

type subscriber struct {
	playerID string
	out      chan []byte
}

func NewServer(w *world.World, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		world: w,
		log:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
		subs: map[string]*subscriber{},
	}
}

type bootstrapResponse struct {
	ProtocolVersion string   `json:"protocol_version"`
	WorldID         string   `json:"world_id"`
	Tick            uint64   `json:"tick"`
	TickRateHz      int      `json:"tick_rate_hz"`
	Height          int      `json:"height"`
	GroundY         int      `json:"ground_y"`
	BlockPalette    []string `json:"block_palette"`
}

func (s *Server) BootstrapHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		cfg := s.world.Config()
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(bootstrapResponse{
			ProtocolVersion: protocol.Version,
			WorldID:         cfg.ID,
			Tick:            s.world.CurrentTick(),
			TickRateHz:      cfg.TickRateHz,
			Height:          cfg.Height,
			GroundY:         cfg.GroundY,
			BlockPalette:    s.world.BlockPalette(),
		})
	}
}

// WriteTick fans one tick out to every subscriber. Slow subscribers lose ticks.
func (s *Server) WriteTick(entry world.TickLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.subs) == 0 {
		return nil
	}
	cache := map[string][]byte{}
	for _, sub := range s.subs {
		b, ok := cache[sub.playerID]
		if !ok {
			msg := TickMessage(entry, sub.playerID)
			if !msg.Empty() {
				var err error
				if b, err = json.Marshal(msg); err != nil {
					return err
				}
			}
			cache[sub.playerID] = b
		}
		if b == nil {
			continue
		}
		select {
		case sub.out <- b:
		default:
		}
	}
	return nil
}

// TickMessage projects a tick log entry onto one player, or everyone when playerID is empty.
func TickMessage(entry world.TickLogEntry, playerID string) protocol.TickMsg {
	msg := protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            entry.Tick,
	}
	match := func(id string) bool { return playerID == "" || id == playerID }
	for _, rep := range entry.Falls {
		for _, id := range rep.Tracked {
			if match(string(id)) {
				msg.Tracked = append(msg.Tracked, string(id))
			}
		}
		for _, l := range rep.Landed {
			if match(string(l.Entity)) {
				msg.Landed = append(msg.Landed, protocol.LandingObs{
					PlayerID:      string(l.Entity),
					FallDamage:    l.FallDamage,
					Extra:         l.Extra,
					IgniteSeconds: l.IgniteSeconds,
					Message:       l.Message,
				})
			}
		}
		for _, id := range rep.Expired {
			if match(string(id)) {
				msg.Expired = append(msg.Expired, string(id))
			}
		}
		for _, id := range rep.Departed {
			if match(string(id)) {
				msg.Departed = append(msg.Departed, string(id))
			}
		}
	}
	for _, ev := range entry.Events {
		if match(ev.PlayerID) {
			msg.Events = append(msg.Events, protocol.EventObs{
				PlayerID: ev.PlayerID,
				Kind:     ev.Kind,
				Cause:    ev.Cause,
				Amount:   ev.Amount,
				HP:       ev.HP,
				Text:     ev.Text,
			})
		}
	}
	return msg
}

func (s *Server) subscribe(playerID string) (string, chan []byte) {
	sid := fmt.Sprintf("O%d", s.nextID.Add(1))
	out := make(chan []byte, 64)
	s.mu.Lock()
	s.subs[sid] = &subscriber{playerID: playerID, out: out}
	s.mu.Unlock()
	return sid, out
}

func (s *Server) resubscribe(sid, playerID string) {
	s.mu.Lock()
	if sub := s.subs[sid]; sub != nil {
		sub.playerID = playerID
	}
	s.mu.Unlock()
}

func (s *Server) unsubscribe(sid string) {
	s.mu.Lock()
	delete(s.subs, sid)
	s.mu.Unlock()
}

// Subscribers is the number of connected observers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Server) WSHandler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}

		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Handshake: must send SUBSCRIBE first.
		_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		sub, ok := decodeSubscribe(msg)
		if !ok {
			_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "expected SUBSCRIBE"), time.Now().Add(time.Second))
			return
		}

		sid, out := s.subscribe(sub.PlayerID)
		defer s.unsubscribe(sid)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine.
		writeErr := make(chan error, 1)
		go func() {
			for {
				select {
				case <-ctx.Done():
					writeErr <- ctx.Err()
					return
				case b := <-out:
					_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
					if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
						writeErr <- err
						return
					}
				}
			}
		}()

		// Reader loop: allow SUBSCRIBE updates.
		for {
			_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			_, msg, err := conn.ReadMessage()
			if err != nil {
				break
			}
			if sub, ok := decodeSubscribe(msg); ok {
				s.resubscribe(sid, sub.PlayerID)
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func decodeSubscribe(msg []byte) (protocol.SubscribeMsg, bool) {
	var sub protocol.SubscribeMsg
	if err := json.Unmarshal(msg, &sub); err != nil {
		return sub, false
	}
	if sub.Type != protocol.TypeSubscribe || sub.ProtocolVersion != protocol.Version {
		return sub, false
	}
	sub.PlayerID = strings.TrimSpace(sub.PlayerID)
	return sub, true
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
