package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"voxelknives.ai/internal/protocol"
	"voxelknives.ai/internal/sim/catalogs"
	"voxelknives.ai/internal/sim/world"
	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

func startWorld(t *testing.T, setup ...func(*world.World)) *world.World {
	t.Helper()
	cats, err := catalogs.Load("../../../configs")
	if err != nil {
		t.Fatalf("catalogs: %v", err)
	}
	w, err := world.New(world.WorldConfig{ID: "test", TickRateHz: 50, Height: 64, BoundaryR: 64}, cats)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	logger := log.New(&bytes.Buffer{}, "", 0)
	w.SetLogger(logger)
	rule, err := knives.NewRule(w.Host(), knives.DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("rule: %v", err)
	}
	w.AddRule(rule)
	for _, fn := range setup {
		fn(w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return w
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readType(t *testing.T, conn *websocket.Conn, want string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read %s: %v", want, err)
		}
		base, err := protocol.DecodeBase(msg)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if base.Type == want {
			return msg
		}
	}
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: "alice"}); err != nil {
		t.Fatalf("hello: %v", err)
	}
	var welcome protocol.WelcomeMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeWelcome), &welcome); err != nil {
		t.Fatalf("welcome: %v", err)
	}
	return welcome
}

func TestServer_SwordDropProducesStatus(t *testing.T) {
	w := startWorld(t)
	srv := httptest.NewServer(NewServer(w, log.New(&bytes.Buffer{}, "", 0)).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	welcome := hello(t, conn)
	if welcome.PlayerID == "" || welcome.WorldParams.WorldID != "test" {
		t.Fatalf("welcome: %+v", welcome)
	}

	act := protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Commands: []protocol.CommandReq{
			{Type: protocol.CmdEquip, Hand: protocol.HandMain, Item: "DIAMOND_SWORD"},
			{Type: protocol.CmdTeleport, Pos: [3]int{0, 11, 0}},
		},
	}
	if err := conn.WriteJSON(act); err != nil {
		t.Fatalf("act: %v", err)
	}

	var status protocol.StatusMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeStatus), &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.PlayerID != welcome.PlayerID || status.Text != "Don't run with knives! You took 7 HP extra damage." {
		t.Fatalf("status: %+v", status)
	}
}

func TestServer_BadActGetsError(t *testing.T) {
	w := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	hello(t, conn)
	if err := conn.WriteJSON(map[string]any{"type": "ACT", "protocol_version": "0.1"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var e protocol.ErrorMsg
	if err := json.Unmarshal(readType(t, conn, protocol.TypeError), &e); err != nil {
		t.Fatalf("error msg: %v", err)
	}
	if e.Code != protocol.ErrProtoBadRequest {
		t.Fatalf("code: %s", e.Code)
	}
}

func TestServer_RejectsMissingHello(t *testing.T) {
	w := startWorld(t)
	srv := httptest.NewServer(NewServer(w, nil).Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(protocol.ActMsg{Type: protocol.TypeAct, ProtocolVersion: protocol.Version}); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

type leaveRecorder struct {
	mu     sync.Mutex
	leaves []string
}

func (r *leaveRecorder) WriteTick(e world.TickLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves = append(r.leaves, e.Leaves...)
	return nil
}

func (r *leaveRecorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.leaves...)
}

func TestServer_FailedWelcomeRemovesPlayer(t *testing.T) {
	rec := &leaveRecorder{}
	w := startWorld(t, func(w *world.World) { w.SetTickLogger(rec) })
	s := NewServer(w, log.New(&bytes.Buffer{}, "", 0))
	s.writeWelcome = func(*websocket.Conn, any) error { return errors.New("broken pipe") }
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	if err := conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, PlayerName: "ghost"}); err != nil {
		t.Fatalf("hello: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := rec.snapshot(); len(got) == 1 && got[0] == "P1" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("player was not removed after failed WELCOME; leaves=%v", rec.snapshot())
}
