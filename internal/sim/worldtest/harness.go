package worldtest

import (
	"bytes"
	"encoding/json"
	"log"
	"testing"

	"voxelknives.ai/internal/protocol"
	"voxelknives.ai/internal/sim/bootstrap"
	"voxelknives.ai/internal/sim/catalogs"
	"voxelknives.ai/internal/sim/tuning"
	"voxelknives.ai/internal/sim/world"
	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

const configDir = "../../../configs"

// Harness is a small black-box test helper for driving a world built from the
// shipped configs via exported APIs:
// - Join() issues JoinRequest via StepOnce()
// - Act()/Step() issue ACT via StepOnce()
// - Per-player Out channels carry STATUS JSON
// - Every TickLogEntry is recorded for assertions on fall reports
//
// It avoids touching world internals so tests can live outside the world package.
type Harness struct {
	T    *testing.T
	Cats *catalogs.Catalogs
	Tune tuning.Tuning
	W    *world.World
	Rule *knives.Rule

	Ticks  []world.TickLogEntry
	LogBuf bytes.Buffer

	sessions map[string]*session
}

type session struct {
	PlayerID string
	Out      chan []byte
	statuses []protocol.StatusMsg
}

// NewHarness loads configs/ and lets tweak adjust tuning before the world is built.
func NewHarness(t *testing.T, worldID string, tweak func(*tuning.Tuning)) *Harness {
	t.Helper()

	cats, err := catalogs.Load(configDir)
	if err != nil {
		t.Fatalf("load catalogs: %v", err)
	}
	tune, err := tuning.Load(configDir + "/tuning.yaml")
	if err != nil {
		t.Fatalf("load tuning: %v", err)
	}
	if tweak != nil {
		tweak(&tune)
	}

	h := &Harness{
		T:        t,
		Cats:     cats,
		Tune:     tune,
		sessions: map[string]*session{},
	}
	w, rule, err := bootstrap.NewWorld(worldID, tune, cats, log.New(&h.LogBuf, "", 0), nil)
	if err != nil {
		t.Fatalf("bootstrap.NewWorld: %v", err)
	}
	w.SetTickLogger(h)
	h.W = w
	h.Rule = rule
	return h
}

func (h *Harness) WriteTick(e world.TickLogEntry) error {
	h.Ticks = append(h.Ticks, e)
	return nil
}

func (h *Harness) Join(name string) string {
	h.T.Helper()

	out := make(chan []byte, 64)
	resp := make(chan world.JoinResponse, 1)
	_, _ = h.W.StepOnce([]world.JoinRequest{{Name: name, Out: out, Resp: resp}}, nil, nil)
	jr := <-resp
	if jr.Welcome.PlayerID == "" {
		h.T.Fatalf("join returned empty player id")
	}
	h.sessions[jr.Welcome.PlayerID] = &session{PlayerID: jr.Welcome.PlayerID, Out: out}
	h.drainAll()
	return jr.Welcome.PlayerID
}

func (h *Harness) Leave(playerID string) {
	h.T.Helper()
	_, _ = h.W.StepOnce(nil, []string{playerID}, nil)
	h.drainAll()
}

// Act applies one ACT per player in a single tick.
func (h *Harness) Act(acts map[string][]protocol.CommandReq) string {
	h.T.Helper()
	envs := make([]world.ActionEnvelope, 0, len(acts))
	for id, cmds := range acts {
		envs = append(envs, world.ActionEnvelope{PlayerID: id, Act: protocol.ActMsg{
			Type:            protocol.TypeAct,
			ProtocolVersion: protocol.Version,
			Tick:            h.W.CurrentTick(),
			PlayerID:        id,
			Commands:        cmds,
		}})
	}
	_, digest := h.W.StepOnce(nil, nil, envs)
	h.drainAll()
	return digest
}

// Step advances n ticks without input and returns the last digest.
func (h *Harness) Step(n int) string {
	h.T.Helper()
	var digest string
	for i := 0; i < n; i++ {
		_, digest = h.W.StepOnce(nil, nil, nil)
	}
	h.drainAll()
	return digest
}

func (h *Harness) Player(id string) world.PlayerState {
	h.T.Helper()
	p, ok := h.W.Player(id)
	if !ok {
		h.T.Fatalf("unknown player id: %q", id)
	}
	return p
}

func (h *Harness) Statuses(playerID string) []protocol.StatusMsg {
	h.T.Helper()
	s := h.sessions[playerID]
	if s == nil {
		h.T.Fatalf("unknown player id: %q", playerID)
	}
	return s.statuses
}

func (h *Harness) SetPlayerPos(id string, pos world.Vec3i) {
	h.T.Helper()
	if ok := h.W.DebugSetPlayerPos(id, pos); !ok {
		h.T.Fatalf("DebugSetPlayerPos(%s) returned false", id)
	}
}

// EquipRaw puts an item in a hand without catalog or meta validation.
func (h *Harness) EquipRaw(id, hand, item, meta string) {
	h.T.Helper()
	if ok := h.W.DebugEquip(id, hand, item, json.RawMessage(meta)); !ok {
		h.T.Fatalf("DebugEquip(%s) returned false", id)
	}
}

// Reports returns every non-empty fall report recorded so far.
func (h *Harness) Reports() []knives.Report {
	var out []knives.Report
	for _, e := range h.Ticks {
		out = append(out, e.Falls...)
	}
	return out
}

// DropFrom returns the commands that put a player height blocks above the surface.
func (h *Harness) DropFrom(x, z, height int) []protocol.CommandReq {
	return []protocol.CommandReq{
		{Type: protocol.CmdGlide, Gliding: false},
		{Type: protocol.CmdTeleport, Pos: [3]int{x, h.Tune.GroundY + 1 + height, z}},
	}
}

func Equip(hand, item, meta string) protocol.CommandReq {
	c := protocol.CommandReq{Type: protocol.CmdEquip, Hand: hand, Item: item}
	if meta != "" {
		c.Meta = json.RawMessage(meta)
	}
	return c
}

func (h *Harness) drainAll() {
	h.T.Helper()
	for _, s := range h.sessions {
		for {
			var b []byte
			select {
			case b = <-s.Out:
			default:
			}
			if b == nil {
				break
			}
			var st protocol.StatusMsg
			if err := json.Unmarshal(b, &st); err != nil {
				h.T.Fatalf("unmarshal STATUS: %v", err)
			}
			s.statuses = append(s.statuses, st)
		}
	}
}
