package world

import (
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"voxelknives.ai/internal/protocol"
	"voxelknives.ai/internal/sim/catalogs"
)

// World is a single-threaded authoritative simulation.
// All state must be accessed only from the world loop goroutine.
type World struct {
	cfg      WorldConfig
	catalogs *catalogs.Catalogs
	log      *log.Logger

	tick atomic.Uint64

	terrain *terrain
	players map[string]*Player

	rules        []TickRule
	tickLoggers  []TickLogger
	auditLoggers []AuditLogger

	inbox chan ActionEnvelope
	join  chan JoinRequest
	leave chan string
	stop  chan struct{}

	stopOnce sync.Once

	nextPlayerNum atomic.Uint64

	// Per-tick scratch, reset by stepInternal.
	events []Event
	audits []AuditEntry
}

func New(cfg WorldConfig, cats *catalogs.Catalogs) (*World, error) {
	if cats == nil {
		return nil, fmt.Errorf("world: nil catalogs")
	}
	cfg.applyDefaults()
	return &World{
		cfg:      cfg,
		catalogs: cats,
		log:      log.Default(),
		terrain:  newTerrain(cfg),
		players:  map[string]*Player{},
		inbox:    make(chan ActionEnvelope, 1024),
		join:     make(chan JoinRequest, 64),
		leave:    make(chan string, 64),
		stop:     make(chan struct{}),
	}, nil
}

func (w *World) SetLogger(l *log.Logger) {
	if l != nil {
		w.log = l
	}
}

// AddRule registers a start-of-tick rule. Must be called before Run.
func (w *World) AddRule(r TickRule) { w.rules = append(w.rules, r) }

func (w *World) SetTickLogger(l TickLogger) { w.tickLoggers = append(w.tickLoggers, l) }

func (w *World) SetAuditLogger(l AuditLogger) { w.auditLoggers = append(w.auditLoggers, l) }

func (w *World) Config() WorldConfig          { return w.cfg }
func (w *World) CurrentTick() uint64          { return w.tick.Load() }
func (w *World) Inbox() chan<- ActionEnvelope { return w.inbox }
func (w *World) Join() chan<- JoinRequest     { return w.join }
func (w *World) Leave() chan<- string         { return w.leave }
func (w *World) Catalogs() *catalogs.Catalogs { return w.catalogs }
func (w *World) BlockPalette() []string       { return w.catalogs.Blocks.Palette }

func (w *World) Player(id string) (PlayerState, bool) {
	p, ok := w.players[id]
	if !ok {
		return PlayerState{}, false
	}
	return p.state(), true
}

// StepOnce advances the world by one tick. It must not be called concurrently with Run.
func (w *World) StepOnce(joins []JoinRequest, leaves []string, actions []ActionEnvelope) (tick uint64, digest string) {
	entry := w.stepInternal(joins, leaves, actions)
	return entry.Tick, entry.Digest
}

func (w *World) stepInternal(joins []JoinRequest, leaves []string, actions []ActionEnvelope) TickLogEntry {
	nowTick := w.tick.Load()
	w.events = w.events[:0]
	w.audits = w.audits[:0]

	entry := TickLogEntry{Tick: nowTick}

	for _, r := range w.rules {
		if rep := r.Tick(nowTick); !rep.Empty() {
			entry.Falls = append(entry.Falls, rep)
		}
	}

	for _, req := range joins {
		resp := w.joinPlayer(nowTick, req.Name, req.Out)
		entry.Joins = append(entry.Joins, RecordedJoin{PlayerID: resp.Welcome.PlayerID, Name: req.Name})
		if req.Resp != nil {
			req.Resp <- resp
		}
	}
	for _, id := range leaves {
		if w.leavePlayer(id) {
			entry.Leaves = append(entry.Leaves, id)
		}
	}
	for _, env := range actions {
		if w.applyAct(nowTick, env) {
			entry.Actions = append(entry.Actions, RecordedAction{PlayerID: env.PlayerID, Act: env.Act})
		}
	}

	for _, id := range w.sortedPlayerIDs() {
		w.stepPlayer(nowTick, w.players[id])
	}

	if len(w.events) > 0 {
		entry.Events = append([]Event(nil), w.events...)
	}
	entry.Digest = w.stateDigest(nowTick)
	w.tick.Add(1)

	for _, l := range w.tickLoggers {
		if err := l.WriteTick(entry); err != nil {
			w.log.Printf("tick log: tick=%d: %v", nowTick, err)
		}
	}
	for _, a := range w.audits {
		for _, l := range w.auditLoggers {
			if err := l.WriteAudit(a); err != nil {
				w.log.Printf("audit log: tick=%d: %v", nowTick, err)
			}
		}
	}
	return entry
}

func (w *World) sortedPlayerIDs() []string {
	ids := make([]string, 0, len(w.players))
	for id := range w.players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (w *World) joinPlayer(nowTick uint64, name string, out chan []byte) JoinResponse {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "player"
	}
	n := w.nextPlayerNum.Add(1)
	p := &Player{
		ID:   fmt.Sprintf("P%d", n),
		Name: name,
		Pos:  w.spawnPos(int(n)),
		HP:   w.cfg.MaxHP,
		out:  out,
	}
	p.spawn = p.Pos
	w.players[p.ID] = p
	w.emit(Event{PlayerID: p.ID, Kind: EventJoin, HP: p.HP, Text: name})

	return JoinResponse{Welcome: protocol.WelcomeMsg{
		Type:            protocol.TypeWelcome,
		ProtocolVersion: protocol.Version,
		PlayerID:        p.ID,
		WorldParams: protocol.WorldParams{
			WorldID:    w.cfg.ID,
			TickRateHz: w.cfg.TickRateHz,
			Height:     w.cfg.Height,
			GroundY:    w.cfg.GroundY,
			MaxHP:      w.cfg.MaxHP,
		},
		Catalogs: protocol.CatalogDigests{
			BlockPalette: protocol.DigestRef{Digest: w.catalogs.Blocks.PaletteDigest, Count: len(w.catalogs.Blocks.Palette)},
			ItemPalette:  protocol.DigestRef{Digest: w.catalogs.Items.PaletteDigest, Count: len(w.catalogs.Items.Palette)},
		},
	}}
}

func (w *World) leavePlayer(id string) bool {
	p, ok := w.players[id]
	if !ok {
		return false
	}
	delete(w.players, id)
	w.emit(Event{PlayerID: id, Kind: EventLeave, HP: p.HP})
	return true
}

// spawnPos spreads players along a diagonal, standing on the surface.
func (w *World) spawnPos(n int) Vec3i {
	x := clamp(n*2, -w.cfg.BoundaryR, w.cfg.BoundaryR)
	z := clamp(-n*2, -w.cfg.BoundaryR, w.cfg.BoundaryR)
	return Vec3i{X: x, Y: w.terrain.surfaceY(x, z) + 1, Z: z}
}

func (w *World) stepPlayer(nowTick uint64, p *Player) {
	if p.HurtCooldown > 0 {
		p.HurtCooldown--
	}
	if p.FireTicks > 0 {
		if p.FireTicks%w.cfg.FireDamageEveryTicks == 0 {
			w.damage(p, 1, "FIRE")
		}
		p.FireTicks--
	}

	below := p.Pos.Down()
	if w.isAir(below) {
		p.Pos = below
		if !p.Gliding {
			p.FallDistance++
		}
	} else {
		if p.FallDistance > 0 {
			dmg := math.Ceil(p.FallDistance - w.cfg.SafeFallDistance)
			if dmg > 0 && !w.blockDef(below).CushionsFall {
				w.damage(p, dmg, "FALL")
			}
			p.FallDistance = 0
		}
		p.Gliding = false
	}

	if p.HP <= 0 {
		w.respawn(p)
	}
}

func (w *World) damage(p *Player, amount float64, cause string) float64 {
	lost := p.hurt(amount, w.cfg.HurtCooldownTicks)
	if lost > 0 {
		w.emit(Event{PlayerID: p.ID, Kind: EventDamage, Cause: cause, Amount: lost, HP: p.HP})
	}
	return lost
}

func (w *World) respawn(p *Player) {
	p.Pos = p.spawn
	p.HP = w.cfg.MaxHP
	p.FallDistance = 0
	p.Gliding = false
	p.FireTicks = 0
	p.HurtCooldown = 0
	p.LastDamage = 0
	w.emit(Event{PlayerID: p.ID, Kind: EventRespawn, HP: p.HP})
}

func (w *World) emit(e Event) { w.events = append(w.events, e) }

func (w *World) sendStatus(nowTick uint64, p *Player, text string) {
	w.emit(Event{PlayerID: p.ID, Kind: EventStatus, HP: p.HP, Text: text})
	if p.out == nil {
		return
	}
	b, err := json.Marshal(protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            nowTick,
		PlayerID:        p.ID,
		Text:            text,
		HP:              p.HP,
	})
	if err != nil {
		return
	}
	select {
	case p.out <- b:
	default:
		// Slow client; status lines are best effort.
	}
}
