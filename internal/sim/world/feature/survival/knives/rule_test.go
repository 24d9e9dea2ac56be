package knives

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"testing"
)

type fakeEntity struct {
	pos     Vec3i
	fall    float64
	gliding bool
	health  float64
	main    *Item
	off     *Item
}

// fakeHost is a flat world: every block at or below groundY is solid.
type fakeHost struct {
	groundY  int
	order    []EntityID
	entities map[EntityID]*fakeEntity
	calls    []string
}

func newFakeHost() *fakeHost {
	return &fakeHost{entities: map[EntityID]*fakeEntity{}}
}

func (h *fakeHost) add(id EntityID, e *fakeEntity) {
	h.order = append(h.order, id)
	h.entities[id] = e
}

func (h *fakeHost) drop(id EntityID) {
	delete(h.entities, id)
	for i, v := range h.order {
		if v == id {
			h.order = append(h.order[:i], h.order[i+1:]...)
			return
		}
	}
}

func (h *fakeHost) LiveEntities() []EntityID {
	out := make([]EntityID, len(h.order))
	copy(out, h.order)
	return out
}
func (h *fakeHost) BlockAt(pos Vec3i) BlockState        { return BlockState{Air: pos.Y > h.groundY} }
func (h *fakeHost) EntityPos(id EntityID) Vec3i         { return h.entities[id].pos }
func (h *fakeHost) FallDistance(id EntityID) float64    { return h.entities[id].fall }
func (h *fakeHost) IsGliding(id EntityID) bool          { return h.entities[id].gliding }
func (h *fakeHost) Health(id EntityID) float64          { return h.entities[id].health }
func (h *fakeHost) MainHand(id EntityID) *Item          { return h.entities[id].main }
func (h *fakeHost) OffHand(id EntityID) *Item           { return h.entities[id].off }
func (h *fakeHost) SetOnFire(id EntityID, seconds int)  { h.calls = append(h.calls, fmt.Sprintf("fire %s %d", id, seconds)) }
func (h *fakeHost) SendStatus(id EntityID, text string) { h.calls = append(h.calls, fmt.Sprintf("status %s %s", id, text)) }
func (h *fakeHost) ApplyDamage(id EntityID, amount float64) {
	h.calls = append(h.calls, fmt.Sprintf("damage %s %.2f", id, amount))
}

func newTestRule(t *testing.T, h Host, mutate func(*Config)) (*Rule, *bytes.Buffer) {
	t.Helper()
	cfg := DefaultConfig()
	if mutate != nil {
		mutate(&cfg)
	}
	var buf bytes.Buffer
	r, err := NewRule(h, cfg, log.New(&buf, "[knives] ", 0))
	if err != nil {
		t.Fatalf("NewRule: %v", err)
	}
	return r, &buf
}

// falling puts an entity mid-air with ground (y=0) five blocks below its feet.
func falling(health float64, main *Item) *fakeEntity {
	return &fakeEntity{pos: Vec3i{Y: 5}, fall: 4, health: health, main: main}
}

func land(e *fakeEntity, health float64) {
	e.pos.Y = 1
	e.fall = 0
	e.health = health
}

func TestRule_DamagedLandingIsAmplified(t *testing.T) {
	h := newFakeHost()
	e := falling(20, sword(7, `{"Enchantments":[{"id":"minecraft:sharpness","lvl":3}]}`))
	h.add("A1", e)
	r, _ := newTestRule(t, h, nil)

	rep := r.Tick(1)
	if len(rep.Tracked) != 1 || rep.Tracked[0] != "A1" {
		t.Fatalf("expected A1 tracked, got %+v", rep)
	}
	rep = r.Tick(2)
	if !rep.Empty() {
		t.Fatalf("still airborne, expected empty report, got %+v", rep)
	}

	land(e, 16)
	rep = r.Tick(3)
	if len(rep.Landed) != 1 {
		t.Fatalf("expected one landing, got %+v", rep)
	}
	l := rep.Landed[0]
	if l.FallDamage != 4 || !near(l.Extra, 6) || l.IgniteSeconds != 0 {
		t.Fatalf("unexpected landing: %+v", l)
	}
	want := []string{
		"damage A1 10.00",
		"status A1 Don't run with knives! You took 6 HP extra damage.",
	}
	if strings.Join(h.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("side effects mismatch:\n got %q\nwant %q", h.calls, want)
	}
	if r.Registry().Len() != 0 {
		t.Fatalf("expected registry to be empty after landing")
	}
}

func TestRule_FireAspectIgnites(t *testing.T) {
	h := newFakeHost()
	e := falling(20, nil)
	e.off = sword(9, `{"Enchantments":[{"id":"minecraft:fire_aspect","lvl":2}]}`)
	h.add("A1", e)
	r, _ := newTestRule(t, h, nil)

	r.Tick(1)
	land(e, 16)
	rep := r.Tick(2)
	if len(rep.Landed) != 1 {
		t.Fatalf("expected landing, got %+v", rep)
	}
	l := rep.Landed[0]
	if l.BurnTicks != 160 || l.IgniteSeconds != 8 {
		t.Fatalf("expected 160 burn ticks / 8s, got %+v", l)
	}
	want := []string{
		"damage A1 9.00",
		"fire A1 8",
		"status A1 Don't run with knives! You took 5 HP extra damage (burning hot!).",
	}
	if strings.Join(h.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("side effects mismatch:\n got %q\nwant %q", h.calls, want)
	}
}

func TestRule_BothHandsAggregate(t *testing.T) {
	h := newFakeHost()
	e := falling(20, sword(7, ""))
	e.off = sword(7, `{"Enchantments":[{"id":"minecraft:sharpness","lvl":1}]}`)
	h.add("A1", e)
	r, _ := newTestRule(t, h, nil)

	r.Tick(1)
	land(e, 17)
	rep := r.Tick(2)
	// main: 3*1, off: 3*1 + 1
	if len(rep.Landed) != 1 || !near(rep.Landed[0].Extra, 7) {
		t.Fatalf("expected aggregated extra=7, got %+v", rep)
	}
}

func TestRule_NoSwordLandingUntracksSilently(t *testing.T) {
	h := newFakeHost()
	e := falling(20, &Item{ID: "STONE"})
	h.add("A1", e)
	r, _ := newTestRule(t, h, nil)

	r.Tick(1)
	land(e, 15)
	rep := r.Tick(2)
	if len(rep.Landed) != 1 || rep.Landed[0].Amplified() {
		t.Fatalf("expected one unamplified landing, got %+v", rep)
	}
	if len(h.calls) != 0 {
		t.Fatalf("expected no side effects, got %q", h.calls)
	}
	if r.Registry().Len() != 0 {
		t.Fatalf("record must be removed even without extra damage")
	}
}

func TestRule_StandingTimeoutExpires(t *testing.T) {
	h := newFakeHost()
	e := falling(20, sword(7, ""))
	h.add("A1", e)
	r, _ := newTestRule(t, h, nil)

	r.Tick(0)
	land(e, 20)

	rec, _ := r.Registry().Get("A1")
	prev := rec.StandingTimeout()
	for i := 1; i < 20; i++ {
		rep := r.Tick(uint64(i))
		if !rep.Empty() {
			t.Fatalf("standing tick %d: expected no transitions, got %+v", i, rep)
		}
		cur := rec.StandingTimeout()
		if cur != prev-1 {
			t.Fatalf("standing tick %d: timeout %d -> %d", i, prev, cur)
		}
		prev = cur
	}

	rep := r.Tick(20)
	if len(rep.Expired) != 1 || rep.Expired[0] != "A1" || len(rep.Landed) != 0 {
		t.Fatalf("expected A1 to expire on the 20th standing tick, got %+v", rep)
	}
	if r.Registry().Len() != 0 || len(h.calls) != 0 {
		t.Fatalf("expiry must be silent and remove the record")
	}
}

func TestRule_DamageAfterStandingStillAmplifies(t *testing.T) {
	h := newFakeHost()
	e := falling(20, sword(7, ""))
	h.add("A1", e)
	r, _ := newTestRule(t, h, nil)

	r.Tick(0)
	land(e, 20)
	for i := 1; i <= 5; i++ {
		r.Tick(uint64(i))
	}
	e.health = 18
	rep := r.Tick(6)
	if len(rep.Landed) != 1 || len(rep.Expired) != 0 {
		t.Fatalf("expected landing only, got %+v", rep)
	}
}

func TestRule_GlidingAndVoidAreIgnored(t *testing.T) {
	h := newFakeHost()
	glider := falling(20, sword(7, ""))
	glider.gliding = true
	h.add("G1", glider)
	h.add("V1", &fakeEntity{pos: Vec3i{Y: 40}, fall: 12, health: 20})
	r, _ := newTestRule(t, h, nil)

	rep := r.Tick(1)
	if len(rep.Tracked) != 0 || r.Registry().Len() != 0 {
		t.Fatalf("expected nothing tracked, got %+v", rep)
	}

	// One block past the lookahead: ground 11 blocks below the feet.
	h.entities["V1"].pos.Y = 11
	rep = r.Tick(2)
	if len(rep.Tracked) != 0 || r.Registry().Len() != 0 {
		t.Fatalf("expected V1 untracked one past the lookahead, got %+v", rep)
	}

	// Ground exactly at the edge of the lookahead is still reachable.
	h.entities["V1"].pos.Y = 10
	rep = r.Tick(3)
	if len(rep.Tracked) != 1 || rep.Tracked[0] != "V1" {
		t.Fatalf("expected V1 tracked at lookahead edge, got %+v", rep)
	}
}

func TestRule_DepartedEntityIsPruned(t *testing.T) {
	h := newFakeHost()
	h.add("A1", falling(20, sword(7, "")))
	r, _ := newTestRule(t, h, nil)

	r.Tick(1)
	h.drop("A1")
	rep := r.Tick(2)
	if len(rep.Departed) != 1 || rep.Departed[0] != "A1" {
		t.Fatalf("expected A1 departed, got %+v", rep)
	}
	if r.Registry().Len() != 0 {
		t.Fatalf("departed entity leaked")
	}
}

func TestRule_AllLandingsResolvedInOneTick(t *testing.T) {
	h := newFakeHost()
	ids := []EntityID{"A1", "A2", "A3"}
	for _, id := range ids {
		h.add(id, falling(20, sword(7, "")))
	}
	r, _ := newTestRule(t, h, nil)

	r.Tick(1)
	for _, id := range ids {
		land(h.entities[id], 16)
	}
	rep := r.Tick(2)
	if len(rep.Landed) != 3 {
		t.Fatalf("expected 3 landings in one tick, got %+v", rep)
	}
	for i, l := range rep.Landed {
		if l.Entity != ids[i] {
			t.Fatalf("landing order: expected %s at %d, got %s", ids[i], i, l.Entity)
		}
	}
	if r.Registry().Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRule_LegacyThrottleResolvesOnePerTick(t *testing.T) {
	h := newFakeHost()
	ids := []EntityID{"A1", "A2", "A3"}
	for _, id := range ids {
		h.add(id, falling(20, sword(7, "")))
	}
	r, _ := newTestRule(t, h, func(c *Config) { c.LegacyOneRemovalPerTick = true })

	r.Tick(1)
	for _, id := range ids {
		land(h.entities[id], 16)
	}
	for i, id := range ids {
		rep := r.Tick(uint64(2 + i))
		if len(rep.Landed) != 1 || rep.Landed[0].Entity != id {
			t.Fatalf("tick %d: expected only %s to land, got %+v", 2+i, id, rep)
		}
	}
	if r.Registry().Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRule_MalformedMetadataIsLoggedNotFatal(t *testing.T) {
	h := newFakeHost()
	e := falling(20, sword(7, `{"Enchantments":[{"id":"minecraft:sharpness","lvl":"three"},{"id":"minecraft:sharpness","lvl":1}]}`))
	h.add("A1", e)
	r, logs := newTestRule(t, h, nil)

	r.Tick(1)
	land(e, 16)
	rep := r.Tick(2)
	if len(rep.Landed) != 1 || !near(rep.Landed[0].Extra, 5) {
		t.Fatalf("expected extra=5 from the valid entry, got %+v", rep)
	}
	if !strings.Contains(logs.String(), "warn:") || !strings.Contains(logs.String(), "enchantment 0") {
		t.Fatalf("expected a warning for the bad entry, got %q", logs.String())
	}
}

func TestRule_ShutdownClearsRegistry(t *testing.T) {
	h := newFakeHost()
	h.add("A1", falling(20, nil))
	r, _ := newTestRule(t, h, nil)
	r.Tick(1)
	r.Shutdown()
	if r.Registry().Len() != 0 {
		t.Fatalf("shutdown left records")
	}
}

func TestNewRule_RejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TicksPerSecond = 0
	if _, err := NewRule(newFakeHost(), cfg, nil); err == nil {
		t.Fatalf("expected config error")
	}
	if _, err := NewRule(nil, DefaultConfig(), nil); err == nil {
		t.Fatalf("expected nil host error")
	}
}
