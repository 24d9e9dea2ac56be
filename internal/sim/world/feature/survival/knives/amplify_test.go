package knives

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func testAmplifier() Amplifier {
	return Amplifier{ReferenceAttack: 7, BurnTicksPerLevel: 80}
}

func sword(attack float64, meta string) *Item {
	it := &Item{ID: "TEST_SWORD", AttackPower: attack, SwordClass: true}
	if meta != "" {
		it.Meta = json.RawMessage(meta)
	}
	return it
}

func near(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestAmplify_ReferenceWeaponPlain(t *testing.T) {
	got, errs := testAmplifier().Amplify(sword(7, ""), 4)
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if !near(got.Extra, 4) || got.BurnTicks != 0 {
		t.Fatalf("expected extra=4 burn=0, got %+v", got)
	}
}

func TestAmplify_ReferenceWeaponSharpness3(t *testing.T) {
	got, _ := testAmplifier().Amplify(sword(7, `{"Enchantments":[{"id":"minecraft:sharpness","lvl":3}]}`), 4)
	if !near(got.Extra, 6) {
		t.Fatalf("expected extra=6, got %v", got.Extra)
	}
}

func TestAmplify_StrongerSwordFireAspect(t *testing.T) {
	a := testAmplifier()
	it := sword(9, `{"Enchantments":[{"id":"minecraft:fire_aspect","lvl":2}]}`)

	p, _ := a.Profile(it)
	if !near(p.Multiplier, 1.25) {
		t.Fatalf("expected multiplier 1.25, got %v", p.Multiplier)
	}
	got, _ := a.Amplify(it, 4)
	if got.BurnTicks != 160 {
		t.Fatalf("expected 160 burn ticks, got %v", got.BurnTicks)
	}
	if !near(got.Extra, 5) {
		t.Fatalf("expected extra=5, got %v", got.Extra)
	}
	if secs := math.Round(got.BurnTicks / 20); secs != 8 {
		t.Fatalf("expected 8 seconds, got %v", secs)
	}
}

func TestAmplify_NonSwordIsZero(t *testing.T) {
	a := testAmplifier()
	meta := json.RawMessage(`{"Enchantments":[{"id":"minecraft:sharpness","lvl":5},{"id":"minecraft:fire_aspect","lvl":2}]}`)
	for _, it := range []*Item{
		nil,
		{ID: "AXE", AttackPower: 9, SwordClass: false, Meta: meta},
		{ID: "STICK"},
	} {
		got, errs := a.Amplify(it, 7)
		if got != (ExtraDamage{}) || len(errs) != 0 {
			t.Fatalf("expected zero result for %+v, got %+v errs=%v", it, got, errs)
		}
	}
}

func TestAmplify_Deterministic(t *testing.T) {
	a := testAmplifier()
	it := sword(5, `{"Enchantments":[{"id":"minecraft:sharpness","lvl":2},{"id":"minecraft:fire_aspect","lvl":1}]}`)
	first, _ := a.Amplify(it, 3.5)
	for i := 0; i < 10; i++ {
		again, _ := a.Amplify(it, 3.5)
		if again != first {
			t.Fatalf("run %d: %+v != %+v", i, again, first)
		}
	}
}

func TestAmplify_MalformedEntrySkipped(t *testing.T) {
	meta := `{"Enchantments":[
		"garbage",
		{"id":"minecraft:sharpness","lvl":3},
		{"id":42,"lvl":1},
		{"id":"minecraft:fire_aspect","lvl":-1},
		{"lvl":2}
	]}`
	got, errs := testAmplifier().Amplify(sword(7, meta), 4)
	if !near(got.Extra, 6) {
		t.Fatalf("valid sharpness entry should still count: extra=%v", got.Extra)
	}
	if got.BurnTicks != 0 {
		t.Fatalf("negative fire aspect should be skipped, burn=%v", got.BurnTicks)
	}
	if len(errs) != 4 {
		t.Fatalf("expected 4 entry errors, got %d: %v", len(errs), errs)
	}
	var me *MetadataError
	if !errors.As(errs[0], &me) || me.Index != 0 {
		t.Fatalf("expected MetadataError at index 0, got %v", errs[0])
	}
	if !errors.As(errs[3], &me) || me.Index != 4 {
		t.Fatalf("expected MetadataError at index 4, got %v", errs[3])
	}
}

func TestAmplify_DuplicateEntriesAreSummed(t *testing.T) {
	meta := `{"Enchantments":[{"id":"minecraft:sharpness","lvl":1},{"id":"minecraft:sharpness","lvl":2},{"id":"minecraft:unbreaking","lvl":3}]}`
	p, errs := testAmplifier().Profile(sword(7, meta))
	if len(errs) != 0 {
		t.Fatalf("unexpected errors: %v", errs)
	}
	if p.Sharpness != 3 || p.FireAspect != 0 {
		t.Fatalf("expected sharpness 3, got %+v", p)
	}
}

func TestAmplify_IDMatchIsExact(t *testing.T) {
	meta := `{"Enchantments":[{"id":"Minecraft:Sharpness","lvl":3},{"id":"sharpness","lvl":3}]}`
	got, _ := testAmplifier().Amplify(sword(7, meta), 4)
	if !near(got.Extra, 4) {
		t.Fatalf("case-variant ids must not match, extra=%v", got.Extra)
	}
}

func TestDecodeEnchantments_BadDocument(t *testing.T) {
	got, errs := DecodeEnchantments(json.RawMessage(`{"Enchantments":"nope"}`))
	if len(got) != 0 || len(errs) != 1 {
		t.Fatalf("expected one document error, got %v / %v", got, errs)
	}
	var me *MetadataError
	if !errors.As(errs[0], &me) || me.Index != -1 {
		t.Fatalf("expected document-level MetadataError, got %v", errs[0])
	}

	got, errs = DecodeEnchantments(nil)
	if got != nil || errs != nil {
		t.Fatalf("empty metadata should decode to nothing")
	}
}

func TestSharpnessBonus(t *testing.T) {
	cases := map[int]float64{-2: 0, 0: 0, 1: 1, 2: 1.5, 5: 3}
	for lvl, want := range cases {
		if got := SharpnessBonus(lvl); !near(got, want) {
			t.Fatalf("level %d: expected %v, got %v", lvl, want, got)
		}
	}
}
