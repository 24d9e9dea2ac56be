package knives

import "testing"

func TestReport_TransitionsOrder(t *testing.T) {
	r := Report{
		Tick:     7,
		Tracked:  []EntityID{"a"},
		Landed:   []Landing{{Entity: "b", FallDamage: 4, Extra: 4}, {Entity: "c", FallDamage: 1}},
		Expired:  []EntityID{"d"},
		Departed: []EntityID{"e"},
	}
	got := r.Transitions()
	want := []struct {
		id      EntityID
		outcome string
	}{
		{"a", OutcomeTracked}, {"b", OutcomeLanded}, {"c", OutcomeLanded}, {"d", OutcomeExpired}, {"e", OutcomeDeparted},
	}
	if len(got) != len(want) {
		t.Fatalf("transitions: got %d want %d", len(got), len(want))
	}
	for i, w := range want {
		if got[i].Entity != w.id || got[i].Outcome != w.outcome || got[i].Tick != 7 {
			t.Fatalf("transition %d: got %+v want %v/%s", i, got[i], w.id, w.outcome)
		}
	}
	if got[1].Landing == nil || got[1].Landing.Extra != 4 || got[2].Landing.Entity != "c" {
		t.Fatalf("landing payloads: %+v %+v", got[1].Landing, got[2].Landing)
	}
	if got[0].Landing != nil {
		t.Fatalf("tracked transition carries a landing")
	}
	if (Report{Tick: 1}).Transitions() != nil {
		t.Fatalf("empty report should have no transitions")
	}
}
