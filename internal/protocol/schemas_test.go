package protocol_test

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxelknives.ai/internal/protocol"
)

func compileSchema(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	p := filepath.Join("..", "..", "schemas", name)
	s, err := jsonschema.Compile(p)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

// validateStruct round-trips v through JSON so the schema sees what goes on the wire.
func validateStruct(t *testing.T, s *jsonschema.Schema, v any) {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(doc); err != nil {
		t.Fatalf("validate %s: %v", b, err)
	}
}

func TestSchemas_ValidateMessages(t *testing.T) {
	validateStruct(t, compileSchema(t, "hello.schema.json"), protocol.HelloMsg{
		Type:            protocol.TypeHello,
		ProtocolVersion: protocol.Version,
		PlayerName:      "steve",
		MaxQueue:        8,
	})

	validateStruct(t, compileSchema(t, "act.schema.json"), protocol.ActMsg{
		Type:            protocol.TypeAct,
		ProtocolVersion: protocol.Version,
		Tick:            12,
		PlayerID:        "P1",
		Commands: []protocol.CommandReq{
			{Type: protocol.CmdEquip, Hand: protocol.HandMain, Item: "DIAMOND_SWORD", Meta: json.RawMessage(`{"Enchantments":[{"id":"minecraft:sharpness","lvl":3}]}`)},
			{Type: protocol.CmdTeleport, Pos: [3]int{0, 40, 0}},
		},
	})

	validateStruct(t, compileSchema(t, "status.schema.json"), protocol.StatusMsg{
		Type:            protocol.TypeStatus,
		ProtocolVersion: protocol.Version,
		Tick:            40,
		PlayerID:        "P1",
		Text:            "Don't run with knives! You took 6 HP extra damage.",
		HP:              4,
	})

	validateStruct(t, compileSchema(t, "tick.schema.json"), protocol.TickMsg{
		Type:            protocol.TypeTick,
		ProtocolVersion: protocol.Version,
		Tick:            40,
		Landed:          []protocol.LandingObs{{PlayerID: "P1", FallDamage: 4, Extra: 5, IgniteSeconds: 8}},
		Events:          []protocol.EventObs{{PlayerID: "P1", Kind: "IGNITE", Amount: 8, HP: 11}},
	})
}

func TestSchemas_RejectBadAct(t *testing.T) {
	s := compileSchema(t, "act.schema.json")
	var act any
	_ = json.Unmarshal([]byte(`{"type":"ACT","protocol_version":"1.0","commands":[{"type":"EQUIP","hand":"LEFT"}]}`), &act)
	if err := s.Validate(act); err == nil {
		t.Fatalf("expected invalid hand to be rejected")
	}
}
