package catalogs

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type Catalogs struct {
	Blocks BlockCatalog
	Items  ItemCatalog
}

type BlockCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]BlockDef
	PaletteDigest string
	DefsDigest    string
}

type BlockDef struct {
	ID    string `json:"id"`
	Solid bool   `json:"solid"`
	// Landing on a cushioning block deals no fall damage.
	CushionsFall bool `json:"cushions_fall,omitempty"`
}

type ItemCatalog struct {
	Palette       []string
	Index         map[string]uint16
	Defs          map[string]ItemDef
	PaletteDigest string
	DefsDigest    string
}

const KindSword = "SWORD"

type ItemDef struct {
	ID          string  `json:"id"`
	Kind        string  `json:"kind"` // "SWORD","TOOL","BLOCK","MATERIAL","FOOD"
	AttackPower float64 `json:"attack_power,omitempty"`
	PlaceAs     string  `json:"place_as,omitempty"`
}

func (d ItemDef) SwordClass() bool { return d.Kind == KindSword }

const itemsSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "kind"],
    "properties": {
      "id": {"type": "string", "pattern": "^[A-Z0-9_]+$"},
      "kind": {"enum": ["SWORD", "TOOL", "BLOCK", "MATERIAL", "FOOD"]},
      "attack_power": {"type": "number", "minimum": 0},
      "place_as": {"type": "string"}
    },
    "additionalProperties": false
  }
}`

var itemsValidator = jsonschema.MustCompileString("items.schema.json", itemsSchema)

func Load(configDir string) (*Catalogs, error) {
	var c Catalogs

	if err := loadBlocks(filepath.Join(configDir, "blocks.json"), &c.Blocks); err != nil {
		return nil, err
	}
	if err := loadItems(filepath.Join(configDir, "items.json"), &c.Items); err != nil {
		return nil, err
	}
	for _, d := range c.Items.Defs {
		if d.PlaceAs == "" {
			continue
		}
		if _, ok := c.Blocks.Defs[d.PlaceAs]; !ok {
			return nil, fmt.Errorf("items.json: %s places unknown block %s", d.ID, d.PlaceAs)
		}
	}
	return &c, nil
}

// AttackPower returns the catalog attack power of a sword-class item.
func (c *Catalogs) AttackPower(itemID string) (float64, error) {
	d, ok := c.Items.Defs[itemID]
	if !ok {
		return 0, fmt.Errorf("unknown item %q", itemID)
	}
	if !d.SwordClass() {
		return 0, fmt.Errorf("item %q is not a sword", itemID)
	}
	return d.AttackPower, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func loadBlocks(path string, out *BlockCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	var defs []BlockDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("blocks.json: %w", err)
	}
	out.Defs = map[string]BlockDef{}
	for _, d := range defs {
		if d.ID == "" {
			return fmt.Errorf("blocks.json: empty id")
		}
		out.Defs[d.ID] = d
	}

	ids := sortedKeys(out.Defs)

	// Ensure AIR exists and is palette id 0.
	air, ok := out.Defs["AIR"]
	if !ok {
		return fmt.Errorf("blocks.json: missing AIR")
	}
	if air.Solid {
		return fmt.Errorf("blocks.json: AIR must not be solid")
	}
	ids = append([]string{"AIR"}, filterOut(ids, "AIR")...)

	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func loadItems(path string, out *ItemCatalog) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out.DefsDigest = sha256Hex(raw)

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	if err := itemsValidator.Validate(doc); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}

	var defs []ItemDef
	if err := json.Unmarshal(raw, &defs); err != nil {
		return fmt.Errorf("items.json: %w", err)
	}
	out.Defs = map[string]ItemDef{}
	for _, d := range defs {
		if _, dup := out.Defs[d.ID]; dup {
			return fmt.Errorf("items.json: duplicate id %s", d.ID)
		}
		out.Defs[d.ID] = d
	}

	ids := sortedKeys(out.Defs)
	out.Palette = ids
	out.Index = make(map[string]uint16, len(ids))
	for i, id := range ids {
		out.Index[id] = uint16(i)
	}
	palJSON, _ := json.Marshal(ids)
	out.PaletteDigest = sha256Hex(palJSON)
	return nil
}

func sortedKeys[T any](m map[string]T) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func filterOut(in []string, remove string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == remove {
			continue
		}
		out = append(out, s)
	}
	return out
}
