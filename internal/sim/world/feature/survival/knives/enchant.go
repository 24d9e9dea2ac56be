package knives

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const (
	EnchantSharpness  = "minecraft:sharpness"
	EnchantFireAspect = "minecraft:fire_aspect"
)

// Enchantment is one decoded entry of an item's enchantment list.
type Enchantment struct {
	ID    string `json:"id"`
	Level int    `json:"lvl"`
}

// MetadataError reports an enchantment entry that could not be decoded.
// Index is the entry position, or -1 when the metadata document itself is unreadable.
type MetadataError struct {
	Index int
	Err   error
}

func (e *MetadataError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("item metadata: %v", e.Err)
	}
	return fmt.Sprintf("item metadata: enchantment %d: %v", e.Index, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// Levels are stored as shorts; negative levels are rejected rather than summed.
const enchantmentEntrySchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "lvl"],
  "properties": {
    "id": {"type": "string", "minLength": 1},
    "lvl": {"type": "integer", "minimum": 0, "maximum": 32767}
  }
}`

var enchantmentEntry = jsonschema.MustCompileString("enchantment_entry.schema.json", enchantmentEntrySchema)

type itemMeta struct {
	Enchantments []json.RawMessage `json:"Enchantments"`
}

// DecodeEnchantments reads the enchantment list out of raw item metadata.
// Bad entries are skipped and reported; the remaining entries are still returned.
func DecodeEnchantments(meta json.RawMessage) ([]Enchantment, []error) {
	if len(bytes.TrimSpace(meta)) == 0 {
		return nil, nil
	}
	var m itemMeta
	if err := json.Unmarshal(meta, &m); err != nil {
		return nil, []error{&MetadataError{Index: -1, Err: err}}
	}

	var (
		out  = make([]Enchantment, 0, len(m.Enchantments))
		errs []error
	)
	for i, raw := range m.Enchantments {
		e, err := decodeEntry(raw)
		if err != nil {
			errs = append(errs, &MetadataError{Index: i, Err: err})
			continue
		}
		out = append(out, e)
	}
	return out, errs
}

func decodeEntry(raw json.RawMessage) (Enchantment, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return Enchantment{}, err
	}
	if err := enchantmentEntry.Validate(v); err != nil {
		return Enchantment{}, err
	}
	var e Enchantment
	if err := json.Unmarshal(raw, &e); err != nil {
		return Enchantment{}, err
	}
	return e, nil
}
