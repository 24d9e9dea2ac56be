package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/zstd"

	"voxelknives.ai/internal/sim/world"
	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

// ListEventFiles returns the events-*.jsonl.zst files in dir, oldest first.
func ListEventFiles(dir string) ([]string, error) { return listFiles(dir, "events-") }

// ListFallFiles returns the falls-*.jsonl.zst files in dir, oldest first.
func ListFallFiles(dir string) ([]string, error) { return listFiles(dir, "falls-") }

// ListAuditFiles returns the audit-*.jsonl.zst files in dir, oldest first.
func ListAuditFiles(dir string) ([]string, error) { return listFiles(dir, "audit-") }

func listFiles(dir, prefix string) ([]string, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, ".jsonl.zst") {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}

// ReadTicks decodes every tick entry in a compressed events file and hands it to fn.
// Iteration stops at the first error returned by fn.
func ReadTicks(path string, fn func(world.TickLogEntry) error) error {
	return readJSONL(path, func(line []byte) error {
		var entry world.TickLogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		return fn(entry)
	})
}

// ReadAudits is ReadTicks for audit files.
func ReadAudits(path string, fn func(world.AuditEntry) error) error {
	return readJSONL(path, func(line []byte) error {
		var entry world.AuditEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		return fn(entry)
	})
}

// ReadFalls is ReadTicks for fall transition files.
func ReadFalls(path string, fn func(knives.Transition) error) error {
	return readJSONL(path, func(line []byte) error {
		var tr knives.Transition
		if err := json.Unmarshal(line, &tr); err != nil {
			return fmt.Errorf("%s: unmarshal: %w", filepath.Base(path), err)
		}
		return fn(tr)
	})
}

func readJSONL(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	for sc.Scan() {
		if err := fn(sc.Bytes()); err != nil {
			return err
		}
	}
	return sc.Err()
}
