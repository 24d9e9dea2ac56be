package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"voxelknives.ai/internal/persistence/indexdb"
)

// openRuntimeIndex returns nil when indexing is disabled.
func openRuntimeIndex(worldDir string, cfg serverConfig) (*indexdb.SQLiteIndex, error) {
	if cfg.DisableDB {
		return nil, nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.IndexBackend)) {
	case "", "sqlite":
		return indexdb.OpenSQLite(filepath.Join(worldDir, "index", "world.sqlite"))
	case "none", "off", "disabled":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported VK_INDEX_BACKEND: %s", cfg.IndexBackend)
	}
}
