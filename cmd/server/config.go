package main

import (
	"flag"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// serverConfig holds startup settings. Environment variables supply defaults;
// command-line flags override them.
type serverConfig struct {
	Addr       string `env:"VK_ADDR" envDefault:":8080"`
	WorldID    string `env:"VK_WORLD_ID" envDefault:"world_1"`
	ConfigDir  string `env:"VK_CONFIGS" envDefault:"./configs"`
	DataDir    string `env:"VK_DATA" envDefault:"./data"`
	TuningPath string `env:"VK_TUNING"`
	DisableDB  bool   `env:"VK_DISABLE_DB"`
	// sqlite, or none/off/disabled.
	IndexBackend string `env:"VK_INDEX_BACKEND" envDefault:"sqlite"`

	EnableAdminHTTP bool `env:"VK_ENABLE_ADMIN_HTTP" envDefault:"true"`
	EnablePprofHTTP bool `env:"VK_ENABLE_PPROF_HTTP"`
}

func parseConfig(fs *flag.FlagSet, args []string) (serverConfig, error) {
	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "http listen address")
	fs.StringVar(&cfg.WorldID, "world", cfg.WorldID, "world id")
	fs.StringVar(&cfg.ConfigDir, "configs", cfg.ConfigDir, "config directory")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "runtime data directory")
	fs.StringVar(&cfg.TuningPath, "tuning", cfg.TuningPath, "path to tuning.yaml (default: <configs>/tuning.yaml)")
	fs.BoolVar(&cfg.DisableDB, "disable_db", cfg.DisableDB, "disable the sqlite read-model index")
	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if cfg.WorldID == "" {
		return cfg, fmt.Errorf("world id is required")
	}
	return cfg, nil
}
