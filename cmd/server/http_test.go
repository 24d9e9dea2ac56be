package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"voxelknives.ai/internal/persistence/indexdb"
	persistlog "voxelknives.ai/internal/persistence/log"
	"voxelknives.ai/internal/sim/world"
	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

type fixedTick uint64

func (f fixedTick) CurrentTick() uint64 { return uint64(f) }

func landingEntry() world.TickLogEntry {
	return world.TickLogEntry{
		Tick: 12,
		Falls: []knives.Report{{
			Tick:    12,
			Landed:  []knives.Landing{{Entity: "P1", FallDamage: 7, Extra: 7}, {Entity: "P2", FallDamage: 4}},
			Expired: []knives.EntityID{"P3"},
		}},
		Digest: "d12",
	}
}

func TestMetricsHandler_CountsFalls(t *testing.T) {
	stats := &fallStats{}
	_ = stats.WriteTick(landingEntry())

	rec := httptest.NewRecorder()
	metricsHandler("w1", fixedTick(12), stats, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, want := range []string{
		`voxelknives_world_tick{world="w1"} 12`,
		`voxelknives_falls_total{world="w1",outcome="landed"} 2`,
		`voxelknives_falls_total{world="w1",outcome="punished"} 1`,
		`voxelknives_falls_total{world="w1",outcome="expired"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in:\n%s", want, body)
		}
	}
	if strings.Contains(body, "voxelknives_index_queue_depth") {
		t.Fatalf("index metrics should be absent without an index")
	}
}

func TestFallsHandler(t *testing.T) {
	idx, err := indexdb.OpenSQLite(filepath.Join(t.TempDir(), "world.sqlite"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer idx.Close()
	_ = idx.WriteTick(landingEntry())
	if err := idx.Sync(context.Background()); err != nil {
		t.Fatalf("sync: %v", err)
	}

	h := fallsHandler(idx)
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/falls?player_id=P1", nil)
	req.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	h(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status: %d %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Falls []indexdb.FallRow `json:"falls"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Falls) != 1 || resp.Falls[0].Extra != 7 {
		t.Fatalf("falls: %+v", resp.Falls)
	}

	remote := httptest.NewRequest(http.MethodGet, "/admin/v1/falls", nil)
	remote.RemoteAddr = "10.1.2.3:5555"
	rec = httptest.NewRecorder()
	h(rec, remote)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("remote status: %d", rec.Code)
	}
}

func TestFallsHandler_IndexDisabled(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/v1/falls", nil)
	req.RemoteAddr = "127.0.0.1:1"
	rec := httptest.NewRecorder()
	fallsHandler(nil)(rec, req)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status: %d", rec.Code)
	}
}

func TestMetricsHandler_ReportsLogVolumes(t *testing.T) {
	dir := t.TempDir()
	fallLog := persistlog.NewFallLogger(dir)
	defer fallLog.Close()
	if err := fallLog.WriteTick(landingEntry()); err != nil {
		t.Fatalf("fall log: %v", err)
	}

	rec := httptest.NewRecorder()
	metricsHandler("w1", fixedTick(12), &fallStats{}, nil, fallLog)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, `voxelknives_log_lines_total{world="w1",log="falls"} 3`) {
		t.Fatalf("missing fall log lines in:\n%s", body)
	}
	if !strings.Contains(body, `voxelknives_log_bytes_total{world="w1",log="falls"}`) {
		t.Fatalf("missing fall log bytes in:\n%s", body)
	}
}
