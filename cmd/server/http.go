package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"voxelknives.ai/internal/persistence/indexdb"
	persistlog "voxelknives.ai/internal/persistence/log"
	"voxelknives.ai/internal/sim/world"
)

// fallStats counts fall tracking transitions. It is a TickLogger, so the
// counters are written from the world goroutine and read by /metrics.
type fallStats struct {
	tracked  atomic.Uint64
	landed   atomic.Uint64
	punished atomic.Uint64
	expired  atomic.Uint64
	departed atomic.Uint64
}

func (s *fallStats) WriteTick(entry world.TickLogEntry) error {
	for _, rep := range entry.Falls {
		s.tracked.Add(uint64(len(rep.Tracked)))
		s.landed.Add(uint64(len(rep.Landed)))
		s.expired.Add(uint64(len(rep.Expired)))
		s.departed.Add(uint64(len(rep.Departed)))
		for _, l := range rep.Landed {
			if l.Amplified() {
				s.punished.Add(1)
			}
		}
	}
	return nil
}

type tickSource interface {
	CurrentTick() uint64
}

type logStats interface {
	Stats() persistlog.WriterStats
}

func metricsHandler(worldID string, w tickSource, stats *fallStats, idx *indexdb.SQLiteIndex, logs ...logStats) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "text/plain; version=0.0.4")

		// Minimal Prometheus exposition format.
		fmt.Fprintf(rw, "# HELP voxelknives_world_tick Current world tick.\n")
		fmt.Fprintf(rw, "# TYPE voxelknives_world_tick gauge\n")
		fmt.Fprintf(rw, "voxelknives_world_tick{world=%q} %d\n", worldID, w.CurrentTick())

		fmt.Fprintf(rw, "# HELP voxelknives_falls_total Fall tracking transitions by outcome.\n")
		fmt.Fprintf(rw, "# TYPE voxelknives_falls_total counter\n")
		fmt.Fprintf(rw, "voxelknives_falls_total{world=%q,outcome=%q} %d\n", worldID, "tracked", stats.tracked.Load())
		fmt.Fprintf(rw, "voxelknives_falls_total{world=%q,outcome=%q} %d\n", worldID, "landed", stats.landed.Load())
		fmt.Fprintf(rw, "voxelknives_falls_total{world=%q,outcome=%q} %d\n", worldID, "punished", stats.punished.Load())
		fmt.Fprintf(rw, "voxelknives_falls_total{world=%q,outcome=%q} %d\n", worldID, "expired", stats.expired.Load())
		fmt.Fprintf(rw, "voxelknives_falls_total{world=%q,outcome=%q} %d\n", worldID, "departed", stats.departed.Load())

		if len(logs) > 0 {
			fmt.Fprintf(rw, "# HELP voxelknives_log_lines_total JSONL lines written per log.\n")
			fmt.Fprintf(rw, "# TYPE voxelknives_log_lines_total counter\n")
			for _, l := range logs {
				st := l.Stats()
				fmt.Fprintf(rw, "voxelknives_log_lines_total{world=%q,log=%q} %d\n", worldID, st.Prefix, st.Lines)
			}
			fmt.Fprintf(rw, "# HELP voxelknives_log_bytes_total Uncompressed JSONL bytes written per log.\n")
			fmt.Fprintf(rw, "# TYPE voxelknives_log_bytes_total counter\n")
			for _, l := range logs {
				st := l.Stats()
				fmt.Fprintf(rw, "voxelknives_log_bytes_total{world=%q,log=%q} %d\n", worldID, st.Prefix, st.Bytes)
			}
		}

		if idx != nil {
			st := idx.Stats()
			fmt.Fprintf(rw, "# HELP voxelknives_index_queue_depth Index writer backlog.\n")
			fmt.Fprintf(rw, "# TYPE voxelknives_index_queue_depth gauge\n")
			fmt.Fprintf(rw, "voxelknives_index_queue_depth{world=%q} %d\n", worldID, st.QueueDepth)
			fmt.Fprintf(rw, "# HELP voxelknives_index_dropped_total Index writes dropped because the queue was full.\n")
			fmt.Fprintf(rw, "# TYPE voxelknives_index_dropped_total counter\n")
			fmt.Fprintf(rw, "voxelknives_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "tick", st.DropTickTotal)
			fmt.Fprintf(rw, "voxelknives_index_dropped_total{world=%q,kind=%q} %d\n", worldID, "audit", st.DropAuditTotal)
		}
	}
}

// fallsHandler serves recent fall transitions from the index:
// GET /admin/v1/falls?player_id=P1&limit=50
func fallsHandler(idx *indexdb.SQLiteIndex) http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			rw.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if !isLoopbackRemote(r.RemoteAddr) {
			http.Error(rw, "forbidden", http.StatusForbidden)
			return
		}
		if idx == nil {
			http.Error(rw, "index disabled", http.StatusServiceUnavailable)
			return
		}
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		rows, err := idx.Falls(r.Context(), strings.TrimSpace(r.URL.Query().Get("player_id")), limit)
		if err != nil {
			http.Error(rw, err.Error(), http.StatusInternalServerError)
			return
		}
		if rows == nil {
			rows = []indexdb.FallRow{}
		}
		rw.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(rw).Encode(map[string]any{"falls": rows})
	}
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
