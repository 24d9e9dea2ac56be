package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxelknives.ai/internal/sim/world"
	"voxelknives.ai/internal/sim/world/feature/survival/knives"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer

	lines atomic.Uint64
	bytes atomic.Uint64
	files atomic.Uint64
}

// WriterStats are cumulative since the writer was created; safe to read
// while writes are in progress.
type WriterStats struct {
	Prefix string
	Lines  uint64
	Bytes  uint64
	Files  uint64
}

func (w *JSONLZstdWriter) Stats() WriterStats {
	return WriterStats{Prefix: w.prefix, Lines: w.lines.Load(), Bytes: w.bytes.Load(), Files: w.files.Load()}
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// Flush the encoder so readers see complete frames while the file is open.
	if err := w.enc.Flush(); err != nil {
		return err
	}
	w.lines.Add(1)
	w.bytes.Add(uint64(len(b)) + 1)
	return nil
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	w.files.Add(1)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// TickLogger writes one JSONL entry per tick (compressed). This is the
// replay source, so every tick is written, idle or not.
type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(worldDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "events"), "events")}
}

func (l *TickLogger) WriteTick(v world.TickLogEntry) error { return l.w.Write(v) }
func (l *TickLogger) Stats() WriterStats                   { return l.w.Stats() }
func (l *TickLogger) Close() error                         { return l.w.Close() }

// AuditLogger writes SET_BLOCK audit entries (compressed).
type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(worldDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(v world.AuditEntry) error { return l.w.Write(v) }
func (l *AuditLogger) Stats() WriterStats                  { return l.w.Stats() }
func (l *AuditLogger) Close() error                        { return l.w.Close() }

// FallLogger keeps a compact history of fall outcomes: one line per registry
// transition, ticks without transitions are skipped. It can be filtered with
// a single grep instead of decoding full tick entries.
type FallLogger struct {
	w *JSONLZstdWriter

	// OnlyLandings drops TRACKED/EXPIRED/DEPARTED lines.
	OnlyLandings bool
}

func NewFallLogger(worldDir string) *FallLogger {
	return &FallLogger{w: NewJSONLZstdWriter(filepath.Join(worldDir, "falls"), "falls")}
}

func (l *FallLogger) WriteTick(v world.TickLogEntry) error {
	for _, rep := range v.Falls {
		for _, tr := range rep.Transitions() {
			if l.OnlyLandings && tr.Outcome != knives.OutcomeLanded {
				continue
			}
			if err := l.w.Write(tr); err != nil {
				return fmt.Errorf("falls: tick=%d entity=%s: %w", tr.Tick, tr.Entity, err)
			}
		}
	}
	return nil
}

func (l *FallLogger) Stats() WriterStats { return l.w.Stats() }
func (l *FallLogger) Close() error       { return l.w.Close() }
