package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	persistlog "voxelknives.ai/internal/persistence/log"
	"voxelknives.ai/internal/sim/bootstrap"
	"voxelknives.ai/internal/sim/catalogs"
	"voxelknives.ai/internal/sim/tuning"
	"voxelknives.ai/internal/sim/world"
)

func main() {
	var (
		eventsDir  = flag.String("events", "", "events dir containing events-*.jsonl.zst")
		worldID    = flag.String("world", "world_1", "world id the log was recorded with")
		configDir  = flag.String("configs", "./configs", "config directory")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (default: <configs>/tuning.yaml)")
		fromTick   = flag.Uint64("from_tick", 0, "start verifying from tick (inclusive, optional)")
		toTick     = flag.Uint64("to_tick", 0, "stop at tick (inclusive, optional)")
		verbose    = flag.Bool("v", false, "log world warnings while replaying")
	)
	flag.Parse()

	if *eventsDir == "" {
		fmt.Fprintln(os.Stderr, "missing -events")
		os.Exit(2)
	}

	cats, err := catalogs.Load(*configDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load catalogs:", err)
		os.Exit(1)
	}
	tp := *tuningPath
	if tp == "" {
		tp = filepath.Join(*configDir, "tuning.yaml")
	}
	tune, err := tuning.Load(tp)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load tuning:", err)
		os.Exit(1)
	}

	var sink io.Writer = io.Discard
	if *verbose {
		sink = os.Stderr
	}
	w, _, err := bootstrap.NewWorld(*worldID, tune, cats, log.New(sink, "[replay] ", 0), nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, "world:", err)
		os.Exit(1)
	}

	files, err := persistlog.ListEventFiles(*eventsDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "list events:", err)
		os.Exit(1)
	}
	if len(files) == 0 {
		fmt.Fprintln(os.Stderr, "no events files found in", *eventsDir)
		os.Exit(1)
	}

	res, err := replay(w, files, *fromTick, *toTick)
	if err != nil {
		fmt.Fprintln(os.Stderr, "replay:", err)
		os.Exit(1)
	}
	fmt.Printf("replay ok: checked=%d ticks landings=%d punished=%d\n", res.Checked, res.Landings, res.Punished)
}

type result struct {
	Checked  uint64
	Landings int
	Punished int
}

var errStop = fmt.Errorf("stop")

// replay re-steps w from tick 0 through every logged tick and compares digests.
func replay(w *world.World, files []string, verifyFrom, toTick uint64) (result, error) {
	var res result
	for _, path := range files {
		err := persistlog.ReadTicks(path, func(entry world.TickLogEntry) error {
			if toTick != 0 && entry.Tick > toTick {
				return errStop
			}
			if entry.Tick != w.CurrentTick() {
				return fmt.Errorf("tick mismatch: want=%d got=%d (file=%s)", w.CurrentTick(), entry.Tick, filepath.Base(path))
			}

			joins := make([]world.JoinRequest, 0, len(entry.Joins))
			for _, j := range entry.Joins {
				joins = append(joins, world.JoinRequest{Name: j.Name})
			}
			acts := make([]world.ActionEnvelope, 0, len(entry.Actions))
			for _, ra := range entry.Actions {
				acts = append(acts, world.ActionEnvelope{PlayerID: ra.PlayerID, Act: ra.Act})
			}

			tick, gotDigest := w.StepOnce(joins, entry.Leaves, acts)
			if tick != entry.Tick {
				return fmt.Errorf("internal tick mismatch: stepped=%d entry=%d (file=%s)", tick, entry.Tick, filepath.Base(path))
			}
			for _, rep := range entry.Falls {
				res.Landings += len(rep.Landed)
				for _, l := range rep.Landed {
					if l.Amplified() {
						res.Punished++
					}
				}
			}
			if tick >= verifyFrom {
				res.Checked++
				if gotDigest != entry.Digest {
					return fmt.Errorf("digest mismatch at tick %d: got=%s want=%s", tick, gotDigest, entry.Digest)
				}
			}
			return nil
		})
		if err == errStop {
			return res, nil
		}
		if err != nil {
			return res, err
		}
	}
	return res, nil
}
