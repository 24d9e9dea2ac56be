package world

import (
	"context"
	"time"
)

// Run drives the world at TickRateHz until ctx is done or Stop is called.
// Joins, leaves and actions received between ticks are applied on the next tick.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pendingActions []ActionEnvelope
	var pendingJoins []JoinRequest
	var pendingLeaves []string

	for {
		select {
		case <-ctx.Done():
			w.shutdownRules()
			return ctx.Err()
		case <-w.stop:
			w.shutdownRules()
			return nil
		case req := <-w.join:
			pendingJoins = append(pendingJoins, req)
		case id := <-w.leave:
			pendingLeaves = append(pendingLeaves, id)
		case env := <-w.inbox:
			pendingActions = append(pendingActions, env)
		case <-ticker.C:
			w.stepInternal(pendingJoins, pendingLeaves, pendingActions)
			pendingJoins = pendingJoins[:0]
			pendingLeaves = pendingLeaves[:0]
			pendingActions = pendingActions[:0]
		}
	}
}

func (w *World) Stop() { w.stopOnce.Do(func() { close(w.stop) }) }

type shutdowner interface {
	Shutdown()
}

func (w *World) shutdownRules() {
	for _, r := range w.rules {
		if s, ok := r.(shutdowner); ok {
			s.Shutdown()
		}
	}
}
