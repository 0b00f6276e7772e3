package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/deckide/contextd/internal/compact"
	ctxerrors "github.com/deckide/contextd/internal/errors"
)

// StartAutoMonitor launches the periodic health check in a background
// goroutine. It returns an error if the loop is already running. Cancel ctx
// or call StopAutoMonitor to stop it.
func (c *Controller) StartAutoMonitor(ctx context.Context) error {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if c.running {
		return fmt.Errorf("auto-monitor already running")
	}
	c.running = true
	c.stopCh = make(chan struct{})

	c.logger.Info().
		Dur("interval", c.opts.HealthCheckInterval).
		Msg("auto-monitor starting")

	go c.run(ctx, c.stopCh)
	return nil
}

// StopAutoMonitor stops the loop. Calling it twice, or before start, is a
// no-op. A tick that fires after stop observes the cleared running flag and
// performs no side effects.
func (c *Controller) StopAutoMonitor() {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	if !c.running {
		return
	}
	c.running = false
	close(c.stopCh)
	c.logger.Info().Msg("auto-monitor stopped")
}

// AutoMonitorRunning reports whether the loop is active.
func (c *Controller) AutoMonitorRunning() bool {
	c.loopMu.Lock()
	defer c.loopMu.Unlock()
	return c.running
}

func (c *Controller) run(ctx context.Context, stopCh <-chan struct{}) {
	ticker := time.NewTicker(c.opts.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.StopAutoMonitor()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			c.tick(ctx)
		}
	}
}

// tick runs one health check. Ticks never overlap: if a check is still in
// flight when the next tick fires, the new tick is skipped. A missing active
// session is benign in this polling context.
func (c *Controller) tick(ctx context.Context) {
	c.loopMu.Lock()
	if !c.running || c.inFlight {
		skipped := c.inFlight
		c.loopMu.Unlock()
		if skipped && c.metrics != nil {
			c.metrics.RecordTick("skipped")
		}
		return
	}
	c.inFlight = true
	c.loopMu.Unlock()

	defer func() {
		c.loopMu.Lock()
		c.inFlight = false
		c.loopMu.Unlock()
	}()

	if err := c.healthCheck(ctx); err != nil {
		if errors.Is(err, ctxerrors.ErrNoActiveSession) || errors.Is(err, ctxerrors.ErrSessionEnded) {
			if c.metrics != nil {
				c.metrics.RecordTick("skipped")
			}
			return
		}
		// Storage and snapshot failures are logged, never allowed to kill
		// the loop for subsequent ticks.
		c.logger.Error().Err(err).Msg("auto-monitor health check failed")
		if c.metrics != nil {
			c.metrics.RecordTick("error")
		}
		return
	}

	if c.metrics != nil {
		c.metrics.RecordTick("ok")
	}
}

// healthCheck applies the two automatic policies: compact oversized event
// trails, and snapshot a session whose health has dropped below 0.5 while it
// still has no snapshots. Once a session carries at least one snapshot, the
// low-health auto-snapshot is suppressed.
func (c *Controller) healthCheck(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.active()
	if err != nil {
		return err
	}

	if len(s.Events) > c.opts.AutoCompactThreshold {
		if _, err := c.compactLocked(ctx, s, compact.Options{}); err != nil {
			return fmt.Errorf("auto-compact: %w", err)
		}
	}

	analysis := c.analyzer.Analyze(s)
	s.Metadata.HealthScore = analysis.Score
	if c.metrics != nil {
		c.metrics.HealthScore.Set(analysis.Score)
	}

	if analysis.Score < 0.5 && len(s.Snapshots) == 0 {
		if _, err := c.snapshotLocked(ctx, s, "auto: health below threshold", "auto"); err != nil {
			return fmt.Errorf("auto-snapshot: %w", err)
		}
		return nil
	}

	return c.store.Save(ctx, s)
}
