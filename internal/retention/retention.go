// Package retention purges old webhook delivery records on a cron schedule.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"

	"pagedesk/pkg/config"
	"pagedesk/pkg/logger"
	"pagedesk/pkg/timeutil"
)

// ErrRunInProgress is returned by RunImmediate while another run is active.
var ErrRunInProgress = errors.New("retention run already in progress")

// Purger deletes records received before a cutoff.
type Purger interface {
	PurgeBefore(cutoff time.Time, dryRun bool) (int, error)
}

// Report summarizes one retention run.
type Report struct {
	RunID    string        `json:"runId"`
	Cutoff   time.Time     `json:"cutoff"`
	DryRun   bool          `json:"dryRun"`
	Matched  int           `json:"matched"`
	Purged   int           `json:"purged"`
	Duration time.Duration `json:"duration"`
}

// Manager schedules and runs purges.
type Manager struct {
	cfg    config.RetentionConfig
	period time.Duration
	purger Purger

	mu      sync.Mutex
	running bool
	last    *Report

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Manager. cfg must have passed config.ValidateConfig.
func New(cfg config.RetentionConfig, purger Purger) (*Manager, error) {
	pd, err := config.ParsePeriod(cfg.Period)
	if err != nil {
		return nil, fmt.Errorf("invalid retention period: %w", err)
	}
	return &Manager{cfg: cfg, period: pd, purger: purger}, nil
}

// Start runs the schedule loop until ctx ends or Stop is called. It is a
// no-op when retention is disabled or paused.
func (rm *Manager) Start(ctx context.Context) {
	if !rm.cfg.Enabled || rm.cfg.Paused {
		logger.Info("retention_disabled", "paused", rm.cfg.Paused)
		return
	}
	ctx, rm.cancel = context.WithCancel(ctx)
	rm.done = make(chan struct{})
	logger.Info("retention_enabled", "cron", rm.cfg.Cron, "period", rm.cfg.Period, "dry_run", rm.cfg.DryRun)
	go func() {
		defer close(rm.done)
		rm.scheduleLoop(ctx)
	}()
}

// Stop ends the schedule loop and waits for it.
func (rm *Manager) Stop() {
	if rm.cancel == nil {
		return
	}
	rm.cancel()
	<-rm.done
	rm.cancel = nil
}

// Last returns the report of the most recent run.
func (rm *Manager) Last() (Report, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if rm.last == nil {
		return Report{}, false
	}
	return *rm.last, true
}

// RunImmediate runs one purge now, outside the schedule.
func (rm *Manager) RunImmediate() (Report, error) {
	return rm.runJob()
}

func (rm *Manager) scheduleLoop(ctx context.Context) {
	for {
		now := timeutil.Now()
		next, err := gronx.NextTickAfter(rm.cfg.Cron, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", rm.cfg.Cron, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		select {
		case <-time.After(next.Sub(now)):
			if _, err := rm.runJob(); err != nil && !errors.Is(err, ErrRunInProgress) {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func (rm *Manager) runJob() (Report, error) {
	rm.mu.Lock()
	if rm.running {
		rm.mu.Unlock()
		return Report{}, ErrRunInProgress
	}
	rm.running = true
	rm.mu.Unlock()

	defer func() {
		rm.mu.Lock()
		rm.running = false
		rm.mu.Unlock()
	}()

	rep, err := rm.runOnce()
	if err == nil {
		rm.mu.Lock()
		rm.last = &rep
		rm.mu.Unlock()
	}
	return rep, err
}

func (rm *Manager) runOnce() (Report, error) {
	start := timeutil.Now()
	rep := Report{
		RunID:  uuid.NewString(),
		Cutoff: start.Add(-rm.period).UTC(),
		DryRun: rm.cfg.DryRun,
	}
	logger.AuditInfo("retention_audit_header", "run_id", rep.RunID, "started_at", start.Format(time.RFC3339), "dry_run", rep.DryRun, "period", rm.cfg.Period)

	n, err := rm.purger.PurgeBefore(rep.Cutoff, rep.DryRun)
	if err != nil {
		logger.AuditInfo("retention_audit_failed", "run_id", rep.RunID, "error", err)
		return rep, fmt.Errorf("purge deliveries: %w", err)
	}
	rep.Matched = n
	if !rep.DryRun {
		rep.Purged = n
	}
	rep.Duration = time.Since(start)
	logger.AuditInfo("retention_audit_summary", "run_id", rep.RunID, "cutoff", rep.Cutoff.Format(time.RFC3339), "matched", rep.Matched, "purged", rep.Purged, "duration", rep.Duration)
	return rep, nil
}
