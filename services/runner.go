package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"apartment-scraper/metrics"
	"apartment-scraper/models"
	"apartment-scraper/utils"
)

const maxConsecutiveFailures = 3

// Phase is the externally visible state of the run loop.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseRunning    Phase = "running"
	PhaseBackingOff Phase = "backing_off"
	PhaseStopped    Phase = "stopped"
)

// CycleRunner performs one search cycle.
type CycleRunner interface {
	RunCycle(ctx context.Context) (models.CycleStats, error)
}

// loopState counts consecutive cycle failures.
type loopState struct {
	failures  int
	threshold int
	interval  time.Duration
}

// afterCycle records the outcome of a cycle and returns the extra backoff to
// wait before the regular interval, or zero. Reaching the threshold resets
// the counter.
func (s *loopState) afterCycle(err error) time.Duration {
	if err == nil {
		s.failures = 0
		return 0
	}
	s.failures++
	if s.failures >= s.threshold {
		s.failures = 0
		return 2 * s.interval
	}
	return 0
}

// Runner schedules search cycles at a fixed interval until stopped.
type Runner struct {
	cycles   CycleRunner
	interval time.Duration
	sleep    func(ctx context.Context, d time.Duration) error
	metrics  *metrics.Metrics
	logger   *utils.Logger

	mu     sync.Mutex
	phase  Phase
	cancel context.CancelFunc
}

func NewRunner(cycles CycleRunner, interval time.Duration, m *metrics.Metrics, logger *utils.Logger) *Runner {
	return &Runner{
		cycles:   cycles,
		interval: interval,
		sleep:    utils.Sleep,
		metrics:  m,
		logger:   logger,
		phase:    PhaseIdle,
	}
}

// Run blocks until ctx is cancelled or Stop is called. Cycle failures never
// end the loop.
func (r *Runner) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()

	state := loopState{threshold: maxConsecutiveFailures, interval: r.interval}
	r.logger.Info("[runner] Starting apartment search service")

	for ctx.Err() == nil {
		r.setPhase(PhaseRunning)
		err := r.runCycle(ctx)
		if ctx.Err() != nil {
			break
		}

		previous := state.failures
		backoff := state.afterCycle(err)
		r.metrics.SetConsecutiveFailures(state.failures)

		switch {
		case err == nil && previous > 0:
			r.logger.Info("[runner] Search recovered after %d consecutive failures", previous)
		case err != nil:
			r.logger.Error("[runner] Error in search cycle (%d/%d): %v", previous+1, maxConsecutiveFailures, err)
		}

		if backoff > 0 {
			r.setPhase(PhaseBackingOff)
			r.logger.Error("[runner] Too many consecutive failures (%d). Taking a longer break of %v",
				maxConsecutiveFailures, backoff)
			if r.sleep(ctx, backoff) != nil {
				break
			}
		}

		r.setPhase(PhaseIdle)
		r.logger.Info("[runner] Waiting %v until next search cycle...", r.interval)
		if r.sleep(ctx, r.interval) != nil {
			break
		}
	}

	r.setPhase(PhaseStopped)
	r.logger.Info("[runner] Apartment search service stopped")
}

// Stop cancels the loop. The in-flight listing step finishes first.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
}

// Phase returns the current loop state.
func (r *Runner) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Runner) setPhase(p Phase) {
	r.mu.Lock()
	r.phase = p
	r.mu.Unlock()
}

// runCycle converts a panicking cycle into a failure.
func (r *Runner) runCycle(ctx context.Context) (err error) {
	started := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("search cycle panicked: %v", p)
			r.metrics.RecordCycle(metrics.CycleFailed, time.Since(started))
		}
	}()
	_, err = r.cycles.RunCycle(ctx)
	return err
}
