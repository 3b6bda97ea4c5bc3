package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	imetrics "github.com/knasko/vusd/internal/metrics"
)

type State int32

const (
	Idle State = iota
	Running
)

func (s State) String() string {
	if s == Running {
		return "running"
	}
	return "idle"
}

// CycleFunc is one scan/execute cycle.
type CycleFunc func(ctx context.Context) error

// Scheduler runs a cycle immediately and then on every tick, admitting at
// most one cycle at a time. A tick that finds a cycle running is dropped.
type Scheduler struct {
	interval time.Duration
	cycle    CycleFunc
	log      *zap.Logger
	verbose  bool

	state atomic.Int32
	wg    sync.WaitGroup
}

func New(interval time.Duration, cycle CycleFunc, verbose bool, log *zap.Logger) *Scheduler {
	return &Scheduler{interval: interval, cycle: cycle, verbose: verbose, log: log}
}

func (s *Scheduler) State() State { return State(s.state.Load()) }

// Trigger runs one cycle in the caller's goroutine if the scheduler is Idle
// and reports whether it did. The state is back to Idle when it returns.
func (s *Scheduler) Trigger(ctx context.Context) bool {
	if !s.state.CompareAndSwap(int32(Idle), int32(Running)) {
		imetrics.SkippedTicks.Inc()
		s.log.Debug("previous cycle still running, tick skipped")
		return false
	}
	defer s.state.Store(int32(Idle))

	if err := s.runCycle(ctx); err != nil {
		fields := []zap.Field{zap.Error(err)}
		if s.verbose {
			fields = append(fields, zap.String("detail", fmt.Sprintf("%+v", err)))
		}
		s.log.Error("cycle failed", fields...)
	}
	return true
}

func (s *Scheduler) runCycle(ctx context.Context) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("cycle panic: %v", p)
			s.log.Error("recovered panic in cycle", zap.Any("panic", p), zap.Stack("stack"))
		}
	}()
	return s.cycle(ctx)
}

// Run blocks until ctx is done, then waits for the cycle in flight.
func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.interval)
	defer t.Stop()

	s.launch(ctx)
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-t.C:
			s.launch(ctx)
		}
	}
}

func (s *Scheduler) launch(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Trigger(ctx)
	}()
}
