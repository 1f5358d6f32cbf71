package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/devicekit/core/logger"
)

// Locker serializes pipeline tasks across instances. TryLock returns an
// unlock func when the lease was acquired, or false when another instance
// holds it. A nil Locker is replaced by a no-op, single-node lock.
type Locker interface {
	TryLock(ctx context.Context, name string, ttl time.Duration) (unlock func(), acquired bool, err error)
}

type noopLocker struct{}

func (noopLocker) TryLock(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// Scheduler drives the pipeline on its configured intervals: rollup of
// completed slots, merge into coarser windows, retention pruning. Each task
// runs under a distributed lease so overlapping instances skip rather than
// double-process; the pipeline stays correct either way because rollup
// deletes consumed keys and merges upsert.
type Scheduler struct {
	processor *Processor
	merger    *Merger
	pruner    *Pruner
	locker    Locker
	cfg       Config
	log       *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(processor *Processor, merger *Merger, pruner *Pruner, locker Locker, cfg Config, log *slog.Logger) *Scheduler {
	if locker == nil {
		locker = noopLocker{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Scheduler{
		processor: processor,
		merger:    merger,
		pruner:    pruner,
		locker:    locker,
		cfg:       cfg,
		log:       log,
	}
}

// Start blocks until the context is cancelled. Use Run for the errgroup
// pattern or call this in a goroutine.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return fmt.Errorf("metrics: scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.InfoContext(ctx, "metrics scheduler started",
		logger.Duration(s.cfg.ProcessInterval))

	process := time.NewTicker(s.cfg.ProcessInterval)
	merge := time.NewTicker(s.cfg.MergeInterval)
	prune := time.NewTicker(s.cfg.PruneInterval)
	defer process.Stop()
	defer merge.Stop()
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.InfoContext(context.Background(), "metrics scheduler stopping")
			s.wg.Wait()
			return ctx.Err()
		case <-process.C:
			s.runTask(ctx, "metrics:process", s.cfg.ProcessInterval, s.processor.Process)
		case <-merge.C:
			s.runTask(ctx, "metrics:merge", s.cfg.MergeInterval, s.merger.Merge)
		case <-prune.C:
			s.runTask(ctx, "metrics:prune", s.cfg.PruneInterval, s.pruner.Prune)
		}
	}
}

// Run provides errgroup compatibility: the returned func starts the
// scheduler and treats context cancellation as a clean exit.
func (s *Scheduler) Run(ctx context.Context) func() error {
	return func() error {
		err := s.Start(ctx)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		return err
	}
}

func (s *Scheduler) runTask(ctx context.Context, name string, ttl time.Duration, task func(context.Context) error) {
	s.wg.Add(1)
	defer s.wg.Done()

	unlock, acquired, err := s.locker.TryLock(ctx, name, ttl)
	if err != nil {
		s.log.ErrorContext(ctx, "task lease failed", logger.Key("task", name), logger.Error(err))
		return
	}
	if !acquired {
		return
	}
	defer unlock()

	start := time.Now()
	if err := task(ctx); err != nil && !errors.Is(err, context.Canceled) {
		s.log.ErrorContext(ctx, "task failed", logger.Key("task", name), logger.Error(err))
		return
	}
	s.log.DebugContext(ctx, "task completed", logger.Key("task", name), logger.Elapsed(start))
}
