package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/ledgerline/reconcile/internal/common"
	"github.com/ledgerline/reconcile/internal/model"
)

// ErrSchedulerStopped is returned when a job is submitted after Stop.
var ErrSchedulerStopped = errors.New("scheduler stopped")

const (
	defaultSchedulerWorkers = 4
	defaultSchedulerQueue   = 256
)

type jobKind int

const (
	jobMatchItem jobKind = iota
	jobRetryTeam
)

type matchJob struct {
	kind   jobKind
	itemID string
	teamID string
}

// Scheduler runs matching jobs on a bounded worker pool so ingestion never
// blocks on retrieval or scoring. It implements service.JobScheduler.
type Scheduler struct {
	engine  *MatchEngine
	jobs    chan matchJob
	done    chan struct{}
	workers int

	mu      sync.Mutex
	sendMu  sync.RWMutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// NewScheduler creates a scheduler backed by the given engine. Workers and
// queue depth fall back to defaults when non-positive.
func NewScheduler(engine *MatchEngine, workers, queueDepth int) *Scheduler {
	if workers <= 0 {
		workers = defaultSchedulerWorkers
	}
	if queueDepth <= 0 {
		queueDepth = defaultSchedulerQueue
	}
	return &Scheduler{
		engine:  engine,
		jobs:    make(chan matchJob, queueDepth),
		done:    make(chan struct{}),
		workers: workers,
	}
}

// Start launches the worker pool. It is a no-op if already started or
// stopped.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true

	workerCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(s.workers)
	for i := 0; i < s.workers; i++ {
		go func(workerID int) {
			defer s.wg.Done()
			s.run(workerCtx, workerID)
		}(i)
	}
}

// Stop shuts the queue and waits for in-flight jobs to drain. Jobs still
// queued are processed unless the context passed to Start is cancelled.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.stopped = true
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.done)
	s.mu.Unlock()

	// Closing done unblocks any submit parked on a full queue. The write
	// lock then waits for those senders to leave before the channel closes,
	// so no send can hit a closed channel.
	s.sendMu.Lock()
	close(s.jobs)
	s.sendMu.Unlock()

	s.wg.Wait()
	if s.cancel != nil {
		s.cancel()
	}
}

// ScheduleItem queues a single inbox item for matching.
func (s *Scheduler) ScheduleItem(ctx context.Context, itemID string) error {
	return s.submit(ctx, matchJob{kind: jobMatchItem, itemID: itemID})
}

// ScheduleTeam queues a retry sweep over a team's unresolved items. Called
// after new transactions land so earlier no-match decisions get another look.
func (s *Scheduler) ScheduleTeam(ctx context.Context, teamID string) error {
	return s.submit(ctx, matchJob{kind: jobRetryTeam, teamID: teamID})
}

func (s *Scheduler) submit(ctx context.Context, job matchJob) error {
	s.mu.Lock()
	if s.stopped || !s.started {
		s.mu.Unlock()
		return ErrSchedulerStopped
	}
	s.mu.Unlock()

	// The read lock excludes Stop's close of the queue, so a send started
	// here cannot hit a closed channel; the done check covers a Stop that
	// finished before the lock was taken.
	s.sendMu.RLock()
	defer s.sendMu.RUnlock()

	select {
	case <-s.done:
		return ErrSchedulerStopped
	default:
	}

	select {
	case <-s.done:
		return ErrSchedulerStopped
	case s.jobs <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) run(ctx context.Context, workerID int) {
	for job := range s.jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		switch job.kind {
		case jobMatchItem:
			if _, err := s.engine.ProcessItem(ctx, job.itemID); err != nil {
				slog.Error("Scheduled matching failed",
					"worker_id", workerID,
					"inbox_item_id", job.itemID,
					"error", err)
			}
		case jobRetryTeam:
			if err := s.retryTeam(ctx, job.teamID); err != nil {
				slog.Error("Team retry sweep failed",
					"worker_id", workerID,
					"team_id", job.teamID,
					"error", err)
			}
		}
	}
}

// retryTeam re-runs matching for every unresolved item in the team. Items
// that raced into another status since listing are skipped.
func (s *Scheduler) retryTeam(ctx context.Context, teamID string) error {
	const pageSize = 100

	var items []model.InboxItem
	for offset := 0; ; offset += pageSize {
		page, err := s.engine.storage.ListInboxItemsByStatus(ctx, teamID,
			[]model.InboxStatus{model.StatusNoMatch, model.StatusPending}, pageSize, offset)
		if err != nil {
			return err
		}
		items = append(items, page...)
		if len(page) < pageSize {
			break
		}
	}

	for i := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.engine.RetryMatching(ctx, items[i].ID); err != nil {
			if errors.Is(err, common.ErrInvalidTransition) {
				continue
			}
			slog.Warn("Retry matching failed during team sweep",
				"team_id", teamID,
				"inbox_item_id", items[i].ID,
				"error", err)
		}
	}
	return nil
}
