package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"galley/internal/config"
	"galley/internal/fidelity"
	"galley/internal/generate"
	"galley/internal/state"
)

// ErrUnitBusy reports that the unit already has a job in flight. Unit
// state files are single-writer, so concurrent jobs for one unit are
// refused rather than serialized.
var ErrUnitBusy = errors.New("unit already has a job in flight")

// IsUnitBusy reports whether err wraps ErrUnitBusy.
func IsUnitBusy(err error) bool { return errors.Is(err, ErrUnitBusy) }

// Orchestrator manages the unit validation pipeline.
type Orchestrator struct {
	jobs    *JobStore
	queue   chan *Job
	store   *state.Store
	gen     generate.Generator
	profile config.Profile
	bp      *fidelity.Boilerplate
	log     *slog.Logger
	cfg     config.Config

	busyMu sync.Mutex
	busy   map[state.Key]string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator creates the pipeline. gen may be nil when no external
// generator is configured; jobs that request generation then fail fast.
func NewOrchestrator(cfg config.Config, profile config.Profile, store *state.Store, gen generate.Generator, bp *fidelity.Boilerplate, log *slog.Logger) *Orchestrator {
	return &Orchestrator{
		jobs:    NewJobStore(cfg.JobTTL),
		queue:   make(chan *Job, cfg.MaxQueueSize),
		store:   store,
		gen:     gen,
		profile: profile,
		bp:      bp,
		log:     log,
		cfg:     cfg,
		busy:    make(map[state.Key]string),
	}
}

// Start launches worker goroutines.
func (o *Orchestrator) Start(ctx context.Context) {
	workerCtx, cancel := context.WithCancel(ctx)
	o.cancel = cancel

	for i := 0; i < o.cfg.WorkerCount; i++ {
		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			w := NewWorker(o.store, o.gen, o.profile, o.bp, o.log, o.cfg)
			for {
				select {
				case <-workerCtx.Done():
					return
				case job, ok := <-o.queue:
					if !ok {
						return
					}
					w.Process(workerCtx, job)
					o.release(job.Unit)
				}
			}
		}()
	}

	// Start job store cleanup.
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				o.jobs.Cleanup()
			}
		}
	}()
}

// Stop gracefully shuts down the pipeline.
func (o *Orchestrator) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	close(o.queue)
	o.wg.Wait()
}

// Submit queues a new job for processing. At most one job per unit runs
// at a time.
func (o *Orchestrator) Submit(job *Job) error {
	o.busyMu.Lock()
	if id, exists := o.busy[job.Unit]; exists {
		o.busyMu.Unlock()
		return fmt.Errorf("%w: job %s", ErrUnitBusy, id)
	}
	o.busy[job.Unit] = job.ID
	o.busyMu.Unlock()

	o.jobs.Put(job)
	select {
	case o.queue <- job:
		return nil
	default:
		o.release(job.Unit)
		job.SetStatus(StatusFailed, "queue_full")
		return fmt.Errorf("job queue is full (%d)", o.cfg.MaxQueueSize)
	}
}

func (o *Orchestrator) release(key state.Key) {
	o.busyMu.Lock()
	delete(o.busy, key)
	o.busyMu.Unlock()
}

// HasGenerator reports whether an external generator is configured.
func (o *Orchestrator) HasGenerator() bool { return o.gen != nil }

// Busy reports whether the unit has a job in flight.
func (o *Orchestrator) Busy(key state.Key) bool {
	o.busyMu.Lock()
	defer o.busyMu.Unlock()
	_, exists := o.busy[key]
	return exists
}

// GetJob returns a job by ID.
func (o *Orchestrator) GetJob(id string) *Job {
	return o.jobs.Get(id)
}

// QueueDepth returns current queue depth.
func (o *Orchestrator) QueueDepth() int {
	return len(o.queue)
}

// GeneratorStats reports generator call latencies, or nil when no
// generator is configured or it keeps no stats.
func (o *Orchestrator) GeneratorStats() *generate.CallSnapshot {
	if o.gen == nil {
		return nil
	}
	type statser interface{ Stats() generate.CallSnapshot }
	s, ok := o.gen.(statser)
	if !ok {
		return nil
	}
	snap := s.Stats()
	return &snap
}
