package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Registry keeps the jobs of the process.
type Registry struct {
	jobs map[string]*Job
	mu   sync.RWMutex
	log  *slog.Logger
}

// New returns an empty registry. Job logs are also forwarded to log.
func New(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		jobs: make(map[string]*Job),
		log:  log,
	}
}

// Submit runs fn on its own goroutine. The job fails when fn returns an
// error or panics.
func (r *Registry) Submit(ctx context.Context, name string, fn func(ctx context.Context, job *Job) error) *Job {
	jobCtx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now(),
		status:    StatusQueued,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	job.logger = slog.New(&captureHandler{next: r.log.Handler(), job: job}).With("job", name)

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	go func() {
		defer cancel()
		job.start()
		job.Logger().Info("Job started", "id", job.ID)
		err := run(jobCtx, job, fn)
		if err != nil {
			job.Logger().Error("Job failed", "id", job.ID, "error", err)
		} else {
			job.Logger().Info("Job finished", "id", job.ID)
		}
		job.finish(err)
	}()
	return job
}

func run(ctx context.Context, job *Job, fn func(ctx context.Context, job *Job) error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return fn(ctx, job)
}

// Get returns a job by id.
func (r *Registry) Get(id string) (*Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, exists := r.jobs[id]
	return job, exists
}

// All returns the jobs ordered by creation.
func (r *Registry) All() []*Job {
	r.mu.RLock()
	result := make([]*Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		result = append(result, j)
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, k int) bool {
		if !result[i].CreatedAt.Equal(result[k].CreatedAt) {
			return result[i].CreatedAt.Before(result[k].CreatedAt)
		}
		return result[i].ID < result[k].ID
	})
	return result
}

// Delete forgets a job, cancelling it if still running.
func (r *Registry) Delete(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Cancel()
		delete(r.jobs, id)
	}
}

// Wait waits for every job and returns the number that failed.
func (r *Registry) Wait(ctx context.Context) (failed int, err error) {
	for _, job := range r.All() {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return failed, ctx.Err()
		}
		if job.Status() == StatusFailed {
			failed++
		}
	}
	return failed, nil
}
