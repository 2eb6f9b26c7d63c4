// Package jobs runs named functions in the background and tracks their
// status, progress and logs.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Status of a job.
type Status string

const (
	StatusQueued   Status = "queued"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

// LogEntry is one log record emitted by a job.
type LogEntry struct {
	Time    time.Time `json:"time" yaml:"time"`
	Level   string    `json:"level" yaml:"level"`
	Message string    `json:"message" yaml:"message"`
}

// Info is a point-in-time copy of a job.
type Info struct {
	ID        string     `json:"id" yaml:"id"`
	Name      string     `json:"name" yaml:"name"`
	Status    Status     `json:"status" yaml:"status"`
	Progress  float64    `json:"progress" yaml:"progress"`
	Error     string     `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	StartedAt *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty" yaml:"ended_at,omitempty"`
}

// Job is a function running in the background.
type Job struct {
	ID        string
	Name      string
	CreatedAt time.Time

	mu        sync.Mutex
	status    Status
	progress  float64
	err       error
	startedAt time.Time
	endedAt   time.Time
	logs      []LogEntry

	logger *slog.Logger
	cancel context.CancelFunc
	done   chan struct{}
}

// Status returns the current status.
func (j *Job) Status() Status {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

// Progress returns the completed fraction in [0, 1].
func (j *Job) Progress() float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.progress
}

// SetProgress records progress. It is clamped to [0, 1] and never moves
// backwards.
func (j *Job) SetProgress(f float64) {
	f = min(max(f, 0), 1)
	j.mu.Lock()
	defer j.mu.Unlock()
	if f > j.progress {
		j.progress = f
	}
}

// Err returns the error the job failed with.
func (j *Job) Err() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.err
}

// Logger returns a logger whose records are kept in the job's log.
func (j *Job) Logger() *slog.Logger { return j.logger }

// Logs returns a copy of the job's log.
func (j *Job) Logs() []LogEntry {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]LogEntry(nil), j.logs...)
}

// Cancel asks the job to stop. The job observes it through its context.
func (j *Job) Cancel() { j.cancel() }

// Done is closed when the job ends.
func (j *Job) Done() <-chan struct{} { return j.done }

// Wait blocks until the job ends or ctx is done and returns the job error.
func (j *Job) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return j.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Info returns a snapshot of the job.
func (j *Job) Info() Info {
	j.mu.Lock()
	defer j.mu.Unlock()
	info := Info{
		ID:        j.ID,
		Name:      j.Name,
		Status:    j.status,
		Progress:  j.progress,
		CreatedAt: j.CreatedAt,
	}
	if j.err != nil {
		info.Error = j.err.Error()
	}
	if !j.startedAt.IsZero() {
		t := j.startedAt
		info.StartedAt = &t
	}
	if !j.endedAt.IsZero() {
		t := j.endedAt
		info.EndedAt = &t
	}
	return info
}

func (j *Job) start() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusStarted
	j.startedAt = time.Now()
}

func (j *Job) finish(err error) {
	j.mu.Lock()
	j.endedAt = time.Now()
	if err != nil {
		j.status, j.err = StatusFailed, err
	} else {
		j.status, j.progress = StatusFinished, 1
	}
	j.mu.Unlock()
	close(j.done)
}

func (j *Job) appendLog(e LogEntry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs = append(j.logs, e)
}
