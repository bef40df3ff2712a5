// Package job drives one pairing-and-organizing run at a time: it
// enumerates images, extracts descriptors in batches, matches them
// into pairs, moves the files, and exposes pause/resume/cancel plus
// live progress to the presentation layer.
package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrAlreadyRunning is returned when a job is started while one is active.
var ErrAlreadyRunning = errors.New("a job is already in progress")

// ErrNoActiveJob is returned for pause/resume/cancel with no job running.
var ErrNoActiveJob = errors.New("no job is currently running")

// ErrInvalidState is returned when a command is not valid in the
// current job state (pause while paused, resume while running).
var ErrInvalidState = errors.New("command not valid in current job state")

// Status is the lifecycle state of a job.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Thresholds are the two matching knobs, immutable for the duration of
// a run.
type Thresholds struct {
	TimeDeltaMax    time.Duration
	HashDistanceMax int
}

// Request describes one job start.
type Request struct {
	Root           string
	Recurse        bool
	IncludeSingles bool
	Thresholds     Thresholds
	TriggeredBy    string
}

// Config holds worker tuning for the extraction phase.
type Config struct {
	BatchSize   int
	HashWorkers int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{BatchSize: 25, HashWorkers: 4}
}

// Snapshot is an atomically-consistent view of the active job for the
// presentation layer.
type Snapshot struct {
	JobID           int64
	Status          Status
	Root            string
	TriggeredBy     string
	StartedAt       time.Time
	FilesDiscovered int64
	FilesProcessed  int64
	Errors          int64
	Elapsed         time.Duration
}

// activeJob holds the live state of the running job.
type activeJob struct {
	id        int64
	req       Request
	startedAt time.Time
	progress  *Progress
	watch     *stopwatch
	gate      *gate
}

// Manager enforces the single-active-job invariant and exposes the
// command surface. It is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	db       *sql.DB
	cfg      Config
	active   *activeJob
	cancelFn context.CancelFunc
}

// NewManager creates a Manager writing job history to db.
func NewManager(db *sql.DB, cfg Config) *Manager {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.HashWorkers <= 0 {
		cfg.HashWorkers = DefaultConfig().HashWorkers
	}
	return &Manager{db: db, cfg: cfg}
}

// Start launches an asynchronous job. Returns the job ID, or
// ErrAlreadyRunning if one is in progress.
func (m *Manager) Start(parentCtx context.Context, req Request) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active != nil {
		return 0, ErrAlreadyRunning
	}
	if req.Root == "" {
		return 0, errors.New("job root must not be empty")
	}
	if req.TriggeredBy == "" {
		req.TriggeredBy = "manual"
	}

	// Create the jobs record now so the ID is available in the HTTP
	// response before the worker begins.
	startedAt := time.Now()
	jobID, err := insertJobRecord(m.db, req, startedAt)
	if err != nil {
		return 0, fmt.Errorf("create job record: %w", err)
	}

	jobCtx, cancel := context.WithCancel(parentCtx)
	a := &activeJob{
		id:        jobID,
		req:       req,
		startedAt: startedAt,
		progress:  &Progress{},
		watch:     newStopwatch(),
		gate:      newGate(),
	}
	m.active = a
	m.cancelFn = cancel

	go func() {
		defer cancel()
		m.execute(jobCtx, a)

		m.mu.Lock()
		m.active = nil
		m.cancelFn = nil
		m.mu.Unlock()
	}()

	return jobID, nil
}

// Pause holds the worker at the next batch boundary and freezes the
// elapsed-time accumulator.
func (m *Manager) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveJob
	}
	if !m.active.gate.pause() {
		return ErrInvalidState
	}
	m.active.watch.pause()
	flushJobStatus(m.db, m.active.id, StatusPaused)
	slog.Info("job paused", "id", m.active.id)
	return nil
}

// Resume releases a paused worker and restarts the elapsed accumulator.
func (m *Manager) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveJob
	}
	if !m.active.gate.resume() {
		return ErrInvalidState
	}
	m.active.watch.resume()
	flushJobStatus(m.db, m.active.id, StatusRunning)
	slog.Info("job resumed", "id", m.active.id)
	return nil
}

// Cancel stops the job after the current batch. Valid from Running and
// Paused. Files already moved stay moved; no rollback.
func (m *Manager) Cancel() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return ErrNoActiveJob
	}
	m.active.gate.cancel()
	m.cancelFn()
	slog.Info("job cancel requested", "id", m.active.id)
	return nil
}

// Snapshot returns the active job's state, or nil when idle.
func (m *Manager) Snapshot() *Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == nil {
		return nil
	}
	a := m.active
	status := StatusRunning
	if a.gate.isPaused() {
		status = StatusPaused
	}
	return &Snapshot{
		JobID:           a.id,
		Status:          status,
		Root:            a.req.Root,
		TriggeredBy:     a.req.TriggeredBy,
		StartedAt:       a.startedAt,
		FilesDiscovered: a.progress.FilesDiscovered.Load(),
		FilesProcessed:  a.progress.FilesProcessed.Load(),
		Errors:          a.progress.Errors.Load(),
		Elapsed:         a.watch.elapsed(),
	}
}
