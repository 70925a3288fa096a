// Package jobmgr runs named background jobs, optionally after a delay, and
// tracks which are pending or running. A name identifies at most one job at
// a time; Restart replaces it atomically, which makes the manager usable as a
// set of resettable timers:
//
//	jm := jobmgr.NewManager(func(status string) { log.Debug().Msg(status) })
//	_ = jm.Restart("idle:1234", 5*time.Minute, leaveVoice) // re-arm on every state change
//	_ = jm.Stop("idle:1234")                               // playback resumed
//
// There is no retry logic and no persistence.
package jobmgr

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

var (
	ErrJobRunning    = errors.New("job is already running")
	ErrJobNotRunning = errors.New("job is not running")
)

// Runner is the work of a job. ctx is cancelled by Stop.
type Runner func(ctx context.Context) error

// Job is a pending or running unit of work.
type Job struct {
	Name    string
	Created time.Time
	Due     time.Time

	cancel context.CancelFunc
}

// StatusReporter receives lifecycle events as "<event>:<name>[:<error>]":
// running, done, error and cancelled.
type StatusReporter func(string)

// Manager is safe for concurrent use.
type Manager struct {
	mu       sync.Mutex
	jobs     map[string]*Job
	Reporter StatusReporter
}

// NewManager creates a Manager. The reporter may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*Job),
		Reporter: reporter,
	}
}

// StartAsync runs fn now in its own goroutine.
func (m *Manager) StartAsync(name string, fn Runner) error {
	return m.StartAfter(name, 0, fn)
}

// StartAfter runs fn once delay has elapsed, unless the job is stopped
// first. It fails with ErrJobRunning while name is taken.
func (m *Manager) StartAfter(name string, delay time.Duration, fn Runner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.jobs[name]; taken {
		return errors.Wrapf(ErrJobRunning, "%q", name)
	}
	m.launchLocked(name, delay, fn)
	return nil
}

// Restart cancels any job called name and schedules fn in its place.
func (m *Manager) Restart(name string, delay time.Duration, fn Runner) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.jobs[name]; ok {
		old.cancel()
	}
	m.launchLocked(name, delay, fn)
	return nil
}

func (m *Manager) launchLocked(name string, delay time.Duration, fn Runner) {
	ctx, cancel := context.WithCancel(context.Background())
	now := time.Now()
	job := &Job{Name: name, Created: now, Due: now.Add(delay), cancel: cancel}
	m.jobs[name] = job
	go m.run(ctx, job, delay, fn)
}

func (m *Manager) run(ctx context.Context, job *Job, delay time.Duration, fn Runner) {
	defer m.forget(job)

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			m.report("cancelled", job.Name, nil)
			return
		case <-timer.C:
		}
	}
	if ctx.Err() != nil {
		m.report("cancelled", job.Name, nil)
		return
	}

	m.report("running", job.Name, nil)
	if err := fn(ctx); err != nil {
		m.report("error", job.Name, err)
		return
	}
	m.report("done", job.Name, nil)
}

// forget drops job unless its name now belongs to a newer job.
func (m *Manager) forget(job *Job) {
	m.mu.Lock()
	if m.jobs[job.Name] == job {
		delete(m.jobs, job.Name)
	}
	m.mu.Unlock()
	job.cancel()
}

// Stop cancels a job by name.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	job, ok := m.jobs[name]
	if !ok {
		return errors.Wrapf(ErrJobNotRunning, "%q", name)
	}
	job.cancel()
	delete(m.jobs, name)
	return nil
}

// StopAll cancels every job.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for name, job := range m.jobs {
		job.cancel()
		delete(m.jobs, name)
	}
}

// Running reports whether name is pending or running.
func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.jobs[name]
	return ok
}

// Due returns when the named job is scheduled to start.
func (m *Manager) Due(name string) (time.Time, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[name]
	if !ok {
		return time.Time{}, false
	}
	return job.Due, true
}

// List returns the job names, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	names := make([]string, 0, len(m.jobs))
	for name := range m.jobs {
		names = append(names, name)
	}
	m.mu.Unlock()

	slices.Sort(names)
	return names
}

// Status summarizes the jobs, e.g. "Running jobs: idle:1, idle:2".
func (m *Manager) Status() string {
	names := m.List()
	if len(names) == 0 {
		return "No jobs are running."
	}
	return "Running jobs: " + strings.Join(names, ", ")
}

func (m *Manager) report(event, name string, err error) {
	if m.Reporter == nil {
		return
	}
	msg := event + ":" + name
	if err != nil {
		msg += ":" + err.Error()
	}
	m.Reporter(msg)
}
