// Package scans holds the job lifecycle core: the concurrently accessed
// registry of in-flight scans, the per-scan runner goroutine advancing each
// record and the reaper evicting expired state.
package scans

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hashnet666/hydra-scanner-backend/internal/model"
	"github.com/hashnet666/hydra-scanner-backend/internal/probe"
	"github.com/hashnet666/hydra-scanner-backend/internal/session"
)

// Manager owns the job registry. All registry access goes through its
// mutex; job records never escape, callers get snapshots. Each submitted
// job runs one runner goroutine which is the only writer of that job's
// progress fields. Cancellation and reaping both fire the job's stop
// function and delete the record; the runner observes either signal at the
// top of its per-host loop and exits without further mutation.
type Manager struct {
	mu         sync.Mutex
	jobs       map[string]*model.Job
	stops      map[string]context.CancelFunc
	sessions   *session.Store
	probe      probe.Func
	maxTargets int
	now        func() time.Time
	wg         sync.WaitGroup
}

func New(sessions *session.Store, pf probe.Func, maxTargets int) *Manager {
	return &Manager{
		jobs:       make(map[string]*model.Job),
		stops:      make(map[string]context.CancelFunc),
		sessions:   sessions,
		probe:      pf,
		maxTargets: maxTargets,
		now:        time.Now,
	}
}

// WithClock replaces the time source. This method exists for unit testing only.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func newJobID(now time.Time) string {
	return fmt.Sprintf("scan_%d_%s", now.Unix(), uuid.NewString()[:8])
}

// Submit validates the session and the batch, registers a running job and
// starts its runner. It returns as soon as the job is registered.
func (m *Manager) Submit(ctx context.Context, sessionID string, hosts []string, protocol string) (string, error) {
	if !m.sessions.Validate(sessionID) {
		return "", model.ErrInvalidSession
	}
	if len(hosts) == 0 || len(hosts) > m.maxTargets || protocol == "" {
		return "", model.ErrBadRequest
	}

	now := m.now()
	id := newJobID(now)
	job := &model.Job{
		ID:        id,
		SessionID: sessionID,
		Status:    model.JobRunning,
		Protocol:  protocol,
		Hosts:     append([]string(nil), hosts...),
		CreatedAt: now,
		StartedAt: now,
	}

	// The runner must outlive the submitting request.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	m.mu.Lock()
	m.jobs[id] = job
	m.stops[id] = cancel
	m.mu.Unlock()

	m.sessions.TrackJob(sessionID, id)

	m.wg.Go(func() {
		m.run(runCtx, id, job.Hosts, protocol)
	})

	slog.InfoContext(ctx, "scan submitted",
		"scan_id", id, "session_id", sessionID, "protocol", protocol, "hosts", len(hosts))
	return id, nil
}

// run advances one job through its hosts in submission order.
func (m *Manager) run(ctx context.Context, jobID string, hosts []string, protocol string) {
	defer func() {
		if r := recover(); r != nil {
			m.fail(jobID, fmt.Sprintf("runner panic: %v", r))
			slog.ErrorContext(ctx, "runner failed", "scan_id", jobID, "panic", r)
		}
	}()

	started := m.now()
	for _, host := range hosts {
		if !m.beginHost(ctx, jobID, host) {
			return
		}
		out := m.probe(ctx, host, protocol)
		if !m.recordOutcome(jobID, host, protocol, out) {
			return
		}
	}
	m.complete(ctx, jobID, started)
}

// beginHost is the cooperative stop check at the top of the loop: a fired
// stop context, a deleted record or a terminal status all end the runner.
func (m *Manager) beginHost(ctx context.Context, jobID, host string) bool {
	select {
	case <-ctx.Done():
		return false
	default:
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != model.JobRunning {
		return false
	}
	job.CurrentHost = host
	return true
}

// recordOutcome applies one probe result atomically. The record may have
// been deleted while the probe was in flight; that is a stop signal, not an
// error, and nothing is mutated then.
func (m *Manager) recordOutcome(jobID, host, protocol string, out probe.Outcome) bool {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != model.JobRunning {
		return false
	}

	job.Processed++
	if out.Success {
		job.Successful++
		job.Results = append(job.Results, host)
		if out.Tunneled {
			job.Tunneled = append(job.Tunneled, model.TunnelRecord{
				Host:       host,
				Protocol:   protocol,
				TunnelType: out.TunnelType,
				DetectedAt: now,
			})
		}
	} else {
		job.Failed++
	}
	return true
}

func (m *Manager) complete(ctx context.Context, jobID string, started time.Time) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != model.JobRunning {
		m.mu.Unlock()
		return
	}
	job.Status = model.JobCompleted
	job.CurrentHost = ""
	job.Duration = m.now().Sub(started)
	sessionID := job.SessionID
	stop := m.stops[jobID]
	delete(m.stops, jobID)
	m.mu.Unlock()

	m.sessions.UntrackJob(sessionID, jobID)
	if stop != nil {
		stop()
	}
	slog.DebugContext(ctx, "scan completed", "scan_id", jobID, "duration", job.Duration)
}

// fail marks a still-running job as terminally errored. Runner failures are
// recorded, never propagated.
func (m *Manager) fail(jobID, msg string) {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok || job.Status != model.JobRunning {
		m.mu.Unlock()
		return
	}
	job.Status = model.JobError
	job.Error = msg
	job.CurrentHost = ""
	sessionID := job.SessionID
	stop := m.stops[jobID]
	delete(m.stops, jobID)
	m.mu.Unlock()

	m.sessions.UntrackJob(sessionID, jobID)
	if stop != nil {
		stop()
	}
}

// Get returns a read-only snapshot of the job. The read races with the
// runner by design; any consistent-at-lock interleaving may be observed.
func (m *Manager) Get(jobID string) (model.JobView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	job, ok := m.jobs[jobID]
	if !ok {
		return model.JobView{}, model.ErrNotFound
	}
	return snapshot(job), nil
}

func snapshot(job *model.Job) model.JobView {
	total := len(job.Hosts)
	var progress float64
	if total > 0 {
		progress = float64(job.Processed) / float64(total) * 100
	}
	hosts := make([]string, len(job.Hosts))
	copy(hosts, job.Hosts)
	results := make([]string, len(job.Results))
	copy(results, job.Results)
	view := model.JobView{
		ID:          job.ID,
		Status:      job.Status,
		Protocol:    job.Protocol,
		Hosts:       hosts,
		Total:       total,
		Processed:   job.Processed,
		Successful:  job.Successful,
		Failed:      job.Failed,
		Results:     results,
		Tunneled:    append([]model.TunnelRecord(nil), job.Tunneled...),
		CurrentHost: job.CurrentHost,
		Progress:    progress,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
	}
	if job.Status == model.JobCompleted {
		view.DurationSec = job.Duration.Seconds()
	}
	return view
}

// Cancel deletes the job record outright and fires its stop signal. A
// second cancel of the same id fails with ErrNotFound.
func (m *Manager) Cancel(jobID string) error {
	m.mu.Lock()
	job, ok := m.jobs[jobID]
	if !ok {
		m.mu.Unlock()
		return model.ErrNotFound
	}
	delete(m.jobs, jobID)
	stop := m.stops[jobID]
	delete(m.stops, jobID)
	sessionID := job.SessionID
	m.mu.Unlock()

	m.sessions.UntrackJob(sessionID, jobID)
	if stop != nil {
		stop()
	}
	slog.Debug("scan cancelled", "scan_id", jobID)
	return nil
}

// ListSession returns the jobs-created counter and a summary for every job
// still in the session's active set and still present in the registry.
// Stale ids left by cancellation or reaping are silently skipped.
func (m *Manager) ListSession(sessionID string) (jobsCreated int, jobs []model.JobSummary, err error) {
	if !m.sessions.Validate(sessionID) {
		return 0, nil, model.ErrInvalidSession
	}
	jobsCreated, active, ok := m.sessions.Snapshot(sessionID)
	if !ok {
		return 0, nil, model.ErrInvalidSession
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	jobs = make([]model.JobSummary, 0, len(active))
	for _, id := range active {
		job, found := m.jobs[id]
		if !found {
			continue
		}
		jobs = append(jobs, model.JobSummary{
			ID:         job.ID,
			Status:     job.Status,
			Protocol:   job.Protocol,
			Processed:  job.Processed,
			Total:      len(job.Hosts),
			Successful: job.Successful,
			CreatedAt:  job.CreatedAt,
		})
	}
	return jobsCreated, jobs, nil
}

// SweepExpired deletes every job older than ttl regardless of status and
// returns how many went. A still-running job is torn down the same way a
// cancelled one is.
func (m *Manager) SweepExpired(ttl time.Duration) int {
	now := m.now()

	m.mu.Lock()
	type victim struct {
		id        string
		sessionID string
		stop      context.CancelFunc
	}
	var victims []victim
	for id, job := range m.jobs {
		if now.Sub(job.CreatedAt) >= ttl {
			victims = append(victims, victim{id: id, sessionID: job.SessionID, stop: m.stops[id]})
			delete(m.jobs, id)
			delete(m.stops, id)
		}
	}
	m.mu.Unlock()

	for _, v := range victims {
		m.sessions.UntrackJob(v.sessionID, v.id)
		if v.stop != nil {
			v.stop()
		}
	}
	return len(victims)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.jobs)
}

// Close stops every runner and waits for them to exit. Job records are left
// in place; Close is for process shutdown, not cleanup.
func (m *Manager) Close() {
	m.mu.Lock()
	for id, stop := range m.stops {
		stop()
		delete(m.stops, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
