package scans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gocron "github.com/go-co-op/gocron/v2"

	"github.com/hashnet666/hydra-scanner-backend/internal/model"
	"github.com/hashnet666/hydra-scanner-backend/internal/ratelimit"
	"github.com/hashnet666/hydra-scanner-backend/internal/session"
)

// Reaper periodically evicts expired jobs and sessions and idle rate-limit
// entries. A failing cycle is logged and retried at the next tick; the
// reaper never stops on its own.
type Reaper struct {
	manager   *Manager
	sessions  *session.Store
	limiter   *ratelimit.Limiter
	jobTTL    time.Duration
	scheduler gocron.Scheduler
}

func NewReaper(ctx context.Context, manager *Manager, sessions *session.Store, limiter *ratelimit.Limiter, jobTTL time.Duration, cfg model.Reaper) (*Reaper, error) {
	r := &Reaper{
		manager:  manager,
		sessions: sessions,
		limiter:  limiter,
		jobTTL:   jobTTL,
	}

	def, err := scheduleJob(cfg)
	if err != nil {
		return nil, fmt.Errorf("reaper schedule: %w", err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("initializing gocron scheduler: %w", err)
	}
	_, err = scheduler.NewJob(
		def,
		gocron.NewTask(func() { r.Sweep(ctx) }),
	)
	if err != nil {
		return nil, fmt.Errorf("initializing gocron job: %w", err)
	}
	r.scheduler = scheduler
	return r, nil
}

// Sweep runs one eviction cycle. Exported so tests and shutdown paths can
// trigger a cycle without waiting for the schedule.
func (r *Reaper) Sweep(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.ErrorContext(ctx, "reaper cycle failed", "panic", rec)
		}
	}()

	jobs := r.manager.SweepExpired(r.jobTTL)
	sessions := r.sessions.Sweep()
	clients := r.limiter.Sweep()
	if jobs > 0 || sessions > 0 || clients > 0 {
		slog.InfoContext(ctx, "reaper cycle",
			"jobs_evicted", jobs, "sessions_evicted", sessions, "clients_evicted", clients)
	}
}

func (r *Reaper) Start() {
	r.scheduler.Start()
}

func (r *Reaper) Shutdown() error {
	return r.scheduler.Shutdown()
}
