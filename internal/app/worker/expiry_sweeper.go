package worker

import (
	"context"
	"time"

	"contest_arena/internal/app/service"
	"contest_arena/internal/domain/repository"
	"contest_arena/internal/platform/metrics"

	"github.com/rs/zerolog"
)

// ExpirySweeper periodically terminates sessions that outlived their time
// budget plus a grace period (the grace absorbs clock skew and last-second
// client submits). It also drives contest UPCOMING/LIVE/ENDED transitions,
// a simpler chore of the same schedule.
type ExpirySweeper struct {
	sessionRepo repository.SessionRepository
	contestRepo repository.ContestRepository
	coordinator *service.CoordinatorService
	interval    time.Duration
	grace       time.Duration
	now         func() time.Time
	log         zerolog.Logger
}

func NewExpirySweeper(
	sessionRepo repository.SessionRepository,
	contestRepo repository.ContestRepository,
	coordinator *service.CoordinatorService,
	interval, grace time.Duration,
	log zerolog.Logger,
) *ExpirySweeper {
	return &ExpirySweeper{
		sessionRepo: sessionRepo,
		contestRepo: contestRepo,
		coordinator: coordinator,
		interval:    interval,
		grace:       grace,
		now:         time.Now,
		log:         log,
	}
}

// Start blocks, sweeping on a fixed interval until the context is canceled.
func (w *ExpirySweeper) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Dur("grace", w.grace).Msg("expiry sweeper started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("expiry sweeper stopping")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many sessions it terminated. Each
// session's autosubmit is isolated: one failure is logged and skipped, the
// session stays IN_PROGRESS and is retried on the next tick.
func (w *ExpirySweeper) Sweep(ctx context.Context) int {
	metrics.SweepsTotal.Inc()

	if started, ended, err := w.contestRepo.TransitionStatuses(ctx, w.now()); err != nil {
		w.log.Error().Err(err).Msg("contest status transition failed")
	} else if started > 0 || ended > 0 {
		w.log.Info().Int64("started", started).Int64("ended", ended).Msg("contest statuses transitioned")
	}

	deadlines, err := w.sessionRepo.ListExpired(ctx, w.now(), w.grace)
	if err != nil {
		w.log.Error().Err(err).Msg("failed to list expired sessions")
		return 0
	}

	terminated := 0
	for _, d := range deadlines {
		if err := w.coordinator.AutoSubmit(ctx, d.SessionID); err != nil {
			metrics.SweepFailures.Inc()
			w.log.Error().Err(err).
				Str("session", d.SessionID).
				Str("contest", d.ContestID).
				Msg("autosubmit failed, will retry next sweep")
			continue
		}
		terminated++
	}

	if terminated > 0 {
		w.log.Info().Int("terminated", terminated).Msg("expired sessions auto-submitted")
	}
	return terminated
}
