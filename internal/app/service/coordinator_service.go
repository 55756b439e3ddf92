package service

import (
	"context"
	"database/sql"
	"time"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"
	"contest_arena/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CoordinatorService owns the session state machine. Manual submit, the
// sweeper's autosubmit and the violation monitor's force-submit all funnel
// into one finalize path built on the repository's compare-and-set status
// flip, so "first writer wins, everyone else no-ops" is enforced in exactly
// one place.
type CoordinatorService struct {
	sessionRepo repository.SessionRepository
	contestRepo repository.ContestRepository
	resultRepo  repository.ResultRepository
	scoring     *ScoringService
	db          *sql.DB
	now         func() time.Time
	log         zerolog.Logger
}

func NewCoordinatorService(
	sessionRepo repository.SessionRepository,
	contestRepo repository.ContestRepository,
	resultRepo repository.ResultRepository,
	scoring *ScoringService,
	db *sql.DB,
	log zerolog.Logger,
) *CoordinatorService {
	return &CoordinatorService{
		sessionRepo: sessionRepo,
		contestRepo: contestRepo,
		resultRepo:  resultRepo,
		scoring:     scoring,
		db:          db,
		now:         time.Now,
		log:         log,
	}
}

// Start creates the session for a (contest, user) pair, or returns the
// existing one so client retries are harmless. startedAt is never
// re-initialized.
func (s *CoordinatorService) Start(ctx context.Context, contestID, userID string) (*model.Session, bool, error) {
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, false, err
	}
	if contest.Status != model.ContestLive {
		return nil, false, common.Errorf("contest %s has status %s: %w", contestID, contest.Status, common.ErrContestNotLive)
	}

	session := &model.Session{
		ID:        uuid.NewString(),
		ContestID: contestID,
		UserID:    userID,
		Status:    model.SessionInProgress,
		StartedAt: s.now(),
	}
	existing, created, err := s.sessionRepo.CreateIfAbsent(ctx, session)
	if err != nil {
		return nil, false, err
	}
	if created {
		s.log.Info().Str("session", existing.ID).Str("contest", contestID).Str("user", userID).Msg("session started")
	}
	return existing, created, nil
}

// ManualSubmit finalizes the session on the participant's explicit action,
// optionally persisting a last answer snapshot first. If a concurrent
// autosubmit or force-submit got there first the call still succeeds: the
// participant sees a submitted session either way, never an error.
func (s *CoordinatorService) ManualSubmit(ctx context.Context, contestID, userID string, answers map[string][]int) (*model.Session, error) {
	session, err := s.sessionRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	if err := s.finalize(ctx, session, model.SessionSubmitted, nil, answers); err != nil {
		return nil, err
	}
	return s.sessionRepo.FindByID(ctx, session.ID)
}

// AutoSubmit is the sweeper's entry point for a session past its deadline.
// Idempotent: a session that already raced to terminal is a no-op.
func (s *CoordinatorService) AutoSubmit(ctx context.Context, sessionID string) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	reason := model.TerminationTimeout
	return s.finalize(ctx, session, model.SessionTimedOut, &reason, nil)
}

// ForceSubmit is the violation monitor's entry point. Same idempotence as
// AutoSubmit.
func (s *CoordinatorService) ForceSubmit(ctx context.Context, sessionID string, reason model.TerminationReason) error {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return err
	}
	return s.finalize(ctx, session, model.SessionTimedOut, &reason, nil)
}

// finalize flips the session to terminal, scores it and upserts the result —
// all inside one transaction, so nobody can observe a terminal-but-unscored
// session. Exactly one concurrent caller applies the transition; the rest see
// AlreadyTerminal and return success without rescoring.
func (s *CoordinatorService) finalize(ctx context.Context, session *model.Session, status model.SessionStatus, reason *model.TerminationReason, answers map[string][]int) error {
	contest, err := s.contestRepo.FindByID(ctx, session.ContestID)
	if err != nil {
		return err
	}

	now := s.now()
	totalTimeSpent := int(now.Sub(session.StartedAt).Seconds())
	if totalTimeSpent > contest.DurationSeconds {
		// A late sweep can never report more than the allotted duration.
		totalTimeSpent = contest.DurationSeconds
	}
	if totalTimeSpent < 0 {
		totalTimeSpent = 0
	}

	// nil db falls back to the non-transactional path; repositories treat a
	// nil tx as "use the pool".
	var tx *sql.Tx
	if s.db != nil {
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return common.Errorf("finalize: begin transaction: %w", err)
		}
		defer tx.Rollback()
	}

	if answers != nil {
		if _, err := s.sessionRepo.SaveAnswers(ctx, tx, session.ID, answers); err != nil {
			return err
		}
	}

	outcome, savedAnswers, err := s.sessionRepo.TransitionToTerminal(ctx, tx, session.ID, status, reason, now, totalTimeSpent)
	if err != nil {
		return err
	}
	switch outcome {
	case repository.TransitionAlreadyTerminal:
		// Another path won the race; its scoring already happened.
		return nil
	case repository.TransitionNotFound:
		return common.ErrSessionNotFound
	}

	// Score from the snapshot the flip returned, not the session loaded
	// before the transaction: an autosave that committed in between is part
	// of the terminal state and must count.
	session.MCQAnswers = savedAnswers

	breakdown, err := s.scoring.Score(ctx, session)
	if err != nil {
		return common.Errorf("finalize: score session %s: %w", session.ID, err)
	}

	result := &model.Result{
		ContestID:   session.ContestID,
		UserID:      session.UserID,
		MCQScore:    breakdown.MCQScore,
		CodingScore: breakdown.CodingScore,
		TotalScore:  breakdown.MCQScore + breakdown.CodingScore,
		TimeTaken:   totalTimeSpent,
		Status:      status,
		SubmittedAt: now,
	}
	if err := s.resultRepo.Upsert(ctx, tx, result); err != nil {
		return err
	}

	if tx != nil {
		if err := tx.Commit(); err != nil {
			return common.Errorf("finalize: commit: %w", err)
		}
	}

	if reason != nil && *reason == model.TerminationTimeout {
		metrics.SessionsAutoSubmitted.Inc()
	}
	s.log.Info().
		Str("session", session.ID).
		Str("status", string(status)).
		Int("time_taken", totalTimeSpent).
		Float64("total_score", result.TotalScore).
		Msg("session finalized")
	return nil
}
