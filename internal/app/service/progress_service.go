package service

import (
	"context"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"
)

// ProgressService tracks elapsed time and answer state for live sessions.
// All accumulators are additive: clients send periodic focus deltas and a
// replace-based model would lose time when pings arrive out of order. Deltas
// carry no idempotency key, so a retried ping double-counts; callers must
// send each delta at most once.
type ProgressService struct {
	sessionRepo repository.SessionRepository
	contestRepo repository.ContestRepository
	now         nowFunc
}

func NewProgressService(sessionRepo repository.SessionRepository, contestRepo repository.ContestRepository) *ProgressService {
	return &ProgressService{sessionRepo: sessionRepo, contestRepo: contestRepo, now: defaultNow}
}

// RecordTime adds deltaSeconds to the accumulator the scope names. Terminal
// sessions swallow the ping silently: late client timers are not an error.
func (s *ProgressService) RecordTime(ctx context.Context, contestID, userID string, scope model.TimeScope, itemID string, deltaSeconds int) error {
	if !scope.Valid() {
		return common.Errorf("unknown time scope %q: %w", scope, common.ErrValidation)
	}
	if deltaSeconds <= 0 {
		return common.Errorf("time delta must be positive: %w", common.ErrValidation)
	}
	if scope.ItemScoped() && itemID == "" {
		return common.Errorf("item_id required for scope %q: %w", scope, common.ErrValidation)
	}

	session, err := s.sessionRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return nil
	}

	if scope.ItemScoped() {
		_, err = s.sessionRepo.UpsertItemTime(ctx, session.ID, scope, itemID, deltaSeconds)
	} else {
		_, err = s.sessionRepo.AddSectionTime(ctx, session.ID, scope, deltaSeconds)
	}
	return err
}

// SaveAnswers overwrites the MCQ answer snapshot wholesale (last write wins
// for answers, unlike the additive time accumulators). Terminal sessions
// reject the write as a silent no-op.
func (s *ProgressService) SaveAnswers(ctx context.Context, contestID, userID string, answers map[string][]int) error {
	session, err := s.sessionRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return err
	}
	if session.Status.Terminal() {
		return nil
	}
	_, err = s.sessionRepo.SaveAnswers(ctx, nil, session.ID, answers)
	return err
}

// ProgressView is the client's polling payload.
type ProgressView struct {
	Session          *model.Session   `json:"session"`
	RemainingSeconds int              `json:"remaining_seconds"`
	ItemTimes        []model.ItemTime `json:"item_times,omitempty"`
}

// Progress returns remaining time plus current status for a session.
func (s *ProgressService) Progress(ctx context.Context, contestID, userID string) (*ProgressView, error) {
	session, err := s.sessionRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	itemTimes, err := s.sessionRepo.ListItemTimes(ctx, session.ID)
	if err != nil {
		return nil, err
	}

	view := &ProgressView{Session: session, ItemTimes: itemTimes}
	if !session.Status.Terminal() {
		view.RemainingSeconds = session.RemainingSeconds(contest.DurationSeconds, s.now())
	}
	return view, nil
}
