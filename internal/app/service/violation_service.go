package service

import (
	"context"
	"errors"
	"time"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"
	"contest_arena/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type nowFunc func() time.Time

func defaultNow() time.Time { return time.Now() }

// ViolationService records proctoring violations and escalates to forced
// submission once the warning limit is breached. It is the only path that
// terminates a session with reason MALPRACTICE.
type ViolationService struct {
	sessionRepo   repository.SessionRepository
	violationRepo repository.ViolationRepository
	coordinator   *CoordinatorService
	warningLimit  int
	now           nowFunc
	log           zerolog.Logger
}

func NewViolationService(
	sessionRepo repository.SessionRepository,
	violationRepo repository.ViolationRepository,
	coordinator *CoordinatorService,
	warningLimit int,
	log zerolog.Logger,
) *ViolationService {
	return &ViolationService{
		sessionRepo:   sessionRepo,
		violationRepo: violationRepo,
		coordinator:   coordinator,
		warningLimit:  warningLimit,
		now:           defaultNow,
		log:           log,
	}
}

type ViolationOutcome struct {
	WarningNumber       int  `json:"warning_number"`
	MaxWarnings         int  `json:"max_warnings"`
	AutoSubmitTriggered bool `json:"auto_submit_triggered"`
}

// RecordViolation atomically bumps the session's warning count, appends the
// violation log entry stamped with the post-increment number, and
// force-submits when the limit is reached. Violations reported after the
// session went terminal are swallowed: the client gets a success with
// whatever count the session ended on.
func (s *ViolationService) RecordViolation(ctx context.Context, contestID, userID string, vtype model.ViolationType, details string) (*ViolationOutcome, error) {
	session, err := s.sessionRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}

	warningNumber, err := s.sessionRepo.IncrementWarning(ctx, session.ID)
	if err != nil {
		if errors.Is(err, common.ErrAlreadyTerminal) {
			return &ViolationOutcome{
				WarningNumber: session.WarningCount,
				MaxWarnings:   s.warningLimit,
			}, nil
		}
		return nil, err
	}

	violation := &model.Violation{
		ID:            uuid.NewString(),
		ContestID:     contestID,
		UserID:        userID,
		Type:          vtype,
		WarningNumber: warningNumber,
		Details:       details,
		CreatedAt:     s.now(),
	}
	if err := s.violationRepo.Append(ctx, violation); err != nil {
		return nil, err
	}

	outcome := &ViolationOutcome{
		WarningNumber: warningNumber,
		MaxWarnings:   s.warningLimit,
	}
	if warningNumber >= s.warningLimit {
		if err := s.coordinator.ForceSubmit(ctx, session.ID, model.TerminationMalpractice); err != nil {
			return nil, common.Errorf("force-submit after warning %d: %w", warningNumber, err)
		}
		outcome.AutoSubmitTriggered = true
		metrics.SessionsForceSubmitted.Inc()
		s.log.Warn().
			Str("session", session.ID).
			Int("warning_number", warningNumber).
			Str("type", string(vtype)).
			Msg("warning limit breached, session force-submitted")
	}
	return outcome, nil
}

// History returns the ordered violation log for a session.
func (s *ViolationService) History(ctx context.Context, contestID, userID string) ([]model.Violation, error) {
	return s.violationRepo.ListByPair(ctx, contestID, userID)
}
