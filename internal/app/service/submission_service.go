package service

import (
	"context"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// SubmissionService accepts coding attempts and enqueues them for the judge
// worker. Submissions are append-only; the worker writes the verdict once.
type SubmissionService struct {
	submissionRepo repository.SubmissionRepository
	contestRepo    repository.ContestRepository
	sessionRepo    repository.SessionRepository
	rdb            *redis.Client
	queueName      string
	now            nowFunc
	log            zerolog.Logger
}

func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	contestRepo repository.ContestRepository,
	sessionRepo repository.SessionRepository,
	rdb *redis.Client,
	queueName string,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		submissionRepo: submissionRepo,
		contestRepo:    contestRepo,
		sessionRepo:    sessionRepo,
		rdb:            rdb,
		queueName:      queueName,
		now:            defaultNow,
		log:            log,
	}
}

type CreateSubmissionRequest struct {
	ProblemID  string `json:"problem_id"`
	LanguageID string `json:"language_id"`
	Code       string `json:"code"`
}

// Create validates that the participant has a live session and the problem
// belongs to the contest, records the attempt, and pushes it on the judge
// queue.
func (s *SubmissionService) Create(ctx context.Context, contestID, userID string, req CreateSubmissionRequest) (*model.Submission, error) {
	if req.ProblemID == "" || req.LanguageID == "" || req.Code == "" {
		return nil, common.Errorf("problem_id, language_id and code are required: %w", common.ErrValidation)
	}

	session, err := s.sessionRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, common.Errorf("cannot submit code after the session ended: %w", common.ErrAlreadyTerminal)
	}

	problem, err := s.contestRepo.FindProblemByID(ctx, req.ProblemID)
	if err != nil {
		return nil, common.Errorf("problem not found: %w", err)
	}
	if problem.ContestID != contestID {
		return nil, common.Errorf("problem does not belong to this contest: %w", common.ErrBadRequest)
	}

	submission := &model.Submission{
		ID:          uuid.NewString(),
		ContestID:   contestID,
		UserID:      userID,
		ProblemID:   req.ProblemID,
		LanguageID:  req.LanguageID,
		Code:        req.Code,
		Verdict:     model.VerdictPending,
		SubmittedAt: s.now(),
	}
	if err := s.submissionRepo.Create(ctx, submission); err != nil {
		return nil, err
	}

	if err := s.rdb.LPush(ctx, s.queueName, submission.ID).Err(); err != nil {
		// The record exists; a stuck PENDING submission is surfaced by the
		// review listing rather than failing the participant's request.
		s.log.Error().Err(err).Str("submission", submission.ID).Msg("failed to enqueue submission for judging")
	} else {
		submission.Verdict = model.VerdictInQueue
		if err := s.submissionRepo.MarkJudged(ctx, nil, submission.ID, model.VerdictInQueue, 0, 0, 0); err != nil {
			// The attempt is queued regardless; the worker rewrites the
			// verdict when it picks the job up.
			s.log.Error().Err(err).Str("submission", submission.ID).Msg("failed to record queued verdict")
		}
	}

	s.log.Info().Str("submission", submission.ID).Str("problem", req.ProblemID).Str("user", userID).Msg("submission created")
	return submission, nil
}

// Get returns one attempt with its per-testcase results.
func (s *SubmissionService) Get(ctx context.Context, submissionID string) (*model.Submission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	results, err := s.submissionRepo.ListTestcaseResults(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	sub.TestcaseResults = results
	return sub, nil
}

// ListMine returns a participant's attempts for one contest.
func (s *SubmissionService) ListMine(ctx context.Context, contestID, userID string) ([]model.Submission, error) {
	return s.submissionRepo.ListByPair(ctx, contestID, userID)
}

// ListNeedingReview surfaces attempts flagged JUDGE0_UNAVAILABLE for manual
// re-judgement by administrators.
func (s *SubmissionService) ListNeedingReview(ctx context.Context, contestID string) ([]model.Submission, error) {
	return s.submissionRepo.ListNeedingReview(ctx, contestID)
}
