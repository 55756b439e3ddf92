package service

import (
	"context"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// FormService handles the free-form graded section. Auto-scorable fields are
// scored at submission time; manually graded fields arrive later through the
// evaluation pathway and merge into the leaderboard at read time.
type FormService struct {
	formRepo    repository.FormRepository
	sessionRepo repository.SessionRepository
	now         nowFunc
	log         zerolog.Logger
}

func NewFormService(formRepo repository.FormRepository, sessionRepo repository.SessionRepository, log zerolog.Logger) *FormService {
	return &FormService{formRepo: formRepo, sessionRepo: sessionRepo, now: defaultNow, log: log}
}

type FormAnswerInput struct {
	FieldID  string `json:"field_id"`
	Selected []int  `json:"selected,omitempty"`
	Text     string `json:"text,omitempty"`
}

// Submit scores the auto-scorable fields and persists the submission. Exact
// match for single-select, exact set match with no extras for multi-select;
// text fields wait for an evaluator.
func (s *FormService) Submit(ctx context.Context, contestID, userID string, answers []FormAnswerInput) (*model.FormSubmission, error) {
	session, err := s.sessionRepo.FindByContestAndUser(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	if session.Status.Terminal() {
		return nil, common.Errorf("cannot submit form after the session ended: %w", common.ErrAlreadyTerminal)
	}

	fields, err := s.formRepo.ListFields(ctx, contestID)
	if err != nil {
		return nil, err
	}
	fieldsByID := make(map[string]*model.FormField, len(fields))
	for i := range fields {
		fieldsByID[fields[i].ID] = &fields[i]
	}

	submission := &model.FormSubmission{
		ID:          uuid.NewString(),
		ContestID:   contestID,
		UserID:      userID,
		SubmittedAt: s.now(),
	}
	for _, ans := range answers {
		field, ok := fieldsByID[ans.FieldID]
		if !ok {
			return nil, common.Errorf("unknown form field %q: %w", ans.FieldID, common.ErrValidation)
		}
		answer := model.FormFieldAnswer{
			ID:       uuid.NewString(),
			FieldID:  ans.FieldID,
			Selected: ans.Selected,
			Text:     ans.Text,
		}
		if field.Type.AutoScored() && intSetEqual(ans.Selected, field.CorrectOptions) && len(ans.Selected) > 0 {
			answer.AutoScore = field.MaxScore
		}
		submission.Fields = append(submission.Fields, answer)
	}

	if err := s.formRepo.CreateSubmission(ctx, submission); err != nil {
		return nil, err
	}
	s.log.Info().Str("submission", submission.ID).Str("contest", contestID).Str("user", userID).Msg("form submitted")
	return submission, nil
}

// Evaluate ingests a manual score from the evaluation pathway. This can run
// long after the contest session ended; leaderboard reads pick it up.
func (s *FormService) Evaluate(ctx context.Context, answerID string, manualScore float64, feedback, evaluatorID string) error {
	if manualScore < 0 {
		return common.Errorf("manual score cannot be negative: %w", common.ErrValidation)
	}
	return s.formRepo.SetManualScore(ctx, answerID, manualScore, feedback, evaluatorID, s.now())
}

// FormStatus is a submission plus its evaluation completeness.
type FormStatus struct {
	Submission     *model.FormSubmission `json:"submission"`
	TotalScore     float64               `json:"total_score"`
	FullyEvaluated bool                  `json:"fully_evaluated"`
}

// Status reports a participant's form submission and whether every
// manually-graded field has been evaluated.
func (s *FormService) Status(ctx context.Context, contestID, userID string) (*FormStatus, error) {
	submission, err := s.formRepo.FindSubmissionByPair(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}
	fields, err := s.formRepo.ListFields(ctx, contestID)
	if err != nil {
		return nil, err
	}
	return &FormStatus{
		Submission:     submission,
		TotalScore:     submission.TotalScore(),
		FullyEvaluated: fullyEvaluated(submission, fields),
	}, nil
}

// fullyEvaluated is true iff every answer on a non-auto-scored field carries
// a manual score.
func fullyEvaluated(sub *model.FormSubmission, fields []model.FormField) bool {
	autoByID := make(map[string]bool, len(fields))
	for _, f := range fields {
		autoByID[f.ID] = f.Type.AutoScored()
	}
	for i := range sub.Fields {
		if !autoByID[sub.Fields[i].FieldID] && sub.Fields[i].ManualScore == nil {
			return false
		}
	}
	return true
}
