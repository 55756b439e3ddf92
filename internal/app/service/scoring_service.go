package service

import (
	"context"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"
)

// ScoringService computes the terminal score of a session. It is a pure
// function over the session's saved MCQ answer snapshot, the contest's MCQ
// item set and the submission log; re-running it for the same inputs always
// reproduces the same breakdown.
type ScoringService struct {
	contestRepo    repository.ContestRepository
	submissionRepo repository.SubmissionRepository
}

func NewScoringService(contestRepo repository.ContestRepository, submissionRepo repository.SubmissionRepository) *ScoringService {
	return &ScoringService{contestRepo: contestRepo, submissionRepo: submissionRepo}
}

type MCQAnswerDetail struct {
	ItemID   string  `json:"item_id"`
	Selected []int   `json:"selected,omitempty"`
	Correct  []int   `json:"correct"`
	Answered bool    `json:"answered"`
	IsRight  bool    `json:"is_right"`
	Awarded  float64 `json:"awarded"`
}

type CodingProblemDetail struct {
	ProblemID   string             `json:"problem_id"`
	BestScore   float64            `json:"best_score"`
	Attempts    int                `json:"attempts"`
	Submissions []model.Submission `json:"submissions,omitempty"`
}

type ScoreBreakdown struct {
	MCQScore      float64               `json:"mcq_score"`
	CodingScore   float64               `json:"coding_score"`
	MCQDetails    []MCQAnswerDetail     `json:"mcq_details"`
	CodingDetails []CodingProblemDetail `json:"coding_details"`
}

// Score aggregates per-section scores for a session.
func (s *ScoringService) Score(ctx context.Context, session *model.Session) (*ScoreBreakdown, error) {
	breakdown := &ScoreBreakdown{}

	items, err := s.contestRepo.ListMCQItems(ctx, session.ContestID)
	if err != nil {
		return nil, common.Errorf("scoring: load mcq items: %w", err)
	}
	for i := range items {
		detail := scoreMCQItem(&items[i], session.MCQAnswers)
		breakdown.MCQScore += detail.Awarded
		breakdown.MCQDetails = append(breakdown.MCQDetails, detail)
	}

	problems, err := s.contestRepo.ListProblems(ctx, session.ContestID)
	if err != nil {
		return nil, common.Errorf("scoring: load problems: %w", err)
	}
	if len(problems) > 0 {
		subs, err := s.submissionRepo.ListByPair(ctx, session.ContestID, session.UserID)
		if err != nil {
			return nil, common.Errorf("scoring: load submissions: %w", err)
		}
		byProblem := make(map[string][]model.Submission)
		for _, sub := range subs {
			byProblem[sub.ProblemID] = append(byProblem[sub.ProblemID], sub)
		}
		for _, problem := range problems {
			detail := scoreProblem(problem.ID, byProblem[problem.ID])
			breakdown.CodingScore += detail.BestScore
			breakdown.CodingDetails = append(breakdown.CodingDetails, detail)
		}
	}

	return breakdown, nil
}

// scoreMCQItem applies exact-set correctness: the selected option set must
// equal the correct option set, no partial credit for subsets. Unanswered
// items score zero and take no negative-marking penalty.
func scoreMCQItem(item *model.MCQItem, answers map[string][]int) MCQAnswerDetail {
	detail := MCQAnswerDetail{
		ItemID:  item.ID,
		Correct: item.CorrectOptions(),
	}

	selected, ok := answers[item.ID]
	if !ok || len(selected) == 0 {
		return detail
	}
	detail.Answered = true
	detail.Selected = selected

	if intSetEqual(selected, detail.Correct) {
		detail.IsRight = true
		detail.Awarded = item.Marks
	} else {
		detail.Awarded = -item.NegativeMarks
	}
	return detail
}

// scoreProblem takes the maximum score among accepted attempts. Attempts with
// other verdicts (including JUDGE0_UNAVAILABLE) are kept in the detail for
// audit but contribute nothing to the score.
func scoreProblem(problemID string, attempts []model.Submission) CodingProblemDetail {
	detail := CodingProblemDetail{
		ProblemID:   problemID,
		Attempts:    len(attempts),
		Submissions: attempts,
	}
	for _, sub := range attempts {
		if sub.Verdict == model.VerdictAccepted && sub.Score > detail.BestScore {
			detail.BestScore = sub.Score
		}
	}
	return detail
}

func intSetEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[int]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	if len(seen) != len(b) {
		return false
	}
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			return false
		}
	}
	return true
}
