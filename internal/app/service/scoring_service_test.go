package service

import (
	"context"
	"testing"

	"contest_arena/internal/domain/model"

	"github.com/stretchr/testify/require"
)

func mcqItem(id string, marks, negative float64, correct ...int) model.MCQItem {
	options := make([]model.MCQOption, 4)
	for i := range options {
		options[i] = model.MCQOption{Text: "opt"}
	}
	for _, idx := range correct {
		options[idx].Correct = true
	}
	return model.MCQItem{
		ID:            id,
		ContestID:     "c1",
		Options:       options,
		Marks:         marks,
		NegativeMarks: negative,
	}
}

func TestScoreMCQExactSetMatch(t *testing.T) {
	contestRepo := newFakeContestRepo()
	contestRepo.mcqItems["c1"] = []model.MCQItem{
		mcqItem("q1", 4, 1, 0, 2), // multi-select, correct = {0, 2}
		mcqItem("q2", 2, 0.5, 1),
		mcqItem("q3", 2, 0.5, 3),
	}
	svc := NewScoringService(contestRepo, newFakeSubmissionRepo())

	session := &model.Session{
		ID:        "s1",
		ContestID: "c1",
		UserID:    "u1",
		MCQAnswers: map[string][]int{
			"q1": {2, 0}, // order must not matter
			"q2": {1},
			// q3 unanswered
		},
	}

	breakdown, err := svc.Score(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, 6.0, breakdown.MCQScore)
	require.Len(t, breakdown.MCQDetails, 3)
	require.True(t, breakdown.MCQDetails[0].IsRight)
	require.False(t, breakdown.MCQDetails[2].Answered)
	require.Equal(t, 0.0, breakdown.MCQDetails[2].Awarded)
}

func TestScoreMCQSubsetGetsNegativeMarks(t *testing.T) {
	contestRepo := newFakeContestRepo()
	contestRepo.mcqItems["c1"] = []model.MCQItem{
		mcqItem("q1", 4, 0.5, 0, 2),
	}
	svc := NewScoringService(contestRepo, newFakeSubmissionRepo())

	session := &model.Session{
		ContestID:  "c1",
		UserID:     "u1",
		MCQAnswers: map[string][]int{"q1": {0}}, // subset of correct, no partial credit
	}

	breakdown, err := svc.Score(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, -0.5, breakdown.MCQScore)
	require.False(t, breakdown.MCQDetails[0].IsRight)
}

func TestScoreMCQSupersetGetsNegativeMarks(t *testing.T) {
	contestRepo := newFakeContestRepo()
	contestRepo.mcqItems["c1"] = []model.MCQItem{
		mcqItem("q1", 4, 1, 0),
	}
	svc := NewScoringService(contestRepo, newFakeSubmissionRepo())

	session := &model.Session{
		ContestID:  "c1",
		UserID:     "u1",
		MCQAnswers: map[string][]int{"q1": {0, 1}},
	}

	breakdown, err := svc.Score(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, -1.0, breakdown.MCQScore)
}

func TestScoreCodingTakesBestAcceptedAttempt(t *testing.T) {
	contestRepo := newFakeContestRepo()
	contestRepo.problems["c1"] = []model.CodingProblem{
		{ID: "p1", ContestID: "c1"},
		{ID: "p2", ContestID: "c1"},
	}
	submissionRepo := newFakeSubmissionRepo()
	for _, sub := range []model.Submission{
		{ID: "a1", ContestID: "c1", UserID: "u1", ProblemID: "p1", Verdict: model.VerdictAccepted, Score: 30},
		{ID: "a2", ContestID: "c1", UserID: "u1", ProblemID: "p1", Verdict: model.VerdictAccepted, Score: 50},
		{ID: "a3", ContestID: "c1", UserID: "u1", ProblemID: "p1", Verdict: model.VerdictWrongAnswer, Score: 80},
		{ID: "a4", ContestID: "c1", UserID: "u1", ProblemID: "p2", Verdict: model.VerdictJudgeUnavailable, Score: 0},
		{ID: "a5", ContestID: "c1", UserID: "u2", ProblemID: "p1", Verdict: model.VerdictAccepted, Score: 100},
	} {
		s := sub
		require.NoError(t, submissionRepo.Create(context.Background(), &s))
	}
	svc := NewScoringService(contestRepo, submissionRepo)

	breakdown, err := svc.Score(context.Background(), &model.Session{ContestID: "c1", UserID: "u1"})
	require.NoError(t, err)
	// best accepted for p1 is 50; the wrong-answer 80 and unavailable attempt
	// contribute nothing, and u2's attempts are invisible
	require.Equal(t, 50.0, breakdown.CodingScore)
	require.Len(t, breakdown.CodingDetails, 2)
	require.Equal(t, 3, breakdown.CodingDetails[0].Attempts)
	require.Equal(t, 0.0, breakdown.CodingDetails[1].BestScore)
}

func TestScoreIsDeterministic(t *testing.T) {
	contestRepo := newFakeContestRepo()
	contestRepo.mcqItems["c1"] = []model.MCQItem{mcqItem("q1", 4, 1, 1)}
	svc := NewScoringService(contestRepo, newFakeSubmissionRepo())
	session := &model.Session{ContestID: "c1", UserID: "u1", MCQAnswers: map[string][]int{"q1": {1}}}

	first, err := svc.Score(context.Background(), session)
	require.NoError(t, err)
	second, err := svc.Score(context.Background(), session)
	require.NoError(t, err)
	require.Equal(t, first.MCQScore, second.MCQScore)
	require.Equal(t, first.CodingScore, second.CodingScore)
}

func TestIntSetEqual(t *testing.T) {
	require.True(t, intSetEqual([]int{0, 2}, []int{2, 0}))
	require.False(t, intSetEqual([]int{0}, []int{0, 2}))
	require.False(t, intSetEqual([]int{0, 1}, []int{0, 2}))
	require.False(t, intSetEqual([]int{0, 0}, []int{0, 1})) // duplicates are not a set match
	require.True(t, intSetEqual(nil, nil))
}
