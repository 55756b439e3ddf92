package model

import "time"

type Verdict string

const (
	VerdictPending           Verdict = "PENDING"
	VerdictInQueue           Verdict = "IN_QUEUE"
	VerdictAccepted          Verdict = "ACCEPTED"
	VerdictWrongAnswer       Verdict = "WRONG_ANSWER"
	VerdictTimeLimitExceeded Verdict = "TIME_LIMIT_EXCEEDED"
	VerdictRuntimeError      Verdict = "RUNTIME_ERROR"
	VerdictCompilationError  Verdict = "COMPILATION_ERROR"

	// VerdictJudgeUnavailable means every testcase execution of the attempt
	// failed to reach the judge. Score is zero and the submission is queued
	// for manual re-judgement; it never participates in verdict derivation.
	VerdictJudgeUnavailable Verdict = "JUDGE0_UNAVAILABLE"
)

// Submission is an append-only per-attempt record for a coding problem.
// Verdict, score and testcase counts are written once by the judge worker and
// never mutated afterwards.
type Submission struct {
	ID              string    `json:"id"`
	ContestID       string    `json:"contest_id"`
	UserID          string    `json:"user_id"`
	ProblemID       string    `json:"problem_id"`
	LanguageID      string    `json:"language_id"`
	Code            string    `json:"code,omitempty"`
	Verdict         Verdict   `json:"verdict"`
	Score           float64   `json:"score"`
	TestcasesPassed int       `json:"testcases_passed"`
	TestcasesTotal  int       `json:"testcases_total"`
	SubmittedAt     time.Time `json:"submitted_at"`

	TestcaseResults []SubmissionTestcaseResult `json:"testcase_results,omitempty"`
}

type SubmissionTestcaseResult struct {
	ID           string  `json:"id"`
	SubmissionID string  `json:"submission_id"`
	TestCaseID   string  `json:"test_case_id"`
	Verdict      Verdict `json:"verdict"`
	ActualOutput *string `json:"actual_output,omitempty"`
	TimeMs       *int    `json:"time_ms,omitempty"`
	MemoryKb     *int    `json:"memory_kb,omitempty"`
}
