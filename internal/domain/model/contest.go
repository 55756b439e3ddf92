package model

import "time"

type ContestStatus string

const (
	ContestUpcoming ContestStatus = "UPCOMING"
	ContestLive     ContestStatus = "LIVE"
	ContestEnded    ContestStatus = "ENDED"
)

// Contest is the read model this engine consumes. Contest CRUD lives in the
// management service; the engine only reads metadata and content, and the
// sweeper maintains the status column from wall-clock comparisons.
type Contest struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Slug            string        `json:"slug"`
	Status          ContestStatus `json:"status"`
	StartsAt        time.Time     `json:"starts_at"`
	EndsAt          time.Time     `json:"ends_at"`
	DurationSeconds int           `json:"duration_seconds"`

	// Section flags; a contest carries any subset of the three.
	HasMCQSection    bool `json:"has_mcq_section"`
	HasCodingSection bool `json:"has_coding_section"`
	HasFormsSection  bool `json:"has_forms_section"`
}

type MCQOption struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// MCQItem carries per-option correctness flags plus marking scheme.
type MCQItem struct {
	ID            string      `json:"id"`
	ContestID     string      `json:"contest_id"`
	Question      string      `json:"question"`
	Options       []MCQOption `json:"options"`
	Marks         float64     `json:"marks"`
	NegativeMarks float64     `json:"negative_marks"`
	Category      string      `json:"category,omitempty"`
	SortOrder     int         `json:"sort_order"`
}

// CorrectOptions returns the indices of the options flagged correct.
func (i *MCQItem) CorrectOptions() []int {
	var correct []int
	for idx, opt := range i.Options {
		if opt.Correct {
			correct = append(correct, idx)
		}
	}
	return correct
}

// CodingProblem is a contest problem with its judge testcases.
type CodingProblem struct {
	ID             string     `json:"id"`
	ContestID      string     `json:"contest_id"`
	Title          string     `json:"title"`
	RuntimeLimitMs int        `json:"runtime_limit_ms"`
	MemoryLimitKb  int        `json:"memory_limit_kb"`
	TestCases      []TestCase `json:"test_cases,omitempty"`
}

type TestCase struct {
	ID             string  `json:"id"`
	ProblemID      string  `json:"problem_id"`
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	Points         float64 `json:"points"`
	SortOrder      int     `json:"sort_order"`
}
