package model

import "time"

// Result is the scored outcome of a terminal session. It is upserted by the
// submission coordinator (mcq/coding fields) and recomputable at any time:
// the same terminal session plus the same underlying answer data always
// reproduces the same scores. Forms are merged in at leaderboard read time
// because their evaluation can outlive the session.
type Result struct {
	ContestID   string        `json:"contest_id"`
	UserID      string        `json:"user_id"`
	MCQScore    float64       `json:"mcq_score"`
	CodingScore float64       `json:"coding_score"`
	FormsScore  float64       `json:"forms_score"`
	TotalScore  float64       `json:"total_score"`
	TimeTaken   int           `json:"time_taken"` // seconds
	Rank        *int          `json:"rank,omitempty"`
	Status      SessionStatus `json:"status"`
	SubmittedAt time.Time     `json:"submitted_at"`
}

// LeaderboardEntry is one ranked row of a contest leaderboard.
type LeaderboardEntry struct {
	Rank        int           `json:"rank"`
	UserID      string        `json:"user_id"`
	MCQScore    float64       `json:"mcq_score"`
	CodingScore float64       `json:"coding_score"`
	FormsScore  float64       `json:"forms_score"`
	TotalScore  float64       `json:"total_score"`
	TimeTaken   int           `json:"time_taken"`
	Status      SessionStatus `json:"status"`
}

// Leaderboard is a freshly ranked snapshot for one contest.
type Leaderboard struct {
	ContestID   string             `json:"contest_id"`
	Entries     []LeaderboardEntry `json:"entries"`
	GeneratedAt time.Time          `json:"generated_at"`
}
