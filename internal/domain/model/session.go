package model

import "time"

type SessionStatus string

const (
	SessionInProgress SessionStatus = "IN_PROGRESS"
	SessionSubmitted  SessionStatus = "SUBMITTED"
	SessionTimedOut   SessionStatus = "TIMED_OUT"
)

// Terminal reports whether no further mutation of the session is permitted.
func (s SessionStatus) Terminal() bool {
	return s == SessionSubmitted || s == SessionTimedOut
}

type TerminationReason string

const (
	TerminationTimeout     TerminationReason = "TIMEOUT"
	TerminationMalpractice TerminationReason = "MALPRACTICE"
)

// TimeScope identifies which accumulator a time delta lands on.
type TimeScope string

const (
	ScopeMCQItem       TimeScope = "mcq-item"
	ScopeCodingItem    TimeScope = "coding-item"
	ScopeMCQSection    TimeScope = "mcq-section"
	ScopeCodingSection TimeScope = "coding-section"
)

func (s TimeScope) Valid() bool {
	switch s {
	case ScopeMCQItem, ScopeCodingItem, ScopeMCQSection, ScopeCodingSection:
		return true
	}
	return false
}

func (s TimeScope) ItemScoped() bool {
	return s == ScopeMCQItem || s == ScopeCodingItem
}

// Session is the live record of one participant's attempt at one contest
// (unique per contest/user pair).
type Session struct {
	ID                string             `json:"id"`
	ContestID         string             `json:"contest_id"`
	UserID            string             `json:"user_id"`
	Status            SessionStatus      `json:"status"`
	StartedAt         time.Time          `json:"started_at"`
	SubmittedAt       *time.Time         `json:"submitted_at,omitempty"`
	TotalTimeSpent    int                `json:"total_time_spent"` // seconds, capped at contest duration
	TerminationReason *TerminationReason `json:"termination_reason,omitempty"`
	WarningCount      int                `json:"warning_count"`

	// Section accumulators, additive only.
	MCQSectionTime    int `json:"mcq_section_time"`
	CodingSectionTime int `json:"coding_section_time"`

	// Latest MCQ answer snapshot: question ID -> selected option indices.
	// Overwritten wholesale on each autosave.
	MCQAnswers map[string][]int `json:"mcq_answers,omitempty"`
}

// ItemTime is the per-item accumulated focus time within a session.
type ItemTime struct {
	SessionID   string    `json:"session_id"`
	Scope       TimeScope `json:"scope"`
	ItemID      string    `json:"item_id"`
	TimeSpent   int       `json:"time_spent"` // seconds, additive
	LastTouched time.Time `json:"last_touched"`
}

// RemainingSeconds is how much of the time budget is left at now.
func (s *Session) RemainingSeconds(durationSeconds int, now time.Time) int {
	remaining := durationSeconds - int(now.Sub(s.StartedAt).Seconds())
	if remaining < 0 {
		return 0
	}
	return remaining
}
