package model

import "time"

type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "TAB_SWITCH"
	ViolationFullscreenExit ViolationType = "FULLSCREEN_EXIT"
	ViolationCopyPaste      ViolationType = "COPY_PASTE"
	ViolationMultipleFaces  ViolationType = "MULTIPLE_FACES"
	ViolationOther          ViolationType = "OTHER"
)

// Violation is an append-only proctoring log entry. WarningNumber is the
// session warning count after the atomic increment, which totally orders the
// violations of one session.
type Violation struct {
	ID            string        `json:"id"`
	ContestID     string        `json:"contest_id"`
	UserID        string        `json:"user_id"`
	Type          ViolationType `json:"type"`
	WarningNumber int           `json:"warning_number"`
	Details       string        `json:"details,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}
