package model

import "time"

type FormFieldType string

const (
	FieldSingleSelect FormFieldType = "SINGLE_SELECT"
	FieldMultiSelect  FormFieldType = "MULTI_SELECT"
	FieldText         FormFieldType = "TEXT"
)

// AutoScored reports whether the field type can be scored without an evaluator.
func (t FormFieldType) AutoScored() bool {
	return t == FieldSingleSelect || t == FieldMultiSelect
}

// FormField is part of the contest's form content (read model).
type FormField struct {
	ID             string        `json:"id"`
	ContestID      string        `json:"contest_id"`
	Label          string        `json:"label"`
	Type           FormFieldType `json:"type"`
	Options        []string      `json:"options,omitempty"`
	CorrectOptions []int         `json:"correct_options,omitempty"`
	MaxScore       float64       `json:"max_score"`
	SortOrder      int           `json:"sort_order"`
}

// FormSubmission is a participant's free-form section answer set. AutoScore is
// fixed at submission time; ManualScore arrives asynchronously from the
// evaluation pathway, possibly after the contest session has ended.
type FormSubmission struct {
	ID          string            `json:"id"`
	ContestID   string            `json:"contest_id"`
	UserID      string            `json:"user_id"`
	SubmittedAt time.Time         `json:"submitted_at"`
	Fields      []FormFieldAnswer `json:"fields"`
}

type FormFieldAnswer struct {
	ID           string     `json:"id"`
	SubmissionID string     `json:"submission_id"`
	FieldID      string     `json:"field_id"`
	Selected     []int      `json:"selected,omitempty"`
	Text         string     `json:"text,omitempty"`
	AutoScore    float64    `json:"auto_score"`
	ManualScore  *float64   `json:"manual_score,omitempty"`
	Feedback     *string    `json:"feedback,omitempty"`
	EvaluatedBy  *string    `json:"evaluated_by,omitempty"`
	EvaluatedAt  *time.Time `json:"evaluated_at,omitempty"`
}

// Score is autoScore + manualScore (manual contributes 0 until supplied).
func (a *FormFieldAnswer) Score() float64 {
	score := a.AutoScore
	if a.ManualScore != nil {
		score += *a.ManualScore
	}
	return score
}

// TotalScore sums field scores for the submission.
func (s *FormSubmission) TotalScore() float64 {
	var total float64
	for i := range s.Fields {
		total += s.Fields[i].Score()
	}
	return total
}
