package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"

	"github.com/jackc/pgx/v5/pgconn"
)

type FormRepository interface {
	ListFields(ctx context.Context, contestID string) ([]model.FormField, error)
	CreateSubmission(ctx context.Context, sub *model.FormSubmission) error
	FindSubmission(ctx context.Context, submissionID string) (*model.FormSubmission, error)
	FindSubmissionByPair(ctx context.Context, contestID, userID string) (*model.FormSubmission, error)

	// SetManualScore records an evaluator's verdict on one field answer.
	SetManualScore(ctx context.Context, answerID string, manualScore float64, feedback, evaluatorID string, evaluatedAt time.Time) error

	// ScoresByContest sums auto+manual scores per participant, the
	// leaderboard's read-time join input.
	ScoresByContest(ctx context.Context, contestID string) (map[string]float64, error)
}

type pgFormRepository struct {
	db *sql.DB
}

func NewPgFormRepository(db *sql.DB) FormRepository {
	return &pgFormRepository{db: db}
}

func (r *pgFormRepository) ListFields(ctx context.Context, contestID string) ([]model.FormField, error) {
	query := `SELECT id, contest_id, label, type, options, correct_options, max_score, sort_order
	          FROM form_fields WHERE contest_id = $1 ORDER BY sort_order, id`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgFormRepository.ListFields: %w", err)
	}
	defer rows.Close()

	var fields []model.FormField
	for rows.Next() {
		var f model.FormField
		var optionsRaw, correctRaw []byte
		if err := rows.Scan(&f.ID, &f.ContestID, &f.Label, &f.Type, &optionsRaw, &correctRaw,
			&f.MaxScore, &f.SortOrder); err != nil {
			return nil, fmt.Errorf("pgFormRepository.ListFields: %w", err)
		}
		if len(optionsRaw) > 0 {
			if err := json.Unmarshal(optionsRaw, &f.Options); err != nil {
				return nil, fmt.Errorf("pgFormRepository.ListFields: decode options: %w", err)
			}
		}
		if len(correctRaw) > 0 {
			if err := json.Unmarshal(correctRaw, &f.CorrectOptions); err != nil {
				return nil, fmt.Errorf("pgFormRepository.ListFields: decode correct options: %w", err)
			}
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (r *pgFormRepository) CreateSubmission(ctx context.Context, sub *model.FormSubmission) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("pgFormRepository.CreateSubmission: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO form_submissions (id, contest_id, user_id, submitted_at) VALUES ($1, $2, $3, $4)`,
		sub.ID, sub.ContestID, sub.UserID, sub.SubmittedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("form already submitted for this contest: %w", common.ErrConflict)
		}
		return fmt.Errorf("pgFormRepository.CreateSubmission: %w", err)
	}

	for i := range sub.Fields {
		ans := &sub.Fields[i]
		selectedRaw, err := json.Marshal(ans.Selected)
		if err != nil {
			return fmt.Errorf("pgFormRepository.CreateSubmission: encode selection: %w", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO form_field_answers (id, submission_id, field_id, selected, text, auto_score)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			ans.ID, sub.ID, ans.FieldID, selectedRaw, ans.Text, ans.AutoScore)
		if err != nil {
			return fmt.Errorf("pgFormRepository.CreateSubmission: field answer: %w", err)
		}
	}
	return tx.Commit()
}

func (r *pgFormRepository) FindSubmission(ctx context.Context, submissionID string) (*model.FormSubmission, error) {
	query := `SELECT id, contest_id, user_id, submitted_at FROM form_submissions WHERE id = $1`
	return r.loadSubmission(ctx, r.db.QueryRowContext(ctx, query, submissionID))
}

func (r *pgFormRepository) FindSubmissionByPair(ctx context.Context, contestID, userID string) (*model.FormSubmission, error) {
	query := `SELECT id, contest_id, user_id, submitted_at FROM form_submissions WHERE contest_id = $1 AND user_id = $2`
	return r.loadSubmission(ctx, r.db.QueryRowContext(ctx, query, contestID, userID))
}

func (r *pgFormRepository) loadSubmission(ctx context.Context, row *sql.Row) (*model.FormSubmission, error) {
	sub := &model.FormSubmission{}
	if err := row.Scan(&sub.ID, &sub.ContestID, &sub.UserID, &sub.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgFormRepository.loadSubmission: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, submission_id, field_id, selected, text, auto_score, manual_score, feedback, evaluated_by, evaluated_at
		 FROM form_field_answers WHERE submission_id = $1 ORDER BY id`, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("pgFormRepository.loadSubmission: answers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ans model.FormFieldAnswer
		var selectedRaw []byte
		if err := rows.Scan(&ans.ID, &ans.SubmissionID, &ans.FieldID, &selectedRaw, &ans.Text,
			&ans.AutoScore, &ans.ManualScore, &ans.Feedback, &ans.EvaluatedBy, &ans.EvaluatedAt); err != nil {
			return nil, fmt.Errorf("pgFormRepository.loadSubmission: answers: %w", err)
		}
		if len(selectedRaw) > 0 {
			if err := json.Unmarshal(selectedRaw, &ans.Selected); err != nil {
				return nil, fmt.Errorf("pgFormRepository.loadSubmission: decode selection: %w", err)
			}
		}
		sub.Fields = append(sub.Fields, ans)
	}
	return sub, rows.Err()
}

func (r *pgFormRepository) SetManualScore(ctx context.Context, answerID string, manualScore float64, feedback, evaluatorID string, evaluatedAt time.Time) error {
	query := `UPDATE form_field_answers
	          SET manual_score = $2, feedback = $3, evaluated_by = $4, evaluated_at = $5
	          WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, answerID, manualScore, feedback, evaluatorID, evaluatedAt)
	if err != nil {
		return fmt.Errorf("pgFormRepository.SetManualScore: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *pgFormRepository) ScoresByContest(ctx context.Context, contestID string) (map[string]float64, error) {
	query := `SELECT s.user_id, COALESCE(SUM(a.auto_score + COALESCE(a.manual_score, 0)), 0)
	          FROM form_submissions s
	          LEFT JOIN form_field_answers a ON a.submission_id = s.id
	          WHERE s.contest_id = $1
	          GROUP BY s.user_id`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgFormRepository.ScoresByContest: %w", err)
	}
	defer rows.Close()

	scores := make(map[string]float64)
	for rows.Next() {
		var userID string
		var score float64
		if err := rows.Scan(&userID, &score); err != nil {
			return nil, fmt.Errorf("pgFormRepository.ScoresByContest: %w", err)
		}
		scores[userID] = score
	}
	return scores, rows.Err()
}
