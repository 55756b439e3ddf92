package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
)

// ResultRepository holds scored outcomes. Upsert is the coordinator's write
// path and is safe to repeat: a result is a pure function of the terminal
// session plus the answer/submission data underneath it.
type ResultRepository interface {
	Upsert(ctx context.Context, tx *sql.Tx, result *model.Result) error
	Find(ctx context.Context, contestID, userID string) (*model.Result, error)
	ListByContest(ctx context.Context, contestID string) ([]model.Result, error)
}

type pgResultRepository struct {
	db *sql.DB
}

func NewPgResultRepository(db *sql.DB) ResultRepository {
	return &pgResultRepository{db: db}
}

func (r *pgResultRepository) Upsert(ctx context.Context, tx *sql.Tx, result *model.Result) error {
	// forms_score is deliberately absent: the evaluation pathway owns that
	// column and the two writers never touch each other's fields.
	query := `INSERT INTO results (contest_id, user_id, mcq_score, coding_score, total_score, time_taken, status, submitted_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	          ON CONFLICT (contest_id, user_id) DO UPDATE SET
	            mcq_score = EXCLUDED.mcq_score,
	            coding_score = EXCLUDED.coding_score,
	            total_score = EXCLUDED.total_score,
	            time_taken = EXCLUDED.time_taken,
	            status = EXCLUDED.status,
	            submitted_at = EXCLUDED.submitted_at`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, result.ContestID, result.UserID,
			result.MCQScore, result.CodingScore, result.TotalScore,
			result.TimeTaken, result.Status, result.SubmittedAt)
	} else {
		_, err = r.db.ExecContext(ctx, query, result.ContestID, result.UserID,
			result.MCQScore, result.CodingScore, result.TotalScore,
			result.TimeTaken, result.Status, result.SubmittedAt)
	}
	if err != nil {
		return fmt.Errorf("pgResultRepository.Upsert: %w", err)
	}
	return nil
}

func (r *pgResultRepository) Find(ctx context.Context, contestID, userID string) (*model.Result, error) {
	query := `SELECT contest_id, user_id, mcq_score, coding_score, total_score, time_taken, status, submitted_at
	          FROM results WHERE contest_id = $1 AND user_id = $2`
	result := &model.Result{}
	err := r.db.QueryRowContext(ctx, query, contestID, userID).Scan(
		&result.ContestID, &result.UserID, &result.MCQScore, &result.CodingScore,
		&result.TotalScore, &result.TimeTaken, &result.Status, &result.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgResultRepository.Find: %w", err)
	}
	return result, nil
}

func (r *pgResultRepository) ListByContest(ctx context.Context, contestID string) ([]model.Result, error) {
	query := `SELECT contest_id, user_id, mcq_score, coding_score, total_score, time_taken, status, submitted_at
	          FROM results WHERE contest_id = $1`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgResultRepository.ListByContest: %w", err)
	}
	defer rows.Close()

	var results []model.Result
	for rows.Next() {
		var res model.Result
		if err := rows.Scan(&res.ContestID, &res.UserID, &res.MCQScore, &res.CodingScore,
			&res.TotalScore, &res.TimeTaken, &res.Status, &res.SubmittedAt); err != nil {
			return nil, fmt.Errorf("pgResultRepository.ListByContest: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}
