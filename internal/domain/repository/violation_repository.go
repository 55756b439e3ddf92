package repository

import (
	"context"
	"database/sql"
	"fmt"

	"contest_arena/internal/domain/model"
)

// ViolationRepository is an append-only log; atomic append is the only
// exclusion it needs.
type ViolationRepository interface {
	Append(ctx context.Context, v *model.Violation) error
	ListByPair(ctx context.Context, contestID, userID string) ([]model.Violation, error)
}

type pgViolationRepository struct {
	db *sql.DB
}

func NewPgViolationRepository(db *sql.DB) ViolationRepository {
	return &pgViolationRepository{db: db}
}

func (r *pgViolationRepository) Append(ctx context.Context, v *model.Violation) error {
	query := `INSERT INTO violations (id, contest_id, user_id, type, warning_number, details, created_at)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.db.ExecContext(ctx, query,
		v.ID, v.ContestID, v.UserID, v.Type, v.WarningNumber, v.Details, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("pgViolationRepository.Append: %w", err)
	}
	return nil
}

func (r *pgViolationRepository) ListByPair(ctx context.Context, contestID, userID string) ([]model.Violation, error) {
	query := `SELECT id, contest_id, user_id, type, warning_number, details, created_at
	          FROM violations WHERE contest_id = $1 AND user_id = $2
	          ORDER BY warning_number`
	rows, err := r.db.QueryContext(ctx, query, contestID, userID)
	if err != nil {
		return nil, fmt.Errorf("pgViolationRepository.ListByPair: %w", err)
	}
	defer rows.Close()

	var violations []model.Violation
	for rows.Next() {
		var v model.Violation
		if err := rows.Scan(&v.ID, &v.ContestID, &v.UserID, &v.Type, &v.WarningNumber, &v.Details, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("pgViolationRepository.ListByPair: %w", err)
		}
		violations = append(violations, v)
	}
	return violations, rows.Err()
}
