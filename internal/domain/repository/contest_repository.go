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
)

// ContestRepository is a read model over contest metadata and content. CRUD
// belongs to the management service; the only write here is the status column
// the sweeper maintains.
type ContestRepository interface {
	FindByID(ctx context.Context, id string) (*model.Contest, error)
	FindBySlug(ctx context.Context, slug string) (*model.Contest, error)
	ListMCQItems(ctx context.Context, contestID string) ([]model.MCQItem, error)
	ListProblems(ctx context.Context, contestID string) ([]model.CodingProblem, error)
	FindProblemByID(ctx context.Context, problemID string) (*model.CodingProblem, error)
	ListTestCases(ctx context.Context, problemID string) ([]model.TestCase, error)

	// TransitionStatuses flips UPCOMING contests past their start to LIVE and
	// LIVE contests past their end to ENDED, returning how many of each.
	TransitionStatuses(ctx context.Context, now time.Time) (started int64, ended int64, err error)
}

type pgContestRepository struct {
	db *sql.DB
}

func NewPgContestRepository(db *sql.DB) ContestRepository {
	return &pgContestRepository{db: db}
}

const contestColumns = `id, title, slug, status, starts_at, ends_at, duration_seconds,
	has_mcq_section, has_coding_section, has_forms_section`

func (r *pgContestRepository) FindByID(ctx context.Context, id string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE id = $1`
	return r.scanContest(r.db.QueryRowContext(ctx, query, id))
}

func (r *pgContestRepository) FindBySlug(ctx context.Context, slug string) (*model.Contest, error) {
	query := `SELECT ` + contestColumns + ` FROM contests WHERE slug = $1`
	return r.scanContest(r.db.QueryRowContext(ctx, query, slug))
}

func (r *pgContestRepository) scanContest(row *sql.Row) (*model.Contest, error) {
	contest := &model.Contest{}
	err := row.Scan(
		&contest.ID, &contest.Title, &contest.Slug, &contest.Status,
		&contest.StartsAt, &contest.EndsAt, &contest.DurationSeconds,
		&contest.HasMCQSection, &contest.HasCodingSection, &contest.HasFormsSection,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.scanContest: %w", err)
	}
	return contest, nil
}

func (r *pgContestRepository) ListMCQItems(ctx context.Context, contestID string) ([]model.MCQItem, error) {
	query := `SELECT id, contest_id, question, options, marks, negative_marks, category, sort_order
	          FROM mcq_items WHERE contest_id = $1 ORDER BY sort_order, id`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListMCQItems: %w", err)
	}
	defer rows.Close()

	var items []model.MCQItem
	for rows.Next() {
		var item model.MCQItem
		var optionsRaw []byte
		if err := rows.Scan(&item.ID, &item.ContestID, &item.Question, &optionsRaw,
			&item.Marks, &item.NegativeMarks, &item.Category, &item.SortOrder); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListMCQItems: %w", err)
		}
		if err := json.Unmarshal(optionsRaw, &item.Options); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListMCQItems: decode options for %s: %w", item.ID, err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (r *pgContestRepository) ListProblems(ctx context.Context, contestID string) ([]model.CodingProblem, error) {
	query := `SELECT id, contest_id, title, runtime_limit_ms, memory_limit_kb
	          FROM coding_problems WHERE contest_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, contestID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListProblems: %w", err)
	}
	defer rows.Close()

	var problems []model.CodingProblem
	for rows.Next() {
		var p model.CodingProblem
		if err := rows.Scan(&p.ID, &p.ContestID, &p.Title, &p.RuntimeLimitMs, &p.MemoryLimitKb); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListProblems: %w", err)
		}
		problems = append(problems, p)
	}
	return problems, rows.Err()
}

func (r *pgContestRepository) FindProblemByID(ctx context.Context, problemID string) (*model.CodingProblem, error) {
	query := `SELECT id, contest_id, title, runtime_limit_ms, memory_limit_kb
	          FROM coding_problems WHERE id = $1`
	p := &model.CodingProblem{}
	err := r.db.QueryRowContext(ctx, query, problemID).Scan(
		&p.ID, &p.ContestID, &p.Title, &p.RuntimeLimitMs, &p.MemoryLimitKb,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgContestRepository.FindProblemByID: %w", err)
	}
	return p, nil
}

func (r *pgContestRepository) ListTestCases(ctx context.Context, problemID string) ([]model.TestCase, error) {
	query := `SELECT id, problem_id, input, expected_output, points, sort_order
	          FROM problem_testcases WHERE problem_id = $1 ORDER BY sort_order, id`
	rows, err := r.db.QueryContext(ctx, query, problemID)
	if err != nil {
		return nil, fmt.Errorf("pgContestRepository.ListTestCases: %w", err)
	}
	defer rows.Close()

	var cases []model.TestCase
	for rows.Next() {
		var tc model.TestCase
		if err := rows.Scan(&tc.ID, &tc.ProblemID, &tc.Input, &tc.ExpectedOutput, &tc.Points, &tc.SortOrder); err != nil {
			return nil, fmt.Errorf("pgContestRepository.ListTestCases: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

func (r *pgContestRepository) TransitionStatuses(ctx context.Context, now time.Time) (int64, int64, error) {
	startRes, err := r.db.ExecContext(ctx,
		`UPDATE contests SET status = 'LIVE' WHERE status = 'UPCOMING' AND starts_at <= $1`, now)
	if err != nil {
		return 0, 0, fmt.Errorf("pgContestRepository.TransitionStatuses: start: %w", err)
	}
	started, _ := startRes.RowsAffected()

	endRes, err := r.db.ExecContext(ctx,
		`UPDATE contests SET status = 'ENDED' WHERE status = 'LIVE' AND ends_at <= $1`, now)
	if err != nil {
		return started, 0, fmt.Errorf("pgContestRepository.TransitionStatuses: end: %w", err)
	}
	ended, _ := endRes.RowsAffected()
	return started, ended, nil
}
