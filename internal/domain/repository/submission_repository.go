package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
)

type SubmissionRepository interface {
	Create(ctx context.Context, sub *model.Submission) error
	GetByID(ctx context.Context, id string) (*model.Submission, error)

	// MarkJudged writes the one-time judging outcome. Submissions are
	// append-only otherwise.
	MarkJudged(ctx context.Context, tx *sql.Tx, submissionID string, verdict model.Verdict, score float64, passed, total int) error
	CreateTestcaseResults(ctx context.Context, tx *sql.Tx, results []model.SubmissionTestcaseResult) error
	ListTestcaseResults(ctx context.Context, submissionID string) ([]model.SubmissionTestcaseResult, error)

	// ListByPair returns all attempts of one participant in one contest, the
	// scoring aggregator's input.
	ListByPair(ctx context.Context, contestID, userID string) ([]model.Submission, error)

	// ListNeedingReview surfaces JUDGE0_UNAVAILABLE attempts for manual
	// re-judgement.
	ListNeedingReview(ctx context.Context, contestID string) ([]model.Submission, error)
}

type pgSubmissionRepository struct {
	db *sql.DB
}

func NewPgSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &pgSubmissionRepository{db: db}
}

const submissionColumns = `id, contest_id, user_id, problem_id, language_id, code,
	verdict, score, testcases_passed, testcases_total, submitted_at`

func (r *pgSubmissionRepository) Create(ctx context.Context, sub *model.Submission) error {
	query := `INSERT INTO submissions
	          (` + submissionColumns + `)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(ctx, query,
		sub.ID, sub.ContestID, sub.UserID, sub.ProblemID, sub.LanguageID, sub.Code,
		sub.Verdict, sub.Score, sub.TestcasesPassed, sub.TestcasesTotal, sub.SubmittedAt)
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.Create: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) GetByID(ctx context.Context, id string) (*model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1`
	sub := &model.Submission{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&sub.ID, &sub.ContestID, &sub.UserID, &sub.ProblemID, &sub.LanguageID, &sub.Code,
		&sub.Verdict, &sub.Score, &sub.TestcasesPassed, &sub.TestcasesTotal, &sub.SubmittedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("pgSubmissionRepository.GetByID: %w", err)
	}
	return sub, nil
}

func (r *pgSubmissionRepository) MarkJudged(ctx context.Context, tx *sql.Tx, submissionID string, verdict model.Verdict, score float64, passed, total int) error {
	query := `UPDATE submissions
	          SET verdict = $2, score = $3, testcases_passed = $4, testcases_total = $5
	          WHERE id = $1`
	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, submissionID, verdict, score, passed, total)
	} else {
		_, err = r.db.ExecContext(ctx, query, submissionID, verdict, score, passed, total)
	}
	if err != nil {
		return fmt.Errorf("pgSubmissionRepository.MarkJudged: %w", err)
	}
	return nil
}

func (r *pgSubmissionRepository) CreateTestcaseResults(ctx context.Context, tx *sql.Tx, results []model.SubmissionTestcaseResult) error {
	query := `INSERT INTO submission_testcase_results
	          (id, submission_id, test_case_id, verdict, actual_output, time_ms, memory_kb)
	          VALUES ($1, $2, $3, $4, $5, $6, $7)`
	for _, res := range results {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, res.ID, res.SubmissionID, res.TestCaseID,
				res.Verdict, res.ActualOutput, res.TimeMs, res.MemoryKb)
		} else {
			_, err = r.db.ExecContext(ctx, query, res.ID, res.SubmissionID, res.TestCaseID,
				res.Verdict, res.ActualOutput, res.TimeMs, res.MemoryKb)
		}
		if err != nil {
			return fmt.Errorf("pgSubmissionRepository.CreateTestcaseResults: %w", err)
		}
	}
	return nil
}

func (r *pgSubmissionRepository) ListTestcaseResults(ctx context.Context, submissionID string) ([]model.SubmissionTestcaseResult, error) {
	query := `SELECT id, submission_id, test_case_id, verdict, actual_output, time_ms, memory_kb
	          FROM submission_testcase_results WHERE submission_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.ListTestcaseResults: %w", err)
	}
	defer rows.Close()

	var results []model.SubmissionTestcaseResult
	for rows.Next() {
		var res model.SubmissionTestcaseResult
		if err := rows.Scan(&res.ID, &res.SubmissionID, &res.TestCaseID, &res.Verdict,
			&res.ActualOutput, &res.TimeMs, &res.MemoryKb); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.ListTestcaseResults: %w", err)
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func (r *pgSubmissionRepository) ListByPair(ctx context.Context, contestID, userID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	          WHERE contest_id = $1 AND user_id = $2 ORDER BY submitted_at`
	return r.list(ctx, query, contestID, userID)
}

func (r *pgSubmissionRepository) ListNeedingReview(ctx context.Context, contestID string) ([]model.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions
	          WHERE contest_id = $1 AND verdict = $2 ORDER BY submitted_at`
	return r.list(ctx, query, contestID, model.VerdictJudgeUnavailable)
}

func (r *pgSubmissionRepository) list(ctx context.Context, query string, args ...interface{}) ([]model.Submission, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pgSubmissionRepository.list: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		if err := rows.Scan(&sub.ID, &sub.ContestID, &sub.UserID, &sub.ProblemID, &sub.LanguageID,
			&sub.Code, &sub.Verdict, &sub.Score, &sub.TestcasesPassed, &sub.TestcasesTotal, &sub.SubmittedAt); err != nil {
			return nil, fmt.Errorf("pgSubmissionRepository.list: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}
