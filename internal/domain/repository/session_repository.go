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

// TransitionOutcome is the tagged result of the single terminal-transition
// primitive shared by manual submit, autosubmit and force-submit. Exactly one
// concurrent caller observes TransitionApplied; everyone else gets
// TransitionAlreadyTerminal.
type TransitionOutcome int

const (
	TransitionApplied TransitionOutcome = iota
	TransitionAlreadyTerminal
	TransitionNotFound
)

// SessionDeadline is the sweeper's view of an in-progress session joined with
// its contest time budget.
type SessionDeadline struct {
	SessionID       string
	ContestID       string
	UserID          string
	StartedAt       time.Time
	DurationSeconds int
}

type SessionRepository interface {
	// CreateIfAbsent inserts a fresh IN_PROGRESS session or returns the
	// existing one for the (contest, user) pair. created reports which.
	CreateIfAbsent(ctx context.Context, session *model.Session) (existing *model.Session, created bool, err error)
	FindByID(ctx context.Context, id string) (*model.Session, error)
	FindByContestAndUser(ctx context.Context, contestID, userID string) (*model.Session, error)

	// AddSectionTime adds deltaSeconds to a section accumulator. Terminal
	// sessions are left untouched (applied == false).
	AddSectionTime(ctx context.Context, sessionID string, scope model.TimeScope, deltaSeconds int) (applied bool, err error)
	// UpsertItemTime adds deltaSeconds to the per-item accumulator,
	// creating the row on first touch.
	UpsertItemTime(ctx context.Context, sessionID string, scope model.TimeScope, itemID string, deltaSeconds int) (applied bool, err error)
	ListItemTimes(ctx context.Context, sessionID string) ([]model.ItemTime, error)

	// SaveAnswers overwrites the MCQ answer snapshot wholesale, only while
	// the session is IN_PROGRESS.
	SaveAnswers(ctx context.Context, tx *sql.Tx, sessionID string, answers map[string][]int) (applied bool, err error)

	// IncrementWarning atomically bumps warning_count and returns the new
	// value. Fails with common.ErrAlreadyTerminal on terminal sessions and
	// common.ErrSessionNotFound on unknown ones.
	IncrementWarning(ctx context.Context, sessionID string) (int, error)

	// TransitionToTerminal is the compare-and-set status flip. The guarded
	// UPDATE succeeds for exactly one caller; the row lock it takes is held
	// until the surrounding transaction commits, so scoring and the result
	// upsert complete before anyone else can act on the terminal state. On
	// TransitionApplied it also returns the MCQ answer snapshot read from the
	// locked row itself, so an autosave that committed after any earlier read
	// of the session is still what gets scored.
	TransitionToTerminal(ctx context.Context, tx *sql.Tx, sessionID string, status model.SessionStatus, reason *model.TerminationReason, submittedAt time.Time, totalTimeSpent int) (TransitionOutcome, map[string][]int, error)

	// ListExpired returns IN_PROGRESS sessions whose deadline plus grace has
	// passed as of now.
	ListExpired(ctx context.Context, now time.Time, grace time.Duration) ([]SessionDeadline, error)
}

type pgSessionRepository struct {
	db *sql.DB
}

func NewPgSessionRepository(db *sql.DB) SessionRepository {
	return &pgSessionRepository{db: db}
}

const sessionColumns = `id, contest_id, user_id, status, started_at, submitted_at,
	total_time_spent, termination_reason, warning_count,
	mcq_section_time, coding_section_time, mcq_answers`

func (r *pgSessionRepository) CreateIfAbsent(ctx context.Context, session *model.Session) (*model.Session, bool, error) {
	query := `INSERT INTO contest_sessions
	          (id, contest_id, user_id, status, started_at, warning_count, mcq_section_time, coding_section_time, mcq_answers)
	          VALUES ($1, $2, $3, $4, $5, 0, 0, 0, '{}'::jsonb)
	          ON CONFLICT (contest_id, user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query,
		session.ID, session.ContestID, session.UserID, model.SessionInProgress, session.StartedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			// Lost a race on the unique pair; fall through to the read.
		} else {
			return nil, false, fmt.Errorf("pgSessionRepository.CreateIfAbsent: %w", err)
		}
	}

	inserted := false
	if res != nil {
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			inserted = true
		}
	}

	existing, err := r.FindByContestAndUser(ctx, session.ContestID, session.UserID)
	if err != nil {
		return nil, false, err
	}
	return existing, inserted, nil
}

func (r *pgSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM contest_sessions WHERE id = $1`
	return r.scanSession(r.db.QueryRowContext(ctx, query, id))
}

func (r *pgSessionRepository) FindByContestAndUser(ctx context.Context, contestID, userID string) (*model.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM contest_sessions WHERE contest_id = $1 AND user_id = $2`
	return r.scanSession(r.db.QueryRowContext(ctx, query, contestID, userID))
}

func (r *pgSessionRepository) scanSession(row *sql.Row) (*model.Session, error) {
	session := &model.Session{}
	var reason sql.NullString
	var answersRaw []byte
	err := row.Scan(
		&session.ID, &session.ContestID, &session.UserID, &session.Status,
		&session.StartedAt, &session.SubmittedAt, &session.TotalTimeSpent,
		&reason, &session.WarningCount,
		&session.MCQSectionTime, &session.CodingSectionTime, &answersRaw,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrSessionNotFound
		}
		return nil, fmt.Errorf("pgSessionRepository.scanSession: %w", err)
	}
	if reason.Valid {
		tr := model.TerminationReason(reason.String)
		session.TerminationReason = &tr
	}
	if len(answersRaw) > 0 {
		if err := json.Unmarshal(answersRaw, &session.MCQAnswers); err != nil {
			return nil, fmt.Errorf("pgSessionRepository.scanSession: decode answers: %w", err)
		}
	}
	return session, nil
}

func (r *pgSessionRepository) AddSectionTime(ctx context.Context, sessionID string, scope model.TimeScope, deltaSeconds int) (bool, error) {
	column := "mcq_section_time"
	if scope == model.ScopeCodingSection || scope == model.ScopeCodingItem {
		column = "coding_section_time"
	}
	// Accumulators are additive; the status guard makes terminal sessions a no-op.
	query := `UPDATE contest_sessions SET ` + column + ` = ` + column + ` + $2
	          WHERE id = $1 AND status = 'IN_PROGRESS'`
	res, err := r.db.ExecContext(ctx, query, sessionID, deltaSeconds)
	if err != nil {
		return false, fmt.Errorf("pgSessionRepository.AddSectionTime: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *pgSessionRepository) UpsertItemTime(ctx context.Context, sessionID string, scope model.TimeScope, itemID string, deltaSeconds int) (bool, error) {
	// The INSERT path only fires for live sessions; the guard subquery keeps
	// terminal sessions immutable without a separate read.
	query := `INSERT INTO session_item_times (session_id, scope, item_id, time_spent, last_touched)
	          SELECT $1, $2, $3, $4, CURRENT_TIMESTAMP
	          WHERE EXISTS (SELECT 1 FROM contest_sessions WHERE id = $1 AND status = 'IN_PROGRESS')
	          ON CONFLICT (session_id, scope, item_id)
	          DO UPDATE SET time_spent = session_item_times.time_spent + EXCLUDED.time_spent,
	                        last_touched = CURRENT_TIMESTAMP`
	res, err := r.db.ExecContext(ctx, query, sessionID, scope, itemID, deltaSeconds)
	if err != nil {
		return false, fmt.Errorf("pgSessionRepository.UpsertItemTime: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *pgSessionRepository) ListItemTimes(ctx context.Context, sessionID string) ([]model.ItemTime, error) {
	query := `SELECT session_id, scope, item_id, time_spent, last_touched
	          FROM session_item_times WHERE session_id = $1 ORDER BY item_id`
	rows, err := r.db.QueryContext(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("pgSessionRepository.ListItemTimes: %w", err)
	}
	defer rows.Close()

	var items []model.ItemTime
	for rows.Next() {
		var it model.ItemTime
		if err := rows.Scan(&it.SessionID, &it.Scope, &it.ItemID, &it.TimeSpent, &it.LastTouched); err != nil {
			return nil, fmt.Errorf("pgSessionRepository.ListItemTimes: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *pgSessionRepository) SaveAnswers(ctx context.Context, tx *sql.Tx, sessionID string, answers map[string][]int) (bool, error) {
	raw, err := json.Marshal(answers)
	if err != nil {
		return false, fmt.Errorf("pgSessionRepository.SaveAnswers: encode: %w", err)
	}
	query := `UPDATE contest_sessions SET mcq_answers = $2
	          WHERE id = $1 AND status = 'IN_PROGRESS'`
	var res sql.Result
	if tx != nil {
		res, err = tx.ExecContext(ctx, query, sessionID, raw)
	} else {
		res, err = r.db.ExecContext(ctx, query, sessionID, raw)
	}
	if err != nil {
		return false, fmt.Errorf("pgSessionRepository.SaveAnswers: %w", err)
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}

func (r *pgSessionRepository) IncrementWarning(ctx context.Context, sessionID string) (int, error) {
	// Single read-modify-write; two racing violations can never both observe
	// the same pre-increment count.
	query := `UPDATE contest_sessions SET warning_count = warning_count + 1
	          WHERE id = $1 AND status = 'IN_PROGRESS'
	          RETURNING warning_count`
	var count int
	err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&count)
	if err == nil {
		return count, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("pgSessionRepository.IncrementWarning: %w", err)
	}

	// No live row: either the session is terminal or it never existed.
	if _, ferr := r.FindByID(ctx, sessionID); ferr != nil {
		return 0, ferr
	}
	return 0, common.ErrAlreadyTerminal
}

func (r *pgSessionRepository) TransitionToTerminal(ctx context.Context, tx *sql.Tx, sessionID string, status model.SessionStatus, reason *model.TerminationReason, submittedAt time.Time, totalTimeSpent int) (TransitionOutcome, map[string][]int, error) {
	// RETURNING reads mcq_answers off the row the UPDATE just locked, not
	// from any earlier snapshot, so a last-second autosave is included.
	query := `UPDATE contest_sessions
	          SET status = $2, termination_reason = $3, submitted_at = $4, total_time_spent = $5
	          WHERE id = $1 AND status = 'IN_PROGRESS'
	          RETURNING mcq_answers`
	var reasonArg sql.NullString
	if reason != nil {
		reasonArg = sql.NullString{String: string(*reason), Valid: true}
	}
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, sessionID, status, reasonArg, submittedAt, totalTimeSpent)
	} else {
		row = r.db.QueryRowContext(ctx, query, sessionID, status, reasonArg, submittedAt, totalTimeSpent)
	}
	var answersRaw []byte
	err := row.Scan(&answersRaw)
	if err == nil {
		var answers map[string][]int
		if len(answersRaw) > 0 {
			if jerr := json.Unmarshal(answersRaw, &answers); jerr != nil {
				return TransitionApplied, nil, fmt.Errorf("pgSessionRepository.TransitionToTerminal: decode answers: %w", jerr)
			}
		}
		return TransitionApplied, answers, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return TransitionNotFound, nil, fmt.Errorf("pgSessionRepository.TransitionToTerminal: %w", err)
	}

	if _, ferr := r.FindByID(ctx, sessionID); ferr != nil {
		if errors.Is(ferr, common.ErrSessionNotFound) {
			return TransitionNotFound, nil, nil
		}
		return TransitionNotFound, nil, ferr
	}
	return TransitionAlreadyTerminal, nil, nil
}

func (r *pgSessionRepository) ListExpired(ctx context.Context, now time.Time, grace time.Duration) ([]SessionDeadline, error) {
	query := `SELECT s.id, s.contest_id, s.user_id, s.started_at, c.duration_seconds
	          FROM contest_sessions s
	          JOIN contests c ON c.id = s.contest_id
	          WHERE s.status = 'IN_PROGRESS'
	            AND s.started_at + make_interval(secs => c.duration_seconds) + $2::interval < $1`
	rows, err := r.db.QueryContext(ctx, query, now, grace.String())
	if err != nil {
		return nil, fmt.Errorf("pgSessionRepository.ListExpired: %w", err)
	}
	defer rows.Close()

	var deadlines []SessionDeadline
	for rows.Next() {
		var d SessionDeadline
		if err := rows.Scan(&d.SessionID, &d.ContestID, &d.UserID, &d.StartedAt, &d.DurationSeconds); err != nil {
			return nil, fmt.Errorf("pgSessionRepository.ListExpired: %w", err)
		}
		deadlines = append(deadlines, d)
	}
	return deadlines, rows.Err()
}
