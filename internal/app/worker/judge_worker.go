package worker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"
	judgeclient "contest_arena/internal/platform/judge"
	"contest_arena/internal/platform/metrics"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// JudgeExecutor is the slice of the judge client the worker needs.
type JudgeExecutor interface {
	Execute(ctx context.Context, sourceCode, languageID, stdin, expectedStdout string) (*judgeclient.ExecutionResult, error)
}

// JudgeWorker drains the submission queue and runs each attempt against the
// external judge, one testcase at a time. Judge unavailability never scores an
// attempt as wrong: if every testcase fails to reach the judge the attempt is
// flagged JUDGE0_UNAVAILABLE with zero score and surfaced for manual
// re-judgement.
type JudgeWorker struct {
	rdb            *redis.Client
	executor       JudgeExecutor
	submissionRepo repository.SubmissionRepository
	contestRepo    repository.ContestRepository
	db             *sql.DB
	queueName      string
	retryDelay     time.Duration
	log            zerolog.Logger
}

func NewJudgeWorker(
	rdb *redis.Client,
	executor JudgeExecutor,
	submissionRepo repository.SubmissionRepository,
	contestRepo repository.ContestRepository,
	db *sql.DB,
	queueName string,
	retryDelay time.Duration,
	log zerolog.Logger,
) *JudgeWorker {
	return &JudgeWorker{
		rdb:            rdb,
		executor:       executor,
		submissionRepo: submissionRepo,
		contestRepo:    contestRepo,
		db:             db,
		queueName:      queueName,
		retryDelay:     retryDelay,
		log:            log,
	}
}

// Start blocks on the queue until the context is canceled.
func (w *JudgeWorker) Start(ctx context.Context) {
	w.log.Info().Str("queue", w.queueName).Msg("judge worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("judge worker stopping")
			return
		default:
			popped, err := w.rdb.BRPop(ctx, 5*time.Second, w.queueName).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // queue empty
				}
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					continue
				}
				w.log.Error().Err(err).Msg("BRPop failed")
				time.Sleep(w.retryDelay)
				continue
			}
			if len(popped) < 2 || popped[1] == "" {
				continue
			}
			w.ProcessSubmission(ctx, popped[1])
		}
	}
}

// ProcessSubmission judges one attempt end to end. Repeated delivery of the
// same ID is harmless: an already-judged submission is skipped.
func (w *JudgeWorker) ProcessSubmission(ctx context.Context, submissionID string) {
	sub, err := w.submissionRepo.GetByID(ctx, submissionID)
	if err != nil {
		w.log.Error().Err(err).Str("submission", submissionID).Msg("failed to load submission")
		return
	}
	if sub.Verdict != model.VerdictPending && sub.Verdict != model.VerdictInQueue {
		w.log.Warn().Str("submission", submissionID).Str("verdict", string(sub.Verdict)).Msg("submission already judged, skipping")
		return
	}

	testcases, err := w.contestRepo.ListTestCases(ctx, sub.ProblemID)
	if err != nil || len(testcases) == 0 {
		// The attempt is already off the queue; without a verdict it would
		// vanish from both retry and review. Flag it for manual re-judgement.
		w.log.Error().Err(err).Str("submission", submissionID).Str("problem", sub.ProblemID).Msg("no testcases available, flagging for review")
		if merr := w.submissionRepo.MarkJudged(ctx, nil, sub.ID, model.VerdictJudgeUnavailable, 0, 0, 0); merr != nil {
			w.log.Error().Err(merr).Str("submission", submissionID).Msg("failed to flag submission for review")
			return
		}
		metrics.SubmissionsJudged.WithLabelValues(string(model.VerdictJudgeUnavailable)).Inc()
		return
	}

	verdict, score, passed, caseResults := w.judge(ctx, sub, testcases)

	// nil db falls back to the non-transactional path; repositories treat a
	// nil tx as "use the pool".
	var tx *sql.Tx
	if w.db != nil {
		tx, err = w.db.BeginTx(ctx, nil)
		if err != nil {
			w.log.Error().Err(err).Str("submission", submissionID).Msg("failed to begin transaction")
			return
		}
		defer tx.Rollback()
	}

	if err := w.submissionRepo.MarkJudged(ctx, tx, sub.ID, verdict, score, passed, len(testcases)); err != nil {
		w.log.Error().Err(err).Str("submission", submissionID).Msg("failed to record verdict")
		return
	}
	if err := w.submissionRepo.CreateTestcaseResults(ctx, tx, caseResults); err != nil {
		w.log.Error().Err(err).Str("submission", submissionID).Msg("failed to record testcase results")
		return
	}
	if tx != nil {
		if err := tx.Commit(); err != nil {
			w.log.Error().Err(err).Str("submission", submissionID).Msg("failed to commit judging outcome")
			return
		}
	}

	metrics.SubmissionsJudged.WithLabelValues(string(verdict)).Inc()
	w.log.Info().
		Str("submission", submissionID).
		Str("verdict", string(verdict)).
		Float64("score", score).
		Int("passed", passed).
		Int("total", len(testcases)).
		Msg("submission judged")
}

// judge runs all testcases and derives the attempt verdict. Unreachable-judge
// cases are excluded from first-failing-testcase derivation; only when every
// case was unreachable does the distinguished JUDGE0_UNAVAILABLE verdict (and
// zero score) apply.
func (w *JudgeWorker) judge(ctx context.Context, sub *model.Submission, testcases []model.TestCase) (model.Verdict, float64, int, []model.SubmissionTestcaseResult) {
	var (
		score       float64
		passed      int
		unavailable int
		firstFail   model.Verdict
		caseResults []model.SubmissionTestcaseResult
	)

	for _, tc := range testcases {
		caseResult := model.SubmissionTestcaseResult{
			ID:           uuid.NewString(),
			SubmissionID: sub.ID,
			TestCaseID:   tc.ID,
		}

		res, err := w.executor.Execute(ctx, sub.Code, sub.LanguageID, tc.Input, tc.ExpectedOutput)
		if err != nil {
			unavailable++
			caseResult.Verdict = model.VerdictJudgeUnavailable
			w.log.Warn().Err(err).Str("submission", sub.ID).Str("testcase", tc.ID).Msg("judge unreachable for testcase")
			caseResults = append(caseResults, caseResult)
			continue
		}

		caseResult.Verdict = verdictFromStatus(res.StatusID)
		if res.Stdout != "" {
			out := res.Stdout
			caseResult.ActualOutput = &out
		}
		timeMs := int(res.TimeSeconds * 1000)
		caseResult.TimeMs = &timeMs
		memory := res.MemoryKb
		caseResult.MemoryKb = &memory

		if caseResult.Verdict == model.VerdictAccepted {
			passed++
			score += tc.Points
		} else if firstFail == "" {
			firstFail = caseResult.Verdict
		}
		caseResults = append(caseResults, caseResult)
	}

	if unavailable == len(testcases) {
		return model.VerdictJudgeUnavailable, 0, 0, caseResults
	}
	if firstFail != "" {
		return firstFail, score, passed, caseResults
	}
	if unavailable > 0 {
		// Every judged case passed but some never reached the judge; the
		// attempt cannot be called accepted on partial evidence.
		return model.VerdictJudgeUnavailable, 0, passed, caseResults
	}
	return model.VerdictAccepted, score, passed, caseResults
}

// verdictFromStatus maps Judge0 status IDs onto the engine's verdict set.
func verdictFromStatus(statusID int) model.Verdict {
	switch {
	case statusID == judgeclient.StatusAccepted:
		return model.VerdictAccepted
	case statusID == judgeclient.StatusWrongAnswer:
		return model.VerdictWrongAnswer
	case statusID == judgeclient.StatusTimeLimitExceeded:
		return model.VerdictTimeLimitExceeded
	case statusID == judgeclient.StatusCompilationError:
		return model.VerdictCompilationError
	case statusID >= judgeclient.StatusRuntimeErrorFirst && statusID <= judgeclient.StatusRuntimeErrorLast:
		return model.VerdictRuntimeError
	default:
		return model.VerdictRuntimeError
	}
}
