package worker

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"contest_arena/internal/common"
	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"
)

// In-memory repository fakes mirroring the Postgres guarded-update contracts.

type fakeSessionRepo struct {
	mu        sync.Mutex
	sessions  map[string]*model.Session
	byPair    map[string]string
	durations map[string]int // contestID -> duration seconds
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{
		sessions:  make(map[string]*model.Session),
		byPair:    make(map[string]string),
		durations: make(map[string]int),
	}
}

func (r *fakeSessionRepo) put(s *model.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *s
	r.sessions[s.ID] = &cp
	r.byPair[s.ContestID+"|"+s.UserID] = s.ID
}

func (r *fakeSessionRepo) CreateIfAbsent(_ context.Context, session *model.Session) (*model.Session, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id, ok := r.byPair[session.ContestID+"|"+session.UserID]; ok {
		cp := *r.sessions[id]
		return &cp, false, nil
	}
	cp := *session
	r.sessions[session.ID] = &cp
	r.byPair[session.ContestID+"|"+session.UserID] = session.ID
	out := cp
	return &out, true, nil
}

func (r *fakeSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (r *fakeSessionRepo) FindByContestAndUser(_ context.Context, contestID, userID string) (*model.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPair[contestID+"|"+userID]
	if !ok {
		return nil, common.ErrSessionNotFound
	}
	cp := *r.sessions[id]
	return &cp, nil
}

func (r *fakeSessionRepo) AddSectionTime(_ context.Context, _ string, _ model.TimeScope, _ int) (bool, error) {
	return true, nil
}

func (r *fakeSessionRepo) UpsertItemTime(_ context.Context, _ string, _ model.TimeScope, _ string, _ int) (bool, error) {
	return true, nil
}

func (r *fakeSessionRepo) ListItemTimes(_ context.Context, _ string) ([]model.ItemTime, error) {
	return nil, nil
}

func (r *fakeSessionRepo) SaveAnswers(_ context.Context, _ *sql.Tx, sessionID string, answers map[string][]int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status.Terminal() {
		return false, nil
	}
	s.MCQAnswers = answers
	return true, nil
}

func (r *fakeSessionRepo) IncrementWarning(_ context.Context, sessionID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return 0, common.ErrSessionNotFound
	}
	if s.Status.Terminal() {
		return 0, common.ErrAlreadyTerminal
	}
	s.WarningCount++
	return s.WarningCount, nil
}

func (r *fakeSessionRepo) TransitionToTerminal(_ context.Context, _ *sql.Tx, sessionID string, status model.SessionStatus, reason *model.TerminationReason, submittedAt time.Time, totalTimeSpent int) (repository.TransitionOutcome, map[string][]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return repository.TransitionNotFound, nil, nil
	}
	if s.Status.Terminal() {
		return repository.TransitionAlreadyTerminal, nil, nil
	}
	s.Status = status
	s.TerminationReason = reason
	at := submittedAt
	s.SubmittedAt = &at
	s.TotalTimeSpent = totalTimeSpent
	return repository.TransitionApplied, s.MCQAnswers, nil
}

func (r *fakeSessionRepo) ListExpired(_ context.Context, now time.Time, grace time.Duration) ([]repository.SessionDeadline, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []repository.SessionDeadline
	for _, s := range r.sessions {
		if s.Status.Terminal() {
			continue
		}
		duration := r.durations[s.ContestID]
		if s.StartedAt.Add(time.Duration(duration) * time.Second).Add(grace).Before(now) {
			out = append(out, repository.SessionDeadline{
				SessionID:       s.ID,
				ContestID:       s.ContestID,
				UserID:          s.UserID,
				StartedAt:       s.StartedAt,
				DurationSeconds: duration,
			})
		}
	}
	return out, nil
}

type fakeContestRepo struct {
	mu        sync.Mutex
	contests  map[string]*model.Contest
	testcases map[string][]model.TestCase
	problems  map[string][]model.CodingProblem
}

func newFakeContestRepo() *fakeContestRepo {
	return &fakeContestRepo{
		contests:  make(map[string]*model.Contest),
		testcases: make(map[string][]model.TestCase),
		problems:  make(map[string][]model.CodingProblem),
	}
}

func (r *fakeContestRepo) put(c *model.Contest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	r.contests[c.ID] = &cp
}

func (r *fakeContestRepo) FindByID(_ context.Context, id string) (*model.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contests[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeContestRepo) FindBySlug(_ context.Context, slug string) (*model.Contest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contests {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeContestRepo) ListMCQItems(_ context.Context, _ string) ([]model.MCQItem, error) {
	return nil, nil
}

func (r *fakeContestRepo) ListProblems(_ context.Context, contestID string) ([]model.CodingProblem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.CodingProblem(nil), r.problems[contestID]...), nil
}

func (r *fakeContestRepo) FindProblemByID(_ context.Context, problemID string) (*model.CodingProblem, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, list := range r.problems {
		for i := range list {
			if list[i].ID == problemID {
				cp := list[i]
				return &cp, nil
			}
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeContestRepo) ListTestCases(_ context.Context, problemID string) ([]model.TestCase, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.TestCase(nil), r.testcases[problemID]...), nil
}

func (r *fakeContestRepo) TransitionStatuses(_ context.Context, now time.Time) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var started, ended int64
	for _, c := range r.contests {
		if c.Status == model.ContestUpcoming && !c.StartsAt.After(now) {
			c.Status = model.ContestLive
			started++
		}
		if c.Status == model.ContestLive && c.EndsAt.Before(now) {
			c.Status = model.ContestEnded
			ended++
		}
	}
	return started, ended, nil
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results map[string]*model.Result
}

func newFakeResultRepo() *fakeResultRepo {
	return &fakeResultRepo{results: make(map[string]*model.Result)}
}

func (r *fakeResultRepo) Upsert(_ context.Context, _ *sql.Tx, result *model.Result) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *result
	r.results[result.ContestID+"|"+result.UserID] = &cp
	return nil
}

func (r *fakeResultRepo) Find(_ context.Context, contestID, userID string) (*model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res, ok := r.results[contestID+"|"+userID]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *res
	return &cp, nil
}

func (r *fakeResultRepo) ListByContest(_ context.Context, contestID string) ([]model.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Result
	for _, res := range r.results {
		if res.ContestID == contestID {
			out = append(out, *res)
		}
	}
	return out, nil
}

type fakeSubmissionRepo struct {
	mu        sync.Mutex
	subs      map[string]*model.Submission
	tcResults map[string][]model.SubmissionTestcaseResult
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{
		subs:      make(map[string]*model.Submission),
		tcResults: make(map[string][]model.SubmissionTestcaseResult),
	}
}

func (r *fakeSubmissionRepo) Create(_ context.Context, sub *model.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *fakeSubmissionRepo) GetByID(_ context.Context, id string) (*model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (r *fakeSubmissionRepo) MarkJudged(_ context.Context, _ *sql.Tx, submissionID string, verdict model.Verdict, score float64, passed, total int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[submissionID]
	if !ok {
		return common.ErrNotFound
	}
	sub.Verdict = verdict
	sub.Score = score
	sub.TestcasesPassed = passed
	sub.TestcasesTotal = total
	return nil
}

func (r *fakeSubmissionRepo) CreateTestcaseResults(_ context.Context, _ *sql.Tx, results []model.SubmissionTestcaseResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, res := range results {
		r.tcResults[res.SubmissionID] = append(r.tcResults[res.SubmissionID], res)
	}
	return nil
}

func (r *fakeSubmissionRepo) ListTestcaseResults(_ context.Context, submissionID string) ([]model.SubmissionTestcaseResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.SubmissionTestcaseResult(nil), r.tcResults[submissionID]...), nil
}

func (r *fakeSubmissionRepo) ListByPair(_ context.Context, contestID, userID string) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, sub := range r.subs {
		if sub.ContestID == contestID && sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *fakeSubmissionRepo) ListNeedingReview(_ context.Context, contestID string) ([]model.Submission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Submission
	for _, sub := range r.subs {
		if sub.ContestID == contestID && sub.Verdict == model.VerdictJudgeUnavailable {
			out = append(out, *sub)
		}
	}
	return out, nil
}
