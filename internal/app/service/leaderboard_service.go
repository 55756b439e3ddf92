package service

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"contest_arena/internal/domain/model"
	"contest_arena/internal/domain/repository"

	"github.com/gosimple/slug"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// LeaderboardService ranks terminal results. Ranking is recomputed on every
// (cache-missed) read because forms scores can keep changing after sessions
// end; the redis snapshot only smooths hot contests over a short TTL.
type LeaderboardService struct {
	resultRepo  repository.ResultRepository
	contestRepo repository.ContestRepository
	formRepo    repository.FormRepository
	rdb         *redis.Client
	cacheTTL    time.Duration
	now         nowFunc
	log         zerolog.Logger
}

func NewLeaderboardService(
	resultRepo repository.ResultRepository,
	contestRepo repository.ContestRepository,
	formRepo repository.FormRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		resultRepo:  resultRepo,
		contestRepo: contestRepo,
		formRepo:    formRepo,
		rdb:         rdb,
		cacheTTL:    cacheTTL,
		now:         defaultNow,
		log:         log,
	}
}

// Rank builds the freshly ordered leaderboard for a contest.
func (s *LeaderboardService) Rank(ctx context.Context, contestID string) (*model.Leaderboard, error) {
	if cached := s.fromCache(ctx, contestID); cached != nil {
		return cached, nil
	}

	contest, err := s.contestRepo.FindByID(ctx, contestID)
	if err != nil {
		return nil, err
	}
	results, err := s.resultRepo.ListByContest(ctx, contestID)
	if err != nil {
		return nil, err
	}

	var formScores map[string]float64
	if contest.HasFormsSection {
		formScores, err = s.formRepo.ScoresByContest(ctx, contestID)
		if err != nil {
			return nil, err
		}
	}

	entries := make([]model.LeaderboardEntry, 0, len(results))
	for _, res := range results {
		entry := model.LeaderboardEntry{
			UserID:      res.UserID,
			MCQScore:    res.MCQScore,
			CodingScore: res.CodingScore,
			TimeTaken:   res.TimeTaken,
			Status:      res.Status,
		}
		// Forms finish evaluation on their own clock, so their score joins
		// here at read time rather than at session submit.
		entry.FormsScore = formScores[res.UserID]
		entry.TotalScore = res.MCQScore + res.CodingScore + entry.FormsScore
		entries = append(entries, entry)
	}

	rankEntries(entries)

	lb := &model.Leaderboard{
		ContestID:   contestID,
		Entries:     entries,
		GeneratedAt: s.now(),
	}
	s.toCache(ctx, contestID, lb)
	return lb, nil
}

// RankBySlug resolves a contest by its URL slug before ranking. The incoming
// segment is normalized so "My Contest" and "my-contest" land on the same row.
func (s *LeaderboardService) RankBySlug(ctx context.Context, slugParam string) (*model.Leaderboard, error) {
	contest, err := s.contestRepo.FindBySlug(ctx, slug.Make(slugParam))
	if err != nil {
		return nil, err
	}
	return s.Rank(ctx, contest.ID)
}

// Result returns one participant's scored outcome with forms merged in and
// the current rank attached.
func (s *LeaderboardService) Result(ctx context.Context, contestID, userID string) (*model.Result, error) {
	result, err := s.resultRepo.Find(ctx, contestID, userID)
	if err != nil {
		return nil, err
	}

	lb, err := s.Rank(ctx, contestID)
	if err != nil {
		return nil, err
	}
	for i := range lb.Entries {
		if lb.Entries[i].UserID == userID {
			rank := lb.Entries[i].Rank
			result.Rank = &rank
			result.FormsScore = lb.Entries[i].FormsScore
			result.TotalScore = lb.Entries[i].TotalScore
			break
		}
	}
	return result, nil
}

// rankEntries sorts by total score descending, then time taken ascending
// (faster finish wins ties), and assigns standard competition ranks: tied
// entries share a rank and the next distinct entry resumes at position+1.
func rankEntries(entries []model.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].TotalScore != entries[j].TotalScore {
			return entries[i].TotalScore > entries[j].TotalScore
		}
		if entries[i].TimeTaken != entries[j].TimeTaken {
			return entries[i].TimeTaken < entries[j].TimeTaken
		}
		return entries[i].UserID < entries[j].UserID
	})

	for i := range entries {
		if i > 0 &&
			entries[i].TotalScore == entries[i-1].TotalScore &&
			entries[i].TimeTaken == entries[i-1].TimeTaken {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
}

func (s *LeaderboardService) cacheKey(contestID string) string {
	return "leaderboard:" + contestID
}

func (s *LeaderboardService) fromCache(ctx context.Context, contestID string) *model.Leaderboard {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, s.cacheKey(contestID)).Bytes()
	if err != nil {
		return nil // miss or redis hiccup, recompute either way
	}
	var lb model.Leaderboard
	if err := json.Unmarshal(raw, &lb); err != nil {
		return nil
	}
	return &lb
}

func (s *LeaderboardService) toCache(ctx context.Context, contestID string, lb *model.Leaderboard) {
	if s.rdb == nil || s.cacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(lb)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, s.cacheKey(contestID), raw, s.cacheTTL).Err(); err != nil {
		s.log.Debug().Err(err).Str("contest", contestID).Msg("leaderboard cache write failed")
	}
}
