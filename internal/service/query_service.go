package service

import (
	"context"
	"fmt"
	"time"

	"github.com/cupgame/telemetry/internal/model"
)

// QueryStore is the read-only slice of the store the query layer uses.
type QueryStore interface {
	TopPlayers(ctx context.Context, matchID string, limit int) ([]model.MemberScore, error)
	OnlineCount(ctx context.Context) (int64, error)
	UniqueCount(ctx context.Context, bucket string) (int64, error)
}

// QueryService serves the three projection reads. It holds no state of its
// own; the store's ordering is authoritative and only ranks are assigned
// here.
type QueryService struct {
	store          QueryStore
	defaultMatchID string
	defaultLimit   int
	storeTimeout   time.Duration
}

func NewQueryService(store QueryStore, defaultMatchID string, defaultLimit int, storeTimeout time.Duration) *QueryService {
	return &QueryService{
		store:          store,
		defaultMatchID: defaultMatchID,
		defaultLimit:   defaultLimit,
		storeTimeout:   storeTimeout,
	}
}

// GetTopPlayers returns up to limit entries for the match in descending score
// order with 1-based ranks assigned by return position. Empty matchID and
// non-positive limit fall back to the configured defaults. An unknown match
// yields an empty entries list, never nil and never an error.
func (s *QueryService) GetTopPlayers(matchID string, limit int) (*model.LeaderboardResponse, error) {
	if matchID == "" {
		matchID = s.defaultMatchID
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	scores, err := s.store.TopPlayers(ctx, matchID, limit)
	if err != nil {
		return nil, fmt.Errorf("get top players for %q: %w", matchID, err)
	}

	entries := make([]model.LeaderboardEntry, 0, len(scores))
	for i, score := range scores {
		entries = append(entries, model.LeaderboardEntry{
			UserID: score.UserID,
			Score:  score.Score,
			Rank:   i + 1,
		})
	}

	return &model.LeaderboardResponse{
		MatchID:   matchID,
		Entries:   entries,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

// GetOnlineCount returns the number of non-expired presence records. The
// count is a point-in-time approximation bounded by sliding TTL windows.
func (s *QueryService) GetOnlineCount() (*model.OnlineCountResponse, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	count, err := s.store.OnlineCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get online count: %w", err)
	}

	return &model.OnlineCountResponse{
		OnlineCount: count,
		Timestamp:   time.Now().UnixMilli(),
	}, nil
}

// GetUniqueCount returns the approximate distinct-player count for a minute
// bucket (flat YYYYMMDDHHMM, UTC). An empty minute means the current one.
func (s *QueryService) GetUniqueCount(minute string) (*model.UniquesResponse, error) {
	if minute == "" {
		minute = MinuteBucket(time.Now().UnixMilli())
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.storeTimeout)
	defer cancel()

	count, err := s.store.UniqueCount(ctx, minute)
	if err != nil {
		return nil, fmt.Errorf("get unique count for %q: %w", minute, err)
	}

	return &model.UniquesResponse{
		Minute:    minute,
		Count:     count,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}
