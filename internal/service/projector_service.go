package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/cupgame/telemetry/internal/metrics"
	"github.com/cupgame/telemetry/internal/model"
)

// minuteBucketLayout renders a UTC timestamp as a flat YYYYMMDDHHMM key.
const minuteBucketLayout = "200601021504"

// ProjectionStore is the slice of the store the projector writes through.
// Each operation is atomic at its single key; the projector holds no locks.
type ProjectionStore interface {
	SetPresence(ctx context.Context, userID, region string, ttl time.Duration) error
	IncrementScore(ctx context.Context, matchID, userID string, amount int) error
	AddUnique(ctx context.Context, bucket, userID string, ttl time.Duration) error
}

// ProjectorService folds consumed envelopes into the three projections.
// Processing is best-effort per event: a failed store call is logged and the
// event is dropped for that projection, never retried here (redelivery only
// comes from the log's own at-least-once mechanics).
type ProjectorService struct {
	store        ProjectionStore
	presenceTTL  time.Duration
	uniquesTTL   time.Duration
	storeTimeout time.Duration
	counters     *metrics.Counters
}

func NewProjectorService(store ProjectionStore, presenceTTL, uniquesTTL, storeTimeout time.Duration, counters *metrics.Counters) *ProjectorService {
	return &ProjectorService{
		store:        store,
		presenceTTL:  presenceTTL,
		uniquesTTL:   uniquesTTL,
		storeTimeout: storeTimeout,
		counters:     counters,
	}
}

// ProcessGameAction dispatches one consumed envelope, terminal in one pass.
// Dispatch is an exact, case-sensitive string match; anything else is a
// warn-and-drop. For DRINK both updates are attempted even if the first
// fails. The returned error is informational for the consumer lane — it
// never halts consumption.
func (s *ProjectorService) ProcessGameAction(event *model.GameAction) error {
	switch event.Action {
	case model.ActionHeartbeat:
		err := s.updatePresence(event)
		s.counters.HeartbeatsProjected.Add(1)
		return err

	case model.ActionDrink:
		firstErr := s.updateLeaderboard(event)
		if err := s.updateUniques(event); firstErr == nil {
			firstErr = err
		}
		s.counters.DrinksProjected.Add(1)
		return firstErr

	default:
		zap.L().Warn("Unknown action type, dropping event",
			zap.String("action", event.Action),
			zap.String("user_id", event.UserID))
		s.counters.UnknownDropped.Add(1)
		return nil
	}
}

// updatePresence sets the user's last-seen region and resets the TTL on every
// heartbeat. Sliding expiry: each heartbeat extends "online" from that
// moment, and key expiry is the only path to "offline".
func (s *ProjectorService) updatePresence(event *model.GameAction) error {
	ctx, cancel := s.storeContext()
	defer cancel()

	if err := s.store.SetPresence(ctx, event.UserID, event.Region, s.presenceTTL); err != nil {
		s.counters.ProjectionFailures.Add(1)
		zap.L().Error("Failed to update presence",
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return err
	}

	zap.L().Debug("Updated presence",
		zap.String("user_id", event.UserID),
		zap.String("region", event.Region))
	return nil
}

// updateLeaderboard adds the drink amount to the (match, user) cumulative
// score. Increment semantics mean a redelivered event double-counts; that is
// the accepted behavior, not a defect to compensate for here.
func (s *ProjectorService) updateLeaderboard(event *model.GameAction) error {
	ctx, cancel := s.storeContext()
	defer cancel()

	if err := s.store.IncrementScore(ctx, event.MatchID, event.UserID, event.Amount); err != nil {
		s.counters.ProjectionFailures.Add(1)
		zap.L().Error("Failed to update leaderboard",
			zap.String("match_id", event.MatchID),
			zap.String("user_id", event.UserID),
			zap.Int("amount", event.Amount),
			zap.Error(err))
		return err
	}

	zap.L().Debug("Updated leaderboard",
		zap.String("match_id", event.MatchID),
		zap.String("user_id", event.UserID),
		zap.Int("amount", event.Amount))
	return nil
}

// updateUniques adds the user to the minute bucket derived from the event's
// server-assigned timestamp and slides the bucket's expiry forward.
func (s *ProjectorService) updateUniques(event *model.GameAction) error {
	bucket := MinuteBucket(event.Timestamp)

	ctx, cancel := s.storeContext()
	defer cancel()

	if err := s.store.AddUnique(ctx, bucket, event.UserID, s.uniquesTTL); err != nil {
		s.counters.ProjectionFailures.Add(1)
		zap.L().Error("Failed to update uniques",
			zap.String("bucket", bucket),
			zap.String("user_id", event.UserID),
			zap.Error(err))
		return err
	}

	zap.L().Debug("Updated uniques",
		zap.String("bucket", bucket),
		zap.String("user_id", event.UserID))
	return nil
}

func (s *ProjectorService) storeContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), s.storeTimeout)
}

// MinuteBucket converts an epoch-millisecond timestamp into its UTC minute
// bucket key.
func MinuteBucket(timestampMillis int64) string {
	return time.UnixMilli(timestampMillis).UTC().Format(minuteBucketLayout)
}
