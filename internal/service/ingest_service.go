package service

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cupgame/telemetry/internal/metrics"
	"github.com/cupgame/telemetry/internal/model"
	"github.com/cupgame/telemetry/internal/ratelimit"
)

// Admission outcomes. The HTTP layer maps these to distinct status families
// so clients can tell a bad credential from a back-off signal.
var (
	ErrUnauthorized = errors.New("invalid api key")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// EventPublisher is the durable-log append the gateway hands admitted
// envelopes to.
type EventPublisher interface {
	PublishGameAction(event *model.GameAction) error
}

// IngestService is the admission path: credential check, rate limit, server
// side stamping, then a fire-and-forget append. Nothing after admission is
// ever surfaced back to the caller.
type IngestService struct {
	publisher EventPublisher
	bucket    *ratelimit.Bucket
	apiKey    string
	counters  *metrics.Counters
}

func NewIngestService(publisher EventPublisher, bucket *ratelimit.Bucket, apiKey string, counters *metrics.Counters) *IngestService {
	return &IngestService{
		publisher: publisher,
		bucket:    bucket,
		apiKey:    apiKey,
		counters:  counters,
	}
}

// Admit runs the admission sequence for one request. kind is the
// endpoint-implied action; the event's own Action and Timestamp fields are
// always overwritten, never trusted. On admission the envelope is handed to
// the publisher keyed by userId (empty userId included) and nil is returned
// immediately — publish completion only affects logging, the response to the
// caller does not wait for it.
func (s *IngestService) Admit(providedKey, kind string, event *model.GameAction) error {
	if providedKey != s.apiKey {
		s.counters.Rejected.Add(1)
		return ErrUnauthorized
	}

	if !s.bucket.TryConsume(1) {
		s.counters.Rejected.Add(1)
		return ErrRateLimited
	}

	event.Action = kind
	event.Timestamp = time.Now().UnixMilli()

	if err := s.publisher.PublishGameAction(event); err != nil {
		// Accepted durability gap: the caller still gets "accepted".
		zap.L().Error("Failed to publish admitted event",
			zap.String("user_id", event.UserID),
			zap.String("action", kind),
			zap.Error(err))
	}

	switch kind {
	case model.ActionHeartbeat:
		s.counters.HeartbeatsAccepted.Add(1)
	case model.ActionDrink:
		s.counters.DrinksAccepted.Add(1)
	}

	return nil
}
