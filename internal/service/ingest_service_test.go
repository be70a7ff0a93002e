package service

import (
	"errors"
	"testing"
	"time"

	"github.com/cupgame/telemetry/internal/metrics"
	"github.com/cupgame/telemetry/internal/model"
	"github.com/cupgame/telemetry/internal/ratelimit"
)

type fakePublisher struct {
	published []model.GameAction
	err       error
}

func (f *fakePublisher) PublishGameAction(event *model.GameAction) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, *event)
	return nil
}

func newIngestFixture(apiKey string, capacity int) (*IngestService, *fakePublisher, *metrics.Counters) {
	publisher := &fakePublisher{}
	counters := metrics.NewCounters()
	bucket := ratelimit.NewBucket(capacity, 1, time.Hour)
	return NewIngestService(publisher, bucket, apiKey, counters), publisher, counters
}

func TestAdmit_StampsActionAndTimestamp(t *testing.T) {
	svc, publisher, counters := newIngestFixture("secret", 100)

	before := time.Now().UnixMilli()
	event := &model.GameAction{
		UserID:    "u1",
		Region:    "EU",
		Action:    "drink",     // client-supplied, must be overwritten
		Timestamp: 1234567890,  // client-supplied, must be overwritten
	}
	if err := svc.Admit("secret", model.ActionHeartbeat, event); err != nil {
		t.Fatalf("Admit returned %v, expected nil", err)
	}
	after := time.Now().UnixMilli()

	if len(publisher.published) != 1 {
		t.Fatalf("published %d events, expected exactly 1", len(publisher.published))
	}
	got := publisher.published[0]
	if got.Action != model.ActionHeartbeat {
		t.Errorf("action = %q, expected %q", got.Action, model.ActionHeartbeat)
	}
	if got.Timestamp < before || got.Timestamp > after {
		t.Errorf("timestamp %d outside admission window [%d, %d]", got.Timestamp, before, after)
	}
	if got.UserID != "u1" || got.Region != "EU" {
		t.Errorf("caller-owned fields changed: %+v", got)
	}
	if counters.HeartbeatsAccepted.Load() != 1 {
		t.Errorf("heartbeat counter = %d, expected 1", counters.HeartbeatsAccepted.Load())
	}
}

func TestAdmit_WrongCredentialShortCircuits(t *testing.T) {
	svc, publisher, counters := newIngestFixture("secret", 100)

	err := svc.Admit("wrong", model.ActionDrink, &model.GameAction{UserID: "u1"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("err = %v, expected ErrUnauthorized", err)
	}
	if len(publisher.published) != 0 {
		t.Errorf("published %d events, expected none on bad credential", len(publisher.published))
	}
	if counters.Rejected.Load() != 1 {
		t.Errorf("rejected counter = %d, expected 1", counters.Rejected.Load())
	}
	if counters.DrinksAccepted.Load() != 0 {
		t.Errorf("drink counter = %d, expected 0", counters.DrinksAccepted.Load())
	}
}

func TestAdmit_RateLimitedIsDistinctFromUnauthorized(t *testing.T) {
	svc, publisher, counters := newIngestFixture("secret", 1)

	if err := svc.Admit("secret", model.ActionDrink, &model.GameAction{UserID: "u1"}); err != nil {
		t.Fatalf("first admit failed: %v", err)
	}

	err := svc.Admit("secret", model.ActionDrink, &model.GameAction{UserID: "u2"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("err = %v, expected ErrRateLimited", err)
	}
	if errors.Is(err, ErrUnauthorized) {
		t.Fatalf("rate-limit outcome must not be unauthorized")
	}
	if len(publisher.published) != 1 {
		t.Errorf("published %d events, expected only the admitted one", len(publisher.published))
	}
	if counters.Rejected.Load() != 1 {
		t.Errorf("rejected counter = %d, expected 1", counters.Rejected.Load())
	}
}

func TestAdmit_PublishFailureDoesNotSurface(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker down")}
	counters := metrics.NewCounters()
	bucket := ratelimit.NewBucket(100, 1, time.Hour)
	svc := NewIngestService(publisher, bucket, "secret", counters)

	// The response has conceptually already been sent; append failures are a
	// logging concern only.
	if err := svc.Admit("secret", model.ActionDrink, &model.GameAction{UserID: "u1"}); err != nil {
		t.Fatalf("Admit returned %v, expected nil despite publish failure", err)
	}
	if counters.DrinksAccepted.Load() != 1 {
		t.Errorf("drink counter = %d, expected 1", counters.DrinksAccepted.Load())
	}
}

func TestAdmit_EmptyUserIDIsAdmitted(t *testing.T) {
	svc, publisher, _ := newIngestFixture("secret", 100)

	if err := svc.Admit("secret", model.ActionHeartbeat, &model.GameAction{Region: "NA"}); err != nil {
		t.Fatalf("Admit returned %v, expected empty userId to be accepted", err)
	}
	if len(publisher.published) != 1 {
		t.Fatalf("published %d events, expected 1", len(publisher.published))
	}
	if publisher.published[0].UserID != "" {
		t.Errorf("userId = %q, expected empty", publisher.published[0].UserID)
	}
}
