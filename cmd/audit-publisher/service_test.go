package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/config"
	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

func TestProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.AuditEvent{
			{ID: uuid.New(), Action: enums.AuditUserRegistered, Payload: json.RawMessage(`{"version":1}`)},
			{ID: uuid.New(), Action: enums.AuditRideCreated, Payload: json.RawMessage(`{"version":1}`)},
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if !processed {
		t.Fatalf("expected batch to report processed")
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestProcessBatchEmptyOutbox(t *testing.T) {
	repo := &fakeRepo{}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if processed {
		t.Fatalf("empty outbox should not report processed")
	}
}

func TestPublishCarriesActionAttributes(t *testing.T) {
	actorID := uuid.New()
	subjectID := uuid.New()
	event := models.AuditEvent{
		ID:        uuid.New(),
		Action:    enums.AuditRideCancelled,
		ActorID:   &actorID,
		SubjectID: &subjectID,
		Payload:   json.RawMessage(`{"version":1,"data":{}}`),
	}
	repo := &fakeRepo{events: []models.AuditEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one published message, got %d", len(pub.messages))
	}
	msg := pub.messages[0]
	if msg.Attributes["action"] != string(enums.AuditRideCancelled) {
		t.Fatalf("unexpected action attribute: %q", msg.Attributes["action"])
	}
	if msg.Attributes["actor_id"] != actorID.String() {
		t.Fatalf("unexpected actor_id attribute: %q", msg.Attributes["actor_id"])
	}
	if msg.Attributes["subject_id"] != subjectID.String() {
		t.Fatalf("unexpected subject_id attribute: %q", msg.Attributes["subject_id"])
	}
}

func TestPublishWithoutResultMarksFailure(t *testing.T) {
	event := models.AuditEvent{ID: uuid.New(), Action: enums.AuditUserLoggedIn}
	repo := &fakeRepo{events: []models.AuditEvent{event}}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != event.ID {
		t.Fatalf("expected the event to be marked failed")
	}
}

func newTestService(t *testing.T, repo auditRepository, pub publisher, auditCfgOverride *config.AuditConfig) *Service {
	t.Helper()
	auditCfg := config.AuditConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if auditCfgOverride != nil {
		auditCfg = *auditCfgOverride
	}
	cfg := &config.Config{Audit: auditCfg}
	logg := logger.New(logger.Options{
		ServiceName: "audit-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		Repository: repo,
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

type fakeRepo struct {
	events    []models.AuditEvent
	published []uuid.UUID
	failed    []uuid.UUID
}

func (f *fakeRepo) FetchUnpublishedTx(tx *gorm.DB, limit, maxAttempts int) ([]models.AuditEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error { return nil }

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "server-id", nil
}
