package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ecoride-app/ecoride-backend/pkg/db/models"
	"github.com/ecoride-app/ecoride-backend/pkg/enums"
	"github.com/ecoride-app/ecoride-backend/pkg/logger"
)

// Event carries everything a caller knows at emit time.
type Event struct {
	Action     enums.AuditAction
	Actor      *ActorRef
	SubjectID  *uuid.UUID
	Data       interface{}
	Version    int
	OccurredAt time.Time
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service queues audit events. Emit writes inside the caller's transaction so
// the event commits or rolls back with the business change; EmitAsync is for
// events with no surrounding transaction (failed logins and the like).
type Service struct {
	repo *Repository
	db   txRunner
	logg *logger.Logger
}

func NewService(repo *Repository, db txRunner, logg *logger.Logger) *Service {
	return &Service{repo: repo, db: db, logg: logg}
}

func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event Event) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	row, envelope, err := buildRow(event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	s.logQueued(ctx, event, envelope)
	return nil
}

const emitAsyncTimeout = 5 * time.Second

// EmitAsync records the event in its own transaction on a detached goroutine.
// The write outlives request cancellation, and failures are logged and
// swallowed so audit trouble never breaks the request path.
func (s *Service) EmitAsync(ctx context.Context, event Event) {
	if s.db == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	detached := context.WithoutCancel(ctx)
	go func() {
		emitCtx, cancel := context.WithTimeout(detached, emitAsyncTimeout)
		defer cancel()

		err := s.db.WithTx(emitCtx, func(tx *gorm.DB) error {
			row, envelope, err := buildRow(event)
			if err != nil {
				return err
			}
			if err := s.repo.Insert(tx, row); err != nil {
				return err
			}
			s.logQueued(emitCtx, event, envelope)
			return nil
		})
		if err != nil && s.logg != nil {
			s.logg.Error(emitCtx, "audit event emit failed", err)
		}
	}()
}

func buildRow(event Event) (models.AuditEvent, PayloadEnvelope, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return models.AuditEvent{}, PayloadEnvelope{}, err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}
	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       payload,
	}
	payloadJSON, err := json.Marshal(envelope)
	if err != nil {
		return models.AuditEvent{}, PayloadEnvelope{}, err
	}
	row := models.AuditEvent{
		Action:    event.Action,
		SubjectID: event.SubjectID,
		Payload:   json.RawMessage(payloadJSON),
	}
	if event.Actor != nil {
		actorID := event.Actor.UserID
		row.ActorID = &actorID
	}
	return row, envelope, nil
}

func (s *Service) logQueued(ctx context.Context, event Event, envelope PayloadEnvelope) {
	if s.logg == nil {
		return
	}
	fields := map[string]any{
		"event_id": envelope.EventID,
		"action":   event.Action,
	}
	if event.SubjectID != nil {
		fields["subject_id"] = event.SubjectID.String()
	}
	logCtx := s.logg.WithFields(ctx, fields)
	s.logg.Info(logCtx, "audit event queued")
}
