package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/notification/outbox"
	"leadflow_backend/platform/logger"

	"github.com/google/uuid"
)

// Service delivers claimed outbox records through the email sender.
type Service struct {
	repo   *outbox.Repository
	sender email.Sender
	log    *logger.Logger
}

func NewService(repo *outbox.Repository, sender email.Sender, log *logger.Logger) *Service {
	return &Service{repo: repo, sender: sender, log: log}
}

// Deliver sends one outbox record. Errors are recorded on the record and
// returned so the task queue can retry.
func (s *Service) Deliver(ctx context.Context, outboxID uuid.UUID) error {
	rec, err := s.repo.GetByID(ctx, outboxID)
	if err != nil {
		return fmt.Errorf("load outbox record: %w", err)
	}
	if rec.Status == outbox.StatusSucceeded {
		return nil
	}

	if err := s.repo.MarkProcessing(ctx, rec.ID); err != nil {
		return err
	}

	var payload EmailPayload
	if err := json.Unmarshal(rec.Payload, &payload); err != nil {
		// Unparseable payloads never become sendable; fail terminally.
		_ = s.repo.MarkFailed(ctx, rec.ID, err.Error())
		s.log.NotificationError("outbox payload unmarshal failed", rec.LeadID.String(), err)
		return nil
	}

	if err := s.send(ctx, rec.Kind, payload); err != nil {
		_ = s.repo.MarkFailed(ctx, rec.ID, err.Error())
		s.log.NotificationError("outbox delivery failed", rec.LeadID.String(), err)
		return err
	}

	return s.repo.MarkSucceeded(ctx, rec.ID)
}

func (s *Service) send(ctx context.Context, kind string, p EmailPayload) error {
	switch kind {
	case outbox.KindAssignmentNotice:
		return s.sender.SendAssignmentNotice(ctx, p.RecipientEmail, p.RecipientName, p.ConsumerName, p.LeadURL)
	case outbox.KindAcceptanceReminder:
		return s.sender.SendAcceptanceReminder(ctx, p.RecipientEmail, p.RecipientName, p.ConsumerName, p.HoursRemaining, p.Final, p.LeadURL)
	case outbox.KindManagerTimeout:
		return s.sender.SendManagerTimeoutNotice(ctx, p.RecipientEmail, p.RecipientName, p.SellerName, p.ConsumerName, p.LeadURL)
	default:
		return fmt.Errorf("unknown notification kind %q", kind)
	}
}
