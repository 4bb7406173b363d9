package notification

import (
	"context"

	"leadflow_backend/internal/email"
	"leadflow_backend/internal/events"
	"leadflow_backend/internal/notification/outbox"
	"leadflow_backend/platform/config"
	"leadflow_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module wires the notification outbox: the notifier consumed by the
// assignment service, the delivery service consumed by the worker, and the
// LeadAssigned subscription that enqueues assignment notices.
type Module struct {
	notifier *OutboxNotifier
	delivery *Service
	repo     *outbox.Repository
}

func NewModule(pool *pgxpool.Pool, eventBus events.Bus, directory Directory, sender email.Sender, cfg config.NotificationConfig, log *logger.Logger) *Module {
	repo := outbox.New(pool)
	notifier := NewOutboxNotifier(repo, cfg.GetAppBaseURL())
	delivery := NewService(repo, sender, log)

	eventBus.Subscribe(events.LeadAssigned{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
		e, ok := event.(events.LeadAssigned)
		if !ok {
			return nil
		}
		if err := notifier.EnqueueAssignmentNotice(ctx, directory, e.LeadID, e.SellerID); err != nil {
			log.NotificationError("assignment notice enqueue failed", e.LeadID.String(), err)
		}
		return nil
	}))

	return &Module{
		notifier: notifier,
		delivery: delivery,
		repo:     repo,
	}
}

// Notifier returns the outbox-backed notifier for the assignment service.
func (m *Module) Notifier() *OutboxNotifier {
	return m.notifier
}

// Delivery returns the delivery service consumed by the scheduler worker.
func (m *Module) Delivery() *Service {
	return m.delivery
}

// Outbox returns the outbox repository for the dispatcher.
func (m *Module) Outbox() *outbox.Repository {
	return m.repo
}
