// Package notification turns assignment lifecycle events into durable
// outbound notifications: writes go to a Postgres outbox, a dispatcher
// enqueues due records as background tasks, and a worker delivers them
// via the email sender.
package notification

import (
	"context"
	"fmt"
	"time"

	"leadflow_backend/internal/assignment/repository"
	"leadflow_backend/internal/assignment/service"
	"leadflow_backend/internal/notification/outbox"

	"github.com/google/uuid"
)

// Directory resolves users and leads referenced by events.
// Implemented by the assignment repository.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (repository.User, error)
	GetLead(ctx context.Context, id uuid.UUID) (repository.Lead, error)
}

// OutboxNotifier implements the assignment service's Notifier by inserting
// outbox records instead of sending directly. The state transition and the
// pending notification become visible together; delivery happens async.
type OutboxNotifier struct {
	repo    *outbox.Repository
	baseURL string
}

func NewOutboxNotifier(repo *outbox.Repository, appBaseURL string) *OutboxNotifier {
	return &OutboxNotifier{repo: repo, baseURL: appBaseURL}
}

func (n *OutboxNotifier) SendAcceptanceReminder(ctx context.Context, seller repository.User, lead repository.Lead, hoursRemaining int, final bool) error {
	_, err := n.repo.Insert(ctx, outbox.InsertParams{
		LeadID: lead.ID,
		Kind:   outbox.KindAcceptanceReminder,
		Payload: EmailPayload{
			RecipientEmail: seller.Email,
			RecipientName:  seller.Name,
			ConsumerName:   lead.ConsumerName,
			HoursRemaining: hoursRemaining,
			Final:          final,
			LeadURL:        n.leadURL(lead.ID),
		},
		RunAt: time.Now().UTC(),
	})
	return err
}

func (n *OutboxNotifier) SendManagerTimeoutNotice(ctx context.Context, manager, seller repository.User, lead repository.Lead) error {
	_, err := n.repo.Insert(ctx, outbox.InsertParams{
		LeadID: lead.ID,
		Kind:   outbox.KindManagerTimeout,
		Payload: EmailPayload{
			RecipientEmail: manager.Email,
			RecipientName:  manager.Name,
			SellerName:     seller.Name,
			ConsumerName:   lead.ConsumerName,
			LeadURL:        n.leadURL(lead.ID),
		},
		RunAt: time.Now().UTC(),
	})
	return err
}

// EnqueueAssignmentNotice tells the new assignee a lead awaits their
// response. Invoked from the LeadAssigned event subscription.
func (n *OutboxNotifier) EnqueueAssignmentNotice(ctx context.Context, directory Directory, leadID, sellerID uuid.UUID) error {
	seller, err := directory.GetUser(ctx, sellerID)
	if err != nil {
		return fmt.Errorf("assignment notice: %w", err)
	}
	lead, err := directory.GetLead(ctx, leadID)
	if err != nil {
		return fmt.Errorf("assignment notice: %w", err)
	}

	_, err = n.repo.Insert(ctx, outbox.InsertParams{
		LeadID: lead.ID,
		Kind:   outbox.KindAssignmentNotice,
		Payload: EmailPayload{
			RecipientEmail: seller.Email,
			RecipientName:  seller.Name,
			ConsumerName:   lead.ConsumerName,
			LeadURL:        n.leadURL(lead.ID),
		},
		RunAt: time.Now().UTC(),
	})
	return err
}

func (n *OutboxNotifier) leadURL(leadID uuid.UUID) string {
	if n.baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/leads/%s", n.baseURL, leadID)
}

var _ service.Notifier = (*OutboxNotifier)(nil)
