package handler

import (
	"context"
	"net/http"

	"github.com/ClareAI/astra-crm-service/internal/core/event"
	"github.com/ClareAI/astra-crm-service/internal/domain"
	"github.com/ClareAI/astra-crm-service/internal/repository"
	"github.com/ClareAI/astra-crm-service/pkg/logger"
	"go.uber.org/zap"
)

// Unit is one transactional unit of work. Audit entries are written inside
// the transaction; events are published only after it commits.
type Unit struct {
	repository.RepositoryManager

	Principal domain.Principal

	ipAddress string
	userAgent string
	entries   []*domain.ActivityLog
	events    []*domain.Event
}

// Audit records an activity log entry for the caller.
func (u *Unit) Audit(action, resourceType, resourceID string, details map[string]interface{}) {
	entry := domain.NewActivityLog(u.Principal, action, resourceType, resourceID, details)
	entry.IPAddress = u.ipAddress
	entry.UserAgent = u.userAgent
	u.entries = append(u.entries, entry)
}

// Emit queues a domain event for publication after commit.
func (u *Unit) Emit(e *domain.Event) {
	u.events = append(u.events, e)
}

// Committer runs units of work against the repositories.
type Committer struct {
	repos     repository.RepositoryManager
	publisher event.Publisher
}

// NewCommitter creates a committer. publisher may be nil.
func NewCommitter(repos repository.RepositoryManager, publisher event.Publisher) *Committer {
	return &Committer{repos: repos, publisher: publisher}
}

// Run executes fn in one transaction for the request's principal.
func (c *Committer) Run(r *http.Request, fn func(ctx context.Context, u *Unit) error) error {
	return c.RunAs(r.Context(), principal(r), clientIP(r), r.UserAgent(), fn)
}

// RunAs is Run for callers without a request or with an explicit principal.
func (c *Committer) RunAs(ctx context.Context, p domain.Principal, ip, userAgent string, fn func(ctx context.Context, u *Unit) error) error {
	var events []*domain.Event

	err := c.repos.WithTx(ctx, func(ctx context.Context, tx repository.RepositoryManager) error {
		u := &Unit{RepositoryManager: tx, Principal: p, ipAddress: ip, userAgent: userAgent}
		if err := fn(ctx, u); err != nil {
			return err
		}
		for _, entry := range u.entries {
			if err := tx.ActivityLog().Append(ctx, entry); err != nil {
				return err
			}
		}
		events = u.events
		return nil
	})
	if err != nil {
		return err
	}

	c.publish(ctx, events)
	return nil
}

func (c *Committer) publish(ctx context.Context, events []*domain.Event) {
	if c.publisher == nil {
		return
	}
	for _, e := range events {
		if err := c.publisher.Publish(e); err != nil {
			logger.Warn(ctx, "failed to publish event",
				zap.String("type", e.Type),
				zap.String("event_id", e.ID),
				zap.Error(err))
		}
	}
}
