// Package audit fires best-effort notifications to the audit fan-out
// receiver. Delivery is never awaited for correctness: failures are logged,
// counted, and swallowed so they cannot affect an item's pipeline outcome.
package audit

import (
	"context"
	"time"

	"github.com/buralog/etl-healthcare/internal/logging"
	"github.com/buralog/etl-healthcare/internal/messaging"
	"github.com/buralog/etl-healthcare/internal/metrics"
)

// DefaultTimeout bounds a single notification attempt.
const DefaultTimeout = 2 * time.Second

// Event is one audit notification.
type Event struct {
	Stage      string `json:"stage"`
	TenantID   string `json:"tenantId"`
	EntityType string `json:"entityType"`
	EntityID   string `json:"entityId"`
	TraceID    string `json:"traceId,omitempty"`
	OccurredAt string `json:"occurredAt"`
}

// Notifier publishes audit events without blocking the caller.
type Notifier struct {
	pub     messaging.Publisher
	log     *logging.Logger
	timeout time.Duration
}

// NewNotifier constructs a notifier. A zero timeout falls back to
// DefaultTimeout.
func NewNotifier(pub messaging.Publisher, log *logging.Logger, timeout time.Duration) *Notifier {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Notifier{pub: pub, log: log, timeout: timeout}
}

// Notify dispatches the event in the background and returns immediately.
// The attempt carries its own timeout and survives cancellation of the
// caller's context: the item is already emitted when this fires.
func (n *Notifier) Notify(ctx context.Context, event Event) {
	if n == nil || n.pub == nil {
		return
	}
	if event.OccurredAt == "" {
		event.OccurredAt = time.Now().UTC().Format(time.RFC3339)
	}

	detached := context.WithoutCancel(ctx)
	go func() {
		notifyCtx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()

		if err := messaging.PublishJSON(notifyCtx, n.pub, messaging.SubjectAudit, event); err != nil {
			metrics.AuditNotifyFailures.Inc()
			n.log.WarnContext(notifyCtx, "audit notification failed",
				logging.Error(err),
				logging.Tenant(event.TenantID),
			)
		}
	}()
}
