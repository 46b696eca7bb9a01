package notification

import (
	"context"
	"errors"

	"github.com/aslmarket/aslmatch/internal/apperr"
	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/metrics"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

// Deliverer executes a single job. It is shared by every queue
// implementation so retry classification stays in one place.
type Deliverer struct {
	recipients RecipientResolver
	idem       IdempotencyStore
	transports map[domain.Channel]Transport
}

// NewDeliverer creates a deliverer. Channels without a transport drop
// their jobs.
func NewDeliverer(recipients RecipientResolver, idem IdempotencyStore, transports map[domain.Channel]Transport) *Deliverer {
	return &Deliverer{recipients: recipients, idem: idem, transports: transports}
}

// Deliver sends job once. A nil error means delivered or intentionally
// skipped. Transient errors should be retried by the caller; any other
// error is final.
func (d *Deliverer) Deliver(ctx context.Context, job Job) error {
	ch := string(job.Channel)

	done, err := d.idem.Delivered(ctx, job.Key)
	if err != nil {
		return apperr.Transient("check idempotency key", err)
	}
	if done {
		metrics.NotificationsSkipped.WithLabelValues(ch, metrics.ReasonDuplicate).Inc()
		return nil
	}

	t, ok := d.transports[job.Channel]
	if !ok || t == nil {
		return apperr.Wrap(apperr.KindInternal, string(job.Channel), ErrNoTransport)
	}

	r, err := d.recipients.Recipient(ctx, job.RecipientID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return err
		}
		return apperr.Transient("resolve recipient", err)
	}

	if job.Channel == domain.ChannelSMS && !r.CanReceiveSMS() {
		metrics.NotificationsSkipped.WithLabelValues(ch, metrics.ReasonIneligible).Inc()
		return nil
	}

	if err := t.Send(ctx, r, job.Event); err != nil {
		return err
	}

	if err := d.idem.MarkDelivered(ctx, job.Key); err != nil {
		// Delivery happened; a retry would only repeat it.
		logger.Warn("mark delivered failed", "key", job.Key, "error", err)
	}
	metrics.NotificationsDelivered.WithLabelValues(ch).Inc()
	return nil
}
