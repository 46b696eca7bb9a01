package notification

import (
	"context"

	"github.com/aslmarket/aslmatch/internal/domain"
	"github.com/aslmarket/aslmatch/internal/metrics"
	"github.com/aslmarket/aslmatch/internal/pkg/logger"
)

// Job is one (event, recipient, channel) delivery.
type Job struct {
	Key         string         `json:"key"`
	Event       domain.Event   `json:"event"`
	RecipientID string         `json:"recipient_id"`
	Channel     domain.Channel `json:"channel"`
	// Attempt counts delivery tries so far.
	Attempt int `json:"attempt"`
}

// JobKey is the idempotency key of a delivery.
func JobKey(eventID, recipientID string, ch domain.Channel) string {
	return eventID + ":" + recipientID + ":" + string(ch)
}

// Dispatcher turns events into queued jobs.
type Dispatcher struct {
	queue    Queue
	disabled map[domain.Channel]bool
}

// NewDispatcher creates a dispatcher feeding q.
func NewDispatcher(q Queue) *Dispatcher {
	return &Dispatcher{queue: q, disabled: make(map[domain.Channel]bool)}
}

// Disable stops jobs for channels that have no gateway configured. Call it
// before the first Dispatch.
func (d *Dispatcher) Disable(channels ...domain.Channel) {
	for _, ch := range channels {
		d.disabled[ch] = true
	}
}

// Dispatch enqueues one job per distinct (recipient, channel). It never
// blocks on delivery and never reports failures to the caller; enqueue
// errors are logged and counted.
func (d *Dispatcher) Dispatch(ctx context.Context, ev domain.Event, recipients []string, channels []domain.Channel) {
	if !ev.Type.Valid() || ev.ID == "" {
		logger.Error("refusing to dispatch malformed event", "event_id", ev.ID, "type", ev.Type)
		return
	}

	seenRecipient := make(map[string]bool, len(recipients))
	seenChannel := make(map[domain.Channel]bool, len(channels))
	var chans []domain.Channel
	for _, ch := range channels {
		if d.disabled[ch] {
			metrics.NotificationsSkipped.WithLabelValues(string(ch), metrics.ReasonDisabled).Inc()
			continue
		}
		if !seenChannel[ch] {
			seenChannel[ch] = true
			chans = append(chans, ch)
		}
	}

	enqueued := 0
	for _, rid := range recipients {
		if rid == "" || seenRecipient[rid] {
			continue
		}
		seenRecipient[rid] = true
		for _, ch := range chans {
			job := Job{Key: JobKey(ev.ID, rid, ch), Event: ev, RecipientID: rid, Channel: ch}
			if err := d.queue.Enqueue(ctx, job); err != nil {
				metrics.NotificationsDropped.WithLabelValues(string(ch), "enqueue").Inc()
				logger.Error("enqueue notification failed", "key", job.Key, "error", err)
				continue
			}
			enqueued++
		}
	}
	logger.Debug("event dispatched", "event_id", ev.ID, "type", ev.Type, "jobs", enqueued)
}
