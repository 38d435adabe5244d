// Package broadcast drives one app-update broadcast from trigger to
// summary: idempotency, the per-subscription send loop, outcome
// aggregation, expired-subscription cleanup and record persistence.
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"

	"update-broadcast-go/internal/models"
	"update-broadcast-go/internal/store"
	"update-broadcast-go/internal/webpush"
)

var (
	ErrForbidden        = errors.New("broadcast: admin role required")
	ErrMissingVersion   = errors.New("broadcast: version is required")
	ErrInvalidPriority  = errors.New("broadcast: priority must be normal, important or critical")
	ErrDuplicateVersion = errors.New("broadcast: version already broadcast")
)

// Error details stored per record are capped to bound row size; failures
// past the cap are still counted.
const maxErrorDetails = 50

// Sender delivers one encrypted notification. *webpush.Dispatcher is the
// production implementation.
type Sender interface {
	Send(ctx context.Context, sub *models.PushSubscription, payload []byte) webpush.SendResult
}

type Orchestrator struct {
	subscriptions store.SubscriptionStore
	records       store.BroadcastStore
	sender        Sender
	events        store.EventPublisher // optional
	concurrency   int
}

// NewOrchestrator wires a broadcast engine. concurrency sets the worker
// pool width for the send loop; 1 preserves strictly sequential sends.
// events may be nil.
func NewOrchestrator(subs store.SubscriptionStore, records store.BroadcastStore, sender Sender, events store.EventPublisher, concurrency int) *Orchestrator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Orchestrator{
		subscriptions: subs,
		records:       records,
		sender:        sender,
		events:        events,
		concurrency:   concurrency,
	}
}

// Broadcast runs one broadcast to completion and returns the delivery
// summary. Per-subscription failures never abort the broadcast; only
// precondition failures (role, validation, duplicate version, storage)
// surface as errors.
func (o *Orchestrator) Broadcast(ctx context.Context, req models.BroadcastRequest, actor string, isAdmin bool) (*models.BroadcastSummary, error) {
	if !isAdmin {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(req.Version) == "" {
		return nil, ErrMissingVersion
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	switch req.Priority {
	case models.PriorityNormal, models.PriorityImportant, models.PriorityCritical:
	default:
		return nil, ErrInvalidPriority
	}

	existing, err := o.records.FindBroadcastRecordByVersion(ctx, req.Version)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrDuplicateVersion
	}

	subs, err := o.subscriptions.FindActiveSubscriptions(ctx, req.TenantIDs)
	if err != nil {
		return nil, err
	}

	// The record is the idempotency gate for concurrent calls, so it must
	// exist before the first send.
	rec := &models.BroadcastRecord{
		Version:         req.Version,
		ReleaseNotes:    req.ReleaseNotes,
		Priority:        req.Priority,
		BroadcastBy:     actor,
		TotalRecipients: len(subs),
	}
	if err := o.records.InsertBroadcastRecord(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicateVersion) {
			return nil, ErrDuplicateVersion
		}
		return nil, err
	}

	payload, err := BuildPayload(req)
	if err != nil {
		return nil, err
	}

	results := o.sendAll(ctx, subs, payload)

	var expiredIDs []int
	for i, res := range results {
		switch res.Status {
		case webpush.SendSuccess:
			rec.SuccessfulSends++
		case webpush.SendExpired:
			rec.FailedSends++
			expiredIDs = append(expiredIDs, subs[i].ID)
		case webpush.SendFailed:
			rec.FailedSends++
			if len(rec.ErrorDetails) < maxErrorDetails {
				rec.ErrorDetails = append(rec.ErrorDetails, models.SendError{
					SubscriptionID: subs[i].ID,
					Error:          res.Error,
				})
			}
		}
	}

	expiredCleaned := 0
	if len(expiredIDs) > 0 {
		if err := o.subscriptions.DeactivateSubscriptions(ctx, expiredIDs); err != nil {
			log.Printf("Failed to deactivate %d expired subscriptions: %v", len(expiredIDs), err)
		} else {
			expiredCleaned = len(expiredIDs)
		}
	}

	if err := o.records.UpdateBroadcastRecord(ctx, rec); err != nil {
		// The sends already happened; surface the summary anyway.
		log.Printf("Failed to update broadcast record %d: %v", rec.ID, err)
	}

	summary := &models.BroadcastSummary{
		RecordID:        rec.ID,
		Version:         rec.Version,
		TotalRecipients: rec.TotalRecipients,
		SuccessfulSends: rec.SuccessfulSends,
		FailedSends:     rec.FailedSends,
		ExpiredCleaned:  expiredCleaned,
	}
	broadcastsTotal.Inc()
	o.publish(ctx, summary)
	log.Printf("Broadcast %s: %d recipients, %d sent, %d failed, %d expired",
		rec.Version, summary.TotalRecipients, summary.SuccessfulSends, summary.FailedSends, expiredCleaned)
	return summary, nil
}

// sendAll delivers to every subscription through a fixed-width worker pool.
// Results are written by index so each outcome stays attributable to its
// subscription at any pool width.
func (o *Orchestrator) sendAll(ctx context.Context, subs []models.PushSubscription, payload []byte) []webpush.SendResult {
	results := make([]webpush.SendResult, len(subs))
	if len(subs) == 0 {
		return results
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < o.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = o.sender.Send(ctx, &subs[i], payload)
			}
		}()
	}
	for i := range subs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
	return results
}

func (o *Orchestrator) publish(ctx context.Context, summary *models.BroadcastSummary) {
	if o.events == nil {
		return
	}
	event, err := json.Marshal(map[string]any{
		"type":    "broadcast_completed",
		"summary": summary,
	})
	if err != nil {
		return
	}
	if err := o.events.PublishBroadcastEvent(ctx, event); err != nil {
		log.Printf("Failed to publish broadcast event: %v", err)
	}
}
