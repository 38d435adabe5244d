package models

import "time"

// Broadcast priorities.
const (
	PriorityNormal    = "normal"
	PriorityImportant = "important"
	PriorityCritical  = "critical"
)

type PushSubscription struct {
	ID        int        `json:"id"`
	UserID    int        `json:"user_id"`
	TenantID  string     `json:"tenant_id"`
	Endpoint  string     `json:"endpoint"`
	P256dh    string     `json:"keys_p256dh"` // Mapped from keys.p256dh
	Auth      string     `json:"keys_auth"`   // Mapped from keys.auth
	IsActive  bool       `json:"is_active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// BroadcastRequest is the body of the broadcast trigger endpoint.
type BroadcastRequest struct {
	Version      string   `json:"version"`
	ReleaseNotes []string `json:"release_notes,omitempty"`
	Priority     string   `json:"priority,omitempty"`
	TenantIDs    []string `json:"tenant_ids,omitempty"`
	CustomTitle  string   `json:"custom_title,omitempty"`
	CustomBody   string   `json:"custom_body,omitempty"`
	Language     string   `json:"language,omitempty"`
}

// SendError records one failed delivery. The stored list is capped at 50
// entries, so failed_sends can exceed len(ErrorDetails).
type SendError struct {
	SubscriptionID int    `json:"subscription_id"`
	Error          string `json:"error"`
}

// BroadcastRecord is one row in app_updates: inserted with zero counts
// before the first send, updated once with final counts after the loop.
type BroadcastRecord struct {
	ID              int         `json:"id"`
	Version         string      `json:"version"`
	ReleaseNotes    []string    `json:"release_notes,omitempty"`
	Priority        string      `json:"priority"`
	BroadcastBy     string      `json:"broadcast_by"`
	TotalRecipients int         `json:"total_recipients"`
	SuccessfulSends int         `json:"successful_sends"`
	FailedSends     int         `json:"failed_sends"`
	ErrorDetails    []SendError `json:"error_details,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// BroadcastSummary is what the triggering caller gets back.
type BroadcastSummary struct {
	RecordID        int    `json:"update_id"`
	Version         string `json:"version"`
	TotalRecipients int    `json:"total_recipients"`
	SuccessfulSends int    `json:"successful_sends"`
	FailedSends     int    `json:"failed_sends"`
	ExpiredCleaned  int    `json:"expired_cleaned"`
}
