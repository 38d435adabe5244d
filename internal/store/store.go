package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"update-broadcast-go/internal/models"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrDuplicateVersion means a broadcast record for this version already
	// exists; the version is the idempotency gate.
	ErrDuplicateVersion = errors.New("broadcast version already exists")

	ErrNotFound = errors.New("not found")
)

// SubscriptionStore handles push subscription rows. This subsystem only
// ever flips is_active to false; subscriptions are never deleted here.
type SubscriptionStore interface {
	SavePushSubscription(ctx context.Context, userID int, tenantID, endpoint, p256dh, auth string) error
	FindActiveSubscriptions(ctx context.Context, tenantIDs []string) ([]models.PushSubscription, error)
	DeactivateSubscriptions(ctx context.Context, ids []int) error
}

// BroadcastStore handles app_updates rows: at most one insert and one
// update per broadcast.
type BroadcastStore interface {
	FindBroadcastRecordByVersion(ctx context.Context, version string) (*models.BroadcastRecord, error)
	InsertBroadcastRecord(ctx context.Context, rec *models.BroadcastRecord) error
	UpdateBroadcastRecord(ctx context.Context, rec *models.BroadcastRecord) error
}

// UserStore handles the accounts behind session login and API tokens.
type UserStore interface {
	CreateUser(ctx context.Context, username, password, role string) (models.User, error)
	GetUserByUsername(ctx context.Context, username string) (models.User, error)
	GetUserByToken(ctx context.Context, token string) (models.User, error)
	GetUsers(ctx context.Context) ([]models.User, error)
}

// EventPublisher fans broadcast lifecycle events out to dashboards.
type EventPublisher interface {
	PublishBroadcastEvent(ctx context.Context, event []byte) error
}

const (
	broadcastChannel   = "broadcast_events"
	recentBroadcastKey = "broadcasts:recent"
	recentBroadcastMax = 100
	recentBroadcastTTL = 30 * 24 * time.Hour
)

// RedisStore publishes broadcast events and keeps a bounded recent list.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(opts *redis.Options) *RedisStore {
	return &RedisStore{client: redis.NewClient(opts)}
}

func (s *RedisStore) PublishBroadcastEvent(ctx context.Context, event []byte) error {
	pipe := s.client.Pipeline()
	pipe.LPush(ctx, recentBroadcastKey, event)
	pipe.LTrim(ctx, recentBroadcastKey, 0, recentBroadcastMax-1)
	pipe.Expire(ctx, recentBroadcastKey, recentBroadcastTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return s.client.Publish(ctx, broadcastChannel, event).Err()
}

// RecentBroadcastEvents returns the newest-first bounded event history.
func (s *RedisStore) RecentBroadcastEvents(ctx context.Context) ([]json.RawMessage, error) {
	vals, err := s.client.LRange(ctx, recentBroadcastKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("reading recent broadcasts: %w", err)
	}
	events := make([]json.RawMessage, 0, len(vals))
	for _, v := range vals {
		events = append(events, json.RawMessage(v))
	}
	return events, nil
}

// Subscribe returns the pub/sub handle for the broadcast event channel.
func (s *RedisStore) Subscribe(ctx context.Context) *redis.PubSub {
	return s.client.Subscribe(ctx, broadcastChannel)
}
