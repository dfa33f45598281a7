package payments

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

type replayStore interface {
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	WebhookEventKey(provider, eventID string) string
}

// WebhookGuard marks provider event ids in Redis so replayed deliveries are
// acknowledged without being applied twice.
type WebhookGuard struct {
	store replayStore
	ttl   time.Duration
}

func NewWebhookGuard(store replayStore, ttl time.Duration) (*WebhookGuard, error) {
	if store == nil {
		return nil, errors.New("replay store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &WebhookGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark reports whether the event was already seen and marks it otherwise.
func (g *WebhookGuard) CheckAndMark(ctx context.Context, provider, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.store.WebhookEventKey(provider, eventID), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set webhook replay key: %w", err)
	}
	return !set, nil
}

// Delete clears the mark so the provider's retry is processed again.
func (g *WebhookGuard) Delete(ctx context.Context, provider, eventID string) error {
	if eventID == "" {
		return errors.New("event id is required")
	}
	return g.store.Del(ctx, g.store.WebhookEventKey(provider, eventID))
}

// BodyEventID derives a stable event id from the raw body when the provider
// sends no event id header.
func BodyEventID(body []byte) string {
	sum := sha256.Sum256(body)
	return "body_" + hex.EncodeToString(sum[:])
}
