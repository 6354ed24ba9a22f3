// Package billing upgrades caller subscription tiers from Stripe webhook
// events. The core only consumes the result of a payment (an updated
// tier); checkout session creation lives with the front end.
package billing

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/webhook"

	"github.com/victor/decision-advisor/internal/store"
)

// ErrBadSignature indicates the webhook payload failed signature
// verification and must be rejected.
type ErrBadSignature struct {
	Cause error
}

func (e *ErrBadSignature) Error() string {
	return fmt.Sprintf("webhook signature verification failed: %v", e.Cause)
}

// TierStore is the subset of the profile store the webhook needs.
type TierStore interface {
	SetTier(ctx context.Context, id, tier string) error
}

// Webhook verifies and applies Stripe events.
type Webhook struct {
	secret     string
	priceTiers map[string]string // price lookup key -> tier
	store      TierStore
	logger     zerolog.Logger
}

// NewWebhook creates a webhook processor. priceTiers maps Stripe price
// lookup keys to subscription tiers.
func NewWebhook(secret string, priceTiers map[string]string, tierStore TierStore, logger zerolog.Logger) *Webhook {
	return &Webhook{secret: secret, priceTiers: priceTiers, store: tierStore, logger: logger}
}

// Handle verifies the payload signature and applies the event. Tier
// writes are idempotent, so Stripe replays are harmless.
func (w *Webhook) Handle(ctx context.Context, payload []byte, signature string) error {
	event, err := webhook.ConstructEvent(payload, signature, w.secret)
	if err != nil {
		return &ErrBadSignature{Cause: err}
	}

	switch event.Type {
	case "checkout.session.completed":
		return w.applyCheckout(ctx, event)
	case "customer.subscription.deleted":
		return w.applyCancellation(ctx, event)
	default:
		w.logger.Debug().Str("type", event.Type).Msg("ignoring stripe event")
		return nil
	}
}

func (w *Webhook) applyCheckout(ctx context.Context, event stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return fmt.Errorf("failed to parse checkout session: %w", err)
	}

	caller := session.ClientReferenceID
	if caller == "" {
		w.logger.Warn().Str("session", session.ID).Msg("checkout completed without caller reference, skipping")
		return nil
	}

	tier := w.resolveTier(session.Metadata)
	if tier == "" {
		w.logger.Warn().Str("session", session.ID).Interface("metadata", session.Metadata).
			Msg("checkout completed with unknown tier, skipping")
		return nil
	}

	if err := w.store.SetTier(ctx, caller, tier); err != nil {
		return fmt.Errorf("failed to upgrade %s to %s: %w", caller, tier, err)
	}
	w.logger.Info().Str("caller", caller).Str("tier", tier).Msg("tier upgraded from checkout")
	return nil
}

func (w *Webhook) applyCancellation(ctx context.Context, event stripe.Event) error {
	var sub stripe.Subscription
	if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
		return fmt.Errorf("failed to parse subscription: %w", err)
	}

	caller := sub.Metadata["caller_id"]
	if caller == "" {
		w.logger.Warn().Str("subscription", sub.ID).Msg("cancelled subscription without caller reference, skipping")
		return nil
	}

	if err := w.store.SetTier(ctx, caller, store.TierFree); err != nil {
		return fmt.Errorf("failed to downgrade %s: %w", caller, err)
	}
	w.logger.Info().Str("caller", caller).Msg("tier downgraded after cancellation")
	return nil
}

// resolveTier prefers an explicit tier in the session metadata, falling
// back to the configured price lookup key mapping. Unknown values yield
// "" and the event is skipped.
func (w *Webhook) resolveTier(metadata map[string]string) string {
	switch metadata["tier"] {
	case store.TierPro, store.TierMaster:
		return metadata["tier"]
	}
	if key := metadata["price_lookup_key"]; key != "" {
		return w.priceTiers[key]
	}
	return ""
}
