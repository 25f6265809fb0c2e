package usecases

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/quickbite/food-ordering-app/backend/internal/entities"
)

const idempotencyKeyPrefix = "app:idempotency:"

// ReservationStore is the shared-cache surface the guard needs. The
// set-if-absent must be a single atomic primitive: requests for the same
// cart may land on different server instances, so a per-process lock or a
// read-then-write pair cannot deduplicate them.
type ReservationStore interface {
	SetNXJSON(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	GetJSON(ctx context.Context, key string, target any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// CheckoutReservation is the value stored under a checkout fingerprint.
// It starts empty (checkout in flight) and is completed with the created
// order identity, which later duplicates get back instead of a new order.
type CheckoutReservation struct {
	OrderID         uuid.UUID `json:"order_id"`
	RazorpayOrderID string    `json:"razorpay_order_id"`
	Amount          int64     `json:"amount"`
	Currency        string    `json:"currency"`
}

// Pending reports whether the reservation was placed but the checkout that
// holds it has not recorded its result yet.
func (r *CheckoutReservation) Pending() bool {
	return r.OrderID == uuid.Nil
}

// IdempotencyGuard collapses duplicate checkout requests within a TTL
// window so rapid double taps never create two financial intents for the
// same cart.
type IdempotencyGuard struct {
	logger *slog.Logger
	store  ReservationStore

	ttl time.Duration
	// failOpen lets checkout proceed without dedup on a cache error. Off by
	// default: the duplicate-order risk outweighs a blocked checkout.
	failOpen bool
}

func NewIdempotencyGuard(logger *slog.Logger, store ReservationStore, ttl time.Duration, failOpen bool) *IdempotencyGuard {
	return &IdempotencyGuard{logger: logger, store: store, ttl: ttl, failOpen: failOpen}
}

// Fingerprint derives the deduplication key: the client-supplied
// idempotency key when present, otherwise a digest of the user identity
// and the normalized cart (sorted by item id so reordered carts collapse).
func (g *IdempotencyGuard) Fingerprint(userID uuid.UUID, lines []entities.CartLine, clientKey string) string {
	h := sha256.New()

	if clientKey != "" {
		h.Write([]byte("key:" + clientKey))
		h.Write([]byte(userID.String()))
		return hex.EncodeToString(h.Sum(nil))
	}

	normalized := make([]entities.CartLine, len(lines))
	copy(normalized, lines)
	sort.Slice(normalized, func(i, j int) bool {
		return normalized[i].MenuItemID.String() < normalized[j].MenuItemID.String()
	})

	h.Write([]byte(userID.String()))
	for _, line := range normalized {
		fmt.Fprintf(h, "%s:%d;", line.MenuItemID, line.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Reserve atomically claims the fingerprint for this request. The first
// caller gets (true, nil); any caller inside the TTL window gets the prior
// reservation instead. A cache failure either fails closed
// (ErrIdempotencyUnavailable) or, when configured, degrades to no dedup.
func (g *IdempotencyGuard) Reserve(ctx context.Context, fingerprint string) (bool, *CheckoutReservation, error) {
	key := idempotencyKeyPrefix + fingerprint

	created, err := g.store.SetNXJSON(ctx, key, CheckoutReservation{}, g.ttl)
	if err != nil {
		return g.degrade(fmt.Errorf("idempotency reserve failed: %w", err))
	}
	if created {
		return true, nil, nil
	}

	var prior CheckoutReservation
	found, err := g.store.GetJSON(ctx, key, &prior)
	if err != nil {
		return g.degrade(fmt.Errorf("idempotency lookup failed: %w", err))
	}
	if !found {
		// The reservation expired between the two commands. Claim it again;
		// if that races too, the other writer wins and we report a duplicate.
		created, err = g.store.SetNXJSON(ctx, key, CheckoutReservation{}, g.ttl)
		if err != nil {
			return g.degrade(fmt.Errorf("idempotency re-reserve failed: %w", err))
		}
		if created {
			return true, nil, nil
		}
		return false, nil, nil
	}

	return false, &prior, nil
}

// Complete records the created order identity under the fingerprint so
// duplicates within the TTL window replay it.
func (g *IdempotencyGuard) Complete(ctx context.Context, fingerprint string, reservation CheckoutReservation) error {
	key := idempotencyKeyPrefix + fingerprint
	if err := g.store.SetJSON(ctx, key, reservation, g.ttl); err != nil {
		// The order exists; losing the reservation only weakens dedup for
		// the remainder of the window.
		g.logger.Warn("Failed to store idempotency result", "error", err)
		return fmt.Errorf("idempotency complete failed: %w", err)
	}
	return nil
}

// Release drops a pending reservation after a failed checkout so the user
// can retry immediately instead of waiting out the TTL.
func (g *IdempotencyGuard) Release(ctx context.Context, fingerprint string) {
	if err := g.store.Delete(ctx, idempotencyKeyPrefix+fingerprint); err != nil {
		g.logger.Warn("Failed to release idempotency reservation", "error", err)
	}
}

func (g *IdempotencyGuard) degrade(err error) (bool, *CheckoutReservation, error) {
	if g.failOpen {
		g.logger.Warn("Idempotency cache unavailable, proceeding without dedup", "error", err)
		return true, nil, nil
	}
	g.logger.Error("Idempotency cache unavailable, failing checkout", "error", err)
	return false, nil, entities.ErrIdempotencyUnavailable
}
