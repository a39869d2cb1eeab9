package notification

import (
	"context"
	"encoding/json"
	"log"

	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

// CartRefresher reloads the cart from its source of truth
type CartRefresher interface {
	Fetch(ctx context.Context) (cart.Result, error)
	DeviceID() string
}

// Identity is the signed-in user of this device
type Identity interface {
	Authenticated() bool
	UserID() string
}

// Handler refreshes this device's cart when another device of the same user
// changes it
type Handler struct {
	carts    CartRefresher
	identity Identity
}

func NewHandler(carts CartRefresher, identity Identity) *Handler {
	return &Handler{
		carts:    carts,
		identity: identity,
	}
}

// CartSynced is not a trigger: reacting to it would make devices refresh
// each other forever.
var triggers = map[string]bool{
	cart.EventItemAdded:           true,
	cart.EventItemQuantityUpdated: true,
	cart.EventItemRemoved:         true,
	cart.EventCartCleared:         true,
}

// HandleEvent processes an event from Kafka
func (h *Handler) HandleEvent(ctx context.Context, key, value []byte) error {
	var event store.Event
	if err := json.Unmarshal(value, &event); err != nil {
		log.Printf("[Notifier] Failed to unmarshal event: %v", err)
		return err
	}

	if !triggers[event.EventType] {
		return nil
	}
	if event.DeviceID == h.carts.DeviceID() {
		return nil
	}
	if !h.identity.Authenticated() || event.UserID == "" || event.UserID != h.identity.UserID() {
		return nil
	}

	log.Printf("[Notifier] %s from device %s, refreshing cart", event.EventType, event.DeviceID)
	res, err := h.carts.Fetch(ctx)
	if err != nil {
		log.Printf("[Notifier] Cart refresh failed: %v", err)
		return err
	}
	if res.Degraded {
		log.Printf("[Notifier] Server unreachable, cart refreshed from mirror")
	}
	return nil
}
