package cart

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/domain/product"
)

const (
	EventItemAdded           = "ItemAddedToCart"
	EventItemQuantityUpdated = "CartItemQuantityUpdated"
	EventItemRemoved         = "ItemRemovedFromCart"
	EventCartCleared         = "CartCleared"
	EventCartSynced          = "CartSynced"
)

// CartKey identifies a cart on the event stream: the user's cart when signed
// in, otherwise the device's anonymous cart.
func CartKey(userID, deviceID string) string {
	if userID != "" {
		return "cart-" + userID
	}
	return "device-" + deviceID
}

type ItemAddedToCart struct {
	ProductID product.ID      `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	AddedAt   time.Time       `json:"added_at"`
}

type CartItemQuantityUpdated struct {
	ProductID product.ID `json:"product_id"`
	Quantity  int        `json:"quantity"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type ItemRemovedFromCart struct {
	ProductID product.ID `json:"product_id"`
	RemovedAt time.Time  `json:"removed_at"`
}

type CartCleared struct {
	ClearedAt time.Time `json:"cleared_at"`
}

type CartSynced struct {
	Count    int             `json:"count"`
	Total    decimal.Decimal `json:"total"`
	SyncedAt time.Time       `json:"synced_at"`
}
