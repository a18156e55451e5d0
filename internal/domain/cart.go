package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Domain rule violations surfaced by the aggregate. The service layer maps
// these onto transport-level error codes.
var (
	ErrCurrencyMismatch = errors.New("item currency does not match cart currency")
	ErrDuplicateItem    = errors.New("item is already in the cart")
	ErrInvalidItemType  = errors.New("invalid item type")
)

// ItemType discriminates what a cart line refers to. Exactly one catalog
// entity backs each line; there are no dual nullable references.
type ItemType string

const (
	ItemTypeCourse ItemType = "course"
	ItemTypeBundle ItemType = "bundle"
)

// Valid reports whether the item type is one of the known variants.
func (t ItemType) Valid() bool {
	return t == ItemTypeCourse || t == ItemTypeBundle
}

// CartStatus is the lifecycle state of a cart. Only active carts are mutable.
type CartStatus string

const (
	CartStatusActive    CartStatus = "active"
	CartStatusCompleted CartStatus = "completed"
	CartStatusAbandoned CartStatus = "abandoned"
	CartStatusCancelled CartStatus = "cancelled"
)

// CanTransition reports whether the status machine permits moving to the
// target status. Terminal states never return to active; a new active cart
// is created fresh instead.
func (s CartStatus) CanTransition(to CartStatus) bool {
	if s != CartStatusActive {
		return false
	}
	switch to {
	case CartStatusCompleted, CartStatusAbandoned, CartStatusCancelled:
		return true
	default:
		return false
	}
}

// Cart represents one owner's current shopping session. Currency is fixed by
// the first item added and immutable while any item remains. TotalPrice and
// ItemsCount are derived from the items, never hand-edited.
type Cart struct {
	ID         string     `json:"id,omitempty"`
	OwnerID    string     `json:"owner_id"`
	Status     CartStatus `json:"status"`
	Currency   string     `json:"currency,omitempty"`
	TotalPrice int64      `json:"total_price"`
	ItemsCount int        `json:"items_count"`
	Items      []CartItem `json:"items"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
	UpdatedAt  time.Time  `json:"updated_at,omitempty"`
}

// CartItem is one line in a cart. Price, currency, and the display fields are
// snapshotted when the item is added; later catalog changes do not alter them.
type CartItem struct {
	ID           string    `json:"id"`
	CartID       string    `json:"-"`
	ItemType     ItemType  `json:"item_type"`
	ItemID       string    `json:"item_id"`
	Quantity     int       `json:"quantity"`
	Price        int64     `json:"price"`
	Currency     string    `json:"currency"`
	Title        string    `json:"title"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	CreatorID    string    `json:"creator_id,omitempty"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
}

// Subtotal returns the line total in minor currency units.
func (i CartItem) Subtotal() int64 {
	return i.Price * int64(i.Quantity)
}

// NewCart creates a fresh active cart for the owner with the given currency.
func NewCart(ownerID, currency string) *Cart {
	now := time.Now().UTC()
	return &Cart{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		Status:    CartStatusActive,
		Currency:  currency,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// EmptyCart is the read shape returned when the owner has no active cart.
// It is never persisted.
func EmptyCart(ownerID string) *Cart {
	return &Cart{
		OwnerID: ownerID,
		Status:  CartStatusActive,
		Items:   []CartItem{},
	}
}

// IsEmpty reports whether the cart has no line items.
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the line with the given id, or nil if absent.
func (c *Cart) FindItem(itemID string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ID == itemID {
			return &c.Items[i]
		}
	}
	return nil
}

// HasLine reports whether a line for (itemType, itemID) already exists.
// Quantity changes go through update, never through a second add.
func (c *Cart) HasLine(itemType ItemType, itemID string) bool {
	for i := range c.Items {
		if c.Items[i].ItemType == itemType && c.Items[i].ItemID == itemID {
			return true
		}
	}
	return false
}

// GuardCurrency checks that an incoming item's currency can join the cart:
// a cart with items accepts only its established currency. An empty cart
// accepts any currency (the first item establishes it).
func (c *Cart) GuardCurrency(code string) error {
	if len(c.Items) == 0 || c.Currency == "" {
		return nil
	}
	if c.Currency != code {
		return ErrCurrencyMismatch
	}
	return nil
}

// Totals is the derived aggregate state recomputed after every mutation.
type Totals struct {
	ItemsCount int
	TotalPrice int64
}

// CalculateTotals recomputes the item count and monetary total from an item
// set. It must be applied to the full, freshly reloaded item collection so
// stored totals never drift from the lines.
func CalculateTotals(items []CartItem) Totals {
	t := Totals{ItemsCount: len(items)}
	for _, item := range items {
		t.TotalPrice += item.Subtotal()
	}
	return t
}

// ApplyTotals writes recomputed totals onto the cart.
func (c *Cart) ApplyTotals(t Totals) {
	c.ItemsCount = t.ItemsCount
	c.TotalPrice = t.TotalPrice
	c.UpdatedAt = time.Now().UTC()
}
