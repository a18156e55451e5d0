package repository

import (
	"context"

	"github.com/skillforge/cart-service/internal/domain"
)

// CartStore defines the persistence operations available inside a single
// cart transaction. Mutations to one cart are serialized by locking the
// cart row before any change.
type CartStore interface {
	// FindActiveForUpdate loads the owner's active cart with its items and
	// locks the cart row for the rest of the transaction. Returns
	// apperrors.ErrNotFound when the owner has no active cart.
	FindActiveForUpdate(ctx context.Context, ownerID string) (*domain.Cart, error)

	// Create inserts a new cart row. A concurrent insert for the same owner
	// fails the active-cart uniqueness constraint.
	Create(ctx context.Context, cart *domain.Cart) error

	// InsertItem adds a line to a cart. Inserting a second line for the same
	// (item_type, item_id) fails the line uniqueness constraint.
	InsertItem(ctx context.Context, item *domain.CartItem) error

	// UpdateItemQuantity sets the quantity of an existing line.
	UpdateItemQuantity(ctx context.Context, cartID, lineID string, quantity int) error

	// DeleteItem removes a line from a cart.
	DeleteItem(ctx context.Context, cartID, lineID string) error

	// ListItems reloads the full item collection of a cart.
	ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error)

	// UpdateTotals persists recomputed derived totals on the cart row.
	UpdateTotals(ctx context.Context, cartID string, totals domain.Totals) error

	// DeleteCart removes the cart row and, via cascade, its items.
	DeleteCart(ctx context.Context, cartID string) error
}

// CartRepository is the entry point for cart persistence.
type CartRepository interface {
	// GetActive loads the owner's active cart with its items without
	// locking. Returns apperrors.ErrNotFound when absent.
	GetActive(ctx context.Context, ownerID string) (*domain.Cart, error)

	// InTx runs fn inside a single database transaction. The transaction is
	// committed when fn returns nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(store CartStore) error) error
}
