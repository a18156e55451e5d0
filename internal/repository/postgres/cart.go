package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/skillforge/cart-service/internal/domain"
	"github.com/skillforge/cart-service/internal/repository"
	"github.com/skillforge/cart-service/pkg/database"
	apperrors "github.com/skillforge/cart-service/pkg/errors"
)

const pgUniqueViolation = "23505"

// CartRepository implements repository.CartRepository using PostgreSQL.
type CartRepository struct {
	pool database.DBTX
}

// NewCartRepository creates a new PostgreSQL-backed cart repository.
func NewCartRepository(pool database.DBTX) *CartRepository {
	return &CartRepository{pool: pool}
}

// GetActive retrieves the owner's active cart with its items in one round
// trip, without locking.
func (r *CartRepository) GetActive(ctx context.Context, ownerID string) (*domain.Cart, error) {
	query := `
		SELECT id, owner_id, status, currency, total_price, items_count, created_at, updated_at
		FROM carts
		WHERE owner_id = $1 AND status = 'active'`

	ctx, end := database.TraceQuery(ctx, "carts.get_active", query)

	cart, err := scanCart(r.pool.QueryRow(ctx, query, ownerID))
	if err != nil {
		end(err)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("query active cart: %w", err)
	}

	items, err := listItems(ctx, r.pool, cart.ID)
	end(err)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

// InTx runs fn within a single transaction. All CartStore calls made through
// fn share the transaction; it commits only when fn returns nil.
func (r *CartRepository) InTx(ctx context.Context, fn func(store repository.CartStore) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&cartStore{q: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// cartStore executes cart statements against one transaction.
type cartStore struct {
	q database.Querier
}

// FindActiveForUpdate locks the owner's active cart row and loads its items.
func (s *cartStore) FindActiveForUpdate(ctx context.Context, ownerID string) (*domain.Cart, error) {
	query := `
		SELECT id, owner_id, status, currency, total_price, items_count, created_at, updated_at
		FROM carts
		WHERE owner_id = $1 AND status = 'active'
		FOR UPDATE`

	ctx, end := database.TraceQuery(ctx, "carts.lock_active", query)

	cart, err := scanCart(s.q.QueryRow(ctx, query, ownerID))
	if err != nil {
		end(err)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("lock active cart: %w", err)
	}

	items, err := listItems(ctx, s.q, cart.ID)
	end(err)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

// Create inserts a new cart row.
func (s *cartStore) Create(ctx context.Context, cart *domain.Cart) error {
	query := `
		INSERT INTO carts (id, owner_id, status, currency, total_price, items_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.q.Exec(ctx, query,
		cart.ID,
		cart.OwnerID,
		cart.Status,
		cart.Currency,
		cart.TotalPrice,
		cart.ItemsCount,
		cart.CreatedAt,
		cart.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("insert cart: %w", err)
	}

	return nil
}

// InsertItem adds a line to a cart.
func (s *cartStore) InsertItem(ctx context.Context, item *domain.CartItem) error {
	query := `
		INSERT INTO cart_items (id, cart_id, item_type, item_id, quantity, price, currency, title, thumbnail_url, creator_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := s.q.Exec(ctx, query,
		item.ID,
		item.CartID,
		item.ItemType,
		item.ItemID,
		item.Quantity,
		item.Price,
		item.Currency,
		item.Title,
		item.ThumbnailURL,
		item.CreatorID,
		item.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.ErrAlreadyExists
		}
		return fmt.Errorf("insert cart item: %w", err)
	}

	return nil
}

// UpdateItemQuantity sets the quantity of an existing line.
func (s *cartStore) UpdateItemQuantity(ctx context.Context, cartID, lineID string, quantity int) error {
	query := `
		UPDATE cart_items
		SET quantity = $1
		WHERE cart_id = $2 AND id = $3`

	ct, err := s.q.Exec(ctx, query, quantity, cartID, lineID)
	if err != nil {
		return fmt.Errorf("update cart item quantity: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeleteItem removes a line from a cart.
func (s *cartStore) DeleteItem(ctx context.Context, cartID, lineID string) error {
	query := `DELETE FROM cart_items WHERE cart_id = $1 AND id = $2`

	ct, err := s.q.Exec(ctx, query, cartID, lineID)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// ListItems reloads the full item collection of a cart.
func (s *cartStore) ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	return listItems(ctx, s.q, cartID)
}

// UpdateTotals persists recomputed derived totals on the cart row.
func (s *cartStore) UpdateTotals(ctx context.Context, cartID string, totals domain.Totals) error {
	query := `
		UPDATE carts
		SET total_price = $1, items_count = $2, updated_at = $3
		WHERE id = $4`

	ct, err := s.q.Exec(ctx, query, totals.TotalPrice, totals.ItemsCount, time.Now().UTC(), cartID)
	if err != nil {
		return fmt.Errorf("update cart totals: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// DeleteCart removes the cart row; cart_items cascade.
func (s *cartStore) DeleteCart(ctx context.Context, cartID string) error {
	query := `DELETE FROM carts WHERE id = $1`

	ct, err := s.q.Exec(ctx, query, cartID)
	if err != nil {
		return fmt.Errorf("delete cart: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

func scanCart(row pgx.Row) (*domain.Cart, error) {
	var c domain.Cart
	err := row.Scan(
		&c.ID,
		&c.OwnerID,
		&c.Status,
		&c.Currency,
		&c.TotalPrice,
		&c.ItemsCount,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func listItems(ctx context.Context, q database.Querier, cartID string) ([]domain.CartItem, error) {
	query := `
		SELECT id, cart_id, item_type, item_id, quantity, price, currency, title, thumbnail_url, creator_id, created_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY created_at, id`

	rows, err := q.Query(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("query cart items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.CartItem, 0)
	for rows.Next() {
		var item domain.CartItem
		if err := rows.Scan(
			&item.ID,
			&item.CartID,
			&item.ItemType,
			&item.ItemID,
			&item.Quantity,
			&item.Price,
			&item.Currency,
			&item.Title,
			&item.ThumbnailURL,
			&item.CreatorID,
			&item.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cart item rows: %w", err)
	}

	return items, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
