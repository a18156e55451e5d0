package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/skillforge/cart-service/internal/catalog"
	"github.com/skillforge/cart-service/internal/domain"
	"github.com/skillforge/cart-service/internal/event"
	"github.com/skillforge/cart-service/internal/repository"
	apperrors "github.com/skillforge/cart-service/pkg/errors"
)

// Error codes surfaced to API clients.
const (
	CodeCartNotFound       = "CART_NOT_FOUND"
	CodeItemNotFound       = "ITEM_NOT_FOUND"
	CodeDuplicateItem      = "DUPLICATE_ITEM"
	CodeCurrencyMismatch   = "CURRENCY_MISMATCH"
	CodePricingUnavailable = "PRICING_UNAVAILABLE"
)

// Downstream catalog codes that mean "the item exists but has no price in
// the requested currency".
const catalogCodePriceNotFound = "PRICE_NOT_FOUND"

// Limits bounds cart growth to prevent abuse.
type Limits struct {
	MaxQuantityPerItem int
	MaxItemsPerCart    int
}

// DefaultLimits returns the production defaults.
func DefaultLimits() Limits {
	return Limits{MaxQuantityPerItem: 100, MaxItemsPerCart: 50}
}

// PricingResolver answers what an item costs right now in a given currency.
// catalog.Client satisfies this.
type PricingResolver interface {
	ResolvePricing(ctx context.Context, itemType domain.ItemType, itemID, currency string) (*catalog.PricingInfo, error)
}

// AddItemInput holds the parameters for adding an item to the cart.
type AddItemInput struct {
	ItemType string `json:"item_type" validate:"required,oneof=course bundle"`
	ItemID   string `json:"item_id" validate:"required"`
	Currency string `json:"currency" validate:"required,len=3"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=1"`
}

// UpdateItemInput holds the parameters for updating a line quantity.
type UpdateItemInput struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// CartService implements the business logic for cart operations. Every
// mutation runs in a single database transaction that locks the cart row,
// so concurrent mutations to one cart serialize at the database.
type CartService struct {
	repo     repository.CartRepository
	pricing  PricingResolver
	producer *event.Producer
	logger   *slog.Logger
	limits   Limits
}

// NewCartService creates a new cart service.
func NewCartService(repo repository.CartRepository, pricing PricingResolver, producer *event.Producer, logger *slog.Logger, limits Limits) *CartService {
	return &CartService{
		repo:     repo,
		pricing:  pricing,
		producer: producer,
		logger:   logger,
		limits:   limits,
	}
}

// GetCart retrieves the owner's active cart. If no cart exists, returns the
// empty-cart shape; this is never an error.
func (s *CartService) GetCart(ctx context.Context, ownerID string) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, apperrors.InvalidInput("owner id is required")
	}

	cart, err := s.repo.GetActive(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return domain.EmptyCart(ownerID), nil
		}
		return nil, fmt.Errorf("get cart: %w", err)
	}

	return cart, nil
}

// AddItem adds a catalog item to the owner's cart, creating the cart if it
// does not exist. Price and display fields are snapshotted from the catalog
// at this moment. Adding an item already in the cart is a conflict; quantity
// changes go through UpdateItem.
//
// Pricing is resolved before the cart transaction, so an unresolvable item
// reports ITEM_NOT_FOUND or PRICING_UNAVAILABLE even when the request would
// also fail the currency or duplicate checks.
func (s *CartService) AddItem(ctx context.Context, ownerID string, input AddItemInput) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, apperrors.InvalidInput("owner id is required")
	}

	itemType := domain.ItemType(input.ItemType)
	if !itemType.Valid() {
		return nil, apperrors.InvalidInput("item type must be course or bundle")
	}
	if input.ItemID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}
	quantity := input.Quantity
	if quantity == 0 {
		quantity = 1
	}
	if quantity < 1 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}
	if quantity > s.limits.MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", s.limits.MaxQuantityPerItem))
	}

	currency, err := domain.NormalizeCurrency(input.Currency)
	if err != nil {
		return nil, apperrors.InvalidInput("currency must be a valid ISO 4217 code")
	}

	// Resolve pricing before touching the cart, so a failed resolution never
	// creates a cart row.
	info, err := s.resolvePricing(ctx, itemType, input.ItemID, currency)
	if err != nil {
		return nil, err
	}

	var cart *domain.Cart
	err = s.repo.InTx(ctx, func(store repository.CartStore) error {
		var txErr error
		cart, txErr = s.loadOrCreateCart(ctx, store, ownerID, currency)
		if txErr != nil {
			return txErr
		}

		if err := cart.GuardCurrency(currency); err != nil {
			return apperrors.InvalidInputWithCode(CodeCurrencyMismatch,
				fmt.Sprintf("cart currency is %s, cannot add %s item", cart.Currency, currency))
		}
		if cart.HasLine(itemType, input.ItemID) {
			return apperrors.ConflictWithCode(CodeDuplicateItem,
				"item is already in the cart, update its quantity instead")
		}
		if len(cart.Items) >= s.limits.MaxItemsPerCart {
			return apperrors.InvalidInput(fmt.Sprintf("cart must not contain more than %d items", s.limits.MaxItemsPerCart))
		}

		item := &domain.CartItem{
			ID:           uuid.New().String(),
			CartID:       cart.ID,
			ItemType:     itemType,
			ItemID:       input.ItemID,
			Quantity:     quantity,
			Price:        info.Price,
			Currency:     currency,
			Title:        info.Title,
			ThumbnailURL: info.ThumbnailURL,
			CreatorID:    info.CreatorID,
			CreatedAt:    time.Now().UTC(),
		}

		if err := store.InsertItem(ctx, item); err != nil {
			if errors.Is(err, apperrors.ErrAlreadyExists) {
				return apperrors.ConflictWithCode(CodeDuplicateItem,
					"item is already in the cart, update its quantity instead")
			}
			return err
		}

		return s.refreshTotals(ctx, store, cart)
	})
	if err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("owner_id", ownerID),
		slog.String("item_type", string(itemType)),
		slog.String("item_id", input.ItemID),
		slog.Int("quantity", quantity),
	)

	return cart, nil
}

// UpdateItem changes the quantity of an existing line. Quantity is the only
// mutable field; price and currency keep their add-time snapshot.
func (s *CartService) UpdateItem(ctx context.Context, ownerID, lineID string, input UpdateItemInput) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, apperrors.InvalidInput("owner id is required")
	}
	if lineID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}
	if input.Quantity < 1 {
		return nil, apperrors.InvalidInput("quantity must be a positive integer")
	}
	if input.Quantity > s.limits.MaxQuantityPerItem {
		return nil, apperrors.InvalidInput(fmt.Sprintf("quantity must not exceed %d", s.limits.MaxQuantityPerItem))
	}

	var cart *domain.Cart
	err := s.repo.InTx(ctx, func(store repository.CartStore) error {
		var err error
		cart, err = s.loadCart(ctx, store, ownerID)
		if err != nil {
			return err
		}

		if cart.FindItem(lineID) == nil {
			return apperrors.NotFoundWithCode(CodeItemNotFound, "item is not in the cart")
		}

		if err := store.UpdateItemQuantity(ctx, cart.ID, lineID, input.Quantity); err != nil {
			return err
		}

		return s.refreshTotals(ctx, store, cart)
	})
	if err != nil {
		return nil, err
	}

	s.publishUpdated(ctx, cart)

	s.logger.InfoContext(ctx, "cart item quantity updated",
		slog.String("owner_id", ownerID),
		slog.String("line_id", lineID),
		slog.Int("quantity", input.Quantity),
	)

	return cart, nil
}

// RemoveItem deletes a line from the cart. Removing the last line deletes
// the cart itself and returns the empty-cart shape.
func (s *CartService) RemoveItem(ctx context.Context, ownerID, lineID string) (*domain.Cart, error) {
	if ownerID == "" {
		return nil, apperrors.InvalidInput("owner id is required")
	}
	if lineID == "" {
		return nil, apperrors.InvalidInput("item id is required")
	}

	var (
		cart          *domain.Cart
		deletedCartID string
	)
	err := s.repo.InTx(ctx, func(store repository.CartStore) error {
		var err error
		cart, err = s.loadCart(ctx, store, ownerID)
		if err != nil {
			return err
		}

		if cart.FindItem(lineID) == nil {
			return apperrors.NotFoundWithCode(CodeItemNotFound, "item is not in the cart")
		}

		if err := store.DeleteItem(ctx, cart.ID, lineID); err != nil {
			return err
		}

		items, err := store.ListItems(ctx, cart.ID)
		if err != nil {
			return err
		}

		if len(items) == 0 {
			if err := store.DeleteCart(ctx, cart.ID); err != nil {
				return err
			}
			deletedCartID = cart.ID
			cart = domain.EmptyCart(ownerID)
			return nil
		}

		cart.Items = items
		totals := domain.CalculateTotals(items)
		cart.ApplyTotals(totals)
		return store.UpdateTotals(ctx, cart.ID, totals)
	})
	if err != nil {
		return nil, err
	}

	if deletedCartID != "" {
		if err := s.producer.PublishCartCleared(ctx, ownerID, deletedCartID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("owner_id", ownerID),
				slog.String("error", err.Error()),
			)
		}
	} else {
		s.publishUpdated(ctx, cart)
	}

	s.logger.InfoContext(ctx, "item removed from cart",
		slog.String("owner_id", ownerID),
		slog.String("line_id", lineID),
	)

	return cart, nil
}

// ClearCart deletes the owner's active cart and all its lines. Clearing an
// owner with no active cart is a no-op, so the operation is idempotent.
func (s *CartService) ClearCart(ctx context.Context, ownerID string) error {
	if ownerID == "" {
		return apperrors.InvalidInput("owner id is required")
	}

	var cleared *domain.Cart
	err := s.repo.InTx(ctx, func(store repository.CartStore) error {
		cart, err := store.FindActiveForUpdate(ctx, ownerID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("load cart for clear: %w", err)
		}

		if err := store.DeleteCart(ctx, cart.ID); err != nil {
			return err
		}
		cleared = cart
		return nil
	})
	if err != nil {
		return err
	}

	if cleared != nil {
		if err := s.producer.PublishCartCleared(ctx, ownerID, cleared.ID); err != nil {
			s.logger.ErrorContext(ctx, "failed to publish cart.cleared event",
				slog.String("owner_id", ownerID),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.InfoContext(ctx, "cart cleared",
		slog.String("owner_id", ownerID),
	)

	return nil
}

// resolvePricing translates catalog answers into the cart error taxonomy:
// unknown item and missing price are both not-found, under distinct codes.
func (s *CartService) resolvePricing(ctx context.Context, itemType domain.ItemType, itemID, currency string) (*catalog.PricingInfo, error) {
	info, err := s.pricing.ResolvePricing(ctx, itemType, itemID, currency)
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) && errors.Is(appErr, apperrors.ErrNotFound) {
			if appErr.Code == catalogCodePriceNotFound {
				return nil, apperrors.NotFoundWithCode(CodePricingUnavailable,
					fmt.Sprintf("no price available in %s for this item", currency))
			}
			return nil, apperrors.NotFoundWithCode(CodeItemNotFound, "item does not exist in the catalog")
		}
		return nil, fmt.Errorf("resolve pricing: %w", err)
	}
	return info, nil
}

// loadCart locks the owner's active cart for a mutation that requires one.
func (s *CartService) loadCart(ctx context.Context, store repository.CartStore, ownerID string) (*domain.Cart, error) {
	cart, err := store.FindActiveForUpdate(ctx, ownerID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithCode(CodeCartNotFound, "no active cart for this owner")
		}
		return nil, fmt.Errorf("load cart: %w", err)
	}
	return cart, nil
}

// loadOrCreateCart locks the owner's active cart, creating one with the
// given currency when none exists. A concurrent first-add racing the create
// loses on the active-cart uniqueness constraint and surfaces as a conflict.
func (s *CartService) loadOrCreateCart(ctx context.Context, store repository.CartStore, ownerID, currency string) (*domain.Cart, error) {
	cart, err := store.FindActiveForUpdate(ctx, ownerID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("load cart: %w", err)
	}

	cart = domain.NewCart(ownerID, currency)
	if err := store.Create(ctx, cart); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, apperrors.Conflict("cart was created concurrently, please retry")
		}
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

// refreshTotals reloads the full item set and persists recomputed totals,
// keeping the stored aggregates exact after every mutation.
func (s *CartService) refreshTotals(ctx context.Context, store repository.CartStore, cart *domain.Cart) error {
	items, err := store.ListItems(ctx, cart.ID)
	if err != nil {
		return err
	}

	cart.Items = items
	totals := domain.CalculateTotals(items)
	cart.ApplyTotals(totals)

	return store.UpdateTotals(ctx, cart.ID, totals)
}

func (s *CartService) publishUpdated(ctx context.Context, cart *domain.Cart) {
	if cart == nil {
		return
	}
	if err := s.producer.PublishCartUpdated(ctx, cart); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish cart.updated event",
			slog.String("owner_id", cart.OwnerID),
			slog.String("error", err.Error()),
		)
	}
}
