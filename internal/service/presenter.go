package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/skillforge/cart-service/internal/catalog"
	"github.com/skillforge/cart-service/internal/domain"
)

// Decorator returns the live catalog state for a set of items.
// catalog.Client satisfies this.
type Decorator interface {
	Decorate(ctx context.Context, refs []catalog.ItemRef) (map[string]catalog.Decoration, error)
}

// CartItemView is one cart line prepared for rendering: the add-time
// snapshot plus a live catalog overlay.
type CartItemView struct {
	ID                string `json:"id"`
	ItemType          string `json:"item_type"`
	ItemID            string `json:"item_id"`
	Quantity          int    `json:"quantity"`
	Price             int64  `json:"price"`
	PriceFormatted    string `json:"price_formatted"`
	Subtotal          int64  `json:"subtotal"`
	SubtotalFormatted string `json:"subtotal_formatted"`
	Currency          string `json:"currency"`
	Title             string `json:"title"`
	ThumbnailURL      string `json:"thumbnail_url,omitempty"`
	CreatorID         string `json:"creator_id,omitempty"`

	// Live overlay. Unavailable means the catalog no longer offers the item;
	// the snapshot fields above still render.
	Unavailable  bool   `json:"unavailable,omitempty"`
	CreatorName  string `json:"creator_name,omitempty"`
	Slug         string `json:"slug,omitempty"`
	CurrentPrice *int64 `json:"current_price,omitempty"`
	PriceChanged bool   `json:"price_changed,omitempty"`
}

// CartView is the cart prepared for rendering.
type CartView struct {
	ID                  string         `json:"id,omitempty"`
	OwnerID             string         `json:"owner_id"`
	Status              string         `json:"status"`
	Currency            string         `json:"currency,omitempty"`
	ItemsCount          int            `json:"items_count"`
	TotalPrice          int64          `json:"total_price"`
	TotalPriceFormatted string         `json:"total_price_formatted"`
	Items               []CartItemView `json:"items"`
}

// CartPresenter turns a cart aggregate into its rendering shape, overlaying
// fresher catalog data where available. A decoration failure never fails the
// read; the snapshot fields alone are a complete rendering.
type CartPresenter struct {
	decorator Decorator
	logger    *slog.Logger
}

// NewCartPresenter creates a presenter. decorator may be nil to render from
// snapshots only.
func NewCartPresenter(decorator Decorator, logger *slog.Logger) *CartPresenter {
	return &CartPresenter{decorator: decorator, logger: logger}
}

// Present builds the rendering view of a cart.
func (p *CartPresenter) Present(ctx context.Context, cart *domain.Cart) *CartView {
	view := &CartView{
		ID:                  cart.ID,
		OwnerID:             cart.OwnerID,
		Status:              string(cart.Status),
		Currency:            cart.Currency,
		ItemsCount:          cart.ItemsCount,
		TotalPrice:          cart.TotalPrice,
		TotalPriceFormatted: formatAmount(cart.TotalPrice, cart.Currency),
		Items:               make([]CartItemView, 0, len(cart.Items)),
	}

	decorations := p.decorate(ctx, cart)

	for _, item := range cart.Items {
		iv := CartItemView{
			ID:                item.ID,
			ItemType:          string(item.ItemType),
			ItemID:            item.ItemID,
			Quantity:          item.Quantity,
			Price:             item.Price,
			PriceFormatted:    formatAmount(item.Price, item.Currency),
			Subtotal:          item.Subtotal(),
			SubtotalFormatted: formatAmount(item.Subtotal(), item.Currency),
			Currency:          item.Currency,
			Title:             item.Title,
			ThumbnailURL:      item.ThumbnailURL,
			CreatorID:         item.CreatorID,
		}

		key := string(item.ItemType) + ":" + item.ItemID
		if deco, ok := decorations[key]; ok {
			applyDecoration(&iv, item, deco)
		}

		view.Items = append(view.Items, iv)
	}

	return view
}

func (p *CartPresenter) decorate(ctx context.Context, cart *domain.Cart) map[string]catalog.Decoration {
	if p.decorator == nil || len(cart.Items) == 0 {
		return nil
	}

	refs := make([]catalog.ItemRef, len(cart.Items))
	for i, item := range cart.Items {
		refs[i] = catalog.ItemRef{ItemType: item.ItemType, ItemID: item.ItemID}
	}

	decorations, err := p.decorator.Decorate(ctx, refs)
	if err != nil {
		p.logger.WarnContext(ctx, "cart decoration unavailable, rendering snapshots only",
			slog.String("owner_id", cart.OwnerID),
			slog.String("error", err.Error()),
		)
		return nil
	}
	return decorations
}

func applyDecoration(iv *CartItemView, item domain.CartItem, deco catalog.Decoration) {
	if !deco.Found || !deco.Published {
		iv.Unavailable = true
		return
	}

	if deco.Title != "" {
		iv.Title = deco.Title
	}
	if deco.ThumbnailURL != "" {
		iv.ThumbnailURL = deco.ThumbnailURL
	}
	iv.CreatorName = deco.CreatorName
	iv.Slug = deco.Slug

	if deco.Currency == item.Currency && deco.CurrentPrice != item.Price {
		current := deco.CurrentPrice
		iv.CurrentPrice = &current
		iv.PriceChanged = true
	}
}

// formatAmount renders minor units as a decimal string using the currency's
// cash rounding scale, e.g. 4999 USD -> "49.99", 500 JPY -> "500".
func formatAmount(minor int64, code string) string {
	scale := 2
	if unit, err := currency.ParseISO(code); err == nil {
		scale, _ = currency.Cash.Rounding(unit)
	}
	return decimal.New(minor, -int32(scale)).StringFixed(int32(scale))
}
