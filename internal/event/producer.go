package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/skillforge/cart-service/internal/domain"
	pkgkafka "github.com/skillforge/cart-service/pkg/kafka"
)

// Kafka topic constants for cart domain events.
const (
	TopicCartUpdated = "marketplace.cart.updated"
	TopicCartCleared = "marketplace.cart.cleared"
)

// Aggregate type constant.
const AggregateTypeCart = "cart"

// Source identifier for events originating from the cart service.
const SourceCartService = "cart-service"

// CartUpdatedData is the payload for a cart.updated event.
type CartUpdatedData struct {
	OwnerID    string         `json:"owner_id"`
	CartID     string         `json:"cart_id"`
	Items      []CartItemData `json:"items"`
	ItemsCount int            `json:"items_count"`
	TotalPrice int64          `json:"total_price"`
	Currency   string         `json:"currency"`
}

// CartItemData is the item payload within cart events.
type CartItemData struct {
	ItemType string `json:"item_type"`
	ItemID   string `json:"item_id"`
	Title    string `json:"title"`
	Price    int64  `json:"price"`
	Quantity int    `json:"quantity"`
}

// CartClearedData is the payload for a cart.cleared event.
type CartClearedData struct {
	OwnerID string `json:"owner_id"`
	CartID  string `json:"cart_id"`
}

// Producer publishes cart domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the cart service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCartUpdated publishes a cart.updated event.
func (p *Producer) PublishCartUpdated(ctx context.Context, cart *domain.Cart) error {
	items := make([]CartItemData, len(cart.Items))
	for i, item := range cart.Items {
		items[i] = CartItemData{
			ItemType: string(item.ItemType),
			ItemID:   item.ItemID,
			Title:    item.Title,
			Price:    item.Price,
			Quantity: item.Quantity,
		}
	}

	data := CartUpdatedData{
		OwnerID:    cart.OwnerID,
		CartID:     cart.ID,
		Items:      items,
		ItemsCount: cart.ItemsCount,
		TotalPrice: cart.TotalPrice,
		Currency:   cart.Currency,
	}

	event, err := pkgkafka.NewEvent(TopicCartUpdated, cart.OwnerID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.updated event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartUpdated, event); err != nil {
		return fmt.Errorf("publish cart.updated event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.updated event",
		slog.String("owner_id", cart.OwnerID),
		slog.Int("items_count", cart.ItemsCount),
	)

	return nil
}

// PublishCartCleared publishes a cart.cleared event.
func (p *Producer) PublishCartCleared(ctx context.Context, ownerID, cartID string) error {
	data := CartClearedData{OwnerID: ownerID, CartID: cartID}

	event, err := pkgkafka.NewEvent(TopicCartCleared, ownerID, AggregateTypeCart, SourceCartService, data)
	if err != nil {
		return fmt.Errorf("create cart.cleared event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicCartCleared, event); err != nil {
		return fmt.Errorf("publish cart.cleared event: %w", err)
	}

	p.logger.DebugContext(ctx, "published cart.cleared event",
		slog.String("owner_id", ownerID),
	)

	return nil
}
