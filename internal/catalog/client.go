package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/skillforge/cart-service/internal/domain"
	"github.com/skillforge/cart-service/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// PricingInfo is the catalog's answer for one purchasable item in one
// currency. The cart snapshots these values when the item is added.
type PricingInfo struct {
	Price        int64  `json:"price"`
	Currency     string `json:"currency"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	CreatorID    string `json:"creator_id"`
}

// Decoration is the live catalog state for one item, overlaid on snapshots
// at read time. Found=false means the catalog no longer knows the item.
type Decoration struct {
	Found        bool   `json:"found"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnail_url"`
	CreatorName  string `json:"creator_name"`
	Slug         string `json:"slug"`
	Published    bool   `json:"published"`
	CurrentPrice int64  `json:"current_price"`
	Currency     string `json:"currency"`
}

// Client talks to the catalog service for pricing resolution and item
// decoration. Decorations are cached in Redis with a short TTL; pricing is
// never cached because the snapshot must reflect the price at add time.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	cache      *redis.Client
	cacheTTL   time.Duration
	logger     *slog.Logger
}

// NewClient creates a catalog client. cache may be nil to disable the
// decoration cache.
func NewClient(httpClient HTTPDoer, baseURL string, cache *redis.Client, cacheTTL time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cache:      cache,
		cacheTTL:   cacheTTL,
		logger:     logger,
	}
}

// ResolvePricing fetches the current price of an item in the requested
// currency. A 404 from the catalog is returned as a not-found error carrying
// the downstream code, so callers can distinguish an unknown item from a
// known item with no price in that currency.
func (c *Client) ResolvePricing(ctx context.Context, itemType domain.ItemType, itemID, currency string) (*PricingInfo, error) {
	url := fmt.Sprintf("%s/api/v1/catalog/%ss/%s/pricing?currency=%s", c.baseURL, itemType, itemID, currency)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create pricing request: %w", err)
	}

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}

	var info PricingInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode pricing response: %w", err)
	}

	return &info, nil
}

// ItemRef identifies one catalog entity for batch decoration.
type ItemRef struct {
	ItemType domain.ItemType `json:"item_type"`
	ItemID   string          `json:"item_id"`
}

// Key returns the map key used for decoration lookups.
func (r ItemRef) Key() string {
	return string(r.ItemType) + ":" + r.ItemID
}

type decorateRequest struct {
	Items []ItemRef `json:"items"`
}

type decorateResponse struct {
	Items map[string]Decoration `json:"items"`
}

// Decorate returns the live catalog state for the given items, keyed by
// ItemRef.Key(). Cached entries are served from Redis; only misses hit the
// catalog service. Items the catalog no longer knows are present in the map
// with Found=false.
func (c *Client) Decorate(ctx context.Context, refs []ItemRef) (map[string]Decoration, error) {
	result := make(map[string]Decoration, len(refs))
	if len(refs) == 0 {
		return result, nil
	}

	misses := c.loadCached(ctx, refs, result)
	if len(misses) == 0 {
		return result, nil
	}

	fetched, err := c.fetchDecorations(ctx, misses)
	if err != nil {
		return nil, err
	}

	for _, ref := range misses {
		deco, ok := fetched[ref.Key()]
		if !ok {
			deco = Decoration{Found: false}
		}
		result[ref.Key()] = deco
		c.storeCached(ctx, ref, deco)
	}

	return result, nil
}

func (c *Client) loadCached(ctx context.Context, refs []ItemRef, into map[string]Decoration) []ItemRef {
	if c.cache == nil {
		return refs
	}

	var misses []ItemRef
	for _, ref := range refs {
		raw, err := c.cache.Get(ctx, c.cacheKey(ref)).Bytes()
		if err != nil {
			misses = append(misses, ref)
			continue
		}
		var deco Decoration
		if err := json.Unmarshal(raw, &deco); err != nil {
			misses = append(misses, ref)
			continue
		}
		into[ref.Key()] = deco
	}
	return misses
}

// storeCached is best-effort; a failed write only costs a future cache miss.
func (c *Client) storeCached(ctx context.Context, ref ItemRef, deco Decoration) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(deco)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, c.cacheKey(ref), raw, c.cacheTTL).Err(); err != nil {
		c.logger.WarnContext(ctx, "decoration cache write failed",
			slog.String("key", ref.Key()),
			slog.String("error", err.Error()),
		)
	}
}

func (c *Client) cacheKey(ref ItemRef) string {
	return "catalog:decoration:" + ref.Key()
}

func (c *Client) fetchDecorations(ctx context.Context, refs []ItemRef) (map[string]Decoration, error) {
	body, err := json.Marshal(decorateRequest{Items: refs})
	if err != nil {
		return nil, fmt.Errorf("marshal decorate request: %w", err)
	}

	url := c.baseURL + "/api/v1/catalog/decorate"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create decorate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("call catalog service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpclient.ParseResponseError(resp, "catalog")
	}

	var decResp decorateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decResp); err != nil {
		return nil, fmt.Errorf("decode decorate response: %w", err)
	}

	return decResp.Items, nil
}
