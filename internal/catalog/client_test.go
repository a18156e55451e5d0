package catalog

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/cart-service/internal/domain"
	"github.com/skillforge/cart-service/pkg/httpclient"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestClient(t *testing.T, baseURL string, cache *redis.Client) *Client {
	t.Helper()
	httpClient := httpclient.New(httpclient.Config{Timeout: 2 * time.Second, MaxRetries: 0})
	return NewClient(httpClient, baseURL, cache, time.Minute, testLogger())
}

func newTestCache(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

func TestClient_ResolvePricing_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/catalog/courses/course-001/pricing", r.URL.Path)
		assert.Equal(t, "USD", r.URL.Query().Get("currency"))

		json.NewEncoder(w).Encode(PricingInfo{
			Price:        4999,
			Currency:     "USD",
			Title:        "Go for Backend Engineers",
			ThumbnailURL: "https://cdn.example.com/go.png",
			CreatorID:    "creator-001",
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)

	info, err := client.ResolvePricing(context.Background(), domain.ItemTypeCourse, "course-001", "USD")
	require.NoError(t, err)

	assert.Equal(t, int64(4999), info.Price)
	assert.Equal(t, "USD", info.Currency)
	assert.Equal(t, "Go for Backend Engineers", info.Title)
	assert.Equal(t, "creator-001", info.CreatorID)
}

func TestClient_ResolvePricing_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "PRICE_NOT_FOUND", "message": "no price in requested currency"},
		})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)

	_, err := client.ResolvePricing(context.Background(), domain.ItemTypeCourse, "course-404", "USD")
	require.Error(t, err)
	assert.True(t, httpclient.IsClientError(err))
}

func TestClient_Decorate_BatchesAndReportsMissing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/catalog/decorate", r.URL.Path)

		var req decorateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Items, 2)

		json.NewEncoder(w).Encode(decorateResponse{Items: map[string]Decoration{
			"course:course-001": {
				Found:        true,
				Title:        "Go for Backend Engineers (2026 Edition)",
				Published:    true,
				CurrentPrice: 5999,
				Currency:     "USD",
			},
		}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, nil)

	refs := []ItemRef{
		{ItemType: domain.ItemTypeCourse, ItemID: "course-001"},
		{ItemType: domain.ItemTypeBundle, ItemID: "bundle-gone"},
	}

	decos, err := client.Decorate(context.Background(), refs)
	require.NoError(t, err)
	require.Len(t, decos, 2)

	assert.True(t, decos["course:course-001"].Found)
	assert.Equal(t, int64(5999), decos["course:course-001"].CurrentPrice)
	assert.False(t, decos["bundle:bundle-gone"].Found, "vanished items decorate as not found")
}

func TestClient_Decorate_ServesFromCache(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		json.NewEncoder(w).Encode(decorateResponse{Items: map[string]Decoration{
			"course:course-001": {Found: true, Title: "Cached Course", Published: true},
		}})
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, newTestCache(t))

	refs := []ItemRef{{ItemType: domain.ItemTypeCourse, ItemID: "course-001"}}

	first, err := client.Decorate(context.Background(), refs)
	require.NoError(t, err)
	assert.Equal(t, "Cached Course", first["course:course-001"].Title)

	second, err := client.Decorate(context.Background(), refs)
	require.NoError(t, err)
	assert.Equal(t, "Cached Course", second["course:course-001"].Title)

	assert.Equal(t, int32(1), calls.Load(), "second lookup must be a cache hit")
}

func TestClient_Decorate_EmptyInput(t *testing.T) {
	client := newTestClient(t, "http://catalog.invalid", nil)

	decos, err := client.Decorate(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, decos)
}
