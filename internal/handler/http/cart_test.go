package http

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skillforge/cart-service/internal/catalog"
	"github.com/skillforge/cart-service/internal/domain"
	"github.com/skillforge/cart-service/internal/event"
	"github.com/skillforge/cart-service/internal/repository"
	"github.com/skillforge/cart-service/internal/service"
	apperrors "github.com/skillforge/cart-service/pkg/errors"
	"github.com/skillforge/cart-service/pkg/health"
	pkgkafka "github.com/skillforge/cart-service/pkg/kafka"
)

// --- Mocks ---

type mockCartStore struct {
	mock.Mock
}

func (m *mockCartStore) FindActiveForUpdate(ctx context.Context, ownerID string) (*domain.Cart, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartStore) Create(ctx context.Context, cart *domain.Cart) error {
	args := m.Called(ctx, cart)
	return args.Error(0)
}

func (m *mockCartStore) InsertItem(ctx context.Context, item *domain.CartItem) error {
	args := m.Called(ctx, item)
	return args.Error(0)
}

func (m *mockCartStore) UpdateItemQuantity(ctx context.Context, cartID, lineID string, quantity int) error {
	args := m.Called(ctx, cartID, lineID, quantity)
	return args.Error(0)
}

func (m *mockCartStore) DeleteItem(ctx context.Context, cartID, lineID string) error {
	args := m.Called(ctx, cartID, lineID)
	return args.Error(0)
}

func (m *mockCartStore) ListItems(ctx context.Context, cartID string) ([]domain.CartItem, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.CartItem), args.Error(1)
}

func (m *mockCartStore) UpdateTotals(ctx context.Context, cartID string, totals domain.Totals) error {
	args := m.Called(ctx, cartID, totals)
	return args.Error(0)
}

func (m *mockCartStore) DeleteCart(ctx context.Context, cartID string) error {
	args := m.Called(ctx, cartID)
	return args.Error(0)
}

type mockCartRepository struct {
	mock.Mock
	store *mockCartStore
}

func newMockCartRepository() *mockCartRepository {
	return &mockCartRepository{store: new(mockCartStore)}
}

func (m *mockCartRepository) GetActive(ctx context.Context, ownerID string) (*domain.Cart, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Cart), args.Error(1)
}

func (m *mockCartRepository) InTx(ctx context.Context, fn func(store repository.CartStore) error) error {
	return fn(m.store)
}

type mockPricingResolver struct {
	mock.Mock
}

func (m *mockPricingResolver) ResolvePricing(ctx context.Context, itemType domain.ItemType, itemID, currency string) (*catalog.PricingInfo, error) {
	args := m.Called(ctx, itemType, itemID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.PricingInfo), args.Error(1)
}

// --- Test Helpers ---

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestRouter(repo *mockCartRepository, pricing *mockPricingResolver) http.Handler {
	logger := testLogger()
	kafkaCfg := pkgkafka.DefaultProducerConfig([]string{"localhost:19092"})
	producer := event.NewProducer(pkgkafka.NewProducer(kafkaCfg, logger), logger)
	svc := service.NewCartService(repo, pricing, producer, logger, service.DefaultLimits())
	presenter := service.NewCartPresenter(nil, logger)
	return NewRouter(svc, presenter, health.NewHandler(), logger, nil)
}

func testCart(ownerID string) *domain.Cart {
	cart := domain.NewCart(ownerID, "USD")
	cart.Items = []domain.CartItem{
		{
			ID:       "22222222-2222-2222-2222-222222222222",
			CartID:   cart.ID,
			ItemType: domain.ItemTypeCourse,
			ItemID:   "course-1",
			Quantity: 1,
			Price:    4999,
			Currency: "USD",
			Title:    "Go for Backend Engineers",
		},
	}
	cart.ApplyTotals(domain.CalculateTotals(cart.Items))
	return cart
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// --- Tests ---

func TestGetCart_RequiresUserHeader(t *testing.T) {
	router := newTestRouter(newMockCartRepository(), new(mockPricingResolver))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGetCart_EmptyShape(t *testing.T) {
	repo := newMockCartRepository()
	router := newTestRouter(repo, new(mockPricingResolver))

	repo.On("GetActive", mock.Anything, "user-1").Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, "user-1", data["owner_id"])
	assert.Equal(t, float64(0), data["items_count"])
	assert.Equal(t, "0.00", data["total_price_formatted"])
}

func TestGetCart_ReturnsDecoratedView(t *testing.T) {
	repo := newMockCartRepository()
	router := newTestRouter(repo, new(mockPricingResolver))

	cart := testCart("user-1")
	repo.On("GetActive", mock.Anything, "user-1").Return(cart, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, "49.99", data["total_price_formatted"])
	items := data["items"].([]any)
	require.Len(t, items, 1)
	assert.Equal(t, "course-1", items[0].(map[string]any)["item_id"])
}

func TestAddItem_Created(t *testing.T) {
	repo := newMockCartRepository()
	pricing := new(mockPricingResolver)
	router := newTestRouter(repo, pricing)

	pricing.On("ResolvePricing", mock.Anything, domain.ItemTypeCourse, "course-1", "USD").
		Return(&catalog.PricingInfo{Price: 4999, Currency: "USD", Title: "Go for Backend Engineers"}, nil)
	repo.store.On("FindActiveForUpdate", mock.Anything, "user-1").Return(nil, apperrors.ErrNotFound)
	repo.store.On("Create", mock.Anything, mock.AnythingOfType("*domain.Cart")).Return(nil)
	repo.store.On("InsertItem", mock.Anything, mock.AnythingOfType("*domain.CartItem")).Return(nil)
	repo.store.On("ListItems", mock.Anything, mock.AnythingOfType("string")).Return([]domain.CartItem{
		{ID: "line-1", ItemType: domain.ItemTypeCourse, ItemID: "course-1", Quantity: 1, Price: 4999, Currency: "USD"},
	}, nil)
	repo.store.On("UpdateTotals", mock.Anything, mock.AnythingOfType("string"), domain.Totals{ItemsCount: 1, TotalPrice: 4999}).Return(nil)

	payload, _ := json.Marshal(AddItemRequest{ItemType: "course", ItemID: "course-1", Currency: "USD", Quantity: 1})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["items_count"])
	assert.Equal(t, float64(4999), data["total_price"])
}

func TestAddItem_DuplicateConflict(t *testing.T) {
	repo := newMockCartRepository()
	pricing := new(mockPricingResolver)
	router := newTestRouter(repo, pricing)

	cart := testCart("user-1")
	pricing.On("ResolvePricing", mock.Anything, domain.ItemTypeCourse, "course-1", "USD").
		Return(&catalog.PricingInfo{Price: 4999, Currency: "USD"}, nil)
	repo.store.On("FindActiveForUpdate", mock.Anything, "user-1").Return(cart, nil)

	payload, _ := json.Marshal(AddItemRequest{ItemType: "course", ItemID: "course-1", Currency: "USD"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	body := decodeEnvelope(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "DUPLICATE_ITEM", errObj["code"])
}

func TestAddItem_CurrencyMismatchBadRequest(t *testing.T) {
	repo := newMockCartRepository()
	pricing := new(mockPricingResolver)
	router := newTestRouter(repo, pricing)

	cart := testCart("user-1")
	pricing.On("ResolvePricing", mock.Anything, domain.ItemTypeBundle, "bundle-1", "EUR").
		Return(&catalog.PricingInfo{Price: 8999, Currency: "EUR"}, nil)
	repo.store.On("FindActiveForUpdate", mock.Anything, "user-1").Return(cart, nil)

	payload, _ := json.Marshal(AddItemRequest{ItemType: "bundle", ItemID: "bundle-1", Currency: "EUR"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "CURRENCY_MISMATCH", errObj["code"])
}

func TestAddItem_ValidationFailure(t *testing.T) {
	router := newTestRouter(newMockCartRepository(), new(mockPricingResolver))

	payload, _ := json.Marshal(AddItemRequest{ItemType: "webinar", ItemID: "x", Currency: "US"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeEnvelope(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errObj["code"])
	fields := errObj["fields"].(map[string]any)
	assert.Contains(t, fields, "item_type")
	assert.Contains(t, fields, "currency")
}

func TestAddItem_RejectsNonJSONContentType(t *testing.T) {
	router := newTestRouter(newMockCartRepository(), new(mockPricingResolver))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cart/items", bytes.NewReader([]byte("item_type=course")))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestUpdateItem_Success(t *testing.T) {
	repo := newMockCartRepository()
	router := newTestRouter(repo, new(mockPricingResolver))

	cart := testCart("user-1")
	lineID := cart.Items[0].ID
	repo.store.On("FindActiveForUpdate", mock.Anything, "user-1").Return(cart, nil)
	repo.store.On("UpdateItemQuantity", mock.Anything, cart.ID, lineID, 3).Return(nil)
	repo.store.On("ListItems", mock.Anything, cart.ID).Return([]domain.CartItem{
		{ID: lineID, ItemType: domain.ItemTypeCourse, ItemID: "course-1", Quantity: 3, Price: 4999, Currency: "USD"},
	}, nil)
	repo.store.On("UpdateTotals", mock.Anything, cart.ID, domain.Totals{ItemsCount: 1, TotalPrice: 14997}).Return(nil)

	payload, _ := json.Marshal(UpdateItemRequest{Quantity: 3})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/"+lineID, bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(14997), data["total_price"])
}

func TestUpdateItem_NoActiveCart(t *testing.T) {
	repo := newMockCartRepository()
	router := newTestRouter(repo, new(mockPricingResolver))

	repo.store.On("FindActiveForUpdate", mock.Anything, "user-1").Return(nil, apperrors.ErrNotFound)

	payload, _ := json.Marshal(UpdateItemRequest{Quantity: 2})
	req := httptest.NewRequest(http.MethodPut, "/api/v1/cart/items/line-1", bytes.NewReader(payload))
	req.Header.Set("X-User-ID", "user-1")
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeEnvelope(t, rec)
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "CART_NOT_FOUND", errObj["code"])
}

func TestRemoveItem_LastLineReturnsEmptyShape(t *testing.T) {
	repo := newMockCartRepository()
	router := newTestRouter(repo, new(mockPricingResolver))

	cart := testCart("user-1")
	lineID := cart.Items[0].ID
	repo.store.On("FindActiveForUpdate", mock.Anything, "user-1").Return(cart, nil)
	repo.store.On("DeleteItem", mock.Anything, cart.ID, lineID).Return(nil)
	repo.store.On("ListItems", mock.Anything, cart.ID).Return([]domain.CartItem{}, nil)
	repo.store.On("DeleteCart", mock.Anything, cart.ID).Return(nil)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart/items/"+lineID, nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(0), data["items_count"])
	assert.Equal(t, "user-1", data["owner_id"])
	assert.NotContains(t, data, "id")
}

func TestClearCart_Acknowledges(t *testing.T) {
	repo := newMockCartRepository()
	router := newTestRouter(repo, new(mockPricingResolver))

	repo.store.On("FindActiveForUpdate", mock.Anything, "user-1").Return(nil, apperrors.ErrNotFound)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/cart", nil)
	req.Header.Set("X-User-ID", "user-1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	data := body["data"].(map[string]any)
	assert.Equal(t, "cleared", data["status"])
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(newMockCartRepository(), new(mockPricingResolver))

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
