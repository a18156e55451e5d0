package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/skillforge/cart-service/internal/service"
	apperrors "github.com/skillforge/cart-service/pkg/errors"
	"github.com/skillforge/cart-service/pkg/httputil"
	"github.com/skillforge/cart-service/pkg/validator"
)

// CartHandler handles HTTP requests for cart endpoints.
type CartHandler struct {
	service   *service.CartService
	presenter *service.CartPresenter
	logger    *slog.Logger
}

// NewCartHandler creates a new cart HTTP handler.
func NewCartHandler(svc *service.CartService, presenter *service.CartPresenter, logger *slog.Logger) *CartHandler {
	return &CartHandler{
		service:   svc,
		presenter: presenter,
		logger:    logger,
	}
}

// --- Request DTOs ---

// AddItemRequest is the JSON request body for adding an item to the cart.
type AddItemRequest struct {
	ItemType string `json:"item_type" validate:"required,oneof=course bundle"`
	ItemID   string `json:"item_id" validate:"required,max=64"`
	Currency string `json:"currency" validate:"required,len=3"`
	Quantity int    `json:"quantity" validate:"omitempty,gte=1"`
}

// UpdateItemRequest is the JSON request body for changing a line's quantity.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"required,gte=1"`
}

// --- Handlers ---

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	cart, err := h.service.GetCart(r.Context(), ownerID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, h.presenter.Present(r.Context(), cart))
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	var req AddItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.AddItem(r.Context(), ownerID, service.AddItemInput{
		ItemType: req.ItemType,
		ItemID:   req.ItemID,
		Currency: req.Currency,
		Quantity: req.Quantity,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusCreated, h.presenter.Present(r.Context(), cart))
}

// UpdateItem handles PUT /api/v1/cart/items/{itemID}
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	lineID := chi.URLParam(r, "itemID")
	if lineID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("itemID is required"), h.logger)
		return
	}

	var req UpdateItemRequest
	if err := validator.DecodeAndValidate(r, &req); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	cart, err := h.service.UpdateItem(r.Context(), ownerID, lineID, service.UpdateItemInput{Quantity: req.Quantity})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, h.presenter.Present(r.Context(), cart))
}

// RemoveItem handles DELETE /api/v1/cart/items/{itemID}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	lineID := chi.URLParam(r, "itemID")
	if lineID == "" {
		httputil.WriteError(w, r, apperrors.InvalidInput("itemID is required"), h.logger)
		return
	}

	cart, err := h.service.RemoveItem(r.Context(), ownerID, lineID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, h.presenter.Present(r.Context(), cart))
}

// ClearCart handles DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := userIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, r, apperrors.Unauthorized("authentication required"), h.logger)
		return
	}

	if err := h.service.ClearCart(r.Context(), ownerID); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteData(w, http.StatusOK, map[string]string{"status": "cleared"})
}
