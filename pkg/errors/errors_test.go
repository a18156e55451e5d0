package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_ErrorString(t *testing.T) {
	e := NotFound("cart", "abc")
	assert.Contains(t, e.Error(), "NOT_FOUND")
	assert.Contains(t, e.Error(), "cart with id abc not found")

	plain := &AppError{Code: "X", Message: "y"}
	assert.Equal(t, "X: y", plain.Error())
}

func TestAppError_Unwrap(t *testing.T) {
	e := Conflict("already there")
	assert.True(t, errors.Is(e, ErrConflict))

	wrapped := fmt.Errorf("outer: %w", e)
	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
}

func TestConstructors_StatusCodes(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NotFound("cart", "1"), http.StatusNotFound},
		{NotFoundWithCode("ITEM_NOT_FOUND", "no such item"), http.StatusNotFound},
		{AlreadyExists("cart", "owner_id", "u1"), http.StatusConflict},
		{Conflict("boom"), http.StatusConflict},
		{ConflictWithCode("DUPLICATE_ITEM", "dup"), http.StatusConflict},
		{InvalidInput("bad"), http.StatusBadRequest},
		{InvalidInputWithCode("CURRENCY_MISMATCH", "mixed currencies"), http.StatusBadRequest},
		{Unauthorized("who are you"), http.StatusUnauthorized},
		{Forbidden("not yours"), http.StatusForbidden},
		{Internal(errors.New("db down")), http.StatusInternalServerError},
		{ServiceUnavailable("catalog unreachable"), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.Status, tt.err.Code)
		assert.Equal(t, tt.status, HTTPStatus(tt.err), tt.err.Code)
	}
}

func TestHTTPStatus_Sentinels(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, HTTPStatus(ErrNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(ErrConflict))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(fmt.Errorf("wrapped: %w", ErrInvalidInput)))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("unknown")))
}

func TestNotFoundWithCode_PreservesCode(t *testing.T) {
	e := NotFoundWithCode("PRICING_UNAVAILABLE", "no price in EUR")
	assert.Equal(t, "PRICING_UNAVAILABLE", e.Code)
	assert.True(t, errors.Is(e, ErrNotFound))
}
