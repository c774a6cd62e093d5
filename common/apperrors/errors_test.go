package apperrors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("placing order: %w", InsufficientStock("p1", "Keyboard", 1, 3))

	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.False(t, errors.Is(err, ErrProductNotFound))
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("write conflict")
	err := TransientStorage(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "write conflict")
}

func TestFrom_UnknownErrorIsInternal(t *testing.T) {
	appErr := From(errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, appErr.Code)
	assert.Equal(t, KindInternal, appErr.Kind)
}

func TestErrorMiddleware_RendersLastError(t *testing.T) {
	r := gin.New()
	r.Use(ErrorMiddleware())
	r.GET("/orders/:id", func(c *gin.Context) {
		_ = c.Error(OrderNotFound(c.Param("id")))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/orders/o-1", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "order_not_found", body["code"])
	assert.Equal(t, "Order not found", body["error"])
	assert.Equal(t, "o-1", body["details"].(map[string]any)["orderId"])
}

func TestValidation_SingleFieldMessage(t *testing.T) {
	err := Validation([]FieldError{{Field: "items", Message: "must not be empty"}})
	assert.Equal(t, "Validation failed: items must not be empty", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.Code)
}
