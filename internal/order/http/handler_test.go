package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/k-code-yt/order-saga/internal/order/application"
	"github.com/k-code-yt/order-saga/internal/order/infra/memory"
	"github.com/k-code-yt/order-saga/pkg/saga"
)

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, *saga.OrderEvent) error { return nil }

func testRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := application.NewService(memory.NewStore(), nopPublisher{})
	NewHandler(svc).Register(r)
	return r
}

func createBody(customerID uuid.UUID) []byte {
	body := fmt.Sprintf(`{
		"customerId": %q,
		"items": [
			{"productId": %q, "productName": "MacBook Pro 14", "quantity": 2, "price": "1999.00"}
		]
	}`, customerID, uuid.New())
	return []byte(body)
}

func TestCreateOrderEndpoint(t *testing.T) {
	r := testRouter()
	customerID := uuid.New()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(createBody(customerID)))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "PLACED", resp["status"])
	assert.Equal(t, "3998.00", resp["totalAmount"])
	assert.Equal(t, customerID.String(), resp["customerId"])
	assert.NotEmpty(t, resp["id"])
}

func TestCreateOrderEndpointRejectsEmptyItems(t *testing.T) {
	r := testRouter()

	body := fmt.Sprintf(`{"customerId": %q, "items": []}`, uuid.New())
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader([]byte(body)))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)

	var p problem
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, http.StatusBadRequest, p.Status)
	assert.NotEmpty(t, p.Detail)
	assert.False(t, p.Timestamp.IsZero())
}

func TestGetOrderEndpoint(t *testing.T) {
	r := testRouter()
	customerID := uuid.New()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(createBody(customerID)))
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/orders/"+created.ID, nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestGetOrderEndpointNotFound(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/"+uuid.NewString(), nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetOrderEndpointBadID(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders/not-a-uuid", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListOrdersEndpoint(t *testing.T) {
	r := testRouter()
	customerID := uuid.New()

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewReader(createBody(customerID)))
		r.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders?customerId="+customerID.String(), nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var orders []json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &orders))
	assert.Len(t, orders, 2)
}

func TestListOrdersEndpointRequiresCustomerID(t *testing.T) {
	r := testRouter()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
