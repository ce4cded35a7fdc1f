// Package http exposes the order REST API.
package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/k-code-yt/order-saga/internal/order/application"
	"github.com/k-code-yt/order-saga/internal/order/domain"
)

// problem is the error body shape, same for every failure response.
type problem struct {
	Title     string    `json:"title"`
	Status    int       `json:"status"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}

func abortProblem(c *gin.Context, status int, title, detail string) {
	c.AbortWithStatusJSON(status, problem{
		Title:     title,
		Status:    status,
		Detail:    detail,
		Timestamp: time.Now().UTC(),
	})
}

type orderItemResponse struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

type orderResponse struct {
	ID            uuid.UUID           `json:"id"`
	CustomerID    uuid.UUID           `json:"customerId"`
	Items         []orderItemResponse `json:"items"`
	TotalAmount   decimal.Decimal     `json:"totalAmount"`
	Status        string              `json:"status"`
	FailureReason string              `json:"failureReason,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

func toResponse(o *domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	return orderResponse{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		Items:         items,
		TotalAmount:   o.TotalAmount,
		Status:        string(o.Status),
		FailureReason: o.FailureReason,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

type Handler struct {
	svc *application.Service
}

func NewHandler(svc *application.Service) *Handler {
	return &Handler{svc: svc}
}

// Register mounts the order routes on the router.
func (h *Handler) Register(r *gin.Engine) {
	api := r.Group("/api/orders")
	api.POST("", h.createOrder)
	api.GET("", h.listOrders)
	api.GET("/:id", h.getOrder)
}

func (h *Handler) createOrder(c *gin.Context) {
	var req application.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortProblem(c, http.StatusBadRequest, "Invalid request body", err.Error())
		return
	}
	if req.CustomerID == uuid.Nil {
		abortProblem(c, http.StatusBadRequest, "Invalid request body", "customerId is required")
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoItems),
			errors.Is(err, domain.ErrInvalidQuantity),
			errors.Is(err, domain.ErrInvalidPrice):
			abortProblem(c, http.StatusBadRequest, "Invalid order", err.Error())
		default:
			logrus.Errorf("create order: %v", err)
			abortProblem(c, http.StatusInternalServerError, "Internal error", "failed to create order")
		}
		return
	}

	c.JSON(http.StatusCreated, toResponse(order))
}

func (h *Handler) getOrder(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortProblem(c, http.StatusBadRequest, "Invalid order id", err.Error())
		return
	}

	order, err := h.svc.GetOrder(c.Request.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		abortProblem(c, http.StatusNotFound, "Order not found", "no order with id "+id.String())
		return
	}
	if err != nil {
		logrus.Errorf("get order %s: %v", id, err)
		abortProblem(c, http.StatusInternalServerError, "Internal error", "failed to load order")
		return
	}

	c.JSON(http.StatusOK, toResponse(order))
}

func (h *Handler) listOrders(c *gin.Context) {
	raw := c.Query("customerId")
	if raw == "" {
		abortProblem(c, http.StatusBadRequest, "Missing parameter", "customerId query parameter is required")
		return
	}
	customerID, err := uuid.Parse(raw)
	if err != nil {
		abortProblem(c, http.StatusBadRequest, "Invalid customer id", err.Error())
		return
	}

	orders, err := h.svc.OrdersByCustomer(c.Request.Context(), customerID)
	if err != nil {
		logrus.Errorf("list orders for %s: %v", customerID, err)
		abortProblem(c, http.StatusInternalServerError, "Internal error", "failed to list orders")
		return
	}

	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toResponse(o))
	}
	c.JSON(http.StatusOK, out)
}
