package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/quickbite/food-ordering-app/backend/internal/core/ports"
	"github.com/quickbite/food-ordering-app/backend/internal/entities"
	"github.com/quickbite/food-ordering-app/backend/internal/usecases"
)

var (
	_ OrderService   = (*usecases.OrderService)(nil)
	_ PaymentService = (*usecases.PaymentService)(nil)
	_ WebhookService = (*usecases.WebhookService)(nil)
	_ MenuService    = (*usecases.MenuService)(nil)
)

const razorpaySignatureHeader = "X-Razorpay-Signature"

// Pinger is a liveness probe on a backing dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HTTPHandler struct {
	logger         *slog.Logger
	orderService   OrderService
	paymentService PaymentService
	webhookService WebhookService
	menuService    MenuService

	store Pinger
	cache Pinger
}

func NewHTTPHandler(logger *slog.Logger, orderService OrderService, paymentService PaymentService, webhookService WebhookService, menuService MenuService, store, cache Pinger) *HTTPHandler {
	return &HTTPHandler{
		logger:         logger,
		orderService:   orderService,
		paymentService: paymentService,
		webhookService: webhookService,
		menuService:    menuService,
		store:          store,
		cache:          cache,
	}
}

func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	// API endpoints.

	// Orders
	router.HandleFunc("/orders", h.CreateOrder).Methods("POST")
	router.HandleFunc("/orders/user", h.GetUserOrders).Methods("GET")
	router.HandleFunc("/orders", h.ListOrders).Methods("GET")
	router.HandleFunc("/orders/{orderId}", h.GetOrder).Methods("GET")
	router.HandleFunc("/orders/{orderId}/status", h.UpdateOrderStatus).Methods("PATCH")
	router.HandleFunc("/orders/{orderId}/webhooks", h.GetOrderWebhooks).Methods("GET")

	// Payments
	router.HandleFunc("/payments/verify", h.VerifyPayment).Methods("POST")
	router.HandleFunc("/webhooks/razorpay", h.RazorpayWebhook).Methods("POST")

	// Menu
	router.HandleFunc("/menu", h.GetMenu).Methods("GET")

	router.HandleFunc("/health", h.Health).Methods("GET")
}

type createOrderRequest struct {
	UserID string `json:"user_id"`
	Items  []struct {
		MenuItemID string `json:"menu_item_id"`
		Quantity   int    `json:"quantity"`
	} `json:"items"`
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		http.Error(w, "Invalid user_id format", http.StatusBadRequest)
		return
	}
	if len(req.Items) == 0 {
		http.Error(w, "Missing required field: items", http.StatusBadRequest)
		return
	}

	lines := make([]entities.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		menuItemID, perr := uuid.Parse(item.MenuItemID)
		if perr != nil {
			http.Error(w, "Invalid menu_item_id format", http.StatusBadRequest)
			return
		}
		lines = append(lines, entities.CartLine{MenuItemID: menuItemID, Quantity: item.Quantity})
	}

	result, err := h.orderService.Checkout(r.Context(), userID, lines, r.Header.Get(ports.IdempotencyKeyHeader))
	if err != nil {
		h.logger.Error("[Checkout] Error creating order", "error", err, "user_id", userID)
		h.writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Replayed {
		status = http.StatusOK
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"order_id":          result.OrderID,
		"razorpay_order_id": result.RazorpayOrderID,
		"amount":            result.Amount,
		"currency":          result.Currency,
	})
}

func (h *HTTPHandler) GetUserOrders(w http.ResponseWriter, r *http.Request) {
	userIDParam := r.URL.Query().Get("user_id")
	if userIDParam == "" {
		http.Error(w, "Missing required parameter: user_id", http.StatusBadRequest)
		return
	}

	userID, err := uuid.Parse(userIDParam)
	if err != nil {
		http.Error(w, "Invalid user_id format", http.StatusBadRequest)
		return
	}

	orders, err := h.orderService.GetUserOrders(r.Context(), userID)
	if err != nil {
		h.logger.Error("Error getting user orders", "error", err, "user_id", userID)
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

func (h *HTTPHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	status := entities.OrderStatus(r.URL.Query().Get("status"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	orders, err := h.orderService.ListOrders(r.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("Error listing orders", "error", err)
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(orders)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(order)
}

func (h *HTTPHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		http.Error(w, "Missing required field: status", http.StatusBadRequest)
		return
	}

	err := h.orderService.UpdateOrderStatus(r.Context(), orderID, entities.OrderStatus(req.Status))
	if err != nil {
		h.logger.Error("Error updating order status", "error", err, "order_id", orderID, "status", req.Status)
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (h *HTTPHandler) GetOrderWebhooks(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.orderIDFromPath(w, r)
	if !ok {
		return
	}

	entries, err := h.webhookService.History(r.Context(), orderID)
	if err != nil {
		h.logger.Error("Error getting webhook history", "error", err, "order_id", orderID)
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

type verifyPaymentRequest struct {
	OrderID           string `json:"order_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

func (h *HTTPHandler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	var req verifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RazorpayOrderID == "" || req.RazorpayPaymentID == "" || req.RazorpaySignature == "" {
		http.Error(w, "Missing required payment fields", http.StatusBadRequest)
		return
	}

	orderID, err := uuid.Parse(req.OrderID)
	if err != nil {
		http.Error(w, "Invalid order_id format", http.StatusBadRequest)
		return
	}

	err = h.paymentService.VerifyAndCommit(r.Context(), orderID, req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature)
	if err != nil {
		h.logger.Error("[Verify Payment] Verification failed", "error", err, "order_id", orderID)
		h.writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "success"})
}

func (h *HTTPHandler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, ports.WebhookBodyLimit))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	err = h.webhookService.Ingest(r.Context(), body, r.Header.Get(razorpaySignatureHeader))
	if errors.Is(err, entities.ErrSignatureInvalid) {
		http.Error(w, "Invalid webhook signature", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.logger.Error("[Webhook] Ingest failed", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	// Always acknowledged once authenticated, so the gateway stops
	// redelivering events we have already journaled.
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *HTTPHandler) GetMenu(w http.ResponseWriter, r *http.Request) {
	items, err := h.menuService.ListItems(r.Context())
	if err != nil {
		h.logger.Error("Error loading menu", "error", err)
		http.Error(w, "Failed to load menu", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(items)
}

func (h *HTTPHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"database": "ok", "redis": "ok"}
	healthy := true

	if err := h.store.Ping(r.Context()); err != nil {
		checks["database"] = err.Error()
		healthy = false
	}
	if err := h.cache.Ping(r.Context()); err != nil {
		checks["redis"] = err.Error()
		healthy = false
	}

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (h *HTTPHandler) orderIDFromPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	vars := mux.Vars(r)
	orderID, err := uuid.Parse(vars["orderId"])
	if err != nil {
		http.Error(w, "Invalid order ID format", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return orderID, true
}

// writeError maps service errors onto HTTP statuses.
func (h *HTTPHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, entities.ErrNotFound):
		http.Error(w, "Order not found", http.StatusNotFound)
	case errors.Is(err, entities.ErrDuplicateRequest):
		http.Error(w, "Duplicate request in flight", http.StatusConflict)
	case errors.Is(err, entities.ErrVersionConflict):
		http.Error(w, "Order was modified concurrently, retry", http.StatusConflict)
	case errors.Is(err, entities.ErrInvalidTransition):
		http.Error(w, fmt.Sprintf("Invalid status transition: %v", err), http.StatusUnprocessableEntity)
	case errors.Is(err, entities.ErrItemUnavailable):
		http.Error(w, fmt.Sprintf("Invalid cart: %v", err), http.StatusBadRequest)
	case errors.Is(err, entities.ErrSignatureInvalid):
		http.Error(w, "Invalid payment signature", http.StatusUnauthorized)
	case errors.Is(err, entities.ErrIdempotencyUnavailable):
		http.Error(w, "Service temporarily unavailable, retry later", http.StatusServiceUnavailable)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
