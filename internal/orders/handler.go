package orders

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/roastdirect/internal/auth"
	"github.com/joao-fontenele/roastdirect/internal/domain"
	"github.com/joao-fontenele/roastdirect/internal/pricing"
)

// Publisher sends committed order events downstream. Implemented by messaging.Producer.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

type Handler struct {
	engine    *Engine
	publisher Publisher
	logger    *slog.Logger
}

// NewHandler wires the HTTP surface to the engine. publisher may be nil.
func NewHandler(engine *Engine, publisher Publisher, logger *slog.Logger) *Handler {
	return &Handler{
		engine:    engine,
		publisher: publisher,
		logger:    logger,
	}
}

// Register mounts the order routes. authn guards every route; deliver also needs the admin role.
func (h *Handler) Register(mux *http.ServeMux, authn func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("POST /api/orders/subtotal", authn(h.HandleSubtotal))
	mux.HandleFunc("POST /api/orders/final_total", authn(h.HandleFinalTotal))
	mux.HandleFunc("POST /api/orders/place_order", authn(h.HandlePlaceOrder))
	mux.HandleFunc("GET /api/orders/all_orders", authn(h.HandleListOrders))
	mux.HandleFunc("GET /api/orders/{id}", authn(h.HandleGetOrder))
	mux.HandleFunc("POST /api/orders/cancel/{id}", authn(h.HandleCancelOrder))
	mux.HandleFunc("POST /api/orders/deliver/{id}", authn(auth.RequireRole(auth.RoleAdmin, h.HandleMarkDelivered)))
}

type subtotalRequest struct {
	Items []pricing.CartItem `json:"items"`
}

type subtotalResponse struct {
	Message string `json:"message"`
	*pricing.Subtotal
}

func (h *Handler) HandleSubtotal(w http.ResponseWriter, r *http.Request) {
	var req subtotalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.engine.ComputeSubtotal(r.Context(), req.Items)
	if err != nil {
		h.writeDomainError(w, err, "failed to compute subtotal")
		return
	}

	h.writeJSON(w, http.StatusOK, subtotalResponse{Message: "Subtotal calculated successfully", Subtotal: result})
}

type finalTotalRequest struct {
	Subtotal *decimal.Decimal `json:"subtotal"`
	pricing.PaymentPayload
}

type finalTotalResponse struct {
	Message string `json:"message"`
	*pricing.Totals
}

func (h *Handler) HandleFinalTotal(w http.ResponseWriter, r *http.Request) {
	var req finalTotalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Subtotal == nil {
		h.writeError(w, http.StatusBadRequest, "subtotal is required")
		return
	}

	totals, err := h.engine.ComputeFinalTotal(*req.Subtotal, req.PaymentPayload)
	if err != nil {
		h.writeDomainError(w, err, "failed to compute final total")
		return
	}

	h.writeJSON(w, http.StatusOK, finalTotalResponse{
		Message: "Order totals calculated and payment info validated successfully",
		Totals:  totals,
	})
}

type placeOrderResponse struct {
	Message     string             `json:"message"`
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	FinalTotal  decimal.Decimal    `json:"final_total"`
	Status      domain.OrderStatus `json:"status"`
}

func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	var req PlaceOrderInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.engine.PlaceOrder(r.Context(), id.UserID, req)
	if err != nil {
		h.writeDomainError(w, err, "failed to place order", "user_id", id.UserID)
		return
	}

	h.publish(r.Context(), domain.OrderEventPlaced, order, id.Email)

	h.logger.Info("order placed", "order_id", order.ID, "order_number", order.OrderNumber, "user_id", order.UserID)
	h.writeJSON(w, http.StatusCreated, placeOrderResponse{
		Message:     "Order placed successfully",
		OrderID:     order.ID,
		OrderNumber: order.OrderNumber,
		FinalTotal:  order.FinalTotal,
		Status:      order.Status,
	})
}

type listOrdersResponse struct {
	Message string      `json:"message"`
	Count   int         `json:"count"`
	Orders  []OrderView `json:"orders"`
}

func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())

	views, err := h.engine.ListOrders(r.Context(), id.UserID)
	if err != nil {
		h.writeDomainError(w, err, "failed to list orders", "user_id", id.UserID)
		return
	}

	message := "Orders retrieved successfully"
	if len(views) == 0 {
		message = "No orders found"
	}

	h.writeJSON(w, http.StatusOK, listOrdersResponse{Message: message, Count: len(views), Orders: views})
}

type getOrderResponse struct {
	Message string     `json:"message"`
	Order   *OrderView `json:"order"`
}

func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID := r.PathValue("id")

	view, err := h.engine.GetOrder(r.Context(), id.UserID, orderID)
	if err != nil {
		h.writeDomainError(w, err, "failed to get order", "order_id", orderID)
		return
	}

	h.writeJSON(w, http.StatusOK, getOrderResponse{Message: "Order retrieved successfully", Order: view})
}

type cancelOrderResponse struct {
	Message       string         `json:"message"`
	OrderID       string         `json:"order_id"`
	OrderNumber   string         `json:"order_number"`
	RestoredItems []RestoredItem `json:"restored_items"`
}

func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id, _ := auth.FromContext(r.Context())
	orderID := r.PathValue("id")

	result, err := h.engine.CancelOrder(r.Context(), id.UserID, orderID)
	if err != nil {
		h.writeDomainError(w, err, "failed to cancel order", "order_id", orderID)
		return
	}

	h.publish(r.Context(), domain.OrderEventCanceled, result.Order, id.Email)

	h.logger.Info("order canceled", "order_id", orderID, "restored_items", len(result.RestoredItems))
	h.writeJSON(w, http.StatusOK, cancelOrderResponse{
		Message:       "Order canceled successfully",
		OrderID:       result.Order.ID,
		OrderNumber:   result.Order.OrderNumber,
		RestoredItems: result.RestoredItems,
	})
}

type deliverResponse struct {
	Message          string `json:"message"`
	OrderID          string `json:"order_id"`
	AlreadyDelivered bool   `json:"already_delivered"`
}

func (h *Handler) HandleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("id")

	result, err := h.engine.MarkDelivered(r.Context(), orderID)
	if err != nil {
		h.writeDomainError(w, err, "failed to mark order delivered", "order_id", orderID)
		return
	}

	if result.AlreadyDelivered {
		h.writeJSON(w, http.StatusOK, deliverResponse{
			Message:          "Order is already marked as delivered",
			OrderID:          orderID,
			AlreadyDelivered: true,
		})
		return
	}

	h.publish(r.Context(), domain.OrderEventDelivered, result.Order, "")

	h.logger.Info("order delivered", "order_id", orderID)
	h.writeJSON(w, http.StatusOK, deliverResponse{Message: "Order marked as delivered", OrderID: orderID})
}

// publish runs after commit. A failure is logged and never changes the response.
func (h *Handler) publish(ctx context.Context, t domain.OrderEventType, order *domain.Order, email string) {
	if h.publisher == nil {
		return
	}

	event := domain.NewOrderEvent(t, order, time.Now().UTC())
	event.CustomerEmail = email
	if err := h.publisher.Publish(ctx, order.ID, event); err != nil {
		h.logger.Error("failed to publish order event", "error", err, "type", t, "order_id", order.ID)
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error, logMsg string, attrs ...any) {
	var derr *domain.Error
	if !errors.As(err, &derr) {
		h.logger.Error(logMsg, append([]any{"error", err}, attrs...)...)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	}

	body := errorResponse{Error: derr.Message, Details: derr.Details}
	h.writeJSON(w, status, body)
}

type errorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, errorResponse{Error: message})
}
