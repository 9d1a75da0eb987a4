package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/commercekit/fulfillment/internal/analytics"
	"github.com/commercekit/fulfillment/internal/order/application"
	"github.com/commercekit/fulfillment/internal/order/domain"
	"github.com/commercekit/fulfillment/pkg/httpx"
	"github.com/commercekit/fulfillment/pkg/idempotency"
)

// AnalyticsQueries is the read side of the sales rollups, exposed on the
// admin surface.
type AnalyticsQueries interface {
	SalesTotals(ctx context.Context, from, to time.Time) (analytics.Totals, error)
	SalesByCategory(ctx context.Context, from, to time.Time) ([]analytics.CategorySales, error)
}

type Handler struct {
	log      *slog.Logger
	workflow *application.Workflow
	idem     *idempotency.Store
	sales    AnalyticsQueries
	tracer   trace.Tracer
}

func NewHandler(log *slog.Logger, workflow *application.Workflow, idem *idempotency.Store, sales AnalyticsQueries) *Handler {
	return &Handler{
		log:      log,
		workflow: workflow,
		idem:     idem,
		sales:    sales,
		tracer:   otel.Tracer("order-http"),
	}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.getMyOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Put("/orders/{id}/pay", h.updatePayment)
	r.Put("/orders/{id}/status", h.updateStatus)
	r.Post("/orders/{id}/cancel", h.cancelOrder)

	r.Group(func(r chi.Router) {
		r.Use(httpx.RequireAdmin)
		r.Get("/admin/orders", h.getAllOrders)
		r.Get("/admin/analytics/sales", h.salesTotals)
		r.Get("/admin/analytics/sales/categories", h.salesByCategory)
	})
	return r
}

type createOrderReq struct {
	ShippingAddress domain.Address `json:"shippingAddress"`
	PaymentMethod   string         `json:"paymentMethod"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "CreateOrder")
	defer span.End()

	customerID := httpx.CustomerID(ctx)

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	// At-most-one order per checkout: an Idempotency-Key makes retries of
	// the same submission return the original order.
	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		if orderID, ok, err := h.idem.Recall(ctx, customerID, idemKey); err == nil && ok {
			o, err := h.workflow.GetOrder(ctx, orderID, customerID)
			if err == nil {
				httpx.WriteJSON(w, http.StatusOK, o)
				return
			}
		}
		locked, err := h.idem.TryLock(ctx, customerID, idemKey)
		if err != nil {
			h.log.Error("idempotency lock failed", "err", err)
		} else if !locked {
			httpx.WriteJSON(w, http.StatusConflict, map[string]string{"error": "checkout already in progress"})
			return
		}
	}

	o, err := h.workflow.CreateOrder(ctx, customerID, req.ShippingAddress, domain.PaymentMethod(req.PaymentMethod))
	if err != nil {
		if idemKey != "" {
			_ = h.idem.Release(ctx, customerID, idemKey)
		}
		httpx.WriteError(w, err)
		return
	}
	if idemKey != "" {
		if err := h.idem.Remember(ctx, customerID, idemKey, o.ID); err != nil {
			h.log.Error("idempotency remember failed", "order_id", o.ID, "err", err)
		}
	}
	httpx.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	requester := httpx.CustomerID(r.Context())
	if httpx.IsAdmin(r.Context()) {
		requester = ""
	}
	o, err := h.workflow.GetOrder(r.Context(), chi.URLParam(r, "id"), requester)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) getMyOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.workflow.GetUserOrders(r.Context(), httpx.CustomerID(r.Context()))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) getAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.workflow.GetAllOrders(r.Context())
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orders)
}

func (h *Handler) updatePayment(w http.ResponseWriter, r *http.Request) {
	var result domain.PaymentResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	o, err := h.workflow.UpdateOrderPayment(r.Context(), chi.URLParam(r, "id"), result)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	o, err := h.workflow.UpdateOrderStatus(r.Context(), chi.URLParam(r, "id"), domain.Status(req.Status))
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

type cancelOrderReq struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	o, err := h.workflow.CancelOrder(r.Context(), chi.URLParam(r, "id"), req.Reason)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, o)
}

func (h *Handler) salesTotals(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	totals, err := h.sales.SalesTotals(r.Context(), from, to)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, totals)
}

func (h *Handler) salesByCategory(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	rows, err := h.sales.SalesByCategory(r.Context(), from, to)
	if err != nil {
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rows)
}

// dateRange parses from/to query params, defaulting to the last 30 days.
func dateRange(w http.ResponseWriter, r *http.Request) (time.Time, time.Time, bool) {
	now := time.Now().UTC()
	from, to := now.AddDate(0, 0, -30), now

	var err error
	if v := r.URL.Query().Get("from"); v != "" {
		if from, err = time.Parse("2006-01-02", v); err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid from date"})
			return time.Time{}, time.Time{}, false
		}
	}
	if v := r.URL.Query().Get("to"); v != "" {
		if to, err = time.Parse("2006-01-02", v); err != nil {
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid to date"})
			return time.Time{}, time.Time{}, false
		}
	}
	return from, to, true
}
