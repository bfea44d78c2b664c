package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/billing"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
)

// BillingHandlers handles pricing and orders
type BillingHandlers struct {
	*Server
}

// RegisterRoutes registers billing routes
func (h *BillingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/pricing", h.setPricing).Methods("PUT")
	router.HandleFunc("/pricing/{kind}/{id}", h.activePricing).Methods("GET")
	router.HandleFunc("/pricing/{kind}/{id}", h.clearPricing).Methods("DELETE")
	router.HandleFunc("/pricing/{kind}/{id}/history", h.pricingHistory).Methods("GET")
	router.HandleFunc("/orders", h.createOrder).Methods("POST")
	router.HandleFunc("/orders", h.listOrders).Methods("GET")
	router.HandleFunc("/orders/{id}", h.getOrder).Methods("GET")
	router.HandleFunc("/orders/{id}/complete", h.completeOrder).Methods("POST")
	router.HandleFunc("/orders/{id}/refund", h.refundOrder).Methods("POST")
}

// pathSubject reads {kind}/{id} into a subject
func pathSubject(r *http.Request) (access.Subject, error) {
	subject := access.Subject{Kind: access.SubjectKind(httputil.PathVar(r, "kind")), ID: httputil.PathVar(r, "id")}
	if !subject.Kind.Valid() {
		return access.Subject{}, apperr.Invalid("unknown subject kind %q", subject.Kind)
	}
	return subject, nil
}

func (h *BillingHandlers) setPricing(w http.ResponseWriter, r *http.Request) {
	var req billing.PricingRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	p, err := h.svc.Billing.SetPricing(r.Context(), middleware.ProfileFromContext(r.Context()), req)
	respond(w, p, err)
}

// activePricing handles GET /pricing/{kind}/{id}; prices are public
func (h *BillingHandlers) activePricing(w http.ResponseWriter, r *http.Request) {
	subject, err := pathSubject(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	p, err := h.svc.Billing.ActivePricing(r.Context(), subject)
	respond(w, p, err)
}

func (h *BillingHandlers) clearPricing(w http.ResponseWriter, r *http.Request) {
	subject, err := pathSubject(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if err := h.svc.Billing.ClearPricing(r.Context(), middleware.ProfileFromContext(r.Context()), subject); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *BillingHandlers) pricingHistory(w http.ResponseWriter, r *http.Request) {
	subject, err := pathSubject(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	history, err := h.svc.Billing.PricingHistory(r.Context(), middleware.ProfileFromContext(r.Context()), subject)
	respond(w, history, err)
}

func (h *BillingHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	var subject access.Subject
	if !httputil.ParseJSONOrError(w, r, &subject) {
		return
	}
	o, err := h.svc.Billing.CreateOrder(r.Context(), middleware.ProfileFromContext(r.Context()), subject)
	if err == nil {
		h.recordOrder(o)
	}
	created(w, o, err)
}

// listOrders handles GET /orders?buyer=&status=. Without filters it lists the caller's orders.
func (h *BillingHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	page, err := httputil.ParsePage(r, 50, 500)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}

	var orders []*billing.Order
	if status := httputil.ParseQueryString(r, "status", ""); status != "" {
		orders, err = h.svc.Billing.ListOrdersByStatus(r.Context(), actor, billing.OrderStatus(status))
	} else {
		orders, err = h.svc.Billing.ListOrders(r.Context(), actor, httputil.ParseQueryString(r, "buyer", actor.UserID))
	}
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, httputil.Paginate(page, orders))
}

func (h *BillingHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Billing.GetOrder(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	respond(w, o, err)
}

type completeOrderRequest struct {
	PaymentToken string `json:"payment_token"`
}

func (h *BillingHandlers) completeOrder(w http.ResponseWriter, r *http.Request) {
	var req completeOrderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	o, err := h.svc.Billing.CompleteOrder(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.PaymentToken)
	switch {
	case err == nil:
		h.recordOrder(o)
	case errors.Is(err, billing.ErrPaymentDeclined):
		h.recordOrder(&billing.Order{Status: billing.OrderStatusFailed})
	}
	respond(w, o, err)
}

func (h *BillingHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Billing.RefundOrder(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	if err == nil {
		h.recordOrder(o)
	}
	respond(w, o, err)
}
