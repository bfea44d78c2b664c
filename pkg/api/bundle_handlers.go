package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
)

// BundleHandlers handles bundles and their ordered items
type BundleHandlers struct {
	*Server
}

// RegisterRoutes registers bundle routes
func (h *BundleHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/bundles", h.create).Methods("POST")
	router.HandleFunc("/bundles", h.list).Methods("GET")
	router.HandleFunc("/bundles/{id}", h.get).Methods("GET")
	router.HandleFunc("/bundles/{id}", h.rename).Methods("PUT")
	router.HandleFunc("/bundles/{id}", h.delete).Methods("DELETE")
	router.HandleFunc("/bundles/{id}/items", h.items).Methods("GET")
	router.HandleFunc("/bundles/{id}/items", h.addItem).Methods("POST")
	router.HandleFunc("/bundles/{id}/items", h.reorder).Methods("PUT")
	router.HandleFunc("/bundles/{id}/items/{content_id}", h.removeItem).Methods("DELETE")
}

func (h *BundleHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	b, err := h.svc.Bundles.Create(r.Context(), middleware.ProfileFromContext(r.Context()), req.Name, req.Description)
	created(w, b, err)
}

// list handles GET /bundles. Bundle listings are public; access is decided per item.
func (h *BundleHandlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Bundles.List(r.Context())
	respond(w, list, err)
}

func (h *BundleHandlers) get(w http.ResponseWriter, r *http.Request) {
	b, err := h.svc.Bundles.Get(r.Context(), httputil.PathVar(r, "id"))
	respond(w, b, err)
}

func (h *BundleHandlers) rename(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	b, err := h.svc.Bundles.Rename(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.Name, req.Description)
	respond(w, b, err)
}

func (h *BundleHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Bundles.Delete(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id")); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *BundleHandlers) items(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Bundles.Items(r.Context(), httputil.PathVar(r, "id"))
	respond(w, list, err)
}

type bundleItemRequest struct {
	ContentID string `json:"content_id"`
}

func (h *BundleHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	var req bundleItemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.RequireNonEmpty("content_id", req.ContentID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	item, err := h.svc.Bundles.AddItem(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.ContentID)
	created(w, item, err)
}

type reorderRequest struct {
	ContentIDs []string `json:"content_ids"`
}

// reorder handles PUT /bundles/{id}/items with the complete new order
func (h *BundleHandlers) reorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	list, err := h.svc.Bundles.Reorder(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.ContentIDs)
	respond(w, list, err)
}

func (h *BundleHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Bundles.RemoveItem(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), httputil.PathVar(r, "content_id"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
