package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
)

// GroupHandlers handles user groups and their membership
type GroupHandlers struct {
	*Server
}

// RegisterRoutes registers group routes
func (h *GroupHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/groups", h.create).Methods("POST")
	router.HandleFunc("/groups", h.list).Methods("GET")
	router.HandleFunc("/groups/{id}", h.get).Methods("GET")
	router.HandleFunc("/groups/{id}", h.delete).Methods("DELETE")
	router.HandleFunc("/groups/{id}/members", h.members).Methods("GET")
	router.HandleFunc("/groups/{id}/members", h.addMember).Methods("POST")
	router.HandleFunc("/groups/{id}/members/{user_id}", h.removeMember).Methods("DELETE")
}

type namedRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (h *GroupHandlers) create(w http.ResponseWriter, r *http.Request) {
	var req namedRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	group, err := h.svc.Groups.Create(r.Context(), middleware.ProfileFromContext(r.Context()), req.Name, req.Description)
	created(w, group, err)
}

func (h *GroupHandlers) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Groups.List(r.Context(), middleware.ProfileFromContext(r.Context()))
	respond(w, list, err)
}

func (h *GroupHandlers) get(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireActor(w, r); !ok {
		return
	}
	group, err := h.svc.Groups.Get(r.Context(), httputil.PathVar(r, "id"))
	respond(w, group, err)
}

func (h *GroupHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Groups.Delete(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id")); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

func (h *GroupHandlers) members(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Groups.Members(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	respond(w, list, err)
}

type memberRequest struct {
	UserID string `json:"user_id"`
}

func (h *GroupHandlers) addMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.RequireNonEmpty("user_id", req.UserID); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	m, err := h.svc.Groups.AddMember(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.UserID)
	created(w, m, err)
}

func (h *GroupHandlers) removeMember(w http.ResponseWriter, r *http.Request) {
	err := h.svc.Groups.RemoveMember(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), httputil.PathVar(r, "user_id"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}
