package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
	"github.com/platinummonkey/mediagate/pkg/workflow"
)

// ContentHandlers handles content items, the editorial workflow and version history
type ContentHandlers struct {
	*Server
}

// RegisterRoutes registers content routes
func (h *ContentHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/content", h.create).Methods("POST")
	router.HandleFunc("/content", h.list).Methods("GET")
	router.HandleFunc("/catalog", h.catalog).Methods("GET")
	router.HandleFunc("/content/{id}", h.get).Methods("GET")
	router.HandleFunc("/content/{id}", h.update).Methods("PATCH")
	router.HandleFunc("/content/{id}", h.delete).Methods("DELETE")
	router.HandleFunc("/content/{id}/transitions", h.transition).Methods("POST")
	router.HandleFunc("/content/{id}/versions", h.listVersions).Methods("GET")
	router.HandleFunc("/content/{id}/versions/{number}", h.getVersion).Methods("GET")
	router.HandleFunc("/content/{id}/versions/{number}/revert", h.revert).Methods("POST")
}

// create handles POST /content
func (h *ContentHandlers) create(w http.ResponseWriter, r *http.Request) {
	var in content.CreateInput
	if !httputil.ParseJSONOrError(w, r, &in) {
		return
	}
	item, err := h.svc.Content.Create(r.Context(), middleware.ProfileFromContext(r.Context()), in)
	created(w, item, err)
}

// list handles GET /content?status=&type=&created_by=
func (h *ContentHandlers) list(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r, 50, 500)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	filter := content.ListFilter{
		Status:    workflow.Status(httputil.ParseQueryString(r, "status", "")),
		Type:      content.Type(httputil.ParseQueryString(r, "type", "")),
		CreatedBy: httputil.ParseQueryString(r, "created_by", ""),
	}
	items, err := h.svc.Content.List(r.Context(), middleware.ProfileFromContext(r.Context()), filter)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, httputil.Paginate(page, items))
}

// catalog handles GET /catalog: published items the caller may view
func (h *ContentHandlers) catalog(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r, 50, 500)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	items, err := h.svc.Content.ListPublished(r.Context())
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	visible, err := h.svc.Resolver.FilterVisible(r.Context(), items, middleware.ProfileFromContext(r.Context()))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, httputil.Paginate(page, visible))
}

// get handles GET /content/{id}
func (h *ContentHandlers) get(w http.ResponseWriter, r *http.Request) {
	item, err := h.svc.Content.Get(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	respond(w, item, err)
}

type updateRequest struct {
	Patch       content.Patch `json:"patch"`
	Description string        `json:"description,omitempty"`
}

// update handles PATCH /content/{id}
func (h *ContentHandlers) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	item, err := h.svc.Content.Update(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.Patch, req.Description)
	respond(w, item, err)
}

// delete handles DELETE /content/{id}
func (h *ContentHandlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Content.Delete(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id")); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

type transitionRequest struct {
	Action workflow.Action `json:"action"`
	Note   string          `json:"note,omitempty"`
}

// transition handles POST /content/{id}/transitions
func (h *ContentHandlers) transition(w http.ResponseWriter, r *http.Request) {
	var req transitionRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if err := httputil.RequireNonEmpty("action", string(req.Action)); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	item, err := h.svc.Content.Transition(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.Action, req.Note)
	h.recordTransition(string(req.Action), err)
	respond(w, item, err)
}

// listVersions handles GET /content/{id}/versions
func (h *ContentHandlers) listVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.Content.ListVersions(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	respond(w, versions, err)
}

// getVersion handles GET /content/{id}/versions/{number}
func (h *ContentHandlers) getVersion(w http.ResponseWriter, r *http.Request) {
	number, err := versionNumber(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	version, err := h.svc.Content.GetVersion(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), number)
	respond(w, version, err)
}

// revert handles POST /content/{id}/versions/{number}/revert
func (h *ContentHandlers) revert(w http.ResponseWriter, r *http.Request) {
	number, err := versionNumber(r)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	result, err := h.svc.Content.Revert(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), number)
	respond(w, result, err)
}

func versionNumber(r *http.Request) (int, error) {
	n, err := strconv.Atoi(httputil.PathVar(r, "number"))
	if err != nil || n < 1 {
		return 0, apperr.Invalid("version number must be a positive integer")
	}
	return n, nil
}
