package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

// ProfileHandlers serves the caller's profile and user administration
type ProfileHandlers struct {
	*Server
}

// RegisterRoutes registers profile routes
func (h *ProfileHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.me).Methods("GET")
	router.HandleFunc("/permissions", h.catalog).Methods("GET")
	router.HandleFunc("/profiles", h.list).Methods("GET")
	router.HandleFunc("/profiles/{id}", h.get).Methods("GET")
	router.HandleFunc("/profiles/{id}/role", h.setRole).Methods("PUT")
	router.HandleFunc("/profiles/{id}/permissions", h.setPermissions).Methods("PUT")
	router.HandleFunc("/profiles/{id}/active", h.setActive).Methods("PUT")
}

// ProfileView is a profile together with the permissions it resolves to
type ProfileView struct {
	*rbac.Profile
	Effective []rbac.Permission `json:"effective_permissions"`
}

func viewProfile(p *rbac.Profile) *ProfileView {
	return &ProfileView{Profile: p, Effective: rbac.EffectivePermissions(p).List()}
}

// me handles GET /me
func (h *ProfileHandlers) me(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	httputil.WriteSuccess(w, viewProfile(actor))
}

// RoleDefaults lists one role's default permissions
type RoleDefaults struct {
	Role        rbac.Role         `json:"role"`
	Permissions []rbac.Permission `json:"permissions"`
}

// catalog handles GET /permissions
func (h *ProfileHandlers) catalog(w http.ResponseWriter, r *http.Request) {
	roles := make([]RoleDefaults, 0, len(rbac.Roles()))
	for _, role := range rbac.Roles() {
		roles = append(roles, RoleDefaults{Role: role, Permissions: rbac.DefaultPermissions(role).List()})
	}
	httputil.WriteSuccess(w, map[string]interface{}{
		"permissions": rbac.Catalog(),
		"roles":       roles,
	})
}

// list handles GET /profiles?role=
func (h *ProfileHandlers) list(w http.ResponseWriter, r *http.Request) {
	page, err := httputil.ParsePage(r, 50, 500)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	role := rbac.Role(httputil.ParseQueryString(r, "role", ""))
	profiles, err := h.svc.Profiles.ListProfiles(r.Context(), middleware.ProfileFromContext(r.Context()), role)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	views := make([]*ProfileView, 0, len(profiles))
	for _, p := range httputil.Paginate(page, profiles) {
		views = append(views, viewProfile(p))
	}
	httputil.WriteSuccess(w, views)
}

// get handles GET /profiles/{id}
func (h *ProfileHandlers) get(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	id := httputil.PathVar(r, "id")
	if id != actor.UserID && !rbac.HasPermission(actor, rbac.PermManageUsers) {
		httputil.WriteAppError(w, apperr.Forbidden("%s required to view other users", rbac.PermManageUsers))
		return
	}
	profile, err := h.svc.Profiles.GetProfile(r.Context(), id)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, viewProfile(profile))
}

type setRoleRequest struct {
	Role rbac.Role `json:"role"`
}

// setRole handles PUT /profiles/{id}/role
func (h *ProfileHandlers) setRole(w http.ResponseWriter, r *http.Request) {
	var req setRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	profile, err := h.svc.Profiles.SetRole(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.Role)
	writeProfile(w, profile, err)
}

type setPermissionsRequest struct {
	Permissions []rbac.Permission `json:"permissions"`
}

// setPermissions handles PUT /profiles/{id}/permissions; an empty list clears the override
func (h *ProfileHandlers) setPermissions(w http.ResponseWriter, r *http.Request) {
	var req setPermissionsRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	profile, err := h.svc.Profiles.SetPermissions(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.Permissions)
	writeProfile(w, profile, err)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// setActive handles PUT /profiles/{id}/active
func (h *ProfileHandlers) setActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	profile, err := h.svc.Profiles.SetActive(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.Active)
	writeProfile(w, profile, err)
}

func writeProfile(w http.ResponseWriter, profile *rbac.Profile, err error) {
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, viewProfile(profile))
}

// requireActor returns the signed-in profile or writes 401
func requireActor(w http.ResponseWriter, r *http.Request) (*rbac.Profile, bool) {
	actor := middleware.ProfileFromContext(r.Context())
	if actor == nil {
		httputil.WriteAppError(w, apperr.ErrUnauthenticated)
		return nil, false
	}
	return actor, true
}

// respond writes data with status 200, or the mapped error
func respond(w http.ResponseWriter, data interface{}, err error) {
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, data)
}

// created writes data with status 201, or the mapped error
func created(w http.ResponseWriter, data interface{}, err error) {
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteCreated(w, data)
}
