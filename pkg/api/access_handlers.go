package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/access"
	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/contextkeys"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

// PasswordHeader carries a viewing password on GET requests
const PasswordHeader = "X-Content-Password"

// AccessHandlers resolves viewing access and manages grants
type AccessHandlers struct {
	*Server
}

// RegisterRoutes registers access routes
func (h *AccessHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/content/{id}/view", h.view).Methods("GET", "POST")
	router.HandleFunc("/content/{id}/grants", h.contentGrants).Methods("GET")
	router.HandleFunc("/bundles/{id}/access", h.bundleAccess).Methods("GET")
	router.HandleFunc("/bundles/{id}/grants", h.bundleGrants).Methods("GET")
	router.HandleFunc("/users/{id}/grants", h.userGrants).Methods("GET")
	router.HandleFunc("/grants", h.createGrant).Methods("POST")
	router.HandleFunc("/grants/{id}", h.getGrant).Methods("GET")
	router.HandleFunc("/grants/{id}", h.revokeGrant).Methods("DELETE")
}

// Media holds short-lived download URLs for an item's files
type Media struct {
	FileURL      string `json:"file_url,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// ViewResponse is a resolution plus, when allowed, where to fetch the media
type ViewResponse struct {
	*access.Decision
	Media *Media `json:"media,omitempty"`
}

type viewRequest struct {
	Password string `json:"password,omitempty"`
}

// view handles GET and POST /content/{id}/view. Denials are reported in the
// body with status 200 so clients can prompt for a password or a sign-in.
func (h *AccessHandlers) view(w http.ResponseWriter, r *http.Request) {
	var req viewRequest
	if r.Method == http.MethodPost && r.ContentLength != 0 {
		if !httputil.ParseJSONOrError(w, r, &req) {
			return
		}
	} else {
		req.Password = r.Header.Get(PasswordHeader)
	}

	ctx := r.Context()
	decision, err := h.svc.Resolver.Resolve(ctx, httputil.PathVar(r, "id"), middleware.ProfileFromContext(ctx), access.ResolveOptions{
		Password:  req.Password,
		ClientKey: contextkeys.GetClientKey(ctx),
	})
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	h.recordAccess(access.SubjectContent, decision)

	resp := &ViewResponse{Decision: decision}
	if decision.Allowed {
		if resp.Media, err = h.mediaFor(ctx, decision.Content); err != nil {
			httputil.WriteAppError(w, err)
			return
		}
	}
	httputil.WriteSuccess(w, resp)
}

// mediaFor signs download URLs for the item's file and thumbnail
func (s *Server) mediaFor(ctx context.Context, item *content.Item) (*Media, error) {
	if s.svc.Blobs == nil || item == nil {
		return nil, nil
	}
	var m Media
	var err error
	if item.FileRef != "" {
		if m.FileURL, err = s.svc.Blobs.URL(ctx, item.FileRef); err != nil {
			return nil, err
		}
	}
	if item.ThumbnailRef != "" {
		if m.ThumbnailURL, err = s.svc.Blobs.URL(ctx, item.ThumbnailRef); err != nil {
			return nil, err
		}
	}
	if m == (Media{}) {
		return nil, nil
	}
	return &m, nil
}

// bundleAccess handles GET /bundles/{id}/access
func (h *AccessHandlers) bundleAccess(w http.ResponseWriter, r *http.Request) {
	decision, err := h.svc.Resolver.ResolveBundle(r.Context(), httputil.PathVar(r, "id"), middleware.ProfileFromContext(r.Context()))
	if err == nil {
		h.recordAccess(access.SubjectBundle, decision)
	}
	respond(w, decision, err)
}

// createGrant handles POST /grants
func (h *AccessHandlers) createGrant(w http.ResponseWriter, r *http.Request) {
	var req access.GrantRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	grant, err := h.svc.Grants.Create(r.Context(), middleware.ProfileFromContext(r.Context()), req)
	created(w, grant, err)
}

// getGrant handles GET /grants/{id}. Holders and access managers may read a grant.
func (h *AccessHandlers) getGrant(w http.ResponseWriter, r *http.Request) {
	actor := middleware.ProfileFromContext(r.Context())
	grant, err := h.svc.Grants.Get(r.Context(), httputil.PathVar(r, "id"))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	if actor == nil || (actor.UserID != grant.UserID && !rbac.HasPermission(actor, rbac.PermManageAccess)) {
		httputil.WriteAppError(w, access.ErrGrantNotFound)
		return
	}
	httputil.WriteSuccess(w, grant)
}

// revokeGrant handles DELETE /grants/{id}
func (h *AccessHandlers) revokeGrant(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Grants.Revoke(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id")); err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteNoContent(w)
}

// contentGrants handles GET /content/{id}/grants
func (h *AccessHandlers) contentGrants(w http.ResponseWriter, r *http.Request) {
	h.subjectGrants(w, r, access.SubjectContent)
}

// bundleGrants handles GET /bundles/{id}/grants
func (h *AccessHandlers) bundleGrants(w http.ResponseWriter, r *http.Request) {
	h.subjectGrants(w, r, access.SubjectBundle)
}

func (h *AccessHandlers) subjectGrants(w http.ResponseWriter, r *http.Request, kind access.SubjectKind) {
	subject := access.Subject{Kind: kind, ID: httputil.PathVar(r, "id")}
	grants, err := h.svc.Grants.ListForSubject(r.Context(), middleware.ProfileFromContext(r.Context()), subject)
	respond(w, grants, err)
}

// userGrants handles GET /users/{id}/grants
func (h *AccessHandlers) userGrants(w http.ResponseWriter, r *http.Request) {
	grants, err := h.svc.Grants.ListForUser(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	respond(w, grants, err)
}
