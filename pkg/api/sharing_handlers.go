package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/content"
	"github.com/platinummonkey/mediagate/pkg/contextkeys"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/middleware"
	"github.com/platinummonkey/mediagate/pkg/sharing"
)

// SharingHandlers handles invite codes, client invites and share links
type SharingHandlers struct {
	*Server
}

// RegisterRoutes registers sharing routes
func (h *SharingHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/invite-codes", h.createInviteCode).Methods("POST")
	router.HandleFunc("/invite-codes", h.listInviteCodes).Methods("GET")
	router.HandleFunc("/invite-codes/redeem", h.redeemInviteCode).Methods("POST")
	router.HandleFunc("/invite-codes/{id}/active", h.setInviteCodeActive).Methods("PUT")

	router.HandleFunc("/client-invites", h.createClientInvite).Methods("POST")
	router.HandleFunc("/client-invites", h.listClientInvites).Methods("GET")
	router.HandleFunc("/client-invites/redeem", h.useClientInvite).Methods("POST")

	router.HandleFunc("/shares", h.share).Methods("POST")
	router.HandleFunc("/shares", h.myShares).Methods("GET")
	router.HandleFunc("/shares/{id}/revoke", h.revoke).Methods("POST")
	router.HandleFunc("/content/{id}/shares", h.contentShares).Methods("GET")
	router.HandleFunc("/s/{token}", h.open).Methods("GET")
}

func (h *SharingHandlers) createInviteCode(w http.ResponseWriter, r *http.Request) {
	var req sharing.InviteCodeRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	code, err := h.svc.Sharing.CreateInviteCode(r.Context(), middleware.ProfileFromContext(r.Context()), req)
	created(w, code, err)
}

func (h *SharingHandlers) listInviteCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.svc.Sharing.ListInviteCodes(r.Context(), middleware.ProfileFromContext(r.Context()))
	respond(w, codes, err)
}

func (h *SharingHandlers) setInviteCodeActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	code, err := h.svc.Sharing.SetInviteCodeActive(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"), req.Active)
	respond(w, code, err)
}

type redeemRequest struct {
	Code string `json:"code"`
}

func (h *SharingHandlers) readCode(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	actor, ok := requireActor(w, r)
	if !ok {
		return "", "", false
	}
	var req redeemRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return "", "", false
	}
	if err := httputil.RequireNonEmpty("code", req.Code); err != nil {
		httputil.WriteAppError(w, err)
		return "", "", false
	}
	return actor.UserID, req.Code, true
}

// redeemInviteCode handles POST /invite-codes/redeem and returns the caller's new profile
func (h *SharingHandlers) redeemInviteCode(w http.ResponseWriter, r *http.Request) {
	userID, code, ok := h.readCode(w, r)
	if !ok {
		return
	}
	profile, err := h.svc.Sharing.RedeemInviteCode(r.Context(), userID, code)
	writeProfile(w, profile, err)
}

func (h *SharingHandlers) createClientInvite(w http.ResponseWriter, r *http.Request) {
	var req sharing.ClientInviteRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	invite, err := h.svc.Sharing.CreateClientInvite(r.Context(), middleware.ProfileFromContext(r.Context()), req)
	created(w, invite, err)
}

func (h *SharingHandlers) listClientInvites(w http.ResponseWriter, r *http.Request) {
	invites, err := h.svc.Sharing.ListClientInvites(r.Context(), middleware.ProfileFromContext(r.Context()))
	respond(w, invites, err)
}

// useClientInvite handles POST /client-invites/redeem
func (h *SharingHandlers) useClientInvite(w http.ResponseWriter, r *http.Request) {
	userID, code, ok := h.readCode(w, r)
	if !ok {
		return
	}
	profile, err := h.svc.Sharing.UseClientInvite(r.Context(), userID, code)
	writeProfile(w, profile, err)
}

func (h *SharingHandlers) share(w http.ResponseWriter, r *http.Request) {
	var req sharing.ShareRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	s, err := h.svc.Sharing.ShareContent(r.Context(), middleware.ProfileFromContext(r.Context()), req)
	created(w, s, err)
}

func (h *SharingHandlers) myShares(w http.ResponseWriter, r *http.Request) {
	shares, err := h.svc.Sharing.ListMyShares(r.Context(), middleware.ProfileFromContext(r.Context()))
	respond(w, shares, err)
}

func (h *SharingHandlers) revoke(w http.ResponseWriter, r *http.Request) {
	s, err := h.svc.Sharing.RevokeShare(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	respond(w, s, err)
}

func (h *SharingHandlers) contentShares(w http.ResponseWriter, r *http.Request) {
	shares, err := h.svc.Sharing.ListSharesForContent(r.Context(), middleware.ProfileFromContext(r.Context()), httputil.PathVar(r, "id"))
	respond(w, shares, err)
}

// SharedView is what a share link opens
type SharedView struct {
	Content *content.Item `json:"content"`
	Media   *Media        `json:"media,omitempty"`
	// SharedBy is the sharer's user id, shown to the recipient
	SharedBy string `json:"shared_by"`
	Message  string `json:"message,omitempty"`
}

// open handles GET /s/{token}. Share links work without signing in.
func (h *SharingHandlers) open(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	share, item, err := h.svc.Sharing.ResolveShare(ctx, httputil.PathVar(r, "token"), contextkeys.GetClientKey(ctx))
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	media, err := h.mediaFor(ctx, item)
	if err != nil {
		httputil.WriteAppError(w, err)
		return
	}
	httputil.WriteSuccess(w, &SharedView{Content: item, Media: media, SharedBy: share.SharedBy, Message: share.Message})
}
