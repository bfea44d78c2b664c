package api

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/mediagate/pkg/apperr"
	"github.com/platinummonkey/mediagate/pkg/httputil"
	"github.com/platinummonkey/mediagate/pkg/rbac"
)

// UploadHandlers issues direct-upload targets for media files
type UploadHandlers struct {
	*Server
}

// RegisterRoutes registers upload routes
func (h *UploadHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/uploads", h.upload).Methods("POST")
}

type uploadRequest struct {
	ContentType string `json:"content_type"`
}

// upload handles POST /uploads. The returned file_ref goes into a content item's file_ref or thumbnail_ref.
func (h *UploadHandlers) upload(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if !rbac.HasPermission(actor, rbac.PermUploadFiles) {
		httputil.WriteAppError(w, apperr.Forbidden("%s required", rbac.PermUploadFiles))
		return
	}
	var req uploadRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !strings.Contains(req.ContentType, "/") {
		httputil.WriteAppError(w, apperr.Invalid("content_type must be a MIME type"))
		return
	}
	if h.svc.Blobs == nil {
		httputil.WriteErrorMessage(w, http.StatusServiceUnavailable, "unavailable", "file uploads are not configured")
		return
	}
	upload, err := h.svc.Blobs.UploadURL(r.Context(), req.ContentType)
	created(w, upload, err)
}
