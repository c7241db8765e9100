package handler

import (
	"net/http"
	"strings"

	"github.com/templui/authapi/internal/service"
)

// AvatarHandler serves avatars kept in remote storage by redirecting to the
// object URL. Local avatars are served by the file server instead.
type AvatarHandler struct {
	avatarService *service.AvatarService
}

func NewAvatarHandler(avatarService *service.AvatarService) *AvatarHandler {
	return &AvatarHandler{avatarService: avatarService}
}

func (h *AvatarHandler) Redirect(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		writeError(w, http.StatusNotFound, "Not Found")
		return
	}

	http.Redirect(w, r, h.avatarService.URL(name), http.StatusFound)
}
