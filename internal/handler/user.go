package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/templui/authapi/internal/ctxkeys"
	"github.com/templui/authapi/internal/model"
	"github.com/templui/authapi/internal/service"
	"github.com/templui/authapi/internal/validation"
)

type UserHandler struct {
	accountService *service.AccountService
	maxUploadSize  int64
}

func NewUserHandler(accountService *service.AccountService, maxUploadSize int64) *UserHandler {
	return &UserHandler{
		accountService: accountService,
		maxUploadSize:  maxUploadSize,
	}
}

type updateProfileResponse struct {
	Message     string           `json:"message"`
	User        model.PublicUser `json:"user"`
	AccessToken string           `json:"access_token,omitempty"`
	TokenType   string           `json:"token_type,omitempty"`
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.accountService.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// UpdateMe takes a multipart form. Empty text fields count as not sent.
func (h *UserHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	// Headroom for the text fields and multipart framing around the file.
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize+(1<<20))
	err := r.ParseMultipartForm(h.maxUploadSize)
	if errors.Is(err, http.ErrNotMultipart) {
		err = r.ParseForm()
	}
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	if r.MultipartForm != nil {
		defer func() {
			if err := r.MultipartForm.RemoveAll(); err != nil {
				slog.Warn("failed to remove multipart temp files", "error", err)
			}
		}()
	}

	update := service.ProfileUpdate{
		Username:        formValue(r, "username"),
		CurrentPassword: formValue(r, "current_password"),
		NewPassword:     formValue(r, "password"),
		DeleteAvatar:    formBool(r, "delete_pic"),
	}

	file, header, err := r.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	case err != nil:
		writeError(w, http.StatusBadRequest, "Failed to read uploaded file")
		return
	case header.Filename != "":
		defer func() {
			closeErr := file.Close()
			if closeErr != nil {
				slog.Error("failed to close file", "error", closeErr)
			}
		}()

		contentType, err := validation.ValidateFile(header, validation.ImageConstraints.WithMaxSize(h.maxUploadSize))
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		update.Avatar = &service.AvatarUpload{Filename: header.Filename, ContentType: contentType, Content: file}
	default:
		_ = file.Close()
	}

	result, err := h.accountService.UpdateProfile(r.Context(), user, update)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := updateProfileResponse{
		Message: "Profile updated",
		User:    result.User,
	}
	if result.AccessToken != "" {
		resp.AccessToken = result.AccessToken
		resp.TokenType = service.TokenTypeBearer
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *UserHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	user := ctxkeys.User(r.Context())

	err := h.accountService.DeleteAvatar(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Profile photo deleted"})
}

func formValue(r *http.Request, key string) *string {
	value := r.FormValue(key)
	if value == "" {
		return nil
	}
	return &value
}

func formBool(r *http.Request, key string) bool {
	value := strings.TrimSpace(r.FormValue(key))
	if value == "" {
		return false
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return strings.EqualFold(value, "on") || strings.EqualFold(value, "yes")
	}
	return b
}
