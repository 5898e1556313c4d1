package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/service"
)

// DefaultMaxUploadBytes caps a profile image upload when none is configured.
const DefaultMaxUploadBytes = 10 << 20

// AccountHandler serves the account page and its profile image upload.
// Both routes sit behind auth.RequireUser.
type AccountHandler struct {
	users          Users
	images         Images
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewAccountHandler(users Users, images Images, maxUploadBytes int64, logger *slog.Logger) *AccountHandler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	return &AccountHandler{
		users:          users,
		images:         images,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// Account loads the signed-in user's row.
//
// HTTP: GET /account
//
// Response: {"user": {...}}, with a null user if the row is missing.
func (h *AccountHandler) Account(w http.ResponseWriter, r *http.Request) {
	res := auth.SafeGetSession(r.Context())
	if res.User == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	user := h.users.GetByID(r.Context(), res.User.ID)
	writeJSON(w, http.StatusOK, map[string]*model.User{"user": user})
}

// Upload replaces the signed-in user's profile image.
//
// HTTP: POST /account/upload (multipart, field "file")
//
// Response:
//   - 200 {"user": {...}} with the updated row
//   - 204 when there is no file, the type is not an allowed image, or
//     storing it failed. A rejected file is not reported to the user.
//   - 413 when the body is larger than the configured limit
func (h *AccountHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	res := auth.SafeGetSession(ctx)
	if res.User == nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"message": msgFileTooLarge})
			return
		}
		h.logger.Debug("upload: no multipart form", slog.String("error", err.Error()))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	defer file.Close()

	path := h.images.UploadProfileImage(ctx, service.ImageFile{
		ContentType: header.Header.Get("Content-Type"),
		Body:        file,
	})
	if path == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	user := h.users.Update(ctx, res.User.ID, model.UserUpdate{ProfileImage: &path})
	if user == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	h.logger.Info("profile image updated",
		slog.String("id", user.ID),
		slog.String("path", path),
	)
	writeJSON(w, http.StatusOK, map[string]*model.User{"user": user})
}
