package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/account-portal/internal/auth"
	"github.com/sakif/account-portal/internal/model"
	"github.com/sakif/account-portal/internal/supabase"
)

// PageHandler serves the loaders shared by every page.
type PageHandler struct {
	users  Users
	logger *slog.Logger
}

func NewPageHandler(users Users, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		users:  users,
		logger: logger,
	}
}

type layoutData struct {
	Session *supabase.Session `json:"session"`
	User    *model.User       `json:"user,omitempty"`
}

// Layout is the loader that runs on every page render. It attaches the
// signed-in user's row when there is one; otherwise only the (possibly
// null) session.
//
// HTTP: GET /layout
func (h *PageHandler) Layout(w http.ResponseWriter, r *http.Request) {
	res := auth.SafeGetSession(r.Context())
	data := layoutData{Session: res.Session}

	if res.User != nil {
		data.User = h.users.GetByID(r.Context(), res.User.ID)
	}
	writeJSON(w, http.StatusOK, data)
}

// Errors passes the "error" query parameter through to the error page.
//
// HTTP: GET /errors?error=message
func (h *PageHandler) Errors(w http.ResponseWriter, r *http.Request) {
	var msg *string
	if vals, ok := r.URL.Query()["error"]; ok && len(vals) > 0 {
		msg = &vals[0]
	}
	writeJSON(w, http.StatusOK, map[string]*string{"error": msg})
}

// Health is the liveness probe.
//
// HTTP: GET /healthz
func (h *PageHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
