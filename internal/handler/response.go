package handler

// RESPONSE HELPERS:
// Every loader and action answers in one of three shapes:
//
//	page data:     writeJSON(w, http.StatusOK, data)
//	form failure:  writeJSON(w, status, map[string]string{"error": "..."})
//	navigation:    http.Redirect(w, r, target, http.StatusSeeOther)
//
// Failures never expose provider or database details. Those are logged and
// the browser gets one of the fixed messages below.

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
)

const (
	msgInvalidLogin       = "Invalid username or password"
	msgInvalidCredentials = "Invalid credentials"
	msgServerError        = "Server error. Try again later."
	msgEmailInUse         = "Email already in use."
	msgUsernameInUse      = "Username already in use."
	msgPasswordMismatch   = "Passwords do not match"
	msgFileTooLarge       = "File too large."
)

// writeJSON sends a JSON response with the given status code.
// Headers must be set before WriteHeader; once the body starts they are sent.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// headers are already sent, all we can do is log
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeServerError is the generic 500 for failures the user can't fix.
func writeServerError(w http.ResponseWriter) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"message": msgServerError})
}

// redirectError sends the browser to the error page with msg in the query.
func redirectError(w http.ResponseWriter, r *http.Request, msg string) {
	target := "/errors"
	if msg != "" {
		target += "?" + url.Values{"error": {msg}}.Encode()
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}
