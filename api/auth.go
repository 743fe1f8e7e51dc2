package api

import (
	"errors"
	"net/http"

	"github.com/jacentio/weft/engine"
	"github.com/jacentio/weft/store"
)

// authed wraps a handler with basic-auth verification. The authenticated
// account name must match the {user} path segment, so one account can never
// reach into another's URL space.
func (h *Handler) authed(next func(w http.ResponseWriter, r *http.Request, account *store.Account)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}
		if user != r.PathValue("user") {
			unauthorized(w)
			return
		}

		account, err := h.accounts.Authenticate(r.Context(), user, password)
		if errors.Is(err, engine.ErrUnauthorized) {
			unauthorized(w)
			return
		}
		if err != nil {
			h.internalError(w, r, err)
			return
		}
		next(w, r, account)
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="weft-sync"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}
