package api

import (
	"errors"
	"net/http"

	"github.com/jacentio/weft/engine"
	"github.com/jacentio/weft/store"
)

// userExists answers 1 or 0 per the Weave user API convention.
func (h *Handler) userExists(w http.ResponseWriter, r *http.Request) {
	_, err := h.accounts.Get(r.Context(), r.PathValue("user"))
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusOK, 0)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, 1)
}

func (h *Handler) userCreate(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("user")
	account, password, err := h.accounts.Create(r.Context(), name)
	if errors.Is(err, engine.ErrAccountExists) {
		writeError(w, http.StatusBadRequest, "account already exists")
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	h.logger.Info("account created", "account", account.Name, "uid", account.UID)
	writeJSON(w, http.StatusOK, map[string]string{
		"uid":      account.UID,
		"password": password,
	})
}

func (h *Handler) userDelete(w http.ResponseWriter, r *http.Request, account *store.Account) {
	if err := h.accounts.Delete(r.Context(), account.Name); err != nil {
		h.internalError(w, r, err)
		return
	}
	h.logger.Info("account deleted", "account", account.Name)
	writeJSON(w, http.StatusOK, 0)
}

func (h *Handler) userPassword(w http.ResponseWriter, r *http.Request, account *store.Account) {
	password, err := h.accounts.ResetPassword(r.Context(), account.Name)
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"password": password})
}

// userNode returns the storage node for the account. Single-node
// deployment: every account lives here.
func (h *Handler) userNode(w http.ResponseWriter, r *http.Request) {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(scheme + "://" + r.Host + "/"))
}
