// Package api exposes the sync store over the Weave 1.0 HTTP surface.
package api

import (
	"log/slog"
	"net/http"

	"github.com/jacentio/weft/engine"
)

// Handler routes Weave storage and user API requests to the engine.
type Handler struct {
	records  *engine.Records
	cols     *engine.Collections
	accounts *engine.Accounts
	logger   *slog.Logger
	mux      *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(records *engine.Records, cols *engine.Collections, accounts *engine.Accounts, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		records:  records,
		cols:     cols,
		accounts: accounts,
		logger:   logger,
		mux:      http.NewServeMux(),
	}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) routes() {
	// Storage API (authenticated)
	h.mux.HandleFunc("GET /sync/1.0/{user}/info/collections", h.authed(h.infoCollections))
	h.mux.HandleFunc("GET /sync/1.0/{user}/info/collection_counts", h.authed(h.infoCollectionCounts))
	h.mux.HandleFunc("GET /sync/1.0/{user}/info/quota", h.authed(h.infoQuota))
	h.mux.HandleFunc("GET /sync/1.0/{user}/storage/{collection}/{id}", h.authed(h.getItem))
	h.mux.HandleFunc("PUT /sync/1.0/{user}/storage/{collection}/{id}", h.authed(h.putItem))
	h.mux.HandleFunc("DELETE /sync/1.0/{user}/storage/{collection}/{id}", h.authed(h.deleteItem))
	h.mux.HandleFunc("GET /sync/1.0/{user}/storage/{collection}", h.authed(h.getCollection))
	h.mux.HandleFunc("POST /sync/1.0/{user}/storage/{collection}", h.authed(h.postCollection))
	h.mux.HandleFunc("DELETE /sync/1.0/{user}/storage/{collection}", h.authed(h.deleteCollection))
	h.mux.HandleFunc("DELETE /sync/1.0/{user}/storage/{$}", h.authed(h.deleteStorage))

	// User API
	h.mux.HandleFunc("GET /sync/user/1.0/{user}", h.userExists)
	h.mux.HandleFunc("PUT /sync/user/1.0/{user}", h.userCreate)
	h.mux.HandleFunc("DELETE /sync/user/1.0/{user}", h.authed(h.userDelete))
	h.mux.HandleFunc("POST /sync/user/1.0/{user}/password", h.authed(h.userPassword))
	h.mux.HandleFunc("GET /sync/user/1.0/{user}/node/weave", h.userNode)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}
