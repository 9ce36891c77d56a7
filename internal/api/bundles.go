package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/engine"
)

type BundleURLStore interface {
	LoadBundleURLs(ctx context.Context) ([]engine.BundleURL, error)
	PutBundleURL(ctx context.Context, b engine.BundleURL) error
}

// BundleURLHandler manages per-bundle base URL overrides. Writes refresh
// the URL book right away; the database trigger also notifies the listener
// of other replicas.
type BundleURLHandler struct {
	store BundleURLStore
	book  *engine.URLBook
}

func NewBundleURLHandler(store BundleURLStore, book *engine.URLBook) *BundleURLHandler {
	return &BundleURLHandler{store: store, book: book}
}

type bundleURLBody struct {
	BundleID string `json:"bundle_id"`
	BaseURL  string `json:"base_url"`
}

func (h *BundleURLHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.store.LoadBundleURLs(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]bundleURLBody, 0, len(rows))
	for _, b := range rows {
		out = append(out, bundleURLBody{BundleID: b.BundleID, BaseURL: b.BaseURL})
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bundle_urls": out})
}

// Put handles PUT /api/v1/bundle-urls/{bundleID}.
func (h *BundleURLHandler) Put(w http.ResponseWriter, r *http.Request) {
	var body bundleURLBody
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	bundleID := chi.URLParam(r, "bundleID")
	u, err := url.Parse(body.BaseURL)
	if bundleID == "" || err != nil || u.Scheme == "" || u.Host == "" {
		writeError(w, r, apperr.New(apperr.InvalidPayload, "bundle id and an absolute base_url are required"))
		return
	}

	b := engine.BundleURL{BundleID: bundleID, BaseURL: body.BaseURL}
	if err := h.store.PutBundleURL(r.Context(), b); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.book.BuildSnapshot(r.Context(), h.store); err != nil {
		log.Warn().Err(err).Msg("refresh url book after put")
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "bundle_url": bundleURLBody{BundleID: b.BundleID, BaseURL: b.BaseURL}})
}
