package api

import (
	"context"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/attribution"
	"offer-config-engine/internal/cache"
	"offer-config-engine/internal/offer"
	"offer-config-engine/internal/storage"
)

const maxBodyBytes = 64 << 10

type OfferService interface {
	Process(ctx context.Context, p attribution.Payload, client storage.Client) (offer.Outcome, error)
	Lookup(ctx context.Context, bundleID, attributionID string) (cache.Offer, error)
}

type ConfigHandler struct {
	offers OfferService
}

func NewConfigHandler(offers OfferService) *ConfigHandler {
	return &ConfigHandler{offers: offers}
}

type configResponse struct {
	OK      bool                `json:"ok"`
	URL     string              `json:"url"`
	Expires int64               `json:"expires"`
	Config  offer.SurfaceConfig `json:"config"`
}

type offerResponse struct {
	OK      bool   `json:"ok"`
	URL     string `json:"url"`
	Expires int64  `json:"expires"`
}

// Config handles POST /api/v1/config.
func (h *ConfigHandler) Config(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, apperr.Wrap(apperr.InvalidPayload, err, "Invalid JSON payload"))
		return
	}
	p, err := attribution.ParsePayload(body)
	if err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.offers.Process(r.Context(), p, clientOf(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	d := out.Decision
	if !d.ServeRemoteSurface {
		writeMessage(w, http.StatusNotFound, "No data")
		return
	}
	writeJSON(w, http.StatusOK, configResponse{
		OK:      true,
		URL:     d.URL,
		Expires: d.ExpiresAt,
		Config:  offer.BuildSurfaceConfig(p, d),
	})
}

// Offer handles GET /api/v1/offers/{bundleID}/{attributionID}.
func (h *ConfigHandler) Offer(w http.ResponseWriter, r *http.Request) {
	o, err := h.offers.Lookup(r.Context(), chi.URLParam(r, "bundleID"), chi.URLParam(r, "attributionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, offerResponse{OK: true, URL: o.URL, Expires: o.ExpiresAt})
}
