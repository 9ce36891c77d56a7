package api

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/rs/zerolog/log"

	"offer-config-engine/internal/apperr"
	"offer-config-engine/internal/storage"
)

type errorBody struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{OK: false, Message: msg})
}

// writeError maps err onto the error taxonomy. Unclassified errors are
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Str("kind", string(kind)).Msg("request failed")
	}
	writeMessage(w, status, apperr.Message(err))
}

// clientOf identifies the caller. RemoteAddr has already been rewritten by
// middleware.RealIP when a proxy header is present.
func clientOf(r *http.Request) storage.Client {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return storage.Client{UserAgent: r.UserAgent(), IP: ip}
}
