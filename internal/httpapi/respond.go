package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/zulfie1003/InternTrack/internal/application"
)

func jsonOK(w http.ResponseWriter, v any) {
	jsonStatus(w, http.StatusOK, v)
}

func jsonStatus(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	jsonStatus(w, code, map[string]string{"error": msg})
}

// writeError maps a domain error to its HTTP status. Internal causes are
// logged and replaced by a generic message.
func writeError(w http.ResponseWriter, log *logrus.Entry, err error) {
	var ve *application.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, ve.Msg, http.StatusBadRequest)
	case errors.Is(err, application.ErrNotFound):
		jsonError(w, application.ErrNotFound.Error(), http.StatusNotFound)
	case errors.Is(err, application.ErrUnauthenticated):
		jsonError(w, "unauthenticated", http.StatusUnauthorized)
	default:
		log.WithError(err).Error("request failed")
		jsonError(w, "internal server error", http.StatusInternalServerError)
	}
}

// decodeJSON reads the request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return &application.ValidationError{Msg: "invalid JSON body"}
	}
	return nil
}
