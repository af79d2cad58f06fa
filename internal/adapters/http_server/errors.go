package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"hotel_listing/internal/domain"
)

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`

	// set for rejected lifecycle actions
	Action        string `json:"action,omitempty"`
	CurrentStatus string `json:"currentStatus,omitempty"`
	// set for validation failures
	Field string `json:"field,omitempty"`
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain error kinds onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		te *domain.TransitionError
		se *domain.StateError
		ve *domain.ValidationError
		ce *domain.StatusConflictError
	)
	switch {
	case errors.As(err, &te):
		writeProblemBody(w, problem{
			Type: "about:blank", Title: "Invalid Transition", Status: http.StatusConflict,
			Detail: err.Error(), Action: string(te.Action), CurrentStatus: string(te.Current),
		})
	case errors.As(err, &se):
		writeProblemBody(w, problem{
			Type: "about:blank", Title: "Invalid State", Status: http.StatusConflict,
			Detail: err.Error(), CurrentStatus: string(se.Current),
		})
	case errors.As(err, &ce):
		writeProblemBody(w, problem{
			Type: "about:blank", Title: "Conflict", Status: http.StatusConflict,
			Detail: err.Error(), CurrentStatus: string(ce.Current),
		})
	case errors.As(err, &ve):
		writeProblemBody(w, problem{
			Type: "about:blank", Title: "Validation Failed", Status: http.StatusBadRequest,
			Detail: err.Error(), Field: ve.Field,
		})
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	default:
		log.Error().Err(err).Str("route", routePattern(r)).Str("method", r.Method).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "unexpected error")
	}
}

func badRequest(w http.ResponseWriter, format string, args ...any) {
	writeProblem(w, http.StatusBadRequest, "Bad Request", fmt.Sprintf(format, args...))
}
