package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/christopherklint97/travelpal/internal/planner"
	"github.com/christopherklint97/travelpal/internal/sanitize"
	"github.com/christopherklint97/travelpal/internal/trip"
)

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    int               `json:"code"`
	Message string            `json:"message,omitempty"`
	Fields  []trip.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Code:    status,
		Message: message,
	})
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, message)
}

func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, message)
}

// writeFailure maps a planner error to a status code and a message fit
// for the user. Provider details stay in the log.
func writeFailure(w http.ResponseWriter, err error) {
	var verr *trip.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   http.StatusText(http.StatusBadRequest),
			Code:    http.StatusBadRequest,
			Message: "Please fill in all required fields.",
			Fields:  verr.Fields,
		})
	case errors.Is(err, planner.ErrEmptyMessage):
		writeBadRequest(w, "Please type a message.")
	case errors.Is(err, planner.ErrBusy):
		writeError(w, http.StatusConflict, planner.ReplyBusy)
	case errors.Is(err, planner.ErrNothingToRegenerate):
		writeError(w, http.StatusConflict, "No rejected events to regenerate.")
	case errors.Is(err, planner.ErrEmptyItinerary):
		writeError(w, http.StatusUnprocessableEntity, "The planner returned an empty itinerary. Please try again.")
	case errors.Is(err, planner.ErrNoUpdate), errors.Is(err, sanitize.ErrUnparseable):
		writeError(w, http.StatusBadGateway, "The planner's answer could not be used. Please try again.")
	case planner.IsRetryable(err):
		writeError(w, http.StatusBadGateway, "Failed to generate trip. Please try again.")
	default:
		writeError(w, http.StatusInternalServerError, "Something went wrong.")
	}
}
