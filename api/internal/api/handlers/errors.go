package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/zinevault/zinevault/api/internal/core/domain"
)

// ErrorResponse is the body of every non-2xx JSON reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ErrorResponder translates domain errors into HTTP replies.
// Internal causes are logged; clients see them only when ExposeInternal is set.
type ErrorResponder struct {
	Logger         *slog.Logger
	ExposeInternal bool
}

func (e ErrorResponder) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	var maxBytes *http.MaxBytesError

	switch {
	case errors.As(err, &verrs):
		writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{Error: describeValidation(verrs)})
	case errors.Is(err, domain.ErrValidation):
		writeJSONStatus(w, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
	case errors.As(err, &maxBytes):
		writeJSONStatus(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: "Request body too large"})
	case errors.Is(err, domain.ErrNotFound):
		writeJSONStatus(w, http.StatusNotFound, ErrorResponse{Error: "Password not found"})
	case errors.Is(err, domain.ErrAuthentication):
		writeJSONStatus(w, http.StatusUnprocessableEntity, ErrorResponse{Error: "Decryption failed"})
	case errors.Is(err, context.DeadlineExceeded):
		e.log(r, slog.LevelWarn, err)
		writeJSONStatus(w, http.StatusGatewayTimeout, ErrorResponse{Error: "Request timed out"})
	case errors.Is(err, context.Canceled):
		e.log(r, slog.LevelWarn, err)
		writeJSONStatus(w, http.StatusServiceUnavailable, ErrorResponse{Error: "Service busy, retry later"})
	default:
		e.log(r, slog.LevelError, err)
		msg := "Internal server error"
		if e.ExposeInternal {
			msg = err.Error()
		}
		writeJSONStatus(w, http.StatusInternalServerError, ErrorResponse{Error: msg})
	}
}

func (e ErrorResponder) log(r *http.Request, level slog.Level, err error) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Log(r.Context(), level, "request failed",
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
}

func describeValidation(verrs validator.ValidationErrors) string {
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			parts = append(parts, fmt.Sprintf("%s is required", fe.Field()))
		case "min":
			parts = append(parts, fmt.Sprintf("%s must not be empty", fe.Field()))
		default:
			parts = append(parts, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
