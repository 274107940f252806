package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/vidtube/backend/internal/apierror"
	"github.com/vidtube/backend/internal/auth"
	"github.com/vidtube/backend/internal/logging"
	"github.com/vidtube/backend/internal/models"
	"github.com/vidtube/backend/internal/validation"
)

// maxJSONBody bounds request bodies of JSON endpoints.
const maxJSONBody = 16 << 10

// envelope is the uniform success body.
type envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

type errorEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// apiFunc is a public handler that reports failures by returning them.
type apiFunc func(w http.ResponseWriter, r *http.Request) error

func (fn apiFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := fn(w, r); err != nil {
		WriteError(w, r, err)
	}
}

// protectedFunc is a handler that runs on behalf of an authenticated caller.
type protectedFunc func(w http.ResponseWriter, r *http.Request, caller models.User) error

func (fn protectedFunc) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	caller, ok := auth.UserFromContext(r.Context())
	if !ok {
		WriteError(w, r, apierror.Unauthorized("Unauthorized request"))
		return
	}
	if err := fn(w, r, caller); err != nil {
		WriteError(w, r, err)
	}
}

// WriteError renders err as the error envelope with its mapped status.
// Causes of 5xx errors are logged but never sent to the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := apierror.StatusOf(err)
	message := apierror.MessageOf(err)

	logger := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request rejected", "status", status, "error", err)
	}

	writeJSON(r.Context(), w, status, errorEnvelope{Success: false, Message: message})
}

func respond(ctx context.Context, w http.ResponseWriter, status int, data any, message string) error {
	if data == nil {
		data = struct{}{}
	}
	writeJSON(ctx, w, status, envelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    status < http.StatusBadRequest,
	})
	return nil
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apierror.Wrap(http.StatusRequestEntityTooLarge, "Request body too large", err)
		case errors.Is(err, io.EOF):
			return apierror.BadRequest("Request body is required")
		default:
			return apierror.Wrap(http.StatusBadRequest, "Invalid request body", err)
		}
	}
	return validate(dst)
}

// validate maps field failures onto a 400 carrying every failing field.
func validate(v any) error {
	if err := validation.Struct(v); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return apierror.Wrap(http.StatusBadRequest, verr.Error(), verr)
		}
		return apierror.Internal("Failed to validate request", err)
	}
	return nil
}

// TooManyRequests rejects rate-limited requests.
func TooManyRequests(w http.ResponseWriter, r *http.Request) {
	WriteError(w, r, apierror.New(http.StatusTooManyRequests, "Too many requests, please try again later"))
}
