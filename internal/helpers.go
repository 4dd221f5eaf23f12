package internal

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Context utilities for page forms

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// Form context keys
const (
	formKey   contextKey = "form"
	formIDKey contextKey = "formID"
)

// SetFormInContext adds a resolved form and its id to the request context
func SetFormInContext(ctx context.Context, id string, form *Form) context.Context {
	ctx = context.WithValue(ctx, formIDKey, id)
	return context.WithValue(ctx, formKey, form)
}

// GetFormFromContext retrieves the form resolved by FormMiddleware
func GetFormFromContext(ctx context.Context) (*Form, bool) {
	form, ok := ctx.Value(formKey).(*Form)
	return form, ok && form != nil
}

// GetFormIDFromContext retrieves the id of the resolved form
func GetFormIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(formIDKey).(string)
	return id, ok && id != ""
}

// LogRequest logs the request details
func LogRequest(logger logrus.FieldLogger, endpoint, message string) {
	logger.WithField("endpoint", endpoint).Info("[REQUEST] " + message)
}

// LogResponse logs the response details
func LogResponse(logger logrus.FieldLogger, endpoint, message string, err error) {
	entry := logger.WithField("endpoint", endpoint)
	if err != nil {
		entry.WithError(err).Warn("[RESPONSE] " + message)
		return
	}
	entry.Info("[RESPONSE] " + message)
}

// EncodeJSON writes v as a JSON response with the given status code
func EncodeJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// EncodeError writes a JSON error response
func EncodeError(w http.ResponseWriter, message string, statusCode int) {
	EncodeJSON(w, ErrorResponse{Error: message, Status: statusCode}, statusCode)
}
