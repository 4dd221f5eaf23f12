package internal

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// CorsMiddleware adds CORS headers for the configured origins
func CorsMiddleware(allowedOrigins []string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			for _, allowed := range allowedOrigins {
				allowed = strings.TrimSpace(allowed)
				if allowed == "*" {
					w.Header().Set("Access-Control-Allow-Origin", "*")
					break
				}
				if origin != "" && allowed == origin {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Add("Vary", "Origin")
					break
				}
			}

			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")

			// Handle preflight OPTIONS request
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware logs information about each request
func LoggingMiddleware(logger logrus.FieldLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Create a custom response writer to capture the status code
			wrw := newResponseWriter(w)

			next.ServeHTTP(wrw, r)

			logger.WithFields(logrus.Fields{
				"remote":   r.RemoteAddr,
				"method":   r.Method,
				"path":     r.URL.Path,
				"status":   wrw.statusCode,
				"duration": time.Since(start),
			}).Info("[API]")
		})
	}
}

// responseWriter is a custom response writer that captures the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// newResponseWriter creates a new responseWriter
func newResponseWriter(w http.ResponseWriter) *responseWriter {
	return &responseWriter{w, http.StatusOK}
}

// WriteHeader captures the status code and calls the underlying WriteHeader
func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// FormMiddleware verifies the page token in the {token} route variable and
// adds the form it names to the request context. onMissing answers requests
// whose token is invalid or whose form has expired.
func FormMiddleware(tokens *Tokens, store *Store, onMissing func(http.ResponseWriter, *http.Request, error)) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Allow OPTIONS requests to pass through
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			id, err := tokens.Verify(mux.Vars(r)["token"])
			if err != nil {
				onMissing(w, r, err)
				return
			}

			form, err := store.Get(id)
			if err != nil {
				onMissing(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(SetFormInContext(r.Context(), id, form)))
		})
	}
}

// missingFormJSON answers API requests for unknown forms
func missingFormJSON(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrInvalidToken) {
		EncodeError(w, "Invalid page token", http.StatusUnauthorized)
		return
	}
	EncodeError(w, "Form not found", http.StatusNotFound)
}

// missingFormPage sends browsers back to a fresh page
func missingFormPage(w http.ResponseWriter, r *http.Request, err error) {
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
