package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// maxRequestBytes bounds every form post and JSON request body
const maxRequestBytes = 1 << 20

// App holds the dependencies shared by the HTTP handlers
type App struct {
	store          *Store
	tokens         *Tokens
	metrics        *Metrics
	logger         logrus.FieldLogger
	allowedOrigins []string
}

// NewApp wires the form store, page tokens and metrics. When executor is nil
// a BackendClient for cfg.BackendURL is used.
func NewApp(cfg Config, executor Executor, logger logrus.FieldLogger) (*App, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	metrics := NewMetrics()
	if executor == nil {
		executor = NewBackendClient(cfg.BackendURL, &http.Client{Timeout: cfg.BackendTimeout}, metrics, logger)
	}
	tokens, err := NewTokens(cfg.PageTokenSecret)
	if err != nil {
		return nil, err
	}
	store := NewStore(cfg.FormIdleTTL, cfg.MaxForms, func() *Form {
		return NewForm(executor, metrics, logger)
	}, metrics, logger)

	return &App{
		store:          store,
		tokens:         tokens,
		metrics:        metrics,
		logger:         logger,
		allowedOrigins: cfg.AllowedOrigins,
	}, nil
}

// Store returns the form store
func (a *App) Store() *Store {
	return a.store
}

// SetupRouter configures and returns the application router
func (a *App) SetupRouter() *mux.Router {
	r := mux.NewRouter()

	// Add global middlewares
	r.Use(LoggingMiddleware(a.logger))

	// Page routes
	r.HandleFunc("/", a.homeHandler).Methods(http.MethodGet)
	pages := r.PathPrefix("/forms/{token}").Subrouter()
	pages.Use(FormMiddleware(a.tokens, a.store, missingFormPage))
	pages.HandleFunc("", a.formPostHandler).Methods(http.MethodPost)
	pages.HandleFunc("/image-error", a.imageErrorPageHandler).Methods(http.MethodPost)

	// JSON API
	api := r.PathPrefix("/api").Subrouter()
	api.Use(CorsMiddleware(a.allowedOrigins))
	api.HandleFunc("/forms", a.createFormHandler).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/guidance/{language}", a.guidanceHandler).Methods(http.MethodGet, http.MethodOptions)

	forms := api.PathPrefix("/forms/{token}").Subrouter()
	forms.Use(FormMiddleware(a.tokens, a.store, missingFormJSON))
	forms.HandleFunc("", a.getFormHandler).Methods(http.MethodGet, http.MethodOptions)
	forms.HandleFunc("/language", a.selectLanguageHandler).Methods(http.MethodPut, http.MethodOptions)
	forms.HandleFunc("/code", a.editCodeHandler).Methods(http.MethodPut, http.MethodOptions)
	forms.HandleFunc("/submit", a.submitHandler).Methods(http.MethodPost, http.MethodOptions)
	forms.HandleFunc("/image-error", a.imageErrorHandler).Methods(http.MethodPost, http.MethodOptions)

	// Operational routes
	r.HandleFunc("/healthz", healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", a.metrics.Handler()).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	EncodeJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}

// newForm opens a form and signs a token for it
func (a *App) newForm() (string, *Form, error) {
	id, form := a.store.Create()
	token, err := a.tokens.Issue(id)
	if err != nil {
		a.store.Delete(id)
		return "", nil, err
	}
	return token, form, nil
}

// decodeJSON reads a bounded JSON body into v. On failure it has already
// written the error response.
func (a *App) decodeJSON(w http.ResponseWriter, r *http.Request, endpoint string, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		LogResponse(a.logger, endpoint, "Invalid request format", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			EncodeError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		EncodeError(w, "Invalid request format", http.StatusBadRequest)
		return false
	}
	return true
}

// parsePostForm reads a bounded urlencoded body
func (a *App) parsePostForm(w http.ResponseWriter, r *http.Request, endpoint string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBytes)
	if err := r.ParseForm(); err != nil {
		LogResponse(a.logger, endpoint, "Invalid form body", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		http.Error(w, "Invalid form body", http.StatusBadRequest)
		return false
	}
	return true
}

// formLogger tags log lines with the id of the form in the request context
func (a *App) formLogger(r *http.Request) logrus.FieldLogger {
	id, _ := GetFormIDFromContext(r.Context())
	return a.logger.WithField("form", id)
}

func (a *App) renderForm(w http.ResponseWriter, r *http.Request, endpoint string, form *Form, statusCode int) {
	view := NewPageView(mux.Vars(r)["token"], form.State())
	if err := RenderPage(w, view, statusCode); err != nil {
		LogResponse(a.logger, endpoint, "Error rendering page", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}

func (a *App) homeHandler(w http.ResponseWriter, r *http.Request) {
	token, form, err := a.newForm()
	if err != nil {
		LogResponse(a.logger, "/", "Error opening form", err)
		http.Error(w, "Error opening form", http.StatusInternalServerError)
		return
	}

	view := NewPageView(token, form.State())
	if err := RenderPage(w, view, http.StatusOK); err != nil {
		LogResponse(a.logger, "/", "Error rendering page", err)
		http.Error(w, "Error rendering page", http.StatusInternalServerError)
	}
}

func (a *App) formPostHandler(w http.ResponseWriter, r *http.Request) {
	form, _ := GetFormFromContext(r.Context())
	logger := a.formLogger(r)

	if !a.parsePostForm(w, r, "/forms/{token}") {
		return
	}

	// The code edit is kept even when the language is rejected
	if r.PostForm.Has("code") {
		form.EditCode(r.PostForm.Get("code"))
	}
	if r.PostForm.Has("language") {
		raw := r.PostForm.Get("language")
		lang, err := ParseLanguage(raw)
		if err == nil {
			err = form.SelectLanguage(lang)
		}
		if err != nil {
			LogResponse(logger, "/forms/{token}", "Unsupported language: "+raw, err)
			a.renderForm(w, r, "/forms/{token}", form, http.StatusBadRequest)
			return
		}
	}

	if r.PostForm.Get("op") == "submit" {
		LogRequest(logger, "/forms/{token}", "Generate chart")
		form.Submit(r.Context())
	}

	a.renderForm(w, r, "/forms/{token}", form, http.StatusOK)
}

func (a *App) imageErrorPageHandler(w http.ResponseWriter, r *http.Request) {
	form, _ := GetFormFromContext(r.Context())

	if !a.parsePostForm(w, r, "/forms/{token}/image-error") {
		return
	}
	image := r.PostForm.Get("image")
	if !form.ImageLoadFailed(image) {
		LogResponse(a.formLogger(r), "/forms/{token}/image-error", "Ignored failure for "+image, nil)
	}
	a.renderForm(w, r, "/forms/{token}/image-error", form, http.StatusOK)
}

func (a *App) createFormHandler(w http.ResponseWriter, r *http.Request) {
	token, form, err := a.newForm()
	if err != nil {
		LogResponse(a.logger, "/api/forms", "Error opening form", err)
		EncodeError(w, "Error opening form", http.StatusInternalServerError)
		return
	}

	LogResponse(a.logger, "/api/forms", "Form opened", nil)
	EncodeJSON(w, CreateFormResponse{Token: token, State: form.State()}, http.StatusCreated)
}

func (a *App) getFormHandler(w http.ResponseWriter, r *http.Request) {
	form, _ := GetFormFromContext(r.Context())
	EncodeJSON(w, form.State(), http.StatusOK)
}

func (a *App) selectLanguageHandler(w http.ResponseWriter, r *http.Request) {
	form, _ := GetFormFromContext(r.Context())

	var req SelectLanguageRequest
	if !a.decodeJSON(w, r, "/api/forms/{token}/language", &req) {
		return
	}

	lang, err := ParseLanguage(req.Language)
	if err == nil {
		err = form.SelectLanguage(lang)
	}
	if err != nil {
		LogResponse(a.formLogger(r), "/api/forms/{token}/language", "Unsupported language: "+req.Language, err)
		EncodeError(w, "Unsupported language", http.StatusBadRequest)
		return
	}

	EncodeJSON(w, form.State(), http.StatusOK)
}

func (a *App) editCodeHandler(w http.ResponseWriter, r *http.Request) {
	form, _ := GetFormFromContext(r.Context())

	var req EditCodeRequest
	if !a.decodeJSON(w, r, "/api/forms/{token}/code", &req) {
		return
	}
	form.EditCode(req.Code)

	EncodeJSON(w, form.State(), http.StatusOK)
}

func (a *App) submitHandler(w http.ResponseWriter, r *http.Request) {
	form, _ := GetFormFromContext(r.Context())
	logger := a.formLogger(r)

	LogRequest(logger, "/api/forms/{token}/submit", "Generate chart")
	state := form.Submit(r.Context())

	if state.Error != "" {
		LogResponse(logger, "/api/forms/{token}/submit", "Submission failed", errors.New(state.Error))
	} else {
		LogResponse(logger, "/api/forms/{token}/submit", "Chart generated", nil)
	}

	// Submission failures are form state, not API errors
	EncodeJSON(w, state, http.StatusOK)
}

func (a *App) imageErrorHandler(w http.ResponseWriter, r *http.Request) {
	form, _ := GetFormFromContext(r.Context())

	var req ImageErrorRequest
	if !a.decodeJSON(w, r, "/api/forms/{token}/image-error", &req) {
		return
	}
	if !form.ImageLoadFailed(req.Image) {
		LogResponse(a.formLogger(r), "/api/forms/{token}/image-error", fmt.Sprintf("Ignored failure for %q", req.Image), nil)
	}
	EncodeJSON(w, form.State(), http.StatusOK)
}

func (a *App) guidanceHandler(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["language"]

	lang, err := ParseLanguage(raw)
	if err != nil {
		LogResponse(a.logger, "/api/guidance/{language}", "Unsupported language: "+raw, err)
		EncodeError(w, "Unsupported language", http.StatusNotFound)
		return
	}

	text, err := Guidance(lang)
	if err != nil {
		EncodeError(w, "Unsupported language", http.StatusNotFound)
		return
	}
	EncodeJSON(w, GuidanceResponse{Language: lang, Text: text}, http.StatusOK)
}
