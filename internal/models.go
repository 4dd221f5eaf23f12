package internal

import (
	"errors"
	"strings"
)

// Language is a target language the backend knows how to run
type Language string

// Supported languages
const (
	LanguagePython Language = "python"
	LanguageR      Language = "r"
)

// DefaultLanguage is selected when a form is created
const DefaultLanguage = LanguagePython

// Languages lists the supported languages in selector order
var Languages = []Language{LanguagePython, LanguageR}

// ErrUnsupportedLanguage is returned for any language outside Languages
var ErrUnsupportedLanguage = errors.New("unsupported language")

// ParseLanguage converts a raw selector value into a Language
func ParseLanguage(raw string) (Language, error) {
	lang := Language(strings.TrimSpace(raw))
	if !lang.Valid() {
		return "", ErrUnsupportedLanguage
	}
	return lang, nil
}

// Valid reports whether l is one of the supported languages
func (l Language) Valid() bool {
	switch l {
	case LanguagePython, LanguageR:
		return true
	}
	return false
}

// Label is the name shown in the language selector
func (l Language) Label() string {
	switch l {
	case LanguagePython:
		return "Python"
	case LanguageR:
		return "R"
	}
	return string(l)
}

// Messages shown to the user
const (
	MessageChartGenerated  = "Chart generated successfully!"
	MessageImageNotFound   = "Output image not found in backend response"
	MessageSomethingWrong  = "Something went wrong while executing your code"
	MessageImageLoadFailed = "Image failed to load from backend. Check URL and backend server."
)

// ExecuteRequest is the body sent to the backend's /execute endpoint
type ExecuteRequest struct {
	Code     string   `json:"code"`
	Language Language `json:"language"`
}

// ExecuteResponse is the body returned by the backend, on success or failure
type ExecuteResponse struct {
	Image   string `json:"image,omitempty"`
	Error   string `json:"error,omitempty"`
	Details string `json:"details,omitempty"`
}

// ExecuteResult is a successful execution with a resolved image
type ExecuteResult struct {
	ImagePath string
	ImageURL  string
}

// State is a snapshot of a form, safe to render or encode
type State struct {
	Language Language `json:"language"`
	Code     string   `json:"code"`
	Image    string   `json:"image,omitempty"`
	Error    string   `json:"error,omitempty"`
	Success  string   `json:"success,omitempty"`
	Guidance string   `json:"guidance"`
	Pending  bool     `json:"pending"`
}

// CreateFormResponse is returned when a new form is opened through the API
type CreateFormResponse struct {
	Token string `json:"token"`
	State State  `json:"state"`
}

// SelectLanguageRequest represents a language change
type SelectLanguageRequest struct {
	Language string `json:"language"`
}

// EditCodeRequest represents a code edit
type EditCodeRequest struct {
	Code string `json:"code"`
}

// ImageErrorRequest reports that the browser failed to load a chart image
type ImageErrorRequest struct {
	Image string `json:"image"`
}

// GuidanceResponse carries the guidance text for one language
type GuidanceResponse struct {
	Language Language `json:"language"`
	Text     string   `json:"text"`
}

// ErrorResponse is the JSON body of every API error
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}
