package internal

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
)

// PageTitle is the heading of the form page
const PageTitle = "Code → Chart Magic!"

//go:embed templates/*.html
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html"))

// LanguageOption is one entry of the language selector
type LanguageOption struct {
	Value    Language
	Label    string
	Selected bool
}

// PageView is the data rendered into the form page
type PageView struct {
	Title     string
	Token     string
	State     State
	Languages []LanguageOption
	// ReportImageErrors is false once an image failure has been reported,
	// so a broken image does not post the failure again on every render.
	ReportImageErrors bool
}

// NewPageView builds the view for a form's current state
func NewPageView(token string, state State) PageView {
	options := make([]LanguageOption, 0, len(Languages))
	for _, lang := range Languages {
		options = append(options, LanguageOption{
			Value:    lang,
			Label:    lang.Label(),
			Selected: lang == state.Language,
		})
	}
	return PageView{
		Title:             PageTitle,
		Token:             token,
		State:             state,
		Languages:         options,
		ReportImageErrors: state.Error != MessageImageLoadFailed,
	}
}

// RenderPage writes the form page. Rendering happens into a buffer first so
// a template failure still produces a clean error response.
func RenderPage(w http.ResponseWriter, view PageView, statusCode int) error {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, view); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	_, err := buf.WriteTo(w)
	return err
}
