package http

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/domain/types"
	"github.com/m-mizutani/mapsdrop/pkg/utils/errutil"
)

//go:embed templates/*.html
var templateFS embed.FS

var pageNames = []string{
	"grant.html",
	"upload.html",
	"status.html",
	"missing_client.html",
	"error.html",
}

type page struct {
	AppName string
	Version string
	Data    any
}

type grantPage struct {
	URL   string
	Error string
}

type uploadPage struct {
	Projects    []*model.Project
	ProjectID   string
	Description string
	Tags        string
	Error       string
	MaxSizeMB   int64
}

type statusPage struct {
	TableID string
	Table   *model.Table
	Error   string
}

type missingClientPage struct {
	ClientSecrets string
}

type errorPage struct {
	Message string
}

type renderer struct {
	templates map[string]*template.Template
}

func newRenderer() (*renderer, error) {
	x := &renderer{templates: make(map[string]*template.Template)}
	for _, name := range pageNames {
		tmpl, err := template.New(name).ParseFS(templateFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse template", goerr.V("name", name))
		}
		x.templates[name] = tmpl
	}
	return x, nil
}

func (x *renderer) page(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	tmpl, ok := x.templates[name]
	if !ok {
		errutil.Handle(r.Context(), "Unknown template", goerr.New("template not found", goerr.V("name", name)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "layout", &page{
		AppName: types.AppName,
		Version: types.Version,
		Data:    data,
	}); err != nil {
		errutil.Handle(r.Context(), "Failed to render template", goerr.Wrap(err, "render failed", goerr.V("name", name)))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (x *renderer) internalError(w http.ResponseWriter, r *http.Request, err error) {
	errutil.Handle(r.Context(), "Request failed", err)
	x.page(w, r, http.StatusInternalServerError, "error.html", &errorPage{
		Message: "Something went wrong. Please try again later.",
	})
}
