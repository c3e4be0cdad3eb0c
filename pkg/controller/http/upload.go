package http

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/infra/mapsapi"
	"github.com/m-mizutani/mapsdrop/pkg/usecase"
	"github.com/m-mizutani/mapsdrop/pkg/utils/errutil"
)

const multipartMemory = 32 << 20

// UploadHandler serves the upload form, the upload itself and the status page
type UploadHandler struct {
	uploadUC      interfaces.UploadUseCase
	auth          *AuthHandler
	render        *renderer
	maxUploadSize int64
}

func newUploadHandler(uploadUC interfaces.UploadUseCase, auth *AuthHandler, render *renderer, maxUploadSize int64) *UploadHandler {
	return &UploadHandler{
		uploadUC:      uploadUC,
		auth:          auth,
		render:        render,
		maxUploadSize: maxUploadSize,
	}
}

// Form renders the upload form with the user's projects
func (h *UploadHandler) Form(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := authFrom(ctx)

	projects, err := h.uploadUC.ListProjects(ctx, a.ts)
	if err != nil {
		if h.auth.handleAuthError(w, r, err) {
			return
		}
		errutil.Handle(ctx, "Failed to list projects", err)
		h.render.page(w, r, http.StatusBadGateway, "upload.html", h.formPage(nil, mapsapi.ErrorMessage(err)))
		return
	}

	h.render.page(w, r, http.StatusOK, "upload.html", h.formPage(projects, ""))
}

func (h *UploadHandler) formPage(projects []*model.Project, msg string) *uploadPage {
	return &uploadPage{
		Projects:  projects,
		Error:     msg,
		MaxSizeMB: h.maxUploadSize >> 20,
	}
}

// Submit unpacks the uploaded archive and forwards it to the mapping API
func (h *UploadHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)
	a := authFrom(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		msg := "Failed to read the upload."
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "The archive is too large."
		}
		logger.Warn("Invalid upload form", "error", err)
		h.renderFormError(w, r, http.StatusBadRequest, msg)
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			logger.Warn("Failed to remove multipart temp files", "error", err)
		}
	}()

	form := &uploadPage{
		ProjectID:   r.FormValue("projects"),
		Description: r.FormValue("description"),
		Tags:        r.FormValue("tags"),
	}
	if form.ProjectID == "" {
		h.renderFormError(w, r, http.StatusBadRequest, "Please choose a project.", form)
		return
	}

	data, filename, err := readFormFile(r, "file_obj")
	if err != nil {
		logger.Warn("Missing archive in upload", "error", err)
		h.renderFormError(w, r, http.StatusBadRequest, "Please choose a zip archive to upload.", form)
		return
	}

	archive, err := usecase.OpenArchive(data)
	if err != nil {
		logger.Warn("Rejected archive", "filename", filename, "error", err)
		h.renderFormError(w, r, http.StatusBadRequest, err.Error(), form)
		return
	}

	req := &model.UploadRequest{
		ProjectID:   form.ProjectID,
		Description: form.Description,
		Tags:        model.SplitTags(form.Tags),
		UserIP:      clientIP(r),
		Archive:     archive,
	}

	result, err := h.uploadUC.Upload(ctx, a.ts, req)
	if err != nil {
		if h.auth.handleAuthError(w, r, err) {
			return
		}
		errutil.Handle(ctx, "Upload failed", err)
		h.renderFormError(w, r, http.StatusBadGateway, mapsapi.ErrorMessage(err), form)
		return
	}

	http.Redirect(w, r, "/status?"+url.Values{"table_id": {result.Table.ID}}.Encode(), http.StatusSeeOther)
}

// renderFormError shows the form again with msg. The project list is
// reloaded on a best effort basis so the form stays usable.
func (h *UploadHandler) renderFormError(w http.ResponseWriter, r *http.Request, status int, msg string, prev ...*uploadPage) {
	p := h.formPage(nil, msg)
	if len(prev) > 0 && prev[0] != nil {
		p.ProjectID = prev[0].ProjectID
		p.Description = prev[0].Description
		p.Tags = prev[0].Tags
	}

	if a := authFrom(r.Context()); a != nil {
		if projects, err := h.uploadUC.ListProjects(r.Context(), a.ts); err == nil {
			p.Projects = projects
		}
	}

	h.render.page(w, r, status, "upload.html", p)
}

// Status renders the state of an uploaded table
func (h *UploadHandler) Status(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := authFrom(ctx)

	tableID := r.URL.Query().Get("table_id")
	if tableID == "" {
		h.render.page(w, r, http.StatusBadRequest, "status.html", &statusPage{Error: "table_id is required"})
		return
	}

	table, err := h.uploadUC.GetStatus(ctx, a.ts, tableID)
	if err != nil {
		if h.auth.handleAuthError(w, r, err) {
			return
		}
		errutil.Handle(ctx, "Failed to get table status", err)
		h.render.page(w, r, http.StatusBadGateway, "status.html", &statusPage{
			TableID: tableID,
			Error:   mapsapi.ErrorMessage(err),
		})
		return
	}

	h.render.page(w, r, http.StatusOK, "status.html", &statusPage{
		TableID: tableID,
		Table:   table,
	})
}

// Projects returns the user's projects as JSON
func (h *UploadHandler) Projects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a := authFrom(ctx)

	projects, err := h.uploadUC.ListProjects(ctx, a.ts)
	if err != nil {
		if h.auth.handleAuthError(w, r, err) {
			return
		}
		errutil.Handle(ctx, "Failed to list projects", err)
		writeError(w, r, goerr.New(mapsapi.ErrorMessage(err)), http.StatusBadGateway)
		return
	}
	if projects == nil {
		projects = []*model.Project{}
	}

	writeJSON(w, r, http.StatusOK, projects)
}

func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to get form file", goerr.V("field", field))
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", goerr.Wrap(err, "failed to read form file", goerr.V("field", field))
	}
	return data, header.Filename, nil
}

// clientIP returns the caller address. middleware.RealIP has already replaced
// RemoteAddr when the request came through a proxy.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
