package usecase

import (
	"context"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/utils/async"
	"github.com/m-mizutani/mapsdrop/pkg/utils/metrics"
	"golang.org/x/oauth2"
)

// DefaultUploadInterval is the pause between two file uploads of one table
const DefaultUploadInterval = time.Second

type uploadUseCase struct {
	newAPI   interfaces.MapsAPIFactory
	notifier interfaces.Notifier
	metrics  *metrics.Metrics
	defaults model.UploadDefaults
	interval time.Duration
}

// UploadOption configures the upload use case
type UploadOption func(*uploadUseCase)

// WithNotifier announces finished uploads through n
func WithNotifier(n interfaces.Notifier) UploadOption {
	return func(uc *uploadUseCase) {
		uc.notifier = n
	}
}

// WithUploadDefaults overrides the access lists and extra tags of created tables
func WithUploadDefaults(d model.UploadDefaults) UploadOption {
	return func(uc *uploadUseCase) {
		uc.defaults = d
	}
}

// WithUploadInterval overrides DefaultUploadInterval
func WithUploadInterval(d time.Duration) UploadOption {
	return func(uc *uploadUseCase) {
		uc.interval = d
	}
}

// WithMetrics records upload outcomes
func WithMetrics(m *metrics.Metrics) UploadOption {
	return func(uc *uploadUseCase) {
		uc.metrics = m
	}
}

// NewUpload creates a new instance of UploadUseCase
func NewUpload(newAPI interfaces.MapsAPIFactory, opts ...UploadOption) interfaces.UploadUseCase {
	uc := &uploadUseCase{
		newAPI:   newAPI,
		defaults: model.DefaultUploadDefaults(),
		interval: DefaultUploadInterval,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// ListProjects lists projects the user can upload to
func (uc *uploadUseCase) ListProjects(ctx context.Context, ts oauth2.TokenSource) ([]*model.Project, error) {
	projects, err := uc.newAPI(ts).ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	return projects, nil
}

// BuildMetadata builds the table metadata sent before any file content
func BuildMetadata(archive *model.ShapefileArchive, req *model.UploadRequest, defaults model.UploadDefaults) *model.TableMetadata {
	baseName := archive.BaseName()

	description := req.Description
	if description == "" {
		description = baseName
	}

	files := make([]model.TableFile, 0, len(archive.Entries))
	for _, name := range archive.Entries {
		files = append(files, model.TableFile{Filename: name})
	}

	tags := []string{baseName, model.AutoUploadTag}
	tags = append(tags, defaults.Tags...)
	tags = append(tags, req.Tags...)

	return &model.TableMetadata{
		Name:                      baseName,
		Description:               description,
		Files:                     files,
		SharedAccessList:          defaults.SharedAccessList,
		SharedPublishedAccessList: defaults.SharedPublishedAccessList,
		Tags:                      tags,
	}
}

// Upload creates an empty table with the archive's metadata, then uploads
// each recognized file in archive order. It stops at the first failure.
func (uc *uploadUseCase) Upload(ctx context.Context, ts oauth2.TokenSource, req *model.UploadRequest) (*model.UploadResult, error) {
	logger := ctxlog.From(ctx)

	if req.Archive == nil {
		return nil, goerr.Wrap(ErrInvalidArchive, "no archive in upload request")
	}
	if len(req.Archive.Entries) < model.MinShapefileEntries {
		return nil, goerr.Wrap(ErrInvalidArchive, "missing some shapefiles", goerr.V("found", req.Archive.Entries))
	}

	api := uc.newAPI(ts)
	meta := BuildMetadata(req.Archive, req, uc.defaults)

	logger.Info("Creating table",
		"project_id", req.ProjectID,
		"name", meta.Name,
		"file_count", len(meta.Files),
		"archive_size", req.Archive.Size,
	)

	table, err := api.CreateTable(ctx, req.ProjectID, meta)
	if err != nil {
		uc.metrics.ObserveUpload("create_failed", 0)
		return nil, err
	}

	var uploaded []string
	for i, name := range req.Archive.Entries {
		if i > 0 {
			if err := wait(ctx, uc.interval); err != nil {
				uc.metrics.ObserveUpload("cancelled", len(uploaded))
				return nil, goerr.Wrap(err, "upload interrupted", goerr.V("table_id", table.ID))
			}
		}

		logger.Info("Uploading file", "table_id", table.ID, "filename", name, "size", req.Archive.EntrySize(name))
		if err := uc.uploadEntry(ctx, api, table.ID, name, req); err != nil {
			uc.metrics.ObserveUpload("file_failed", len(uploaded))
			return nil, err
		}
		uploaded = append(uploaded, name)
	}

	result := &model.UploadResult{
		Table: table,
		Files: uploaded,
	}
	if result.Table.Name == "" {
		result.Table.Name = meta.Name
	}
	uc.metrics.ObserveUpload("success", len(uploaded))

	logger.Info("Uploaded all files", "table_id", table.ID, "file_count", len(uploaded))

	if uc.notifier != nil {
		notifier := uc.notifier
		async.Dispatch(ctx, func(ctx context.Context) error {
			return notifier.NotifyUpload(ctx, result)
		})
	}

	return result, nil
}

func (uc *uploadUseCase) uploadEntry(ctx context.Context, api interfaces.MapsAPI, tableID, name string, req *model.UploadRequest) error {
	rc, err := req.Archive.Open(name)
	if err != nil {
		return err
	}
	defer rc.Close()

	return api.UploadFile(ctx, tableID, name, req.UserIP, req.Archive.EntrySize(name), rc)
}

// GetStatus retrieves the current state of an uploaded table
func (uc *uploadUseCase) GetStatus(ctx context.Context, ts oauth2.TokenSource, tableID string) (*model.Table, error) {
	if tableID == "" {
		return nil, goerr.New("table_id is required")
	}

	table, err := uc.newAPI(ts).GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return table, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
