package interfaces

import (
	"context"

	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"golang.org/x/oauth2"
)

// UploadUseCase defines the shapefile upload flow
type UploadUseCase interface {
	// ListProjects lists projects the user can upload to
	ListProjects(ctx context.Context, ts oauth2.TokenSource) ([]*model.Project, error)

	// Upload creates a table from the archive in req and uploads its files
	Upload(ctx context.Context, ts oauth2.TokenSource, req *model.UploadRequest) (*model.UploadResult, error)

	// GetStatus retrieves the current state of an uploaded table
	GetStatus(ctx context.Context, ts oauth2.TokenSource, tableID string) (*model.Table, error)
}
