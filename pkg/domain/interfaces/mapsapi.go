package interfaces

import (
	"context"
	"io"

	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"golang.org/x/oauth2"
)

// MapsAPI defines operations against the remote mapping data API
type MapsAPI interface {
	// ListProjects lists projects the authorized user can access
	ListProjects(ctx context.Context) ([]*model.Project, error)

	// CreateTable creates an empty table asset that expects the files listed in meta
	CreateTable(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error)

	// UploadFile uploads the content of one file of a table created by CreateTable.
	// size is sent as the request Content-Length.
	UploadFile(ctx context.Context, tableID, filename, userIP string, size int64, content io.Reader) error

	// GetTable retrieves a table asset
	GetTable(ctx context.Context, tableID string) (*model.Table, error)
}

// MapsAPIFactory binds a MapsAPI to the credentials of one user
type MapsAPIFactory func(ts oauth2.TokenSource) MapsAPI
