package usecase_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/usecase"
	"github.com/m-mizutani/mapsdrop/pkg/utils/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/oauth2"
)

// MockMapsAPI is a mock implementation of MapsAPI
type MockMapsAPI struct {
	ListProjectsFunc func(ctx context.Context) ([]*model.Project, error)
	CreateTableFunc  func(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error)
	UploadFileFunc   func(ctx context.Context, tableID, filename, userIP string, size int64, content io.Reader) error
	GetTableFunc     func(ctx context.Context, tableID string) (*model.Table, error)

	mu          sync.Mutex
	uploadCalls []uploadCall
}

type uploadCall struct {
	TableID  string
	Filename string
	UserIP   string
	Size     int64
	Content  string
	At       time.Time
}

func (m *MockMapsAPI) ListProjects(ctx context.Context) ([]*model.Project, error) {
	if m.ListProjectsFunc != nil {
		return m.ListProjectsFunc(ctx)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockMapsAPI) CreateTable(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error) {
	if m.CreateTableFunc != nil {
		return m.CreateTableFunc(ctx, projectID, meta)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockMapsAPI) UploadFile(ctx context.Context, tableID, filename, userIP string, size int64, content io.Reader) error {
	data, err := io.ReadAll(content)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.uploadCalls = append(m.uploadCalls, uploadCall{
		TableID:  tableID,
		Filename: filename,
		UserIP:   userIP,
		Size:     size,
		Content:  string(data),
		At:       time.Now(),
	})
	m.mu.Unlock()

	if m.UploadFileFunc != nil {
		return m.UploadFileFunc(ctx, tableID, filename, userIP, size, content)
	}
	return nil
}

func (m *MockMapsAPI) GetTable(ctx context.Context, tableID string) (*model.Table, error) {
	if m.GetTableFunc != nil {
		return m.GetTableFunc(ctx, tableID)
	}
	return nil, errors.New("mock not configured")
}

func (m *MockMapsAPI) factory() interfaces.MapsAPIFactory {
	return func(ts oauth2.TokenSource) interfaces.MapsAPI { return m }
}

type mockNotifier struct {
	called chan *model.UploadResult
}

func (n *mockNotifier) NotifyUpload(ctx context.Context, result *model.UploadResult) error {
	n.called <- result
	return nil
}

var testTokenSource = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test"})

func openTestArchive(t *testing.T) *model.ShapefileArchive {
	t.Helper()
	archive, err := usecase.OpenArchive(createTestZip(t, shapefileEntries("", "roads")...))
	gt.NoError(t, err)
	return archive
}

func TestBuildMetadata(t *testing.T) {
	archive := openTestArchive(t)

	t.Run("description falls back to base name", func(t *testing.T) {
		meta := usecase.BuildMetadata(archive, &model.UploadRequest{}, model.DefaultUploadDefaults())

		gt.V(t, meta.Name).Equal("roads")
		gt.V(t, meta.Description).Equal("roads")
		gt.V(t, meta.SharedAccessList).Equal("Map Editors")
		gt.V(t, meta.SharedPublishedAccessList).Equal("Map Viewers")
		gt.Equal(t, meta.Tags, []string{"roads", "auto_upload"})
		gt.Equal(t, meta.Files, []model.TableFile{
			{Filename: "roads.shp"},
			{Filename: "roads.dbf"},
			{Filename: "roads.prj"},
			{Filename: "roads.shx"},
		})
	})

	t.Run("request and configured values", func(t *testing.T) {
		defaults := model.UploadDefaults{
			SharedAccessList:          "Editors",
			SharedPublishedAccessList: "Everyone",
			Tags:                      []string{"team-gis"},
		}
		req := &model.UploadRequest{
			Description: "Road network 2014",
			Tags:        model.SplitTags(" transport, ,roads2014 "),
		}
		meta := usecase.BuildMetadata(archive, req, defaults)

		gt.V(t, meta.Description).Equal("Road network 2014")
		gt.V(t, meta.SharedAccessList).Equal("Editors")
		gt.V(t, meta.SharedPublishedAccessList).Equal("Everyone")
		gt.Equal(t, meta.Tags, []string{"roads", "auto_upload", "team-gis", "transport", "roads2014"})
	})
}

func TestUploadUseCase_Upload_Success(t *testing.T) {
	ctx := context.Background()

	var createdMeta *model.TableMetadata
	mock := &MockMapsAPI{
		CreateTableFunc: func(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error) {
			gt.V(t, projectID).Equal("proj-1")
			createdMeta = meta
			return &model.Table{ID: "0123-4567"}, nil
		},
	}
	notifier := &mockNotifier{called: make(chan *model.UploadResult, 1)}
	m := metrics.New()

	uc := usecase.NewUpload(mock.factory(),
		usecase.WithUploadInterval(20*time.Millisecond),
		usecase.WithNotifier(notifier),
		usecase.WithMetrics(m),
	)

	result, err := uc.Upload(ctx, testTokenSource, &model.UploadRequest{
		ProjectID: "proj-1",
		UserIP:    "192.0.2.1",
		Archive:   openTestArchive(t),
	})
	gt.NoError(t, err)
	gt.V(t, result.Table.ID).Equal("0123-4567")
	gt.V(t, result.Table.Name).Equal("roads")
	gt.Equal(t, result.Files, []string{"roads.shp", "roads.dbf", "roads.prj", "roads.shx"})
	gt.V(t, createdMeta.Name).Equal("roads")

	// metadata first, then one upload per file in archive order
	gt.V(t, len(mock.uploadCalls)).Equal(4)
	for i, call := range mock.uploadCalls {
		gt.V(t, call.TableID).Equal("0123-4567")
		gt.V(t, call.Filename).Equal(result.Files[i])
		gt.V(t, call.UserIP).Equal("192.0.2.1")
		if i > 0 {
			gt.True(t, call.At.Sub(mock.uploadCalls[i-1].At) >= 20*time.Millisecond)
		}
	}
	gt.V(t, mock.uploadCalls[1].Content).Equal("dbf content")
	for _, call := range mock.uploadCalls {
		gt.V(t, call.Size).Equal(int64(len(call.Content)))
	}

	select {
	case notified := <-notifier.called:
		gt.V(t, notified.Table.ID).Equal("0123-4567")
	case <-time.After(time.Second):
		t.Fatal("notifier was not called")
	}

	gt.V(t, testutil.ToFloat64(m.Uploads.WithLabelValues("success"))).Equal(1.0)
	gt.V(t, testutil.ToFloat64(m.UploadedFiles)).Equal(4.0)
}

func TestUploadUseCase_Upload_CreateError(t *testing.T) {
	remoteErr := errors.New("Invalid access list")
	mock := &MockMapsAPI{
		CreateTableFunc: func(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error) {
			return nil, remoteErr
		},
	}

	uc := usecase.NewUpload(mock.factory(), usecase.WithUploadInterval(0))
	result, err := uc.Upload(context.Background(), testTokenSource, &model.UploadRequest{
		ProjectID: "proj-1",
		Archive:   openTestArchive(t),
	})

	gt.V(t, result).Nil()
	gt.True(t, errors.Is(err, remoteErr))
	gt.V(t, len(mock.uploadCalls)).Equal(0)
}

func TestUploadUseCase_Upload_StopsAtFirstFailedFile(t *testing.T) {
	mock := &MockMapsAPI{
		CreateTableFunc: func(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error) {
			return &model.Table{ID: "0123-4567"}, nil
		},
		UploadFileFunc: func(ctx context.Context, tableID, filename, userIP string, size int64, content io.Reader) error {
			if filename == "roads.dbf" {
				return errors.New("quota exceeded")
			}
			return nil
		},
	}

	uc := usecase.NewUpload(mock.factory(), usecase.WithUploadInterval(0))
	result, err := uc.Upload(context.Background(), testTokenSource, &model.UploadRequest{
		ProjectID: "proj-1",
		Archive:   openTestArchive(t),
	})

	gt.V(t, result).Nil()
	gt.S(t, err.Error()).Contains("quota exceeded")
	gt.V(t, len(mock.uploadCalls)).Equal(2)
}

func TestUploadUseCase_Upload_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	mock := &MockMapsAPI{
		CreateTableFunc: func(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error) {
			return &model.Table{ID: "0123-4567"}, nil
		},
		UploadFileFunc: func(ctx context.Context, tableID, filename, userIP string, size int64, content io.Reader) error {
			cancel()
			return nil
		},
	}

	uc := usecase.NewUpload(mock.factory(), usecase.WithUploadInterval(time.Minute))
	_, err := uc.Upload(ctx, testTokenSource, &model.UploadRequest{
		ProjectID: "proj-1",
		Archive:   openTestArchive(t),
	})

	gt.True(t, errors.Is(err, context.Canceled))
	gt.V(t, len(mock.uploadCalls)).Equal(1)
}

func TestUploadUseCase_Upload_NoArchive(t *testing.T) {
	uc := usecase.NewUpload((&MockMapsAPI{}).factory())
	_, err := uc.Upload(context.Background(), testTokenSource, &model.UploadRequest{ProjectID: "proj-1"})
	gt.True(t, errors.Is(err, usecase.ErrInvalidArchive))
}

func TestUploadUseCase_GetStatus(t *testing.T) {
	mock := &MockMapsAPI{
		GetTableFunc: func(ctx context.Context, tableID string) (*model.Table, error) {
			return &model.Table{ID: tableID, ProcessingStatus: "complete"}, nil
		},
	}
	uc := usecase.NewUpload(mock.factory())

	table, err := uc.GetStatus(context.Background(), testTokenSource, "0123-4567")
	gt.NoError(t, err)
	gt.V(t, table.ProcessingStatus).Equal("complete")
	gt.V(t, table.CID()).Equal("0123")

	_, err = uc.GetStatus(context.Background(), testTokenSource, "")
	gt.Error(t, err)
}

func TestUploadUseCase_ListProjects(t *testing.T) {
	mock := &MockMapsAPI{
		ListProjectsFunc: func(ctx context.Context) ([]*model.Project, error) {
			return []*model.Project{{ID: "p1", Name: "One"}}, nil
		},
	}
	uc := usecase.NewUpload(mock.factory())

	projects, err := uc.ListProjects(context.Background(), testTokenSource)
	gt.NoError(t, err)
	gt.V(t, len(projects)).Equal(1)
	gt.V(t, projects[0].Name).Equal("One")
}
