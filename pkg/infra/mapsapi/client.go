package mapsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/utils/metrics"
	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

const (
	// DefaultBaseURL is the public endpoint of the mapping API
	DefaultBaseURL = "https://www.googleapis.com"

	// Scope is the OAuth scope required for all operations
	Scope = "https://www.googleapis.com/auth/mapsengine"

	projectsPath = "/mapsengine/v1/projects"
	tablesPath   = "/mapsengine/create_tt/tables/"
	filesPath    = "/upload/mapsengine/create_tt/tables/"

	// DefaultUserIP is sent as X-User-IP when the caller address is unknown
	DefaultUserIP = "0:0:0:0:0:0:0:2"
)

// ErrNoTableID is returned when table creation succeeded at the HTTP level but
// the response carried no asset id.
var ErrNoTableID = errors.New("mapping API returned no table id")

type client struct {
	httpClient *http.Client
	baseURL    string
	userIP     string
	metrics    *metrics.Metrics
}

// Option configures the client
type Option func(*client)

// WithBaseURL overrides DefaultBaseURL
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithDefaultUserIP overrides DefaultUserIP
func WithDefaultUserIP(ip string) Option {
	return func(c *client) {
		if ip != "" {
			c.userIP = ip
		}
	}
}

// WithMetrics records every API call
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *client) {
		c.metrics = m
	}
}

// NewClient creates a client that sends requests with httpClient
func NewClient(httpClient *http.Client, opts ...Option) interfaces.MapsAPI {
	c := &client{
		httpClient: httpClient,
		baseURL:    DefaultBaseURL,
		userIP:     DefaultUserIP,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewFactory returns a MapsAPIFactory that authorizes requests with the given
// token source
func NewFactory(opts ...Option) interfaces.MapsAPIFactory {
	return func(ts oauth2.TokenSource) interfaces.MapsAPI {
		return NewClient(oauth2.NewClient(context.Background(), ts), opts...)
	}
}

type projectList struct {
	Projects []*model.Project `json:"projects"`
}

// ListProjects lists projects the authorized user can access
func (c *client) ListProjects(ctx context.Context) ([]*model.Project, error) {
	var resp projectList
	if err := c.do(ctx, "list_projects", http.MethodGet, c.baseURL+projectsPath, nil, "", &resp); err != nil {
		return nil, goerr.Wrap(err, "failed to list projects")
	}
	return resp.Projects, nil
}

// CreateTable creates an empty table asset that expects the files listed in meta
func (c *client) CreateTable(ctx context.Context, projectID string, meta *model.TableMetadata) (*model.Table, error) {
	body, err := json.Marshal(meta)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal table metadata")
	}

	q := url.Values{"projectId": {projectID}}
	endpoint := c.baseURL + tablesPath + "upload?" + q.Encode()

	var table model.Table
	if err := c.do(ctx, "create_table", http.MethodPost, endpoint, bytes.NewReader(body), "application/json", &table); err != nil {
		return nil, goerr.Wrap(err, "failed to create table", goerr.V("project_id", projectID))
	}
	if table.ID == "" {
		return nil, goerr.Wrap(ErrNoTableID, "table creation failed", goerr.V("project_id", projectID))
	}

	ctxlog.From(ctx).Info("Created empty table",
		"table_id", table.ID,
		"project_id", projectID,
		"name", meta.Name,
	)
	return &table, nil
}

// UploadFile uploads the content of one file of a table
func (c *client) UploadFile(ctx context.Context, tableID, filename, userIP string, size int64, content io.Reader) error {
	q := url.Values{"filename": {filename}}
	endpoint := c.baseURL + filesPath + url.PathEscape(tableID) + "/files?" + q.Encode()

	if size == 0 {
		content = http.NoBody
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, content)
	if err != nil {
		return goerr.Wrap(err, "failed to create upload request", goerr.V("filename", filename))
	}
	// the upload endpoint rejects chunked bodies
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")
	if userIP == "" {
		userIP = c.userIP
	}
	req.Header.Set("X-User-IP", userIP)

	ctxlog.From(ctx).Debug("Uploading file", "url", endpoint)

	if err := c.send(req, "upload_file", nil); err != nil {
		return goerr.Wrap(err, "failed to upload file",
			goerr.V("table_id", tableID),
			goerr.V("filename", filename),
		)
	}
	return nil
}

// GetTable retrieves a table asset
func (c *client) GetTable(ctx context.Context, tableID string) (*model.Table, error) {
	var table model.Table
	endpoint := c.baseURL + tablesPath + url.PathEscape(tableID)
	if err := c.do(ctx, "get_table", http.MethodGet, endpoint, nil, "", &table); err != nil {
		return nil, goerr.Wrap(err, "failed to get table", goerr.V("table_id", tableID))
	}
	return &table, nil
}

func (c *client) do(ctx context.Context, op, method, endpoint string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return goerr.Wrap(err, "failed to create request", goerr.V("url", endpoint))
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return c.send(req, op, out)
}

func (c *client) send(req *http.Request, op string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ObserveAPICall(op, 0)
		return goerr.Wrap(err, "request to mapping API failed", goerr.V("url", req.URL.String()))
	}
	defer resp.Body.Close()

	c.metrics.ObserveAPICall(op, resp.StatusCode)

	// CheckResponse keeps the raw body in the error so it can be shown to the user
	if err := googleapi.CheckResponse(resp); err != nil {
		return err
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerr.Wrap(err, "failed to decode mapping API response", goerr.V("url", req.URL.String()))
	}
	return nil
}

// ErrorMessage extracts a user facing message from an error returned by the
// client. Remote errors yield the API's own message.
func ErrorMessage(err error) string {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		if apiErr.Body != "" {
			return apiErr.Body
		}
		return http.StatusText(apiErr.Code)
	}
	if errors.Is(err, ErrNoTableID) {
		return ErrNoTableID.Error()
	}
	return err.Error()
}
