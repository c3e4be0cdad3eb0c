package interfaces

import (
	"context"

	"github.com/m-mizutani/mapsdrop/pkg/domain/model"
	"github.com/m-mizutani/mapsdrop/pkg/domain/types"
	"golang.org/x/oauth2"
)

// TokenStore keeps OAuth tokens per browser session
type TokenStore interface {
	// Get returns the stored token, or nil if the session has none
	Get(ctx context.Context, sid types.SessionID) (*oauth2.Token, error)
	Put(ctx context.Context, sid types.SessionID, token *oauth2.Token) error
	Delete(ctx context.Context, sid types.SessionID) error
}

// Notifier announces finished uploads
type Notifier interface {
	NotifyUpload(ctx context.Context, result *model.UploadResult) error
}
