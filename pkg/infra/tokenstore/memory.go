package tokenstore

import (
	"context"
	"sync"

	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/types"
	"golang.org/x/oauth2"
)

type memory struct {
	mu     sync.RWMutex
	tokens map[types.SessionID]oauth2.Token
}

// NewMemory creates a token store that lives as long as the process
func NewMemory() interfaces.TokenStore {
	return &memory{
		tokens: make(map[types.SessionID]oauth2.Token),
	}
}

func (x *memory) Get(ctx context.Context, sid types.SessionID) (*oauth2.Token, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	token, ok := x.tokens[sid]
	if !ok {
		return nil, nil
	}
	return &token, nil
}

func (x *memory) Put(ctx context.Context, sid types.SessionID, token *oauth2.Token) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.tokens[sid] = *token
	return nil
}

func (x *memory) Delete(ctx context.Context, sid types.SessionID) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.tokens, sid)
	return nil
}
