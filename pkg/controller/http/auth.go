package http

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/interfaces"
	"github.com/m-mizutani/mapsdrop/pkg/domain/types"
	"github.com/m-mizutani/mapsdrop/pkg/utils/errutil"
	"golang.org/x/oauth2"
)

// errTokenSource marks errors from the session's token source. The stored
// credentials can no longer be used once it shows up.
var errTokenSource = errors.New("session credentials are unusable")

type ctxKeyAuth struct{}

type authContext struct {
	sid types.SessionID
	ts  oauth2.TokenSource
}

func withAuth(ctx context.Context, a *authContext) context.Context {
	return context.WithValue(ctx, ctxKeyAuth{}, a)
}

func authFrom(ctx context.Context) *authContext {
	if a, ok := ctx.Value(ctxKeyAuth{}).(*authContext); ok {
		return a
	}
	return nil
}

// AuthHandler runs the OAuth 2.0 authorization code flow and keeps one token
// per browser session.
type AuthHandler struct {
	oauth    *oauth2.Config
	sessions *sessionManager
	store    interfaces.TokenStore
	render   *renderer
}

func newAuthHandler(oauth *oauth2.Config, sessions *sessionManager, store interfaces.TokenStore, render *renderer) *AuthHandler {
	return &AuthHandler{
		oauth:    oauth,
		sessions: sessions,
		store:    store,
		render:   render,
	}
}

// authCodeURL returns the provider URL that brings the user back to returnTo
func (h *AuthHandler) authCodeURL(sid types.SessionID, returnTo string) (string, error) {
	state, err := h.sessions.issueState(sid, returnTo)
	if err != nil {
		return "", err
	}
	// forcing consent makes the provider issue a refresh token on every grant
	return h.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Home sends authorized users to the upload form and shows everyone else
// the grant page.
func (h *AuthHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sid, err := h.sessions.ensure(w, r)
	if err != nil {
		h.render.internalError(w, r, goerr.Wrap(err, "failed to start session"))
		return
	}

	token, err := h.store.Get(ctx, sid)
	if err != nil {
		h.render.internalError(w, r, goerr.Wrap(err, "failed to load credentials"))
		return
	}
	if token != nil {
		http.Redirect(w, r, "/upload", http.StatusFound)
		return
	}

	authURL, err := h.authCodeURL(sid, "/upload")
	if err != nil {
		h.render.internalError(w, r, err)
		return
	}

	h.render.page(w, r, http.StatusOK, "grant.html", &grantPage{URL: authURL})
}

// Callback completes the authorization code flow
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)
	q := r.URL.Query()

	if reason := q.Get("error"); reason != "" {
		logger.Warn("Authorization was not granted", "reason", reason)
		h.render.page(w, r, http.StatusForbidden, "grant.html", &grantPage{
			URL:   "/",
			Error: "Authorization was not granted: " + reason,
		})
		return
	}

	sid := h.sessions.load(r)
	if sid == "" {
		h.render.page(w, r, http.StatusBadRequest, "grant.html", &grantPage{
			URL:   "/",
			Error: "Your session has expired. Please start again.",
		})
		return
	}

	returnTo, err := h.sessions.verifyState(sid, q.Get("state"))
	if err != nil {
		logger.Warn("Invalid OAuth state", "error", err)
		h.render.page(w, r, http.StatusBadRequest, "grant.html", &grantPage{
			URL:   "/",
			Error: "The authorization request is invalid or has expired. Please start again.",
		})
		return
	}

	token, err := h.oauth.Exchange(ctx, q.Get("code"))
	if err != nil {
		errutil.Handle(ctx, "Failed to exchange authorization code", err)
		h.render.page(w, r, http.StatusBadGateway, "grant.html", &grantPage{
			URL:   "/",
			Error: "Failed to obtain credentials from the identity provider.",
		})
		return
	}

	if err := h.store.Put(ctx, sid, token); err != nil {
		h.render.internalError(w, r, goerr.Wrap(err, "failed to store credentials"))
		return
	}

	logger.Info("User authorized", "session_id", sid, "return_to", returnTo)
	http.Redirect(w, r, returnTo, http.StatusFound)
}

// Logout drops the session's credentials
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sid := h.sessions.load(r); sid != "" {
		if err := h.store.Delete(r.Context(), sid); err != nil {
			h.render.internalError(w, r, goerr.Wrap(err, "failed to delete credentials"))
			return
		}
	}
	http.Redirect(w, r, "/", http.StatusFound)
}

// RequireAuth makes the session's credentials available to next. Requests
// without credentials are sent to the identity provider and come back to the
// requested page afterwards.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		sid, err := h.sessions.ensure(w, r)
		if err != nil {
			h.render.internalError(w, r, goerr.Wrap(err, "failed to start session"))
			return
		}

		token, err := h.store.Get(ctx, sid)
		if err != nil {
			h.render.internalError(w, r, goerr.Wrap(err, "failed to load credentials"))
			return
		}

		if token == nil {
			returnTo := r.URL.Path
			if r.Method == http.MethodGet {
				returnTo = r.URL.RequestURI()
			}
			authURL, err := h.authCodeURL(sid, returnTo)
			if err != nil {
				h.render.internalError(w, r, err)
				return
			}
			http.Redirect(w, r, authURL, http.StatusFound)
			return
		}

		ts := &storingTokenSource{
			ctx:   ctx,
			sid:   sid,
			store: h.store,
			last:  token.AccessToken,
			base:  oauth2.ReuseTokenSource(token, h.oauth.TokenSource(ctx, token)),
		}

		next.ServeHTTP(w, r.WithContext(withAuth(ctx, &authContext{sid: sid, ts: ts})))
	})
}

// handleAuthError drops the stored token and sends the user back to the home
// page when err came from the session's token source, e.g. a rejected refresh
// or an expired token without refresh token. It reports whether it handled
// the error.
func (h *AuthHandler) handleAuthError(w http.ResponseWriter, r *http.Request, err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if !errors.Is(err, errTokenSource) && !errors.As(err, &retrieveErr) {
		return false
	}

	ctx := r.Context()
	ctxlog.From(ctx).Warn("Token refresh failed, dropping credentials", "error", err)
	if a := authFrom(ctx); a != nil {
		if delErr := h.store.Delete(ctx, a.sid); delErr != nil {
			errutil.Handle(ctx, "Failed to delete credentials", delErr)
		}
	}

	http.Redirect(w, r, "/", http.StatusFound)
	return true
}

// storingTokenSource writes refreshed tokens back to the token store
type storingTokenSource struct {
	ctx   context.Context
	sid   types.SessionID
	store interfaces.TokenStore
	base  oauth2.TokenSource

	mu   sync.Mutex
	last string
}

func (x *storingTokenSource) Token() (*oauth2.Token, error) {
	token, err := x.base.Token()
	if err != nil {
		return nil, &tokenSourceError{err: err}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if token.AccessToken != x.last {
		if err := x.store.Put(x.ctx, x.sid, token); err != nil {
			return nil, goerr.Wrap(err, "failed to store refreshed token")
		}
		x.last = token.AccessToken
	}
	return token, nil
}

type tokenSourceError struct {
	err error
}

func (x *tokenSourceError) Error() string { return "token source: " + x.err.Error() }

func (x *tokenSourceError) Unwrap() []error { return []error{errTokenSource, x.err} }
