package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/mapsdrop/pkg/domain/types"
)

const (
	sessionCookieName = "mapsdrop_session"
	sessionTTL        = 30 * 24 * time.Hour
	stateTTL          = 10 * time.Minute

	audienceSession = "session"
	audienceState   = "oauth_state"
	claimReturnTo   = "ret"
)

// sessionManager issues and verifies HS256 signed tokens for the session
// cookie and the OAuth state parameter.
type sessionManager struct {
	key    []byte
	secure bool
	now    func() time.Time
}

func newSessionManager(key []byte, secure bool) *sessionManager {
	return &sessionManager{
		key:    key,
		secure: secure,
		now:    time.Now,
	}
}

func (x *sessionManager) sign(sub, aud string, ttl time.Duration, claims map[string]any) (string, error) {
	now := x.now()
	b := jwt.NewBuilder().
		Issuer(types.AppName).
		Subject(sub).
		Audience([]string{aud}).
		IssuedAt(now).
		Expiration(now.Add(ttl))
	for k, v := range claims {
		b = b.Claim(k, v)
	}

	token, err := b.Build()
	if err != nil {
		return "", goerr.Wrap(err, "failed to build token")
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, x.key))
	if err != nil {
		return "", goerr.Wrap(err, "failed to sign token")
	}
	return string(signed), nil
}

func (x *sessionManager) parse(raw, aud string) (jwt.Token, error) {
	token, err := jwt.Parse([]byte(raw),
		jwt.WithKey(jwa.HS256, x.key),
		jwt.WithValidate(true),
		jwt.WithIssuer(types.AppName),
		jwt.WithAudience(aud),
		jwt.WithClock(jwt.ClockFunc(x.now)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "invalid token", goerr.V("audience", aud))
	}
	return token, nil
}

// load returns the session of the request, or "" when there is no valid cookie
func (x *sessionManager) load(r *http.Request) types.SessionID {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}

	token, err := x.parse(cookie.Value, audienceSession)
	if err != nil {
		return ""
	}
	return types.SessionID(token.Subject())
}

// ensure returns the request's session, starting a new one if needed
func (x *sessionManager) ensure(w http.ResponseWriter, r *http.Request) (types.SessionID, error) {
	if sid := x.load(r); sid != "" {
		return sid, nil
	}

	sid := types.SessionID(uuid.NewString())
	value, err := x.sign(sid.String(), audienceSession, sessionTTL, nil)
	if err != nil {
		return "", err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(sessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   x.secure,
		SameSite: http.SameSiteLaxMode,
	})

	// later handlers in the same request must see the new session
	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: value})
	return sid, nil
}

// issueState binds an OAuth state value to the session and the page to return to
func (x *sessionManager) issueState(sid types.SessionID, returnTo string) (string, error) {
	return x.sign(sid.String(), audienceState, stateTTL, map[string]any{
		claimReturnTo: safeReturnPath(returnTo),
	})
}

// verifyState checks that state was issued for sid and returns the page to return to
func (x *sessionManager) verifyState(sid types.SessionID, state string) (string, error) {
	token, err := x.parse(state, audienceState)
	if err != nil {
		return "", err
	}
	if token.Subject() != sid.String() {
		return "", goerr.New("state was issued for another session")
	}

	ret, _ := token.Get(claimReturnTo)
	s, _ := ret.(string)
	return safeReturnPath(s), nil
}

// safeReturnPath keeps redirects on this site
func safeReturnPath(p string) string {
	if !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") {
		return "/upload"
	}
	return p
}
