package types

// SessionID identifies one browser session. Credentials are stored per session.
type SessionID string

func (x SessionID) String() string {
	return string(x)
}
