// Package session keeps server-side login state and resolves the AuthContext
// of each request from a signed session cookie.
package session

import "github.com/labstack/echo/v4"

const ctxAuthKey = "auth"

// AuthContext is the identity a request acts as. A nil UserID means anonymous.
type AuthContext struct {
	UserID    *uint
	Username  string
	SessionID string
}

func Anonymous() AuthContext { return AuthContext{} }

func Authenticated(s *Session) AuthContext {
	id := s.UserID
	return AuthContext{UserID: &id, Username: s.Username, SessionID: s.ID}
}

func (a AuthContext) Authenticated() bool { return a.UserID != nil }

// IsUser reports whether the request acts as user id.
func (a AuthContext) IsUser(id uint) bool {
	return a.UserID != nil && *a.UserID == id
}

func SetEcho(c echo.Context, a AuthContext) {
	c.Set(ctxAuthKey, a)
}

func FromEcho(c echo.Context) AuthContext {
	if a, ok := c.Get(ctxAuthKey).(AuthContext); ok {
		return a
	}
	return Anonymous()
}
