package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/logging"
)

const (
	DefaultCookieName = "session"
	DefaultLoginPath  = "/login"
)

// Manager ties the server-side Store to the signed cookie that references it.
type Manager struct {
	Store      Store
	Signer     Signer
	CookieName string
	Secure     bool
	LoginPath  string
}

func NewManager(store Store, secret []byte, secure bool) *Manager {
	return &Manager{
		Store:      store,
		Signer:     Signer{Secret: secret},
		CookieName: DefaultCookieName,
		Secure:     secure,
		LoginPath:  DefaultLoginPath,
	}
}

func (m *Manager) Cookie(sess *Session) (*http.Cookie, error) {
	token, err := m.Signer.Sign(sess)
	if err != nil {
		return nil, err
	}
	return CreateCookie(m.CookieName, token, "/", m.Secure), nil
}

func (m *Manager) ClearCookie() *http.Cookie {
	return DeleteCookie(m.CookieName, "/", m.Secure)
}

// Resolve maps a raw cookie value to the identity it stands for. Any problem
// with the token or the stored session yields Anonymous.
func (m *Manager) Resolve(ctx context.Context, raw string) (AuthContext, error) {
	claims, err := m.Signer.Parse(raw)
	if err != nil {
		return Anonymous(), err
	}

	sess, err := m.Store.Get(ctx, claims.ID)
	if err != nil {
		return Anonymous(), err
	}
	if sess.Username != claims.Subject || sess.UserID != claims.UserID {
		return Anonymous(), ErrInvalidToken
	}
	return Authenticated(sess), nil
}

// Loader resolves the AuthContext of every request. Invalid or stale cookies
// are cleared.
func (m *Manager) Loader(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		SetEcho(c, Anonymous())

		cookie, err := c.Cookie(m.CookieName)
		if err != nil || cookie.Value == "" {
			return next(c)
		}

		ctx := c.Request().Context()
		auth, err := m.Resolve(ctx, cookie.Value)
		switch {
		case err == nil:
			SetEcho(c, auth)
		case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrSessionNotFound):
			logging.FromContext(ctx).Info("session_rejected", "reason", err.Error())
			c.SetCookie(m.ClearCookie())
		default:
			logging.FromContext(ctx).Error("session_lookup_failed", "error", err)
		}

		return next(c)
	}
}

// RequireLogin redirects anonymous callers to the login page without invoking next.
func (m *Manager) RequireLogin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !FromEcho(c).Authenticated() {
			return c.Redirect(http.StatusFound, m.LoginPath)
		}
		return next(c)
	}
}
