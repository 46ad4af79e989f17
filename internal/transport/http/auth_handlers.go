package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/session"
	"github.com/Skotchmaster/marketplace/internal/transport/forms"
)

func (h *Handler) SignupPage(c echo.Context) error {
	return h.render(c, http.StatusOK, "signup", "Sign up", forms.SignupForm{})
}

func (h *Handler) Signup(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.signup")

	var form forms.SignupForm
	if err := c.Bind(&form); err != nil {
		l.Warn("signup_failed", "status", 400, "error", err)
		addFlash(c, FlashError, MsgGenericError)
		return h.render(c, http.StatusOK, "signup", "Sign up", forms.SignupForm{})
	}

	if _, err := h.Auth.Signup(ctx, form); err != nil {
		msg, expected := userMessage(err)
		if expected {
			h.Metrics.Auth("signup", "rejected")
		} else {
			h.Metrics.Auth("signup", "error")
			l.Error("signup_failed", "status", 500, "error", err)
		}
		addFlash(c, FlashError, msg)
		form.Password, form.RePassword = "", ""
		return h.render(c, http.StatusOK, "signup", "Sign up", form)
	}

	h.Metrics.Auth("signup", "success")
	addFlash(c, FlashSuccess, MsgSignedUp)
	return h.redirect(c, loginPath)
}

func (h *Handler) LoginPage(c echo.Context) error {
	return h.render(c, http.StatusOK, "login", "Log in", forms.LoginForm{})
}

func (h *Handler) Login(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "auth.login")

	var form forms.LoginForm
	if err := c.Bind(&form); err != nil {
		l.Warn("login_failed", "status", 400, "error", err)
		addFlash(c, FlashError, MsgGenericError)
		return h.render(c, http.StatusOK, "login", "Log in", forms.LoginForm{})
	}

	sess, err := h.Auth.Login(ctx, session.FromEcho(c), form)
	if err != nil {
		msg, expected := userMessage(err)
		if expected {
			h.Metrics.Auth("login", "rejected")
		} else {
			h.Metrics.Auth("login", "error")
			l.Error("login_failed", "status", 500, "error", err)
		}
		addFlash(c, FlashError, msg)
		return h.render(c, http.StatusOK, "login", "Log in", forms.LoginForm{Username: form.Username})
	}

	cookie, err := h.Sessions.Cookie(sess)
	if err != nil {
		l.Error("login_failed", "status", 500, "error", err)
		addFlash(c, FlashError, MsgGenericError)
		return h.render(c, http.StatusOK, "login", "Log in", forms.LoginForm{Username: form.Username})
	}
	c.SetCookie(cookie)
	session.SetEcho(c, session.Authenticated(sess))

	h.Metrics.Auth("login", "success")
	addFlash(c, FlashSuccess, MsgLoggedIn)
	return h.redirect(c, dashboardPath)
}

func (h *Handler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	auth := session.FromEcho(c)

	if err := h.Auth.Logout(ctx, auth); err != nil {
		logging.FromContext(ctx).Error("logout_failed", "handler", "auth.logout", "error", err)
	}
	c.SetCookie(h.Sessions.ClearCookie())
	session.SetEcho(c, session.Anonymous())

	h.Metrics.Auth("logout", "success")
	addFlash(c, FlashSuccess, MsgLoggedOut)
	return h.redirect(c, loginPath)
}
