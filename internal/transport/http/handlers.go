package httpserver

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/db"
	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/metrics"
	"github.com/Skotchmaster/marketplace/internal/middleware/csrf"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/session"
)

const (
	MsgGenericError    = "An error occurred. Please try again."
	MsgTaken           = "Username or Email already taken!"
	MsgBadCredentials  = "Invalid username or password."
	MsgInvalidFileType = "Invalid file type. Please upload a valid image."
	MsgEditDenied      = "You are not authorized to edit this product"
	MsgDeleteDenied    = "You are not authorized to delete this product"
	MsgSignedUp        = "Account created successfully! Please log in."
	MsgLoggedIn        = "Login successful!"
	MsgProductAdded    = "Product added successfully!"
	MsgProductUpdated  = "Product updated successfully"
	MsgProductDeleted  = "Product deleted successfully"
	MsgLoggedOut       = "You have been logged out."
)

const (
	dateTimeLayout = "02-01-2006 15:04:05"
	editListPath   = "/edit_product"
	dashboardPath  = "/dashboard"
	loginPath      = "/login"
)

type Handler struct {
	Auth         *service.AuthService
	Products     *service.ProductService
	Sessions     *session.Manager
	Metrics      *metrics.Metrics
	DB           *gorm.DB
	CookieSecure bool
}

type page struct {
	Title   string
	Auth    session.AuthContext
	Flashes []Flash
	CSRF    string
	Data    any
}

func (h *Handler) render(c echo.Context, status int, name, title string, data any) error {
	return c.Render(status, name, page{
		Title:   title,
		Auth:    session.FromEcho(c),
		Flashes: takeFlashes(c, h.CookieSecure),
		CSRF:    csrf.Token(c),
		Data:    data,
	})
}

func (h *Handler) redirect(c echo.Context, to string) error {
	persistFlashes(c, h.CookieSecure)
	return c.Redirect(http.StatusFound, to)
}

// userMessage maps an expected service error to the text shown to the user.
// ok is false for unexpected errors.
func userMessage(err error) (msg string, ok bool) {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return ve.Message, true
	case errors.Is(err, service.ErrUniqueness):
		return MsgTaken, true
	case errors.Is(err, service.ErrInvalidCredentials):
		return MsgBadCredentials, true
	case errors.Is(err, service.ErrInvalidFileType):
		return MsgInvalidFileType, true
	}
	return MsgGenericError, false
}

// parseID treats anything that is not a positive integer as a missing product.
func parseID(c echo.Context) (uint, error) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, service.ErrNotFound
	}
	return uint(n), nil
}

func (h *Handler) DateTime(c echo.Context) error {
	return c.String(http.StatusOK, time.Now().Format(dateTimeLayout))
}

func (h *Handler) Live(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

func (h *Handler) Ready(c echo.Context) error {
	if err := db.Ping(c.Request().Context(), h.DB); err != nil {
		logging.FromContext(c.Request().Context()).Error("readiness_failed", "error", err)
		return c.NoContent(http.StatusServiceUnavailable)
	}
	return c.NoContent(http.StatusOK)
}
