package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/Skotchmaster/marketplace/internal/metrics"
	"github.com/Skotchmaster/marketplace/internal/middleware/csrf"
	loggingmw "github.com/Skotchmaster/marketplace/internal/middleware/logging"
	"github.com/Skotchmaster/marketplace/internal/session"
)

type Deps struct {
	Handler   *Handler
	Sessions  *session.Manager
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	UploadDir string
	BodyLimit string
}

// New builds the echo instance with the middleware chain and all routes.
func New(d *Deps) (*echo.Echo, error) {
	renderer, err := NewRenderer()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = renderer

	e.Use(middleware.RequestID())
	e.Use(loggingmw.RequestLogger(d.Logger))
	e.Use(d.Metrics.Middleware)
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	if d.BodyLimit != "" {
		e.Use(middleware.BodyLimit(d.BodyLimit))
	}
	e.Use(csrf.Middleware(csrf.Config{
		Secure:            d.Handler.CookieSecure,
		EnforceSameOrigin: true,
		SkipPaths:         []string{"/metrics", "/health/live", "/health/ready"},
	}))
	e.Use(d.Sessions.Loader)

	Register(e, d)
	return e, nil
}

func Register(e *echo.Echo, d *Deps) {
	h := d.Handler
	gate := d.Sessions.RequireLogin

	e.GET("/health/live", h.Live)
	e.GET("/health/ready", h.Ready)
	e.GET("/metrics", d.Metrics.Handler())
	if d.UploadDir != "" {
		e.Static("/static/images", d.UploadDir)
	}

	e.GET("/", h.Index)
	e.GET("/search", h.Search)
	e.GET("/date_time", h.DateTime)

	e.GET("/signup", h.SignupPage)
	e.POST("/signup", h.Signup)
	e.GET("/login", h.LoginPage)
	e.POST("/login", h.Login)

	e.GET("/dashboard", h.Dashboard, gate)
	e.GET("/add_product", h.AddProductPage, gate)
	e.POST("/add_product", h.AddProduct, gate)
	e.GET("/edit_product", h.EditProducts, gate)
	e.GET("/update_product/:id", h.UpdateProductPage, gate)
	e.POST("/update_product/:id", h.UpdateProduct, gate)
	e.Match([]string{http.MethodGet, http.MethodPost}, "/delete_product/:id", h.DeleteProduct, gate, csrf.RejectCrossSite)
	e.GET("/logout", h.Logout, gate, csrf.RejectCrossSite)
}
