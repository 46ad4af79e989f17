package httpserver

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/service"
	"github.com/Skotchmaster/marketplace/internal/session"
	"github.com/Skotchmaster/marketplace/internal/transport/forms"
	"github.com/Skotchmaster/marketplace/internal/util"
)

func (h *Handler) Index(c echo.Context) error {
	ctx := c.Request().Context()
	pageNo := util.ParseIntDefault(c.QueryParam("page"), 1)

	res, err := h.Products.ListProducts(ctx, pageNo)
	if err != nil {
		logging.FromContext(ctx).Error("list_products_failed", "handler", "product.index", "error", err)
		addFlash(c, FlashError, MsgGenericError)
		res = &service.ProductPage{Page: 1, Pages: 1}
	}
	return h.render(c, http.StatusOK, "index", "Products", res)
}

func (h *Handler) Search(c echo.Context) error {
	ctx := c.Request().Context()
	q := c.QueryParam("q")
	pageNo := util.ParseIntDefault(c.QueryParam("page"), 1)

	res, err := h.Products.Search(ctx, q, pageNo)
	if err != nil {
		logging.FromContext(ctx).Error("search_failed", "handler", "product.search", "error", err)
		addFlash(c, FlashError, MsgGenericError)
		res = &service.ProductPage{Query: q, Page: 1, Pages: 1}
	}
	return h.render(c, http.StatusOK, "index", "Search", res)
}

func (h *Handler) Dashboard(c echo.Context) error {
	return h.ownProducts(c, "dashboard", "Dashboard")
}

func (h *Handler) EditProducts(c echo.Context) error {
	return h.ownProducts(c, "edit_product", "My products")
}

func (h *Handler) ownProducts(c echo.Context, tmpl, title string) error {
	ctx := c.Request().Context()

	items, err := h.Products.ListMine(ctx, session.FromEcho(c))
	if err != nil {
		logging.FromContext(ctx).Error("list_own_products_failed", "handler", "product."+tmpl, "error", err)
		addFlash(c, FlashError, MsgGenericError)
		items = []models.Product{}
	}
	return h.render(c, http.StatusOK, tmpl, title, items)
}

func (h *Handler) AddProductPage(c echo.Context) error {
	return h.render(c, http.StatusOK, "add_product", "Add product", forms.ProductForm{})
}

func (h *Handler) AddProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.add")

	var form forms.ProductForm
	if err := c.Bind(&form); err != nil {
		l.Warn("add_product_failed", "status", 400, "error", err)
		addFlash(c, FlashError, MsgGenericError)
		return h.render(c, http.StatusOK, "add_product", "Add product", forms.ProductForm{})
	}

	var upload *service.Upload
	fh, err := c.FormFile("image")
	switch {
	case err == nil:
		src, err := fh.Open()
		if err != nil {
			l.Error("add_product_failed", "status", 500, "reason", "cannot open upload", "error", err)
			addFlash(c, FlashError, MsgGenericError)
			return h.render(c, http.StatusOK, "add_product", "Add product", form)
		}
		defer func() { _ = src.Close() }()
		upload = &service.Upload{Filename: fh.Filename, Content: src}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, multipart.ErrMessageTooLarge):
	default:
		l.Warn("add_product_failed", "status", 400, "error", err)
	}

	prod, err := h.Products.AddProduct(ctx, session.FromEcho(c), form, upload)
	if err != nil {
		msg, expected := userMessage(err)
		if !expected {
			l.Error("add_product_failed", "status", 500, "error", err)
		}
		addFlash(c, FlashError, msg)
		return h.render(c, http.StatusOK, "add_product", "Add product", form)
	}

	l.Info("product_added", "product_id", prod.ID)
	addFlash(c, FlashSuccess, MsgProductAdded)
	return h.redirect(c, dashboardPath)
}

// denied sends the caller back to the product list. Unknown ids and products
// of other users look the same from outside.
func (h *Handler) denied(c echo.Context, err error, deniedMsg string) error {
	l := logging.FromContext(c.Request().Context())
	switch {
	case errors.Is(err, service.ErrNotFound), errors.Is(err, service.ErrUnauthorized):
		l.Warn("product_access_denied", "path", c.Request().URL.Path, "reason", err.Error())
		addFlash(c, FlashError, deniedMsg)
	default:
		l.Error("product_request_failed", "path", c.Request().URL.Path, "error", err)
		addFlash(c, FlashError, MsgGenericError)
	}
	return h.redirect(c, editListPath)
}

func (h *Handler) UpdateProductPage(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.denied(c, err, MsgEditDenied)
	}

	prod, err := h.Products.ProductForEdit(c.Request().Context(), session.FromEcho(c), id)
	if err != nil {
		return h.denied(c, err, MsgEditDenied)
	}
	return h.render(c, http.StatusOK, "update_product", "Edit product", prod)
}

func (h *Handler) UpdateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	auth := session.FromEcho(c)

	id, err := parseID(c)
	if err != nil {
		return h.denied(c, err, MsgEditDenied)
	}

	var form forms.ProductForm
	if err := c.Bind(&form); err != nil {
		return h.denied(c, err, MsgEditDenied)
	}

	if _, err := h.Products.UpdateProduct(ctx, auth, id, form); err != nil {
		var ve *service.ValidationError
		if !errors.As(err, &ve) {
			return h.denied(c, err, MsgEditDenied)
		}

		prod, loadErr := h.Products.ProductForEdit(ctx, auth, id)
		if loadErr != nil {
			return h.denied(c, loadErr, MsgEditDenied)
		}
		prod.Apply(models.ProductFields{
			Category:    form.Category,
			Name:        form.Name,
			Description: form.Description,
			PriceRange:  form.PriceRange,
			Comments:    form.Comments,
		})
		addFlash(c, FlashError, ve.Message)
		return h.render(c, http.StatusOK, "update_product", "Edit product", prod)
	}

	addFlash(c, FlashSuccess, MsgProductUpdated)
	return h.redirect(c, editListPath)
}

func (h *Handler) DeleteProduct(c echo.Context) error {
	id, err := parseID(c)
	if err != nil {
		return h.denied(c, err, MsgDeleteDenied)
	}

	if err := h.Products.DeleteProduct(c.Request().Context(), session.FromEcho(c), id); err != nil {
		return h.denied(c, err, MsgDeleteDenied)
	}

	addFlash(c, FlashSuccess, MsgProductDeleted)
	return h.redirect(c, editListPath)
}
