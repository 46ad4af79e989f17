package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Skotchmaster/marketplace/internal/events"
	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/models"
	"github.com/Skotchmaster/marketplace/internal/repo"
	"github.com/Skotchmaster/marketplace/internal/session"
	"github.com/Skotchmaster/marketplace/internal/storage"
	"github.com/Skotchmaster/marketplace/internal/transport/forms"
	"github.com/Skotchmaster/marketplace/internal/util"
)

// Indexer is the search index kept in step with product writes.
type Indexer interface {
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
	Search(ctx context.Context, query string, from, size int) (int64, []uint, error)
}

// Upload is an image submitted with a product form.
type Upload struct {
	Filename string
	Content  io.Reader
}

type ProductView struct {
	models.Product
	OwnerName string
}

type ProductPage struct {
	Items []ProductView
	Query string
	Page  int
	Pages int
	Total int64
}

type ProductService struct {
	Repo     *repo.GormRepo
	Images   *storage.ImageStore
	Events   events.Publisher
	Index    Indexer
	PageSize int
}

func (s *ProductService) pageSize() int {
	if s.PageSize <= 0 {
		return util.DefaultPageSize
	}
	return s.PageSize
}

func (s *ProductService) ListProducts(ctx context.Context, page int) (*ProductPage, error) {
	from, limit := util.Calculate(page, s.pageSize())

	total, items, err := s.Repo.ListProducts(ctx, from, limit)
	if err != nil {
		return nil, err
	}
	return s.buildPage(ctx, "", page, limit, total, items)
}

// Search queries the index when one is configured and falls back to the
// database otherwise or when the index fails.
func (s *ProductService) Search(ctx context.Context, query string, page int) (*ProductPage, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.ListProducts(ctx, page)
	}
	l := logging.FromContext(ctx).With("svc", "product.search")
	from, limit := util.Calculate(page, s.pageSize())

	if s.Index != nil {
		total, ids, err := s.Index.Search(ctx, query, from, limit)
		if err == nil {
			items, err := s.Repo.FindProductsByIDs(ctx, ids)
			if err != nil {
				return nil, err
			}
			return s.buildPage(ctx, query, page, limit, total, items)
		}
		l.Error("search_index_failed", "error", err)
	}

	total, items, err := s.Repo.SearchProducts(ctx, query, from, limit)
	if err != nil {
		return nil, err
	}
	return s.buildPage(ctx, query, page, limit, total, items)
}

func (s *ProductService) buildPage(ctx context.Context, query string, page, size int, total int64, items []models.Product) (*ProductPage, error) {
	views, err := s.withOwners(ctx, items)
	if err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	return &ProductPage{Items: views, Query: query, Page: page, Pages: util.Pages(total, size), Total: total}, nil
}

// withOwners resolves owner names with one explicit lookup per page.
func (s *ProductService) withOwners(ctx context.Context, items []models.Product) ([]ProductView, error) {
	ids := make([]uint, 0, len(items))
	seen := make(map[uint]struct{}, len(items))
	for _, p := range items {
		if _, ok := seen[p.UserID]; !ok {
			seen[p.UserID] = struct{}{}
			ids = append(ids, p.UserID)
		}
	}

	owners, err := s.Repo.FindUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	views := make([]ProductView, len(items))
	for i, p := range items {
		views[i] = ProductView{Product: p, OwnerName: owners[p.UserID].Username}
	}
	return views, nil
}

// ListMine returns the products owned by the caller.
func (s *ProductService) ListMine(ctx context.Context, auth session.AuthContext) ([]models.Product, error) {
	if !auth.Authenticated() {
		return nil, ErrUnauthorized
	}
	return s.Repo.ListProductsByOwner(ctx, *auth.UserID)
}

// AddProduct checks the image type before anything else, stores the image and
// then inserts the product. A failed insert removes the stored image again.
func (s *ProductService) AddProduct(ctx context.Context, auth session.AuthContext, form forms.ProductForm, upload *Upload) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "product.add")

	if !auth.Authenticated() {
		return nil, ErrUnauthorized
	}
	if upload == nil || upload.Content == nil || !storage.AllowedExtension(upload.Filename) {
		l.Info("add_product_rejected", "reason", "invalid file type")
		return nil, ErrInvalidFileType
	}

	form.Normalize()
	if err := form.Validate(); err != nil {
		return nil, invalid(err)
	}

	filename, err := s.Images.Save(upload.Filename, upload.Content)
	if err != nil {
		return nil, fmt.Errorf("add product: %w", err)
	}

	prod := &models.Product{
		Category:    form.Category,
		Name:        form.Name,
		Description: form.Description,
		PriceRange:  form.PriceRange,
		Comments:    form.Comments,
		Filename:    filename,
		UserID:      *auth.UserID,
	}
	if err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		return tx.CreateProduct(ctx, prod)
	}); err != nil {
		if rmErr := s.Images.Remove(filename); rmErr != nil {
			l.Error("image_cleanup_failed", "filename", filename, "error", rmErr)
		}
		return nil, fmt.Errorf("add product: %w", err)
	}

	l.Info("product_added", "product_id", prod.ID, "username", auth.Username)
	s.afterWrite(ctx, events.ProductCreated, prod)
	return prod, nil
}

// ProductForEdit loads a product the caller owns.
func (s *ProductService) ProductForEdit(ctx context.Context, auth session.AuthContext, id uint) (*models.Product, error) {
	var prod *models.Product
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		p, err := s.loadOwned(ctx, tx, auth, id)
		prod = p
		return err
	})
	if err != nil {
		return nil, s.mapErr(logging.FromContext(ctx).With("svc", "product.edit", "product_id", id), err)
	}
	return prod, nil
}

// UpdateProduct replaces the editable fields of a product the caller owns.
// Ownership is settled before the payload is looked at.
func (s *ProductService) UpdateProduct(ctx context.Context, auth session.AuthContext, id uint, form forms.ProductForm) (*models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "product.update", "product_id", id)

	var updated *models.Product
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		if _, err := s.loadOwned(ctx, tx, auth, id); err != nil {
			return err
		}

		form.Normalize()
		if err := form.Validate(); err != nil {
			return invalid(err)
		}

		p, err := tx.UpdateProduct(ctx, id, models.ProductFields{
			Category:    form.Category,
			Name:        form.Name,
			Description: form.Description,
			PriceRange:  form.PriceRange,
			Comments:    form.Comments,
		})
		updated = p
		return err
	})
	if err != nil {
		return nil, s.mapErr(l, err)
	}

	l.Info("product_updated", "username", auth.Username)
	s.afterWrite(ctx, events.ProductUpdated, updated)
	return updated, nil
}

// DeleteProduct removes a product the caller owns together with its image.
func (s *ProductService) DeleteProduct(ctx context.Context, auth session.AuthContext, id uint) error {
	l := logging.FromContext(ctx).With("svc", "product.delete", "product_id", id)

	var deleted *models.Product
	err := s.Repo.Tx(ctx, func(tx *repo.GormRepo) error {
		p, err := s.loadOwned(ctx, tx, auth, id)
		if err != nil {
			return err
		}
		deleted = p
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		return s.mapErr(l, err)
	}

	if err := s.Images.Remove(deleted.Filename); err != nil {
		l.Error("image_cleanup_failed", "filename", deleted.Filename, "error", err)
	}

	l.Info("product_deleted", "username", auth.Username)
	s.afterWrite(ctx, events.ProductDeleted, deleted)
	return nil
}

func (s *ProductService) loadOwned(ctx context.Context, tx *repo.GormRepo, auth session.AuthContext, id uint) (*models.Product, error) {
	p, err := tx.GetProduct(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := authorizeOwnerOrFail(p.UserID, auth); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProductService) mapErr(l *slog.Logger, err error) error {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUnauthorized):
		l.Warn("product_access_denied", "reason", err.Error())
		return err
	case errors.Is(err, ErrValidation):
		return err
	case errors.Is(err, repo.ErrNotFound):
		return ErrNotFound
	default:
		return fmt.Errorf("product: %w", err)
	}
}

// afterWrite publishes the event and syncs the search index. Both are best
// effort: the database already committed.
func (s *ProductService) afterWrite(ctx context.Context, kind string, p *models.Product) {
	l := logging.FromContext(ctx)

	if s.Events != nil {
		ev := events.Event{Type: kind, UserID: p.UserID, ProductID: p.ID}
		if err := s.Events.Publish(ctx, events.TopicProducts, ev); err != nil {
			l.Error("kafka_publish_failed", "event", kind, "error", err)
		}
	}

	if s.Index == nil {
		return
	}
	var err error
	if kind == events.ProductDeleted {
		err = s.Index.DeleteProduct(ctx, p.ID)
	} else {
		err = s.Index.IndexProduct(ctx, p)
	}
	if err != nil {
		l.Error("search_index_sync_failed", "event", kind, "product_id", p.ID, "error", err)
	}
}
