package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/repo"
	"github.com/Skotchmaster/game_store/internal/transport"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
	"github.com/Skotchmaster/game_store/pkg/events"
	"github.com/Skotchmaster/game_store/pkg/logging"
)

const (
	DeleteLogical  = "logical"
	DeletePhysical = "physical"
)

// ProductIndex is the full-text index kept next to the catalog.
type ProductIndex interface {
	Search(ctx context.Context, query string, from, size int) (int64, []uint, error)
	IndexProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id uint) error
}

type CatalogService struct {
	Repo       *repo.GormRepo
	Events     events.Publisher
	Index      ProductIndex
	DeleteMode string
}

func (s *CatalogService) GetProduct(ctx context.Context, id uint) (*models.Product, error) {
	p, err := s.Repo.GetActiveProduct(ctx, id)
	if err != nil {
		return nil, notFound(err, "product")
	}
	return p, nil
}

// ListProducts pages through active products. A non-empty query goes to the
// search index when one is configured and falls back to the database.
func (s *CatalogService) ListProducts(ctx context.Context, query string, offset, limit int) (int64, []models.Product, error) {
	l := logging.FromContext(ctx).With("svc", "catalog.list")

	query = strings.TrimSpace(query)
	if query == "" {
		total, items, err := s.Repo.ListActiveProducts(ctx, offset, limit)
		if err != nil {
			return 0, nil, fmt.Errorf("list products: %w", err)
		}
		return total, items, nil
	}

	if s.Index != nil {
		total, ids, err := s.Index.Search(ctx, query, offset, limit)
		if err == nil {
			items, err := s.Repo.GetActiveProductsByIDs(ctx, ids)
			if err != nil {
				return 0, nil, fmt.Errorf("load search hits: %w", err)
			}
			return total, items, nil
		}
		l.Warn("search_index_failed", "reason", "falling back to database", "error", err)
	}

	total, items, err := s.Repo.SearchActiveProducts(ctx, query, offset, limit)
	if err != nil {
		return 0, nil, fmt.Errorf("search products: %w", err)
	}
	return total, items, nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, req transport.CreateProductRequest) (*models.Product, error) {
	p, err := req.ToProduct()
	if err != nil {
		return nil, validation(err)
	}
	if err := s.Repo.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.syncIndex(ctx, p)
	publish(ctx, s.Events, events.TopicProducts, productKey(p.ID), events.New("product_created", map[string]any{
		"product_id": p.ID,
		"titulo":     p.Title,
		"precio":     p.Price.StringFixed(2),
		"stock":      p.Stock,
	}))
	return p, nil
}

// PatchProduct updates only the supplied fields.
func (s *CatalogService) PatchProduct(ctx context.Context, id uint, req transport.PatchProductRequest) (*models.Product, error) {
	patch, err := req.ToPatch()
	if err != nil {
		return nil, validation(err)
	}
	p, err := s.Repo.PatchProduct(ctx, id, patch)
	if err != nil {
		return nil, notFound(err, "product")
	}

	s.syncIndex(ctx, p)
	fields := make([]string, 0, len(patch))
	for k := range patch {
		fields = append(fields, k)
	}
	publish(ctx, s.Events, events.TopicProducts, productKey(p.ID), events.New("product_updated", map[string]any{
		"product_id": p.ID,
		"fields":     fields,
	}))
	return p, nil
}

// DeleteProduct applies the configured delete policy: logical flips the
// active flag, physical removes the row unless order lines reference it.
func (s *CatalogService) DeleteProduct(ctx context.Context, id uint) error {
	l := logging.FromContext(ctx).With("svc", "catalog.delete", "product_id", id, "mode", s.mode())

	switch s.mode() {
	case DeletePhysical:
		if err := s.Repo.DeleteProduct(ctx, id); err != nil {
			if pkgdb.IsForeignKeyViolation(err) {
				return fmt.Errorf("%w: product is referenced by orders", ErrConflict)
			}
			return notFound(err, "product")
		}
	default:
		if err := s.Repo.DeactivateProduct(ctx, id); err != nil {
			return notFound(err, "product")
		}
	}

	if s.Index != nil {
		if err := s.Index.DeleteProduct(ctx, id); err != nil {
			l.Warn("search_index_delete_failed", "error", err)
		}
	}
	l.Info("product_deleted")
	publish(ctx, s.Events, events.TopicProducts, productKey(id), events.New("product_deleted", map[string]any{
		"product_id": id,
		"mode":       s.mode(),
	}))
	return nil
}

// Reindex loads every active product into the search index in pages.
func (s *CatalogService) Reindex(ctx context.Context, batch int) (int, error) {
	if s.Index == nil {
		return 0, fmt.Errorf("no search index configured")
	}
	if batch <= 0 {
		batch = 100
	}

	indexed := 0
	for offset := 0; ; offset += batch {
		_, items, err := s.Repo.ListActiveProducts(ctx, offset, batch)
		if err != nil {
			return indexed, fmt.Errorf("list products: %w", err)
		}
		for i := range items {
			if err := s.Index.IndexProduct(ctx, &items[i]); err != nil {
				return indexed, err
			}
			indexed++
		}
		if len(items) < batch {
			return indexed, nil
		}
	}
}

func (s *CatalogService) syncIndex(ctx context.Context, p *models.Product) {
	if s.Index == nil {
		return
	}
	var err error
	if p.Active {
		err = s.Index.IndexProduct(ctx, p)
	} else {
		err = s.Index.DeleteProduct(ctx, p.ID)
	}
	if err != nil {
		logging.FromContext(ctx).Warn("search_index_sync_failed", "product_id", p.ID, "error", err)
	}
}

func (s *CatalogService) mode() string {
	if s.DeleteMode == DeletePhysical {
		return DeletePhysical
	}
	return DeleteLogical
}

func productKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}
