package resource

import (
	"context"

	"github.com/simp-lee/innkeeper/internal/docstore"
	"github.com/simp-lee/innkeeper/internal/domain"
)

// Store is the document lifecycle a resource handler drives. It is
// implemented by *docstore.Repository.
type Store[T any] interface {
	Collection() *docstore.Collection
	Create(ctx context.Context, doc *T) error
	FindByID(ctx context.Context, id any, opts domain.QueryOptions) (*T, error)
	Paginate(ctx context.Context, filter docstore.Filter, opts domain.QueryOptions) (*domain.PaginatedResult[T], error)
	PaginateDeleted(ctx context.Context, filter docstore.Filter, opts domain.QueryOptions) (*domain.PaginatedResult[T], error)
	Update(ctx context.Context, id any, patch *T, opts domain.QueryOptions, fields ...string) (*T, error)
	Delete(ctx context.Context, filter docstore.Filter, opts domain.QueryOptions) ([]T, error)
	DeleteByID(ctx context.Context, id any, opts domain.QueryOptions) (*T, error)
	RestoreByID(ctx context.Context, id any) (*T, error)
	Sanitize(doc *T, opts domain.QueryOptions) (map[string]any, error)
	SanitizeAll(docs []T, opts domain.QueryOptions) ([]map[string]any, error)
	SanitizePage(page *domain.PaginatedResult[T], opts domain.QueryOptions) (*domain.PaginatedResult[map[string]any], error)
}

var _ Store[domain.Hotel] = (*docstore.Repository[domain.Hotel])(nil)
