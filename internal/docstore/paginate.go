package docstore

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/simp-lee/innkeeper/internal/domain"
)

const (
	// DefaultLimit is the page size used when none is given.
	DefaultLimit = 10
	// DefaultPage is the first page.
	DefaultPage = 1
)

// PageBounds normalizes page and limit: zero selects the default, anything
// else below one is raised to one.
func PageBounds(page, limit int) (int, int) {
	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	}
	if page < 1 {
		page = DefaultPage
	}
	return page, limit
}

// NewPageMetadata computes the metadata of a page window over total results.
func NewPageMetadata(page, limit int, total int64) domain.PageMetadata {
	totalPages := 0
	if limit > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(limit)))
	}
	return domain.PageMetadata{
		Page:            page,
		Limit:           limit,
		TotalPages:      totalPages,
		TotalResults:    total,
		HasNextPage:     page < totalPages,
		HasPreviousPage: page > 1,
	}
}

// pageOffset returns the number of rows before page. It reports false when
// the offset does not fit in an int.
func pageOffset(page, limit int) (int, bool) {
	if page-1 > math.MaxInt/limit {
		return 0, false
	}
	return (page - 1) * limit, true
}

// Paginate returns one page of documents matching filter. The total count
// and the page fetch run concurrently over the same filter and visibility.
func (r *Repository[T]) Paginate(ctx context.Context, filter Filter, opts domain.QueryOptions) (*domain.PaginatedResult[T], error) {
	return r.paginate(ctx, filter, VisibilityOf(opts), opts)
}

// PaginateDeleted is Paginate over soft-deleted documents only.
func (r *Repository[T]) PaginateDeleted(ctx context.Context, filter Filter, opts domain.QueryOptions) (*domain.PaginatedResult[T], error) {
	return r.paginate(ctx, filter, DeletedOnly, opts)
}

func (r *Repository[T]) paginate(ctx context.Context, filter Filter, vis Visibility, opts domain.QueryOptions) (*domain.PaginatedResult[T], error) {
	page, limit := PageBounds(opts.Page, opts.Limit)

	// Validate once so both goroutines see the same error.
	if _, err := r.col.where(filter); err != nil {
		return nil, err
	}
	if _, err := r.preloads(opts); err != nil {
		return nil, err
	}

	var (
		total int64
		items = []T{}
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := r.count(gctx, r.db, filter, vis)
		total = n
		return err
	})
	offset, ok := pageOffset(page, limit)
	g.Go(func() error {
		if !ok {
			// Past any reachable row.
			return nil
		}
		q, err := r.query(gctx, filter, vis, opts)
		if err != nil {
			return err
		}
		return q.Clauses(r.col.orderBy(opts.SortBy)).
			Offset(offset).
			Limit(limit).
			Find(&items).Error
	})
	if err := g.Wait(); err != nil {
		return nil, mapError(err)
	}

	return &domain.PaginatedResult[T]{
		Results:  items,
		Metadata: NewPageMetadata(page, limit, total),
	}, nil
}
