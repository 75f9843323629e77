package docstore

import (
	"context"
	"errors"
	"reflect"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simp-lee/innkeeper/internal/domain"
)

// Repository provides the document lifecycle for one entity type.
type Repository[T any] struct {
	db  *gorm.DB
	col *Collection
}

// Attach registers T in catalog and returns its repository.
func Attach[T any](db *gorm.DB, catalog *Catalog, opts ...Option) (*Repository[T], error) {
	col, err := catalog.Register(db, new(T), opts...)
	if err != nil {
		return nil, err
	}
	return &Repository[T]{db: db, col: col}, nil
}

// Collection returns the registered collection of T.
func (r *Repository[T]) Collection() *Collection {
	return r.col
}

// Create inserts doc as a live document.
func (r *Repository[T]) Create(ctx context.Context, doc *T) error {
	if r.col.marker != nil {
		if err := r.col.setMarker(ctx, doc, nil); err != nil {
			return mapError(err)
		}
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return mapError(err)
	}
	return nil
}

// Update applies patch to the live document id and bumps its revision.
// Without fields only the non-zero fields of patch are written; with fields
// exactly those fields are written, zero values included. Associations,
// timestamps and the deletion marker are never written through Update.
func (r *Repository[T]) Update(ctx context.Context, id any, patch *T, opts domain.QueryOptions, fields ...string) (*T, error) {
	current, err := r.FindByID(ctx, id, domain.QueryOptions{})
	if err != nil {
		return nil, err
	}
	curID, _ := r.col.documentID(ctx, current)

	rv := reflect.ValueOf(patch).Elem()
	if err := r.col.schema.PrioritizedPrimaryField.Set(ctx, rv, curID); err != nil {
		return nil, mapError(err)
	}
	if r.col.revision != nil {
		next := r.col.revision.ReflectValueOf(ctx, reflect.ValueOf(current).Elem())
		dst := r.col.revision.ReflectValueOf(ctx, rv)
		switch dst.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			dst.SetUint(next.Uint() + 1)
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			dst.SetInt(next.Int() + 1)
		}
	}

	q := r.db.WithContext(ctx).Model(patch).Scopes(r.col.Visible(Live))
	if len(fields) > 0 {
		cols, err := r.col.updateColumns(fields)
		if err != nil {
			return nil, err
		}
		q = q.Select(cols)
	} else {
		omit := []string{clause.Associations, "created_at", r.col.primaryColumn()}
		if r.col.softDelete {
			omit = append(omit, r.col.deletedAt)
		}
		q = q.Omit(omit...)
	}
	res := q.Updates(patch)
	if res.Error != nil {
		return nil, mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, domain.ErrNotFound
	}
	return r.FindByID(ctx, curID, opts)
}

// FindByID returns the document id. Soft-deleted documents are only
// visible with WithDeleted.
func (r *Repository[T]) FindByID(ctx context.Context, id any, opts domain.QueryOptions) (*T, error) {
	q, err := r.query(ctx, ByID(id), VisibilityOf(opts), opts)
	if err != nil {
		return nil, err
	}
	var doc T
	if err := q.Take(&doc).Error; err != nil {
		return nil, mapError(err)
	}
	return &doc, nil
}

// Find returns every matching document in sort order.
func (r *Repository[T]) Find(ctx context.Context, filter Filter, opts domain.QueryOptions) ([]T, error) {
	return r.find(ctx, filter, VisibilityOf(opts), opts)
}

// FindWithDeleted is Find including soft-deleted documents.
func (r *Repository[T]) FindWithDeleted(ctx context.Context, filter Filter, opts domain.QueryOptions) ([]T, error) {
	return r.find(ctx, filter, All, opts)
}

// FindDeleted returns only soft-deleted documents.
func (r *Repository[T]) FindDeleted(ctx context.Context, filter Filter, opts domain.QueryOptions) ([]T, error) {
	return r.find(ctx, filter, DeletedOnly, opts)
}

func (r *Repository[T]) find(ctx context.Context, filter Filter, vis Visibility, opts domain.QueryOptions) ([]T, error) {
	q, err := r.query(ctx, filter, vis, opts)
	if err != nil {
		return nil, err
	}
	docs := []T{}
	if err := q.Clauses(r.col.orderBy(opts.SortBy)).Find(&docs).Error; err != nil {
		return nil, mapError(err)
	}
	return docs, nil
}

// Count returns the number of matching documents.
func (r *Repository[T]) Count(ctx context.Context, filter Filter, opts domain.QueryOptions) (int64, error) {
	return r.count(ctx, r.db, filter, VisibilityOf(opts))
}

func (r *Repository[T]) count(ctx context.Context, db *gorm.DB, filter Filter, vis Visibility) (int64, error) {
	where, err := r.col.where(filter)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := db.WithContext(ctx).Model(new(T)).Scopes(where, r.col.Visible(vis)).Count(&n).Error; err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

// Exists reports whether any document matches.
func (r *Repository[T]) Exists(ctx context.Context, filter Filter, opts domain.QueryOptions) (bool, error) {
	n, err := r.Count(ctx, filter, opts)
	return n > 0, err
}

// IsReferenced reports whether any reference rule currently points at id.
func (r *Repository[T]) IsReferenced(ctx context.Context, id any) (bool, error) {
	ok, err := r.col.isReferenced(ctx, r.db, id)
	if err != nil {
		return false, mapError(err)
	}
	return ok, nil
}

// query builds the read for filter with visibility, expansion and select
// applied. Ordering and windowing are left to the caller.
func (r *Repository[T]) query(ctx context.Context, filter Filter, vis Visibility, opts domain.QueryOptions) (*gorm.DB, error) {
	where, err := r.col.where(filter)
	if err != nil {
		return nil, err
	}
	preloads, err := r.preloads(opts)
	if err != nil {
		return nil, err
	}
	q := r.db.WithContext(ctx).Model(new(T)).Scopes(where, r.col.Visible(vis))
	for _, p := range preloads {
		q = p.apply(q)
	}
	if sel := r.col.selectFields(opts.Select, preloads); len(sel.columns) > 0 {
		q = q.Select(sel.columns)
	}
	return q, nil
}

// preloads resolves the expansion of a read: depth wins over populate.
func (r *Repository[T]) preloads(opts domain.QueryOptions) ([]preload, error) {
	catalog := r.col.catalog
	if opts.Depth > 0 {
		return catalog.planPreloads(r.col, catalog.BuildExpansionPlan(r.col.name, opts.Depth)), nil
	}
	if len(opts.Populate) > 0 {
		return catalog.populatePreloads(r.col, opts.Populate)
	}
	return nil, nil
}

// Sanitize returns the public projection of doc honoring opts.Select.
func (r *Repository[T]) Sanitize(doc *T, opts domain.QueryOptions) (map[string]any, error) {
	m, err := r.col.Sanitize(doc)
	if err != nil {
		return nil, err
	}
	project(m, r.outputKeys(opts))
	return m, nil
}

// SanitizeAll sanitizes every document of docs.
func (r *Repository[T]) SanitizeAll(docs []T, opts domain.QueryOptions) ([]map[string]any, error) {
	keys := r.outputKeys(opts)
	out := make([]map[string]any, 0, len(docs))
	for i := range docs {
		m, err := r.col.Sanitize(&docs[i])
		if err != nil {
			return nil, err
		}
		project(m, keys)
		out = append(out, m)
	}
	return out, nil
}

// SanitizePage sanitizes the results of a page and keeps its metadata.
func (r *Repository[T]) SanitizePage(page *domain.PaginatedResult[T], opts domain.QueryOptions) (*domain.PaginatedResult[map[string]any], error) {
	results, err := r.SanitizeAll(page.Results, opts)
	if err != nil {
		return nil, err
	}
	return &domain.PaginatedResult[map[string]any]{Results: results, Metadata: page.Metadata}, nil
}

func (r *Repository[T]) outputKeys(opts domain.QueryOptions) []string {
	if strings.TrimSpace(opts.Select) == "" {
		return nil
	}
	preloads, _ := r.preloads(opts)
	return r.col.selectFields(opts.Select, preloads).keys
}

// mapError converts GORM errors to domain errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *domain.AppError
	if errors.As(err, &appErr) {
		return err
	}
	var detachErr *DetachError
	if errors.As(err, &detachErr) {
		return domain.NewAppError(domain.CodeIntegrity, "reference detach failed", err)
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || isDuplicateKeyError(err) {
		return domain.NewAppError(domain.CodeAlreadyExists, "already exists", err)
	}
	return domain.NewAppError(domain.CodeInternal, "database error", err)
}

// isDuplicateKeyError detects unique constraint violations by examining the
// error message. Not all GORM dialectors translate driver-level errors to
// gorm.ErrDuplicatedKey (e.g. the pure-Go SQLite driver).
func isDuplicateKeyError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
