package resource

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/simp-lee/innkeeper/internal/domain"
	"github.com/simp-lee/innkeeper/internal/pkg"
)

// Handler serves the REST API of one collection. Every document it returns
// passes through the collection's sanitizer.
type Handler[T any] struct {
	store  Store[T]
	limits pkg.QueryLimits
}

// NewHandler creates a Handler over store.
func NewHandler[T any](store Store[T], limits pkg.QueryLimits) *Handler[T] {
	return &Handler[T]{store: store, limits: limits}
}

// Create handles POST /{collection}.
func (h *Handler[T]) Create(c *gin.Context) {
	var doc T
	if !pkg.BindAndValidate(c, &doc) {
		return
	}
	if err := h.store.Create(c.Request.Context(), &doc); err != nil {
		pkg.Error(c, err)
		return
	}
	h.respond(c, &doc, domain.QueryOptions{}, pkg.Created)
}

// List handles GET /{collection}.
func (h *Handler[T]) List(c *gin.Context) {
	filter, opts, err := pkg.ParseQuery(c, h.limits)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	page, err := h.store.Paginate(c.Request.Context(), filter, opts)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	h.respondPage(c, page, opts)
}

// ListDeleted handles GET /{collection}/deleted.
func (h *Handler[T]) ListDeleted(c *gin.Context) {
	filter, opts, err := pkg.ParseQuery(c, h.limits)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	page, err := h.store.PaginateDeleted(c.Request.Context(), filter, opts)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	h.respondPage(c, page, opts)
}

// Get handles GET /{collection}/:id.
func (h *Handler[T]) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	_, opts, err := pkg.ParseQuery(c, h.limits)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	doc, err := h.store.FindByID(c.Request.Context(), id, opts)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	h.respond(c, doc, opts, pkg.Success)
}

// Update handles PATCH /{collection}/:id. Only the fields present in the
// body are written.
func (h *Handler[T]) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var patch T
	fields, ok := pkg.BindPatch(c, &patch)
	if !ok {
		return
	}
	if len(fields) == 0 {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "empty update", nil))
		return
	}
	doc, err := h.store.Update(c.Request.Context(), id, &patch, domain.QueryOptions{}, fields...)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	h.respond(c, doc, domain.QueryOptions{}, pkg.Success)
}

// Delete handles DELETE /{collection}/:id. With ?force=true the document
// and the references to it are removed; otherwise it is soft-deleted.
func (h *Handler[T]) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	_, opts, err := pkg.ParseQuery(c, h.limits)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	doc, err := h.store.DeleteByID(c.Request.Context(), id, domain.QueryOptions{Force: opts.Force})
	if err != nil {
		pkg.Error(c, err)
		return
	}
	h.respond(c, doc, domain.QueryOptions{}, pkg.Success)
}

// DeleteMany handles DELETE /{collection}. At least one filter is required.
func (h *Handler[T]) DeleteMany(c *gin.Context) {
	filter, opts, err := pkg.ParseQuery(c, h.limits)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	if len(filter) == 0 {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "delete requires a filter", nil))
		return
	}
	docs, err := h.store.Delete(c.Request.Context(), filter, domain.QueryOptions{Force: opts.Force})
	if err != nil {
		pkg.Error(c, err)
		return
	}
	out, err := h.store.SanitizeAll(docs, domain.QueryOptions{})
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.Success(c, out)
}

// Restore handles POST /{collection}/:id/restore.
func (h *Handler[T]) Restore(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	doc, err := h.store.RestoreByID(c.Request.Context(), id)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	h.respond(c, doc, domain.QueryOptions{}, pkg.Success)
}

func (h *Handler[T]) respond(c *gin.Context, doc *T, opts domain.QueryOptions, send func(*gin.Context, any)) {
	out, err := h.store.Sanitize(doc, opts)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	send(c, out)
}

func (h *Handler[T]) respondPage(c *gin.Context, page *domain.PaginatedResult[T], opts domain.QueryOptions) {
	out, err := h.store.SanitizePage(page, opts)
	if err != nil {
		pkg.Error(c, err)
		return
	}
	pkg.List(c, out)
}

// parseID extracts and validates the :id path parameter. On failure it
// sends a validation error.
func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		pkg.Error(c, domain.NewAppError(domain.CodeValidation, "invalid id", errors.New(c.Param("id"))))
		return 0, false
	}
	return uint(id), true
}
