package resource

import "github.com/gin-gonic/gin"

// Module exposes one collection under /{collection}.
type Module[T any] struct {
	name    string
	handler *Handler[T]
}

// NewModule creates a Module serving store under its collection name.
// Panics if store is nil.
func NewModule[T any](store Store[T], h *Handler[T]) *Module[T] {
	if store == nil {
		panic("resource.NewModule: store must not be nil")
	}
	if h == nil {
		panic("resource.NewModule: handler must not be nil")
	}
	return &Module[T]{name: store.Collection().Name(), handler: h}
}

// Name returns the collection the module serves.
func (m *Module[T]) Name() string { return m.name }

// RegisterRoutes registers the collection's API routes.
func (m *Module[T]) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/" + m.name)
	g.POST("", m.handler.Create)
	g.GET("", m.handler.List)
	g.DELETE("", m.handler.DeleteMany)
	g.GET("/deleted", m.handler.ListDeleted)
	g.GET("/:id", m.handler.Get)
	g.PATCH("/:id", m.handler.Update)
	g.DELETE("/:id", m.handler.Delete)
	g.POST("/:id/restore", m.handler.Restore)
}
