package app

import (
	"github.com/gin-gonic/gin"

	"github.com/simp-lee/innkeeper/internal/docstore"
	"github.com/simp-lee/innkeeper/internal/module/resource"
	"github.com/simp-lee/innkeeper/internal/pkg"
	"github.com/simp-lee/innkeeper/internal/repository"
)

// Module defines the contract for a self-registering API module.
type Module interface {
	Name() string
	RegisterRoutes(api *gin.RouterGroup)
}

// Modules returns one resource module per registered collection.
func Modules(reg *repository.Registry, limits pkg.QueryLimits) []Module {
	return []Module{
		mount(reg.Users, limits),
		mount(reg.Hotels, limits),
		mount(reg.HotelCategories, limits),
		mount(reg.Rooms, limits),
		mount(reg.Bookings, limits),
		mount(reg.Payments, limits),
		mount(reg.Amenities, limits),
		mount(reg.AmenityCategories, limits),
		mount(reg.Subscriptions, limits),
		mount(reg.SubscriptionPlans, limits),
		mount(reg.Reviews, limits),
	}
}

func mount[T any](repo *docstore.Repository[T], limits pkg.QueryLimits) Module {
	return resource.NewModule[T](repo, resource.NewHandler[T](repo, limits))
}
