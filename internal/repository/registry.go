// Package repository wires every entity into the document store.
package repository

import (
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	"github.com/simp-lee/innkeeper/internal/docstore"
	"github.com/simp-lee/innkeeper/internal/domain"
)

// Registry holds the repository of every entity and the shared catalog.
type Registry struct {
	Catalog *docstore.Catalog

	Users             *docstore.Repository[domain.User]
	Hotels            *docstore.Repository[domain.Hotel]
	HotelCategories   *docstore.Repository[domain.HotelCategory]
	Rooms             *docstore.Repository[domain.Room]
	Bookings          *docstore.Repository[domain.Booking]
	Payments          *docstore.Repository[domain.Payment]
	Amenities         *docstore.Repository[domain.Amenity]
	AmenityCategories *docstore.Repository[domain.AmenityCategory]
	Subscriptions     *docstore.Repository[domain.Subscription]
	SubscriptionPlans *docstore.Repository[domain.SubscriptionPlan]
	Reviews           *docstore.Repository[domain.Review]
}

// Models returns every entity model, in migration order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.HotelCategory{},
		&domain.Hotel{},
		&domain.AmenityCategory{},
		&domain.Amenity{},
		&domain.Room{},
		&domain.Booking{},
		&domain.Payment{},
		&domain.Subscription{},
		&domain.SubscriptionPlan{},
		&domain.Review{},
	}
}

func rule(collection, field string) docstore.ReferenceRule {
	return docstore.ReferenceRule{Collection: collection, Field: field}
}

// New attaches every entity to a fresh catalog and validates the
// reference rules.
func New(db *gorm.DB, logger *slog.Logger) (*Registry, error) {
	r := &Registry{Catalog: docstore.NewCatalog(logger)}
	var err error

	attach := func(step string, fn func() error) {
		if err != nil {
			return
		}
		if e := fn(); e != nil {
			err = fmt.Errorf("attach %s: %w", step, e)
		}
	}

	attach("users", func() (e error) {
		r.Users, e = docstore.Attach[domain.User](db, r.Catalog,
			docstore.WithReferenceRules(
				rule("hotels", "owner"),
				rule("hotels", "staff"),
				rule("bookings", "user"),
				rule("payments", "user"),
				rule("reviews", "user"),
				rule("rooms", "assigned_to"),
			),
		)
		return e
	})
	attach("hotels", func() (e error) {
		r.Hotels, e = docstore.Attach[domain.Hotel](db, r.Catalog,
			docstore.WithReferenceRules(
				rule("rooms", "hotel"),
				rule("bookings", "hotel"),
				rule("subscriptions", "hotel"),
				rule("reviews", "hotel"),
				rule("users", "hotel"),
			),
		)
		return e
	})
	attach("hotel_categories", func() (e error) {
		r.HotelCategories, e = docstore.Attach[domain.HotelCategory](db, r.Catalog,
			docstore.WithReferenceRules(rule("hotels", "category")),
		)
		return e
	})
	attach("rooms", func() (e error) {
		r.Rooms, e = docstore.Attach[domain.Room](db, r.Catalog,
			docstore.WithReferenceRules(
				rule("bookings", "room"),
				rule("reviews", "room"),
				rule("hotels", "rooms"),
			),
		)
		return e
	})
	attach("bookings", func() (e error) {
		r.Bookings, e = docstore.Attach[domain.Booking](db, r.Catalog,
			docstore.WithReferenceRules(
				rule("payments", "booking"),
				rule("users", "bookings"),
			),
		)
		return e
	})
	attach("payments", func() (e error) {
		r.Payments, e = docstore.Attach[domain.Payment](db, r.Catalog,
			docstore.WithReferenceRules(
				rule("bookings", "payment"),
				rule("subscriptions", "payment_history"),
			),
			docstore.WithTransform(maskTransactionID),
		)
		return e
	})
	attach("amenities", func() (e error) {
		r.Amenities, e = docstore.Attach[domain.Amenity](db, r.Catalog,
			docstore.WithReferenceRules(
				rule("rooms", "amenities"),
				rule("hotels", "amenities"),
			),
		)
		return e
	})
	attach("amenity_categories", func() (e error) {
		r.AmenityCategories, e = docstore.Attach[domain.AmenityCategory](db, r.Catalog,
			docstore.WithReferenceRules(rule("amenities", "category")),
		)
		return e
	})
	attach("subscriptions", func() (e error) {
		r.Subscriptions, e = docstore.Attach[domain.Subscription](db, r.Catalog,
			docstore.WithReferenceRules(
				rule("hotels", "subscription"),
				rule("users", "subscription"),
				rule("payments", "subscription"),
			),
		)
		return e
	})
	attach("subscription_plans", func() (e error) {
		r.SubscriptionPlans, e = docstore.Attach[domain.SubscriptionPlan](db, r.Catalog)
		return e
	})
	attach("reviews", func() (e error) {
		r.Reviews, e = docstore.Attach[domain.Review](db, r.Catalog)
		return e
	})
	if err != nil {
		return nil, err
	}

	if err := r.Catalog.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// maskTransactionID keeps only the last four characters of a payment
// gateway transaction id.
func maskTransactionID(doc map[string]any) {
	id, ok := doc["transaction_id"].(string)
	if !ok || len(id) <= 4 {
		return
	}
	doc["transaction_id"] = strings.Repeat("*", len(id)-4) + id[len(id)-4:]
}
