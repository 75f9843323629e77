package docstore

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/simp-lee/innkeeper/internal/domain"
)

// openTestDB creates an in-memory SQLite database. A single connection keeps
// every statement on the same in-memory database.
func openTestDB(t *testing.T, models ...any) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, m := range models {
		if err := db.AutoMigrate(m); err != nil {
			t.Fatalf("migrate %T: %v", m, err)
		}
	}
	return db
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixture attaches the lodging entities with the rules used across tests.
type fixture struct {
	db        *gorm.DB
	catalog   *Catalog
	logs      *syncBuffer
	users     *Repository[domain.User]
	hotels    *Repository[domain.Hotel]
	rooms     *Repository[domain.Room]
	bookings  *Repository[domain.Booking]
	amenities *Repository[domain.Amenity]
	reviews   *Repository[domain.Review]
	payments  *Repository[domain.Payment]
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := openTestDB(t,
		&domain.User{}, &domain.Hotel{}, &domain.Room{}, &domain.Booking{},
		&domain.Amenity{}, &domain.Review{}, &domain.Payment{},
	)
	logs := &syncBuffer{}
	f := &fixture{
		db:      db,
		catalog: NewCatalog(slog.New(slog.NewTextHandler(logs, nil))),
		logs:    logs,
	}

	var err error
	must := func(step string) {
		t.Helper()
		if err != nil {
			t.Fatalf("attach %s: %v", step, err)
		}
	}
	f.users, err = Attach[domain.User](db, f.catalog, WithReferenceRules(
		ReferenceRule{"hotels", "owner"},
		ReferenceRule{"hotels", "staff"},
		ReferenceRule{"bookings", "user"},
	))
	must("users")
	f.hotels, err = Attach[domain.Hotel](db, f.catalog, WithReferenceRules(
		ReferenceRule{"rooms", "hotel"},
		ReferenceRule{"bookings", "hotel"},
	))
	must("hotels")
	f.rooms, err = Attach[domain.Room](db, f.catalog, WithReferenceRules(
		ReferenceRule{"bookings", "room"},
		ReferenceRule{"reviews", "room"},
	))
	must("rooms")
	f.bookings, err = Attach[domain.Booking](db, f.catalog, WithReferenceRules(
		ReferenceRule{"payments", "booking"},
	))
	must("bookings")
	f.amenities, err = Attach[domain.Amenity](db, f.catalog, WithReferenceRules(
		ReferenceRule{"rooms", "amenities"},
		ReferenceRule{"hotels", "amenities"},
	))
	must("amenities")
	f.reviews, err = Attach[domain.Review](db, f.catalog)
	must("reviews")
	f.payments, err = Attach[domain.Payment](db, f.catalog)
	must("payments")

	if err := f.catalog.Validate(); err != nil {
		t.Fatalf("validate catalog: %v", err)
	}
	return f
}

func uintPtr(v uint) *uint { return &v }

func (f *fixture) createHotel(t *testing.T, name string) *domain.Hotel {
	t.Helper()
	h := &domain.Hotel{Name: name}
	if err := f.hotels.Create(context.Background(), h); err != nil {
		t.Fatalf("create hotel: %v", err)
	}
	return h
}

func (f *fixture) createRoom(t *testing.T, hotel *domain.Hotel, number int) *domain.Room {
	t.Helper()
	r := &domain.Room{RoomNumber: number, Type: domain.RoomSingle, Capacity: 2, PricePerNight: 100}
	if hotel != nil {
		r.HotelID = uintPtr(hotel.ID)
	}
	if err := f.rooms.Create(context.Background(), r); err != nil {
		t.Fatalf("create room: %v", err)
	}
	return r
}

func (f *fixture) createBooking(t *testing.T, room *domain.Room) *domain.Booking {
	t.Helper()
	checkIn := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	b := &domain.Booking{
		RoomID:   uintPtr(room.ID),
		HotelID:  room.HotelID,
		CheckIn:  checkIn,
		CheckOut: checkIn.Add(48 * time.Hour),
		Guests:   2,
		Guest:    domain.Guest{Name: "Ada", Email: "ada@example.com", AccessCode: "4711"},
		Status:   domain.BookingConfirmed,
	}
	if err := f.bookings.Create(context.Background(), b); err != nil {
		t.Fatalf("create booking: %v", err)
	}
	return b
}
