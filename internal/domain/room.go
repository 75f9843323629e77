package domain

import "time"

// RoomType enumerates the kinds of rooms.
type RoomType string

const (
	RoomSingle RoomType = "single"
	RoomDouble RoomType = "double"
	RoomSuite  RoomType = "suite"
	RoomDeluxe RoomType = "deluxe"
)

// RoomStatus is the housekeeping state of a room.
type RoomStatus string

const (
	RoomReady       RoomStatus = "ready"
	RoomOccupied    RoomStatus = "occupied"
	RoomCleaning    RoomStatus = "cleaning"
	RoomMaintenance RoomStatus = "maintenance"
)

// Maintenance describes an ongoing maintenance window.
type Maintenance struct {
	Reason    string     `json:"reason,omitempty"`
	UntilDate *time.Time `json:"until_date,omitempty"`
	Active    bool       `json:"active"`
}

// Discount is a per-room price reduction.
type Discount struct {
	Amount    float64    `json:"amount"`
	Kind      string     `gorm:"size:16" json:"kind,omitempty" binding:"omitempty,oneof=percentage fixed"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Room is a bookable unit of a hotel.
type Room struct {
	BaseModel
	HotelID       *uint    `gorm:"index" json:"hotel_id,omitempty"`
	Hotel         *Hotel   `gorm:"foreignKey:HotelID" json:"hotel,omitempty"`
	RoomNumber    int      `gorm:"not null" json:"room_number" binding:"required,min=1"`
	Floor         int      `gorm:"not null" json:"floor" binding:"min=0"`
	Type          RoomType `gorm:"size:16;not null" json:"type" binding:"required,oneof=single double suite deluxe"`
	PricePerNight float64  `gorm:"not null" json:"price_per_night" binding:"min=0"`
	Capacity      int      `gorm:"not null" json:"capacity" binding:"required,min=1"`

	Amenities   []Amenity   `gorm:"many2many:room_amenities" json:"amenities,omitempty"`
	IsAvailable bool        `json:"is_available"`
	Images      []string    `gorm:"serializer:json" json:"images,omitempty"`
	Maintenance Maintenance `gorm:"embedded;embeddedPrefix:maintenance_" json:"maintenance"`
	Status      RoomStatus  `gorm:"size:16" json:"status,omitempty" binding:"omitempty,oneof=ready occupied cleaning maintenance"`
	Discount    Discount    `gorm:"embedded;embeddedPrefix:discount_" json:"discount"`

	AssignedToID *uint `gorm:"index" json:"assigned_to_id,omitempty"`
	AssignedTo   *User `gorm:"foreignKey:AssignedToID" json:"assigned_to,omitempty"`
}
