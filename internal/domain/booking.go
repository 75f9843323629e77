package domain

import "time"

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingCompleted BookingStatus = "completed"
)

// Guest holds the contact of the person checking in. The door access code
// never leaves the system.
type Guest struct {
	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	AccessCode string `json:"access_code,omitempty" doc:"private"`
}

// Booking reserves a room for a date range.
type Booking struct {
	BaseModel
	UserID  *uint  `gorm:"index" json:"user_id,omitempty"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	HotelID *uint  `gorm:"index" json:"hotel_id,omitempty"`
	Hotel   *Hotel `gorm:"foreignKey:HotelID" json:"hotel,omitempty"`
	RoomID  *uint  `gorm:"index" json:"room_id,omitempty"`
	Room    *Room  `gorm:"foreignKey:RoomID" json:"room,omitempty"`

	CheckIn  time.Time     `gorm:"not null" json:"check_in" binding:"required"`
	CheckOut time.Time     `gorm:"not null" json:"check_out" binding:"required,gtfield=CheckIn"`
	Guests   int           `gorm:"not null" json:"guests" binding:"required,min=1"`
	Guest    Guest         `gorm:"embedded;embeddedPrefix:guest_" json:"guest"`
	Status   BookingStatus `gorm:"size:16" json:"status,omitempty" binding:"omitempty,oneof=pending confirmed cancelled completed"`

	PaymentID *uint    `gorm:"index" json:"payment_id,omitempty"`
	Payment   *Payment `gorm:"foreignKey:PaymentID" json:"payment,omitempty"`
}
