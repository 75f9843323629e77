package domain

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// UserRole is the platform role of a user.
type UserRole string

const (
	RolePlatformAdmin UserRole = "platform_admin"
	RoleHotelOwner    UserRole = "hotel_owner"
	RoleHotelStaff    UserRole = "hotel_staff"
	RoleCustomer      UserRole = "customer"
)

// User represents a user in the system.
type User struct {
	BaseModel
	Name     string   `gorm:"size:100;not null" json:"name" binding:"required,min=2,max=100"`
	Email    string   `gorm:"size:255;uniqueIndex;not null" json:"email" binding:"required,email"`
	Password string   `gorm:"size:255;not null" json:"password,omitempty" doc:"private"`
	Phone    string   `gorm:"size:32" json:"phone,omitempty"`
	Role     UserRole `gorm:"size:32;not null" json:"role" binding:"omitempty,oneof=platform_admin hotel_owner hotel_staff customer"`

	// Tenant hotel for staff and owners.
	HotelID *uint  `gorm:"index" json:"hotel_id,omitempty"`
	Hotel   *Hotel `gorm:"foreignKey:HotelID" json:"hotel,omitempty"`

	Bookings []Booking `gorm:"many2many:user_bookings" json:"bookings,omitempty"`

	SubscriptionID *uint         `gorm:"index" json:"subscription_id,omitempty"`
	Subscription   *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
}

// BeforeCreate defaults the role to customer.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.Role == "" {
		u.Role = RoleCustomer
		tx.Statement.SetColumn("Role", u.Role)
	}
	return nil
}

// BeforeSave hashes a plain-text password. Values that already are bcrypt
// hashes are left alone so partial updates do not double-hash.
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Password == "" || isBcryptHash(u.Password) {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = string(hash)
	tx.Statement.SetColumn("Password", u.Password)
	return nil
}

// ComparePassword reports whether plain matches the stored password hash.
func (u *User) ComparePassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plain)) == nil
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
