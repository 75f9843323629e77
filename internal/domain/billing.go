package domain

import "time"

// Payment records money paid for a booking or a hotel subscription.
type Payment struct {
	BaseModel
	BookingID      *uint         `gorm:"index" json:"booking_id,omitempty"`
	Booking        *Booking      `gorm:"foreignKey:BookingID" json:"booking,omitempty"`
	SubscriptionID *uint         `gorm:"index" json:"subscription_id,omitempty"`
	Subscription   *Subscription `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`
	UserID         *uint         `gorm:"index" json:"user_id,omitempty"`
	User           *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Amount        float64 `gorm:"not null" json:"amount" binding:"required,gt=0"`
	Currency      string  `gorm:"size:3" json:"currency,omitempty"`
	Method        string  `gorm:"size:16;not null" json:"method" binding:"required,oneof=credit_card debit_card upi paypal cash"`
	Status        string  `gorm:"size:16" json:"status,omitempty" binding:"omitempty,oneof=pending paid failed refunded"`
	TransactionID string  `gorm:"size:128" json:"transaction_id,omitempty"`
	InvoiceNumber string  `gorm:"size:64" json:"invoice_number,omitempty"`

	Discount      float64 `json:"discount"`
	Tax           float64 `json:"tax"`
	ServiceCharge float64 `json:"service_charge"`

	RefundDate   *time.Time `json:"refund_date,omitempty"`
	ErrorCode    string     `gorm:"size:64" json:"error_code,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Notes        string     `json:"notes,omitempty"`
}

// Subscription is a hotel's paid platform plan.
type Subscription struct {
	BaseModel
	HotelID        *uint      `gorm:"index" json:"hotel_id,omitempty"`
	Hotel          *Hotel     `gorm:"foreignKey:HotelID" json:"hotel,omitempty"`
	Plan           string     `gorm:"size:16;not null" json:"plan" binding:"required,oneof=basic standard premium"`
	Price          float64    `json:"price"`
	StartDate      time.Time  `json:"start_date"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	Status         string     `gorm:"size:16" json:"status,omitempty" binding:"omitempty,oneof=active expired cancelled"`
	PaymentHistory []Payment  `gorm:"many2many:subscription_payments" json:"payment_history,omitempty"`
}

// SubscriptionPlan is a purchasable plan offered to hotel owners.
type SubscriptionPlan struct {
	BaseModel
	Plan               string   `gorm:"size:64;not null;index" json:"plan" binding:"required"`
	Price              float64  `gorm:"not null" json:"price" binding:"min=0"`
	DurationInMonths   int      `gorm:"not null" json:"duration_in_months" binding:"required,min=1"`
	Features           []string `gorm:"serializer:json" json:"features,omitempty"`
	MaxRooms           int      `gorm:"not null" json:"max_rooms" binding:"required,min=1"`
	IsActive           bool     `gorm:"index" json:"is_active"`
	Description        string   `gorm:"not null" json:"description" binding:"required"`
	DiscountPercentage float64  `json:"discount_percentage" binding:"min=0,max=100"`
}
