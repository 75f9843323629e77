package domain

// Address is the postal address of a hotel.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	Country string `json:"country,omitempty"`
	Zip     string `json:"zip,omitempty"`
}

// Hotel is a property listed on the platform.
type Hotel struct {
	BaseModel
	OwnerID     *uint   `gorm:"index" json:"owner_id,omitempty"`
	Owner       *User   `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Name        string  `gorm:"size:200;not null" json:"name" binding:"required,max=200"`
	Description string  `json:"description,omitempty"`
	Address     Address `gorm:"embedded;embeddedPrefix:address_" json:"address"`

	CategoryID     *uint          `gorm:"index" json:"category_id,omitempty"`
	Category       *HotelCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SubscriptionID *uint          `gorm:"index" json:"subscription_id,omitempty"`
	Subscription   *Subscription  `gorm:"foreignKey:SubscriptionID" json:"subscription,omitempty"`

	Rooms     []Room    `gorm:"foreignKey:HotelID" json:"rooms,omitempty"`
	Amenities []Amenity `gorm:"many2many:hotel_amenities" json:"amenities,omitempty"`
	Staff     []User    `gorm:"many2many:hotel_staff" json:"staff,omitempty"`

	Rating float64  `json:"rating"`
	Images []string `gorm:"serializer:json" json:"images,omitempty"`
}

// HotelCategory groups hotels (resort, boutique, ...).
type HotelCategory struct {
	BaseModel
	Name        string `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
	Icon        string `json:"icon,omitempty"`
}
