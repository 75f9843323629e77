package domain

// AmenityCategory groups amenities (wellness, dining, ...).
type AmenityCategory struct {
	BaseModel
	Name        string `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string `json:"description,omitempty"`
}

// Amenity is a facility offered by a hotel or a room.
type Amenity struct {
	BaseModel
	Name        string           `gorm:"size:100;not null" json:"name" binding:"required"`
	Description string           `json:"description,omitempty"`
	CategoryID  *uint            `gorm:"index" json:"category_id,omitempty"`
	Category    *AmenityCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Icon        string           `json:"icon,omitempty"`
}

// Review is a guest's rating of a hotel or room.
type Review struct {
	BaseModel
	UserID  *uint  `gorm:"index" json:"user_id,omitempty"`
	User    *User  `gorm:"foreignKey:UserID" json:"user,omitempty"`
	HotelID *uint  `gorm:"index" json:"hotel_id,omitempty"`
	Hotel   *Hotel `gorm:"foreignKey:HotelID" json:"hotel,omitempty"`
	RoomID  *uint  `gorm:"index" json:"room_id,omitempty"`
	Room    *Room  `gorm:"foreignKey:RoomID" json:"room,omitempty"`
	Rating  int    `gorm:"not null" json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment,omitempty"`
}
