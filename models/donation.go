package models

import (
	"time"

	"gorm.io/gorm"
)

// Donation statuses. The lifecycle is linear:
// available -> reserved -> completed -> archived.
const (
	DonationStatusAvailable = "available"
	DonationStatusReserved  = "reserved"
	DonationStatusCompleted = "completed"
	DonationStatusArchived  = "archived"
)

// Food tags
const (
	FoodTagVeg    = "veg"
	FoodTagNonVeg = "non-veg"
)

// Donation represents a single food listing in the system
type Donation struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	FoodName    string `gorm:"not null" json:"food_name"`
	Description string `gorm:"type:text" json:"description"`
	FoodTag     string `gorm:"not null;default:'veg'" json:"food_tag"` // "veg" or "non-veg"
	Quantity    int    `gorm:"not null;check:quantity > 0" json:"quantity"` // servings
	ExpiryDate  time.Time `gorm:"not null" json:"expiry_date"`
	Address     string    `gorm:"not null" json:"address"`

	// Pickup coordinates. Both are nil when the donor gave no location;
	// such donations never match nearby queries.
	Latitude  *float64 `gorm:"index" json:"latitude"`
	Longitude *float64 `gorm:"index" json:"longitude"`

	DonorID   uint   `gorm:"not null;index" json:"donor_id"` // foreign key to users table
	Donor     User   `gorm:"foreignKey:DonorID" json:"donor"`
	DonorName string `gorm:"not null;default:'Anonymous'" json:"donor_name"` // snapshot at creation time, may drift

	Status       string     `gorm:"not null;default:'available';index" json:"status"`
	ReservedByID *uint      `gorm:"index" json:"reserved_by_id"` // set when a request is accepted
	ReservedBy   *User      `gorm:"foreignKey:ReservedByID" json:"reserved_by,omitempty"`
	CompletedAt  *time.Time `gorm:"index" json:"completed_at"` // drives archival

	ImageS3Key *string `json:"image_s3_key"`                 // nullable, S3 key for donation photo
	ImageURL   *string `gorm:"-" json:"image_url,omitempty"` // computed field, presigned URL for photo

	// Display-only annotation for nearby queries, not persisted.
	DistanceKm *float64 `gorm:"-" json:"distance_km,omitempty"`

	Requests []Request `gorm:"foreignKey:DonationID" json:"requests"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Donation model
func (Donation) TableName() string {
	return "donations"
}

// HasLocation reports whether the donation carries pickup coordinates.
func (d *Donation) HasLocation() bool {
	return d.Latitude != nil && d.Longitude != nil
}
