package models

import (
	"time"

	"gorm.io/gorm"
)

// Request statuses
const (
	RequestStatusPending   = "pending"
	RequestStatusAccepted  = "accepted"
	RequestStatusRejected  = "rejected"
	RequestStatusCompleted = "completed"
)

// Request represents a recipient's pickup request on a donation.
// Requests are owned by their parent donation and have no independent
// lifecycle. The composite unique index guarantees at most one request
// per (donation, requester) pair, including under concurrent submission.
type Request struct {
	ID          uint     `gorm:"primaryKey" json:"id"`
	DonationID  uint     `gorm:"not null;index;uniqueIndex:idx_donation_requester" json:"donation_id"`
	Donation    Donation `gorm:"foreignKey:DonationID" json:"-"` // don't include full donation in JSON
	RequesterID uint     `gorm:"not null;index;uniqueIndex:idx_donation_requester" json:"requester_id"`
	Requester   User     `gorm:"foreignKey:RequesterID" json:"-"`

	// Snapshot of the requesting user at submission time
	RequesterName  string `gorm:"not null" json:"requester_name"`
	RequesterEmail string `gorm:"not null" json:"requester_email"`

	Message     string    `gorm:"type:text;not null" json:"message"`
	Status      string    `gorm:"not null;default:'pending'" json:"status"`
	RequestDate time.Time `gorm:"not null" json:"request_date"`

	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the Request model
func (Request) TableName() string {
	return "requests"
}
