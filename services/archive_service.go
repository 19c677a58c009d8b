package services

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/models"
)

// ArchiveExpiredCompleted moves every completed donation whose completed_at
// is older than the threshold into the archived state. Archived donations
// stay in the table but are excluded from all listing queries.
//
// The sweep is idempotent and commutative with itself: re-running it finds
// nothing left to change, and it never touches donations in other states.
// Returns the number of donations archived.
func ArchiveExpiredCompleted(db *gorm.DB, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)

	result := db.Model(&models.Donation{}).
		Where("status = ? AND completed_at IS NOT NULL AND completed_at <= ?", models.DonationStatusCompleted, cutoff).
		Update("status", models.DonationStatusArchived)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to archive completed donations: %w", result.Error)
	}

	return result.RowsAffected, nil
}

// SweepArchives runs the archival sweep with the configured threshold and
// logs instead of failing. Listing handlers call this at the start of every
// read; a failed sweep must never fail the read itself.
func SweepArchives(db *gorm.DB) {
	threshold := time.Hour
	if cfg := config.GetConfig(); cfg != nil && cfg.ArchiveAfter > 0 {
		threshold = cfg.ArchiveAfter
	}

	archived, err := ArchiveExpiredCompleted(db, threshold)
	if err != nil {
		log.Printf("Archival sweep failed: %v", err)
		return
	}
	if archived > 0 {
		log.Printf("Archival sweep moved %d donation(s) to archived", archived)
	}
}
