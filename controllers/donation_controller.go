package controllers

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/models"
	"github.com/foodbridge/foodbridge-api/services"
	"github.com/foodbridge/foodbridge-api/utils"
)

// expiryDateLayouts are the accepted formats for the expiry_date field.
// The dashboard sends a plain date, API clients may send full RFC3339.
var expiryDateLayouts = []string{"2006-01-02", time.RFC3339}

// CreateDonationRequest represents the request body for creating a donation
type CreateDonationRequest struct {
	FoodName    string   `json:"food_name" binding:"required"`
	Description string   `json:"description"`
	FoodTag     string   `json:"food_tag" binding:"omitempty,oneof=veg non-veg"`
	Quantity    int      `json:"quantity" binding:"required,gt=0"`
	ExpiryDate  string   `json:"expiry_date" binding:"required"`
	Address     string   `json:"address" binding:"required"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// UpdateDonationRequest represents the request body for editing a donation
type UpdateDonationRequest struct {
	FoodName    *string  `json:"food_name"`
	Description *string  `json:"description"`
	FoodTag     *string  `json:"food_tag" binding:"omitempty,oneof=veg non-veg"`
	Quantity    *int     `json:"quantity" binding:"omitempty,gt=0"`
	ExpiryDate  *string  `json:"expiry_date"`
	Address     *string  `json:"address"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

// UpdateDonationStatusRequest represents the request body for PATCH /donations/:id
type UpdateDonationStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=completed"`
}

func parseExpiryDate(value string) (time.Time, bool) {
	for _, layout := range expiryDateLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// validateLocationPair ensures coordinates come as a complete, valid pair.
func validateLocationPair(lat, lon *float64) (code, message string, ok bool) {
	if lat == nil && lon == nil {
		return "", "", true
	}
	if lat == nil || lon == nil {
		return "INVALID_COORDINATES", "Latitude and longitude must be provided together", false
	}
	if !utils.ValidCoordinates(*lat, *lon) {
		return "INVALID_COORDINATES", "Coordinates are out of range", false
	}
	return "", "", true
}

// CreateDonation handles POST /api/v1/donations - creates a new donation (donors only)
func CreateDonation(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	// Only donor accounts may list food, on every creation path
	if user.Role != "donor" {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only donors can create donations",
			},
		})
		return
	}

	var req CreateDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	expiryDate, parsed := parseExpiryDate(req.ExpiryDate)
	if !parsed {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "expiry_date must be YYYY-MM-DD or RFC3339",
			},
		})
		return
	}

	if code, message, valid := validateLocationPair(req.Latitude, req.Longitude); !valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": message,
			},
		})
		return
	}

	foodTag := req.FoodTag
	if foodTag == "" {
		foodTag = models.FoodTagVeg
	}

	donation := models.Donation{
		FoodName:    req.FoodName,
		Description: req.Description,
		FoodTag:     foodTag,
		Quantity:    req.Quantity,
		ExpiryDate:  expiryDate,
		Address:     req.Address,
		Latitude:    req.Latitude,
		Longitude:   req.Longitude,
		DonorID:     user.ID,
		DonorName:   user.Name, // snapshot, may drift from later profile edits
		Status:      models.DonationStatusAvailable,
	}

	db := config.GetDB()
	if err := db.Create(&donation).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to create donation",
			},
		})
		return
	}

	// Load the donor relationship to return complete data
	if err := db.Preload("Donor").First(&donation, donation.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load donation details",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    donation,
	})
}

// GetDonation handles GET /api/v1/donations/:id - fetches a single donation
func GetDonation(c *gin.Context) {
	db := config.GetDB()

	var donation models.Donation
	if err := db.Preload("Donor").Preload("Requests").First(&donation, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DONATION_NOT_FOUND",
				"message": "Donation not found",
			},
		})
		return
	}

	annotateImageURL(&donation)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    donation,
	})
}

// UpdateDonation handles PUT /api/v1/donations/:id - edits a donation
// Only the owner may edit, and only while the donation is still available.
func UpdateDonation(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var donation models.Donation
	if err := db.First(&donation, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DONATION_NOT_FOUND",
				"message": "Donation not found",
			},
		})
		return
	}

	if donation.DonorID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only the donor can edit this donation",
			},
		})
		return
	}

	if donation.Status != models.DonationStatusAvailable {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "Only available donations can be edited",
			},
		})
		return
	}

	var req UpdateDonationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	if code, message, valid := validateLocationPair(req.Latitude, req.Longitude); !valid {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    code,
				"message": message,
			},
		})
		return
	}

	updates := make(map[string]interface{})
	if req.FoodName != nil {
		updates["food_name"] = *req.FoodName
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.FoodTag != nil {
		updates["food_tag"] = *req.FoodTag
	}
	if req.Quantity != nil {
		updates["quantity"] = *req.Quantity
	}
	if req.ExpiryDate != nil {
		expiryDate, parsed := parseExpiryDate(*req.ExpiryDate)
		if !parsed {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "expiry_date must be YYYY-MM-DD or RFC3339",
				},
			})
			return
		}
		updates["expiry_date"] = expiryDate
	}
	if req.Address != nil {
		updates["address"] = *req.Address
	}
	if req.Latitude != nil && req.Longitude != nil {
		updates["latitude"] = *req.Latitude
		updates["longitude"] = *req.Longitude
	}

	if len(updates) == 0 {
		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"data":    donation,
		})
		return
	}

	if err := db.Model(&donation).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update donation",
			},
		})
		return
	}

	if err := db.Preload("Donor").First(&donation, donation.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load donation details",
			},
		})
		return
	}

	annotateImageURL(&donation)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    donation,
	})
}

// CompleteDonation handles PATCH /api/v1/donations/:id - marks a reserved
// donation as completed. The conditional update keyed on status=reserved is
// the concurrency guard: a second complete call loses the race and gets 409.
func CompleteDonation(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	var req UpdateDonationStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	db := config.GetDB()
	var donation models.Donation
	if err := db.First(&donation, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DONATION_NOT_FOUND",
				"message": "Donation not found",
			},
		})
		return
	}

	if donation.DonorID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only the donor can complete this donation",
			},
		})
		return
	}

	now := time.Now()
	err := db.Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Donation{}).
			Where("id = ? AND status = ?", donation.ID, models.DonationStatusReserved).
			Updates(map[string]interface{}{
				"status":       models.DonationStatusCompleted,
				"completed_at": now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return errStateConflict
		}

		// The single accepted request rides along to completed
		return tx.Model(&models.Request{}).
			Where("donation_id = ? AND status = ?", donation.ID, models.RequestStatusAccepted).
			Update("status", models.RequestStatusCompleted).Error
	})
	if errors.Is(err, errStateConflict) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "Only reserved donations can be completed",
			},
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to complete donation",
			},
		})
		return
	}

	if err := db.Preload("Donor").Preload("Requests").First(&donation, donation.ID).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to load donation details",
			},
		})
		return
	}

	annotateImageURL(&donation)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    donation,
	})
}

// DeleteDonation handles DELETE /api/v1/donations/:id - removes a donation.
// Only the owner may delete, and only while the donation is still available;
// reserved and completed donations stay for the other party's records.
func DeleteDonation(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var donation models.Donation
	if err := db.First(&donation, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DONATION_NOT_FOUND",
				"message": "Donation not found",
			},
		})
		return
	}

	if donation.DonorID != user.ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "Only the donor can delete this donation",
			},
		})
		return
	}

	if donation.Status != models.DonationStatusAvailable {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "Only available donations can be deleted",
			},
		})
		return
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("donation_id = ?", donation.ID).Delete(&models.Request{}).Error; err != nil {
			return err
		}
		return tx.Delete(&donation).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to delete donation",
			},
		})
		return
	}

	// Best-effort photo cleanup; the donation is already gone
	if donation.ImageS3Key != nil && *donation.ImageS3Key != "" {
		if imageService := services.GetImageService(); imageService != nil {
			if err := imageService.DeleteImage(*donation.ImageS3Key); err != nil {
				log.Printf("Failed to delete image for donation %d: %v", donation.ID, err)
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Donation deleted successfully",
	})
}
