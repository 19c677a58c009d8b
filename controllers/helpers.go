package controllers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/middleware"
	"github.com/foodbridge/foodbridge-api/models"
	"github.com/foodbridge/foodbridge-api/services"
)

// errStateConflict is returned from transactions whose conditional update
// found the donation no longer in the required state (race loser included).
var errStateConflict = errors.New("donation state conflict")

// getCurrentUser resolves the authenticated user from the JWT subject.
// On failure it writes the error response and returns ok=false.
func getCurrentUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return nil, false
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User profile not found. Please create a profile first.",
			},
		})
		return nil, false
	}

	return &user, true
}

// annotateImageURL fills in the presigned photo URL for a donation.
// Best-effort: a failed presign only loses the annotation, never the request.
func annotateImageURL(donation *models.Donation) {
	if donation.ImageS3Key == nil || *donation.ImageS3Key == "" {
		return
	}

	imageService := services.GetImageService()
	if imageService == nil {
		return
	}

	url, err := imageService.GetImageURL(*donation.ImageS3Key)
	if err != nil {
		log.Printf("Failed to generate image URL for donation %d: %v", donation.ID, err)
		return
	}
	if url != "" {
		donation.ImageURL = &url
	}
}

// annotateImageURLs fills in presigned photo URLs for a slice of donations.
func annotateImageURLs(donations []models.Donation) {
	for i := range donations {
		annotateImageURL(&donations[i])
	}
}
