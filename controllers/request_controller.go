package controllers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/models"
)

// DefaultRequestMessage is used when a recipient submits a request with no message.
const DefaultRequestMessage = "I would like to request this donation."

// SubmitRequestBody represents the request body for submitting a pickup request
type SubmitRequestBody struct {
	Message string `json:"message"`
}

// DecideRequestBody represents the request body for accepting or rejecting a request
type DecideRequestBody struct {
	Decision string `json:"decision" binding:"required,oneof=accept reject"`
}

// SubmitRequest handles POST /api/v1/donations/:id/requests - a recipient
// expresses interest in an available donation. The composite unique index on
// (donation_id, requester_id) is the race guard against duplicate submission.
func SubmitRequest(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	// The message is optional and so is the body itself
	var body SubmitRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
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

	if donation.Status != models.DonationStatusAvailable {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "Donation is no longer available",
			},
		})
		return
	}

	message := strings.TrimSpace(body.Message)
	if message == "" {
		message = DefaultRequestMessage
	}

	request := models.Request{
		DonationID:     donation.ID,
		RequesterID:    user.ID,
		RequesterName:  user.Name,
		RequesterEmail: user.Email,
		Message:        message,
		Status:         models.RequestStatusPending,
		RequestDate:    time.Now(),
	}

	if err := db.Create(&request).Error; err != nil {
		// Duplicate (donation, requester) pair trips the unique index
		// (works with both PostgreSQL and SQLite)
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "duplicate") ||
			strings.Contains(errMsg, "unique constraint") ||
			strings.Contains(errMsg, "unique") {
			c.JSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "DUPLICATE_REQUEST",
					"message": "You have already requested this donation",
				},
			})
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to submit request",
			},
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    request,
	})
}

// DecideRequest handles PATCH /api/v1/donations/:id/requests/:requestId -
// the donor accepts or rejects a pending request.
//
// Accepting is a single transaction: a conditional update reserves the
// donation only while it is still available, the target request becomes
// accepted, and every sibling pending request becomes rejected. Two
// concurrent accepts on the same donation cannot both succeed; the loser
// observes the conditional update matching zero rows and gets 409.
func DecideRequest(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	var body DecideRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
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
				"message": "Only the donor can decide requests on this donation",
			},
		})
		return
	}

	var request models.Request
	if err := db.Where("id = ? AND donation_id = ?", c.Param("requestId"), donation.ID).First(&request).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REQUEST_NOT_FOUND",
				"message": "Request not found on this donation",
			},
		})
		return
	}

	if request.Status != models.RequestStatusPending {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "Only pending requests can be decided",
			},
		})
		return
	}

	var err error
	if body.Decision == "accept" {
		err = db.Transaction(func(tx *gorm.DB) error {
			result := tx.Model(&models.Donation{}).
				Where("id = ? AND status = ?", donation.ID, models.DonationStatusAvailable).
				Updates(map[string]interface{}{
					"status":         models.DonationStatusReserved,
					"reserved_by_id": request.RequesterID,
				})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return errStateConflict
			}

			if err := tx.Model(&models.Request{}).
				Where("id = ?", request.ID).
				Update("status", models.RequestStatusAccepted).Error; err != nil {
				return err
			}

			// Every other pending request loses; already-rejected ones stay rejected
			return tx.Model(&models.Request{}).
				Where("donation_id = ? AND id <> ? AND status = ?", donation.ID, request.ID, models.RequestStatusPending).
				Update("status", models.RequestStatusRejected).Error
		})
	} else {
		err = db.Model(&models.Request{}).
			Where("id = ?", request.ID).
			Update("status", models.RequestStatusRejected).Error
	}

	if errors.Is(err, errStateConflict) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CONFLICT",
				"message": "Donation is no longer available",
			},
		})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to update request",
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

// ListDonorRequests handles GET /api/v1/donors/me/requests - every donation
// owned by the caller that has at least one request, with the full embedded
// request list so the donor can accept, reject, or complete.
func ListDonorRequests(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var donations []models.Donation
	err := db.Preload("Requests", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("request_date ASC")
	}).
		Where("donor_id = ? AND id IN (?)",
			user.ID,
			db.Model(&models.Request{}).Select("donation_id"),
		).
		Order("created_at DESC").
		Find(&donations).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch requests",
			},
		})
		return
	}

	annotateImageURLs(donations)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    donations,
	})
}

// RecipientRequestView is the flattened record returned to a recipient:
// a donation summary, the recipient's own request, and the donor contact
// snapshot needed to arrange pickup.
type RecipientRequestView struct {
	DonationID  uint       `json:"donation_id"`
	FoodName    string     `json:"food_name"`
	FoodTag     string     `json:"food_tag"`
	Quantity    int        `json:"quantity"`
	Address     string     `json:"address"`
	ExpiryDate  time.Time  `json:"expiry_date"`
	Status      string     `json:"donation_status"`
	DonorName   string     `json:"donor_name"`
	DonorEmail  string     `json:"donor_email"`
	RequestID   uint       `json:"request_id"`
	Message     string     `json:"message"`
	ReqStatus   string     `json:"request_status"`
	RequestDate time.Time  `json:"request_date"`
	ImageURL    *string    `json:"image_url,omitempty"`
}

// ListRecipientRequests handles GET /api/v1/recipients/me/requests - one
// flattened record per request the caller has submitted.
func ListRecipientRequests(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var requests []models.Request
	err := db.Preload("Donation").Preload("Donation.Donor").
		Where("requester_id = ?", user.ID).
		Order("request_date DESC").
		Find(&requests).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch requests",
			},
		})
		return
	}

	views := make([]RecipientRequestView, 0, len(requests))
	for i := range requests {
		donation := requests[i].Donation
		annotateImageURL(&donation)
		views = append(views, RecipientRequestView{
			DonationID:  donation.ID,
			FoodName:    donation.FoodName,
			FoodTag:     donation.FoodTag,
			Quantity:    donation.Quantity,
			Address:     donation.Address,
			ExpiryDate:  donation.ExpiryDate,
			Status:      donation.Status,
			DonorName:   donation.DonorName,
			DonorEmail:  donation.Donor.Email,
			RequestID:   requests[i].ID,
			Message:     requests[i].Message,
			ReqStatus:   requests[i].Status,
			RequestDate: requests[i].RequestDate,
			ImageURL:    donation.ImageURL,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    views,
	})
}
