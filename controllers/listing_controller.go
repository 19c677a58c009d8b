package controllers

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/models"
	"github.com/foodbridge/foodbridge-api/services"
	"github.com/foodbridge/foodbridge-api/utils"
)

// DefaultNearbyRadiusKm is used when a nearby query omits radius_km.
const DefaultNearbyRadiusKm = 5.0

// applySearchFilters adds the optional tag and free-text filters to a
// donation query. Tag is an exact match; q is a case-insensitive substring
// match against the food name or the pickup address.
func applySearchFilters(c *gin.Context, query *gorm.DB) *gorm.DB {
	if tag := c.Query("tag"); tag != "" {
		query = query.Where("food_tag = ?", tag)
	}
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		pattern := "%" + strings.ToLower(q) + "%"
		query = query.Where("LOWER(food_name) LIKE ? OR LOWER(address) LIKE ?", pattern, pattern)
	}
	return query
}

// ListDonations handles GET /api/v1/donations - all available donations,
// newest first, with optional tag and q filters.
func ListDonations(c *gin.Context) {
	db := config.GetDB()

	// Lazy archival: hygiene ride-along on every listing read
	services.SweepArchives(db)

	query := db.Preload("Donor").
		Where("status = ?", models.DonationStatusAvailable).
		Order("created_at DESC")
	query = applySearchFilters(c, query)

	var donations []models.Donation
	if err := query.Find(&donations).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch donations",
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

// ListNearbyDonations handles GET /api/v1/donations/nearby?lat&lon&radius_km
// - available donations within the radius of the given point, ordered by
// increasing distance and annotated with distance_km.
//
// The SQL side only prefilters with a bounding box on the indexed lat/lon
// columns; the exact great-circle cut and the ordering use the haversine
// distance. Donations without coordinates never match.
func ListNearbyDonations(c *gin.Context) {
	latStr := c.Query("lat")
	lonStr := c.Query("lon")
	if latStr == "" || lonStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_COORDINATES",
				"message": "lat and lon query parameters are required",
			},
		})
		return
	}

	lat, latErr := strconv.ParseFloat(latStr, 64)
	lon, lonErr := strconv.ParseFloat(lonStr, 64)
	if latErr != nil || lonErr != nil || !utils.ValidCoordinates(lat, lon) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_COORDINATES",
				"message": "lat and lon must be valid coordinates",
			},
		})
		return
	}

	radiusKm := DefaultNearbyRadiusKm
	if radiusStr := c.Query("radius_km"); radiusStr != "" {
		parsed, err := strconv.ParseFloat(radiusStr, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "VALIDATION_ERROR",
					"message": "radius_km must be a positive number",
				},
			})
			return
		}
		radiusKm = parsed
	}

	db := config.GetDB()
	services.SweepArchives(db)

	minLat, maxLat, minLon, maxLon := utils.BoundingBox(lat, lon, radiusKm)
	query := db.Preload("Donor").
		Where("status = ?", models.DonationStatusAvailable).
		Where("latitude IS NOT NULL AND longitude IS NOT NULL").
		Where("latitude BETWEEN ? AND ?", minLat, maxLat).
		Where("longitude BETWEEN ? AND ?", minLon, maxLon)
	query = applySearchFilters(c, query)

	var candidates []models.Donation
	if err := query.Find(&candidates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch donations",
			},
		})
		return
	}

	// Exact cut: keep distance <= radius, boundary inclusive
	donations := make([]models.Donation, 0, len(candidates))
	for i := range candidates {
		distance := utils.HaversineKm(lat, lon, *candidates[i].Latitude, *candidates[i].Longitude)
		if distance <= radiusKm {
			candidates[i].DistanceKm = &distance
			donations = append(donations, candidates[i])
		}
	}

	sort.SliceStable(donations, func(i, j int) bool {
		return *donations[i].DistanceKm < *donations[j].DistanceKm
	})

	annotateImageURLs(donations)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    donations,
	})
}

// ListMyDonations handles GET /api/v1/donations/mine - every donation owned
// by the caller regardless of status, newest first, with aggregate stats.
func ListMyDonations(c *gin.Context) {
	user, ok := getCurrentUser(c)
	if !ok {
		return
	}

	db := config.GetDB()
	var donations []models.Donation
	err := db.Preload("Requests").
		Where("donor_id = ?", user.ID).
		Order("created_at DESC").
		Find(&donations).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch donations",
			},
		})
		return
	}

	annotateImageURLs(donations)

	addresses := make([]string, 0, len(donations))
	for i := range donations {
		addresses = append(addresses, donations[i].Address)
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    donations,
		"stats": gin.H{
			"total":        len(donations),
			"impact_zones": utils.CountImpactZones(addresses),
		},
	})
}
