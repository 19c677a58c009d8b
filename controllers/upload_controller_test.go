package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/models"
	"github.com/foodbridge/foodbridge-api/services"
)

func newImageUploadRequest(t *testing.T, url, filename string, content []byte) *http.Request {
	t.Helper()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		t.Fatalf("Failed to create form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Failed to write form file: %v", err)
	}
	writer.Close()

	req, _ := http.NewRequest(http.MethodPost, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestUploadDonationImage(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	mockImages := services.NewMockImageService()
	mockImages.SetAsMockForTesting()
	defer services.SetImageService(nil)

	donor := createTestUser(t, db, "auth0|img-donor", "Donna Donor", "img-donor@example.com", "donor")
	other := createTestUser(t, db, "auth0|img-other", "Other Donor", "img-other@example.com", "donor")

	pngContent := []byte("\x89PNG\r\n\x1a\nfake image data")

	t.Run("owner uploads a PNG", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/image",
			mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
			UploadDonationImage,
		)

		req := newImageUploadRequest(t, fmt.Sprintf("/donations/%d/image", donation.ID), "meal.png", pngContent)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.NotNil(t, data["image_url"])

		var stored models.Donation
		assert.NoError(t, db.First(&stored, donation.ID).Error)
		assert.NotNil(t, stored.ImageS3Key)
		assert.True(t, mockImages.ImageExists(*stored.ImageS3Key))
	})

	t.Run("replacing a photo removes the old one", func(t *testing.T) {
		mockImages.Clear()
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/image",
			mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
			UploadDonationImage,
		)

		req := newImageUploadRequest(t, fmt.Sprintf("/donations/%d/image", donation.ID), "first.png", pngContent)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		req = newImageUploadRequest(t, fmt.Sprintf("/donations/%d/image", donation.ID), "second.png", pngContent)
		w = httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusOK, w.Code)

		assert.False(t, mockImages.ImageExists("donations/mock_first.png"))
		assert.True(t, mockImages.ImageExists("donations/mock_second.png"))

		var stored models.Donation
		assert.NoError(t, db.First(&stored, donation.ID).Error)
		assert.Equal(t, "donations/mock_second.png", *stored.ImageS3Key)
	})

	t.Run("non-PNG file is rejected", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/image",
			mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
			UploadDonationImage,
		)

		req := newImageUploadRequest(t, fmt.Sprintf("/donations/%d/image", donation.ID), "meal.jpg", pngContent)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		errorData := response["error"].(map[string]interface{})
		assert.Equal(t, "INVALID_FILE_FORMAT", errorData["code"])
	})

	t.Run("missing file part", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/image",
			mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
			UploadDonationImage,
		)

		req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/donations/%d/image", donation.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("non-owner cannot upload", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/image",
			mockAuthMiddleware(other.Auth0ID, "donor", "mock-token"),
			UploadDonationImage,
		)

		req := newImageUploadRequest(t, fmt.Sprintf("/donations/%d/image", donation.ID), "meal.png", pngContent)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("reserved donation photo is frozen", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusReserved, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/image",
			mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
			UploadDonationImage,
		)

		req := newImageUploadRequest(t, fmt.Sprintf("/donations/%d/image", donation.ID), "meal.png", pngContent)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}
