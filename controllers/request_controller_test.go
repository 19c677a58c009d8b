package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/foodbridge/foodbridge-api/config"
	"github.com/foodbridge/foodbridge-api/models"
)

func createTestRequest(t *testing.T, db *gorm.DB, donation models.Donation, requester models.User, status string) models.Request {
	t.Helper()
	request := models.Request{
		DonationID:     donation.ID,
		RequesterID:    requester.ID,
		RequesterName:  requester.Name,
		RequesterEmail: requester.Email,
		Message:        "Can I pick this up?",
		Status:         status,
		RequestDate:    time.Now(),
	}
	if err := db.Create(&request).Error; err != nil {
		t.Fatalf("Failed to create test request: %v", err)
	}
	return request
}

func TestSubmitRequest(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	donor := createTestUser(t, db, "auth0|sr-donor", "Donna Donor", "sr-donor@example.com", "donor")
	recipient := createTestUser(t, db, "auth0|sr-recipient", "Rae Recipient", "sr-recipient@example.com", "recipient")

	t.Run("submit with message", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/requests",
			mockAuthMiddleware(recipient.Auth0ID, "recipient", "mock-token"),
			SubmitRequest,
		)

		body, _ := json.Marshal(map[string]interface{}{"message": "I can collect before 8pm"})
		req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/donations/%d/requests", donation.ID), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, "I can collect before 8pm", data["message"])
		assert.Equal(t, "pending", data["status"])
		assert.Equal(t, recipient.Name, data["requester_name"])
		assert.Equal(t, recipient.Email, data["requester_email"])
	})

	t.Run("submit without body uses default message", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/requests",
			mockAuthMiddleware(recipient.Auth0ID, "recipient", "mock-token"),
			SubmitRequest,
		)

		req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/donations/%d/requests", donation.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusCreated, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		data := response["data"].(map[string]interface{})
		assert.Equal(t, DefaultRequestMessage, data["message"])
	})

	t.Run("duplicate request is rejected and first is untouched", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
		first := createTestRequest(t, db, donation, recipient, models.RequestStatusPending)

		router := setupTestRouter()
		router.POST("/donations/:id/requests",
			mockAuthMiddleware(recipient.Auth0ID, "recipient", "mock-token"),
			SubmitRequest,
		)

		body, _ := json.Marshal(map[string]interface{}{"message": "asking again"})
		req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/donations/%d/requests", donation.ID), bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		errorData := response["error"].(map[string]interface{})
		assert.Equal(t, "DUPLICATE_REQUEST", errorData["code"])

		var stored models.Request
		assert.NoError(t, db.First(&stored, first.ID).Error)
		assert.Equal(t, "Can I pick this up?", stored.Message)
		assert.Equal(t, models.RequestStatusPending, stored.Status)
	})

	t.Run("reserved donation cannot be requested", func(t *testing.T) {
		donation := createTestDonation(t, db, donor, models.DonationStatusReserved, nil, nil)

		router := setupTestRouter()
		router.POST("/donations/:id/requests",
			mockAuthMiddleware(recipient.Auth0ID, "recipient", "mock-token"),
			SubmitRequest,
		)

		req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("/donations/%d/requests", donation.ID), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)

		var response map[string]interface{}
		assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		errorData := response["error"].(map[string]interface{})
		assert.Equal(t, "CONFLICT", errorData["code"])
	})

	t.Run("missing donation yields 404", func(t *testing.T) {
		router := setupTestRouter()
		router.POST("/donations/:id/requests",
			mockAuthMiddleware(recipient.Auth0ID, "recipient", "mock-token"),
			SubmitRequest,
		)

		req, _ := http.NewRequest(http.MethodPost, "/donations/99999/requests", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestDecideRequestAccept(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	donor := createTestUser(t, db, "auth0|dr-donor", "Donna Donor", "dr-donor@example.com", "donor")
	alice := createTestUser(t, db, "auth0|dr-alice", "Alice", "dr-alice@example.com", "recipient")
	bob := createTestUser(t, db, "auth0|dr-bob", "Bob", "dr-bob@example.com", "recipient")

	donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
	aliceReq := createTestRequest(t, db, donation, alice, models.RequestStatusPending)
	bobReq := createTestRequest(t, db, donation, bob, models.RequestStatusPending)

	router := setupTestRouter()
	router.PATCH("/donations/:id/requests/:requestId",
		mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
		DecideRequest,
	)

	body, _ := json.Marshal(map[string]interface{}{"decision": "accept"})
	req, _ := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("/donations/%d/requests/%d", donation.ID, aliceReq.ID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// Donation is reserved for Alice
	var storedDonation models.Donation
	assert.NoError(t, db.First(&storedDonation, donation.ID).Error)
	assert.Equal(t, models.DonationStatusReserved, storedDonation.Status)
	assert.NotNil(t, storedDonation.ReservedByID)
	assert.Equal(t, alice.ID, *storedDonation.ReservedByID)

	// Alice's request accepted, Bob's auto-rejected
	var storedAlice, storedBob models.Request
	assert.NoError(t, db.First(&storedAlice, aliceReq.ID).Error)
	assert.NoError(t, db.First(&storedBob, bobReq.ID).Error)
	assert.Equal(t, models.RequestStatusAccepted, storedAlice.Status)
	assert.Equal(t, models.RequestStatusRejected, storedBob.Status)
}

func TestDecideRequestSecondAcceptLoses(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	donor := createTestUser(t, db, "auth0|race-donor", "Donna Donor", "race-donor@example.com", "donor")
	alice := createTestUser(t, db, "auth0|race-alice", "Alice", "race-alice@example.com", "recipient")
	bob := createTestUser(t, db, "auth0|race-bob", "Bob", "race-bob@example.com", "recipient")

	donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
	createTestRequest(t, db, donation, alice, models.RequestStatusPending)
	// Bob's request stays pending on paper while the donation is grabbed
	// underneath it, as happens when two accepts race.
	bobReq := createTestRequest(t, db, donation, bob, models.RequestStatusPending)
	db.Model(&models.Donation{}).Where("id = ?", donation.ID).
		Update("status", models.DonationStatusReserved)

	router := setupTestRouter()
	router.PATCH("/donations/:id/requests/:requestId",
		mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
		DecideRequest,
	)

	body, _ := json.Marshal(map[string]interface{}{"decision": "accept"})
	req, _ := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("/donations/%d/requests/%d", donation.ID, bobReq.ID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)

	// The losing accept must not have touched Bob's request
	var storedBob models.Request
	assert.NoError(t, db.First(&storedBob, bobReq.ID).Error)
	assert.Equal(t, models.RequestStatusPending, storedBob.Status)
}

func TestDecideRequestReject(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	donor := createTestUser(t, db, "auth0|rej-donor", "Donna Donor", "rej-donor@example.com", "donor")
	alice := createTestUser(t, db, "auth0|rej-alice", "Alice", "rej-alice@example.com", "recipient")

	donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
	request := createTestRequest(t, db, donation, alice, models.RequestStatusPending)

	router := setupTestRouter()
	router.PATCH("/donations/:id/requests/:requestId",
		mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
		DecideRequest,
	)

	body, _ := json.Marshal(map[string]interface{}{"decision": "reject"})
	req, _ := http.NewRequest(http.MethodPatch,
		fmt.Sprintf("/donations/%d/requests/%d", donation.ID, request.ID), bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	// Rejecting leaves the donation open for other requests
	var storedDonation models.Donation
	assert.NoError(t, db.First(&storedDonation, donation.ID).Error)
	assert.Equal(t, models.DonationStatusAvailable, storedDonation.Status)
	assert.Nil(t, storedDonation.ReservedByID)

	var storedRequest models.Request
	assert.NoError(t, db.First(&storedRequest, request.ID).Error)
	assert.Equal(t, models.RequestStatusRejected, storedRequest.Status)
}

func TestDecideRequestErrors(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	donor := createTestUser(t, db, "auth0|err-donor", "Donna Donor", "err-donor@example.com", "donor")
	stranger := createTestUser(t, db, "auth0|err-stranger", "Stranger", "err-stranger@example.com", "donor")
	alice := createTestUser(t, db, "auth0|err-alice", "Alice", "err-alice@example.com", "recipient")

	donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
	pending := createTestRequest(t, db, donation, alice, models.RequestStatusPending)

	otherDonation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
	rejected := createTestRequest(t, db, otherDonation, alice, models.RequestStatusRejected)

	tests := []struct {
		name           string
		actorAuth0ID   string
		donationID     uint
		requestID      uint
		decision       string
		expectedStatus int
		expectedError  string
	}{
		{
			name:           "Non-owner cannot decide",
			actorAuth0ID:   stranger.Auth0ID,
			donationID:     donation.ID,
			requestID:      pending.ID,
			decision:       "accept",
			expectedStatus: http.StatusForbidden,
			expectedError:  "FORBIDDEN",
		},
		{
			name:           "Unknown donation",
			actorAuth0ID:   donor.Auth0ID,
			donationID:     99999,
			requestID:      pending.ID,
			decision:       "accept",
			expectedStatus: http.StatusNotFound,
			expectedError:  "DONATION_NOT_FOUND",
		},
		{
			name:           "Request on a different donation",
			actorAuth0ID:   donor.Auth0ID,
			donationID:     donation.ID,
			requestID:      rejected.ID,
			decision:       "accept",
			expectedStatus: http.StatusNotFound,
			expectedError:  "REQUEST_NOT_FOUND",
		},
		{
			name:           "Already-decided request cannot be decided again",
			actorAuth0ID:   donor.Auth0ID,
			donationID:     otherDonation.ID,
			requestID:      rejected.ID,
			decision:       "accept",
			expectedStatus: http.StatusConflict,
			expectedError:  "CONFLICT",
		},
		{
			name:           "Invalid decision value",
			actorAuth0ID:   donor.Auth0ID,
			donationID:     donation.ID,
			requestID:      pending.ID,
			decision:       "maybe",
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.PATCH("/donations/:id/requests/:requestId",
				mockAuthMiddleware(tt.actorAuth0ID, "donor", "mock-token"),
				DecideRequest,
			)

			body, _ := json.Marshal(map[string]interface{}{"decision": tt.decision})
			req, _ := http.NewRequest(http.MethodPatch,
				fmt.Sprintf("/donations/%d/requests/%d", tt.donationID, tt.requestID), bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			errorData := response["error"].(map[string]interface{})
			assert.Equal(t, tt.expectedError, errorData["code"])
		})
	}
}

func TestListDonorRequests(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	donor := createTestUser(t, db, "auth0|ldr-donor", "Donna Donor", "ldr-donor@example.com", "donor")
	alice := createTestUser(t, db, "auth0|ldr-alice", "Alice", "ldr-alice@example.com", "recipient")

	requested := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
	createTestRequest(t, db, requested, alice, models.RequestStatusPending)

	// A donation with no requests must not appear
	createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)

	router := setupTestRouter()
	router.GET("/donors/me/requests",
		mockAuthMiddleware(donor.Auth0ID, "donor", "mock-token"),
		ListDonorRequests,
	)

	req, _ := http.NewRequest(http.MethodGet, "/donors/me/requests", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].([]interface{})
	assert.Len(t, data, 1)

	entry := data[0].(map[string]interface{})
	assert.Equal(t, float64(requested.ID), entry["id"])
	requests := entry["requests"].([]interface{})
	assert.Len(t, requests, 1)
}

func TestListRecipientRequests(t *testing.T) {
	db := setupTestDB(t)
	config.SetDB(db)

	donor := createTestUser(t, db, "auth0|lrr-donor", "Donna Donor", "lrr-donor@example.com", "donor")
	alice := createTestUser(t, db, "auth0|lrr-alice", "Alice", "lrr-alice@example.com", "recipient")

	donation := createTestDonation(t, db, donor, models.DonationStatusAvailable, nil, nil)
	request := createTestRequest(t, db, donation, alice, models.RequestStatusPending)

	router := setupTestRouter()
	router.GET("/recipients/me/requests",
		mockAuthMiddleware(alice.Auth0ID, "recipient", "mock-token"),
		ListRecipientRequests,
	)

	req, _ := http.NewRequest(http.MethodGet, "/recipients/me/requests", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].([]interface{})
	assert.Len(t, data, 1)

	entry := data[0].(map[string]interface{})
	assert.Equal(t, float64(donation.ID), entry["donation_id"])
	assert.Equal(t, float64(request.ID), entry["request_id"])
	assert.Equal(t, donation.FoodName, entry["food_name"])
	assert.Equal(t, donor.Email, entry["donor_email"])
	assert.Equal(t, "pending", entry["request_status"])
}
