package handlers

import (
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/models"
)

func TestRegisterDeviceIssuesAPIKey(t *testing.T) {
	setupTestDB(t)
	router := testRouter()

	w := performRequest(router, http.MethodPost, "/api/devices/register", gin.H{
		"device_id":   "TAB-01",
		"device_name": "Front Entrance Tablet",
		"model":       "Galaxy Tab A8",
		"os_version":  "Android 13",
	}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("register failed: %d %s", w.Code, w.Body.String())
	}

	var resp struct {
		Success bool   `json:"success"`
		APIKey  string `json:"api_key"`
		Message string `json:"message"`
	}
	decodeBody(t, w, &resp)
	if !resp.Success {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.APIKey) != 64 {
		t.Fatalf("expected a 64 char hex key, got %d chars", len(resp.APIKey))
	}
	if _, err := hex.DecodeString(resp.APIKey); err != nil {
		t.Fatalf("key is not hex: %v", err)
	}

	var device models.Device
	if err := database.DB.Where("device_id = ?", "TAB-01").First(&device).Error; err != nil {
		t.Fatalf("load device: %v", err)
	}
	if device.APIKey != resp.APIKey {
		t.Fatal("stored key differs from the issued one")
	}
	if !device.IsActive {
		t.Fatal("new devices start active")
	}
	if device.LastSeen == nil {
		t.Fatal("registration must stamp last_seen")
	}
	if device.Model == nil || *device.Model != "Galaxy Tab A8" {
		t.Fatalf("model lost: %v", device.Model)
	}
}

func TestRegisterDeviceKeepsKeyOnReturn(t *testing.T) {
	setupTestDB(t)
	router := testRouter()

	first := performRequest(router, http.MethodPost, "/api/devices/register", gin.H{
		"device_id":   "TAB-01",
		"device_name": "Front Entrance Tablet",
	}, nil)
	var firstResp struct {
		APIKey string `json:"api_key"`
	}
	decodeBody(t, first, &firstResp)

	// Deactivated between installs
	database.DB.Model(&models.Device{}).Where("device_id = ?", "TAB-01").
		UpdateColumn("is_active", false)

	second := performRequest(router, http.MethodPost, "/api/devices/register", gin.H{
		"device_id":   "TAB-01",
		"device_name": "Front Entrance Tablet v2",
	}, nil)
	if second.Code != http.StatusOK {
		t.Fatalf("re-register failed: %d %s", second.Code, second.Body.String())
	}
	var secondResp struct {
		APIKey  string `json:"api_key"`
		Message string `json:"message"`
	}
	decodeBody(t, second, &secondResp)

	if secondResp.APIKey != firstResp.APIKey {
		t.Fatal("re-registration must keep the deployed key")
	}
	if secondResp.Message != "Device re-registered successfully" {
		t.Fatalf("unexpected message %q", secondResp.Message)
	}

	var device models.Device
	database.DB.Where("device_id = ?", "TAB-01").First(&device)
	if device.DeviceName != "Front Entrance Tablet v2" {
		t.Fatalf("name not refreshed: %q", device.DeviceName)
	}
	if !device.IsActive {
		t.Fatal("re-registration must reactivate the device")
	}

	var count int64
	database.DB.Model(&models.Device{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected a single device row, got %d", count)
	}
}

func TestRegisterDeviceValidation(t *testing.T) {
	setupTestDB(t)
	router := testRouter()

	for name, body := range map[string]interface{}{
		"missing id":   gin.H{"device_name": "Tablet"},
		"missing name": gin.H{"device_id": "TAB-01"},
		"not json":     "{",
	} {
		w := performRequest(router, http.MethodPost, "/api/devices/register", body, nil)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, w.Code)
		}
	}
}

func TestGetDevices(t *testing.T) {
	setupTestDB(t)
	router := testRouter()
	createTestDevice(t, "CAM-01", "key-1", true)
	createTestDevice(t, "CAM-02", "key-2", true)

	w := performRequest(router, http.MethodGet, "/api/devices", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list failed: %d", w.Code)
	}

	var devices []map[string]interface{}
	decodeBody(t, w, &devices)
	if len(devices) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(devices))
	}
	if devices[0]["device_id"] != "CAM-01" {
		t.Fatalf("expected id order, got %v first", devices[0]["device_id"])
	}
	for _, d := range devices {
		if _, leaked := d["api_key"]; leaked {
			t.Fatal("api_key leaked in device listing")
		}
	}
}

func TestGetDevice(t *testing.T) {
	setupTestDB(t)
	router := testRouter()
	createTestDevice(t, "CAM-01", "key-1", true)

	w := performRequest(router, http.MethodGet, "/api/devices/CAM-01", nil, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var device map[string]interface{}
	decodeBody(t, w, &device)
	if device["device_id"] != "CAM-01" {
		t.Fatalf("wrong device: %v", device)
	}

	w = performRequest(router, http.MethodGet, "/api/devices/CAM-99", nil, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown device, got %d", w.Code)
	}
}

func TestDeviceActivationLifecycle(t *testing.T) {
	setupTestDB(t)
	router := testRouter()
	createTestDevice(t, "CAM-01", testAPIKey, true)

	// Admin only
	w := performRequest(router, http.MethodPut, "/api/devices/CAM-01/deactivate", nil, nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a token, got %d", w.Code)
	}

	token := loginToken(t, router)

	w = performRequest(router, http.MethodPut, "/api/devices/CAM-01/deactivate", nil, bearer(token))
	if w.Code != http.StatusOK {
		t.Fatalf("deactivate failed: %d %s", w.Code, w.Body.String())
	}
	var device models.Device
	database.DB.Where("device_id = ?", "CAM-01").First(&device)
	if device.IsActive {
		t.Fatal("device still active after deactivation")
	}

	// Ingest is shut off immediately
	ingest := performRequest(router, http.MethodPost, "/api/events",
		gin.H{"events": []gin.H{}}, apiKeyHeader(testAPIKey))
	if ingest.Code != http.StatusUnauthorized {
		t.Fatalf("deactivated device could still ingest: %d", ingest.Code)
	}

	w = performRequest(router, http.MethodPut, "/api/devices/CAM-01/activate", nil, bearer(token))
	if w.Code != http.StatusOK {
		t.Fatalf("activate failed: %d %s", w.Code, w.Body.String())
	}
	database.DB.Where("device_id = ?", "CAM-01").First(&device)
	if !device.IsActive {
		t.Fatal("device inactive after activation")
	}

	w = performRequest(router, http.MethodPut, "/api/devices/CAM-99/activate", nil, bearer(token))
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown device, got %d", w.Code)
	}
}
