package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// setupTestDB swaps the global connection for an in-memory database.
// A single pooled connection keeps every query on the same sqlite handle.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Device{},
		&models.Employee{},
		&models.Event{},
		&models.Attendance{},
		&models.Vehicle{},
		&models.User{},
	); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		sqlDB.Close()
	})
	return db
}

// testRouter mirrors the route table the server mounts
func testRouter() *gin.Engine {
	router := gin.New()

	router.GET("/ws", HandleEventStream)
	router.GET("/ws/camera", HandleCameraSocket)

	api := router.Group("/api")
	{
		api.GET("/health", GetHealth)
		api.GET("/system/stats", GetSystemStats)
		api.GET("/stream/stats", GetStreamStats)

		api.POST("/auth/login", Login)

		events := api.Group("/events")
		{
			events.POST("", VerifyAPIKey(), IngestEvents)
			events.GET("", GetEvents)
			events.GET("/today", GetTodayEvents)
			events.GET("/stats", GetEventStats)
		}

		devices := api.Group("/devices")
		{
			devices.POST("/register", RegisterDevice)
			devices.GET("", GetDevices)
			devices.GET("/:deviceId", GetDevice)
			devices.PUT("/:deviceId/activate", AuthMiddleware(), ActivateDevice)
			devices.PUT("/:deviceId/deactivate", AuthMiddleware(), DeactivateDevice)
		}

		employees := api.Group("/employees")
		{
			employees.GET("", GetEmployees)
			employees.GET("/:employeeId", GetEmployee)
			employees.GET("/:employeeId/attendance", GetEmployeeAttendance)
			employees.POST("", AuthMiddleware(), CreateEmployee)
			employees.PUT("/:employeeId", AuthMiddleware(), UpdateEmployee)
			employees.DELETE("/:employeeId", AuthMiddleware(), DeleteEmployee)
			employees.POST("/:employeeId/embedding", AuthMiddleware(), SetEmployeeEmbedding)
		}

		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", GetVehicles)
			vehicles.POST("", AuthMiddleware(), CreateVehicle)
			vehicles.PATCH("/:plate", AuthMiddleware(), UpdateVehicle)
		}

		push := api.Group("/push")
		{
			push.GET("/vapid-public-key", GetVAPIDPublicKey)
			push.POST("/subscribe", SubscribePush)
			push.POST("/unsubscribe", UnsubscribePush)
		}
	}

	return router
}

// performRequest drives the router with an optional JSON body. A string or
// []byte body is sent verbatim so malformed payloads can be exercised too.
func performRequest(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	buf := &bytes.Buffer{}
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	case []byte:
		buf.Write(b)
	default:
		if err := json.NewEncoder(buf).Encode(b); err != nil {
			panic(err)
		}
	}

	req := httptest.NewRequest(method, path, buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
}

// createTestDevice inserts a device row directly. Inactive devices need the
// second write because the is_active column default fills in zero values.
func createTestDevice(t *testing.T, deviceID, apiKey string, active bool) models.Device {
	t.Helper()

	device := models.Device{
		DeviceID:   deviceID,
		DeviceName: deviceID + " tablet",
		APIKey:     apiKey,
	}
	if err := database.DB.Create(&device).Error; err != nil {
		t.Fatalf("create device %s: %v", deviceID, err)
	}
	if !active {
		if err := database.DB.Model(&device).UpdateColumn("is_active", false).Error; err != nil {
			t.Fatalf("deactivate device %s: %v", deviceID, err)
		}
	}
	device.IsActive = active
	return device
}

// loginToken seeds the admin user and returns a valid bearer token
func loginToken(t *testing.T, router *gin.Engine) string {
	t.Helper()

	t.Setenv("ADMIN_PASSWORD", "")
	SeedAdminUser()

	w := performRequest(router, http.MethodPost, "/api/auth/login",
		gin.H{"username": "admin", "password": "sentinel-admin"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed with status %d: %s", w.Code, w.Body.String())
	}

	var resp AuthResponse
	decodeBody(t, w, &resp)
	if resp.Token == "" {
		t.Fatal("login returned an empty token")
	}
	return resp.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}
