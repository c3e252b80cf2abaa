package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/models"
)

// Helper function to generate device API keys
func generateAPIKey() string {
	bytes := make([]byte, 32)
	rand.Read(bytes)
	return hex.EncodeToString(bytes)
}

// RegisterDeviceRequest - edge device self-registration
type RegisterDeviceRequest struct {
	DeviceID   string  `json:"device_id" binding:"required"`
	DeviceName string  `json:"device_name" binding:"required"`
	Model      *string `json:"model"`
	OSVersion  *string `json:"os_version"`
}

// RegisterDevice handles POST /api/devices/register
// A returning device_id refreshes its record and keeps its existing key,
// so reinstalling the edge app never invalidates a deployed credential.
func RegisterDevice(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().Unix()

	var device models.Device
	result := database.DB.Where("device_id = ?", req.DeviceID).First(&device)
	if result.Error == nil {
		// Known device reconnecting
		device.DeviceName = req.DeviceName
		device.Model = req.Model
		device.OSVersion = req.OSVersion
		device.IsActive = true
		device.LastSeen = &now
		if err := database.DB.Save(&device).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update device"})
			return
		}

		log.Printf("📟 [DEVICES] Device re-registered - ID: %s, Name: %s", device.DeviceID, device.DeviceName)
		broadcastDeviceStatus(device)

		c.JSON(http.StatusOK, gin.H{
			"success": true,
			"api_key": device.APIKey,
			"message": "Device re-registered successfully",
		})
		return
	}
	if result.Error != gorm.ErrRecordNotFound {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}

	device = models.Device{
		DeviceID:   req.DeviceID,
		DeviceName: req.DeviceName,
		Model:      req.Model,
		OSVersion:  req.OSVersion,
		APIKey:     generateAPIKey(),
		IsActive:   true,
		LastSeen:   &now,
	}
	if err := database.DB.Create(&device).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register device"})
		return
	}

	log.Printf("📟 [DEVICES] Device registered - ID: %s, Name: %s", device.DeviceID, device.DeviceName)
	broadcastDeviceStatus(device)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"api_key": device.APIKey,
		"message": "Device registered successfully",
	})
}

// GetDevices handles GET /api/devices
func GetDevices(c *gin.Context) {
	var devices []models.Device
	if err := database.DB.Order("id ASC").Find(&devices).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch devices"})
		return
	}
	c.JSON(http.StatusOK, devices)
}

// GetDevice handles GET /api/devices/:deviceId
func GetDevice(c *gin.Context) {
	deviceID := c.Param("deviceId")

	var device models.Device
	if err := database.DB.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch device"})
		return
	}

	c.JSON(http.StatusOK, device)
}

// ActivateDevice handles PUT /api/devices/:deviceId/activate
func ActivateDevice(c *gin.Context) {
	setDeviceActive(c, true)
}

// DeactivateDevice handles PUT /api/devices/:deviceId/deactivate.
// A deactivated device keeps its key but every ingest attempt gets 401
// until it is activated again.
func DeactivateDevice(c *gin.Context) {
	setDeviceActive(c, false)
}

func setDeviceActive(c *gin.Context, active bool) {
	deviceID := c.Param("deviceId")

	var device models.Device
	if err := database.DB.Where("device_id = ?", deviceID).First(&device).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Device not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch device"})
		return
	}

	device.IsActive = active
	if err := database.DB.Model(&device).UpdateColumn("is_active", active).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update device"})
		return
	}

	state := "deactivated"
	if active {
		state = "activated"
	}
	log.Printf("📟 [DEVICES] Device %s - ID: %s", state, device.DeviceID)
	broadcastDeviceStatus(device)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Device " + state,
	})
}

// broadcastDeviceStatus notifies connected viewers of a device state change
func broadcastDeviceStatus(device models.Device) {
	if eventHub == nil {
		return
	}
	eventHub.BroadcastDeviceStatus(device)
}
