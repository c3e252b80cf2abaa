package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/models"
)

// GetVehicles handles GET /api/vehicles - list registered vehicles
func GetVehicles(c *gin.Context) {
	query := database.DB.Model(&models.Vehicle{})

	if plate := c.Query("license_plate"); plate != "" {
		query = query.Where("license_plate LIKE ?", "%"+plate+"%")
	}
	if authorized := c.Query("authorized"); authorized != "" {
		if parsed, err := strconv.ParseBool(authorized); err == nil {
			query = query.Where("is_authorized = ?", parsed)
		}
	}

	var vehicles []models.Vehicle
	if err := query.Order("license_plate ASC").Find(&vehicles).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicles"})
		return
	}

	c.JSON(http.StatusOK, vehicles)
}

// CreateVehicleRequest - register a known vehicle
type CreateVehicleRequest struct {
	LicensePlate string  `json:"license_plate" binding:"required"`
	VehicleType  *string `json:"vehicle_type"`
	OwnerID      *string `json:"owner_id"`
	OwnerName    *string `json:"owner_name"`
	Notes        *string `json:"notes"`
	IsAuthorized bool    `json:"is_authorized"`
}

// CreateVehicle handles POST /api/vehicles (JWT protected)
func CreateVehicle(c *gin.Context) {
	var req CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.Vehicle
	if err := database.DB.Where("license_plate = ?", req.LicensePlate).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vehicle already registered"})
		return
	}

	vehicle := models.Vehicle{
		LicensePlate: req.LicensePlate,
		VehicleType:  req.VehicleType,
		OwnerID:      req.OwnerID,
		OwnerName:    req.OwnerName,
		Notes:        req.Notes,
		IsAuthorized: req.IsAuthorized,
	}
	if err := database.DB.Create(&vehicle).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register vehicle"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "vehicle": vehicle})
}

// UpdateVehicle handles PATCH /api/vehicles/:plate (JWT protected)
func UpdateVehicle(c *gin.Context) {
	plate := c.Param("plate")

	var req struct {
		VehicleType  *string `json:"vehicle_type"`
		OwnerID      *string `json:"owner_id"`
		OwnerName    *string `json:"owner_name"`
		Notes        *string `json:"notes"`
		IsAuthorized *bool   `json:"is_authorized"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	updates := make(map[string]interface{})
	if req.VehicleType != nil {
		updates["vehicle_type"] = *req.VehicleType
	}
	if req.OwnerID != nil {
		updates["owner_id"] = *req.OwnerID
	}
	if req.OwnerName != nil {
		updates["owner_name"] = *req.OwnerName
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}
	if req.IsAuthorized != nil {
		updates["is_authorized"] = *req.IsAuthorized
	}

	result := database.DB.Model(&models.Vehicle{}).Where("license_plate = ?", plate).Updates(updates)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update vehicle"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
		return
	}

	var vehicle models.Vehicle
	if err := database.DB.Where("license_plate = ?", plate).First(&vehicle).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vehicle not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch vehicle"})
		return
	}
	c.JSON(http.StatusOK, vehicle)
}
