package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/models"
)

// EmployeeView is the API shape of an employee. The face embedding is
// stored as JSON text and decoded here; a missing or undecodable blob
// serializes as null rather than failing the listing.
type EmployeeView struct {
	EmployeeID    string     `json:"employee_id"`
	Name          string     `json:"name"`
	Department    *string    `json:"department"`
	Email         *string    `json:"email"`
	FaceEmbedding *[]float64 `json:"face_embedding"`
	IsActive      bool       `json:"is_active"`
	CreatedAt     int64      `json:"created_at"`
	UpdatedAt     int64      `json:"updated_at"`
}

func toEmployeeView(e models.Employee) EmployeeView {
	return EmployeeView{
		EmployeeID:    e.EmployeeID,
		Name:          e.Name,
		Department:    e.Department,
		Email:         e.Email,
		FaceEmbedding: decodeEmbedding(e.EmployeeID, e.FaceEmbedding),
		IsActive:      e.IsActive,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

func decodeEmbedding(employeeID string, stored *string) *[]float64 {
	if stored == nil || *stored == "" {
		return nil
	}
	var embedding []float64
	if err := json.Unmarshal([]byte(*stored), &embedding); err != nil {
		log.Printf("⚠️ [EMPLOYEES] Undecodable embedding - ID: %s, Error: %v", employeeID, err)
		return nil
	}
	return &embedding
}

// GetEmployees handles GET /api/employees?active_only=
// Open read: edge devices pull this to sync their on-device face gallery.
func GetEmployees(c *gin.Context) {
	query := database.DB.Model(&models.Employee{})

	activeOnly := true
	if v := c.Query("active_only"); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			activeOnly = parsed
		}
	}
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}

	var employees []models.Employee
	if err := query.Order("employee_id ASC").Find(&employees).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch employees"})
		return
	}

	views := make([]EmployeeView, len(employees))
	for i, e := range employees {
		views[i] = toEmployeeView(e)
	}
	c.JSON(http.StatusOK, views)
}

// GetEmployee handles GET /api/employees/:employeeId
func GetEmployee(c *gin.Context) {
	employeeID := c.Param("employeeId")

	var employee models.Employee
	if err := database.DB.Where("employee_id = ?", employeeID).First(&employee).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch employee"})
		return
	}

	c.JSON(http.StatusOK, toEmployeeView(employee))
}

// CreateEmployeeRequest - new employee record
type CreateEmployeeRequest struct {
	EmployeeID    string     `json:"employee_id" binding:"required"`
	Name          string     `json:"name" binding:"required"`
	Department    *string    `json:"department"`
	Email         *string    `json:"email"`
	FaceEmbedding *[]float64 `json:"face_embedding"`
}

// CreateEmployee handles POST /api/employees (JWT protected)
func CreateEmployee(c *gin.Context) {
	var req CreateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.Employee
	if err := database.DB.Where("employee_id = ?", req.EmployeeID).First(&existing).Error; err == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Employee already exists"})
		return
	}

	employee := models.Employee{
		EmployeeID: req.EmployeeID,
		Name:       req.Name,
		Department: req.Department,
		Email:      req.Email,
		IsActive:   true,
	}
	if req.FaceEmbedding != nil {
		encoded, err := json.Marshal(*req.FaceEmbedding)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid face embedding"})
			return
		}
		text := string(encoded)
		employee.FaceEmbedding = &text
	}

	if err := database.DB.Create(&employee).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create employee"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "employee": toEmployeeView(employee)})
}

// UpdateEmployeeRequest - partial employee update
type UpdateEmployeeRequest struct {
	Name       *string `json:"name"`
	Department *string `json:"department"`
	Email      *string `json:"email"`
	IsActive   *bool   `json:"is_active"`
}

// UpdateEmployee handles PUT /api/employees/:employeeId (JWT protected)
func UpdateEmployee(c *gin.Context) {
	employeeID := c.Param("employeeId")

	var req UpdateEmployeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var employee models.Employee
	if err := database.DB.Where("employee_id = ?", employeeID).First(&employee).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "Employee not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch employee"})
		return
	}

	if req.Name != nil {
		employee.Name = *req.Name
	}
	if req.Department != nil {
		employee.Department = req.Department
	}
	if req.Email != nil {
		employee.Email = req.Email
	}
	if req.IsActive != nil {
		employee.IsActive = *req.IsActive
	}

	if err := database.DB.Save(&employee).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update employee"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "employee": toEmployeeView(employee)})
}

// DeleteEmployee handles DELETE /api/employees/:employeeId (JWT protected).
// Records are kept for attendance history; delete only deactivates.
func DeleteEmployee(c *gin.Context) {
	employeeID := c.Param("employeeId")

	result := database.DB.Model(&models.Employee{}).
		Where("employee_id = ?", employeeID).
		Update("is_active", false)
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deactivate employee"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Employee not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Employee deactivated"})
}

// SetEmployeeEmbeddingRequest - face embedding upload
type SetEmployeeEmbeddingRequest struct {
	Embedding []float64 `json:"embedding" binding:"required"`
}

// SetEmployeeEmbedding handles POST /api/employees/:employeeId/embedding
// (JWT protected)
func SetEmployeeEmbedding(c *gin.Context) {
	employeeID := c.Param("employeeId")

	var req SetEmployeeEmbeddingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	encoded, err := json.Marshal(req.Embedding)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid face embedding"})
		return
	}

	result := database.DB.Model(&models.Employee{}).
		Where("employee_id = ?", employeeID).
		Update("face_embedding", string(encoded))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store embedding"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Employee not found"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Embedding updated"})
}

// GetEmployeeAttendance handles GET /api/employees/:employeeId/attendance?limit=
func GetEmployeeAttendance(c *gin.Context) {
	employeeID := c.Param("employeeId")

	limit := 30
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 365 {
			limit = parsed
		}
	}

	var records []models.Attendance
	if err := database.DB.Where("employee_id = ?", employeeID).
		Order("date DESC").
		Limit(limit).
		Find(&records).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch attendance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"employee_id": employeeID, "attendance": records})
}
