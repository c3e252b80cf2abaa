package handlers

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/models"
	"github.com/sentinelsec/backend/natsserver"
	"github.com/sentinelsec/backend/services"
)

// eventBus carries committed events to the stream hub and push dispatcher
var eventBus *natsserver.EmbeddedNATS

// SetEventBus wires the internal bus ingest publishes to after commit
func SetEventBus(bus *natsserver.EmbeddedNATS) {
	eventBus = bus
}

// VerifyAPIKey authenticates edge devices via the X-API-Key header.
// The matched device is stashed in the context and its last_seen refreshed.
func VerifyAPIKey() gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		var device models.Device
		if err := database.DB.Where("api_key = ? AND is_active = ?", apiKey, true).First(&device).Error; err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or inactive API key"})
			return
		}

		now := time.Now().Unix()
		device.LastSeen = &now
		database.DB.Model(&device).UpdateColumn("last_seen", now)

		c.Set("device", device)
		c.Next()
	}
}

// IngestEventInput - single event reported by an edge device
type IngestEventInput struct {
	Type         string       `json:"type" binding:"required"`
	Timestamp    *int64       `json:"timestamp" binding:"required"`
	TrackID      *string      `json:"trackId"`
	EmployeeID   *string      `json:"employeeId"`
	LicensePlate *string      `json:"licensePlate"`
	Duration     *int64       `json:"duration"`
	Confidence   *float64     `json:"confidence"`
	ExtraData    models.JSONB `json:"extraData"`
}

// IngestEventsRequest - batch upload from one device
type IngestEventsRequest struct {
	DeviceID string             `json:"deviceId"`
	Events   []IngestEventInput `json:"events" binding:"dive"`
}

// IngestEvents handles event ingestion from edge devices
// POST /api/events (X-API-Key protected)
func IngestEvents(c *gin.Context) {
	startTime := time.Now()
	device := c.MustGet("device").(models.Device)

	var req IngestEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Printf("❌ [EVENT_INGEST] Rejected batch - Device: %s, Error: %v", device.DeviceID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eventTypes := make(map[string]int)
	for _, in := range req.Events {
		eventTypes[in.Type]++
	}
	log.Printf("📥 [EVENT_INGEST] Batch received - Device: %s, Total: %d, Types: %v",
		device.DeviceID, len(req.Events), eventTypes)

	// The whole batch commits or none of it does. The authenticated device
	// owns every event regardless of what the payload claims.
	created := make([]models.Event, 0, len(req.Events))
	err := database.DB.Transaction(func(tx *gorm.DB) error {
		for _, in := range req.Events {
			event := models.Event{
				EventType:    in.Type,
				Timestamp:    *in.Timestamp,
				TrackID:      in.TrackID,
				DeviceID:     device.DeviceID,
				EmployeeID:   in.EmployeeID,
				LicensePlate: in.LicensePlate,
				Duration:     in.Duration,
				Confidence:   in.Confidence,
				ExtraData:    in.ExtraData,
			}
			if err := tx.Create(&event).Error; err != nil {
				return fmt.Errorf("failed to store %s event: %w", in.Type, err)
			}

			if in.EmployeeID != nil && *in.EmployeeID != "" {
				switch in.Type {
				case models.EventEmployeeArrived, models.EventEmployeeDeparted:
					if err := recordAttendance(tx, *in.EmployeeID, in.Type, *in.Timestamp); err != nil {
						return fmt.Errorf("failed to record attendance: %w", err)
					}
				}
			}

			created = append(created, event)
		}
		return nil
	})
	if err != nil {
		log.Printf("❌ [EVENT_INGEST] Batch failed - Device: %s, Error: %v", device.DeviceID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process events"})
		return
	}

	// Fan-out happens after the commit so viewers never see an event that
	// was rolled back. A dead bus only costs notifications, not the batch.
	for _, event := range created {
		publishEvent(event)
	}

	duration := time.Since(startTime)
	log.Printf("✅ [EVENT_INGEST] Batch processed - Device: %s, Processed: %d, Duration: %v",
		device.DeviceID, len(created), duration)

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": len(created),
		"message":   fmt.Sprintf("Successfully processed %d events", len(created)),
	})
}

// recordAttendance upserts the employee's attendance row for the event's day.
// The first arrival of the day sets check_in; a departure always moves
// check_out forward so the last one of the day wins.
func recordAttendance(tx *gorm.DB, employeeID, eventType string, timestamp int64) error {
	date := time.Unix(timestamp, 0).Format("2006-01-02")

	var attendance models.Attendance
	err := tx.Where("employee_id = ? AND date = ?", employeeID, date).First(&attendance).Error
	if err != nil {
		if err != gorm.ErrRecordNotFound {
			return err
		}
		attendance = models.Attendance{
			EmployeeID: employeeID,
			Date:       date,
		}
	}

	switch eventType {
	case models.EventEmployeeArrived:
		if attendance.CheckInTime == nil {
			ts := timestamp
			attendance.CheckInTime = &ts
		}
	case models.EventEmployeeDeparted:
		ts := timestamp
		attendance.CheckOutTime = &ts
	}

	if attendance.CheckInTime != nil && attendance.CheckOutTime != nil {
		total := *attendance.CheckOutTime - *attendance.CheckInTime
		attendance.TotalDuration = &total
	}

	return tx.Save(&attendance).Error
}

// publishEvent pushes the notification view of a committed event onto the
// internal bus. Failures are logged and swallowed so ingest never fails
// because a consumer is down.
func publishEvent(event models.Event) {
	if eventBus == nil {
		return
	}

	notification := models.EventNotification{
		ID:           event.ID,
		EventType:    event.EventType,
		Timestamp:    event.Timestamp,
		EmployeeName: lookupEmployeeName(event.EmployeeID),
		LicensePlate: event.LicensePlate,
		Duration:     event.Duration,
	}

	data, err := json.Marshal(notification)
	if err != nil {
		log.Printf("⚠️ [EVENT_INGEST] Failed to encode notification - EventID: %d, Error: %v", event.ID, err)
		return
	}
	if err := eventBus.Publish(services.SubjectEventCreated, data); err != nil {
		log.Printf("⚠️ [EVENT_INGEST] Failed to publish event - EventID: %d, Error: %v", event.ID, err)
	}
}

// lookupEmployeeName resolves an employee id to a display name, nil when
// the id is absent or unknown
func lookupEmployeeName(employeeID *string) *string {
	if employeeID == nil || *employeeID == "" {
		return nil
	}
	var employee models.Employee
	if err := database.DB.Where("employee_id = ?", *employeeID).First(&employee).Error; err != nil {
		return nil
	}
	return &employee.Name
}

// peopleEventTypes and vehicleEventTypes group event types for stats
var peopleEventTypes = []string{
	models.EventPersonEntered,
	models.EventPersonExited,
	models.EventEmployeeArrived,
	models.EventEmployeeDeparted,
}

var vehicleEventTypes = []string{
	models.EventVehicleEntered,
	models.EventVehicleExited,
}

// GetEvents handles GET /api/events - list events with filters
func GetEvents(c *gin.Context) {
	query := database.DB.Model(&models.Event{})

	if eventType := c.Query("event_type"); eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if deviceID := c.Query("device_id"); deviceID != "" {
		query = query.Where("device_id = ?", deviceID)
	}
	if startTime := c.Query("start_time"); startTime != "" {
		if parsed, err := strconv.ParseInt(startTime, 10, 64); err == nil {
			query = query.Where("timestamp >= ?", parsed)
		}
	}
	if endTime := c.Query("end_time"); endTime != "" {
		if parsed, err := strconv.ParseInt(endTime, 10, 64); err == nil {
			query = query.Where("timestamp <= ?", parsed)
		}
	}

	limit := 100
	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 && parsed <= 1000 {
			limit = parsed
		}
	}
	offset := 0
	if offsetStr := c.Query("offset"); offsetStr != "" {
		if parsed, err := strconv.Atoi(offsetStr); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	var events []models.Event
	var total int64
	query.Count(&total)

	if err := query.Order("timestamp DESC").Limit(limit).Offset(offset).Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"events": events,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

// GetTodayEvents handles GET /api/events/today
func GetTodayEvents(c *gin.Context) {
	midnight := startOfToday()

	var events []models.Event
	if err := database.DB.Where("timestamp >= ?", midnight).
		Order("timestamp DESC").
		Find(&events).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"events": events, "total": len(events)})
}

// GetEventStats handles GET /api/events/stats - today's counts by group
func GetEventStats(c *gin.Context) {
	midnight := startOfToday()

	var total, people, vehicles int64
	if err := database.DB.Model(&models.Event{}).
		Where("timestamp >= ?", midnight).
		Count(&total).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch event stats"})
		return
	}
	database.DB.Model(&models.Event{}).
		Where("timestamp >= ? AND event_type IN ?", midnight, peopleEventTypes).
		Count(&people)
	database.DB.Model(&models.Event{}).
		Where("timestamp >= ? AND event_type IN ?", midnight, vehicleEventTypes).
		Count(&vehicles)

	c.JSON(http.StatusOK, gin.H{
		"total_today":    total,
		"people_events":  people,
		"vehicle_events": vehicles,
	})
}

// startOfToday returns local midnight as a unix timestamp
func startOfToday() int64 {
	now := time.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).Unix()
}
