package models

import (
	"database/sql/driver"
	"encoding/json"
)

// Event types reported by edge devices. The set is open: unknown types are
// stored and broadcast but never turned into push alerts.
const (
	EventUnknownFace      = "UNKNOWN_FACE_DETECTED"
	EventLoitering        = "LOITERING_DETECTED"
	EventVehicleEntered   = "VEHICLE_ENTERED"
	EventVehicleExited    = "VEHICLE_EXITED"
	EventPersonEntered    = "PERSON_ENTERED"
	EventPersonExited     = "PERSON_EXITED"
	EventEmployeeArrived  = "EMPLOYEE_ARRIVED"
	EventEmployeeDeparted = "EMPLOYEE_DEPARTED"
)

// JSONB type for GORM - can handle both objects and arrays
type JSONB struct {
	Data interface{} `json:"-"`
}

// NewJSONB creates a new JSONB from any value
func NewJSONB(v interface{}) JSONB {
	return JSONB{Data: v}
}

// UnmarshalJSON implements json.Unmarshaler
func (j *JSONB) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &j.Data)
}

// MarshalJSON implements json.Marshaler
func (j JSONB) MarshalJSON() ([]byte, error) {
	if j.Data == nil {
		return []byte("null"), nil
	}
	return json.Marshal(j.Data)
}

func (j JSONB) Value() (driver.Value, error) {
	if j.Data == nil {
		return nil, nil
	}
	return json.Marshal(j.Data)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		j.Data = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, &j.Data)
	case string:
		return json.Unmarshal([]byte(v), &j.Data)
	}
	return nil
}

// Device model - an edge camera reporting events over the ingest API.
// The api_key is issued once at registration and survives re-registration.
type Device struct {
	ID         uint    `gorm:"primaryKey;column:id" json:"id"`
	DeviceID   string  `gorm:"column:device_id;uniqueIndex" json:"device_id"`
	DeviceName string  `gorm:"column:device_name" json:"device_name"`
	Model      *string `gorm:"column:model" json:"model"`
	OSVersion  *string `gorm:"column:os_version" json:"os_version"`
	APIKey     string  `gorm:"column:api_key;uniqueIndex" json:"-"` // Hidden from JSON
	IsActive   bool    `gorm:"column:is_active;default:true" json:"is_active"`
	LastSeen   *int64  `gorm:"column:last_seen" json:"last_seen"`
	CreatedAt  int64   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Device) TableName() string {
	return "devices"
}

// Employee model - directory entry synced to devices for face matching.
// The embedding is stored as JSON-encoded text and decoded at the API edge.
type Employee struct {
	ID            uint    `gorm:"primaryKey;column:id" json:"id"`
	EmployeeID    string  `gorm:"column:employee_id;uniqueIndex" json:"employee_id"`
	Name          string  `gorm:"column:name" json:"name"`
	Department    *string `gorm:"column:department" json:"department"`
	Email         *string `gorm:"column:email" json:"email"`
	FaceEmbedding *string `gorm:"column:face_embedding;type:text" json:"-"`
	IsActive      bool    `gorm:"column:is_active;default:true" json:"is_active"`
	CreatedAt     int64   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt     int64   `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Employee) TableName() string {
	return "employees"
}

// Event model - immutable record of a detection reported by a device.
// Timestamps are unix seconds as supplied by the device.
type Event struct {
	ID           int64    `gorm:"primaryKey;autoIncrement;column:id" json:"id"`
	EventType    string   `gorm:"column:event_type;index" json:"event_type"`
	Timestamp    int64    `gorm:"column:timestamp;index" json:"timestamp"`
	TrackID      *string  `gorm:"column:track_id" json:"track_id"`
	DeviceID     string   `gorm:"column:device_id;index" json:"device_id"`
	EmployeeID   *string  `gorm:"column:employee_id;index" json:"employee_id"`
	LicensePlate *string  `gorm:"column:license_plate" json:"license_plate"`
	Duration     *int64   `gorm:"column:duration" json:"duration"` // milliseconds
	Confidence   *float64 `gorm:"column:confidence" json:"confidence"`
	ExtraData    JSONB    `gorm:"type:jsonb;column:extra_data" json:"extra_data,omitempty"`
	CreatedAt    int64    `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Event) TableName() string {
	return "events"
}

// EventNotification is the slim view of an event fanned out to dashboard
// viewers and the push dispatcher.
type EventNotification struct {
	ID           int64   `json:"id"`
	EventType    string  `json:"event_type"`
	Timestamp    int64   `json:"timestamp"`
	EmployeeName *string `json:"employee_name"`
	LicensePlate *string `json:"license_plate"`
	Duration     *int64  `json:"duration"`
}

// Attendance model - one row per employee per day, maintained from
// EMPLOYEE_ARRIVED / EMPLOYEE_DEPARTED events during ingestion.
type Attendance struct {
	ID            uint   `gorm:"primaryKey;column:id" json:"id"`
	EmployeeID    string `gorm:"column:employee_id;index" json:"employee_id"`
	Date          string `gorm:"column:date;index" json:"date"` // YYYY-MM-DD
	CheckInTime   *int64 `gorm:"column:check_in_time" json:"check_in_time"`
	CheckOutTime  *int64 `gorm:"column:check_out_time" json:"check_out_time"`
	TotalDuration *int64 `gorm:"column:total_duration" json:"total_duration"` // seconds
	CreatedAt     int64  `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Attendance) TableName() string {
	return "attendance"
}

// Vehicle model - known-vehicle registry entry for gate authorization
type Vehicle struct {
	ID           uint    `gorm:"primaryKey;column:id" json:"id"`
	LicensePlate string  `gorm:"column:license_plate;uniqueIndex" json:"license_plate"`
	VehicleType  *string `gorm:"column:vehicle_type" json:"vehicle_type"`
	OwnerID      *string `gorm:"column:owner_id" json:"owner_id"`
	OwnerName    *string `gorm:"column:owner_name" json:"owner_name"`
	IsAuthorized bool    `gorm:"column:is_authorized;default:false" json:"is_authorized"`
	Notes        *string `gorm:"column:notes" json:"notes"`
	CreatedAt    int64   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Vehicle) TableName() string {
	return "vehicles"
}
