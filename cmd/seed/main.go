package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joho/godotenv"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/handlers"
	"github.com/sentinelsec/backend/models"
)

// Fixed key so the demo edge app can ingest without registering first
const demoAPIKey = "d3e7a1b54c9f02768e1a5b3c7d9f0214365879a0b1c2d3e4f5061728394a5b6c"

var sampleEmployees = []struct {
	ID         string
	Name       string
	Department string
	Email      string
}{
	{"EMP001", "Alice Johnson", "Engineering", "alice.johnson@example.com"},
	{"EMP002", "Bob Martinez", "Operations", "bob.martinez@example.com"},
	{"EMP003", "Chen Wei", "Security", "chen.wei@example.com"},
	{"EMP004", "Dana Smith", "HR", "dana.smith@example.com"},
	{"EMP005", "Erik Olsen", "Engineering", "erik.olsen@example.com"},
}

var sampleVehicles = []struct {
	Plate      string
	Type       string
	Owner      string
	Authorized bool
}{
	{"KA01AB1234", "car", "Alice Johnson", true},
	{"KA05CD5678", "car", "Bob Martinez", true},
	{"KA51EF9012", "bike", "Chen Wei", true},
	{"KA03GH3456", "car", "", false},
}

func strptr(s string) *string { return &s }

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer database.Close()

	fmt.Println("🌱 Seeding demo data...")

	handlers.SeedAdminUser()

	rand.Seed(time.Now().UnixNano())
	now := time.Now()

	// Demo device
	var device models.Device
	if err := database.DB.Where("device_id = ?", "DEMO-TABLET-01").First(&device).Error; err != nil {
		lastSeen := now.Unix()
		device = models.Device{
			DeviceID:   "DEMO-TABLET-01",
			DeviceName: "Front Entrance Tablet",
			Model:      strptr("Galaxy Tab A8"),
			OSVersion:  strptr("Android 13"),
			APIKey:     demoAPIKey,
			IsActive:   true,
			LastSeen:   &lastSeen,
		}
		if err := database.DB.Create(&device).Error; err != nil {
			log.Fatalf("❌ Failed to create demo device: %v", err)
		}
		fmt.Printf("✅ Created demo device %s (api key %s)\n", device.DeviceID, demoAPIKey)
	} else {
		fmt.Printf("ℹ️  Demo device %s already exists\n", device.DeviceID)
	}

	// Employees
	employeesCreated := 0
	for _, e := range sampleEmployees {
		var existing models.Employee
		if err := database.DB.Where("employee_id = ?", e.ID).First(&existing).Error; err == nil {
			continue
		}
		employee := models.Employee{
			EmployeeID: e.ID,
			Name:       e.Name,
			Department: strptr(e.Department),
			Email:      strptr(e.Email),
			IsActive:   true,
		}
		if err := database.DB.Create(&employee).Error; err != nil {
			log.Printf("Failed to create employee %s: %v", e.ID, err)
			continue
		}
		employeesCreated++
	}
	fmt.Printf("✅ Created %d employees\n", employeesCreated)

	// Vehicles
	vehiclesCreated := 0
	for _, v := range sampleVehicles {
		var existing models.Vehicle
		if err := database.DB.Where("license_plate = ?", v.Plate).First(&existing).Error; err == nil {
			continue
		}
		vehicle := models.Vehicle{
			LicensePlate: v.Plate,
			VehicleType:  strptr(v.Type),
			IsAuthorized: v.Authorized,
		}
		if v.Owner != "" {
			vehicle.OwnerName = strptr(v.Owner)
		}
		if err := database.DB.Create(&vehicle).Error; err != nil {
			log.Printf("Failed to create vehicle %s: %v", v.Plate, err)
			continue
		}
		vehiclesCreated++
	}
	fmt.Printf("✅ Created %d vehicles\n", vehiclesCreated)

	// Events over the past day
	eventsCreated := 0
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// Arrivals in the morning, departures in the evening, plus the
	// matching attendance rows the ingest path would have written
	for _, e := range sampleEmployees {
		arrival := midnight.Add(8*time.Hour + time.Duration(rand.Intn(120))*time.Minute)
		departure := midnight.Add(17*time.Hour + time.Duration(rand.Intn(120))*time.Minute)
		departed := rand.Float64() > 0.3 && departure.Before(now)

		arrivalEvent := models.Event{
			EventType:  models.EventEmployeeArrived,
			Timestamp:  arrival.Unix(),
			DeviceID:   device.DeviceID,
			EmployeeID: strptr(e.ID),
		}
		if err := database.DB.Create(&arrivalEvent).Error; err != nil {
			log.Printf("Failed to create arrival event: %v", err)
			continue
		}
		eventsCreated++

		attendance := models.Attendance{
			EmployeeID: e.ID,
			Date:       arrival.Format("2006-01-02"),
		}
		checkIn := arrival.Unix()
		attendance.CheckInTime = &checkIn

		if departed {
			departureEvent := models.Event{
				EventType:  models.EventEmployeeDeparted,
				Timestamp:  departure.Unix(),
				DeviceID:   device.DeviceID,
				EmployeeID: strptr(e.ID),
			}
			if err := database.DB.Create(&departureEvent).Error; err == nil {
				eventsCreated++
				checkOut := departure.Unix()
				total := checkOut - checkIn
				attendance.CheckOutTime = &checkOut
				attendance.TotalDuration = &total
			}
		}

		database.DB.Where("employee_id = ? AND date = ?", attendance.EmployeeID, attendance.Date).
			FirstOrCreate(&attendance)
	}

	// Foot traffic through the day
	numPeople := rand.Intn(40) + 40
	for i := 0; i < numPeople; i++ {
		eventType := models.EventPersonEntered
		if rand.Float64() > 0.5 {
			eventType = models.EventPersonExited
		}
		timestamp := midnight.Add(time.Duration(rand.Intn(int(now.Sub(midnight).Seconds()))) * time.Second)
		confidence := 0.7 + rand.Float64()*0.25

		event := models.Event{
			EventType:  eventType,
			Timestamp:  timestamp.Unix(),
			DeviceID:   device.DeviceID,
			TrackID:    strptr(fmt.Sprintf("track_%04d", rand.Intn(10000))),
			Confidence: &confidence,
		}
		if err := database.DB.Create(&event).Error; err != nil {
			log.Printf("Failed to create event: %v", err)
			continue
		}
		eventsCreated++
	}

	// A few alert-worthy sightings
	numAlerts := rand.Intn(4) + 2
	for i := 0; i < numAlerts; i++ {
		timestamp := midnight.Add(time.Duration(rand.Intn(int(now.Sub(midnight).Seconds()))) * time.Second)
		confidence := 0.6 + rand.Float64()*0.3

		event := models.Event{
			Timestamp:  timestamp.Unix(),
			DeviceID:   device.DeviceID,
			TrackID:    strptr(fmt.Sprintf("track_%04d", rand.Intn(10000))),
			Confidence: &confidence,
		}
		if rand.Float64() > 0.5 {
			event.EventType = models.EventUnknownFace
		} else {
			event.EventType = models.EventLoitering
			duration := int64(30000 + rand.Intn(270000)) // 30s to 5min in ms
			event.Duration = &duration
		}
		if err := database.DB.Create(&event).Error; err != nil {
			log.Printf("Failed to create event: %v", err)
			continue
		}
		eventsCreated++
	}

	// Vehicle traffic
	numVehicleEvents := rand.Intn(10) + 5
	for i := 0; i < numVehicleEvents; i++ {
		eventType := models.EventVehicleEntered
		if rand.Float64() > 0.5 {
			eventType = models.EventVehicleExited
		}
		timestamp := midnight.Add(time.Duration(rand.Intn(int(now.Sub(midnight).Seconds()))) * time.Second)
		plate := sampleVehicles[rand.Intn(len(sampleVehicles))].Plate

		event := models.Event{
			EventType:    eventType,
			Timestamp:    timestamp.Unix(),
			DeviceID:     device.DeviceID,
			LicensePlate: strptr(plate),
		}
		if err := database.DB.Create(&event).Error; err != nil {
			log.Printf("Failed to create event: %v", err)
			continue
		}
		eventsCreated++
	}

	fmt.Printf("✅ Created %d events for device %s\n", eventsCreated, device.DeviceID)
	fmt.Println("✅ All seeding completed.")
}
