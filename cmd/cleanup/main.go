package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/models"
)

func retentionDays(envVar string, fallback int) int {
	if v := os.Getenv(envVar); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

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

	fmt.Println("Start cleanup...")

	// Prune old events
	eventDays := retentionDays("EVENT_RETENTION_DAYS", 30)
	cutoff := time.Now().AddDate(0, 0, -eventDays).Unix()

	result := database.DB.Where("timestamp < ?", cutoff).Delete(&models.Event{})
	if result.Error != nil {
		log.Fatalf("Failed to delete old events: %v", result.Error)
	}
	fmt.Printf("✅ Deleted %d events older than %d days\n", result.RowsAffected, eventDays)

	// Prune old attendance records
	attendanceDays := retentionDays("ATTENDANCE_RETENTION_DAYS", 365)
	attendanceCutoff := time.Now().AddDate(0, 0, -attendanceDays).Format("2006-01-02")

	result = database.DB.Where("date < ?", attendanceCutoff).Delete(&models.Attendance{})
	if result.Error != nil {
		log.Fatalf("Failed to delete old attendance: %v", result.Error)
	}
	fmt.Printf("✅ Deleted %d attendance records older than %d days\n", result.RowsAffected, attendanceDays)

	fmt.Println("Cleanup finished successfully")
}
