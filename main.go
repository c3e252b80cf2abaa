package main

import (
	"log"
	"os"
	"strconv"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"github.com/sentinelsec/backend/database"
	"github.com/sentinelsec/backend/handlers"
	"github.com/sentinelsec/backend/natsserver"
	"github.com/sentinelsec/backend/services"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Connect to database
	if err := database.Connect(); err != nil {
		log.Fatalf("❌ Failed to start server: %v", err)
	}
	defer database.Close()

	handlers.SeedAdminUser()

	// Start embedded NATS server for internal event fan-out
	natsPort := 4233
	if v := os.Getenv("NATS_PORT"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			natsPort = parsed
		}
	}
	natsServer, err := natsserver.New(natsserver.Config{
		Port:       natsPort,
		MaxPayload: 1 * 1024 * 1024, // event payloads are small JSON
	})
	if err != nil {
		log.Fatalf("❌ Failed to start NATS server: %v", err)
	}
	defer natsServer.Shutdown()
	log.Printf("📡 Internal NATS server started on port %d", natsServer.Port())
	handlers.SetEventBus(natsServer)

	// Separate client connection for the fan-out consumers
	natsConn, err := nats.Connect(natsServer.Address())
	if err != nil {
		log.Fatalf("❌ Failed to connect to NATS: %v", err)
	}
	defer natsConn.Close()

	// Initialize event hub for WebSocket streaming
	eventHub := services.NewEventHub(natsConn)
	if err := eventHub.SubscribeEvents(); err != nil {
		log.Fatalf("❌ Failed to subscribe event hub: %v", err)
	}
	go eventHub.Run()
	handlers.SetEventHub(eventHub)
	log.Println("📺 Event hub initialized")

	// Initialize web push dispatcher
	vapidDir := os.Getenv("VAPID_KEY_DIR")
	if vapidDir == "" {
		vapidDir = "/tmp"
	}
	pushService := services.NewPushService(services.NewVAPIDManager(vapidDir))
	if err := pushService.SubscribeEvents(natsConn); err != nil {
		log.Fatalf("❌ Failed to subscribe push service: %v", err)
	}
	handlers.SetPushService(pushService)
	log.Println("🔔 Push service initialized")

	handlers.SetFrameDetector(services.StubDetector{})

	// Setup Gin router
	if os.Getenv("ENV") == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()

	// CORS middleware
	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", "X-API-Key"}
	router.Use(cors.New(config))

	// WebSocket routes (outside /api group)
	router.GET("/ws", handlers.HandleEventStream)
	router.GET("/ws/camera", handlers.HandleCameraSocket)

	// API Routes
	api := router.Group("/api")
	{
		api.GET("/health", handlers.GetHealth)
		api.GET("/system/stats", handlers.GetSystemStats)
		api.GET("/stream/stats", handlers.GetStreamStats)

		api.POST("/auth/login", handlers.Login)

		// Event ingest from edge devices plus dashboard queries
		events := api.Group("/events")
		{
			events.POST("", handlers.VerifyAPIKey(), handlers.IngestEvents)
			events.GET("", handlers.GetEvents)
			events.GET("/today", handlers.GetTodayEvents)
			events.GET("/stats", handlers.GetEventStats)
		}

		// Device routes
		devices := api.Group("/devices")
		{
			devices.POST("/register", handlers.RegisterDevice)
			devices.GET("", handlers.GetDevices)
			devices.GET("/:deviceId", handlers.GetDevice)
			devices.PUT("/:deviceId/activate", handlers.AuthMiddleware(), handlers.ActivateDevice)
			devices.PUT("/:deviceId/deactivate", handlers.AuthMiddleware(), handlers.DeactivateDevice)
		}

		// Employee routes (device face sync is the open GET)
		employees := api.Group("/employees")
		{
			employees.GET("", handlers.GetEmployees)
			employees.GET("/:employeeId", handlers.GetEmployee)
			employees.GET("/:employeeId/attendance", handlers.GetEmployeeAttendance)
			employees.POST("", handlers.AuthMiddleware(), handlers.CreateEmployee)
			employees.PUT("/:employeeId", handlers.AuthMiddleware(), handlers.UpdateEmployee)
			employees.DELETE("/:employeeId", handlers.AuthMiddleware(), handlers.DeleteEmployee)
			employees.POST("/:employeeId/embedding", handlers.AuthMiddleware(), handlers.SetEmployeeEmbedding)
		}

		// Vehicle registry
		vehicles := api.Group("/vehicles")
		{
			vehicles.GET("", handlers.GetVehicles)
			vehicles.POST("", handlers.AuthMiddleware(), handlers.CreateVehicle)
			vehicles.PATCH("/:plate", handlers.AuthMiddleware(), handlers.UpdateVehicle)
		}

		// Web push
		push := api.Group("/push")
		{
			push.GET("/vapid-public-key", handlers.GetVAPIDPublicKey)
			push.POST("/subscribe", handlers.SubscribePush)
			push.POST("/unsubscribe", handlers.UnsubscribePush)
		}
	}

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	log.Printf("🚀 Server running on http://localhost:%s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
