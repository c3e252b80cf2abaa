package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/sentinelsec/backend/services"
)

var (
	eventHub      *services.EventHub
	frameDetector services.FrameDetector

	upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024 * 1024, // 1MB for frames
		CheckOrigin: func(r *http.Request) bool {
			return true // Allow all origins for now
		},
	}
)

const cameraWriteWait = 10 * time.Second

// SetEventHub sets the event hub for the handlers
func SetEventHub(hub *services.EventHub) {
	eventHub = hub
}

// SetFrameDetector sets the detector backing the camera socket
func SetFrameDetector(detector services.FrameDetector) {
	frameDetector = detector
}

// HandleEventStream handles WebSocket connections for the live event feed
func HandleEventStream(c *gin.Context) {
	if eventHub == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Event hub not initialized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}

	client := services.NewEventClient(eventHub, conn, c.ClientIP())

	eventHub.Register(client)

	// Start goroutines for reading and writing
	go client.WritePump()
	go client.ReadPump()
}

// GetStreamStats returns event hub statistics
func GetStreamStats(c *gin.Context) {
	if eventHub == nil {
		c.JSON(http.StatusOK, gin.H{
			"enabled": false,
		})
		return
	}

	stats := eventHub.Stats()
	c.JSON(http.StatusOK, gin.H{
		"enabled":       true,
		"viewers":       stats.Viewers,
		"eventsOut":     stats.EventsOut,
		"viewersPruned": stats.ViewersPruned,
	})
}

// cameraFrame is one inbound message on the camera socket
type cameraFrame struct {
	Type        string  `json:"type"`
	Data        string  `json:"data"`
	Timestamp   int64   `json:"timestamp"`
	Sensitivity float64 `json:"sensitivity"`
}

// detectionsMessage answers a frame with whatever the detector found
type detectionsMessage struct {
	Type       string               `json:"type"`
	Detections []services.Detection `json:"detections"`
	Timestamp  int64                `json:"timestamp"`
}

// HandleCameraSocket handles WebSocket connections from browser cameras.
// Each frame message is run through the detector and answered on the same
// connection; anything other than frames is ignored.
func HandleCameraSocket(c *gin.Context) {
	if frameDetector == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Detector not initialized"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("⚠️ WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sessionID := uuid.New().String()
	log.Printf("📷 [CAMERA] Session started - ID: %s, IP: %s", sessionID[:8], c.ClientIP())

	// Base64 frames from a webcam run to a few MB
	conn.SetReadLimit(8 << 20)

	frames := 0
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			break
		}

		var frame cameraFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			continue
		}
		if frame.Type != "frame" {
			continue
		}

		sensitivity := frame.Sensitivity
		if sensitivity <= 0 {
			sensitivity = 0.5
		}

		detections := frameDetector.Detect(frame.Data, sensitivity)
		frames++

		conn.SetWriteDeadline(time.Now().Add(cameraWriteWait))
		if err := conn.WriteJSON(detectionsMessage{
			Type:       "detections",
			Detections: detections,
			Timestamp:  frame.Timestamp,
		}); err != nil {
			break
		}
	}

	log.Printf("📷 [CAMERA] Session ended - ID: %s, Frames: %d", sessionID[:8], frames)
}
