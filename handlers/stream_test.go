package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sentinelsec/backend/models"
	"github.com/sentinelsec/backend/services"
)

func setupEventHub(t *testing.T) *services.EventHub {
	t.Helper()
	hub := services.NewEventHub(nil)
	go hub.Run()
	SetEventHub(hub)
	t.Cleanup(func() {
		SetEventHub(nil)
		hub.Stop()
	})
	return hub
}

func dialWebSocket(t *testing.T, srv *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", path, err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

func pollUntil(t *testing.T, what string, ok func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if ok() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestEventStreamRequiresHub(t *testing.T) {
	router := testRouter()

	w := performRequest(router, http.MethodGet, "/ws", nil, nil)
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without a hub, got %d", w.Code)
	}
}

func TestEventStreamDeliversBroadcasts(t *testing.T) {
	hub := setupEventHub(t)
	srv := httptest.NewServer(testRouter())
	defer srv.Close()

	conn := dialWebSocket(t, srv, "/ws")
	pollUntil(t, "viewer registration", func() bool { return hub.ViewerCount() == 1 })

	hub.BroadcastEvent(models.EventNotification{
		ID:        5,
		EventType: models.EventUnknownFace,
		Timestamp: 1700000000,
	})

	var msg services.StreamMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if msg.Type != "new_event" || msg.Event == nil || msg.Event.ID != 5 {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// Keep-alive round trip
	if err := conn.WriteJSON(map[string]string{"type": "ping"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	var pong map[string]string
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("read pong: %v", err)
	}
	if pong["type"] != "pong" {
		t.Fatalf("expected pong, got %v", pong)
	}

	// Device status broadcasts ride the same stream
	hub.BroadcastDeviceStatus(models.Device{DeviceID: "CAM-01", IsActive: false})
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read device status: %v", err)
	}
	if msg.Type != "device_status" || msg.Device == nil || msg.Device.DeviceID != "CAM-01" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	conn.Close()
	pollUntil(t, "viewer removal", func() bool { return hub.ViewerCount() == 0 })
}

func TestEventStreamSurvivesViewerChurn(t *testing.T) {
	hub := setupEventHub(t)
	srv := httptest.NewServer(testRouter())
	defer srv.Close()

	first := dialWebSocket(t, srv, "/ws")
	second := dialWebSocket(t, srv, "/ws")
	pollUntil(t, "two viewers", func() bool { return hub.ViewerCount() == 2 })

	first.Close()
	pollUntil(t, "one viewer", func() bool { return hub.ViewerCount() == 1 })

	hub.BroadcastEvent(models.EventNotification{ID: 3, EventType: models.EventLoitering})

	var msg services.StreamMessage
	if err := second.ReadJSON(&msg); err != nil {
		t.Fatalf("surviving viewer must still receive: %v", err)
	}
	if msg.Event == nil || msg.Event.ID != 3 {
		t.Fatalf("unexpected message: %+v", msg)
	}
}

func TestCameraSocketAnswersFrames(t *testing.T) {
	SetFrameDetector(services.StubDetector{})
	t.Cleanup(func() { SetFrameDetector(nil) })

	srv := httptest.NewServer(testRouter())
	defer srv.Close()

	conn := dialWebSocket(t, srv, "/ws/camera")

	if err := conn.WriteJSON(map[string]interface{}{
		"type":      "frame",
		"data":      "ZmFrZS1qcGVnLWJ5dGVz",
		"timestamp": 123456,
	}); err != nil {
		t.Fatalf("send frame: %v", err)
	}

	var resp struct {
		Type       string               `json:"type"`
		Detections []services.Detection `json:"detections"`
		Timestamp  int64                `json:"timestamp"`
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read detections: %v", err)
	}
	if resp.Type != "detections" {
		t.Fatalf("expected detections, got %q", resp.Type)
	}
	if resp.Detections == nil {
		t.Fatal("detections must be an empty array, not null")
	}
	if resp.Timestamp != 123456 {
		t.Fatalf("timestamp not echoed: %d", resp.Timestamp)
	}

	// Garbage and non-frame messages are ignored, the session continues
	if err := conn.WriteMessage(websocket.TextMessage, []byte("][")); err != nil {
		t.Fatalf("send garbage: %v", err)
	}
	if err := conn.WriteJSON(map[string]string{"type": "hello"}); err != nil {
		t.Fatalf("send non-frame: %v", err)
	}
	if err := conn.WriteJSON(map[string]interface{}{
		"type":      "frame",
		"data":      "ZmFrZS1qcGVnLWJ5dGVz",
		"timestamp": 123457,
	}); err != nil {
		t.Fatalf("send second frame: %v", err)
	}
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read second detections: %v", err)
	}
	if resp.Timestamp != 123457 {
		t.Fatalf("got a reply to the wrong message: %+v", resp)
	}
}

func TestGetStreamStats(t *testing.T) {
	router := testRouter()

	var disabled map[string]interface{}
	w := performRequest(router, http.MethodGet, "/api/stream/stats", nil, nil)
	decodeBody(t, w, &disabled)
	if disabled["enabled"] != false {
		t.Fatalf("expected enabled=false without a hub: %v", disabled)
	}

	setupEventHub(t)

	var enabled map[string]interface{}
	w = performRequest(router, http.MethodGet, "/api/stream/stats", nil, nil)
	decodeBody(t, w, &enabled)
	if enabled["enabled"] != true {
		t.Fatalf("expected enabled=true: %v", enabled)
	}
	if enabled["viewers"] != float64(0) {
		t.Fatalf("expected 0 viewers: %v", enabled)
	}
}
