// Package services provides business logic services
package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"

	"github.com/sentinelsec/backend/models"
)

// SubjectEventCreated is the internal subject ingestion publishes accepted
// events to. The hub and the push dispatcher consume it independently.
const SubjectEventCreated = "events.created"

// EventHub fans stored events out to dashboard WebSocket viewers
type EventHub struct {
	natsConn *nats.Conn
	eventSub *nats.Subscription

	// WebSocket connections
	clients   map[*EventClient]bool
	clientsMu sync.RWMutex

	register   chan *EventClient
	unregister chan *EventClient
	broadcast  chan []byte
	stop       chan struct{}

	eventsOut     uint64
	viewersPruned uint64
}

// EventClient represents a WebSocket viewer of the live event stream
type EventClient struct {
	hub        *EventHub
	conn       *websocket.Conn
	send       chan []byte
	remoteAddr string
}

// StreamMessage is the envelope sent to dashboard viewers
type StreamMessage struct {
	Type   string                    `json:"type"`
	Event  *models.EventNotification `json:"event,omitempty"`
	Device *models.Device            `json:"device,omitempty"`
}

// NewEventHub creates a new event hub
func NewEventHub(natsConn *nats.Conn) *EventHub {
	return &EventHub{
		natsConn:   natsConn,
		clients:    make(map[*EventClient]bool),
		register:   make(chan *EventClient),
		unregister: make(chan *EventClient),
		broadcast:  make(chan []byte, 64),
		stop:       make(chan struct{}),
	}
}

// SubscribeEvents attaches the hub to the internal event stream
func (h *EventHub) SubscribeEvents() error {
	sub, err := h.natsConn.Subscribe(SubjectEventCreated, func(msg *nats.Msg) {
		var event models.EventNotification
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("⚠️ [EVENT_HUB] Dropping malformed event payload: %v", err)
			return
		}
		h.BroadcastEvent(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectEventCreated, err)
	}
	h.eventSub = sub
	return nil
}

// Register adds a viewer to the hub
func (h *EventHub) Register(client *EventClient) {
	h.register <- client
}

// Run starts the hub's main loop. Registration, removal and delivery all
// happen here, so a send channel is never written after it is closed.
func (h *EventHub) Run() {
	log.Println("📺 Event hub started")

	for {
		select {
		case client := <-h.register:
			h.clientsMu.Lock()
			h.clients[client] = true
			h.clientsMu.Unlock()
			log.Printf("📺 Viewer connected: %s", client.remoteAddr)

		case client := <-h.unregister:
			h.clientsMu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.clientsMu.Unlock()
			log.Printf("📺 Viewer disconnected: %s", client.remoteAddr)

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-h.stop:
			return
		}
	}
}

// Stop terminates the hub loop and detaches it from the event stream
func (h *EventHub) Stop() {
	if h.eventSub != nil {
		h.eventSub.Unsubscribe()
	}
	close(h.stop)
}

// deliver writes one message to every connected viewer. A viewer whose send
// buffer is already full gets no more messages: it is collected during the
// sweep and dropped afterwards, so one stuck connection cannot stall the rest.
func (h *EventHub) deliver(msg []byte) {
	h.clientsMu.Lock()
	var stale []*EventClient
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
			stale = append(stale, client)
		}
	}
	for _, client := range stale {
		delete(h.clients, client)
		close(client.send)
		atomic.AddUint64(&h.viewersPruned, 1)
		log.Printf("⚠️ [EVENT_HUB] Dropped slow viewer: %s", client.remoteAddr)
	}
	h.clientsMu.Unlock()

	atomic.AddUint64(&h.eventsOut, 1)
}

// BroadcastEvent sends a new_event message to all connected viewers
func (h *EventHub) BroadcastEvent(event models.EventNotification) {
	if h.ViewerCount() == 0 {
		return
	}

	msg, err := json.Marshal(StreamMessage{Type: "new_event", Event: &event})
	if err != nil {
		log.Printf("⚠️ [EVENT_HUB] Failed to encode event %d: %v", event.ID, err)
		return
	}
	h.broadcast <- msg
}

// BroadcastDeviceStatus sends a device_status message to all connected viewers
func (h *EventHub) BroadcastDeviceStatus(device models.Device) {
	if h.ViewerCount() == 0 {
		return
	}

	msg, err := json.Marshal(StreamMessage{Type: "device_status", Device: &device})
	if err != nil {
		log.Printf("⚠️ [EVENT_HUB] Failed to encode device status for %s: %v", device.DeviceID, err)
		return
	}
	h.broadcast <- msg
}

// ViewerCount returns the number of connected viewers
func (h *EventHub) ViewerCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

// HubStats holds hub statistics
type HubStats struct {
	Viewers       int    `json:"viewers"`
	EventsOut     uint64 `json:"eventsOut"`
	ViewersPruned uint64 `json:"viewersPruned"`
}

func (h *EventHub) Stats() HubStats {
	return HubStats{
		Viewers:       h.ViewerCount(),
		EventsOut:     atomic.LoadUint64(&h.eventsOut),
		ViewersPruned: atomic.LoadUint64(&h.viewersPruned),
	}
}
