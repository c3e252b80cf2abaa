package services

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/nats-io/nats.go"

	"github.com/sentinelsec/backend/models"
)

// alertTemplate is the notification rendered for an alert-worthy event type
type alertTemplate struct {
	Title       string
	DefaultBody string
}

// alertTemplates is the single source of truth for which event types become
// push notifications. Event types without an entry are stored and broadcast
// but never alerted.
var alertTemplates = map[string]alertTemplate{
	models.EventUnknownFace:    {"Unknown Person Detected", "An unrecognized face was detected"},
	models.EventLoitering:      {"Loitering Alert", "Unusual activity detected"},
	models.EventVehicleEntered: {"Vehicle Entered", "A vehicle has entered the premises"},
}

// PushService keeps the browser push subscriber set and delivers alerts.
// Subscriptions live for the process lifetime only; endpoints the push
// service reports as gone are removed after each delivery sweep.
type PushService struct {
	keys       *VAPIDManager
	subscriber string
	client     *http.Client

	mu   sync.RWMutex
	subs map[string]json.RawMessage // endpoint -> subscription as received

	eventSub *nats.Subscription
}

// pushPayload is the JSON body the service worker receives
type pushPayload struct {
	Title   string `json:"title"`
	Body    string `json:"body"`
	URL     string `json:"url"`
	Tag     string `json:"tag"`
	EventID *int64 `json:"eventId"`
}

// NewPushService creates a push dispatcher signing with keys
func NewPushService(keys *VAPIDManager) *PushService {
	subscriber := os.Getenv("VAPID_SUBSCRIBER")
	if subscriber == "" {
		subscriber = "admin@localhost"
	}
	return &PushService{
		keys:       keys,
		subscriber: subscriber,
		client:     &http.Client{Timeout: 10 * time.Second},
		subs:       make(map[string]json.RawMessage),
	}
}

// SubscribeEvents attaches the dispatcher to the internal event stream
func (p *PushService) SubscribeEvents(natsConn *nats.Conn) error {
	sub, err := natsConn.Subscribe(SubjectEventCreated, func(msg *nats.Msg) {
		var event models.EventNotification
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			log.Printf("⚠️ [PUSH] Dropping malformed event payload: %v", err)
			return
		}
		p.NotifyEvent(event)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", SubjectEventCreated, err)
	}
	p.eventSub = sub
	return nil
}

// PublicKey exposes the VAPID application server key for new subscriptions
func (p *PushService) PublicKey() (string, error) {
	return p.keys.PublicKey()
}

// Subscribe stores a browser subscription keyed by its endpoint. The raw
// JSON is kept as received; re-subscribing an endpoint overwrites it.
func (p *PushService) Subscribe(raw json.RawMessage) error {
	var sub webpush.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return fmt.Errorf("invalid subscription: %w", err)
	}
	if sub.Endpoint == "" {
		return fmt.Errorf("subscription endpoint is required")
	}

	p.mu.Lock()
	p.subs[sub.Endpoint] = append(json.RawMessage(nil), raw...)
	total := len(p.subs)
	p.mu.Unlock()

	log.Printf("🔔 [PUSH] Subscribed %s (%d total)", shortEndpoint(sub.Endpoint), total)
	return nil
}

// Unsubscribe removes an endpoint, reporting whether it was known
func (p *PushService) Unsubscribe(endpoint string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.subs[endpoint]
	delete(p.subs, endpoint)
	return ok
}

// SubscriberCount returns the number of stored subscriptions
func (p *PushService) SubscriberCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.subs)
}

// NotifyEvent sends a push notification if the event type is alert-worthy
func (p *PushService) NotifyEvent(event models.EventNotification) {
	details := ""
	switch {
	case event.EmployeeName != nil && *event.EmployeeName != "":
		details = *event.EmployeeName
	case event.LicensePlate != nil && *event.LicensePlate != "":
		details = *event.LicensePlate
	}
	p.SendAlert(event.EventType, details, &event.ID)
}

// SendAlert delivers a notification for an alert-worthy event type to every
// subscriber. Per-endpoint outcomes are independent: transport errors and
// server errors keep the subscription, 404/410 mark the endpoint gone and it
// is removed once the sweep completes.
func (p *PushService) SendAlert(eventType, details string, eventID *int64) {
	tmpl, ok := alertTemplates[eventType]
	if !ok {
		return
	}

	// With nobody subscribed there is nothing to sign, so the key pair is
	// not touched at all
	targets := p.snapshot()
	if len(targets) == 0 {
		return
	}

	body := tmpl.DefaultBody
	if details != "" {
		body = details
	}
	url := "/events"
	if eventID != nil {
		url = fmt.Sprintf("/events?highlight=%d", *eventID)
	}
	payload, err := json.Marshal(pushPayload{
		Title:   tmpl.Title,
		Body:    body,
		URL:     url,
		Tag:     "alert-" + strings.ToLower(eventType),
		EventID: eventID,
	})
	if err != nil {
		log.Printf("⚠️ [PUSH] Failed to encode payload: %v", err)
		return
	}

	publicKey, privateKey, err := p.keys.SigningKeys()
	if err != nil {
		log.Printf("❌ [PUSH] VAPID keys unavailable: %v", err)
		return
	}

	options := &webpush.Options{
		HTTPClient:      p.client,
		Subscriber:      p.subscriber,
		VAPIDPublicKey:  publicKey,
		VAPIDPrivateKey: privateKey,
		TTL:             30,
	}

	var gone []string
	sent := 0
	for endpoint, raw := range targets {
		var sub webpush.Subscription
		if err := json.Unmarshal(raw, &sub); err != nil {
			log.Printf("⚠️ [PUSH] Dropping undecodable subscription %s: %v", shortEndpoint(endpoint), err)
			gone = append(gone, endpoint)
			continue
		}

		resp, err := webpush.SendNotification(payload, &sub, options)
		if err != nil {
			log.Printf("⚠️ [PUSH] Delivery to %s failed: %v", shortEndpoint(endpoint), err)
			continue
		}
		resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
			gone = append(gone, endpoint)
		case resp.StatusCode >= 300:
			log.Printf("⚠️ [PUSH] Push service answered %d for %s", resp.StatusCode, shortEndpoint(endpoint))
		default:
			sent++
		}
	}

	for _, endpoint := range gone {
		p.Unsubscribe(endpoint)
	}
	if len(gone) > 0 {
		log.Printf("🔕 [PUSH] Removed %d expired subscriptions", len(gone))
	}
	log.Printf("🔔 [PUSH] %s: delivered %d/%d", tmpl.Title, sent, len(targets))
}

// snapshot copies the subscriber set so delivery I/O runs without the lock
func (p *PushService) snapshot() map[string]json.RawMessage {
	p.mu.RLock()
	defer p.mu.RUnlock()
	targets := make(map[string]json.RawMessage, len(p.subs))
	for endpoint, raw := range p.subs {
		targets[endpoint] = raw
	}
	return targets
}

func shortEndpoint(endpoint string) string {
	if len(endpoint) > 48 {
		return endpoint[:48] + "..."
	}
	return endpoint
}
