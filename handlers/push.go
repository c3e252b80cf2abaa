package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sentinelsec/backend/services"
)

// pushService delivers alerts to subscribed browsers
var pushService *services.PushService

// SetPushService wires the push dispatcher used by the push endpoints
func SetPushService(svc *services.PushService) {
	pushService = svc
}

// GetVAPIDPublicKey handles GET /api/push/vapid-public-key.
// The first call provisions the key pair; every later call returns the
// same key so existing subscriptions stay valid.
func GetVAPIDPublicKey(c *gin.Context) {
	if pushService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push service not initialized"})
		return
	}

	publicKey, err := pushService.PublicKey()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load VAPID key"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"publicKey": publicKey})
}

// SubscribePush handles POST /api/push/subscribe. The body is the push
// provider's subscription object and is stored as received.
func SubscribePush(c *gin.Context) {
	if pushService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push service not initialized"})
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read subscription"})
		return
	}

	if err := pushService.Subscribe(raw); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// UnsubscribePushRequest - remove a push subscription by endpoint
type UnsubscribePushRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// UnsubscribePush handles POST /api/push/unsubscribe. Unsubscribing an
// unknown endpoint still succeeds so clients can retry safely.
func UnsubscribePush(c *gin.Context) {
	if pushService == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Push service not initialized"})
		return
	}

	var req UnsubscribePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pushService.Unsubscribe(req.Endpoint)
	c.JSON(http.StatusOK, gin.H{"success": true})
}
