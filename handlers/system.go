package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// GetHealth handles GET /api/health
func GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"app":     "sentinel-backend",
		"version": "1.0.0",
	})
}

// GetSystemStats handles GET /api/system/stats - host resources plus the
// live state of the stream hub, internal queue and push subscriber set
func GetSystemStats(c *gin.Context) {
	stats := gin.H{}

	if percentages, err := cpu.Percent(0, false); err == nil && len(percentages) > 0 {
		stats["cpuPercent"] = percentages[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		stats["memoryTotal"] = vm.Total
		stats["memoryUsed"] = vm.Used
		stats["memoryPercent"] = vm.UsedPercent
	}

	if eventHub != nil {
		hubStats := eventHub.Stats()
		stats["stream"] = gin.H{
			"viewers":       hubStats.Viewers,
			"eventsOut":     hubStats.EventsOut,
			"viewersPruned": hubStats.ViewersPruned,
		}
	}
	if eventBus != nil {
		stats["queue"] = eventBus.GetStats()
	}
	if pushService != nil {
		stats["pushSubscribers"] = pushService.SubscriberCount()
	}

	c.JSON(http.StatusOK, stats)
}
