package httptransport

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"

	"vpntrack-server-go/internal/domain/registry"
)

// StatusHandler exposes a small operational snapshot: host uptime,
// memory pressure and the current command queue depth.
type StatusHandler struct {
	dispatcher *registry.Dispatcher
	started    time.Time
}

func NewStatusHandler(dispatcher *registry.Dispatcher) *StatusHandler {
	return &StatusHandler{
		dispatcher: dispatcher,
		started:    time.Now(),
	}
}

func (h *StatusHandler) Register(api *gin.RouterGroup) {
	api.GET("/status", h.handleStatus)
}

func (h *StatusHandler) handleStatus(c *gin.Context) {
	payload := gin.H{
		"service_uptime": time.Since(h.started).String(),
		"queue_depth":    h.dispatcher.Depth(),
	}

	if uptime, err := host.Uptime(); err == nil {
		payload["host_uptime_sec"] = uptime
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		payload["mem_total"] = vm.Total
		payload["mem_used"] = vm.Used
		payload["mem_used_percent"] = vm.UsedPercent
	}

	RespondSuccess(c, http.StatusOK, payload, "")
}
