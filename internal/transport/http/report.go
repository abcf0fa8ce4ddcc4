package httptransport

import (
	"io"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"

	"github.com/gin-gonic/gin"

	"vpntrack-server-go/internal/domain/registry"
)

// credentialHeader carries the token issued through the chat front-end.
const credentialHeader = "Credential"

// ReportHandler accepts address reports from VPN-connected hosts and
// forwards them to the worker. Status mapping: 200 on success, 404 when
// the body is not an IP address at all, 406 for IPv6, 500 for credential
// or store failures.
type ReportHandler struct {
	dispatcher *registry.Dispatcher
	logger     *slog.Logger
}

func NewReportHandler(dispatcher *registry.Dispatcher, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Register mounts the report route on the engine root; the path carries
// no /api prefix because existing clients post to /app.
func (h *ReportHandler) Register(engine *gin.Engine) {
	engine.POST("/app", h.handleReport)
}

func (h *ReportHandler) handleReport(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 64))
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}

	addr, err := netip.ParseAddr(strings.TrimSpace(string(body)))
	if err != nil {
		h.logger.Warn("[HTTP] report body is not an IP address")
		c.Status(http.StatusNotFound)
		return
	}
	// IPv6 is rejected at the edge, before the worker sees the report.
	if !addr.Is4() {
		c.Status(http.StatusNotAcceptable)
		return
	}

	credential := c.GetHeader(credentialHeader)
	if _, err := registry.ParseCredential(credential); err != nil {
		h.logger.Warn("[HTTP] malformed credential", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	cmd := registry.NewReportAddress(credential, addr)
	if err := h.dispatcher.Submit(c.Request.Context(), cmd); err != nil {
		h.logger.Warn("[HTTP] dispatch failed", "err", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	res, err := cmd.Wait(c.Request.Context())
	if err != nil || !res.OK {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusOK)
}
