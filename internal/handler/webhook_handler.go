package handler

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitgrid-app/backend-chat/internal/dto"
	"github.com/fitgrid-app/backend-chat/internal/service"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
	"github.com/fitgrid-app/backend-chat/pkg/response"
	"github.com/fitgrid-app/backend-chat/pkg/telemetry"
)

// SignatureHeader carries the provider's HMAC-SHA256 of the raw body
const SignatureHeader = "X-Webhook-Signature"

// WebhookHandler answers the channel provider's synchronous authorization
// callback. The provider blocks the user action on this answer, so the
// handler always returns 200 with an explicit allow/deny body; transport
// errors on the provider side degrade to its own fail-closed default.
type WebhookHandler struct {
	authorize service.AuthorizeService
	secret    []byte
	log       *logger.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(authorize service.AuthorizeService, secret string, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{authorize: authorize, secret: []byte(secret), log: log}
}

// RegisterRoutes registers webhook routes on the given router group
func (h *WebhookHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/webhooks/authorize", h.Authorize)
}

// Authorize handles POST /webhooks/authorize
func (h *WebhookHandler) Authorize(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.WebhookAuthorize")
	defer span.End()

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest("unreadable body"))
		return
	}

	if !h.verifySignature(body, c.GetHeader(SignatureHeader)) {
		h.log.Warn("webhook signature verification failed",
			zap.String("remote_addr", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, response.Unauthorized("Invalid webhook signature"))
		return
	}

	var req dto.AuthorizeRequest
	if err := json.Unmarshal(body, &req); err != nil || req.ChannelID == "" || req.UserID == "" {
		// Malformed callbacks still get a deny answer rather than an error
		// envelope the provider cannot interpret
		c.JSON(http.StatusOK, &dto.AuthorizeResponse{Allow: false, Reason: service.DenyInvalidChannel})
		return
	}

	span.SetAttributes(
		attribute.String("channel.id", req.ChannelID),
		attribute.String("user.id", req.UserID),
		attribute.String("action", req.Action))

	result := h.authorize.Authorize(ctx, &req)
	c.JSON(http.StatusOK, result)
}

// verifySignature checks the HMAC-SHA256 hex signature over the raw body.
// An empty configured secret disables verification (dev environments).
func (h *WebhookHandler) verifySignature(body []byte, signature string) bool {
	if len(h.secret) == 0 {
		return true
	}
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
