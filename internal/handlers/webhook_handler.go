package handlers

import (
	"io"
	"net/http"

	"dealdrop/internal/services"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	paymentService services.PaymentConfirmationService
	logger         *logger.Logger
}

func NewWebhookHandler(paymentService services.PaymentConfirmationService, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{
		paymentService: paymentService,
		logger:         log,
	}
}

// PaymentWebhook receives a provider callback. The raw body is passed through
// untouched because signatures are computed over the exact bytes. Internal
// failures answer 500 so the provider retries the delivery.
func (h *WebhookHandler) PaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")

	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		utils.BadRequestResponse(c, "Could not read request body")
		return
	}

	if err := h.paymentService.HandleWebhook(c.Request.Context(), provider, payload, c.Request.Header); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
