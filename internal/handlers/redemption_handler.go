package handlers

import (
	"dealdrop/internal/middleware"
	"dealdrop/internal/services"
	"dealdrop/internal/utils"
	"dealdrop/internal/validators"
	"dealdrop/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RedemptionHandler struct {
	redemptionService services.RedemptionService
	logger            *logger.Logger
}

func NewRedemptionHandler(redemptionService services.RedemptionService, log *logger.Logger) *RedemptionHandler {
	return &RedemptionHandler{
		redemptionService: redemptionService,
		logger:            log,
	}
}

// Redeem verifies a scanned QR token or typed code for the agent's vendor.
func (h *RedemptionHandler) Redeem(c *gin.Context) {
	var request validators.RedeemRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	vendorID, ok := currentVendorID(c)
	if !ok {
		return
	}
	agentID, ok := objectIDFromContext(c, middleware.ContextUserID)
	if !ok {
		utils.UnauthorizedResponse(c)
		return
	}

	result, err := h.redemptionService.Redeem(c.Request.Context(), vendorID, agentID, request.Code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Deal redeemed successfully", result)
}

// CodeStatus is public and read-only.
func (h *RedemptionHandler) CodeStatus(c *gin.Context) {
	status, err := h.redemptionService.CheckCodeStatus(c.Request.Context(), c.Param("code"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Code status retrieved successfully", status)
}

func (h *RedemptionHandler) ListRecentRedemptions(c *gin.Context) {
	vendorID, ok := currentVendorID(c)
	if !ok {
		return
	}

	redemptions, err := h.redemptionService.ListRecentRedemptions(c.Request.Context(), vendorID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Redemptions retrieved successfully", redemptions, &utils.Meta{
		Count: len(redemptions),
		Limit: utils.MaxRedemptionListSize,
	})
}
