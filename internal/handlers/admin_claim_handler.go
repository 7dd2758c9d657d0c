package handlers

import (
	"strings"

	"dealdrop/internal/services"
	"dealdrop/internal/utils"
	"dealdrop/internal/validators"
	"dealdrop/pkg/logger"

	"github.com/gin-gonic/gin"
)

type AdminClaimHandler struct {
	adminService services.AdminClaimService
	logger       *logger.Logger
}

func NewAdminClaimHandler(adminService services.AdminClaimService, log *logger.Logger) *AdminClaimHandler {
	return &AdminClaimHandler{
		adminService: adminService,
		logger:       log,
	}
}

func (h *AdminClaimHandler) actor(c *gin.Context) (services.AdminActor, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		return services.AdminActor{}, false
	}
	return services.AdminActor{
		UserID:    userID,
		IPAddress: c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	}, true
}

// ExecuteAction applies one admin action to a claim and returns the result.
func (h *AdminClaimHandler) ExecuteAction(c *gin.Context) {
	claimID, ok := pathObjectID(c, "id", "claim")
	if !ok {
		return
	}

	var request services.AdminActionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	if strings.EqualFold(strings.TrimSpace(request.Action), services.AdminActionExtend) {
		if errs := validators.ValidateStruct(validators.ExtendExpiryRequest{ExpiresAt: request.ExpiresAt}); len(errs) > 0 {
			respondError(c, h.logger, services.ErrInvalidExpiry.Wrap(errs))
			return
		}
	}

	action, err := services.ParseAdminAction(&request)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	claim, err := h.adminService.Execute(c.Request.Context(), actor, claimID, action)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Admin action "+action.Name()+" applied", claim)
}

func (h *AdminClaimHandler) DeleteClaim(c *gin.Context) {
	claimID, ok := pathObjectID(c, "id", "claim")
	if !ok {
		return
	}
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	if err := h.adminService.DeleteClaim(c.Request.Context(), actor, claimID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Claim deleted successfully", nil)
}

// ClaimHistory lists the audit trail of a claim, including deleted ones.
func (h *AdminClaimHandler) ClaimHistory(c *gin.Context) {
	claimID, ok := pathObjectID(c, "id", "claim")
	if !ok {
		return
	}

	entries, err := h.adminService.ClaimHistory(c.Request.Context(), claimID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Claim history retrieved", entries, &utils.Meta{
		Count: len(entries),
		Limit: utils.MaxAuditHistorySize,
	})
}
