package handlers

import (
	"dealdrop/internal/repositories/interfaces"
	"dealdrop/internal/services"
	"dealdrop/internal/utils"
	"dealdrop/internal/validators"
	"dealdrop/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ClaimHandler struct {
	claimService services.ClaimService
	logger       *logger.Logger
}

func NewClaimHandler(claimService services.ClaimService, log *logger.Logger) *ClaimHandler {
	return &ClaimHandler{
		claimService: claimService,
		logger:       log,
	}
}

// CreateClaim claims a deal for the authenticated customer. Depending on the
// payment tier the response carries credentials, a checkout redirect or
// manual payment instructions.
func (h *ClaimHandler) CreateClaim(c *gin.Context) {
	var request validators.CreateClaimRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		respondBindError(c, err)
		return
	}

	customerID, ok := currentUserID(c)
	if !ok {
		return
	}
	dealID, _ := primitive.ObjectIDFromHex(request.DealID)

	result, err := h.claimService.CreateClaim(c.Request.Context(), customerID, dealID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.CreatedResponse(c, "Deal claimed successfully", result)
}

// ListClaims returns the customer's claims, optionally filtered by status.
func (h *ClaimHandler) ListClaims(c *gin.Context) {
	customerID, ok := currentUserID(c)
	if !ok {
		return
	}

	filter := interfaces.ClaimStatusFilter(c.Query("status"))
	claims, err := h.claimService.ListClaims(c.Request.Context(), customerID, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponseWithMeta(c, "Claims retrieved successfully", claims, &utils.Meta{
		Count: len(claims),
		Limit: utils.MaxClaimListSize,
	})
}

func (h *ClaimHandler) CancelClaim(c *gin.Context) {
	customerID, ok := currentUserID(c)
	if !ok {
		return
	}
	claimID, ok := pathObjectID(c, "id", "claim")
	if !ok {
		return
	}

	claim, err := h.claimService.CancelClaim(c.Request.Context(), customerID, claimID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Claim cancelled successfully", claim)
}

// VendorConfirmDeposit records that the vendor received a manual or link
// deposit and issues the customer's credentials.
func (h *ClaimHandler) VendorConfirmDeposit(c *gin.Context) {
	vendorID, ok := currentVendorID(c)
	if !ok {
		return
	}
	claimID, ok := pathObjectID(c, "id", "claim")
	if !ok {
		return
	}

	claim, err := h.claimService.VendorConfirmDeposit(c.Request.Context(), vendorID, claimID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Deposit confirmed successfully", vendorClaimView(claim))
}

func (h *ClaimHandler) FindByPaymentReference(c *gin.Context) {
	vendorID, ok := currentVendorID(c)
	if !ok {
		return
	}

	claim, err := h.claimService.FindByPaymentReference(c.Request.Context(), vendorID, c.Param("reference"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	utils.SuccessResponse(c, "Claim retrieved successfully", vendorClaimView(claim))
}
