package handlers

import (
	"net/http"

	"dealdrop/internal/middleware"
	"dealdrop/internal/models"
	"dealdrop/internal/services"
	"dealdrop/internal/utils"
	"dealdrop/internal/validators"
	"dealdrop/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// respondError writes err in the standard envelope. Service errors carry
// their own status and code; anything else is logged and reported as an
// internal error without detail.
func respondError(c *gin.Context, log *logger.Logger, err error) {
	if se, ok := services.AsServiceError(err); ok {
		utils.ErrorResponse(c, se.Status, se.Code, se.Message)
		return
	}
	log.WithContext(c.Request.Context()).
		WithError(err).
		WithField("path", c.FullPath()).
		Error("Request failed")
	utils.InternalServerErrorResponse(c)
}

// respondBindError reports a request body or query that failed binding.
func respondBindError(c *gin.Context, err error) {
	if details, ok := validators.FieldErrors(err); ok {
		utils.ValidationErrorResponse(c, details)
		return
	}
	utils.BadRequestResponse(c, "Invalid request: "+err.Error())
}

func objectIDFromContext(c *gin.Context, key string) (primitive.ObjectID, bool) {
	value, exists := c.Get(key)
	if !exists {
		return primitive.NilObjectID, false
	}
	id, ok := value.(primitive.ObjectID)
	return id, ok
}

func currentUserID(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := objectIDFromContext(c, middleware.ContextUserID)
	if !ok {
		utils.UnauthorizedResponse(c)
	}
	return id, ok
}

func currentVendorID(c *gin.Context) (primitive.ObjectID, bool) {
	id, ok := objectIDFromContext(c, middleware.ContextVendorID)
	if !ok {
		utils.ForbiddenResponse(c)
	}
	return id, ok
}

func pathObjectID(c *gin.Context, param, label string) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param(param))
	if err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+label+" ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// vendorClaimView hides the customer's secrets from vendor-facing responses.
func vendorClaimView(claim *models.Claim) *models.Claim {
	view := *claim
	view.SessionToken = ""
	view.QRCode = ""
	view.QRCodeURL = ""
	view.RedemptionCode = ""
	return &view
}
