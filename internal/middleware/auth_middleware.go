package middleware

import (
	"context"
	"net/http"
	"strings"

	"dealdrop/internal/models"
	"dealdrop/internal/utils"
	"dealdrop/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Context keys set by AuthRequired.
const (
	ContextUserID   = "user_id"
	ContextUserType = "user_type"
	ContextVendorID = "vendor_id"
)

// AuthRequired verifies the bearer token and sets the caller's identity on
// the gin context and the request context.
func AuthRequired(verifier *utils.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			utils.ErrorResponse(c, http.StatusUnauthorized, "UNAUTHORIZED", "Bearer token required")
			c.Abort()
			return
		}

		claims, err := verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			utils.ErrorResponse(c, http.StatusUnauthorized, "INVALID_TOKEN", utils.ErrInvalidToken)
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserType, claims.UserType)
		if vendorID, ok := claims.VendorObjectID(); ok {
			c.Set(ContextVendorID, vendorID)
		}
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIDKey, claims.UserID))

		c.Next()
	}
}

func requireUserType(c *gin.Context, userType models.UserType, message string) bool {
	value, exists := c.Get(ContextUserType)
	if !exists {
		utils.UnauthorizedResponse(c)
		c.Abort()
		return false
	}

	userTypeStr, ok := value.(string)
	if !ok || userTypeStr != string(userType) {
		utils.ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", message)
		c.Abort()
		return false
	}
	return true
}

// CustomerRequired admits customers only.
func CustomerRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUserType(c, models.UserTypeCustomer, "Customer access required") {
			return
		}
		c.Next()
	}
}

// VendorRequired ensures the user is a vendor agent whose token names the
// vendor they act for.
func VendorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUserType(c, models.UserTypeVendor, "Vendor access required") {
			return
		}
		if _, exists := c.Get(ContextVendorID); !exists {
			utils.ErrorResponse(c, http.StatusForbidden, "FORBIDDEN", "Token is not bound to a vendor")
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminRequired admits platform admins only.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !requireUserType(c, models.UserTypeAdmin, "Admin access required") {
			return
		}
		c.Next()
	}
}
