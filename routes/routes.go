package routes

import (
	"dealdrop/internal/handlers"
	"dealdrop/internal/middleware"
	"dealdrop/internal/utils"

	"github.com/gin-gonic/gin"
)

// Handlers groups everything the API routes dispatch to.
type Handlers struct {
	Claims      *handlers.ClaimHandler
	Redemptions *handlers.RedemptionHandler
	Admin       *handlers.AdminClaimHandler
	Webhooks    *handlers.WebhookHandler
}

// SetupRoutes mounts the claim lifecycle API under r.
func SetupRoutes(r *gin.RouterGroup, h Handlers, verifier *utils.TokenVerifier) {
	auth := middleware.AuthRequired(verifier)

	// Public routes (no auth required)
	r.GET("/codes/:code/status", h.Redemptions.CodeStatus)
	r.POST("/webhooks/payments/:provider", h.Webhooks.PaymentWebhook)

	claims := r.Group("/claims")
	claims.Use(auth, middleware.CustomerRequired())
	{
		claims.POST("", h.Claims.CreateClaim)
		claims.GET("", h.Claims.ListClaims)
		claims.POST("/:id/cancel", h.Claims.CancelClaim)
	}

	vendor := r.Group("/vendor")
	vendor.Use(auth, middleware.VendorRequired())
	{
		vendor.POST("/redeem", h.Redemptions.Redeem)
		vendor.GET("/redemptions", h.Redemptions.ListRecentRedemptions)
		vendor.POST("/claims/:id/confirm-deposit", h.Claims.VendorConfirmDeposit)
		vendor.GET("/claims/reference/:reference", h.Claims.FindByPaymentReference)
	}

	admin := r.Group("/admin/claims")
	admin.Use(auth, middleware.AdminRequired())
	{
		admin.POST("/:id/actions", h.Admin.ExecuteAction)
		admin.DELETE("/:id", h.Admin.DeleteClaim)
		admin.GET("/:id/history", h.Admin.ClaimHistory)
	}
}
