package validators

type CreateClaimRequest struct {
	DealID string `json:"deal_id" binding:"required,object_id"`
}

// RedeemRequest carries what the vendor scanned or typed.
type RedeemRequest struct {
	Code string `json:"code" binding:"required,redemption_token"`
}

type ExtendExpiryRequest struct {
	ExpiresAt string `json:"expires_at" validate:"required,future_date"`
}
