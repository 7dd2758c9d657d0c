package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type RedemptionMethod string

const (
	RedemptionMethodCode  RedemptionMethod = "code"
	RedemptionMethodQR    RedemptionMethod = "qr"
	RedemptionMethodAdmin RedemptionMethod = "admin"
)

type Redemption struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ClaimID          primitive.ObjectID `json:"claim_id" bson:"claim_id"`
	DealID           primitive.ObjectID `json:"deal_id" bson:"deal_id"`
	VendorID         primitive.ObjectID `json:"vendor_id" bson:"vendor_id"`
	CustomerID       primitive.ObjectID `json:"customer_id" bson:"customer_id"`
	RedeemedBy       primitive.ObjectID `json:"redeemed_by" bson:"redeemed_by"`
	Method           RedemptionMethod   `json:"method" bson:"method"`
	DealPrice        float64            `json:"deal_price" bson:"deal_price"`
	DepositAmount    float64            `json:"deposit_amount" bson:"deposit_amount"`
	RemainingBalance float64            `json:"remaining_balance" bson:"remaining_balance"`
	RedeemedAt       time.Time          `json:"redeemed_at" bson:"redeemed_at"`
	CreatedAt        time.Time          `json:"created_at" bson:"created_at"`
}
