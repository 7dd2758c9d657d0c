package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoyaltyProgramType string
type LoyaltyTransactionType string

const (
	LoyaltyProgramPunchCard LoyaltyProgramType = "punch_card"
	LoyaltyProgramPoints    LoyaltyProgramType = "points"

	LoyaltyTransactionEarnPunch  LoyaltyTransactionType = "earn_punch"
	LoyaltyTransactionEarnPoints LoyaltyTransactionType = "earn_points"
)

type LoyaltyProgram struct {
	ID                primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	VendorID          primitive.ObjectID `json:"vendor_id" bson:"vendor_id"`
	Name              string             `json:"name" bson:"name" validate:"required"`
	Type              LoyaltyProgramType `json:"type" bson:"type" validate:"required"`
	PunchesRequired   int                `json:"punches_required" bson:"punches_required"`
	PointsPerDollar   float64            `json:"points_per_dollar" bson:"points_per_dollar" default:"1"`
	RewardDescription string             `json:"reward_description" bson:"reward_description"`
	IsActive          bool               `json:"is_active" bson:"is_active" default:"true"`
	CreatedAt         time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at" bson:"updated_at"`
}

type LoyaltyCard struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ProgramID          primitive.ObjectID `json:"program_id" bson:"program_id"`
	VendorID           primitive.ObjectID `json:"vendor_id" bson:"vendor_id"`
	CustomerID         primitive.ObjectID `json:"customer_id" bson:"customer_id"`
	CurrentPunches     int64              `json:"current_punches" bson:"current_punches"`
	TotalPunchesEarned int64              `json:"total_punches_earned" bson:"total_punches_earned"`
	CurrentPoints      int64              `json:"current_points" bson:"current_points"`
	TotalPointsEarned  int64              `json:"total_points_earned" bson:"total_points_earned"`
	LastActivityAt     *time.Time         `json:"last_activity_at" bson:"last_activity_at"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" bson:"updated_at"`
}

type LoyaltyTransaction struct {
	ID           primitive.ObjectID     `json:"id" bson:"_id,omitempty"`
	CardID       primitive.ObjectID     `json:"card_id" bson:"card_id"`
	ProgramID    primitive.ObjectID     `json:"program_id" bson:"program_id"`
	VendorID     primitive.ObjectID     `json:"vendor_id" bson:"vendor_id"`
	CustomerID   primitive.ObjectID     `json:"customer_id" bson:"customer_id"`
	RedemptionID primitive.ObjectID     `json:"redemption_id" bson:"redemption_id"`
	Type         LoyaltyTransactionType `json:"type" bson:"type"`
	Punches      int64                  `json:"punches" bson:"punches"`
	Points       int64                  `json:"points" bson:"points"`
	Description  string                 `json:"description" bson:"description"`
	CreatedAt    time.Time              `json:"created_at" bson:"created_at"`
}
