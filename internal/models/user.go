package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserStatus string
type UserType string

const (
	UserStatusActive    UserStatus = "active"
	UserStatusSuspended UserStatus = "suspended"

	UserTypeCustomer UserType = "customer"
	UserTypeVendor   UserType = "vendor"
	UserTypeAdmin    UserType = "admin"
)

type User struct {
	ID             primitive.ObjectID  `json:"id" bson:"_id,omitempty"`
	FirstName      string              `json:"first_name" bson:"first_name" validate:"required,min=2,max=50"`
	LastName       string              `json:"last_name" bson:"last_name"`
	Email          string              `json:"email" bson:"email" validate:"required,email"`
	Phone          string              `json:"phone" bson:"phone"`
	UserType       UserType            `json:"user_type" bson:"user_type" validate:"required"`
	VendorID       *primitive.ObjectID `json:"vendor_id,omitempty" bson:"vendor_id,omitempty"`
	Status         UserStatus          `json:"status" bson:"status" default:"active"`
	SMSOptIn       bool                `json:"sms_opt_in" bson:"sms_opt_in"`
	ProfilePicture string              `json:"profile_picture" bson:"profile_picture"`
	CreatedAt      time.Time           `json:"created_at" bson:"created_at"`
	UpdatedAt      time.Time           `json:"updated_at" bson:"updated_at"`
}

func (u *User) DisplayName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName[:1] + "."
}
