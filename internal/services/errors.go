package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind groups service errors by how a caller should react to them.
type ErrorKind string

const (
	KindValidation    ErrorKind = "validation"
	KindEligibility   ErrorKind = "eligibility"
	KindStateConflict ErrorKind = "state_conflict"
	KindDependency    ErrorKind = "dependency"
)

// ServiceError is a request-scoped failure with a stable machine code and the
// HTTP status it maps to.
type ServiceError struct {
	Kind    ErrorKind
	Status  int
	Code    string
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

// Is matches on Code so copies made by Wrap and WithMessage still compare
// equal to the sentinel they came from.
func (e *ServiceError) Is(target error) bool {
	t, ok := target.(*ServiceError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Wrap returns a copy of e carrying cause.
func (e *ServiceError) Wrap(cause error) *ServiceError {
	cp := *e
	cp.Err = cause
	return &cp
}

func (e *ServiceError) WithMessage(message string) *ServiceError {
	cp := *e
	cp.Message = message
	return &cp
}

func newError(kind ErrorKind, status int, code, message string) *ServiceError {
	return &ServiceError{Kind: kind, Status: status, Code: code, Message: message}
}

// Validation
var (
	ErrInvalidInput        = newError(KindValidation, http.StatusBadRequest, "INVALID_INPUT", "invalid input")
	ErrInvalidStatusFilter = newError(KindValidation, http.StatusBadRequest, "INVALID_STATUS_FILTER", "status must be one of active, expired, redeemed")
	ErrInvalidAction       = newError(KindValidation, http.StatusBadRequest, "INVALID_ACTION", "unknown admin action")
	ErrInvalidExpiry       = newError(KindValidation, http.StatusBadRequest, "INVALID_EXPIRY", "expires_at must be a valid timestamp in the future")
	ErrFieldNotEditable    = newError(KindValidation, http.StatusBadRequest, "FIELD_NOT_EDITABLE", "field cannot be edited")
	ErrUnknownProvider     = newError(KindValidation, http.StatusNotFound, "UNKNOWN_PROVIDER", "payment provider is not configured")
	ErrInvalidSignature    = newError(KindValidation, http.StatusBadRequest, "INVALID_SIGNATURE", "webhook signature verification failed")
	ErrInvalidWebhook      = newError(KindValidation, http.StatusBadRequest, "INVALID_WEBHOOK", "webhook payload could not be parsed")
)

// Eligibility
var (
	ErrDealNotFound       = newError(KindEligibility, http.StatusNotFound, "DEAL_NOT_FOUND", "deal not found")
	ErrOwnDeal            = newError(KindEligibility, http.StatusForbidden, "OWN_DEAL", "vendors cannot claim their own deals")
	ErrDealNotActive      = newError(KindEligibility, http.StatusBadRequest, "DEAL_NOT_ACTIVE", "deal is not active")
	ErrDealExpired        = newError(KindEligibility, http.StatusBadRequest, "DEAL_EXPIRED", "deal has expired")
	ErrSoldOut            = newError(KindEligibility, http.StatusBadRequest, "SOLD_OUT", "deal is sold out")
	ErrAlreadyClaimed     = newError(KindEligibility, http.StatusBadRequest, "ALREADY_CLAIMED", "you already hold an active claim on this deal")
	ErrClaimInProgress    = newError(KindEligibility, http.StatusConflict, "CLAIM_IN_PROGRESS", "a claim for this deal is already being processed")
	ErrVendorNotFound     = newError(KindEligibility, http.StatusNotFound, "VENDOR_NOT_FOUND", "vendor not found")
	ErrPaymentUnreachable = newError(KindEligibility, http.StatusUnprocessableEntity, "PAYMENT_UNREACHABLE", "vendor has no way to receive payment")
	ErrClaimNotFound      = newError(KindEligibility, http.StatusNotFound, "CLAIM_NOT_FOUND", "claim not found")
	ErrNotClaimOwner      = newError(KindEligibility, http.StatusForbidden, "NOT_CLAIM_OWNER", "claim belongs to another account")
)

// Code lookup outcomes
var (
	ErrInvalidCode     = newError(KindStateConflict, http.StatusNotFound, "INVALID", "code is not valid")
	ErrWrongVendor     = newError(KindStateConflict, http.StatusForbidden, "WRONG_VENDOR", "code belongs to another vendor's deal")
	ErrAlreadyRedeemed = newError(KindStateConflict, http.StatusConflict, "ALREADY_REDEEMED", "code has already been redeemed")
	ErrCodeExpired     = newError(KindStateConflict, http.StatusGone, "EXPIRED", "claim has expired")
	ErrNoDeposit       = newError(KindStateConflict, http.StatusPaymentRequired, "NO_DEPOSIT", "deposit has not been confirmed")
)

// Claim state conflicts on admin, vendor and customer transitions
var (
	ErrAlreadyConfirmed = newError(KindStateConflict, http.StatusConflict, "ALREADY_CONFIRMED", "deposit is already confirmed")
	ErrAlreadyCancelled = newError(KindStateConflict, http.StatusConflict, "ALREADY_CANCELLED", "claim is already cancelled")
	ErrClaimCancelled   = newError(KindStateConflict, http.StatusConflict, "CLAIM_CANCELLED", "claim has been cancelled")
	ErrClaimRedeemed    = newError(KindStateConflict, http.StatusConflict, "CLAIM_REDEEMED", "claim has already been redeemed")
	ErrCredentialsExist = newError(KindStateConflict, http.StatusConflict, "CREDENTIALS_EXIST", "claim already has credentials")
)

// External dependencies
var (
	ErrCheckoutFailed      = newError(KindDependency, http.StatusBadGateway, "CHECKOUT_FAILED", "could not open a payment session")
	ErrProviderUnavailable = newError(KindDependency, http.StatusServiceUnavailable, "PROVIDER_UNAVAILABLE", "vendor's payment provider is not available")
	ErrCodeSpaceExhausted  = newError(KindDependency, http.StatusServiceUnavailable, "CODE_GENERATION_FAILED", "could not generate unique credentials")
)

// AsServiceError extracts the ServiceError in err's chain.
func AsServiceError(err error) (*ServiceError, bool) {
	var se *ServiceError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
