package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errTokenInvalid = errors.New("token is not valid")

// JWTClaims is the identity carried by bearer tokens. Tokens are issued by the
// account service; this module only verifies them.
type JWTClaims struct {
	UserID   primitive.ObjectID `json:"user_id"`
	UserType string             `json:"user_type"`
	VendorID string             `json:"vendor_id,omitempty"`
	jwt.RegisteredClaims
}

// VendorObjectID parses the vendor_id claim. ok is false when the token
// carries no vendor.
func (c *JWTClaims) VendorObjectID() (primitive.ObjectID, bool) {
	if c.VendorID == "" {
		return primitive.NilObjectID, false
	}
	id, err := primitive.ObjectIDFromHex(c.VendorID)
	if err != nil {
		return primitive.NilObjectID, false
	}
	return id, true
}

// Identity is who a token speaks for. VendorID is nil for customers and
// admins.
type Identity struct {
	UserID   primitive.ObjectID
	UserType string
	VendorID *primitive.ObjectID
}

// TokenVerifier accepts HS256 tokens signed with secret that carry an expiry
// and, when issuer is set, that issuer.
type TokenVerifier struct {
	secret []byte
	parser *jwt.Parser
}

func NewTokenVerifier(secret, issuer string) *TokenVerifier {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(JWTClockSkew),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &TokenVerifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

func (v *TokenVerifier) Verify(tokenString string) (*JWTClaims, error) {
	claims := &JWTClaims{}
	token, err := v.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("verify token: %w", err)
	}
	if !token.Valid || claims.UserID.IsZero() {
		return nil, errTokenInvalid
	}
	return claims, nil
}

// SignAccessToken mints a token the way the account service does. The engine
// uses it for service-to-service calls and tests.
func SignAccessToken(id Identity, secret, issuer string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &JWTClaims{
		UserID:   id.UserID,
		UserType: id.UserType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
			Subject:   id.UserID.Hex(),
		},
	}
	if id.VendorID != nil {
		claims.VendorID = id.VendorID.Hex()
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
