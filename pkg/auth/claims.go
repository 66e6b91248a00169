package auth

import (
	"github.com/angelmondragon/tastebud-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	Role         enums.MemberRole
	RestaurantID *uuid.UUID
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients. Restaurant
// staff tokens carry the restaurant they operate.
type AccessTokenClaims struct {
	UserID       uuid.UUID        `json:"user_id"`
	Role         enums.MemberRole `json:"role"`
	RestaurantID *uuid.UUID       `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}
