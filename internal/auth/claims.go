package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims are the only supported JWT claims shape for the operator API.
// Callers never receive tokens; only helpline operators do.
type Claims struct {
	jwt.RegisteredClaims

	OperatorID string    `json:"operator_id"`
	Role       string    `json:"role"`
	TokenType  TokenType `json:"token_type"`
}
