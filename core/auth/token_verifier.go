package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles accepted in access tokens.
var Roles = map[string]bool{
	"patient":  true,
	"doctor":   true,
	"hospital": true,
	"staff":    true,
	"auditor":  true,
	"asha":     true,
	"insurer":  true,
	"admin":    true,
}

// Claims are the access token claims. The subject and role form the ledger
// actor "role:sub".
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Actor returns "role:sub".
func (c *Claims) Actor() string {
	return c.Role + ":" + c.Subject
}

// TokenVerifier validates HS256 bearer tokens.
type TokenVerifier struct {
	KeyProvider KeyProvider
	Issuer      string
}

func (v *TokenVerifier) Verify(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if v.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.Issuer))
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		kid, _ := token.Header["kid"].(string)
		return v.KeyProvider.GetKey(kid)
	}, opts...)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token or claims")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	if !Roles[claims.Role] {
		return nil, fmt.Errorf("unknown role %q", claims.Role)
	}
	return claims, nil
}

// IssueToken signs an HS256 access token. Used by arogyactl and tests.
func IssueToken(secret []byte, issuer, subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}
