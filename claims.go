package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
)

// SessionClaims are the claims we expect in provider-issued access tokens.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID      string `json:"uid,omitempty"`
	UserRole string `json:"role,omitempty"`
}

// UserID returns the user ID, falling back to the subject claim.
func (c *SessionClaims) UserID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// SessionFromToken builds a SessionObject from a raw provider access token.
// Integrators whose identity provider only hands back token strings can use
// this to feed the controller.
func SessionFromToken(token string, signingKey []byte) (*SessionObject, error) {
	claims := &SessionClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected token signing method", errors.CategoryAuth).
				WithMetadata(map[string]any{"alg": t.Method.Alg()})
		}
		return signingKey, nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryAuth, "unable to decode session token")
	}

	if !parsed.Valid {
		return nil, errors.New("session token is not valid", errors.CategoryAuth)
	}

	var audience []string
	for _, aud := range claims.RegisteredClaims.Audience {
		audience = append(audience, aud)
	}

	var issuedAt, expiresAt *time.Time
	if claims.RegisteredClaims.IssuedAt != nil {
		t := claims.RegisteredClaims.IssuedAt.Time
		issuedAt = &t
	}
	if claims.RegisteredClaims.ExpiresAt != nil {
		t := claims.RegisteredClaims.ExpiresAt.Time
		expiresAt = &t
	}

	data := map[string]any{}
	if claims.UserRole != "" {
		data["role"] = claims.UserRole
	}

	return &SessionObject{
		UserID:         claims.UserID(),
		AccessToken:    token,
		Audience:       audience,
		Issuer:         claims.RegisteredClaims.Issuer,
		IssuedAt:       issuedAt,
		ExpirationDate: expiresAt,
		Data:           data,
	}, nil
}
