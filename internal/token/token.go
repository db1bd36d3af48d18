package token

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kursadbilgin/cadence-dispatch/internal/domain"
)

const (
	DefaultTTL = 7 * 24 * time.Hour

	issuer          = "cadence-dispatch"
	audience        = "unsubscribe"
	unsubscribePath = "/v1/recipients/unsubscribe"
)

// Issuer signs and verifies unsubscribe tokens. Tokens carry only the
// recipient id in the subject claim.
type Issuer struct {
	secret  []byte
	ttl     time.Duration
	baseURL string
	now     func() time.Time
}

func NewIssuer(secret string, ttl time.Duration, baseURL string) (*Issuer, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("unsubscribe secret must be at least 16 bytes")
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if _, err := url.ParseRequestURI(base); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Issuer{
		secret:  []byte(secret),
		ttl:     ttl,
		baseURL: base,
		now:     time.Now,
	}, nil
}

func (i *Issuer) Sign(recipientID string) (string, error) {
	if strings.TrimSpace(recipientID) == "" {
		return "", fmt.Errorf("%w: recipient id is required", domain.ErrValidation)
	}

	now := i.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   recipientID,
		Audience:  jwt.ClaimStrings{audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify returns the recipient id carried by a valid token.
func (i *Issuer) Verify(tokenString string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("%w: expired", domain.ErrInvalidToken)
		}
		return "", fmt.Errorf("%w: %w", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}
	return claims.Subject, nil
}

// UnsubscribeURL builds the one-click opt-out link for recipientID.
func (i *Issuer) UnsubscribeURL(recipientID string) (string, error) {
	signed, err := i.Sign(recipientID)
	if err != nil {
		return "", err
	}
	return i.baseURL + unsubscribePath + "?token=" + url.QueryEscape(signed), nil
}
