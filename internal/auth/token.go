package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/apperr"
	"github.com/ovaphlow/pitchfork/service-ids-console/pkg/utilities"
)

// Claims is the claim set carried by a session token.
type Claims struct {
	AccountID int64  `json:"id"`
	Role      string `json:"role"`
	Username  string `json:"username"`
	FullName  string `json:"fullname"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

var (
	ErrNoToken      = apperr.Unauthenticated("Access denied. No token provided.")
	ErrInvalidToken = apperr.Unauthenticated("Invalid or expired token.")
)

// Issuer mints and verifies HS256 session tokens. It holds no mutable state
// besides the deny-list it consults.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	deny   DenyList
	now    func() time.Time
}

// NewIssuer expects a validated Config. A nil deny-list disables revocation.
func NewIssuer(cfg Config, deny DenyList) *Issuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{secret: []byte(cfg.Secret), ttl: ttl, deny: deny, now: time.Now}
}

func (i *Issuer) TTL() time.Duration { return i.ttl }

// Issue signs the account fields of c with a fresh token id, issued-at and
// expiry. The registered claims of c are ignored.
func (i *Issuer) Issue(c Claims) (string, time.Time, error) {
	now := i.now()
	exp := now.Add(i.ttl)
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        utilities.NewKSUID(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature, algorithm, expiry and revocation. Every token
// problem is reported as ErrInvalidToken.
func (i *Issuer) Verify(ctx context.Context, token string) (*Claims, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if i.deny != nil && claims.ID != "" {
		revoked, err := i.deny.Contains(ctx, claims.ID)
		if err != nil {
			return nil, apperr.Store("Internal server error", err)
		}
		if revoked {
			return nil, ErrInvalidToken
		}
	}
	return claims, nil
}

var errNotRevocable = errors.New("token has no id or expiry")

// Revoke deny-lists the token id until the token would have expired anyway.
func (i *Issuer) Revoke(ctx context.Context, c *Claims) error {
	if i.deny == nil {
		return nil
	}
	if c == nil || c.ID == "" || c.ExpiresAt == nil {
		return errNotRevocable
	}
	return i.deny.Add(ctx, c.ID, c.ExpiresAt.Time)
}
