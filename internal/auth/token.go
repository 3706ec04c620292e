package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/tooldesk/tooldesk/internal/shared"
)

// TokenTTL is the fixed validity of an issued credential.
const TokenTTL = time.Hour

// Credential failures reported to callers.
var (
	ErrTokenExpired = shared.Unauthenticated("Token expired.")
	ErrInvalidToken = shared.Unauthenticated("Invalid token.")
)

// Claims is the signed credential payload.
type Claims struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
	TenantID int64  `json:"tenantId"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer credentials.
type TokenIssuer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenIssuer constructs an issuer. secret must not be empty.
func NewTokenIssuer(secret, issuer string) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret required")
	}
	return &TokenIssuer{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// WithClock overrides the issuer's time source.
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

// Issue signs a credential embedding identity, valid for TokenTTL.
func (t *TokenIssuer) Issue(identity Identity) (string, time.Time, error) {
	if !identity.Role.Valid() {
		return "", time.Time{}, errors.New("auth: cannot issue token for unknown role")
	}
	issuedAt := t.now().UTC()
	expiresAt := issuedAt.Add(TokenTTL)
	claims := Claims{
		UserID:   identity.UserID,
		Username: identity.Username,
		Role:     identity.Role,
		TenantID: identity.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify parses token and returns the embedded Identity.
func (t *TokenIssuer) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	}
	if t.issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.issuer))
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrInvalidToken
	}
	if claims.UserID <= 0 || !claims.Role.Valid() {
		return Identity{}, ErrInvalidToken
	}
	return Identity{
		UserID:   claims.UserID,
		Username: claims.Username,
		Role:     claims.Role,
		TenantID: claims.TenantID,
	}, nil
}
