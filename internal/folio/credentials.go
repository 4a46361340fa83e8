package folio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long an issued token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// PasswordHasher turns passwords into salted irreversible hashes and checks them.
type PasswordHasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, hash string) bool
}

// BcryptHasher implements PasswordHasher with bcrypt.
// Every Hash call draws a fresh salt, so equal passwords hash differently.
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher with the given cost; 0 selects bcrypt.DefaultCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", newError(ErrBadRequest, "Password must be at most 72 bytes")
		}
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}

// RevocationList remembers tokens that were logged out before their expiry.
type RevocationList interface {
	// Revoke marks tokenID as revoked until the given time.
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

type nopRevocationList struct{}

func (nopRevocationList) Revoke(context.Context, string, time.Time) error { return nil }
func (nopRevocationList) IsRevoked(context.Context, string) (bool, error) { return false, nil }

// Claims is the decoded payload of a valid token.
type Claims struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email"`
	TokenID   string    `json:"jti"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
}

type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer issues and validates HS256 bearer tokens signed with a server secret.
type TokenIssuer struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationList
	clock   Clock
	idgen   IDGenerator
}

// NewTokenIssuer creates a TokenIssuer. A zero ttl selects DefaultTokenTTL;
// a nil revocation list means tokens can only expire.
func NewTokenIssuer(secret []byte, ttl time.Duration, revoked RevocationList, clock Clock, idgen IDGenerator) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("token secret must not be empty")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if revoked == nil {
		revoked = nopRevocationList{}
	}
	return &TokenIssuer{
		secret:  secret,
		ttl:     ttl,
		revoked: revoked,
		clock:   clock,
		idgen:   idgen,
	}, nil
}

// Issue returns a signed token for the subject, expiring ttl from now.
func (t *TokenIssuer) Issue(subjectID, email string) (string, error) {
	now := t.clock.Now()
	claims := tokenClaims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subjectID,
			ID:        t.idgen.New(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}

// Authenticate verifies signature, algorithm, expiry and revocation, and returns the claims.
// Every token problem yields the same ErrInvalidToken.
func (t *TokenIssuer) Authenticate(ctx context.Context, token string) (*Claims, error) {
	var claims tokenClaims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(*jwt.Token) (any, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.clock.Now),
	)
	if err != nil || claims.Subject == "" {
		return nil, newError(ErrInvalidToken, "Invalid token.")
	}

	if claims.ID != "" {
		revoked, err := t.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("checking token revocation: %w", err)
		}
		if revoked {
			return nil, newError(ErrInvalidToken, "Invalid token.")
		}
	}

	out := &Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		TokenID: claims.ID,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	out.ExpiresAt = claims.ExpiresAt.Time
	return out, nil
}

// Revoke invalidates an authenticated token for the rest of its lifetime.
func (t *TokenIssuer) Revoke(ctx context.Context, claims *Claims) error {
	if claims.TokenID == "" {
		return nil
	}
	if err := t.revoked.Revoke(ctx, claims.TokenID, claims.ExpiresAt); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}
