// Package auth handles bearer credential verification. Two credential kinds
// are accepted: HS256 session JWTs minted by the web frontend, and opaque
// account/organization tokens (acc_/org_ prefixes) stored hashed in the
// database.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/docrouter-ai/docrouter-api/internal/models"
	"github.com/docrouter-ai/docrouter-api/internal/repository"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// Token prefixes for opaque bearer tokens.
const (
	AccountTokenPrefix = "acc_"
	OrgTokenPrefix     = "org_"
)

// Claims are the claims of a session JWT.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

// Identity is the resolved caller of a request.
type Identity struct {
	UserID   string
	Email    string
	Name     string
	IsAdmin  bool
	// TokenOrgID is set when the credential was an org-scoped opaque token.
	// Such credentials cannot act outside their organization.
	TokenOrgID string
	// AccountToken is set when the credential was an account-level opaque
	// token. Such credentials cannot act on org-scoped endpoints at all.
	AccountToken bool
}

// Verifier resolves bearer credentials to identities.
type Verifier struct {
	secret []byte
	repos  *repository.Repositories
}

// NewVerifier creates a credential verifier.
func NewVerifier(secret string, repos *repository.Repositories) *Verifier {
	return &Verifier{secret: []byte(secret), repos: repos}
}

// Verify resolves a bearer credential. Opaque tokens are recognized by
// prefix; everything else is treated as a JWT.
func (v *Verifier) Verify(ctx context.Context, credential string) (*Identity, error) {
	if strings.HasPrefix(credential, AccountTokenPrefix) || strings.HasPrefix(credential, OrgTokenPrefix) {
		return v.verifyOpaque(ctx, credential)
	}
	return v.verifyJWT(ctx, credential)
}

func (v *Verifier) verifyJWT(ctx context.Context, tokenString string) (*Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	if userID == "" {
		return nil, ErrInvalidToken
	}

	user, err := v.repos.User.GetByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	return &Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: user.Role == models.RoleAdmin,
	}, nil
}

func (v *Verifier) verifyOpaque(ctx context.Context, credential string) (*Identity, error) {
	record, err := v.repos.AccessToken.GetByHash(ctx, HashToken(credential))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve token: %w", err)
	}

	if exp := record.ExpiresAt(); !exp.IsZero() && time.Now().After(exp) {
		return nil, ErrTokenExpired
	}

	user, err := v.repos.User.GetByID(ctx, record.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}

	identity := &Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Name:    user.Name,
		IsAdmin: user.Role == models.RoleAdmin,
	}
	if record.OrganizationID != nil {
		identity.TokenOrgID = *record.OrganizationID
	} else {
		identity.AccountToken = true
	}
	return identity, nil
}

// MintSessionToken issues a session JWT for a user. Used by login and the
// test harness.
func (v *Verifier) MintSessionToken(user *models.User, lifetime time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(lifetime)),
		},
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// GenerateToken creates a new opaque token with the given prefix. Returns
// the raw token; callers store only the hash and encrypted form.
func GenerateToken(prefix string) (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	return prefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashToken returns the SHA-256 hex digest used as the lookup key.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// DisplayPrefix returns the shortened token form shown in listings.
func DisplayPrefix(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}
