package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

// Provider is the opaque credential collaborator. The core only ever sees
// the resolved Actor it produces.
type Provider interface {
	Authenticate(ctx context.Context, email, password string) (domain.Actor, error)
}

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies the HS256 bearer tokens that carry the
// actor's role between requests.
type TokenManager struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenManager(secret string, ttl time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), ttl: ttl}
}

func (tm *TokenManager) Issue(actor domain.Actor) (string, error) {
	now := time.Now()
	claims := Claims{
		Email: actor.Email,
		Role:  string(actor.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(tm.secret)
}

func (tm *TokenManager) Parse(tokenString string) (domain.Actor, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return domain.Actor{}, fmt.Errorf("%w: %v", domain.ErrUnauthenticated, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	role := domain.Role(claims.Role)
	if !role.Valid() {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return domain.Actor{ID: claims.Subject, Email: claims.Email, Role: role}, nil
}

type staticUser struct {
	id           string
	passwordHash []byte
	role         domain.Role
}

// StaticProvider resolves credentials from an env-seeded user list. It keeps
// credential storage out of the core while still exercising the full
// login-to-role path in demo deployments.
type StaticProvider struct {
	users map[string]staticUser
}

// NewStaticProvider parses "email:password:role" entries separated by
// commas. Passwords are hashed at load time.
func NewStaticProvider(spec string) (*StaticProvider, error) {
	users := make(map[string]staticUser)
	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("malformed user entry %q, want email:password:role", entry)
		}
		role := domain.Role(parts[2])
		if !role.Valid() {
			return nil, fmt.Errorf("unknown role %q for user %s", parts[2], parts[0])
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(parts[1]), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", parts[0], err)
		}
		users[parts[0]] = staticUser{
			id:           uuid.NewString(),
			passwordHash: hash,
			role:         role,
		}
	}
	return &StaticProvider{users: users}, nil
}

func (p *StaticProvider) Authenticate(ctx context.Context, email, password string) (domain.Actor, error) {
	user, ok := p.users[email]
	if !ok {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	if err := bcrypt.CompareHashAndPassword(user.passwordHash, []byte(password)); err != nil {
		return domain.Actor{}, domain.ErrUnauthenticated
	}
	return domain.Actor{ID: user.id, Email: email, Role: user.role}, nil
}
