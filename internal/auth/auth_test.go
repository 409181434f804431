package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rl1809/stock-ledger/internal/core/domain"
)

func TestTokenManager_IssueParseRoundTrip(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)
	actor := domain.Actor{ID: "actor-1", Email: "admin@example.com", Role: domain.RoleAdmin}

	token, err := tm.Issue(actor)
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	got, err := tm.Parse(token)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if got != actor {
		t.Errorf("expected %+v, got %+v", actor, got)
	}
}

func TestTokenManager_RejectsGarbage(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	_, err := tm.Parse("not.a.token")
	if !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got: %v", err)
	}
}

func TestTokenManager_RejectsWrongSecret(t *testing.T) {
	issuer := NewTokenManager("secret-a", time.Hour)
	verifier := NewTokenManager("secret-b", time.Hour)

	token, err := issuer.Issue(domain.Actor{ID: "x", Email: "x@example.com", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := verifier.Parse(token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got: %v", err)
	}
}

func TestTokenManager_RejectsExpired(t *testing.T) {
	tm := NewTokenManager("test-secret", -time.Minute)

	token, err := tm.Issue(domain.Actor{ID: "x", Email: "x@example.com", Role: domain.RoleStaff})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := tm.Parse(token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for expired token, got: %v", err)
	}
}

func TestTokenManager_RejectsUnknownRole(t *testing.T) {
	tm := NewTokenManager("test-secret", time.Hour)

	token, err := tm.Issue(domain.Actor{ID: "x", Email: "x@example.com", Role: domain.Role("superuser")})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if _, err := tm.Parse(token); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated for unknown role, got: %v", err)
	}
}

func TestStaticProvider_Authenticate(t *testing.T) {
	p, err := NewStaticProvider("admin@example.com:admin:admin, staff@example.com:staff:staff")
	if err != nil {
		t.Fatalf("NewStaticProvider failed: %v", err)
	}

	ctx := context.Background()

	actor, err := p.Authenticate(ctx, "admin@example.com", "admin")
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}
	if actor.Role != domain.RoleAdmin || actor.Email != "admin@example.com" {
		t.Errorf("unexpected actor: %+v", actor)
	}
	if actor.ID == "" {
		t.Error("expected actor to carry an id")
	}

	if _, err := p.Authenticate(ctx, "admin@example.com", "wrong"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for wrong password, got: %v", err)
	}
	if _, err := p.Authenticate(ctx, "nobody@example.com", "admin"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated for unknown user, got: %v", err)
	}
}

func TestStaticProvider_MalformedSpec(t *testing.T) {
	if _, err := NewStaticProvider("admin@example.com:admin"); err == nil {
		t.Error("expected error for entry missing role")
	}
	if _, err := NewStaticProvider("admin@example.com:admin:owner"); err == nil {
		t.Error("expected error for unknown role")
	}
}

func TestStaticProvider_EmptySpec(t *testing.T) {
	p, err := NewStaticProvider("")
	if err != nil {
		t.Fatalf("NewStaticProvider failed: %v", err)
	}
	if _, err := p.Authenticate(context.Background(), "anyone@example.com", "x"); !errors.Is(err, domain.ErrUnauthenticated) {
		t.Errorf("expected ErrUnauthenticated, got: %v", err)
	}
}
