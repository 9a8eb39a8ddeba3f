package identity

import (
	"context"
	"testing"

	"github.com/alexdean/worst-idea/internal/model"
)

func newTestProvider() *Provider {
	return NewProvider("test-secret", "test-operator-key")
}

func TestSignInAnonymously(t *testing.T) {
	p := newTestProvider()

	resp, err := p.SignInAnonymously(context.Background())
	if err != nil {
		t.Fatalf("SignInAnonymously failed: %v", err)
	}
	if resp.PrincipalID == "" {
		t.Error("Expected a principal id")
	}
	if resp.Token == "" {
		t.Error("Expected a token")
	}

	principal, err := p.Verify(resp.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if principal.ID != resp.PrincipalID {
		t.Errorf("Expected principal %q, got %q", resp.PrincipalID, principal.ID)
	}
	if principal.Operator {
		t.Error("Anonymous principal must not be an operator")
	}
}

func TestSignInAnonymously_FreshPrincipalEachTime(t *testing.T) {
	p := newTestProvider()

	a, _ := p.SignInAnonymously(context.Background())
	b, _ := p.SignInAnonymously(context.Background())
	if a.PrincipalID == b.PrincipalID {
		t.Errorf("Expected distinct principals, got %q twice", a.PrincipalID)
	}
}

func TestOperatorLogin(t *testing.T) {
	p := newTestProvider()

	resp, err := p.OperatorLogin("test-operator-key")
	if err != nil {
		t.Fatalf("OperatorLogin failed: %v", err)
	}

	principal, err := p.Verify(resp.Token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !principal.Operator {
		t.Error("Expected operator claim")
	}
}

func TestOperatorLogin_WrongKey(t *testing.T) {
	p := newTestProvider()

	if _, err := p.OperatorLogin("wrong"); err != ErrInvalidKey {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
}

func TestVerify_BadToken(t *testing.T) {
	p := newTestProvider()

	if _, err := p.Verify("not-a-token"); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}

	// Token signed with a different secret.
	other := NewProvider("other-secret", "k")
	resp, _ := other.SignInAnonymously(context.Background())
	if _, err := p.Verify(resp.Token); err != ErrInvalidToken {
		t.Errorf("Expected ErrInvalidToken for foreign token, got %v", err)
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	if got := FromContext(ctx); got.Authenticated() {
		t.Errorf("Expected unauthenticated principal from bare context, got %+v", got)
	}

	p := model.Principal{ID: "alice"}
	got := FromContext(WithPrincipal(ctx, p))
	if got != p {
		t.Errorf("Expected %+v, got %+v", p, got)
	}
}
