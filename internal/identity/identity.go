package identity

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/alexdean/worst-idea/internal/model"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrInvalidKey   = errors.New("invalid operator key")
)

type contextKey string

const principalKey contextKey = "principal"

// WithPrincipal attaches the caller's identity to the context. Writes issued
// with this context are evaluated against that identity.
func WithPrincipal(ctx context.Context, p model.Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// FromContext extracts the caller's identity. The zero Principal means
// unauthenticated.
func FromContext(ctx context.Context) model.Principal {
	if v := ctx.Value(principalKey); v != nil {
		return v.(model.Principal)
	}
	return model.Principal{}
}

// Provider issues and verifies opaque principal identities. Anonymous sign-in
// yields a fresh principal id every time; the same browser only keeps its
// identity across reloads if it holds on to the token.
type Provider struct {
	jwtSecret   []byte
	operatorKey string
}

func NewProvider(jwtSecret, operatorKey string) *Provider {
	return &Provider{
		jwtSecret:   []byte(jwtSecret),
		operatorKey: operatorKey,
	}
}

// SignInAnonymously issues a new anonymous principal and a token proving it.
func (p *Provider) SignInAnonymously(ctx context.Context) (*model.LoginResponse, error) {
	principalID := "p_" + uuid.New().String()[:8]
	token, err := p.sign(principalID, false)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{
		PrincipalID: principalID,
		Token:       token,
	}, nil
}

// OperatorLogin validates the shared operator key and returns an
// operator-scoped identity.
func (p *Provider) OperatorLogin(key string) (*model.LoginResponse, error) {
	if key != p.operatorKey {
		return nil, ErrInvalidKey
	}
	operatorID := "op_" + uuid.New().String()[:8]
	token, err := p.sign(operatorID, true)
	if err != nil {
		return nil, err
	}
	return &model.LoginResponse{
		PrincipalID: operatorID,
		Token:       token,
	}, nil
}

// Verify validates a token and returns the principal it proves.
func (p *Provider) Verify(tokenString string) (model.Principal, error) {
	token, err := jwt.ParseWithClaims(tokenString, &model.PrincipalClaims{}, func(token *jwt.Token) (interface{}, error) {
		return p.jwtSecret, nil
	})
	if err != nil {
		return model.Principal{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(*model.PrincipalClaims)
	if !ok || !token.Valid {
		return model.Principal{}, ErrInvalidToken
	}

	return model.Principal{ID: claims.PrincipalID, Operator: claims.Operator}, nil
}

func (p *Provider) sign(principalID string, operator bool) (string, error) {
	claims := &model.PrincipalClaims{
		PrincipalID: principalID,
		Operator:    operator,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(p.jwtSecret)
}
