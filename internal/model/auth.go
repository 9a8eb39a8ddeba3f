package model

import "github.com/golang-jwt/jwt/v5"

// Principal is the identity attached to a write. A zero Principal is an
// unauthenticated caller. Operator marks the trusted writer that maintains
// game documents.
type Principal struct {
	ID       string
	Operator bool
}

// Authenticated reports whether the principal carries an identity at all.
func (p Principal) Authenticated() bool {
	return p.ID != ""
}

// PrincipalClaims are JWT claims for anonymous player identities
type PrincipalClaims struct {
	PrincipalID string `json:"principalId"`
	Operator    bool   `json:"operator,omitempty"`
	jwt.RegisteredClaims
}

// LoginResponse is returned after a successful sign-in
type LoginResponse struct {
	PrincipalID string `json:"principalId"`
	Token       string `json:"token"`
}
