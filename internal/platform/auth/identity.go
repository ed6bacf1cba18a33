package auth

import (
	"context"
	"strings"

	firebaseauth "firebase.google.com/go/v4/auth"
)

// Role constants used throughout the API when checking authorisation boundaries.
const (
	RoleUser  = "user"
	RoleStaff = "staff"
	RoleAdmin = "admin"
)

// Identity captures the principal behind a request. Authenticated callers
// carry a Firebase UID; anonymous shoppers carry only a session key.
type Identity struct {
	UID        string
	Email      string
	Roles      []string
	SessionKey string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token associated with this identity.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

// Authenticated reports whether the identity belongs to a signed-in user.
func (i *Identity) Authenticated() bool {
	return i != nil && i.UID != ""
}

// OwnerKey returns the cart owner key for this identity: the UID for
// signed-in users, or a session-prefixed key for anonymous shoppers.
func (i *Identity) OwnerKey() string {
	if i == nil {
		return ""
	}
	if i.UID != "" {
		return i.UID
	}
	if i.SessionKey != "" {
		return "session:" + i.SessionKey
	}
	return ""
}

// HasRole reports whether the identity includes the requested role (case-insensitive).
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return false
	}
	role = normaliseRole(role)
	if role == "" {
		return false
	}
	for _, r := range i.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// HasAnyRole reports whether the identity includes any of the provided roles.
func (i *Identity) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if i.HasRole(role) {
			return true
		}
	}
	return false
}

type contextKey string

const identityContextKey contextKey = "github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/auth/identity"

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}
