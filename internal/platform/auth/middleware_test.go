package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/osmansahyilmaz/CS308-Term-Project-sub000/internal/platform/httpx"
)

type stubVerifier struct {
	verifyFn func(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

func (s *stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if s.verifyFn == nil {
		return nil, errors.New("unexpected VerifyIDToken call")
	}
	return s.verifyFn(ctx, idToken)
}

func captureIdentity(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			*captured = identity
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestResolveAttachesSessionIdentity(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{})

	var captured *Identity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(SessionKeyHeader, "sess-abc")
	rec := httptest.NewRecorder()
	authn.Resolve(captureIdentity(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if captured == nil {
		t.Fatal("expected identity in context")
	}
	if captured.Authenticated() {
		t.Fatal("session identity must not count as signed in")
	}
	if got := captured.OwnerKey(); got != "session:sess-abc" {
		t.Fatalf("OwnerKey() = %q, want %q", got, "session:sess-abc")
	}
}

func TestResolveVerifiesBearerToken(t *testing.T) {
	verifier := &stubVerifier{
		verifyFn: func(_ context.Context, idToken string) (*firebaseauth.Token, error) {
			if idToken != "token-123" {
				t.Fatalf("idToken = %q, want %q", idToken, "token-123")
			}
			return &firebaseauth.Token{
				UID: "user-1",
				Claims: map[string]interface{}{
					"role":  "Staff",
					"email": "staff@example.com",
				},
			}, nil
		},
	}
	authn := NewAuthenticator(verifier)

	var captured *Identity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	rec := httptest.NewRecorder()
	authn.Resolve(captureIdentity(&captured)).ServeHTTP(rec, req)

	if captured == nil {
		t.Fatal("expected identity in context")
	}
	if captured.UID != "user-1" {
		t.Fatalf("UID = %q, want %q", captured.UID, "user-1")
	}
	if captured.Email != "staff@example.com" {
		t.Fatalf("Email = %q, want %q", captured.Email, "staff@example.com")
	}
	if !captured.HasAnyRole(RoleStaff) {
		t.Fatalf("roles = %v, want staff", captured.Roles)
	}
}

func TestResolveAppliesFallbackRole(t *testing.T) {
	verifier := &stubVerifier{
		verifyFn: func(context.Context, string) (*firebaseauth.Token, error) {
			return &firebaseauth.Token{UID: "user-2", Claims: map[string]interface{}{}}, nil
		},
	}
	authn := NewAuthenticator(verifier)

	var captured *Identity
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-456")
	rec := httptest.NewRecorder()
	authn.Resolve(captureIdentity(&captured)).ServeHTTP(rec, req)

	if captured == nil {
		t.Fatal("expected identity in context")
	}
	if !captured.HasAnyRole(RoleUser) {
		t.Fatalf("roles = %v, want fallback %q", captured.Roles, RoleUser)
	}
}

func TestResolveRejectsInvalidToken(t *testing.T) {
	verifier := &stubVerifier{
		verifyFn: func(context.Context, string) (*firebaseauth.Token, error) {
			return nil, ErrTokenInvalid
		},
	}
	authn := NewAuthenticator(verifier)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer bogus")
	rec := httptest.NewRecorder()
	authn.Resolve(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run for an invalid token")
	})).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	var body httpx.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse error body: %v", err)
	}
	if body.Code != httpx.CodeAuthentication {
		t.Fatalf("error code = %q, want %q", body.Code, httpx.CodeAuthentication)
	}
}

func TestResolvePassesThroughWithoutCredentials(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{})

	called := false
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	authn.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Fatal("expected no identity in context")
		}
	})).ServeHTTP(rec, req)

	if !called {
		t.Fatal("expected next handler to run")
	}
}

func TestRequireEnforcesRoles(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	cases := []struct {
		name       string
		identity   *Identity
		roles      []string
		wantStatus int
	}{
		{
			name:       "no identity",
			roles:      []string{RoleStaff},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "session only",
			identity:   &Identity{SessionKey: "sess-1"},
			roles:      []string{RoleUser},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "missing role",
			identity:   &Identity{UID: "user-1", Roles: []string{RoleUser}},
			roles:      []string{RoleStaff, RoleAdmin},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "matching role",
			identity:   &Identity{UID: "staff-1", Roles: []string{RoleStaff}},
			roles:      []string{RoleStaff, RoleAdmin},
			wantStatus: http.StatusOK,
		},
		{
			name:       "no role constraint",
			identity:   &Identity{UID: "user-1"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), tc.identity))
			}
			rec := httptest.NewRecorder()
			Require(tc.roles...)(okHandler).ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
		})
	}
}

func TestRequireOwnerKeyAcceptsGuestSession(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), &Identity{SessionKey: "sess-9"}))
	rec := httptest.NewRecorder()
	RequireOwnerKey(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	rec = httptest.NewRecorder()
	RequireOwnerKey(okHandler).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}
