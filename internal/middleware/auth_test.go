package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"github.com/commshub/commshub/internal/auth"
	"github.com/commshub/commshub/internal/db/repositories"
	"github.com/commshub/commshub/internal/identity"
	"github.com/commshub/commshub/internal/services"
)

// stubProvider resolves one fixed token to one fixed account.
type stubProvider struct {
	token   string
	account *identity.Account
}

func (p *stubProvider) InviteByEmail(context.Context, string, string, map[string]string) error {
	return nil
}

func (p *stubProvider) GenerateInviteLink(context.Context, string) (*identity.Account, error) {
	return nil, nil
}

func (p *stubProvider) DeleteAccount(context.Context, string) error { return nil }

func (p *stubProvider) ResolveCurrentIdentity(_ context.Context, credentials string) (*identity.Account, error) {
	if p.account != nil && credentials == p.token {
		return p.account, nil
	}
	return nil, identity.ErrNoIdentity
}

type authFixture struct {
	mock     sqlmock.Sqlmock
	provider *stubProvider
	router   *gin.Engine
	captured *gin.Context
}

func newAuthFixture(t *testing.T, provider *stubProvider) *authFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	profiles := repositories.NewProfileRepository(db)
	apiKeys := services.NewAPIKeyService(repositories.NewAPIKeyRepository(db), repositories.NewMembershipRepository(db), "chk")

	f := &authFixture{mock: mock, provider: provider}
	f.router = gin.New()
	f.router.Use(AuthMiddleware(provider, profiles, apiKeys))
	f.router.GET("/whoami", func(c *gin.Context) {
		f.captured = c.Copy()
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return f
}

func (f *authFixture) get(authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	f.router.ServeHTTP(w, req)
	return w
}

var profileCols = []string{"id", "identity_id", "email", "display_name", "created_at", "updated_at"}

func TestAuthMiddleware_MissingOrMalformedHeader(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{})

	for _, header := range []string{"", "Basic abc", "Bearer ", "token-without-scheme"} {
		if w := f.get(header); w.Code != http.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, w.Code)
		}
	}
}

func TestAuthMiddleware_IdentityTokenWithProfile(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{
		token:   "valid-token",
		account: &identity.Account{ID: "acct-1", Email: "alice@example.com"},
	})

	f.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE identity_id").
		WithArgs("acct-1").
		WillReturnRows(sqlmock.NewRows(profileCols).
			AddRow("profile-1", "acct-1", "alice@example.com", "Alice", time.Now(), time.Now()))

	w := f.get("Bearer valid-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := f.captured.GetString(ProfileIDKey); got != "profile-1" {
		t.Errorf("profile_id = %q, want profile-1", got)
	}
	if got := f.captured.GetString(AuthMethodKey); got != AuthMethodIdentity {
		t.Errorf("auth_method = %q, want identity", got)
	}
}

func TestAuthMiddleware_IdentityTokenBootstrapsProfile(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{
		token:   "valid-token",
		account: &identity.Account{ID: "acct-new", Email: "new@example.com"},
	})

	f.mock.ExpectQuery("SELECT.*FROM member_profiles.*WHERE identity_id").
		WillReturnRows(sqlmock.NewRows(profileCols))
	f.mock.ExpectQuery("INSERT INTO member_profiles").
		WithArgs("acct-new", "new@example.com", "").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow("profile-new", time.Now(), time.Now()))

	w := f.get("Bearer valid-token")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := f.captured.GetString(ProfileIDKey); got != "profile-new" {
		t.Errorf("profile_id = %q, want profile-new", got)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("profile bootstrap not persisted: %v", err)
	}
}

func TestAuthMiddleware_APIKey(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{})

	rawKey, hash, displayPrefix, err := auth.GenerateAPIKey("chk")
	if err != nil {
		t.Fatalf("GenerateAPIKey: %v", err)
	}

	f.mock.ExpectQuery("SELECT.*FROM api_keys.*WHERE key_prefix").
		WithArgs(displayPrefix).
		WillReturnRows(sqlmock.NewRows([]string{"id", "tenant_id", "profile_id", "name", "key_hash", "key_prefix", "scopes", "expires_at", "last_used_at", "created_at"}).
			AddRow("key-1", "tenant-1", "profile-1", "CI", hash, displayPrefix,
				[]byte(`["control:members:read"]`), nil, nil, time.Now()))
	f.mock.ExpectExec("UPDATE api_keys").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := f.get("Bearer " + rawKey)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if got := f.captured.GetString(AuthMethodKey); got != AuthMethodAPIKey {
		t.Errorf("auth_method = %q, want api_key", got)
	}
	if got := f.captured.GetString(KeyTenantIDKey); got != "tenant-1" {
		t.Errorf("key_tenant_id = %q, want tenant-1", got)
	}
	scopes, _ := f.captured.Get(ScopesKey)
	if got, ok := scopes.([]string); !ok || len(got) != 1 || got[0] != "control:members:read" {
		t.Errorf("scopes = %v", scopes)
	}
}

func TestAuthMiddleware_InvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, &stubProvider{})

	// Not an identity token and not even API-key-shaped: rejected without a
	// single query.
	if w := f.get("Bearer not-a-real-credential"); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unexpected database access: %v", err)
	}
}
