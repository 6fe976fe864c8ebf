package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// HTTPProvider talks to the identity provider's admin REST API using a
// service-role key, and validates provider-issued access tokens locally with
// the provider's shared JWT secret.
type HTTPProvider struct {
	baseURL    string
	serviceKey string
	jwtSecret  []byte
	httpClient *http.Client
}

// NewHTTPProvider creates a provider client. baseURL is the provider's API
// root, serviceKey authorizes admin endpoints, jwtSecret verifies access
// tokens.
func NewHTTPProvider(baseURL, serviceKey, jwtSecret string) (*HTTPProvider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("identity: base URL is required")
	}
	if serviceKey == "" {
		return nil, fmt.Errorf("identity: service key is required")
	}
	if jwtSecret == "" {
		return nil, fmt.Errorf("identity: jwt secret is required")
	}

	return &HTTPProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		jwtSecret:  []byte(jwtSecret),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// accessClaims is the subset of the provider's access token we care about.
type accessClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// InviteByEmail asks the provider to send an invitation email. The provider
// answers 422 when the email already has an account.
func (p *HTTPProvider) InviteByEmail(ctx context.Context, email, redirectURL string, metadata map[string]string) error {
	payload := map[string]interface{}{
		"email":        email,
		"redirect_url": redirectURL,
	}
	if len(metadata) > 0 {
		payload["data"] = metadata
	}

	resp, err := p.doAdmin(ctx, "POST", "/admin/invite", payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		return nil
	case resp.StatusCode == http.StatusUnprocessableEntity || resp.StatusCode == http.StatusConflict:
		return ErrEmailConflict
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity: invite failed with status %d: %s", resp.StatusCode, body)
	}
}

// GenerateInviteLink resolves the provider account behind an email without
// sending mail. Returns nil when no account exists.
func (p *HTTPProvider) GenerateInviteLink(ctx context.Context, email string) (*Account, error) {
	payload := map[string]interface{}{
		"type":  "invite",
		"email": email,
	}

	resp, err := p.doAdmin(ctx, "POST", "/admin/generate_link", payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("identity: generate link failed with status %d: %s", resp.StatusCode, body)
	}

	var result struct {
		User struct {
			ID               string `json:"id"`
			Email            string `json:"email"`
			EmailConfirmedAt string `json:"email_confirmed_at"`
		} `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("identity: decode generate link response: %w", err)
	}
	if result.User.ID == "" {
		return nil, nil
	}

	return &Account{
		ID:             result.User.ID,
		Email:          result.User.Email,
		EmailConfirmed: result.User.EmailConfirmedAt != "",
	}, nil
}

// DeleteAccount removes a provider account by id.
func (p *HTTPProvider) DeleteAccount(ctx context.Context, accountID string) error {
	resp, err := p.doAdmin(ctx, "DELETE", "/admin/users/"+url.PathEscape(accountID), nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("identity: delete account failed with status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// ResolveCurrentIdentity validates a provider-issued access token and returns
// the account from its subject and email claims. Validation is local; the
// provider is not called.
func (p *HTTPProvider) ResolveCurrentIdentity(_ context.Context, credentials string) (*Account, error) {
	if credentials == "" {
		return nil, ErrNoIdentity
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(credentials, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return p.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrNoIdentity
	}
	if claims.Subject == "" {
		return nil, ErrNoIdentity
	}

	return &Account{ID: claims.Subject, Email: claims.Email, EmailConfirmed: true}, nil
}

func (p *HTTPProvider) doAdmin(ctx context.Context, method, path string, payload interface{}) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("identity: marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("identity: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.serviceKey)
	req.Header.Set("apikey", p.serviceKey)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity: request failed: %w", err)
	}
	return resp, nil
}
