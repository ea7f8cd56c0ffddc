package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/secret"
)

// googleStub serves the token endpoint and a minimal Sheets v4 API.
type googleStub struct {
	refreshes atomic.Int32
	tokenCode int
}

func (g *googleStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/token":
		if g.tokenCode != 0 {
			w.WriteHeader(g.tokenCode)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		n := g.refreshes.Add(1)
		_, _ = fmt.Fprintf(w, `{"access_token":"fresh-%d","token_type":"Bearer","expires_in":3600}`, n)
	case r.URL.Path == "/v4/spreadsheets/missing":
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Requested entity was not found.","status":"NOT_FOUND"}}`))
	case r.URL.Path == "/v4/spreadsheets/doc":
		if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer fresh-") {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"bad token"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"sheets":[{"properties":{"title":"Sheet1"}}]}`))
	case strings.HasPrefix(r.URL.Path, "/v4/spreadsheets/doc/values/"):
		_, _ = w.Write([]byte(`{"range":"Sheet1!A1:B2","values":[["h1","h2"],["v1","v2"]]}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func clientSecretJSON(tokenURL string) string {
	return fmt.Sprintf(`{"installed":{"client_id":"cid","client_secret":"csecret","auth_uri":"https://accounts.example/auth","token_uri":%q,"redirect_uris":["http://localhost"]}}`, tokenURL)
}

func expiredToken() string {
	return `{"token":"old","refresh_token":"r-1","token_uri":"ignored","expiry":"2020-01-01T00:00:00.000000Z"}`
}

func TestNew_OAuthRefreshAndSave(t *testing.T) {
	stub := &googleStub{}
	srv := httptest.NewServer(stub)
	t.Cleanup(srv.Close)

	b := secret.NewMemory(map[string]string{
		ClientSecretKey: clientSecretJSON(srv.URL + "/token"),
		RefreshTokenKey: expiredToken(),
	})
	m, _ := secret.NewManager(b, secret.WithAllowOverwrite(RefreshTokenKey))
	logger, logs := logging.NewObserved(logging.LevelDebug)

	c, err := New(context.Background(), m, WithLogger(logger), WithEndpoint(srv.URL+"/"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if stub.refreshes.Load() != 1 {
		t.Fatalf("refreshes = %d, want 1", stub.refreshes.Load())
	}
	if logs.FilterMessage("Refresh token saved to storage").Len() != 1 {
		t.Fatal("refreshed token should be saved")
	}

	raw, _ := b.Get(context.Background(), RefreshTokenKey)
	var saved map[string]any
	if err := json.Unmarshal([]byte(raw), &saved); err != nil {
		t.Fatalf("saved token is not JSON: %v", err)
	}
	if saved["access_token"] != "fresh-1" || saved["refresh_token"] != "r-1" {
		t.Fatalf("saved token = %v", saved)
	}

	rows, err := c.Values(context.Background(), "doc", "")
	if err != nil {
		t.Fatalf("Values() error = %v", err)
	}
	if len(rows) != 2 || rows[1][1] != "v2" {
		t.Fatalf("Values() = %v", rows)
	}
	if _, err := c.Values(context.Background(), "missing", ""); !errors.Is(err, ErrSpreadsheetNotFound) {
		t.Fatalf("Values(missing) error = %v, want ErrSpreadsheetNotFound", err)
	}
}

func TestNew_OAuthSaveDeniedIsWarning(t *testing.T) {
	srv := httptest.NewServer(&googleStub{})
	t.Cleanup(srv.Close)

	m, _ := secret.NewManager(secret.NewMemory(map[string]string{
		ClientSecretKey: clientSecretJSON(srv.URL + "/token"),
		RefreshTokenKey: expiredToken(),
	}))
	logger, logs := logging.NewObserved(logging.LevelDebug)
	if _, err := New(context.Background(), m, WithLogger(logger), WithEndpoint(srv.URL+"/")); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if logs.FilterMessage("Cannot persist refresh token").Len() != 1 {
		t.Fatal("overwrite denial should log a warning")
	}
}

func TestNew_OAuthNoAutoSave(t *testing.T) {
	srv := httptest.NewServer(&googleStub{})
	t.Cleanup(srv.Close)

	b := secret.NewMemory(map[string]string{
		ClientSecretKey: clientSecretJSON(srv.URL + "/token"),
		RefreshTokenKey: expiredToken(),
	})
	m, _ := secret.NewManager(b, secret.WithAllowOverwrite(RefreshTokenKey))
	if _, err := New(context.Background(), m, WithLogger(logging.NewNop()), WithAutoSaveToken(false)); err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if raw, _ := b.Get(context.Background(), RefreshTokenKey); raw != expiredToken() {
		t.Fatalf("token was rewritten: %s", raw)
	}
}

func TestNew_OAuthErrors(t *testing.T) {
	srv := httptest.NewServer(&googleStub{tokenCode: http.StatusBadRequest})
	t.Cleanup(srv.Close)
	ctx := context.Background()
	nop := WithLogger(logging.NewNop())

	tests := []struct {
		name    string
		seed    map[string]string
		wantErr error
	}{
		{"no client secret", map[string]string{}, secret.ErrNotFound},
		{"bad client secret", map[string]string{ClientSecretKey: "{}"}, ErrInvalidCredentials},
		{"no token", map[string]string{ClientSecretKey: clientSecretJSON(srv.URL + "/token")}, ErrAuthRequired},
		{"garbage token", map[string]string{ClientSecretKey: clientSecretJSON(srv.URL + "/token"), RefreshTokenKey: "xx"}, ErrAuthRequired},
		{"revoked token", map[string]string{ClientSecretKey: clientSecretJSON(srv.URL + "/token"), RefreshTokenKey: expiredToken()}, ErrAuth},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, _ := secret.NewManager(secret.NewMemory(tt.seed))
			if _, err := New(ctx, m, nop); !errors.Is(err, tt.wantErr) {
				t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecodeToken(t *testing.T) {
	tok, err := decodeToken(`{"access_token":"a","refresh_token":"r","expiry":"2099-01-02T03:04:05Z"}`)
	if err != nil || tok.AccessToken != "a" || !tok.Valid() {
		t.Fatalf("decodeToken() = %+v, %v", tok, err)
	}
	tok, err = decodeToken(`{"token":"a","refresh_token":"r","expiry":"Jan 2"}`)
	if err != nil || tok.Valid() {
		t.Fatalf("unparseable expiry should force refresh: %+v, %v", tok, err)
	}
	if _, err := decodeToken(`{}`); err == nil {
		t.Fatal("empty token should fail")
	}

	raw, err := encodeToken(tok)
	if err != nil {
		t.Fatal(err)
	}
	back, err := decodeToken(raw)
	if err != nil || back.RefreshToken != "r" || !back.Expiry.Equal(time.Unix(1, 0)) {
		t.Fatalf("round trip = %+v, %v", back, err)
	}
}

func TestAuthCodeURL(t *testing.T) {
	m, _ := secret.NewManager(secret.NewMemory(map[string]string{ClientSecretKey: clientSecretJSON("https://oauth2.example/token")}))
	cfg, err := OAuthConfig(context.Background(), m, ScopeReadWrite)
	if err != nil {
		t.Fatalf("OAuthConfig() error = %v", err)
	}
	u := AuthCodeURL(cfg, "state-1")
	for _, want := range []string{"access_type=offline", "prompt=consent", "state=state-1", "client_id=cid"} {
		if !strings.Contains(u, want) {
			t.Errorf("AuthCodeURL() = %s, missing %s", u, want)
		}
	}
}

func TestExchangeCode(t *testing.T) {
	srv := httptest.NewServer(&googleStub{})
	t.Cleanup(srv.Close)
	b := secret.NewMemory(map[string]string{ClientSecretKey: clientSecretJSON(srv.URL + "/token")})
	m, _ := secret.NewManager(b)

	cfg, err := OAuthConfig(context.Background(), m, ScopeReadOnly)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := ExchangeCode(context.Background(), m, cfg, "code-1")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if tok.AccessToken != "fresh-1" {
		t.Fatalf("token = %+v", tok)
	}
	if ok, _ := m.Has(context.Background(), RefreshTokenKey); !ok {
		t.Fatal("token should be stored")
	}
}
