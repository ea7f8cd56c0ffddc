package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/secret"
)

// Secret keys read by the credential loaders.
const (
	ClientSecretKey   = "GSHEET_CLIENT_SECRET"
	RefreshTokenKey   = "GSHEET_REFRESH_TOKEN"
	ServiceAccountKey = "GSHEET_SERVICE_ACCOUNT"
)

// OAuth scopes.
const (
	ScopeReadOnly  = "https://www.googleapis.com/auth/spreadsheets.readonly"
	ScopeReadWrite = "https://www.googleapis.com/auth/spreadsheets"
)

// OAuthConfig builds the OAuth client configuration from the client secret
// stored under ClientSecretKey.
func OAuthConfig(ctx context.Context, secrets *secret.Manager, scopes ...string) (*oauth2.Config, error) {
	raw, err := secrets.Require(ctx, ClientSecretKey)
	if err != nil {
		return nil, fmt.Errorf("sheets: %s: %w", ClientSecretKey, err)
	}
	cfg, err := google.ConfigFromJSON([]byte(raw), scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCredentials, ClientSecretKey, err)
	}
	return cfg, nil
}

// AuthCodeURL returns the consent page URL for an offline token.
func AuthCodeURL(cfg *oauth2.Config, state string) string {
	return cfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// ExchangeCode trades an authorization code for a token and stores it
// under RefreshTokenKey. The manager must allow overwriting that key when
// a token is already stored.
func ExchangeCode(ctx context.Context, secrets *secret.Manager, cfg *oauth2.Config, code string) (*oauth2.Token, error) {
	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, classify(err, "", "")
	}
	raw, err := encodeToken(tok)
	if err != nil {
		return nil, err
	}
	if err := secrets.Set(ctx, RefreshTokenKey, raw); err != nil {
		return nil, err
	}
	return tok, nil
}

// storedToken accepts both the golang.org/x/oauth2 layout and the
// authorized-user layout written by the google-auth libraries.
type storedToken struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	Expiry       string `json:"expiry"`
}

func decodeToken(raw string) (*oauth2.Token, error) {
	var st storedToken
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return nil, err
	}
	tok := &oauth2.Token{
		AccessToken:  st.AccessToken,
		TokenType:    st.TokenType,
		RefreshToken: st.RefreshToken,
	}
	if tok.AccessToken == "" {
		tok.AccessToken = st.Token
	}
	if st.Expiry != "" {
		exp, err := time.Parse(time.RFC3339Nano, st.Expiry)
		if err != nil {
			// Unknown format: force a refresh.
			exp = time.Unix(1, 0)
		}
		tok.Expiry = exp
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither access nor refresh token")
	}
	return tok, nil
}

func encodeToken(tok *oauth2.Token) (string, error) {
	b, err := json.Marshal(storedToken{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry.Format(time.RFC3339Nano),
	})
	if err != nil {
		return "", fmt.Errorf("sheets: encode token: %w", err)
	}
	return string(b), nil
}

// userTokenSource returns a token source for the stored user token. When
// autoSave is set, every newly minted token is written back to secrets.
func userTokenSource(ctx context.Context, secrets *secret.Manager, scopes []string, autoSave bool, logger logging.Logger) (oauth2.TokenSource, error) {
	cfg, err := OAuthConfig(ctx, secrets, scopes...)
	if err != nil {
		return nil, err
	}

	raw, err := secrets.Get(ctx, RefreshTokenKey)
	switch {
	case secret.IsNotFound(err):
		return nil, fmt.Errorf("%w: %s is not set", ErrAuthRequired, RefreshTokenKey)
	case err != nil:
		return nil, fmt.Errorf("sheets: %s: %w", RefreshTokenKey, err)
	}
	tok, err := decodeToken(raw)
	if err != nil {
		logger.Warning("Stored token is unreadable", logging.Fields{"secret_key": RefreshTokenKey, "error": err.Error()})
		return nil, fmt.Errorf("%w: %s is unreadable", ErrAuthRequired, RefreshTokenKey)
	}
	if !tok.Valid() && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: stored token expired and has no refresh token", ErrAuthRequired)
	}

	ps := &persistingSource{
		base: cfg.TokenSource(ctx, tok),
		last: tok.AccessToken,
	}
	if autoSave {
		saveCtx := context.WithoutCancel(ctx)
		ps.save = func(t *oauth2.Token) { saveToken(saveCtx, secrets, t, logger) }
	}
	return ps, nil
}

// persistingSource reports tokens it has not handed out before to save.
type persistingSource struct {
	base oauth2.TokenSource
	save func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	fresh := tok.AccessToken != p.last
	p.last = tok.AccessToken
	p.mu.Unlock()

	if fresh && p.save != nil {
		p.save(tok)
	}
	return tok, nil
}

// saveToken never fails the caller: a store that refuses the write logs a
// warning, anything else logs an error.
func saveToken(ctx context.Context, secrets *secret.Manager, tok *oauth2.Token, logger logging.Logger) {
	raw, err := encodeToken(tok)
	if err == nil {
		err = secrets.Set(ctx, RefreshTokenKey, raw)
	}
	switch {
	case err == nil:
		logger.Success("Refresh token saved to storage")
	case errors.Is(err, secret.ErrReadOnly), errors.Is(err, secret.ErrOverwriteDenied):
		logger.Warning("Cannot persist refresh token", logging.Fields{"error": err.Error()})
	default:
		logger.Error("Failed to save refresh token", logging.Fields{"error": err.Error()})
	}
}
