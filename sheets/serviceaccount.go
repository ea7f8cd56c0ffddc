package sheets

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/shimarch/smrkit/secret"
)

const (
	jwtBearerGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	assertionTTL    = time.Hour
)

// serviceAccountKeyFile is the JSON key downloaded from the Cloud console.
type serviceAccountKeyFile struct {
	Type         string `json:"type"`
	ClientEmail  string `json:"client_email"`
	PrivateKeyID string `json:"private_key_id"`
	PrivateKey   string `json:"private_key"`
	TokenURI     string `json:"token_uri"`
}

// serviceAccountSource mints access tokens with the JWT bearer grant.
type serviceAccountSource struct {
	ctx      context.Context
	hc       *http.Client
	email    string
	keyID    string
	key      *rsa.PrivateKey
	tokenURI string
	scopes   []string
	now      func() time.Time
}

func parseServiceAccount(raw []byte) (*serviceAccountSource, error) {
	var kf serviceAccountKeyFile
	if err := json.Unmarshal(raw, &kf); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCredentials, ServiceAccountKey, err)
	}
	if kf.Type != "" && kf.Type != "service_account" {
		return nil, fmt.Errorf("%w: %s has type %q", ErrInvalidCredentials, ServiceAccountKey, kf.Type)
	}
	if kf.ClientEmail == "" || kf.PrivateKey == "" {
		return nil, fmt.Errorf("%w: %s needs client_email and private_key", ErrInvalidCredentials, ServiceAccountKey)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM([]byte(kf.PrivateKey))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidCredentials, ServiceAccountKey, err)
	}
	if kf.TokenURI == "" {
		kf.TokenURI = defaultTokenURI
	}
	return &serviceAccountSource{
		email:    kf.ClientEmail,
		keyID:    kf.PrivateKeyID,
		key:      key,
		tokenURI: kf.TokenURI,
		now:      time.Now,
	}, nil
}

// serviceAccountTokenSource loads the key stored under ServiceAccountKey.
// Without hc, token requests use a client bounded by timeout.
func serviceAccountTokenSource(ctx context.Context, secrets *secret.Manager, scopes []string, hc *http.Client, timeout time.Duration) (*serviceAccountSource, error) {
	raw, err := secrets.Require(ctx, ServiceAccountKey)
	if err != nil {
		return nil, fmt.Errorf("sheets: %s: %w", ServiceAccountKey, err)
	}
	src, err := parseServiceAccount([]byte(raw))
	if err != nil {
		return nil, err
	}
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	src.ctx = context.WithoutCancel(ctx)
	src.hc = hc
	src.scopes = scopes
	return src, nil
}

func (s *serviceAccountSource) assertion(now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"iss":   s.email,
		"scope": strings.Join(s.scopes, " "),
		"aud":   s.tokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(assertionTTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.keyID != "" {
		token.Header["kid"] = s.keyID
	}
	return token.SignedString(s.key)
}

// Token mints a token under the context the source was built with.
func (s *serviceAccountSource) Token() (*oauth2.Token, error) {
	return s.token(s.ctx)
}

func (s *serviceAccountSource) token(ctx context.Context) (*oauth2.Token, error) {
	now := s.now()
	assertion, err := s.assertion(now)
	if err != nil {
		return nil, fmt.Errorf("%w: sign assertion: %w", ErrInvalidCredentials, err)
	}

	form := url.Values{"grant_type": {jwtBearerGrant}, "assertion": {assertion}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &oauth2.RetrieveError{Response: resp, Body: body}
	}

	var tr struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("%w: token response: %w", ErrAuth, err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("%w: token response has no access_token", ErrAuth)
	}
	tok := &oauth2.Token{AccessToken: tr.AccessToken, TokenType: tr.TokenType}
	if tr.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(tr.ExpiresIn) * time.Second)
	}
	return tok, nil
}
