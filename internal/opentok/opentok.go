// Package opentok is a minimal client for the OpenTok-style session/token
// API: it creates sessions through the provider's REST endpoint and mints
// session-scoped access tokens locally, the same split the official SDKs use.
package opentok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrEmptySessionID   = errors.New("session id is required")
	ErrInvalidSessionID = errors.New("invalid session id")
)

const (
	sessionCreatePath = "/session/create"

	// restAuthTTL bounds the validity of the JWT sent with each REST call.
	// Each request mints a fresh one, so the window only needs to cover
	// request latency plus clock skew.
	restAuthTTL = 3 * time.Minute

	// maxConnectionDataBytes is the provider-imposed cap on per-token
	// connection metadata.
	maxConnectionDataBytes = 1000
)

type Client struct {
	apiKey    string
	apiSecret string
	baseURL   string
	tokenTTL  time.Duration

	httpClient *http.Client
	now        func() time.Time
}

type ClientConfig struct {
	APIKey    string
	APISecret string
	// BaseURL is the provider REST endpoint, without a trailing slash.
	BaseURL  string
	TokenTTL time.Duration

	// HTTPClient and Now are injectable for tests; nil selects defaults.
	HTTPClient *http.Client
	Now        func() time.Time
}

func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.APISecret == "" {
		return nil, errors.New("api secret is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if cfg.TokenTTL <= 0 {
		return nil, errors.New("token ttl must be > 0")
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    cfg.BaseURL,
		tokenTTL:   cfg.TokenTTL,
		httpClient: cfg.HTTPClient,
		now:        cfg.Now,
	}, nil
}

// CreateSession asks the provider for a brand-new session and returns its
// identifier. The call is bounded by ctx; it is never retried.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	auth, err := c.restAuthToken()
	if err != nil {
		return "", fmt.Errorf("sign provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionCreatePath, nil)
	if err != nil {
		return "", fmt.Errorf("build provider request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-OPENTOK-AUTH", auth)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read provider response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("create session: provider returned %d", resp.StatusCode)
	}

	var sessions []struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &sessions); err != nil {
		return "", fmt.Errorf("decode provider response: %w", err)
	}
	if len(sessions) == 0 || sessions[0].SessionID == "" {
		return "", errors.New("provider returned no session id")
	}
	return sessions[0].SessionID, nil
}

// restAuthToken mints the short-lived project JWT the REST API expects in
// X-OPENTOK-AUTH.
func (c *Client) restAuthToken() (string, error) {
	now := c.now()
	claims := jwt.MapClaims{
		"iss": c.apiKey,
		"ist": "project",
		"iat": now.Unix(),
		"exp": now.Add(restAuthTTL).Unix(),
		"jti": uuid.NewString(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(c.apiSecret))
}
