package opentok

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// Role scopes what a token's holder may do inside a session.
type Role string

const (
	// RolePublisher may publish and subscribe. This is the provider default.
	RolePublisher Role = "publisher"
	// RoleSubscriber may receive but not originate content.
	RoleSubscriber Role = "subscriber"
	// RoleModerator may additionally force-disconnect other participants.
	RoleModerator Role = "moderator"
)

func (r Role) valid() bool {
	switch r {
	case RolePublisher, RoleSubscriber, RoleModerator:
		return true
	}
	return false
}

type TokenOptions struct {
	// Role defaults to publisher when empty.
	Role Role
	// Data is opaque connection metadata embedded in the token, at most
	// 1000 bytes. The provider hands it to every peer that sees the
	// connection.
	Data string
}

// GenerateToken mints a classic T1 token scoped to sessionID. Minting is
// local: the token is an HMAC-SHA1-signed parameter string the provider
// verifies with the same shared secret. The session id must be well-formed
// and belong to this client's project, otherwise ErrInvalidSessionID is
// returned; this is the only session validation the provider model offers.
func (c *Client) GenerateToken(sessionID string, opts TokenOptions) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	if err := validateSessionID(sessionID, c.apiKey); err != nil {
		return "", err
	}

	role := opts.Role
	if role == "" {
		role = RolePublisher
	}
	if !role.valid() {
		return "", fmt.Errorf("invalid role %q", role)
	}
	if len(opts.Data) > maxConnectionDataBytes {
		return "", fmt.Errorf("connection data exceeds %d bytes", maxConnectionDataBytes)
	}

	now := c.now()
	data := fmt.Sprintf("session_id=%s&create_time=%d&expire_time=%d&nonce=%s&role=%s",
		sessionID, now.Unix(), now.Add(c.tokenTTL).Unix(), uuid.NewString(), role)
	if opts.Data != "" {
		data += "&connection_data=" + url.QueryEscape(opts.Data)
	}

	sig := signTokenData(c.apiSecret, data)
	decoded := fmt.Sprintf("partner_id=%s&sig=%s:%s", c.apiKey, sig, data)
	return "T1==" + base64.StdEncoding.EncodeToString([]byte(decoded)), nil
}

func signTokenData(secret, data string) string {
	mac := hmac.New(sha1.New, []byte(secret))
	_, _ = mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// validateSessionID rejects identifiers that cannot have been produced for
// this project. Session ids are "<version>_<base64 payload>" where the
// payload's second ~-separated field is the owning API key.
func validateSessionID(sessionID, apiKey string) error {
	if len(sessionID) < 3 || sessionID[1] != '_' {
		return ErrInvalidSessionID
	}
	version := sessionID[0]
	if version < '1' || version > '9' {
		return ErrInvalidSessionID
	}

	payload, err := decodeSessionPayload(sessionID[2:])
	if err != nil {
		return ErrInvalidSessionID
	}
	fields := strings.Split(payload, "~")
	if len(fields) < 2 || fields[1] != apiKey {
		return ErrInvalidSessionID
	}
	return nil
}

func decodeSessionPayload(raw string) (string, error) {
	// Session ids use the URL-safe alphabet but standard-alphabet variants
	// appear in the wild; normalize before decoding.
	normalized := strings.NewReplacer("-", "+", "_", "/").Replace(raw)
	if pad := len(normalized) % 4; pad != 0 {
		normalized += strings.Repeat("=", 4-pad)
	}
	decoded, err := base64.StdEncoding.DecodeString(normalized)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}
