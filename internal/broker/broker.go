// Package broker implements the session-coordination core: presence lookup,
// user-token issuance, and chat session create/join against a remote
// session-granting provider. The broker holds no per-request state; the only
// process-wide values are the configuration and the session handles
// established before traffic is accepted.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/presencekit/session-broker/internal/metrics"
	"github.com/presencekit/session-broker/internal/opentok"
)

// SessionProvider is the slice of the provider API the broker needs. Session
// creation is remote and context-bounded; token minting is local to the
// provider client and fails on session ids the provider would reject.
type SessionProvider interface {
	CreateSession(ctx context.Context) (string, error)
	GenerateToken(sessionID string, opts opentok.TokenOptions) (string, error)
}

type Config struct {
	APIKey string
	// PresenceSessionID is the well-known session every user subscribes to.
	PresenceSessionID string
	// DefaultSessionID backs the legacy page. It is created once at startup;
	// creation failure there is fatal before the listener opens.
	DefaultSessionID string
	// ProviderTimeout bounds each remote provider call.
	ProviderTimeout time.Duration
}

type Broker struct {
	log      *slog.Logger
	provider SessionProvider
	cfg      Config
	validate *validator.Validate
}

func New(cfg Config, provider SessionProvider, logger *slog.Logger) (*Broker, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key is required")
	}
	if cfg.PresenceSessionID == "" {
		return nil, errors.New("presence session id is required")
	}
	if cfg.ProviderTimeout <= 0 {
		return nil, errors.New("provider timeout must be > 0")
	}
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Broker{
		log:      logger,
		provider: provider,
		cfg:      cfg,
		validate: validator.New(),
	}, nil
}

// PresenceInfo describes the shared presence session. It deliberately
// carries no token; clients obtain theirs via IssueUserToken.
type PresenceInfo struct {
	APIKey    string `json:"apiKey"`
	SessionID string `json:"sessionId"`
}

// PresenceInfo is a pure read of configuration; no provider call is made.
func (b *Broker) PresenceInfo() PresenceInfo {
	return PresenceInfo{
		APIKey:    b.cfg.APIKey,
		SessionID: b.cfg.PresenceSessionID,
	}
}

// userName carries the validation rules for client-supplied display names:
// non-empty, at most 100 characters. Uniqueness is not enforced; two users
// may share a name.
type userName struct {
	Name string `validate:"required,max=100"`
}

// connectionData is the token metadata every presence peer sees.
type connectionData struct {
	Name string `json:"name"`
}

// IssueUserToken validates a display name and mints a subscriber token for
// the presence session with the name embedded as connection metadata.
// Subscribers cannot publish: presence changes flow through the provider's
// own signaling, never from a client directly.
func (b *Broker) IssueUserToken(name string) (string, error) {
	if err := b.validate.Struct(userName{Name: name}); err != nil {
		metrics.RejectedRequests.WithLabelValues(metrics.ReasonInvalidName).Inc()
		return "", fmt.Errorf("%w: %s", ErrInvalidName, err)
	}

	data, err := json.Marshal(connectionData{Name: name})
	if err != nil {
		return "", fmt.Errorf("encode connection data: %w", err)
	}

	token, err := b.provider.GenerateToken(b.cfg.PresenceSessionID, opentok.TokenOptions{
		Role: opentok.RoleSubscriber,
		Data: string(data),
	})
	if err != nil {
		// The presence session id was verified at startup, so this is a
		// provider-level fault, not client input.
		metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultError).Inc()
		return "", fmt.Errorf("%w: mint presence token: %s", ErrProvider, err)
	}
	metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultOK).Inc()
	metrics.TokensIssued.WithLabelValues(metrics.KindPresence).Inc()
	return token, nil
}

// ChatSession is everything a client needs to connect to a chat.
type ChatSession struct {
	APIKey    string `json:"apiKey"`
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
}

// CreateChat asks the provider for a fresh session and mints a full-role
// token for it. Every call yields a new session; nothing is cached or
// deduplicated, and the identifier is never stored server-side.
func (b *Broker) CreateChat(ctx context.Context) (ChatSession, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.ProviderTimeout)
	defer cancel()

	sessionID, err := b.provider.CreateSession(ctx)
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(metrics.OpCreateSession, metrics.ResultError).Inc()
		return ChatSession{}, fmt.Errorf("%w: create chat session: %s", ErrProvider, err)
	}
	metrics.ProviderRequests.WithLabelValues(metrics.OpCreateSession, metrics.ResultOK).Inc()

	token, err := b.provider.GenerateToken(sessionID, opentok.TokenOptions{})
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultError).Inc()
		return ChatSession{}, fmt.Errorf("%w: mint chat token: %s", ErrProvider, err)
	}
	metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultOK).Inc()
	metrics.TokensIssued.WithLabelValues(metrics.KindChatCreate).Inc()

	return ChatSession{
		APIKey:    b.cfg.APIKey,
		SessionID: sessionID,
		Token:     token,
	}, nil
}

// JoinChat mints a token for a caller-supplied session id. This is the one
// place untrusted input reaches the provider's minting path; the provider is
// the source of truth for whether the id is real. A missing id and a
// rejected id both come back as ErrUnknownChat.
func (b *Broker) JoinChat(sessionID string) (ChatSession, error) {
	if sessionID == "" {
		metrics.RejectedRequests.WithLabelValues(metrics.ReasonUnknownSession).Inc()
		return ChatSession{}, ErrUnknownChat
	}

	token, err := b.provider.GenerateToken(sessionID, opentok.TokenOptions{})
	switch {
	case errors.Is(err, opentok.ErrInvalidSessionID) || errors.Is(err, opentok.ErrEmptySessionID):
		metrics.RejectedRequests.WithLabelValues(metrics.ReasonUnknownSession).Inc()
		return ChatSession{}, fmt.Errorf("%w: %s", ErrUnknownChat, err)
	case err != nil:
		metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultError).Inc()
		return ChatSession{}, fmt.Errorf("%w: mint join token: %s", ErrProvider, err)
	}
	metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultOK).Inc()
	metrics.TokensIssued.WithLabelValues(metrics.KindChatJoin).Inc()

	return ChatSession{
		APIKey:    b.cfg.APIKey,
		SessionID: sessionID,
		Token:     token,
	}, nil
}

// LegacyPageSession mints a fresh full-role token for the startup-created
// default session. Used only by the deprecated HTML page.
func (b *Broker) LegacyPageSession() (ChatSession, error) {
	if b.cfg.DefaultSessionID == "" {
		return ChatSession{}, errors.New("no default session configured")
	}
	token, err := b.provider.GenerateToken(b.cfg.DefaultSessionID, opentok.TokenOptions{})
	if err != nil {
		metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultError).Inc()
		return ChatSession{}, fmt.Errorf("%w: mint page token: %s", ErrProvider, err)
	}
	metrics.ProviderRequests.WithLabelValues(metrics.OpGenerateToken, metrics.ResultOK).Inc()
	metrics.TokensIssued.WithLabelValues(metrics.KindLegacyPage).Inc()

	return ChatSession{
		APIKey:    b.cfg.APIKey,
		SessionID: b.cfg.DefaultSessionID,
		Token:     token,
	}, nil
}
