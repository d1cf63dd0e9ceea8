// Package metrics provides Prometheus instrumentation for the session
// broker: counters for issued tokens, provider calls, and rejected requests.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Token kinds.
const (
	KindPresence   = "presence"
	KindChatCreate = "chat_create"
	KindChatJoin   = "chat_join"
	KindLegacyPage = "legacy_page"
)

// Provider operations and results.
const (
	OpCreateSession = "create_session"
	OpGenerateToken = "generate_token"

	ResultOK    = "ok"
	ResultError = "error"
)

// Rejection reasons.
const (
	ReasonInvalidName    = "invalid_name"
	ReasonUnknownSession = "unknown_session"
	ReasonBadRequest     = "bad_request"
)

var (
	// TokensIssued counts successfully minted tokens by kind.
	TokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_broker_tokens_issued_total",
		Help: "Tokens successfully issued, by session kind",
	}, []string{"kind"})

	// ProviderRequests counts calls against the remote provider.
	ProviderRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_broker_provider_requests_total",
		Help: "Provider API calls, by operation and result",
	}, []string{"op", "result"})

	// RejectedRequests counts requests refused before or instead of a
	// provider call.
	RejectedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "session_broker_rejected_requests_total",
		Help: "Requests rejected by validation, by reason",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		TokensIssued,
		ProviderRequests,
		RejectedRequests,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
