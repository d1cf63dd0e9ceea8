package opentok

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestClientForServer(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{
		APIKey:     testAPIKey,
		APISecret:  testAPISecret,
		BaseURL:    srv.URL,
		TokenTTL:   time.Hour,
		HTTPClient: srv.Client(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestCreateSession(t *testing.T) {
	wantSessionID := makeSessionID(testAPIKey)

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/session/create" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("X-OPENTOK-AUTH")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"session_id":"` + wantSessionID + `","project_id":"` + testAPIKey + `"}]`))
	}))
	defer srv.Close()

	c := newTestClientForServer(t, srv)

	sessionID, err := c.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if sessionID != wantSessionID {
		t.Fatalf("sessionID=%q, want %q", sessionID, wantSessionID)
	}

	// The auth header must be a valid project JWT signed with the shared
	// secret.
	token, err := jwt.Parse(gotAuth, func(tok *jwt.Token) (any, error) {
		return []byte(testAPISecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		t.Fatalf("parse auth jwt: %v", err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		t.Fatalf("claims have unexpected type %T", token.Claims)
	}
	if claims["iss"] != testAPIKey {
		t.Errorf("iss=%v, want %q", claims["iss"], testAPIKey)
	}
	if claims["ist"] != "project" {
		t.Errorf("ist=%v, want project", claims["ist"])
	}
	if claims["jti"] == "" || claims["jti"] == nil {
		t.Errorf("jti missing")
	}
}

func TestCreateSessionProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClientForServer(t, srv)

	if _, err := c.CreateSession(context.Background()); err == nil {
		t.Fatalf("expected error for provider 503")
	}
}

func TestCreateSessionMalformedBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>"},
		{"empty array", "[]"},
		{"missing session id", `[{"project_id":"x"}]`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := newTestClientForServer(t, srv)
			if _, err := c.CreateSession(context.Background()); err == nil {
				t.Fatalf("expected error for body %q", tc.body)
			}
		})
	}
}

func TestCreateSessionHonorsContext(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	c := newTestClientForServer(t, srv)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.CreateSession(ctx); err == nil {
		t.Fatalf("expected context deadline error")
	}
}
