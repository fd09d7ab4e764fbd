package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	gm "greenhouse_monitor"
	"greenhouse_monitor/internal/models"
)

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL + "/", Tokens: staticToken("tok")})
}

func TestLogin_SuccessDecodesPermissively(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(gm.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("login must not carry a bearer token")
		}
		var req models.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "user@example.com" || req.Password != "secret1" {
			t.Errorf("unexpected body %+v", req)
		}
		_, _ = io.WriteString(w, `{"token":"abc","username":"user","roles":["ADMIN"],"email":null}`)
	})
	c := newTestClient(t, mux)

	resp, err := c.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "abc" || resp.Username != "user" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestLogin_Unauthorized(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"message":"Bad credentials"}`)
	}))

	_, err := c.Login(context.Background(), models.LoginRequest{})
	var se *StatusError
	if !errors.As(err, &se) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if se.Code != http.StatusUnauthorized || se.Message != "Bad credentials" {
		t.Fatalf("unexpected status error %+v", se)
	}
}

func TestRecentMessages_SendsBearerAndDecodes(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(gm.PathRecentMessages, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		_, _ = io.WriteString(w, `[{"timestamp":"t1","temperature01":20.5,"extra":true},{"timestamp":"t2","greenhouseId":"002","humidity01":null}]`)
	})
	c := newTestClient(t, mux)

	msgs, err := c.RecentMessages(context.Background())
	if err != nil {
		t.Fatalf("RecentMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("want 2 messages, got %d", len(msgs))
	}
	if msgs[0].GreenhouseID != gm.DefaultGreenhouseID || *msgs[0].Temperature01 != 20.5 {
		t.Fatalf("unexpected first message %+v", msgs[0])
	}
	if msgs[1].Humidity01 != nil {
		t.Fatalf("expected null humidity to stay nil")
	}
}

func TestPublishCustom_Query(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(gm.PathPublishCustom, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("topic") != "greenhouse/001/sector/1" || r.URL.Query().Get("qos") != "1" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"value":40}` {
			t.Errorf("unexpected body %s", body)
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux)

	if err := c.PublishCustom(context.Background(), "greenhouse/001/sector/1", 1, map[string]int{"value": 40}); err != nil {
		t.Fatalf("PublishCustom: %v", err)
	}
}

func TestNetworkErrorWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(Options{BaseURL: base})
	_, err := c.ForgotPassword(context.Background(), models.ForgotPasswordRequest{Email: "a@b.co"})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}
}

func TestBreakerOpensAfterServerErrorsOnly(t *testing.T) {
	status := http.StatusBadRequest
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(status)
	}))

	for i := 0; i < breakerTripFailures+2; i++ {
		_, _ = c.ResetPassword(context.Background(), models.ResetPasswordRequest{})
	}
	if calls != breakerTripFailures+2 {
		t.Fatalf("4xx must not trip the breaker: calls = %d", calls)
	}

	status = http.StatusBadGateway
	calls = 0
	for i := 0; i < breakerTripFailures; i++ {
		_, _ = c.ResetPassword(context.Background(), models.ResetPasswordRequest{})
	}
	_, err := c.ResetPassword(context.Background(), models.ResetPasswordRequest{})
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected open breaker to surface as ErrNetwork, got %v", err)
	}
	if calls != breakerTripFailures {
		t.Fatalf("expected %d upstream calls before opening, got %d", breakerTripFailures, calls)
	}
}

func TestBreakerIgnoresUndecodableSuccessBodies(t *testing.T) {
	calls := 0
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		_, _ = io.WriteString(w, `{"token":`)
	}))

	attempts := breakerTripFailures * 2
	for i := 0; i < attempts; i++ {
		_, err := c.Login(context.Background(), models.LoginRequest{})
		if err == nil || errors.Is(err, ErrNetwork) {
			t.Fatalf("attempt %d: expected a decode error, got %v", i, err)
		}
	}
	if calls != attempts {
		t.Fatalf("malformed 2xx bodies must not open the breaker: calls = %d", calls)
	}
}

func TestUnhealthy(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", ErrNetwork, true},
		{"5xx", &StatusError{Code: http.StatusServiceUnavailable}, true},
		{"4xx", &StatusError{Code: http.StatusConflict}, false},
		{"decode", errors.New("decode /api/auth/login response: unexpected EOF"), false},
	}
	for _, tc := range cases {
		if got := unhealthy(tc.err); got != tc.want {
			t.Errorf("%s: unhealthy = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestExtractMessage(t *testing.T) {
	cases := map[string]string{
		``:                                   "",
		`{"message":"Email already in use"}`: "Email already in use",
		`{"error":"invalid token"}`:          "invalid token",
		`plain failure`:                      "plain failure",
		`{"message":"","error":"fallback"}`:  "fallback",
	}
	for in, want := range cases {
		if got := extractMessage([]byte(in)); got != want {
			t.Errorf("extractMessage(%q) = %q, want %q", in, got, want)
		}
	}
}
