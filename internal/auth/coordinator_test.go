package auth

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"greenhouse_monitor/internal/gateway"
	"greenhouse_monitor/internal/logger"
	"greenhouse_monitor/internal/models"
)

type mockAPI struct {
	calls   atomic.Int32
	release chan struct{} // when set, calls block until closed

	loginResp models.AuthResponse
	err       error

	lastLogin    models.LoginRequest
	loginCtxErr  error
	lastRegister models.RegisterRequest
	lastReset    models.ResetPasswordRequest
}

func (m *mockAPI) wait() {
	m.calls.Add(1)
	if m.release != nil {
		<-m.release
	}
}

func (m *mockAPI) Login(ctx context.Context, req models.LoginRequest) (models.AuthResponse, error) {
	m.wait()
	m.lastLogin = req
	m.loginCtxErr = ctx.Err()
	return m.loginResp, m.err
}

func (m *mockAPI) Register(ctx context.Context, req models.RegisterRequest) (models.AuthResponse, error) {
	m.wait()
	m.lastRegister = req
	return m.loginResp, m.err
}

func (m *mockAPI) ForgotPassword(ctx context.Context, req models.ForgotPasswordRequest) (models.MessageResponse, error) {
	m.wait()
	return models.MessageResponse{Message: "sent"}, m.err
}

func (m *mockAPI) ResetPassword(ctx context.Context, req models.ResetPasswordRequest) (models.MessageResponse, error) {
	m.wait()
	m.lastReset = req
	return models.MessageResponse{Message: "ok"}, m.err
}

type memStore struct {
	mu      sync.Mutex
	session models.AuthSession
	saveErr error
	clears  int
	readErr error
}

func (s *memStore) SaveSession(ctx context.Context, sess models.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.session = sess
	return nil
}

func (s *memStore) LoadSession(ctx context.Context) (models.AuthSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session, s.readErr
}

func (s *memStore) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session.Token, s.readErr
}

func (s *memStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	s.session = models.AuthSession{}
	return nil
}

func newTestCoordinator(api *mockAPI, store *memStore) *Coordinator {
	return NewCoordinator(api, store, logger.NewNop())
}

func nextEvent(t *testing.T, c *Coordinator) models.AuthEvent {
	t.Helper()
	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
		return 0
	}
}

func assertNoEvent(t *testing.T, c *Coordinator) {
	t.Helper()
	select {
	case ev := <-c.Events():
		t.Fatalf("unexpected event %v", ev)
	default:
	}
}

func TestLogin_Success(t *testing.T) {
	api := &mockAPI{loginResp: models.AuthResponse{Token: "tok", Username: "alice"}}
	store := &memStore{}
	c := newTestCoordinator(api, store)
	c.SetEmail("  alice@example.com ")
	c.SetPassword("secret1")

	c.Login(context.Background())

	st := c.State()
	if st.IsLoading || st.Error != "" {
		t.Fatalf("unexpected state: %+v", st)
	}
	if store.session != (models.AuthSession{Token: "tok", Username: "alice"}) {
		t.Fatalf("unexpected session: %+v", store.session)
	}
	if api.lastLogin.Email != "alice@example.com" {
		t.Fatalf("email must be trimmed, got %q", api.lastLogin.Email)
	}
	if ev := nextEvent(t, c); ev != models.LoginSuccess {
		t.Fatalf("got %v", ev)
	}
	assertNoEvent(t, c)
	if !c.IsLoggedIn(context.Background()) {
		t.Fatal("expected logged in")
	}
	if c.Phase() != PhaseIdle {
		t.Fatalf("phase: %s", c.Phase())
	}
}

func TestLogin_UsernameFallsBackToEmail(t *testing.T) {
	api := &mockAPI{loginResp: models.AuthResponse{Token: "tok"}}
	store := &memStore{}
	c := newTestCoordinator(api, store)
	c.SetEmail("bob@example.com")
	c.SetPassword("secret1")

	c.Login(context.Background())

	if store.session.Username != "bob@example.com" {
		t.Fatalf("got %q", store.session.Username)
	}
}

func TestLogin_ValidationStopsBeforeNetwork(t *testing.T) {
	cases := []struct {
		name, email, password, want string
	}{
		{name: "blank email", email: " ", password: "secret1", want: "Email is required"},
		{name: "bad email", email: "abc", password: "secret1", want: "Please enter a valid email"},
		{name: "blank password", email: "a@b.io", password: "", want: "Password is required"},
		{name: "short password", email: "a@b.io", password: "123", want: "Password must be at least 6 characters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := &mockAPI{}
			c := newTestCoordinator(api, &memStore{})
			c.SetEmail(tc.email)
			c.SetPassword(tc.password)

			c.Login(context.Background())

			st := c.State()
			if st.Error != tc.want || st.IsLoading {
				t.Fatalf("got %+v", st)
			}
			if api.calls.Load() != 0 {
				t.Fatal("no network call expected")
			}
			if c.Phase() != PhaseIdle {
				t.Fatalf("phase: %s", c.Phase())
			}
			assertNoEvent(t, c)
		})
	}
}

func TestLogin_UnauthorizedMapsToInvalidCredentials(t *testing.T) {
	api := &mockAPI{err: &gateway.StatusError{Code: http.StatusUnauthorized, Message: "Bad credentials"}}
	store := &memStore{}
	c := newTestCoordinator(api, store)
	c.SetEmail("a@b.io")
	c.SetPassword("secret1")

	c.Login(context.Background())

	st := c.State()
	if st.IsLoading {
		t.Fatal("loading must end")
	}
	if st.Error != "Invalid email or password" {
		t.Fatalf("got %q", st.Error)
	}
	if store.session.Token != "" {
		t.Fatal("nothing must be stored")
	}
	assertNoEvent(t, c)
}

func TestLogin_ConcurrentRequestsIssueOneCall(t *testing.T) {
	api := &mockAPI{release: make(chan struct{}), loginResp: models.AuthResponse{Token: "tok"}}
	c := newTestCoordinator(api, &memStore{})
	c.SetEmail("a@b.io")
	c.SetPassword("secret1")

	first := make(chan struct{})
	go func() {
		defer close(first)
		c.Login(context.Background())
	}()
	waitFor(t, func() bool { return c.State().IsLoading })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Login(context.Background())
			c.Register(context.Background())
			c.ForgotPassword(context.Background())
		}()
	}
	wg.Wait()
	close(api.release)
	<-first

	if n := api.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one call, got %d", n)
	}
	if ev := nextEvent(t, c); ev != models.LoginSuccess {
		t.Fatalf("got %v", ev)
	}
	assertNoEvent(t, c)
}

func TestRegister_EmailAlreadyInUse(t *testing.T) {
	api := &mockAPI{err: &gateway.StatusError{
		Code:    http.StatusBadRequest,
		Body:    `{"message":"Email already in use"}`,
		Message: "Email already in use",
	}}
	c := newTestCoordinator(api, &memStore{})
	c.SetUsername("alice")
	c.SetEmail("a@b.io")
	c.SetPassword("secret1")
	c.SetConfirmPassword("secret1")

	c.Register(context.Background())

	if got := c.State().Error; got != "Email already in use" {
		t.Fatalf("got %q", got)
	}
	if ae := Classify(api.err); ae.Kind != KindEmailAlreadyInUse {
		t.Fatalf("kind: %v", ae.Kind)
	}
}

func TestRegister_Success(t *testing.T) {
	api := &mockAPI{loginResp: models.AuthResponse{Token: "tok"}}
	store := &memStore{}
	c := newTestCoordinator(api, store)
	c.SetUsername("alice")
	c.SetEmail("a@b.io")
	c.SetPassword("secret1")
	c.SetConfirmPassword("secret1")

	c.Register(context.Background())

	if store.session != (models.AuthSession{Token: "tok", Username: "alice"}) {
		t.Fatalf("got %+v", store.session)
	}
	if ev := nextEvent(t, c); ev != models.RegisterSuccess {
		t.Fatalf("got %v", ev)
	}
}

func TestRegister_PasswordMismatch(t *testing.T) {
	api := &mockAPI{}
	c := newTestCoordinator(api, &memStore{})
	c.SetUsername("alice")
	c.SetEmail("a@b.io")
	c.SetPassword("secret1")
	c.SetConfirmPassword("secret2")

	c.Register(context.Background())

	if got := c.State().Error; got != "Passwords do not match" {
		t.Fatalf("got %q", got)
	}
	if api.calls.Load() != 0 {
		t.Fatal("no network call expected")
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	api := &mockAPI{}
	store := &memStore{}
	c := newTestCoordinator(api, store)
	ctx := context.Background()

	c.SetEmail("a@b.io")
	c.ForgotPassword(ctx)
	if ev := nextEvent(t, c); ev != models.ForgotPasswordSuccess {
		t.Fatalf("got %v", ev)
	}

	c.SetResetToken("rt-1")
	c.SetNewPassword("newpass")
	c.SetConfirmPassword("newpass")
	c.ResetPassword(ctx)
	if ev := nextEvent(t, c); ev != models.ResetPasswordSuccess {
		t.Fatalf("got %v", ev)
	}
	if api.lastReset.Token != "rt-1" || api.lastReset.NewPassword != "newpass" {
		t.Fatalf("got %+v", api.lastReset)
	}
	if store.session.Token != "" {
		t.Fatal("forgot/reset must not touch the session")
	}
}

func TestResetPassword_RequiresToken(t *testing.T) {
	c := newTestCoordinator(&mockAPI{}, &memStore{})
	c.SetNewPassword("newpass")
	c.SetConfirmPassword("newpass")

	c.ResetPassword(context.Background())

	if got := c.State().Error; got != "Reset token is required" {
		t.Fatalf("got %q", got)
	}
}

func TestNetworkErrorMessage(t *testing.T) {
	api := &mockAPI{err: errors.Join(gateway.ErrNetwork, errors.New("dial tcp: refused"))}
	c := newTestCoordinator(api, &memStore{})
	c.SetEmail("a@b.io")
	c.ForgotPassword(context.Background())

	if got := c.State().Error; got != "Network error. Please check your connection" {
		t.Fatalf("got %q", got)
	}
}

func TestLogin_StorageFailureIsReported(t *testing.T) {
	api := &mockAPI{loginResp: models.AuthResponse{Token: "tok"}}
	c := newTestCoordinator(api, &memStore{saveErr: errors.New("disk full")})
	c.SetEmail("a@b.io")
	c.SetPassword("secret1")

	c.Login(context.Background())

	if st := c.State(); st.Error == "" || st.IsLoading {
		t.Fatalf("got %+v", st)
	}
	assertNoEvent(t, c)
}

func TestLogoutClearsEverything(t *testing.T) {
	store := &memStore{session: models.AuthSession{Token: "tok", Username: "alice"}}
	c := newTestCoordinator(&mockAPI{}, store)
	c.SetEmail("a@b.io")
	c.SetPassword("x")
	c.Login(context.Background())
	if c.State().Error == "" {
		t.Fatal("precondition: expected a validation error")
	}

	c.Logout(context.Background())
	c.Logout(context.Background())

	if st := c.State(); st != (models.AuthUiState{}) {
		t.Fatalf("got %+v", st)
	}
	if c.IsLoggedIn(context.Background()) || store.clears != 2 {
		t.Fatalf("store not cleared: %+v clears=%d", store.session, store.clears)
	}
}

func TestClearError(t *testing.T) {
	c := newTestCoordinator(&mockAPI{}, &memStore{})
	c.Login(context.Background())
	c.ClearError()
	if c.State().Error != "" {
		t.Fatal("error must be cleared")
	}
}

func TestIsLoggedIn_ReadErrorMeansLoggedOut(t *testing.T) {
	c := newTestCoordinator(&mockAPI{}, &memStore{
		session: models.AuthSession{Token: "tok"},
		readErr: errors.New("locked"),
	})
	if c.IsLoggedIn(context.Background()) {
		t.Fatal("expected logged out")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestLogin_RunsToCompletionAfterCallerCancels(t *testing.T) {
	api := &mockAPI{loginResp: models.AuthResponse{Token: "tok", Username: "ana"}}
	store := &memStore{}
	c := newTestCoordinator(api, store)
	c.SetEmail("ana@example.com")
	c.SetPassword("secret1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c.Login(ctx)

	if api.loginCtxErr != nil {
		t.Fatalf("remote call saw cancelled context: %v", api.loginCtxErr)
	}
	if ev := nextEvent(t, c); ev != models.LoginSuccess {
		t.Fatalf("event = %v", ev)
	}
	if store.session.Token != "tok" {
		t.Fatalf("session not stored: %+v", store.session)
	}
}
