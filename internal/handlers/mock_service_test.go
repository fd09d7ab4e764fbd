package handlers

import (
	"context"
	"net/http"

	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/service"

	"github.com/gin-gonic/gin"
)

// ---- Service Mocks ----

type mockAuth struct {
	signUpResp  models.AuthResponse
	signUpErr   error
	signInResp  models.AuthResponse
	signInErr   error
	parseID     int
	parseErr    error
	resetToken  string
	resetReqErr error
	resetErr    error

	lastSignUpEmail string
	lastSignInEmail string
	lastParseToken  string
	lastResetToken  string
}

func (m *mockAuth) SignUp(ctx context.Context, username, email, password string) (models.AuthResponse, error) {
	m.lastSignUpEmail = email
	return m.signUpResp, m.signUpErr
}

func (m *mockAuth) SignIn(ctx context.Context, email, password string) (models.AuthResponse, error) {
	m.lastSignInEmail = email
	return m.signInResp, m.signInErr
}

func (m *mockAuth) ParseToken(token string) (int, error) {
	m.lastParseToken = token
	return m.parseID, m.parseErr
}

func (m *mockAuth) RequestReset(ctx context.Context, email string) (string, error) {
	return m.resetToken, m.resetReqErr
}

func (m *mockAuth) ResetPassword(ctx context.Context, token, newPassword string) error {
	m.lastResetToken = token
	return m.resetErr
}

type publishCall struct {
	topic   string
	qos     int
	payload string
}

type mockGreenhouse struct {
	recent     []models.GreenhouseMessage
	recentErr  error
	lastLimit  int
	publishErr error
	published  []publishCall
}

func (m *mockGreenhouse) Record(ctx context.Context, msg models.GreenhouseMessage) error {
	return nil
}

func (m *mockGreenhouse) Recent(ctx context.Context, limit int) ([]models.GreenhouseMessage, error) {
	m.lastLimit = limit
	return m.recent, m.recentErr
}

func (m *mockGreenhouse) PublishCustom(ctx context.Context, topic string, qos int, payload []byte) error {
	m.published = append(m.published, publishCall{topic, qos, string(payload)})
	return m.publishErr
}

// ---- Shared Test Helpers ----

func newTestRouter(s *service.Service) *gin.Engine {
	h := NewHandler(s, nil)
	gin.SetMode(gin.TestMode)
	return h.InitRoutes()
}

func authHeader(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}
