package models

// AuthSession is what the Session Store persists. Logged in means Token != "".
type AuthSession struct {
	Token    string
	Username string
}

// LoggedIn reports whether a token is present. The token is never inspected locally.
func (s AuthSession) LoggedIn() bool { return s.Token != "" }

// AuthDraft holds the field values of the auth form in progress.
type AuthDraft struct {
	Email           string
	Password        string
	Username        string
	ConfirmPassword string
	ResetToken      string
	NewPassword     string
}

// AuthUiState is the observable state of the auth coordinator.
type AuthUiState struct {
	IsLoading bool
	Error     string // empty when there is none
	Draft     AuthDraft
}

// AuthEvent is a one-shot navigation signal.
type AuthEvent int

const (
	LoginSuccess AuthEvent = iota + 1
	RegisterSuccess
	ForgotPasswordSuccess
	ResetPasswordSuccess
)

func (e AuthEvent) String() string {
	switch e {
	case LoginSuccess:
		return "LoginSuccess"
	case RegisterSuccess:
		return "RegisterSuccess"
	case ForgotPasswordSuccess:
		return "ForgotPasswordSuccess"
	case ResetPasswordSuccess:
		return "ResetPasswordSuccess"
	default:
		return "Unknown"
	}
}

// Request and response bodies of the auth endpoints.
type (
	LoginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	RegisterRequest struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	ForgotPasswordRequest struct {
		Email string `json:"email"`
	}

	ResetPasswordRequest struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}

	AuthResponse struct {
		Token    string `json:"token"`
		Type     string `json:"type,omitempty"`
		Username string `json:"username,omitempty"`
		Email    string `json:"email,omitempty"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)
