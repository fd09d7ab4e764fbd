package auth

import (
	"regexp"
	"strings"

	"greenhouse_monitor/internal/models"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

func checkEmail(email string) *Error {
	email = strings.TrimSpace(email)
	if email == "" {
		return validationError("Email is required")
	}
	if !emailPattern.MatchString(email) {
		return validationError("Please enter a valid email")
	}
	return nil
}

func checkPassword(pw string) *Error {
	if strings.TrimSpace(pw) == "" {
		return validationError("Password is required")
	}
	if len([]rune(pw)) < minPasswordLength {
		return validationError("Password must be at least 6 characters")
	}
	return nil
}

func firstFailure(checks ...func() *Error) *Error {
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func validateLogin(d models.AuthDraft) *Error {
	return firstFailure(
		func() *Error { return checkEmail(d.Email) },
		func() *Error { return checkPassword(d.Password) },
	)
}

func validateRegister(d models.AuthDraft) *Error {
	return firstFailure(
		func() *Error {
			if strings.TrimSpace(d.Username) == "" {
				return validationError("Username is required")
			}
			return nil
		},
		func() *Error { return checkEmail(d.Email) },
		func() *Error { return checkPassword(d.Password) },
		func() *Error {
			if d.Password != d.ConfirmPassword {
				return validationError("Passwords do not match")
			}
			return nil
		},
	)
}

func validateForgot(d models.AuthDraft) *Error {
	return checkEmail(d.Email)
}

func validateReset(d models.AuthDraft) *Error {
	return firstFailure(
		func() *Error {
			if strings.TrimSpace(d.ResetToken) == "" {
				return validationError("Reset token is required")
			}
			return nil
		},
		func() *Error { return checkPassword(d.NewPassword) },
		func() *Error {
			if d.NewPassword != d.ConfirmPassword {
				return validationError("Passwords do not match")
			}
			return nil
		},
	)
}
