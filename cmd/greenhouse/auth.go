package main

import (
	"context"
	"errors"
	"fmt"

	"greenhouse_monitor/internal/models"
	"greenhouse_monitor/internal/realtime"

	"github.com/spf13/cobra"
)

var errNoOutcome = errors.New("request was not processed")

// runAuth drives one coordinator operation and turns its UI state into a command result.
func (c *cli) runAuth(ctx context.Context, op func(context.Context), want models.AuthEvent) error {
	op(ctx)
	if msg := c.coord.State().Error; msg != "" {
		return errors.New(msg)
	}
	select {
	case ev := <-c.coord.Events():
		if ev != want {
			return fmt.Errorf("unexpected auth event %s", ev)
		}
		return nil
	default:
		return errNoOutcome
	}
}

func (c *cli) printSession(ctx context.Context, verb string) error {
	s, err := c.repos.Session.LoadSession(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%s as %s\n", verb, s.Username)
	return nil
}

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.coord.SetEmail(email)
			c.coord.SetPassword(password)
			if err := c.runAuth(cmd.Context(), c.coord.Login, models.LoginSuccess); err != nil {
				return err
			}
			return c.printSession(cmd.Context(), "Logged in")
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	return cmd
}

func newRegisterCmd(c *cli) *cobra.Command {
	var username, email, password, confirm string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in with it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.coord.SetUsername(username)
			c.coord.SetEmail(email)
			c.coord.SetPassword(password)
			c.coord.SetConfirmPassword(confirm)
			if err := c.runAuth(cmd.Context(), c.coord.Register, models.RegisterSuccess); err != nil {
				return err
			}
			return c.printSession(cmd.Context(), "Registered")
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "display name")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password, at least 6 characters")
	cmd.Flags().StringVar(&confirm, "confirm", "", "password confirmation")
	return cmd
}

func newForgotPasswordCmd(c *cli) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Request a password reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.coord.SetEmail(email)
			if err := c.runAuth(cmd.Context(), c.coord.ForgotPassword, models.ForgotPasswordSuccess); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Password reset requested for %s\n", email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newResetPasswordCmd(c *cli) *cobra.Command {
	var token, password, confirm string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.coord.SetResetToken(token)
			c.coord.SetNewPassword(password)
			c.coord.SetConfirmPassword(confirm)
			if err := c.runAuth(cmd.Context(), c.coord.ResetPassword, models.ResetPasswordSuccess); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Password updated")
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "reset token")
	cmd.Flags().StringVar(&password, "new-password", "", "new password, at least 6 characters")
	cmd.Flags().StringVar(&confirm, "confirm", "", "new password confirmation")
	return cmd
}

func newLogoutCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c.coord.Logout(cmd.Context())
			fmt.Fprintln(c.out, "Logged out")
			return nil
		},
	}
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session and endpoints in use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			wsURL, err := realtime.WebSocketURL(c.cfg.API.BaseURL)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "api:       %s\n", c.api.BaseURL())
			fmt.Fprintf(c.out, "realtime:  %s\n", wsURL)
			if !c.coord.IsLoggedIn(ctx) {
				fmt.Fprintln(c.out, "session:   logged out")
				return nil
			}
			s, err := c.repos.Session.LoadSession(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "session:   logged in as %s\n", s.Username)
			return nil
		},
	}
}
