package cmd

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/jrsteele09/kaizen-client/internal/bootstrap"
	apperrors "github.com/jrsteele09/kaizen-client/internal/errors"
	"github.com/spf13/cobra"
)

const passwordEnvVar = "KAIZEN_PASSWORD"

var (
	loginUsername string
	loginPassword string
	logoutRemote  bool
)

type statusOutput struct {
	Authenticated bool       `json:"authenticated"`
	User          any        `json:"user,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Error         string     `json:"error,omitempty"`
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv(passwordEnvVar)
		}
		if loginUsername == "" || password == "" {
			return errors.New("username and password are required")
		}
		return withApp(cmd, false, func(ctx context.Context, app *bootstrap.App) error {
			result := app.Session.Login(ctx, loginUsername, password)
			if err := printJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if !result.Success {
				return errors.New(result.Error)
			}
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the persisted session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, app *bootstrap.App) error {
			result, err := app.SignOut(ctx, logoutRemote)
			if printErr := printJSON(cmd.OutOrStdout(), result); printErr != nil {
				return printErr
			}
			return err
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Resume the persisted session and show it",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, true, func(ctx context.Context, app *bootstrap.App) error {
			state := app.Session.State()
			out := statusOutput{Authenticated: state.IsAuthenticated}
			if profile, ok := state.Profile(); ok {
				out.User = profile
			}
			if exp := state.Expiration(); !exp.IsZero() {
				out.ExpiresAt = &exp
			}
			if state.Error != nil {
				out.Error = *state.Error
			}
			return printJSON(cmd.OutOrStdout(), out)
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Mint a new access token from the refresh cookie",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, false, func(ctx context.Context, app *bootstrap.App) error {
			if !app.Session.RefreshAccessToken(ctx) {
				if msg := app.Session.LastError(); msg != "" {
					return errors.New(msg)
				}
				return apperrors.ErrRefreshFailed
			}
			exp := app.Session.State().Expiration()
			return printJSON(cmd.OutOrStdout(), statusOutput{Authenticated: true, ExpiresAt: &exp})
		})
	},
}

func init() {
	loginCmd.Flags().StringVarP(&loginUsername, "username", "u", "", "Account username")
	loginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Account password (or "+passwordEnvVar+")")
	logoutCmd.Flags().BoolVar(&logoutRemote, "remote", false, "Also revoke the refresh cookie on the server")

	rootCmd.AddCommand(loginCmd, logoutCmd, statusCmd, refreshCmd)
}
