package main

import (
	"fmt"
	"time"

	"github.com/fakenews/notifier/internal/modules/session"
	"github.com/fakenews/notifier/internal/modules/session/application"
	"github.com/fakenews/notifier/internal/modules/session/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"
)

func newLoginCommand(a *app) *cobra.Command {
	var user domain.User
	var role string

	cmd := &cobra.Command{
		Use:   "login TOKEN",
		Short: "Remember an access token issued by the FakeNews backend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := session.NewModule(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer m.Close()

			user.Role = domain.Role(role)
			sess, err := m.Service().Login(cmd.Context(), args[0], user)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s (profile %s)\n", displayName(sess.User), a.cfg.Session.Profile)
			return nil
		},
	}

	cmd.Flags().StringVar(&user.ID, "user-id", "", "user id (defaults to the token's user_id claim)")
	cmd.Flags().StringVar(&user.Username, "username", "", "username shown in status")
	cmd.Flags().StringVar(&user.Email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleUser), "account role")
	return cmd
}

func newLogoutCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := session.NewModule(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer m.Close()

			if err := m.Service().Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "signed out")
			return nil
		},
	}
}

func newStatusCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := session.NewModule(cmd.Context(), a.cfg, a.logger)
			if err != nil {
				return err
			}
			defer m.Close()

			sess, err := m.Service().Current(cmd.Context())
			if application.IsSignedOut(err) {
				fmt.Fprintf(cmd.OutOrStdout(), "not signed in: %v\n", err)
				return nil
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "signed in as %s (profile %s)\n", displayName(sess.User), a.cfg.Session.Profile)
			if exp := tokenExpiry(sess.Token); !exp.IsZero() {
				fmt.Fprintf(out, "token expires %s\n", exp.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func displayName(u domain.User) string {
	switch {
	case u.Username != "":
		return u.Username
	case u.Email != "":
		return u.Email
	case u.ID != "":
		return u.ID
	}
	return "unknown user"
}

func tokenExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.UTC()
}
