package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fakenews/notifier/internal/gateway"
	"github.com/fakenews/notifier/internal/modules/notification"
	notificationdomain "github.com/fakenews/notifier/internal/modules/notification/domain"
	"github.com/fakenews/notifier/internal/modules/session"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Receive notifications for the signed-in user until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.run(ctx)
		},
	}
}

func (a *app) run(ctx context.Context) error {
	sessions, err := session.NewModule(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer sessions.Close()

	sess, err := sessions.Service().Current(ctx)
	if err != nil {
		return fmt.Errorf("sign in first with `notifier login`: %w", err)
	}

	notifications := notification.NewModule(a.cfg, a.logger, func(n *notificationdomain.Notification) {
		if n == nil {
			a.logger.Info("popup clicked after it closed; opening notification list")
			return
		}
		a.logger.Info("opening notification", "id", n.ID, "type", n.Type, "reference_id", n.ReferenceID)
	})
	defer notifications.Shutdown()

	center := notifications.Center()
	if err := center.Start(ctx, sess.Token); err != nil {
		if errors.Is(err, notificationdomain.ErrUnauthorized) {
			if logoutErr := sessions.Service().Logout(ctx); logoutErr != nil {
				a.logger.Warn("failed to clear rejected session", "error", logoutErr)
			}
			return fmt.Errorf("backend rejected the stored token: %w", err)
		}
		var fetchErr *notificationdomain.FetchError
		if !errors.As(err, &fetchErr) {
			return err
		}
		a.logger.Warn("initial notification load failed; refresh to retry", "error", err)
	}

	a.logger.Info("notifier running",
		"user", displayName(sess.User),
		"unread", center.Store().UnreadCount(),
		"degraded", center.Degraded(),
	)

	g, gctx := errgroup.WithContext(ctx)
	if a.cfg.Server.Port != "" {
		routes := gateway.SetupRoutes(gateway.RouterConfig{
			NotificationHandler: notifications.HTTPHandler(),
			Status: func() gateway.Status {
				return gateway.Status{SignedIn: center.Running(), Degraded: center.Degraded()}
			},
			AllowedOrigins: a.cfg.Server.AllowedOrigins,
		})
		server := gateway.NewServer(a.cfg.Server.Port, routes, a.logger)
		g.Go(func() error { return server.Start(gctx) })
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	return g.Wait()
}
