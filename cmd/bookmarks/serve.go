package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joestump/bookmarks/internal/api"
	"github.com/joestump/bookmarks/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server and the periodic refresh",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, closeApp, err := openApp(*configPath)
			if err != nil {
				return err
			}
			defer closeApp()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			thumbs, closeThumbs, err := a.newThumbnails(ctx)
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := closeThumbs(closeCtx); err != nil {
					a.log.Warn("downloads did not finish before shutdown", logger.Error(err))
				}
			}()

			if a.cfg.Sync.Feed != "" {
				if _, err := a.updater.Refresh(ctx, false); err != nil {
					a.log.Warn("initial refresh failed", logger.Error(err))
				}
				if err := a.updater.Start(a.cfg.Sync.Schedule); err != nil {
					return err
				}
			} else {
				a.log.Info("no feed configured, periodic refresh disabled")
			}

			srv := &http.Server{
				Addr: a.cfg.HTTP.Addr,
				Handler: api.NewRouter(api.Deps{
					Store:      a.store,
					Updater:    a.updater,
					Thumbnails: thumbs,
					Log:        a.log,
				}),
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info("listening", logger.String("addr", srv.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				a.log.Info("shutting down")

				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				a.updater.Stop()
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
