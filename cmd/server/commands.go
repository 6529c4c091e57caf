package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"content-market/internal/api"
	"content-market/internal/jobs"
	"content-market/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var noScheduler bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the operator API and the background scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			// Set Gin mode
			gin.SetMode(a.cfg.Mode)

			r := gin.Default()
			api.SetupRoutes(r, a.handler())

			var scheduler *jobs.Scheduler
			if !noScheduler {
				scheduler = jobs.NewScheduler(
					jobs.NewJobs(a.fanout, a.expiration, a.cfg.Notification),
					a.cfg.Schedule,
				)
				if err := scheduler.Start(ctx); err != nil {
					return fmt.Errorf("failed to start scheduler: %w", err)
				}
			}

			srv := &http.Server{
				Addr:    ":" + a.cfg.Port,
				Handler: r,
			}
			errCh := make(chan error, 1)
			go func() {
				logging.Infof("Starting server on port %s", a.cfg.Port)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return fmt.Errorf("failed to start server: %w", err)
				}
			case <-ctx.Done():
			}

			logging.Infof("Shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()

			if scheduler != nil {
				select {
				case <-scheduler.Stop().Done():
				case <-shutdownCtx.Done():
					logging.Warnf("Scheduler jobs still running at shutdown")
				}
			}
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().BoolVar(&noScheduler, "no-scheduler", false, "serve the API without running background jobs")
	return cmd
}

func drainCmd() *cobra.Command {
	var batch int

	cmd := &cobra.Command{
		Use:   "drain",
		Short: "Send one batch of pending notifications",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(true)
			if err != nil {
				return err
			}
			defer a.close()

			if batch <= 0 {
				batch = a.cfg.Notification.BatchSize
			}
			result, err := a.fanout.DrainPending(ctx, batch)
			if err != nil {
				return err
			}
			fmt.Printf("sent=%d failed=%d\n", result.Sent, result.Failed)
			return nil
		},
	}

	cmd.Flags().IntVarP(&batch, "batch", "n", 0, "batch size (defaults to NOTIFY_BATCH_SIZE)")
	return cmd
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry",
		Short: "Requeue failed notifications that have retries left",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.fanout.RetryFailed(cmd.Context(), a.cfg.Notification.MaxRetries)
			if err != nil {
				return err
			}
			fmt.Printf("requeued=%d\n", n)
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire subscriptions whose window has ended",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.expiration.ExpireSubscriptions(cmd.Context(), time.Now().UTC())
			if err != nil {
				return err
			}
			fmt.Printf("expired=%d\n", n)
			return nil
		},
	}
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show notification counts by state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(false)
			if err != nil {
				return err
			}
			defer a.close()

			stats, err := a.fanout.Stats(cmd.Context(), a.cfg.Notification.MaxRetries)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}
