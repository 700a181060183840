package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc/pool"
	"github.com/talkline/counters/internal/rest"
	"github.com/talkline/counters/internal/rest/middleware/session"
	"github.com/talkline/counters/internal/setup"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// Server timeouts.
const (
	ReadTimeout     = 5 * time.Second
	WriteTimeout    = 10 * time.Second
	ShutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Printf("Error: %v", err)
		os.Exit(1)
	}
}

func run() error {
	app := &cli.Command{
		Name:  "counters",
		Usage: "Unread message counter service",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Start the public read server and the internal write server",
				Action: serve,
			},
		},
	}

	return app.Run(context.Background(), os.Args)
}

func serve(ctx context.Context, _ *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := setup.InitializeApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Cleanup(context.Background())

	sessions := session.New(app.Config.Session.Secret, app.Logger)

	publicSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.Config.HTTP.PublicHost, app.Config.HTTP.PublicPort),
		Handler:      rest.NewPublicServer(app.Service, sessions, app.Logger),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}

	internalSrv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", app.Config.HTTP.RESTHost, app.Config.HTTP.RESTPort),
		Handler:      rest.NewInternalServer(app.Service, app.Logger),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
	}

	servers := pool.New().WithErrors()

	servers.Go(func() error {
		app.Logger.Info("Public server started", zap.String("addr", publicSrv.Addr))

		if err := publicSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("public server failed: %w", err)
		}

		return nil
	})

	servers.Go(func() error {
		app.Logger.Info("Internal server started", zap.String("addr", internalSrv.Addr))

		if err := internalSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("internal server failed: %w", err)
		}

		return nil
	})

	servers.Go(func() error {
		<-ctx.Done()

		app.Logger.Info("Shutting down servers")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()

		// In-flight requests are allowed to finish; every counter operation
		// is idempotent or immaterial if dropped
		if err := internalSrv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("Failed to shutdown internal server", zap.Error(err))
		}

		if err := publicSrv.Shutdown(shutdownCtx); err != nil {
			app.Logger.Error("Failed to shutdown public server", zap.Error(err))
		}

		return nil
	})

	return servers.Wait()
}
