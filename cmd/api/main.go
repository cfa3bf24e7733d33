package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/goclaw/backend/internal/billing"
	"github.com/goclaw/backend/internal/config"
	"github.com/goclaw/backend/internal/database"
	"github.com/goclaw/backend/internal/logger"
)

func main() {
	app := &cli.App{
		Name:  "goclaw-api",
		Usage: "Account, agent and billing API for GoClaw",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "database-url",
				Aliases: []string{"d"},
				Value:   config.DefaultDatabaseURL,
				Usage:   "PostgreSQL database URL",
				EnvVars: []string{"DATABASE_URL"},
			},
		},
		Before: func(c *cli.Context) error {
			logger.Setup(logger.ParseLevel(c.String("log-level")))
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "port",
						Aliases: []string{"p"},
						Value:   config.DefaultPort,
						Usage:   "HTTP server port",
						EnvVars: []string{"PORT"},
					},
					&cli.StringFlag{
						Name:    "store",
						Value:   storePostgres,
						Usage:   "Storage backend (postgres, memory)",
						EnvVars: []string{"STORE"},
					},
				},
				Action: runServe,
			},
			{
				Name:   "migrate",
				Usage:  "Apply database migrations and exit",
				Action: runMigrate,
			},
			{
				Name:      "sign-webhook",
				Usage:     "Print the X-Polar-Signature for a payload read from a file or stdin",
				ArgsUsage: "[file]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "secret",
						Usage:    "Webhook signing secret",
						EnvVars:  []string{"POLAR_WEBHOOK_SECRET"},
						Required: true,
					},
				},
				Action: runSignWebhook,
			},
		},
		Action: runServe,
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func runServe(c *cli.Context) error {
	ctx := c.Context

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.JWTSecretGenerated {
		slog.Warn("JWT_SECRET not set; using a generated key, tokens will not survive a restart")
	}
	if cfg.PolarWebhookSecret == "" {
		slog.Warn("POLAR_WEBHOOK_SECRET not set; webhook endpoint will answer 503")
	}

	port := c.String("port")
	if port == "" {
		port = config.DefaultPort
	}

	b, err := openBackend(ctx, c.String("store"), c.String("database-url"), cfg)
	if err != nil {
		return err
	}
	defer b.close()

	api, err := newAPI(cfg, b)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           newMux(api, b.ping, cfg),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := b.start(ctx); err != nil {
		return fmt.Errorf("failed to start background workers: %w", err)
	}

	serverErr := make(chan error, 1)
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "server_addr", "http://localhost:"+port, "store", b.kind, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	case <-done:
		slog.Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	if err := b.stop(shutdownCtx); err != nil {
		slog.Error("background workers did not stop cleanly", "error", err)
	}

	slog.Info("server stopped")
	return nil
}

func runMigrate(c *cli.Context) error {
	ctx := c.Context

	db, err := database.New(ctx, c.String("database-url"), database.PoolSize{MaxConns: 2})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db.Pool()); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func runSignWebhook(c *cli.Context) error {
	var in io.Reader = os.Stdin
	if path := c.Args().First(); path != "" && path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open payload: %w", err)
		}
		defer f.Close()
		in = f
	}
	body, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read payload: %w", err)
	}
	secret := strings.TrimSpace(c.String("secret"))
	_, err = fmt.Fprintln(c.App.Writer, billing.Sign(body, secret))
	return err
}
