// Command websso runs the web single sign-on front end: it discovers the
// configured OIDC provider once at startup, then serves the protected
// application routes and the login/callback/logout flow.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/webb-auth/websso/config"
	"github.com/webb-auth/websso/oidc"
	"github.com/webb-auth/websso/server"
	"github.com/webb-auth/websso/session"
)

func main() {
	if err := run(); err != nil {
		hclog.Default().Error("websso exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// a missing .env file is fine; the environment may be set directly
	_ = godotenv.Load()

	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "websso",
		Level: hclog.LevelFromString(os.Getenv("WEBSSO_LOG_LEVEL")),
	})

	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}

	var copts []oidc.Option
	if cfg.ProviderCA != "" {
		copts = append(copts, oidc.WithProviderCA(cfg.ProviderCA))
	}
	pc, err := oidc.NewConfig(
		cfg.Issuer,
		cfg.ClientID,
		cfg.ClientSecret,
		[]oidc.Alg{oidc.RS256, oidc.ES256},
		copts...,
	)
	if err != nil {
		return err
	}

	// discovery is fail-fast: a provider we cannot reach now will not be
	// reachable for the first login either
	provider, err := oidc.NewProvider(pc)
	if err != nil {
		return err
	}
	defer provider.Done()
	logger.Info("discovered provider", "issuer", cfg.Issuer)

	store, err := newSessionStore(cfg, logger)
	if err != nil {
		return err
	}
	sessions, err := session.NewManager(store, session.WithLifetime(cfg.SessionLifetime))
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Provider:      provider,
		Sessions:      sessions,
		CookieSecret:  cfg.SessionSecret,
		SecureCookies: !cfg.InsecureDev,
		LoginExpiry:   cfg.LoginExpiry,
		Logger:        logger.Named("server"),
	})
	if err != nil {
		return err
	}

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(ctx)
}

// newSessionStore selects the shared Redis store when SESSION_REDIS_URL is
// set and the in-process store otherwise.
func newSessionStore(cfg *config.Config, logger hclog.Logger) (session.Store, error) {
	if cfg.RedisURL == "" {
		logger.Info("using in-process session store")
		return session.NewMemoryStore(), nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	store, err := session.NewRedisStore(client)
	if err != nil {
		return nil, err
	}
	logger.Info("using redis session store", "addr", opts.Addr)
	return store, nil
}
