package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"learnhub/internal/auth/device"
	"learnhub/internal/auth/guard"
	authHandler "learnhub/internal/auth/handler"
	"learnhub/internal/auth/password"
	"learnhub/internal/auth/service"
	"learnhub/internal/auth/store/session"
	"learnhub/internal/enrollment"
	enrollmentHandler "learnhub/internal/enrollment/handler"
	jwttoken "learnhub/internal/jwt_token"
	"learnhub/internal/notification"
	"learnhub/internal/payment"
	paymentHandler "learnhub/internal/payment/handler"
	"learnhub/internal/platform/config"
	"learnhub/internal/platform/httpserver"
	"learnhub/internal/platform/logger"
	"learnhub/internal/platform/metrics"
	redisClient "learnhub/internal/platform/redis"
	httptransport "learnhub/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// run wires every dependency and blocks until ctx is cancelled or a
// component fails.
func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)

	rdb, err := redisClient.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer func() { _ = rdb.Close() }()
	sessions := session.NewRedis(rdb.Client)

	persistence, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	if persistence.db != nil {
		defer func() { _ = persistence.db.Close() }()
	}

	sink, closeSink, err := newSink(ctx, cfg, persistence.db, log)
	if err != nil {
		return err
	}
	defer closeSink()

	dispatcher, err := notification.NewDispatcher(sink,
		notification.WithQueueSize(cfg.Notification.QueueSize),
		notification.WithWorkers(cfg.Notification.Workers),
		notification.WithWriteTimeout(cfg.Notification.WriteTimeout),
		notification.WithLogger(log),
		notification.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	tokens := jwttoken.NewJWTService(
		cfg.Auth.AccessTokenSecret,
		cfg.Auth.RefreshTokenSecret,
		cfg.Auth.AccessTokenTTL,
		cfg.Auth.RefreshTokenTTL,
		jwttoken.WithIssuer(cfg.Auth.Issuer),
		jwttoken.WithActivationSecret(cfg.Auth.ActivationSecret),
	)
	devices := device.NewService(true)
	cookies := guard.NewCookies(cfg.Cookie)
	var authOpts []authHandler.Option
	if cfg.Auth.RequireActivation {
		authOpts = append(authOpts, authHandler.WithActivation())
	}
	if cfg.Auth.SocialAuthEnabled {
		authOpts = append(authOpts, authHandler.WithSocialAuth())
	}

	authGuard, err := guard.New(tokens, sessions, cookies, cfg.Auth.SessionTTL,
		guard.WithCacheTimeout(cfg.Auth.SessionCacheTimeout),
		guard.WithDeviceService(devices),
		guard.WithLogger(log),
		guard.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	authService, err := service.New(service.Config{
		Users:       persistence.users,
		Sessions:    sessions,
		Enrollments: persistence.enrollments,
		Tokens:      tokens,
		Passwords:   password.NewHasher(0),
		Tx:          persistence.tx,
		SessionTTL:  cfg.Auth.SessionTTL,
	},
		service.WithDeviceService(devices),
		service.WithLogger(log),
		service.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	ledger, err := enrollment.New(persistence.users, persistence.enrollments, persistence.tx, sessions,
		enrollment.WithLogger(log),
		enrollment.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	verifier, err := payment.New(cfg.Payment.SignatureSecret, cfg.Payment.StrictSignatureVerification, ledger,
		payment.WithNotifier(dispatcher),
		payment.WithLogger(log),
		payment.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	checks := map[string]httptransport.HealthCheck{"redis": rdb.Health}
	if persistence.db != nil {
		checks["postgres"] = persistence.db.PingContext
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:       log,
		Gatherer:     prometheus.DefaultGatherer,
		HealthChecks: checks,
		Handlers: []httptransport.Routes{
			authHandler.New(authService, authGuard, cookies, log, authOpts...),
			enrollmentHandler.New(ledger, authGuard, log),
			paymentHandler.New(verifier, log),
		},
	})
	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting learnhub", "addr", cfg.Addr, "environment", cfg.Environment)
	return serve(ctx, log, srv, dispatcher)
}

type httpServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

type backgroundRunner interface {
	Run(ctx context.Context) error
}

// serve runs srv and the dispatcher until ctx is cancelled or either fails.
// The dispatcher outlives ctx so notifications raised by requests still in
// flight during Shutdown are queued and flushed; it stops once Shutdown
// returns.
func serve(ctx context.Context, log *slog.Logger, srv httpServer, dispatcher backgroundRunner) error {
	g, gctx := errgroup.WithContext(ctx)
	dispatchCtx, stopDispatch := context.WithCancel(context.WithoutCancel(gctx))
	defer stopDispatch()
	g.Go(func() error {
		return dispatcher.Run(dispatchCtx)
	})
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		defer stopDispatch()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
