package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"google.golang.org/grpc"

	"relief.org/internal/auth"
	"relief.org/internal/config"
	"relief.org/internal/events"
	"relief.org/internal/httpapi"
	"relief.org/internal/migrate"
	"relief.org/internal/obs"
	"relief.org/internal/relief"
	"relief.org/internal/store/pg"
	"relief.org/ops/migrations"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("relief-api exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(obs.Logger())
	if err != nil {
		return err
	}
	obs.SetLogOutput(os.Stdout, obs.ParseLevel(cfg.LogLevel))
	log := obs.Logger()

	obs.Init()
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		ready    httpapi.ReadyCheck
		registry relief.Registry = relief.NewInMemory()
		users    auth.UserStore  = auth.NewMemoryUserStore()
	)
	if cfg.DB.DSN != "" {
		store, err := pg.Open(cfg.DB.DSN, pg.PoolConfig{
			MaxOpenConns:    cfg.DB.MaxOpenConns,
			MaxIdleConns:    cfg.DB.MaxIdleConns,
			ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		defer store.Close()
		if cfg.AutoMigrate {
			mctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			err := migrate.NewManager(store.DB(), migrations.SQL, nil, migrate.WithLogger(log)).Up(mctx)
			cancel()
			if err != nil {
				return err
			}
		}
		ready.DB = store.DB()
		registry = store
		users = auth.NewPGUserStore(store.DB())
		log.Info("using postgres storage")
	} else {
		log.Warn("RELIEF_PG_DSN not set; records are kept in memory only")
	}

	var attempts auth.AttemptLimiter = auth.NewMemoryAttempts(cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockout)
	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return err
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		ready.Redis = rdb
		attempts = auth.NewRedisAttempts(rdb, cfg.Auth.LoginMaxAttempts, cfg.Auth.LoginLockout)
	}

	tokens, err := auth.NewTokenService(auth.TokenConfig{
		Key:      []byte(cfg.Auth.JWTKey),
		Issuer:   cfg.Auth.JWTIssuer,
		Audience: cfg.Auth.JWTAudience,
		Expiry:   cfg.Auth.TokenExpiry,
	})
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(users, tokens, auth.WithAttemptLimiter(attempts))
	if err != nil {
		return err
	}

	broker := events.NewBroker()
	reliefSvc := relief.NewService(registry,
		relief.WithStrictTransitions(cfg.StrictTransitions),
		relief.WithPublisher(broker),
	)

	api := httpapi.New(httpapi.Options{
		Version:         version,
		Ready:           ready,
		Auth:            authSvc,
		Relief:          reliefSvc,
		Events:          broker,
		AllowQueryToken: cfg.Auth.AllowQueryToken,
		RateBurst:       cfg.HTTP.RateBurst,
		RatePerSec:      cfg.HTTP.RatePerSec,
		MaxBodyBytes:    cfg.HTTP.MaxBodyBytes,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
	})

	grpcSrv := grpc.NewServer()
	httpapi.NewGRPCServer(ready).Register(grpcSrv)

	return serve(ctx, log, newHTTPServer(cfg.HTTPAddr, api.Handler(), log), grpcSrv, cfg.GRPCAddr)
}

// newHTTPServer builds the API server. There is no WriteTimeout since the event
// feed holds responses open; request contexts are cancelled when Shutdown starts
// so those streams end instead of stalling it.
func newHTTPServer(addr string, h http.Handler, log *slog.Logger) *http.Server {
	base, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ErrorLog:          slog.NewLogLogger(log.Handler(), slog.LevelError),
		BaseContext:       func(net.Listener) context.Context { return base },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}

// serve runs both servers until ctx ends or one of them fails, then shuts both
// down. A server failure is returned so the process exits non-zero.
func serve(ctx context.Context, log *slog.Logger, srv *http.Server, grpcSrv *grpc.Server, grpcAddr string) error {
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		return err
	}

	errCh := make(chan error, 2)
	go func() {
		log.Info("http listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		log.Info("grpc listening", "addr", lis.Addr().String())
		if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case runErr = <-errCh:
		log.Error("server failed", "error", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", "error", err)
	}
	grpcSrv.GracefulStop()
	log.Info("stopped")
	return runErr
}
