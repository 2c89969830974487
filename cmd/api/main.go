package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"

	"github.com/ovaphlow/pitchfork/service-ids-console/internal/alert"
	alertrepo "github.com/ovaphlow/pitchfork/service-ids-console/internal/alert/repo"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/auth"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/router"
	"github.com/ovaphlow/pitchfork/service-ids-console/internal/user"
	"github.com/ovaphlow/pitchfork/service-ids-console/pkg/cache"
	"github.com/ovaphlow/pitchfork/service-ids-console/pkg/database"
	"github.com/ovaphlow/pitchfork/service-ids-console/pkg/eventstore"
	"github.com/ovaphlow/pitchfork/service-ids-console/pkg/utilities"
)

func main() {
	// best-effort: real env wins when no .env exists
	_ = godotenv.Load()

	lg, err := utilities.Init(utilities.ConfigFromEnv())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer lg.Sync()

	sugar := lg.Sugar()
	sugar.Info("starting ids-console api")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authCfg := auth.ConfigFromEnv()
	usedFallback, err := authCfg.Validate()
	if err != nil {
		sugar.Fatalw("auth config", "err", err, "env", authCfg.Env)
	}
	if usedFallback {
		sugar.Warnw("JWT_SECRET_KEY not set; signing with the development fallback secret", "env", authCfg.Env)
	}

	// credential store
	sqlDB, err := database.Connect(database.ConfigFromEnv())
	if err != nil {
		sugar.Fatalf("db connect: %v", err)
	}
	defer sqlDB.Close()
	if err := database.Migrate(ctx, sqlDB); err != nil {
		sugar.Fatalf("db migrate: %v", err)
	}
	sqlxDB := sqlx.NewDb(sqlDB, "postgres")

	// event store
	esCfg := eventstore.ConfigFromEnv()
	dynamo, err := eventstore.Connect(ctx, esCfg)
	if err != nil {
		sugar.Fatalf("event store: %v", err)
	}
	if err := eventstore.Probe(ctx, dynamo, esCfg); err != nil {
		// the table may come up after us; queries will surface the error
		sugar.Warnw("event store probe failed", "err", err, "table", esCfg.Table)
	}

	var deny auth.DenyList = auth.NewMemoryDenyList()
	if rc := cache.ConfigFromEnv(); rc.Enabled() {
		rdb, err := cache.Connect(ctx, rc)
		if err != nil {
			sugar.Fatalf("redis: %v", err)
		}
		defer rdb.Close()
		deny = auth.NewRedisDenyList(rdb)
		sugar.Infow("token deny-list on redis", "addr", rc.Addr)
	}
	issuer := auth.NewIssuer(authCfg, deny)

	userSvc := user.NewUserService(sqlxDB, nil, nil, issuer)
	alertSvc := alert.NewAlertService(alertrepo.NewAlertRepo(dynamo, esCfg.Table))

	handler := router.RegisterRoutes(sugar, router.Deps{
		Users:  user.NewHandler(userSvc, issuer, authCfg.CookieSecure, sugar),
		Alerts: alert.NewHandler(alertSvc, sugar),
		Issuer: issuer,
		IDs:    utilities.NewIDGenerator(utilities.SnowflakeNodeFromEnv()),
		CORS:   router.CORSConfigFromEnv(),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	srv := &http.Server{
		Addr:              net.JoinHostPort("0.0.0.0", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		sugar.Infow("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalf("http server failed: %v", err)
		}
	}()

	<-ctx.Done()
	sugar.Info("shutting down")

	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(doneCtx); err != nil {
		sugar.Warnf("http server shutdown failed: %v", err)
	}
	sugar.Info("goodbye")
}
