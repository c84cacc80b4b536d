package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/app"
	"github.com/octobees/mailprobe/internal/auth"
	"github.com/octobees/mailprobe/internal/config"
	"github.com/octobees/mailprobe/internal/handler"
	middlewarepkg "github.com/octobees/mailprobe/internal/middleware"
	"github.com/octobees/mailprobe/internal/router"
)

func main() {
	issueToken := flag.String("issue-admin-token", "", "print an admin token for the given subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of tokens printed by -issue-admin-token")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	var jwtManager *auth.JWTManager
	if cfg.AdminJWTSecret != "" {
		jwtManager = auth.NewJWTManager(cfg.AdminJWTSecret, *tokenTTL)
	}
	if *issueToken != "" {
		if jwtManager == nil {
			log.Fatal("ADMIN_JWT_SECRET must be set to issue tokens")
		}
		token, err := jwtManager.GenerateToken(*issueToken, auth.RoleAdmin)
		if err != nil {
			log.WithError(err).Fatal("failed to issue token")
		}
		fmt.Println(token)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	a, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}
	defer a.Close()

	persistCtx, stopPersister := context.WithCancel(context.Background())
	persisterDone := make(chan struct{})
	go func() {
		defer close(persisterDone)
		a.Persister.Run(persistCtx)
	}()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middlewarepkg.RequestID())
	e.Use(middlewarepkg.Logging(log))
	e.Use(middlewarepkg.Metrics(a.Metrics))
	e.Use(echoMiddleware.Recover())

	router.Register(e, cfg, jwtManager, router.Handlers{
		Verify: handler.NewVerifyHandler(a.Service, log),
		Admin:  handler.NewAdminHandler(a.Metrics, a.Service),
	})

	serverErr := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("http server listening")
		serverErr <- e.Start(":" + cfg.Port)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.WithField("signal", sig.String()).Info("shutting down")
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("graceful shutdown failed")
	}
	stopPersister()
	<-persisterDone
}
