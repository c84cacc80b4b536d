package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/octobees/mailprobe/internal/app"
	"github.com/octobees/mailprobe/internal/config"
	"github.com/octobees/mailprobe/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log, err := app.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logrus.WithError(err).Fatal("failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	a, err := app.Build(buildCtx, cfg, log)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to build application")
	}
	defer a.Close()

	producer, err := queue.NewProducer(cfg.NSQ, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect producer")
	}
	defer producer.Stop()

	persisterDone := make(chan struct{})
	go func() {
		defer close(persisterDone)
		a.Persister.Run(ctx)
	}()

	h := queue.NewHandler(a.Service, producer, cfg.NSQ.ResultTopic, log.WithField("component", "worker"))
	log.WithFields(logrus.Fields{
		"topic":       cfg.NSQ.Topic,
		"channel":     cfg.NSQ.Channel,
		"concurrency": cfg.NSQ.Concurrency,
	}).Info("worker consuming")

	if err := queue.Consume(ctx, cfg.NSQ, h, log); err != nil {
		log.WithError(err).Error("consumer stopped")
	}
	stop()
	<-persisterDone
}
