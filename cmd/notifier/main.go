package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"geoattend/internal/config"
	"geoattend/internal/notify"
	"geoattend/internal/push"
	"geoattend/internal/store"
)

// Notifier worker streams published notifications and delivers them to the
// configured webhook receiver.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	notifier := notify.NewRedis(redisClient.Client, 100)
	webhook := push.New(cfg.WebhookURL, cfg.WebhookSkip)

	if !cfg.WebhookSkip {
		if err := webhook.Health(ctx); err != nil {
			log.Printf("WARNING: webhook receiver not available: %v", err)
			log.Println("Worker will retry delivery as notifications arrive")
		} else {
			log.Println("Webhook receiver connected")
		}
	}

	stream, err := notifier.Subscribe(ctx)
	if err != nil {
		log.Fatalf("notification subscribe failed: %v", err)
	}

	log.Println("notifier started, waiting for notifications...")
	for n := range stream {
		log.Printf("[%s] %s: %s", n.Severity, n.UserID, n.Message)

		if err := webhook.Send(ctx, n); err != nil {
			log.Printf("webhook delivery failed for %s: %v", n.UserID, err)
		}
	}

	log.Println("notifier stopped")
}
