package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/xiaot623/livechat/internal/adapter/kafka"
	"github.com/xiaot623/livechat/internal/auth"
	"github.com/xiaot623/livechat/internal/config"
	"github.com/xiaot623/livechat/internal/hub"
	"github.com/xiaot623/livechat/internal/notify"
	"github.com/xiaot623/livechat/internal/relay"
	"github.com/xiaot623/livechat/internal/repository"
	"github.com/xiaot623/livechat/internal/service"
	"github.com/xiaot623/livechat/internal/stream"
	httpserver "github.com/xiaot623/livechat/internal/transport/http"
	"github.com/xiaot623/livechat/internal/transport/rpc"
	"github.com/xiaot623/livechat/internal/ws"
	"github.com/xiaot623/livechat/policy"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel == "debug" {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	log.Printf("Starting livechat service...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Internal Port: %d", cfg.InternalPort)
	log.Printf("RPC Port: %d", cfg.RPCPort)
	log.Printf("Admin token verification: %v", cfg.AdminAuthEnabled())

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	// Initialize hub and the broadcaster in front of it
	connectionHub := hub.NewHub(cfg.SendBuffer)
	var broadcaster stream.Broadcaster = connectionHub
	if cfg.RedisEnabled() {
		r, err := relay.New(ctx, relay.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Channel:  cfg.RedisChannel,
		}, connectionHub)
		if err != nil {
			log.Printf("WARN: redis relay unavailable, delivering in-process only: %v", err)
		} else {
			defer r.Close()
			broadcaster = r
			go func() {
				if err := r.Run(ctx); err != nil {
					log.Printf("WARN: redis relay stopped: %v", err)
				}
			}()
		}
	}

	streamManager := stream.NewManager(broadcaster)
	notifier := notify.New(db, broadcaster)
	svc := service.New(db, streamManager, notifier, cfg.MaxMessageLength)

	// Authorization
	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}
	verifier := auth.NewVerifier(cfg.AdminJWTSecret)

	// Servers
	wsServer := ws.NewServer(cfg, connectionHub, svc, verifier)
	externalServer := httpserver.NewExternalServer(svc, wsServer, policyEngine, verifier)
	internalServer := httpserver.NewInternalServer(svc, connectionHub)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := externalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	go func() {
		addr := fmt.Sprintf(":%d", cfg.InternalPort)
		if err := internalServer.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start internal server: %v", err)
		}
	}()

	var rpcServer *rpc.Server
	if cfg.RPCPort > 0 {
		rpcServer, err = rpc.NewServer(svc)
		if err != nil {
			log.Fatalf("Failed to initialize RPC server: %v", err)
		}
		go func() {
			addr := fmt.Sprintf(":%d", cfg.RPCPort)
			if err := rpcServer.Start(addr); err != nil {
				log.Fatalf("Failed to start RPC server: %v", err)
			}
		}()
	}

	var consumer *kafka.Consumer
	if cfg.KafkaEnabled() {
		consumer, err = kafka.NewConsumer(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaTopics, kafka.NewConfig(), kafka.NewNotificationHandler(svc))
		if err != nil {
			log.Printf("WARN: kafka intake unavailable: %v", err)
		} else {
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Printf("WARN: kafka consumer stopped: %v", err)
				}
			}()
			log.Printf("Kafka intake consuming %v as %s", cfg.KafkaTopics, cfg.KafkaGroupID)
		}
	}

	log.Printf("Livechat service started")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down livechat...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if consumer != nil {
		if err := consumer.Close(); err != nil {
			log.Printf("Failed to close kafka consumer: %v", err)
		}
	}
	if rpcServer != nil {
		if err := rpcServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Failed to shutdown RPC server gracefully: %v", err)
		}
	}
	if err := externalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown HTTP server gracefully: %v", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown internal server gracefully: %v", err)
	}

	log.Println("Livechat stopped")
}
