package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/api"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/cache"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/chat"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/config"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/db"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/email"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/events"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/services"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/storage"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/tasks"
	"github.com/AdenilsonVargas/acheimeufrete-sub004/internal/utils"
)

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient); err != nil {
			log.Printf("Error disconnecting from MongoDB: %v", err)
		}
	}()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient); err != nil {
			log.Printf("Error disconnecting from Redis: %v", err)
		}
	}()

	publisher, err := events.NewPublisher(cfg.AmqpURL, cfg.AmqpExchange)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	docStore, err := storage.NewS3DocumentStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}

	emailSender := email.NewSMTPSender(cfg)

	// Services shared by the task processor and index setup. The API router
	// builds its own per-request graph the same way.
	clock := utils.RealClock{}
	window := chat.NewAvailabilityWindow(cfg.ChatOpenHour, cfg.ChatCloseHour, cfg.Location())
	userService := services.NewUserService(mongoDb)
	quoteService := services.NewQuoteService(mongoDb, cfg, clock, publisher, docStore)
	responseService := services.NewResponseService(mongoDb, cfg, clock)
	matcherService := services.NewMatcherService(mongoDb, quoteService, responseService, clock)
	conversationService := services.NewConversationService(mongoDb, window, clock, quoteService, responseService, publisher)
	quoteService.SetConversationService(conversationService)

	// Unique indexes back the concurrency guarantees; refuse to start without
	// them.
	ctxIdx, cancelIdx := context.WithTimeout(context.Background(), 15*time.Second)
	if err := quoteService.EnsureIndexes(ctxIdx); err != nil {
		log.Fatalf("Failed to ensure quote indexes: %v", err)
	}
	if err := responseService.EnsureIndexes(ctxIdx); err != nil {
		log.Fatalf("Failed to ensure response indexes: %v", err)
	}
	if err := conversationService.EnsureIndexes(ctxIdx); err != nil {
		log.Fatalf("Failed to ensure conversation indexes: %v", err)
	}
	cancelIdx()

	taskClient := tasks.NewClient(redisClient)
	taskProcessor := tasks.NewTaskProcessor(cfg, emailSender, quoteService, matcherService, userService, taskClient)

	var wg sync.WaitGroup
	var mainApiSrv *http.Server
	var backgroundTaskSrv *asynq.Server

	fmt.Printf("Starting application in '%s' mode...\n", cfg.RunMode)

	apiMode := func() {
		fmt.Println("Starting main API server...")
		mainApiRouter := api.SetupRouter(cfg, mongoDb, taskClient, publisher, docStore)
		mainApiSrv = &http.Server{
			Addr:    ":" + cfg.ApiPort,
			Handler: mainApiRouter,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Printf("Main API listening on :%s\n", cfg.ApiPort)
			if err := mainApiSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("Main API ListenAndServe error: %v", err)
			}
			fmt.Println("Main API server stopped.")
		}()
	}

	var scheduler *asynq.Scheduler
	bgMode := func() {
		fmt.Println("Starting background worker...")
		srv, mux := tasks.SetupServer(redisClient, taskProcessor)
		backgroundTaskSrv = srv
		wg.Add(1)
		go func() {
			defer wg.Done()
			fmt.Println("Background task server starting...")
			if err := backgroundTaskSrv.Run(mux); err != nil {
				log.Fatalf("Background task server error: %v", err)
			}
			fmt.Println("Background task server stopped.")
		}()

		scheduler, err = tasks.SetupScheduler(redisClient)
		if err != nil {
			log.Fatalf("Failed to set up task scheduler: %v", err)
		}
		if err := scheduler.Start(); err != nil {
			log.Fatalf("Failed to start task scheduler: %v", err)
		}
	}

	switch cfg.RunMode {
	case "api":
		apiMode()
	case "bg":
		bgMode()
	case "all":
		apiMode()
		bgMode()
	default:
		log.Fatalf("Invalid run mode specified: %s.", cfg.RunMode)
	}

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	fmt.Printf("\nReceived signal: %s. Shutting down gracefully...\n", sig)

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()

	if mainApiSrv != nil {
		fmt.Println("Shutting down Main API server...")
		if err := mainApiSrv.Shutdown(ctxShutdown); err != nil {
			log.Printf("Main API server shutdown error: %v", err)
		}
	}
	if scheduler != nil {
		fmt.Println("Shutting down task scheduler...")
		scheduler.Shutdown()
	}
	if backgroundTaskSrv != nil {
		fmt.Println("Shutting down Background Task server...")
		backgroundTaskSrv.Shutdown()
	}

	fmt.Println("Waiting for servers to stop...")
	wg.Wait()

	fmt.Println("Server gracefully stopped")
}
