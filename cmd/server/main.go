package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/alexdean/worst-idea/internal/cache"
	"github.com/alexdean/worst-idea/internal/config"
	"github.com/alexdean/worst-idea/internal/identity"
	"github.com/alexdean/worst-idea/internal/model"
	"github.com/alexdean/worst-idea/internal/rules"
	"github.com/alexdean/worst-idea/internal/service"
	"github.com/alexdean/worst-idea/internal/store"
	"github.com/alexdean/worst-idea/internal/transport/rest"
	"github.com/alexdean/worst-idea/internal/transport/ws"
)

func main() {
	log.Println("started")
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment")
	}
	cfg := config.Load()

	// MongoDB connection
	mongoClient, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB:", err)
	}
	defer mongoClient.Disconnect(ctx)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := mongoClient.Ping(pingCtx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB:", err)
	}
	log.Println("Connected to MongoDB")

	db := mongoClient.Database(cfg.MongoDB)

	// Redis connection
	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	defer rdb.Close()

	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to ping Redis:", err)
	}
	log.Println("Connected to Redis")

	// Every write, operator writes included, goes through the rule engine.
	docs := rules.NewGuardedStore(store.NewMongoStore(db))

	provider := identity.NewProvider(cfg.JWTSecret, cfg.OperatorKey)
	lobby := cache.NewLobbyCache(rdb)

	operator := model.Principal{ID: "op_server", Operator: true}
	gameSvc := service.NewGameService(docs, operator)
	gameSvc.SetLobbyCache(lobby)

	wsHub := ws.NewHub(docs)
	log.Println("WebSocket hub started")

	container := &rest.Container{
		Identity:    provider,
		GameService: gameSvc,
		Docs:        docs,
		Lobby:       lobby,
		WSHub:       wsHub,
		JoinBaseURL: cfg.JoinBaseURL,
	}

	router := rest.NewRouter(container)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.HTTPPort)
		log.Println("Endpoints:")
		log.Println("  POST /v1/auth/anonymous")
		log.Println("  POST /v1/auth/operator")
		log.Println("  GET  /v1/games")
		log.Println("  POST /v1/games/{id}/join")
		log.Println("  PUT  /v1/games/{id}/answer")
		log.Println("  GET  /v1/games/{id}/qr")
		log.Println("  WS   /v1/ws/games/{id}/projector")
		log.Println("  WS   /v1/ws/games/{id}/player")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}
