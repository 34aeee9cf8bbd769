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

	"github.com/RubenRamosM/SW1erParcial-sub001/internal/config"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/handler"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/middleware"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/realtime"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/repository"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/service"
	"github.com/RubenRamosM/SW1erParcial-sub001/internal/websocket"

	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/go-kivik/kivik/v4"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	couchURL := fmt.Sprintf("http://%s:%s@%s:%s",
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.Host,
		cfg.Database.Port,
	)

	client, err := kivik.New("couch", couchURL)
	if err != nil {
		log.Fatalf("Failed to connect to CouchDB: %v", err)
	}

	exists, err := client.DBExists(context.Background(), cfg.Database.Name)
	if err != nil {
		log.Fatalf("Failed to check database existence: %v", err)
	}

	if !exists {
		if err := client.CreateDB(context.Background(), cfg.Database.Name); err != nil {
			log.Fatalf("Failed to create database: %v", err)
		}
		log.Printf("Created database: %s", cfg.Database.Name)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}

	// Identifies this process on the fan-out fabric so it can discard its
	// own echoed messages.
	instanceID := uuid.New().String()

	userRepo := repository.NewUserRepository(client, cfg.Database.Name)
	projectRepo := repository.NewProjectRepository(client, cfg.Database.Name)
	boardRepo := repository.NewBoardRepository(client, cfg.Database.Name)
	memberRepo := repository.NewMemberRepository(client, cfg.Database.Name)
	editRequestRepo := repository.NewEditRequestRepository(client, cfg.Database.Name)
	shareRepo := repository.NewShareRepository(client, cfg.Database.Name)

	// WebSocket Manager
	wsManager := websocket.NewManager(
		cfg.WebSocket.WriteWait,
		cfg.WebSocket.PongWait,
		cfg.WebSocket.PingPeriod,
	)

	registry := realtime.NewRegistry(boardRepo, instanceID)
	tracker := realtime.NewTracker(cfg.Collab.PresenceTTL)
	saver := realtime.NewSaver(boardRepo, cfg.Collab.DebounceWindow)
	fabric := realtime.NewFabric(rdb, instanceID)
	collab := realtime.NewService(registry, tracker, saver, fabric, cfg.Collab.SweepInterval)

	authService := service.NewAuthService(userRepo, cfg.JWT.Secret, cfg.JWT.Expiration, cfg.JWT.RefreshTokenExpiration)
	userService := service.NewUserService(userRepo)
	accessService := service.NewAccessService(projectRepo, memberRepo)
	projectService := service.NewProjectService(projectRepo, boardRepo, accessService)
	shareService := service.NewShareService(shareRepo, projectRepo)
	editRequestService := service.NewEditRequestService(editRequestRepo, memberRepo, accessService)

	gateway := handler.NewGateway(wsManager, collab, authService, accessService, shareService, editRequestService, userRepo)
	wsManager.SetMessageHandler(gateway)
	collab.SetBroadcaster(wsManager)
	fabric.SetHandler(collab)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go wsManager.Run()
	go fabric.Run(ctx)
	go collab.RunSweeper(ctx)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	projectHandler := handler.NewProjectHandler(projectService)
	shareHandler := handler.NewShareHandler(shareService)
	wsHandler := handler.NewWebSocketHandler(wsManager)

	r := mux.NewRouter()

	r.Use(middleware.LoggerMiddleware())
	r.Use(middleware.CORSMiddleware(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowedHeaders,
	))

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/auth/register", authHandler.Register).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/login", authHandler.Login).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/refresh", authHandler.Refresh).Methods("POST", "OPTIONS")
	api.HandleFunc("/auth/logout", authHandler.Logout).Methods("POST", "OPTIONS")

	api.HandleFunc("/projects/{id}/board", projectHandler.GetBoard).Methods("GET", "OPTIONS")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(middleware.AuthMiddleware(cfg.JWT.Secret))

	protected.HandleFunc("/users/me", userHandler.GetMe).Methods("GET", "OPTIONS")
	protected.HandleFunc("/users/me", userHandler.UpdateMe).Methods("PUT", "OPTIONS")

	protected.HandleFunc("/projects", projectHandler.Create).Methods("POST", "OPTIONS")
	protected.HandleFunc("/projects", projectHandler.List).Methods("GET", "OPTIONS")
	protected.HandleFunc("/projects/{id}", projectHandler.Get).Methods("GET", "OPTIONS")
	protected.HandleFunc("/projects/{id}/board", projectHandler.UpdateBoard).Methods("PUT", "OPTIONS")
	protected.HandleFunc("/projects/{id}/share", shareHandler.CreateLink).Methods("POST", "OPTIONS")

	r.HandleFunc("/ws", wsHandler.HandleConnection)

	// Health endpoint
	r.HandleFunc("/health", healthHandler).Methods("GET")
	r.HandleFunc("/", rootHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)

	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting Collab Board Server on %s (env: %s, instance: %s)", addr, cfg.Server.Env, instanceID)
		log.Printf("Connected to CouchDB at %s:%s", cfg.Database.Host, cfg.Database.Port)
		log.Printf("Connected to Redis at %s", cfg.Redis.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped gracefully")
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy","service":"collab-board-server"}`))
}

func rootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"message":"Collab Board Server API","version":"1.0.0","endpoints":{"/api/v1/auth/register":"POST","/api/v1/auth/login":"POST","/api/v1/projects":"GET/POST (protected)","/ws":"WebSocket"}}`))
}
