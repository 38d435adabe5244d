package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"update-broadcast-go/internal/broadcast"
	"update-broadcast-go/internal/handlers"
	"update-broadcast-go/internal/store"
	wp "update-broadcast-go/internal/webpush"
)

func main() {
	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using defaults")
	}

	// Redis Configuration
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0
	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisDB = db
		}
	}

	// Initialize Redis store (for broadcast events)
	redisStore := store.NewRedisStore(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// PostgreSQL Configuration
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	pgStore, err := store.NewPostgresStore(databaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}

	ctx := context.Background()
	if err := pgStore.RunMigrations(ctx); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations completed")

	// VAPID configuration: check for keys in env, or generate them
	cfg := wp.Config{
		PublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		PrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		Subject:    os.Getenv("VAPID_SUBJECT"),
	}
	if cfg.Subject == "" {
		cfg.Subject = "mailto:admin@example.com"
	}
	if cfg.PublicKey == "" || cfg.PrivateKey == "" {
		log.Println("VAPID keys not found in environment. Generating new keys...")
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			log.Fatal("Failed to generate VAPID keys:", err)
		}
		cfg.PrivateKey = privateKey
		cfg.PublicKey = publicKey
		log.Printf("Generated VAPID Keys:\nVAPID_PRIVATE_KEY=%s\nVAPID_PUBLIC_KEY=%s\n(Add these to your .env file to persist them)", privateKey, publicKey)
	}

	dispatcher, err := wp.NewDispatcher(cfg)
	if err != nil {
		log.Fatalf("Failed to resolve VAPID keys: %v", err)
	}

	concurrency := 1
	if cStr := os.Getenv("PUSH_CONCURRENCY"); cStr != "" {
		if c, err := strconv.Atoi(cStr); err == nil && c > 0 {
			concurrency = c
		}
	}
	orch := broadcast.NewOrchestrator(pgStore, pgStore, dispatcher, redisStore, concurrency)

	h := handlers.NewHandler(pgStore, pgStore, redisStore, orch, cfg)

	// Ensure a default admin user exists
	h.InitUsers(ctx)

	// Public routes
	http.HandleFunc("/api/login", h.LoginHandler)
	http.HandleFunc("/api/logout", h.LogoutHandler)
	http.HandleFunc("/api/push/vapid-key", h.GetVAPIDKeyHandler)
	http.HandleFunc("/api/push/subscribe", h.SubscribePushHandler)

	// Broadcast trigger (bearer token, admin role checked inside)
	http.HandleFunc("/api/admin/broadcast", h.BroadcastUpdateHandler)

	// Admin API routes (session protected)
	http.HandleFunc("/api/admin/users", handlers.AuthMiddleware(handlers.AdminMiddleware(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			h.GetUsersHandler(w, r)
		case http.MethodPost:
			h.CreateUserHandler(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})))
	http.HandleFunc("/api/admin/broadcasts/recent", handlers.AuthMiddleware(h.RecentBroadcastsHandler))

	// Broadcast event stream for dashboards
	http.HandleFunc("/events", handlers.AuthMiddleware(h.SSEHandler))

	// Metrics
	http.Handle("/metrics", promhttp.Handler())

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	log.Println("Listening on :" + port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}
