package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"duelchat/backend/internal/api/handler"
	"duelchat/backend/internal/feed"
	"duelchat/backend/internal/game"
	"duelchat/backend/internal/localization"
	"duelchat/backend/internal/models"
	"duelchat/backend/internal/relay"
	"duelchat/backend/internal/sched"
	"duelchat/backend/internal/storage"
	"duelchat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies() (*gorm.DB, *redis.Client) {
	// 1. PostgreSQL
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		envOr("DB_HOST", "localhost"),
		envOr("DB_USER", "user"),
		envOr("DB_PASSWORD", "password"),
		envOr("DB_NAME", "duelchatdb"),
		envOr("DB_PORT", "5432"),
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	// 2. Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     envOr("REDIS_ADDR", "localhost:6379"),
		Password: "",
		DB:       0,
	})

	// Перевірка з'єднання Redis
	ctx := context.Background()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	// 3. Міграції (Створення таблиць)
	err = db.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.Chat{},
		&models.Message{},
		&models.Block{},
		&models.Game{},
		&models.Report{},
		&models.Payment{},
	)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	log.Println("Starting DuelChat Backend...")

	err := godotenv.Load()
	if err != nil {
		log.Println("Warning: Error loading .env file")
	}

	// 1. Ініціалізація залежностей
	db, rdb := setupDependencies()
	s := storage.NewStorageService(db, rdb)

	loc, err := localization.NewLocalizer()
	if err != nil {
		log.Fatalf("Failed to load locales: %v", err)
	}

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		log.Fatal("TELEGRAM_BOT_TOKEN не встановлено!")
	}

	// 2. Ядро: диспетчер, relay, ігровий рушій, таймери
	redisAddr := envOr("REDIS_ADDR", "localhost:6379")
	schedClient := sched.NewClient(redisAddr)
	defer schedClient.Close()

	botService, err := telegram.NewBotService(botToken, s)
	if err != nil {
		log.Fatalf("Не вдалося запустити Telegram-бота: %v", err)
	}
	dispatcher := telegram.NewClient(botService.BotAPI, s)
	relaySvc := relay.NewService(s, dispatcher)
	engine := game.NewEngine(s, dispatcher, schedClient, loc)

	botService.Relay = relaySvc
	botService.Game = engine
	botService.Dispatcher = dispatcher

	// 3. Запуск основних Goroutines
	hub := feed.NewHub(s)
	go hub.Run()
	go botService.Run()

	timeoutSrv, timeoutMux := sched.NewServer(redisAddr, engine)
	go func() {
		if err := timeoutSrv.Run(timeoutMux); err != nil {
			log.Fatalf("Timeout worker stopped: %v", err)
		}
	}()

	// 4. Налаштування Gin та роутингу
	r := gin.Default()
	h := handler.NewHandler(hub, s)
	h.RegisterRoutes(r)

	// Запуск HTTP-сервера
	server := &http.Server{
		Addr:           ":8080",
		Handler:        r,
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	log.Fatal(server.ListenAndServe())
}
