package main

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"duelchat/backend/internal/models"
	"duelchat/backend/internal/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})

	storageSvc := storage.NewStorageService(db, rdb)

	if len(os.Args) < 2 {
		fmt.Println("Usage: admin <command> [args]")
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "ban":
		if len(os.Args) < 3 {
			fmt.Println("Usage: admin ban <user_id> [duration_in_hours]")
			os.Exit(1)
		}
		userID := os.Args[2]
		var duration int
		if len(os.Args) > 3 {
			var err error
			duration, err = strconv.Atoi(os.Args[3])
			if err != nil {
				fmt.Println("Invalid duration. Please provide an integer.")
				os.Exit(1)
			}
		}
		if err := banUser(storageSvc, userID, duration); err != nil {
			log.Fatalf("Error banning user: %v", err)
		}
		fmt.Printf("User %s has been banned.\n", userID)

	case "unban":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin unban <user_id>")
			os.Exit(1)
		}
		userID := os.Args[2]
		if err := unbanUser(storageSvc, userID); err != nil {
			log.Fatalf("Error unbanning user: %v", err)
		}
		fmt.Printf("User %s has been unbanned.\n", userID)

	case "block-pair":
		if len(os.Args) != 4 {
			fmt.Println("Usage: admin block-pair <blocker_id> <blocked_id>")
			os.Exit(1)
		}
		if err := storageSvc.BlockUser(os.Args[2], os.Args[3]); err != nil {
			log.Fatalf("Error blocking pair: %v", err)
		}
		fmt.Printf("Block %s -> %s recorded.\n", os.Args[2], os.Args[3])

	case "grant-premium":
		if len(os.Args) < 4 {
			fmt.Println("Usage: admin grant-premium <user_id> <days> [plan]")
			os.Exit(1)
		}
		userID := os.Args[2]
		days, err := strconv.Atoi(os.Args[3])
		if err != nil || days <= 0 {
			fmt.Println("Invalid day count. Please provide a positive integer.")
			os.Exit(1)
		}
		plan := "manual"
		if len(os.Args) > 4 {
			plan = os.Args[4]
		}
		if err := grantPremium(storageSvc, userID, days, plan); err != nil {
			log.Fatalf("Error granting premium: %v", err)
		}
		fmt.Printf("User %s has premium for %d days.\n", userID, days)

	case "reports":
		reports, err := storageSvc.ListReports("new")
		if err != nil {
			log.Fatalf("Error listing reports: %v", err)
		}
		for _, r := range reports {
			fmt.Printf("#%d chat=%s reporter=%s reported=%s reason=%q\n",
				r.ID, r.ChatID, r.ReporterID, r.ReportedID, r.Reason)
		}

	case "resolve-report":
		if len(os.Args) != 3 {
			fmt.Println("Usage: admin resolve-report <report_id>")
			os.Exit(1)
		}
		reportID, err := strconv.Atoi(os.Args[2])
		if err != nil {
			fmt.Println("Invalid report ID. Please provide an integer.")
			os.Exit(1)
		}
		if err := storageSvc.ResolveReport(uint(reportID)); err != nil {
			log.Fatalf("Error resolving report: %v", err)
		}
		fmt.Printf("Report %d has been resolved.\n", reportID)

	default:
		fmt.Println("Unknown command")
		os.Exit(1)
	}
}

// banUser sets the durable flag in PostgreSQL and the fast-path flag in Redis.
func banUser(s *storage.Service, userID string, durationHours int) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.Banned = true
	var ttl time.Duration
	if durationHours > 0 {
		ttl = time.Duration(durationHours) * time.Hour
		until := time.Now().Add(ttl)
		user.BanUntil = &until
	}
	if err := s.UpdateUser(user); err != nil {
		return err
	}
	return s.SetUserBanned(userID, ttl)
}

func unbanUser(s *storage.Service, userID string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	user.Banned = false
	user.BanUntil = nil
	if err := s.UpdateUser(user); err != nil {
		return err
	}
	return s.ClearUserBan(userID)
}

// grantPremium extends the premium window and records the payment audit row.
func grantPremium(s *storage.Service, userID string, days int, plan string) error {
	user, err := s.GetUserByID(userID)
	if err != nil {
		return err
	}
	until := time.Now().AddDate(0, 0, days)
	if user.PremiumUntil != nil && user.PremiumUntil.After(time.Now()) {
		until = user.PremiumUntil.AddDate(0, 0, days)
	}
	user.Premium = true
	user.PremiumUntil = &until
	if err := s.UpdateUser(user); err != nil {
		return err
	}
	return s.AddPayment(&models.Payment{
		UserID:    userID,
		Plan:      plan,
		Method:    "admin",
		CreatedAt: time.Now(),
	})
}
