package main

import (
	"context"
	"log"
	"os"

	"github.com/joho/godotenv"

	"bookledger/internal/config"
	"bookledger/internal/storage"
)

// Usage: migrate [up|down|status|version]
func main() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found, using existing environment")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	db, err := storage.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	if err := storage.Goose(db, cfg.DatabaseDriver, command); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("migrate %s: done", command)
}
