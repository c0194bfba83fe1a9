// Standalone migration runner for CI/CD and production, where the API server
// never touches the schema itself.
package main

import (
	"log"

	"github.com/chronicae/chronicler/internal/infrastructure/database"
	"github.com/chronicae/chronicler/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	applied, err := database.Migrate(db)
	if err != nil {
		log.Fatalf("Failed to apply migrations: %v", err)
	}
	log.Printf("✅ Applied %d migration(s)", applied)
}
