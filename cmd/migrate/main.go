package main

import (
	"flag"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/example/campaign-dispatch/internal/db"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	_ = godotenv.Load()

	if err := db.Migrate(os.Getenv("DATABASE_URL"), *direction); err != nil {
		log.Fatalf("migrate %s: %v", *direction, err)
	}
	log.Printf("migrations applied (%s)", *direction)
}
