package main

import (
	"log"

	"github.com/aussiebroadwan/jwtclient/internal/app"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	cfg := app.LoadServerConfig()

	application, err := app.NewServer(cfg)
	if err != nil {
		log.Fatalf("failed to initialize dev server: %v", err)
	}

	if err := application.Run(); err != nil {
		log.Fatalf("dev server error: %v", err)
	}
}
