package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/arvinsg/index-management/internal/admission"
	"github.com/arvinsg/index-management/internal/api"
	"github.com/arvinsg/index-management/internal/backends"
	"github.com/arvinsg/index-management/internal/service"
)

const defaultPort = 8080

func main() {
	// Load environment variables
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil {
		log.Info("The .env file not found.")
	}

	if lvl, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(lvl)
	}

	settings, err := admission.SettingsFromEnv()
	if err != nil {
		log.Fatalf("Failed to load admission settings: %v", err)
	}

	docStore, err := backends.DocStoreFromEnv()
	if err != nil {
		log.Fatalf("Failed to initialize doc store: %v", err)
	}

	svc := service.New(docStore, admission.NewEngine(docStore, settings))

	port := defaultPort
	if p := os.Getenv("PORT"); p != "" {
		port, err = strconv.Atoi(p)
		if err != nil {
			log.Fatalf("Invalid PORT: %v", err)
		}
	}
	api.RunServer(port, svc)
}
