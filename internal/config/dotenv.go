package config

import (
	"log"

	"github.com/joho/godotenv"
)

func loadDotenv() {
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}
}
