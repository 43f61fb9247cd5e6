package main

import (
	"github.com/joho/godotenv"
)

func main() {
	// Environment for bucket credentials may come from a .env file.
	_ = godotenv.Load()
	Execute()
}
