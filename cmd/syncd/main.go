package main

import (
	"socialsync/internal/logger"
	"socialsync/internal/transport/http"
)

func main() {
	if err := http.Run(); err != nil {
		logger.Fatalf("Server failed: %v", err)
	}
}
