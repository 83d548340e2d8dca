package main

import (
	"context"
	"log"
	"time"

	"github.com/citysafe/planning-backend/internal/app"
)

func main() {
	ctx := context.Background()
	a, err := app.New(ctx)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.Close(shutdownCtx)
	}()

	if err := a.Run(); err != nil {
		a.Log.Fatal("server exited", "error", err)
	}
}
