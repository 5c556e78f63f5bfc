package main

import (
	"log"
	"os"

	"github.com/rawblock/resynth-engine/internal/api"
	"github.com/rawblock/resynth-engine/internal/config"
	"github.com/rawblock/resynth-engine/internal/db"
	"github.com/rawblock/resynth-engine/internal/diag"
	"github.com/rawblock/resynth-engine/internal/resynth"
)

func main() {
	sink := diag.NewLogSink(os.Stdout, diag.Note)
	sink.Emit(diag.Note, "Starting Resynthesis Engine...")

	cfg := config.Load(sink)
	sink.Emit(diag.Note, "Default pass config loaded: matching=%s try_rewire=%v try_struct=%v try_window=%v",
		cfg.Matching, cfg.TryRewire, cfg.TryStruct, cfg.TryWindow)

	var store *db.PostgresStore
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		conn, err := db.Connect(dbURL)
		if err != nil {
			sink.Emit(diag.Warning, "Failed to connect to PostgreSQL, continuing without persisting the mapped database: %v", err)
		} else {
			store = conn
			defer store.Close()
			if err := store.InitSchema(); err != nil {
				sink.Emit(diag.Warning, "DB schema init failed: %v", err)
			}
		}
	} else {
		sink.Emit(diag.Warning, "DATABASE_URL not set, running without persistence")
	}

	wsHub := api.NewHub()
	go wsHub.Run()

	sessions := resynth.NewSessionManager()

	r := api.SetupRouter(sessions, store, wsHub, sink)

	port := getEnvOrDefault("PORT", "5339")
	sink.Emit(diag.Note, "Engine running on :%s", port)
	if err := r.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

func getEnvOrDefault(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
