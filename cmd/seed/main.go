package main

import (
	"context"
	"flag"
	stdlog "log"

	"github.com/citysafe/planning-backend/internal/db"
	"github.com/citysafe/planning-backend/internal/platform/envutil"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/seed"
)

func main() {
	dir := flag.String("dir", envutil.Str("SEED_DIR", "./seed-data"), "directory holding the seed CSV files")
	flag.Parse()

	log, err := logger.New(envutil.Str("APP_MODE", "development"))
	if err != nil {
		stdlog.Fatalf("init logger: %v", err)
	}

	pg, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("postgres connection failed", "error", err)
	}
	if err := pg.AutoMigrateAll(); err != nil {
		log.Fatal("migration failed", "error", err)
	}

	loader := seed.NewLoader(pg.DB(), log, *dir)
	if err := loader.Run(context.Background()); err != nil {
		log.Fatal("seed failed", "error", err)
	}
}
