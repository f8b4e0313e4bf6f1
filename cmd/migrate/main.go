package main

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jstittsworth/nba-projections/internal/ingest"
	"github.com/jstittsworth/nba-projections/internal/models"
	"github.com/jstittsworth/nba-projections/pkg/config"
	"github.com/jstittsworth/nba-projections/pkg/database"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: migrate [up|down|import <dir>]")
	}

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Connect to database
	db, err := database.NewConnection(cfg.DatabaseURL, cfg.IsDevelopment())
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	command := os.Args[1]

	switch command {
	case "up":
		if err := runMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		logrus.Info("Migrations completed successfully")

	case "down":
		if err := dropTables(db); err != nil {
			logrus.Fatalf("Failed to drop tables: %v", err)
		}
		logrus.Info("Tables dropped successfully")

	case "import":
		if len(os.Args) < 3 {
			log.Fatal("Usage: migrate import <dir of YYYY-MM-DD.csv files>")
		}
		if err := runMigrations(db); err != nil {
			logrus.Fatalf("Failed to run migrations: %v", err)
		}
		if err := importDailyCSVs(db, cfg, os.Args[2]); err != nil {
			logrus.Fatalf("Failed to import CSVs: %v", err)
		}
		logrus.Info("Import completed successfully")

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}

func runMigrations(db *database.DB) error {
	return db.AutoMigrate(
		&models.StatLine{},
		&models.TrainingRun{},
	)
}

func dropTables(db *database.DB) error {
	return db.Migrator().DropTable(
		&models.TrainingRun{},
		&models.StatLine{},
	)
}

// importDailyCSVs bulk-loads historical daily files. Each file must be named
// YYYY-MM-DD.csv; the name supplies the ingest date.
func importDailyCSVs(db *database.DB, cfg *config.Config, dir string) error {
	ingestor := ingest.NewIngestor(db, cfg.DataDir, logrus.StandardLogger())

	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".csv") {
			continue
		}
		date := ingest.ParseDate(strings.TrimSuffix(name, ".csv"))

		f, err := os.Open(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		result, err := ingestor.IngestDaily(context.Background(), f, date)
		f.Close()
		if err != nil {
			logrus.Warnf("Skipping %s: %v", name, err)
			continue
		}
		logrus.Infof("Imported %s: %d rows", name, result.RowsAccepted)
	}
	return nil
}
