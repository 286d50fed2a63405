package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/anronharry/TG-bot/internal/config"
	"github.com/anronharry/TG-bot/internal/storage"
)

func main() {
	migrate := flag.Bool("migrate", false, "apply the database schema")
	seed := flag.Bool("seed", false, "insert catalog seeds that are not present yet")
	genkey := flag.Bool("genkey", false, "print a random value suitable for ENCRYPTION_KEY")
	flag.Parse()

	if !*migrate && !*seed && !*genkey {
		flag.Usage()
		os.Exit(2)
	}

	if *genkey {
		key, err := storage.GenerateKey(32)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to generate key: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(key)
		if !*migrate && !*seed {
			return
		}
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		fmt.Fprintf(os.Stderr, "ERROR: DATABASE_URL must be set\n")
		os.Exit(1)
	}

	// Connect to database
	fmt.Println("Connecting to database...")
	dbConfig := storage.DefaultDBConfig()
	dbConfig.DSN = dsn
	dbConfig.MaxOpenConns = 2
	dbConfig.CatalogCacheSize = 10 // Minimal cache for init tool

	db, err := storage.NewDB(dbConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if *migrate {
		fmt.Println("Applying schema...")
		if err := db.Migrate(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: Failed to migrate: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Schema is up to date")
	}

	if *seed {
		if err := seedCatalog(ctx, db); err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
	}
}

func seedCatalog(ctx context.Context, db *storage.DB) error {
	customs, err := config.ParseCustomAPIConfigs(os.Getenv("CUSTOM_API_CONFIGS"))
	if err != nil {
		return err
	}
	cfg := &config.Config{
		CatalogFile:      os.Getenv("CATALOG_FILE"),
		CustomAPIConfigs: customs,
	}
	descriptors, err := cfg.Descriptors()
	if err != nil {
		return err
	}

	var enc *storage.Encryption
	if secret := os.Getenv("ENCRYPTION_KEY"); secret != "" {
		enc, err = storage.NewEncryptionFromSecret(secret)
		if err != nil {
			return fmt.Errorf("invalid ENCRYPTION_KEY: %w", err)
		}
	} else {
		fmt.Println("WARNING: ENCRYPTION_KEY not set, seeding entries without stored keys")
	}

	added, err := db.NewCatalogRepository().SeedDescriptors(ctx, descriptors, enc)
	if err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}
	fmt.Printf("Seeded %d new catalog entries (%d configured)\n", added, len(descriptors))
	return nil
}
