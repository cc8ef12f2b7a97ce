package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"bitbucket.org/mmdatafocus/agromate_backend/models"
)

func main() {
	dir := flag.String("dir", os.Getenv("DICTS_PATH"), "Directory holding departments.csv, operations.csv and crops.csv (default $DICTS_PATH).")
	migrate := flag.Bool("migrate", true, "Run AutoMigrate before seeding.")
	flag.Parse()

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "-dir or DICTS_PATH is required")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	if *migrate {
		if err := models.MigrateTable(db); err != nil {
			fmt.Fprintf(os.Stderr, "migration failed: %v\n", err)
			os.Exit(1)
		}
	}

	result, err := models.SeedDictionaries(ctx, db, *dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seeding failed: %v\n", err)
		os.Exit(1)
	}

	// Running services would otherwise keep serving the cached empty snapshot.
	if err := models.NewDictionaryCache(db, 0).Invalidate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to invalidate dictionary cache: %v\n", err)
	}

	fmt.Printf("Seeded departments=%d operations=%d crops=%d from %s\n",
		result.Departments, result.Operations, result.Crops, *dir)
}
