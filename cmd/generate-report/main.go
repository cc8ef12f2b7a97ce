package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"bitbucket.org/mmdatafocus/agromate_backend/app"
	"bitbucket.org/mmdatafocus/agromate_backend/config"
	"bitbucket.org/mmdatafocus/agromate_backend/workflow"
)

func main() {
	date := flag.String("date", "", "Reporting date (YYYY-MM-DD). Defaults to today in APP_TIMEZONE.")
	flag.Parse()

	settings, err := config.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(2)
	}
	day, err := workflow.ReportDate(*date, time.Now(), settings.Location)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	application, err := app.New(ctx, settings, db, config.GetLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup failed: %v\n", err)
		os.Exit(1)
	}

	report, err := application.Reporter.BuildDailyReport(ctx, day)
	if err != nil {
		fmt.Fprintf(os.Stderr, "report failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Report for %s: %s\n\n%s\n", report.CreatedOn, report.URL, report.Summary)
}
