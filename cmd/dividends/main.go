// Year-end dividend run.
//
//	dividends -year 2024 -share-rate 10 -monthly-rate 5 -admin <uuid> [-pay]
//
// Without -pay only the dividend rows are (re)calculated; paid rows are never
// touched.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"sacco/internal/dividend"
	"sacco/internal/investment"
	"sacco/internal/ledger"
	"sacco/internal/notification"
	"sacco/internal/policy"
	"sacco/internal/repository/postgres"
	"sacco/pkg/config"
	"sacco/pkg/logger"
	"sacco/pkg/mailer"
)

func main() {
	_ = godotenv.Load()

	year := flag.Int("year", time.Now().Year()-1, "financial year")
	shareRate := flag.String("share-rate", "", "percentage paid on share capital")
	monthlyRate := flag.String("monthly-rate", "", "percentage paid on monthly investments")
	pay := flag.Bool("pay", false, "post the calculated dividends to the ledger")
	admin := flag.String("admin", "", "UUID of the administrator running the job")
	flag.Parse()

	cfg := config.Load()
	log := logger.NewWithLevel("sacco-dividends", cfg.Log.Level)
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	adminID, err := uuid.Parse(*admin)
	if err != nil {
		log.Fatal("-admin must be a UUID", map[string]interface{}{"value": *admin})
	}
	share, err := decimal.NewFromString(*shareRate)
	if err != nil {
		log.Fatal("-share-rate must be a number", map[string]interface{}{"value": *shareRate})
	}
	monthly, err := decimal.NewFromString(*monthlyRate)
	if err != nil {
		log.Fatal("-monthly-rate must be a number", map[string]interface{}{"value": *monthlyRate})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	st := postgres.NewStore(db, 5*time.Second)
	src := policy.NewSettingsSource(st, policy.FromConfig(cfg.Policy))

	var dispatcher *notification.Dispatcher
	if cfg.Email.Enabled {
		directory := notification.NewStoreDirectory(st)
		sender := mailer.New(mailer.Config{
			Host:     cfg.Email.SMTPHost,
			Port:     cfg.Email.SMTPPort,
			Username: cfg.Email.SMTPUsername,
			Password: cfg.Email.SMTPPassword,
			From:     cfg.Email.SMTPFrom,
		})
		dispatcher = notification.NewDispatcher(notification.NewService(log, directory, directory, sender), log, cfg.Email.Timeout)
		defer dispatcher.Wait()
	}

	ledgerService := ledger.NewService(st, nil, 0, dispatcher, log)
	investmentService := investment.NewService(st, src, ledgerService, nil, 0, dispatcher, log)
	dividendService := dividend.NewService(st, src, investmentService, ledgerService, dispatcher, log)

	ctx := context.Background()
	out := json.NewEncoder(os.Stdout)
	out.SetIndent("", "  ")

	report, err := dividendService.CalculateForYear(ctx, *year, share, monthly, adminID)
	if err != nil {
		log.Fatal("Dividend calculation failed", map[string]interface{}{"error": err.Error(), "year": *year})
	}
	_ = out.Encode(report)

	if !*pay {
		return
	}
	batch, err := dividendService.PayDividends(ctx, *year, adminID)
	if err != nil {
		log.Fatal("Dividend payment failed", map[string]interface{}{"error": err.Error(), "year": *year})
	}
	_ = out.Encode(batch)
}
