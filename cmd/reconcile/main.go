// Daily reconciliation: rebuilds every investment summary and member balance
// from the posted history, then reports ledger invariant violations.
//
// Exits with status 1 when discrepancies are found.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"sacco/internal/investment"
	"sacco/internal/ledger"
	"sacco/internal/policy"
	"sacco/internal/repository/postgres"
	"sacco/pkg/config"
	"sacco/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	staleAfter := flag.Duration("stale-after", 24*time.Hour, "report pending transactions older than this")
	skipRebuild := flag.Bool("report-only", false, "skip the summary and balance rebuild")
	flag.Parse()

	cfg := config.Load()
	log := logger.NewWithLevel("sacco-reconcile", cfg.Log.Level)
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	ctx := context.Background()
	st := postgres.NewStore(db, 5*time.Second)
	ledgerService := ledger.NewService(st, nil, 0, nil, log)
	investmentService := investment.NewService(st, policy.NewSettingsSource(st, policy.FromConfig(cfg.Policy)), ledgerService, nil, 0, nil, log)

	fmt.Println("=========================================================")
	fmt.Println("SACCO LEDGER - DAILY RECONCILIATION REPORT")
	fmt.Printf("Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Println("=========================================================")

	if !*skipRebuild {
		fmt.Println("\n[0] Rebuilding projections")
		n, err := investmentService.Rebuild(ctx)
		if err != nil {
			log.Fatal("Summary rebuild failed", map[string]interface{}{"error": err.Error(), "rebuilt": n})
		}
		fmt.Printf("    - investment summaries: %d\n", n)
		n, err = ledgerService.Rebuild(ctx)
		if err != nil {
			log.Fatal("Balance rebuild failed", map[string]interface{}{"error": err.Error(), "rebuilt": n})
		}
		fmt.Printf("    - member balances:      %d\n", n)
	}

	report, err := ledgerService.Reconcile(ctx, time.Now().Add(-*staleAfter))
	if err != nil {
		log.Fatal("Reconciliation failed", map[string]interface{}{"error": err.Error()})
	}

	fmt.Println("\n[1] Total Member Balances")
	fmt.Printf("    - %d members, %s\n", report.Members, report.TotalBalance.StringFixed(2))

	fmt.Println("\n[2] Negative Balance Check")
	for _, b := range report.NegativeBalances {
		fmt.Printf("    [ALERT] Member %s has NEGATIVE balance: current %s, available %s\n",
			b.MemberID, b.CurrentBalance.StringFixed(2), b.AvailableBalance.StringFixed(2))
	}
	if len(report.NegativeBalances) == 0 {
		fmt.Println("    [PASS] No negative balances detected.")
	}

	fmt.Println("\n[3] Loan Balance Check (balance_remaining = total - paid)")
	for _, d := range report.LoanDrift {
		fmt.Printf("    [ALERT] Loan %s stores %s, expected %s\n", d.Number, d.Stored.StringFixed(2), d.Expected.StringFixed(2))
	}
	if len(report.LoanDrift) == 0 {
		fmt.Println("    [PASS] Every loan balance matches its payments.")
	}

	fmt.Printf("\n[4] Stuck Transactions Check (>%s Pending)\n", staleAfter.String())
	for _, t := range report.StalePending {
		fmt.Printf("    [WARN] Transaction %s pending since %s (%s %s)\n",
			t.TransactionID, t.CreatedAt.Format(time.RFC3339), t.Type, t.Amount.StringFixed(2))
	}
	if len(report.StalePending) == 0 {
		fmt.Println("    [PASS] No stuck transactions detected.")
	}

	fmt.Println("\n=========================================================")
	if !report.Clean() {
		fmt.Println("RECONCILIATION COMPLETE - DISCREPANCIES FOUND")
		os.Exit(1)
	}
	fmt.Println("RECONCILIATION COMPLETE")
}
