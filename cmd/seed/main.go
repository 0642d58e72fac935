// Seeding tool for a development database: the sacco_settings row, two loan
// products, the standard fees and a handful of approved members.
//
// Usage (env overrides):
//
//	SEED_SACCO_NAME="Umoja SACCO" SEED_MEMBERS=5 go run ./cmd/seed
//
// Reads DATABASE_URL and the SACCO_* policy variables via sacco/pkg/config.
// Every insert is ON CONFLICT DO NOTHING, so the tool can be rerun.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"sacco/pkg/config"
	"sacco/pkg/domain"
	"sacco/pkg/logger"
)

// Fixed IDs keep reruns idempotent.
var (
	settingsID         = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	emergencyLoanID    = uuid.MustParse("00000000-0000-0000-0000-000000000101")
	developmentLoanID  = uuid.MustParse("00000000-0000-0000-0000-000000000102")
	withdrawalFeeID    = uuid.MustParse("00000000-0000-0000-0000-000000000201")
	transferFeeID      = uuid.MustParse("00000000-0000-0000-0000-000000000202")
	memberNamespace    = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")
	defaultMemberNames = [][2]string{
		{"Amina", "Odhiambo"}, {"Brian", "Mwangi"}, {"Chiku", "Njeri"},
		{"Daudi", "Kiprono"}, {"Esther", "Wanjiru"},
	}
)

func main() {
	_ = godotenv.Load()
	log := logger.New("seed-sacco")

	cfg := config.Load()
	if err := cfg.ValidateCore(); err != nil {
		log.Fatal("Invalid configuration", map[string]interface{}{"error": err.Error()})
	}
	if err := cfg.ValidatePolicy(); err != nil {
		log.Fatal("Invalid policy configuration", map[string]interface{}{"error": err.Error()})
	}

	db, err := sqlx.Connect("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatal("Failed to connect to database", map[string]interface{}{"error": err.Error()})
	}
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC()

	settings := domain.SaccoSettings{
		ID:                         settingsID,
		SaccoName:                  getenv("SEED_SACCO_NAME", "Umoja SACCO"),
		MinimumMembershipMonths:    cfg.Policy.MinimumMembershipMonths,
		ShareCapitalAmount:         cfg.Policy.ShareCapitalAmount,
		LoanMultiplier:             cfg.Policy.LoanMultiplier,
		DefaultLoanInterestRate:    cfg.Policy.DefaultLoanInterestRate,
		MaximumLoanPeriodMonths:    cfg.Policy.MaximumLoanPeriodMonths,
		RequireGuarantors:          cfg.Policy.RequireGuarantors,
		MinimumGuarantorPercentage: cfg.Policy.MinimumGuarantorPercentage,
		MinimumMonthlyInvestment:   cfg.Policy.MinimumMonthlyInvestment,
		UpdatedAt:                  now,
	}
	mustExec(ctx, db, log, "sacco_settings", `INSERT INTO sacco_settings
		(id, sacco_name, minimum_membership_months, share_capital_amount, loan_multiplier,
		 default_loan_interest_rate, maximum_loan_period_months, require_guarantors,
		 minimum_guarantor_percentage, minimum_monthly_investment, updated_at)
		VALUES (:id, :sacco_name, :minimum_membership_months, :share_capital_amount, :loan_multiplier,
		 :default_loan_interest_rate, :maximum_loan_period_months, :require_guarantors,
		 :minimum_guarantor_percentage, :minimum_monthly_investment, :updated_at)
		ON CONFLICT (id) DO NOTHING`, settings)

	loanTypes := []domain.LoanType{
		{
			ID: emergencyLoanID, Name: "Emergency", InterestRate: decimal.NewFromInt(10),
			MaximumAmount: decimal.NewFromInt(50_000), MaximumPeriodMonths: 6,
			MinimumMembershipMonths: 1, RequiresGuarantor: false, IsActive: true, CreatedAt: now,
		},
		{
			ID: developmentLoanID, Name: "Development", InterestRate: decimal.NewFromInt(12),
			MaximumAmount: decimal.NewFromInt(500_000), MaximumPeriodMonths: 24,
			MinimumMembershipMonths: 6, RequiresGuarantor: true, IsActive: true, CreatedAt: now,
		},
	}
	for _, lt := range loanTypes {
		mustExec(ctx, db, log, "loan_types", `INSERT INTO loan_types
			(id, name, interest_rate, maximum_amount, maximum_period_months,
			 minimum_membership_months, requires_guarantor, is_active, created_at)
			VALUES (:id, :name, :interest_rate, :maximum_amount, :maximum_period_months,
			 :minimum_membership_months, :requires_guarantor, :is_active, :created_at)
			ON CONFLICT (id) DO NOTHING`, lt)
	}

	fixed := decimal.NewFromInt(30)
	rate := decimal.RequireFromString("1.5")
	minFee := decimal.NewFromInt(10)
	maxFee := decimal.NewFromInt(500)
	fees := []domain.TransactionFee{
		{ID: withdrawalFeeID, FeeType: "withdrawal", Description: "Cash withdrawal", CalculationMethod: domain.FeeCalculationFixed, FixedAmount: &fixed, IsActive: true},
		{ID: transferFeeID, FeeType: "transfer", Description: "Member to member transfer", CalculationMethod: domain.FeeCalculationPercentage, PercentageRate: &rate, MinimumFee: &minFee, MaximumFee: &maxFee, IsActive: true},
	}
	for _, f := range fees {
		mustExec(ctx, db, log, "transaction_fees", `INSERT INTO transaction_fees
			(id, fee_type, description, calculation_method, fixed_amount, percentage_rate,
			 minimum_fee, maximum_fee, is_active)
			VALUES (:id, :fee_type, :description, :calculation_method, :fixed_amount, :percentage_rate,
			 :minimum_fee, :maximum_fee, :is_active)
			ON CONFLICT (id) DO NOTHING`, f)
	}

	count := getenvInt("SEED_MEMBERS", len(defaultMemberNames))
	approved := now.AddDate(-1, 0, 0)
	for i := 0; i < count; i++ {
		first, last := fmt.Sprintf("Member%d", i+1), "Test"
		if i < len(defaultMemberNames) {
			first, last = defaultMemberNames[i][0], defaultMemberNames[i][1]
		}
		number := fmt.Sprintf("M-%04d", i+1)
		m := domain.Member{
			ID:           uuid.NewSHA1(memberNamespace, []byte(number)),
			MemberNumber: number,
			FirstName:    first,
			LastName:     last,
			Email:        fmt.Sprintf("%s.%s@example.com", first, last),
			Status:       domain.MemberStatusApproved,
			DateApproved: &approved,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		mustExec(ctx, db, log, "members", `INSERT INTO members
			(id, member_number, first_name, last_name, email, phone, status, date_approved, created_at, updated_at)
			VALUES (:id, :member_number, :first_name, :last_name, :email, :phone, :status, :date_approved, :created_at, :updated_at)
			ON CONFLICT (id) DO NOTHING`, m)
		fmt.Printf("member %s %s %s\n", m.MemberNumber, m.ID, m.FullName())
	}

	log.Info("Seed complete", map[string]interface{}{"members": count})
}

func mustExec(ctx context.Context, db *sqlx.DB, log logger.Logger, table, query string, arg interface{}) {
	if _, err := db.NamedExecContext(ctx, query, arg); err != nil {
		log.Fatal("Seed insert failed", map[string]interface{}{"table": table, "error": err.Error()})
	}
}

func getenv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func getenvInt(k string, d int) int {
	if v, err := strconv.Atoi(os.Getenv(k)); err == nil && v >= 0 {
		return v
	}
	return d
}
