// Package schedule implements the 15-day payment cadence of a loan: due
// dates, period classification, lateness, and the flat per-period expected
// payment. All functions are pure; dates are treated as calendar days.
package schedule

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aalvarez351/prestamos/pkg/models"
)

// FrequencyDays is the fixed billing cadence. Every period of every loan is
// exactly this long.
const FrequencyDays = 15

// periodsPerYear annualizes the nominal rate to one 15-day period. This is a
// fixed policy constant (365/15 rounded down), not derived from the loan's
// plazo; all periods of a loan share one flat interest portion regardless of
// the declining balance.
const periodsPerYear = 24

var (
	oneHundred = decimal.NewFromInt(100)
	daysInYear = decimal.NewFromInt(365)
)

// Status is the derived state of a single period.
type Status string

const (
	StatusPending Status = "pending"
	StatusPaid    Status = "paid"
	StatusOverdue Status = "overdue"
)

// Period is one 15-day billing cycle of a loan's term. Periods are derived,
// never persisted.
type Period struct {
	Number         int             `json:"period_number"`
	StartDate      time.Time       `json:"start_date"`
	DueDate        time.Time       `json:"due_date"`
	ExpectedAmount decimal.Decimal `json:"expected_amount"`
	TotalPaid      decimal.Decimal `json:"total_paid"`
	Status         Status          `json:"status"`
	LateDays       int             `json:"late_days"`
}

// midnight truncates a timestamp to its calendar day in UTC so day arithmetic
// is exact.
func midnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b, negative when b
// precedes a.
func daysBetween(a, b time.Time) int {
	return int(midnight(b).Sub(midnight(a)).Hours() / 24)
}

// floorDiv divides rounding toward negative infinity. Go's integer division
// truncates toward zero, which would misclassify pre-origination dates.
func floorDiv(a, b int) int {
	q := a / b
	if a%b != 0 && (a < 0) != (b < 0) {
		q--
	}
	return q
}

// DueDate returns the due date of the given period: creation plus
// periodNumber times the cadence. Total for any periodNumber >= 1.
func DueDate(creation time.Time, periodNumber int) time.Time {
	return midnight(creation).AddDate(0, 0, periodNumber*FrequencyDays)
}

// PeriodNumberFor returns the period a date falls in, counted from the loan's
// creation. Dates before creation yield a number <= 0; callers must reject
// those as pre-origination, never clamp them to period 1.
func PeriodNumberFor(creation, date time.Time) int {
	return floorDiv(daysBetween(creation, date), FrequencyDays) + 1
}

// LateDays returns the days a payment landed past its due date. Early or
// on-time payment yields 0; the result is never negative.
func LateDays(dueDate, actualDate time.Time) int {
	d := daysBetween(dueDate, actualDate)
	if d < 0 {
		return 0
	}
	return d
}

// PrincipalPortion is the principal share of one expected installment:
// capital_inicial / plazo. The loan must have valid terms.
func PrincipalPortion(loan *models.Loan) decimal.Decimal {
	return loan.Principal.Div(decimal.NewFromInt(int64(loan.Term)))
}

// InterestPortion is the flat interest charged per 15-day period:
// capital_inicial * (tasa_interes/100) / 24. It does not shrink as the
// balance declines; this is the simplified flat-interest policy of the
// lending system, not a standard amortizing formula.
func InterestPortion(loan *models.Loan) decimal.Decimal {
	return loan.Principal.Mul(loan.InterestRate).Div(oneHundred).Div(decimal.NewFromInt(periodsPerYear))
}

// ExpectedPayment is the flat amount due each period: the principal share
// plus the period interest. Identical for every period of a loan.
func ExpectedPayment(loan *models.Loan) decimal.Decimal {
	return PrincipalPortion(loan).Add(InterestPortion(loan))
}

// LateCharge computes the late charge accrued for a payment lateDays past
// due, after the grace period: capital * (tasa_mora/100) * chargeableDays / 365,
// rounded to cents. Zero within the grace period.
func LateCharge(loan *models.Loan, lateDays int) decimal.Decimal {
	chargeable := lateDays - loan.LateTerms.GraceDays
	if chargeable <= 0 {
		return decimal.Zero
	}
	return loan.Principal.
		Mul(loan.LateTerms.LateRate).Div(oneHundred).
		Mul(decimal.NewFromInt(int64(chargeable))).Div(daysInYear).
		Round(2)
}

// Generate builds the full ordered period list for a loan: exactly plazo
// periods, contiguous from 1, each 15 days long, status pending and nothing
// paid. Deterministic and free of I/O; calling it twice yields identical
// output.
func Generate(loan *models.Loan) ([]Period, error) {
	if err := loan.Validate(); err != nil {
		return nil, fmt.Errorf("cannot generate schedule: %w", err)
	}

	expected := ExpectedPayment(loan)
	periods := make([]Period, loan.Term)
	for i := 0; i < loan.Term; i++ {
		n := i + 1
		start := midnight(loan.CreatedAt)
		if n > 1 {
			start = DueDate(loan.CreatedAt, n-1)
		}
		periods[i] = Period{
			Number:         n,
			StartDate:      start,
			DueDate:        DueDate(loan.CreatedAt, n),
			ExpectedAmount: expected,
			TotalPaid:      decimal.Zero,
			Status:         StatusPending,
		}
	}
	return periods, nil
}
