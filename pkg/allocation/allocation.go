// Package allocation splits a single cash receipt into typed sub-payments
// following a fixed priority waterfall: outstanding arrears, newly accrued
// late charges, period interest, then principal. Arrears go first so a new
// payment cannot be swallowed by principal while penalties compound;
// interest precedes principal per simple-interest convention.
package allocation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aalvarez351/prestamos/pkg/metrics"
	"github.com/aalvarez351/prestamos/pkg/models"
	"github.com/aalvarez351/prestamos/pkg/schedule"
)

// Receipt is one incoming cash payment before allocation.
type Receipt struct {
	Date      time.Time       `json:"fecha"`
	Amount    decimal.Decimal `json:"monto"`
	Reference string          `json:"comprobante"`
}

// Allocate splits the receipt across the waterfall and returns the ordered
// sub-payment records to persist. The records sum exactly to the receipt
// amount; steps with nothing eligible, or reached with no cash left, emit no
// record. Every record carries the period and lateness resolved from the
// receipt's own date so later aggregation can re-bucket correctly.
//
// All cash left after arrears, late charges and interest falls through to
// principal, even past the remaining balance; overpayment is accepted and
// left visible, never clamped.
func Allocate(loan *models.Loan, history []models.Payment, receipt Receipt) ([]models.Payment, error) {
	if err := loan.Validate(); err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}
	if receipt.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("allocate: monto must be positive, got %s", receipt.Amount)
	}

	periodNumber := schedule.PeriodNumberFor(loan.CreatedAt, receipt.Date)
	if periodNumber <= 0 {
		return nil, fmt.Errorf("allocate: %w (fecha %s, fecha_creacion %s)",
			models.ErrPaymentBeforeOrigination,
			receipt.Date.Format("2006-01-02"), loan.CreatedAt.Format("2006-01-02"))
	}

	dueDate := schedule.DueDate(loan.CreatedAt, periodNumber)
	lateDays := schedule.LateDays(dueDate, receipt.Date)

	// Arrears come from the aggregator's running totals over the prior
	// history, not re-derived ad hoc here.
	prior, err := metrics.Compute(loan, history, receipt.Date)
	if err != nil {
		return nil, fmt.Errorf("allocate: %w", err)
	}

	reference := receipt.Reference
	if reference == "" {
		reference = uuid.NewString()
	}

	record := func(t models.PaymentType, amount decimal.Decimal) models.Payment {
		return models.Payment{
			ID:           uuid.New(),
			LoanID:       loan.ID,
			Date:         receipt.Date,
			Amount:       amount,
			Type:         t,
			PeriodNumber: periodNumber,
			LateDays:     lateDays,
			Reference:    reference,
		}
	}

	remaining := receipt.Amount.Round(2)
	var out []models.Payment

	// Steps 2 and 3 both produce "mora"; a receipt touches each type at most
	// once, so they share one record.
	lateChargeDue := prior.ArrearsOutstanding.Add(schedule.LateCharge(loan, lateDays))
	if paid := capAt(lateChargeDue, remaining); paid.IsPositive() {
		out = append(out, record(models.PaymentTypeLateCharge, paid))
		remaining = remaining.Sub(paid)
	}

	interestDue := schedule.InterestPortion(loan).Round(2)
	if paid := capAt(interestDue, remaining); paid.IsPositive() {
		out = append(out, record(models.PaymentTypeInterest, paid))
		remaining = remaining.Sub(paid)
	}

	// Principal is the terminal bucket: whatever is left, including any
	// rounding residue, lands here.
	if remaining.IsPositive() {
		out = append(out, record(models.PaymentTypePrincipal, remaining))
	}

	return out, nil
}

// capAt limits a bucket's take to the cash still available.
func capAt(need, available decimal.Decimal) decimal.Decimal {
	if need.GreaterThan(available) {
		return available
	}
	return need
}
