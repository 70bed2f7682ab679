// Package metrics folds a loan and its full payment history into per-period
// statuses and loan-level figures. Every call recomputes from scratch; there
// is no incremental state to drift out of sync with the stored summary.
package metrics

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aalvarez351/prestamos/pkg/models"
	"github.com/aalvarez351/prestamos/pkg/schedule"
)

// LoanState is the derived status snapshot of a loan.
type LoanState string

const (
	LoanCurrent LoanState = "current"
	LoanOverdue LoanState = "overdue"
	LoanPaid    LoanState = "paid"
)

// Metrics is the full recomputed view of a loan against its payment history.
type Metrics struct {
	ExpectedPaymentAmount decimal.Decimal `json:"expected_payment_amount"`

	TotalPaid       decimal.Decimal `json:"total_paid"`
	PrincipalPaid   decimal.Decimal `json:"principal_paid"`
	InterestPaid    decimal.Decimal `json:"interest_paid"`
	LateChargesPaid decimal.Decimal `json:"late_charges_paid"`

	// LateChargesAccrued is the sum of late charges that came due at each
	// past receipt; ArrearsOutstanding is the accrued-but-unpaid remainder.
	LateChargesAccrued decimal.Decimal `json:"late_charges_accrued"`
	ArrearsOutstanding decimal.Decimal `json:"arrears_outstanding"`

	// RemainingPrincipal is never clamped: overpayment drives it negative so
	// the condition stays visible to operators.
	RemainingPrincipal decimal.Decimal `json:"remaining_principal"`

	TotalPeriods   int `json:"total_periods"`
	PaidPeriods    int `json:"paid_periods"`
	OverduePeriods int `json:"overdue_periods"`
	PendingPeriods int `json:"pending_periods"`

	AverageLateDays int `json:"average_late_days"`
	TotalLateDays   int `json:"total_late_days"`

	PaymentCompletionRate float64 `json:"payment_completion_rate"`
	OverdueRate           float64 `json:"overdue_rate"`

	LoanState LoanState `json:"loan_status"`

	Periods []schedule.Period `json:"payment_periods"`

	// Unassigned holds payments whose period resolves outside [1, plazo]
	// (pre-origination or beyond the nominal term). They are counted in the
	// money totals above but excluded from period bucketing, surfaced here
	// for investigation instead of silently dropped.
	Unassigned []models.Payment `json:"unassigned_payments,omitempty"`
}

// StoredStatus maps the derived state to the estado value kept on the loan
// record.
func (m *Metrics) StoredStatus() models.LoanStatus {
	switch m.LoanState {
	case LoanPaid:
		return models.LoanStatusPaid
	case LoanOverdue:
		return models.LoanStatusOverdue
	default:
		return models.LoanStatusActive
	}
}

// Compute derives the full metrics view of a loan as of the given date. It is
// pure and idempotent: the same loan and history always produce the same
// output.
func Compute(loan *models.Loan, payments []models.Payment, asOf time.Time) (*Metrics, error) {
	periods, err := schedule.Generate(loan)
	if err != nil {
		return nil, fmt.Errorf("compute metrics: %w", err)
	}

	m := &Metrics{
		ExpectedPaymentAmount: schedule.ExpectedPayment(loan),
		TotalPaid:             decimal.Zero,
		PrincipalPaid:         decimal.Zero,
		InterestPaid:          decimal.Zero,
		LateChargesPaid:       decimal.Zero,
		LateChargesAccrued:    decimal.Zero,
		ArrearsOutstanding:    decimal.Zero,
		TotalPeriods:          loan.Term,
		Periods:               periods,
	}

	// Latest payment date per period decides the lateness of a paid period.
	latest := make(map[int]time.Time)

	for _, p := range payments {
		m.TotalPaid = m.TotalPaid.Add(p.Amount)
		switch p.Type {
		case models.PaymentTypePrincipal:
			m.PrincipalPaid = m.PrincipalPaid.Add(p.Amount)
		case models.PaymentTypeInterest:
			m.InterestPaid = m.InterestPaid.Add(p.Amount)
		case models.PaymentTypeLateCharge:
			m.LateChargesPaid = m.LateChargesPaid.Add(p.Amount)
		}

		n := p.PeriodNumber
		if n == 0 {
			n = schedule.PeriodNumberFor(loan.CreatedAt, p.Date)
		}
		if n < 1 || n > loan.Term {
			m.Unassigned = append(m.Unassigned, p)
			continue
		}
		periods[n-1].TotalPaid = periods[n-1].TotalPaid.Add(p.Amount)
		if t, ok := latest[n]; !ok || p.Date.After(t) {
			latest[n] = p.Date
		}
	}

	m.LateChargesAccrued = accruedLateCharges(loan, payments)
	m.ArrearsOutstanding = m.LateChargesAccrued.Sub(m.LateChargesPaid)
	if m.ArrearsOutstanding.IsNegative() {
		m.ArrearsOutstanding = decimal.Zero
	}

	for i := range periods {
		p := &periods[i]
		switch {
		case p.TotalPaid.GreaterThanOrEqual(p.ExpectedAmount):
			p.Status = schedule.StatusPaid
			p.LateDays = schedule.LateDays(p.DueDate, latest[p.Number])
		case asOf.After(p.DueDate):
			p.Status = schedule.StatusOverdue
			p.LateDays = schedule.LateDays(p.DueDate, asOf)
		default:
			p.Status = schedule.StatusPending
			p.LateDays = 0
		}

		switch p.Status {
		case schedule.StatusPaid:
			m.PaidPeriods++
		case schedule.StatusOverdue:
			m.OverduePeriods++
		default:
			m.PendingPeriods++
		}
		if p.LateDays > 0 {
			m.TotalLateDays += p.LateDays
		}
	}

	latePeriods := 0
	for i := range periods {
		if periods[i].LateDays > 0 {
			latePeriods++
		}
	}
	if latePeriods > 0 {
		m.AverageLateDays = int(math.Round(float64(m.TotalLateDays) / float64(latePeriods)))
	}

	m.RemainingPrincipal = loan.Principal.Sub(m.PrincipalPaid)
	m.PaymentCompletionRate = roundRate(float64(m.PaidPeriods) / float64(m.TotalPeriods) * 100)
	m.OverdueRate = roundRate(float64(m.OverduePeriods) / float64(m.TotalPeriods) * 100)

	switch {
	case m.RemainingPrincipal.LessThanOrEqual(decimal.Zero):
		m.LoanState = LoanPaid
	case m.OverduePeriods > 0:
		m.LoanState = LoanOverdue
	default:
		m.LoanState = LoanCurrent
	}

	return m, nil
}

// accruedLateCharges replays the payment history one receipt at a time: every
// distinct receipt carries the lateness recorded when it arrived, which fixes
// the late charge that came due with it. Sub-payments of one receipt share a
// reference, so each receipt accrues exactly once.
func accruedLateCharges(loan *models.Loan, payments []models.Payment) decimal.Decimal {
	accrued := decimal.Zero
	seen := make(map[string]bool)
	for _, p := range payments {
		key := p.Reference
		if key == "" {
			key = p.Date.UTC().Format("2006-01-02")
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		accrued = accrued.Add(schedule.LateCharge(loan, p.LateDays))
	}
	return accrued
}

// roundRate keeps percentages at two decimal places.
func roundRate(r float64) float64 {
	return math.Round(r*100) / 100
}
