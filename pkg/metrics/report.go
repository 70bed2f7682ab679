package metrics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aalvarez351/prestamos/pkg/models"
	"github.com/aalvarez351/prestamos/pkg/schedule"
)

// ReportWindow is one calendar-aligned 15-day collection window. Windows are
// anchored at the report's start date, deliberately independent of any loan's
// own period boundaries.
type ReportWindow struct {
	Number      int             `json:"period_number"`
	StartDate   time.Time       `json:"start_date"`
	EndDate     time.Time       `json:"end_date"` // exclusive
	Payments    int             `json:"payments"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Principal   decimal.Decimal `json:"principal_payments"`
	Interest    decimal.Decimal `json:"interest_payments"`
	LateCharges decimal.Decimal `json:"late_charges"`
}

// ReportSummary totals a periodic report across all windows.
type ReportSummary struct {
	TotalCollection  decimal.Decimal `json:"total_collection"`
	TotalPrincipal   decimal.Decimal `json:"total_principal"`
	TotalInterest    decimal.Decimal `json:"total_interest"`
	TotalLateCharges decimal.Decimal `json:"total_late_charges"`
}

// PeriodicReport buckets collections into consecutive 15-day windows.
type PeriodicReport struct {
	Windows []ReportWindow `json:"periods"`
	Summary ReportSummary  `json:"summary"`
}

// Periodic partitions the half-open range [start, end) into consecutive
// 15-day windows anchored at start and sums payments by type within each.
func Periodic(payments []models.Payment, start, end time.Time) (*PeriodicReport, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("periodic report: start %s is not before end %s",
			start.Format("2006-01-02"), end.Format("2006-01-02"))
	}

	report := &PeriodicReport{
		Summary: ReportSummary{
			TotalCollection:  decimal.Zero,
			TotalPrincipal:   decimal.Zero,
			TotalInterest:    decimal.Zero,
			TotalLateCharges: decimal.Zero,
		},
	}

	number := 1
	for cur := start; cur.Before(end); cur = cur.AddDate(0, 0, schedule.FrequencyDays) {
		windowEnd := cur.AddDate(0, 0, schedule.FrequencyDays)
		if windowEnd.After(end) {
			windowEnd = end
		}

		w := ReportWindow{
			Number:      number,
			StartDate:   cur,
			EndDate:     windowEnd,
			TotalAmount: decimal.Zero,
			Principal:   decimal.Zero,
			Interest:    decimal.Zero,
			LateCharges: decimal.Zero,
		}
		for _, p := range payments {
			if p.Date.Before(cur) || !p.Date.Before(windowEnd) {
				continue
			}
			w.Payments++
			w.TotalAmount = w.TotalAmount.Add(p.Amount)
			switch p.Type {
			case models.PaymentTypePrincipal:
				w.Principal = w.Principal.Add(p.Amount)
			case models.PaymentTypeInterest:
				w.Interest = w.Interest.Add(p.Amount)
			case models.PaymentTypeLateCharge:
				w.LateCharges = w.LateCharges.Add(p.Amount)
			}
		}

		report.Windows = append(report.Windows, w)
		report.Summary.TotalCollection = report.Summary.TotalCollection.Add(w.TotalAmount)
		report.Summary.TotalPrincipal = report.Summary.TotalPrincipal.Add(w.Principal)
		report.Summary.TotalInterest = report.Summary.TotalInterest.Add(w.Interest)
		report.Summary.TotalLateCharges = report.Summary.TotalLateCharges.Add(w.LateCharges)
		number++
	}

	return report, nil
}

// delinquencyRanges orders the buckets from least to most delinquent. Upper
// bounds are inclusive; the last bucket is open-ended.
var delinquencyRanges = []struct {
	label string
	upper int
}{
	{"1-15", 15},
	{"16-30", 30},
	{"31-60", 60},
	{"61-90", 90},
	{"90+", 0},
}

// DelinquencyBucket accumulates the overdue loans whose average lateness
// falls in one range.
type DelinquencyBucket struct {
	Range       string          `json:"range"`
	Loans       int             `json:"loans"`
	Outstanding decimal.Decimal `json:"outstanding_principal"`
}

// DelinquencyReport assigns every overdue loan to exactly one lateness
// bucket. Current and paid loans are excluded from the buckets but counted in
// TotalLoans, so DelinquencyRate is overdue loans over the whole portfolio.
type DelinquencyReport struct {
	TotalLoans      int                 `json:"total_loans"`
	OverdueLoans    int                 `json:"overdue_loans"`
	DelinquencyRate float64             `json:"delinquency_rate"`
	Buckets         []DelinquencyBucket `json:"buckets"`
}

// LoanHistory pairs a loan with its full payment history for portfolio-level
// reporting.
type LoanHistory struct {
	Loan     *models.Loan
	Payments []models.Payment
}

// Delinquency computes metrics for every loan and buckets the overdue ones by
// average late days, accumulating outstanding principal per bucket.
func Delinquency(portfolio []LoanHistory, asOf time.Time) (*DelinquencyReport, error) {
	report := &DelinquencyReport{
		Buckets: make([]DelinquencyBucket, len(delinquencyRanges)),
	}
	for i, r := range delinquencyRanges {
		report.Buckets[i] = DelinquencyBucket{Range: r.label, Outstanding: decimal.Zero}
	}

	for _, lh := range portfolio {
		m, err := Compute(lh.Loan, lh.Payments, asOf)
		if err != nil {
			return nil, fmt.Errorf("delinquency report for loan %s: %w", lh.Loan.ID, err)
		}
		report.TotalLoans++
		if m.LoanState != LoanOverdue {
			continue
		}
		report.OverdueLoans++
		i := bucketIndex(m.AverageLateDays)
		report.Buckets[i].Loans++
		report.Buckets[i].Outstanding = report.Buckets[i].Outstanding.Add(m.RemainingPrincipal)
	}

	if report.TotalLoans > 0 {
		report.DelinquencyRate = roundRate(float64(report.OverdueLoans) / float64(report.TotalLoans) * 100)
	}
	return report, nil
}

func bucketIndex(averageLateDays int) int {
	for i, r := range delinquencyRanges {
		if r.upper > 0 && averageLateDays <= r.upper {
			return i
		}
	}
	return len(delinquencyRanges) - 1
}
