package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aalvarez351/prestamos/pkg/models"
)

func testLoan() *models.Loan {
	return &models.Loan{
		Principal:    decimal.NewFromInt(1000),
		InterestRate: decimal.NewFromInt(15),
		Term:         12,
		CreatedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		LateTerms: models.LateTerms{
			LateRate:  decimal.NewFromInt(5),
			GraceDays: 5,
		},
	}
}

func TestDueDate(t *testing.T) {
	creation := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	first := DueDate(creation, 1)
	if !first.Equal(time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected first due date 2024-01-16, got %s", first.Format("2006-01-02"))
	}

	// Every consecutive pair is exactly 15 days apart.
	for n := 2; n <= 24; n++ {
		gap := DueDate(creation, n).Sub(DueDate(creation, n-1))
		if gap != 15*24*time.Hour {
			t.Errorf("Expected 15 days between due dates %d and %d, got %s", n-1, n, gap)
		}
	}
}

func TestPeriodNumberFor(t *testing.T) {
	creation := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		date string
		want int
	}{
		{"2024-01-01", 1},  // creation day
		{"2024-01-15", 1},  // last day of the first window
		{"2024-01-16", 2},  // first due date opens the second window
		{"2024-01-20", 2},
		{"2024-03-01", 5},  // 60 days out
		{"2023-12-31", 0},  // pre-origination
		{"2023-12-01", -2}, // well before origination
	}
	for _, c := range cases {
		date, _ := time.Parse("2006-01-02", c.date)
		if got := PeriodNumberFor(creation, date); got != c.want {
			t.Errorf("PeriodNumberFor(%s) = %d, want %d", c.date, got, c.want)
		}
	}
}

func TestPeriodNumberMatchesWindows(t *testing.T) {
	creation := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// Any date inside period n's window [dueDate(n-1), dueDate(n)) resolves
	// to n; the due date itself opens the next window.
	for n := 1; n <= 12; n++ {
		start := DueDate(creation, n-1)
		for _, d := range []time.Time{start, start.AddDate(0, 0, 7), start.AddDate(0, 0, 14)} {
			if got := PeriodNumberFor(creation, d); got != n {
				t.Errorf("Expected %s to fall in period %d, got %d", d.Format("2006-01-02"), n, got)
			}
		}
		if got := PeriodNumberFor(creation, DueDate(creation, n)); got != n+1 {
			t.Errorf("Expected due date of period %d to open period %d, got %d", n, n+1, got)
		}
	}
}

func TestLateDays(t *testing.T) {
	due := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)

	if got := LateDays(due, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC)); got != 5 {
		t.Errorf("Expected 5 late days, got %d", got)
	}
	if got := LateDays(due, due); got != 0 {
		t.Errorf("Expected 0 late days for on-time payment, got %d", got)
	}
	if got := LateDays(due, time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC)); got != 0 {
		t.Errorf("Expected 0 late days for early payment, got %d", got)
	}
}

func TestExpectedPayment(t *testing.T) {
	loan := testLoan()

	// 1000/12 + 1000*0.15/24 = 83.33 + 6.25 = 89.58
	if got := PrincipalPortion(loan).Round(2); !got.Equal(decimal.NewFromFloat(83.33)) {
		t.Errorf("Expected principal portion 83.33, got %s", got)
	}
	if got := InterestPortion(loan); !got.Equal(decimal.NewFromFloat(6.25)) {
		t.Errorf("Expected interest portion 6.25, got %s", got)
	}
	if got := ExpectedPayment(loan).Round(2); !got.Equal(decimal.NewFromFloat(89.58)) {
		t.Errorf("Expected payment 89.58, got %s", got)
	}
}

func TestLateCharge(t *testing.T) {
	loan := testLoan()

	// 10 days late, 5 grace: 1000 * 0.05 * 5 / 365 = 0.68
	if got := LateCharge(loan, 10); !got.Equal(decimal.NewFromFloat(0.68)) {
		t.Errorf("Expected late charge 0.68, got %s", got)
	}

	// Within the grace period nothing accrues.
	if got := LateCharge(loan, 5); !got.IsZero() {
		t.Errorf("Expected no charge within grace, got %s", got)
	}
	if got := LateCharge(loan, 0); !got.IsZero() {
		t.Errorf("Expected no charge when on time, got %s", got)
	}
}

func TestGenerate(t *testing.T) {
	loan := testLoan()

	periods, err := Generate(loan)
	if err != nil {
		t.Fatalf("Failed to generate schedule: %v", err)
	}

	if len(periods) != loan.Term {
		t.Fatalf("Expected %d periods, got %d", loan.Term, len(periods))
	}

	for i, p := range periods {
		if p.Number != i+1 {
			t.Errorf("Expected period number %d, got %d", i+1, p.Number)
		}
		if p.Status != StatusPending {
			t.Errorf("Expected period %d pending, got %s", p.Number, p.Status)
		}
		if !p.TotalPaid.IsZero() {
			t.Errorf("Expected period %d to start with nothing paid", p.Number)
		}
		if !p.DueDate.Equal(DueDate(loan.CreatedAt, p.Number)) {
			t.Errorf("Period %d due date mismatch", p.Number)
		}
	}

	// Periods neither overlap nor gap.
	if !periods[0].StartDate.Equal(loan.CreatedAt) {
		t.Errorf("Expected first period to start at creation")
	}
	for i := 1; i < len(periods); i++ {
		if !periods[i].StartDate.Equal(periods[i-1].DueDate) {
			t.Errorf("Expected period %d to start where period %d ends", i+1, i)
		}
	}
}

func TestGenerateDeterministic(t *testing.T) {
	loan := testLoan()

	a, err := Generate(loan)
	if err != nil {
		t.Fatalf("Failed to generate schedule: %v", err)
	}
	b, err := Generate(loan)
	if err != nil {
		t.Fatalf("Failed to generate schedule: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Error("Expected identical schedules from identical input")
	}
}

func TestGenerateInvalidTerms(t *testing.T) {
	loan := testLoan()
	loan.Term = 0

	if _, err := Generate(loan); !errors.Is(err, models.ErrInvalidLoanTerms) {
		t.Errorf("Expected ErrInvalidLoanTerms, got %v", err)
	}

	loan = testLoan()
	loan.Principal = decimal.Zero
	if _, err := Generate(loan); !errors.Is(err, models.ErrInvalidLoanTerms) {
		t.Errorf("Expected ErrInvalidLoanTerms for zero principal, got %v", err)
	}
}
