package allocation

import (
	"errors"
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

func sum(payments []models.Payment) decimal.Decimal {
	total := decimal.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	return total
}

func TestAllocateInterestThenPrincipal(t *testing.T) {
	loan := testLoan()

	// 50 on 2024-01-20: period 2, not late, no arrears. Interest portion
	// 6.25 first, the remaining 43.75 to principal.
	out, err := Allocate(loan, nil, Receipt{
		Date:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(50),
	})
	if err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	if len(out) != 2 {
		t.Fatalf("Expected 2 sub-payments, got %d", len(out))
	}
	if out[0].Type != models.PaymentTypeInterest || !out[0].Amount.Equal(decimal.NewFromFloat(6.25)) {
		t.Errorf("Expected first record interes 6.25, got %s %s", out[0].Type, out[0].Amount)
	}
	if out[1].Type != models.PaymentTypePrincipal || !out[1].Amount.Equal(decimal.NewFromFloat(43.75)) {
		t.Errorf("Expected second record pago 43.75, got %s %s", out[1].Type, out[1].Amount)
	}
	for _, p := range out {
		if p.PeriodNumber != 2 {
			t.Errorf("Expected period 2, got %d", p.PeriodNumber)
		}
		if p.LateDays != 0 {
			t.Errorf("Expected 0 late days, got %d", p.LateDays)
		}
		if p.Reference == "" {
			t.Error("Expected a generated reference")
		}
		if p.Reference != out[0].Reference {
			t.Error("Expected all sub-payments to share one reference")
		}
	}
}

func TestAllocateArrearsFirst(t *testing.T) {
	loan := testLoan()

	// Prior receipt arrived 30 days late: 25 chargeable days accrued
	// 1000*0.05*25/365 = 3.42 of which only 1.00 was covered, leaving 2.42
	// outstanding. A new 2.00 receipt must go entirely to arrears.
	history := []models.Payment{
		{
			LoanID:       loan.ID,
			Date:         time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			Amount:       decimal.NewFromFloat(1.00),
			Type:         models.PaymentTypeLateCharge,
			PeriodNumber: 1,
			LateDays:     30,
			Reference:    "REC-001",
		},
	}

	out, err := Allocate(loan, history, Receipt{
		Date:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.NewFromFloat(2.00),
		Reference: "REC-002",
	})
	if err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	if len(out) != 1 {
		t.Fatalf("Expected a single mora record, got %d records", len(out))
	}
	if out[0].Type != models.PaymentTypeLateCharge {
		t.Errorf("Expected tipo mora, got %s", out[0].Type)
	}
	if !out[0].Amount.Equal(decimal.NewFromFloat(2.00)) {
		t.Errorf("Expected full receipt consumed by arrears, got %s", out[0].Amount)
	}
}

func TestAllocateArrearsThenWaterfall(t *testing.T) {
	loan := testLoan()

	history := []models.Payment{
		{
			LoanID:       loan.ID,
			Date:         time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
			Amount:       decimal.NewFromFloat(1.00),
			Type:         models.PaymentTypeLateCharge,
			PeriodNumber: 1,
			LateDays:     30,
			Reference:    "REC-001",
		},
	}

	// 200 covers the 2.42 arrears, then interest 6.25, then principal.
	out, err := Allocate(loan, history, Receipt{
		Date:      time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.NewFromInt(200),
		Reference: "REC-002",
	})
	if err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	if len(out) != 3 {
		t.Fatalf("Expected mora, interes and pago records, got %d", len(out))
	}
	if out[0].Type != models.PaymentTypeLateCharge || !out[0].Amount.Equal(decimal.NewFromFloat(2.42)) {
		t.Errorf("Expected mora 2.42 first, got %s %s", out[0].Type, out[0].Amount)
	}
	if out[1].Type != models.PaymentTypeInterest || !out[1].Amount.Equal(decimal.NewFromFloat(6.25)) {
		t.Errorf("Expected interes 6.25 second, got %s %s", out[1].Type, out[1].Amount)
	}
	if out[2].Type != models.PaymentTypePrincipal || !out[2].Amount.Equal(decimal.NewFromFloat(191.33)) {
		t.Errorf("Expected pago 191.33 last, got %s %s", out[2].Type, out[2].Amount)
	}
	if !sum(out).Equal(decimal.NewFromInt(200)) {
		t.Errorf("Expected allocation to sum to the receipt, got %s", sum(out))
	}
}

func TestAllocateSumPreserved(t *testing.T) {
	loan := testLoan()

	amounts := []float64{0.01, 6.25, 50, 89.58, 200, 1500}
	for _, a := range amounts {
		amount := decimal.NewFromFloat(a)
		out, err := Allocate(loan, nil, Receipt{
			Date:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			Amount: amount,
		})
		if err != nil {
			t.Fatalf("Failed to allocate %s: %v", amount, err)
		}
		if !sum(out).Equal(amount) {
			t.Errorf("Allocation of %s sums to %s", amount, sum(out))
		}
	}
}

func TestAllocateOverpaymentFallsToPrincipal(t *testing.T) {
	loan := testLoan()

	// Far more cash than the loan needs: everything past interest lands on
	// principal, no cap.
	out, err := Allocate(loan, nil, Receipt{
		Date:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(5000),
	})
	if err != nil {
		t.Fatalf("Failed to allocate: %v", err)
	}

	last := out[len(out)-1]
	if last.Type != models.PaymentTypePrincipal {
		t.Fatalf("Expected terminal bucket pago, got %s", last.Type)
	}
	if !last.Amount.Equal(decimal.NewFromFloat(4993.75)) {
		t.Errorf("Expected 4993.75 to principal, got %s", last.Amount)
	}
}

func TestAllocateBeforeOrigination(t *testing.T) {
	loan := testLoan()

	_, err := Allocate(loan, nil, Receipt{
		Date:   time.Date(2023, 12, 20, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(50),
	})
	if !errors.Is(err, models.ErrPaymentBeforeOrigination) {
		t.Errorf("Expected ErrPaymentBeforeOrigination, got %v", err)
	}
}

func TestAllocateRejectsNonPositiveAmount(t *testing.T) {
	loan := testLoan()

	if _, err := Allocate(loan, nil, Receipt{
		Date:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Amount: decimal.Zero,
	}); err == nil {
		t.Error("Expected error for zero amount")
	}
}

func TestAllocateInvalidLoan(t *testing.T) {
	loan := testLoan()
	loan.Term = -1

	_, err := Allocate(loan, nil, Receipt{
		Date:   time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
		Amount: decimal.NewFromInt(50),
	})
	if !errors.Is(err, models.ErrInvalidLoanTerms) {
		t.Errorf("Expected ErrInvalidLoanTerms, got %v", err)
	}
}
