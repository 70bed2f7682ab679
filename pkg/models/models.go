package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LoanStatus is the stored loan state. It is a cache of the derived status
// computed by the metrics aggregator and is rewritten after every payment.
type LoanStatus string

const (
	LoanStatusActive  LoanStatus = "activo"
	LoanStatusPaid    LoanStatus = "pagado"
	LoanStatusOverdue LoanStatus = "moroso"
)

// PaymentType classifies a sub-payment produced by the allocation waterfall.
type PaymentType string

const (
	PaymentTypePrincipal  PaymentType = "pago"
	PaymentTypeInterest   PaymentType = "interes"
	PaymentTypeLateCharge PaymentType = "mora"
)

var (
	// ErrInvalidLoanTerms indicates a loan whose terms cannot support any
	// computation (non-positive principal or term, negative rate).
	ErrInvalidLoanTerms = errors.New("invalid loan terms")

	// ErrPaymentBeforeOrigination indicates a receipt dated before the loan
	// was created. It resolves to period number <= 0 and is rejected rather
	// than coerced into period 1.
	ErrPaymentBeforeOrigination = errors.New("payment predates loan origination")

	// ErrLoanNotFound is returned by stores when a loan ID does not exist.
	ErrLoanNotFound = errors.New("loan not found")
)

// LateTerms holds the late-charge conditions attached to a loan.
type LateTerms struct {
	LateRate  decimal.Decimal `json:"tasa_mora"`   // annual late rate as a percent
	GraceDays int             `json:"dias_gracia"` // days after due date before charges accrue
}

// Loan is a loan record as stored. Principal, rate and term are fixed at
// origination; Balance, TotalPaid and Status are derived summary fields
// refreshed by the ledger after every payment recomputation.
type Loan struct {
	ID           uuid.UUID       `json:"id"`
	Borrower     string          `json:"prestatario"`
	Principal    decimal.Decimal `json:"capital_inicial"`
	InterestRate decimal.Decimal `json:"tasa_interes"` // nominal annual rate as a percent
	Term         int             `json:"plazo"`        // total number of 15-day periods
	CreatedAt    time.Time       `json:"fecha_creacion"`
	LateTerms    LateTerms       `json:"condiciones_mora"`
	Status       LoanStatus      `json:"estado"`
	Balance      decimal.Decimal `json:"saldo"` // remaining principal; may go negative on overpayment
	TotalPaid    decimal.Decimal `json:"total_pagado"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Validate checks the loan terms per the InvalidLoanTerms taxonomy. A loan
// that fails validation supports no computation at all.
func (l *Loan) Validate() error {
	if l.Term <= 0 {
		return fmt.Errorf("%w: plazo must be positive, got %d", ErrInvalidLoanTerms, l.Term)
	}
	if l.Principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("%w: capital_inicial must be positive, got %s", ErrInvalidLoanTerms, l.Principal)
	}
	if l.InterestRate.IsNegative() {
		return fmt.Errorf("%w: tasa_interes must not be negative, got %s", ErrInvalidLoanTerms, l.InterestRate)
	}
	if l.LateTerms.GraceDays < 0 {
		return fmt.Errorf("%w: dias_gracia must not be negative, got %d", ErrInvalidLoanTerms, l.LateTerms.GraceDays)
	}
	return nil
}

// Payment is one typed sub-payment. A single cash receipt may be split by the
// allocator into several Payment records, one per type touched, all sharing
// the same Date and Reference. Payments are immutable once recorded;
// corrections are offsetting records, never edits.
type Payment struct {
	ID           uuid.UUID       `json:"id"`
	LoanID       uuid.UUID       `json:"loan_id"`
	Date         time.Time       `json:"fecha"`
	Amount       decimal.Decimal `json:"monto"`
	Type         PaymentType     `json:"tipo"`
	PeriodNumber int             `json:"periodo_numero"`
	LateDays     int             `json:"dias_atraso"`
	Reference    string          `json:"comprobante"`
}
