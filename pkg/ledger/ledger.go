// Package ledger orchestrates the engine over the persistence port. The
// computation packages are pure; this is the one place that reads, allocates,
// writes and recomputes, serialized per loan.
package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aalvarez351/prestamos/pkg/allocation"
	"github.com/aalvarez351/prestamos/pkg/metrics"
	"github.com/aalvarez351/prestamos/pkg/models"
	"github.com/aalvarez351/prestamos/pkg/store"
)

// Ledger handles the business logic for loans and payments.
type Ledger struct {
	storage store.Storage
	now     func() time.Time

	// Two concurrent receipts against the same loan must not interleave:
	// allocation reads the loan's arrears before writing sub-payments, and
	// the recompute reads the full updated history. One mutex per loan keeps
	// read-allocate-write-recompute a single unit; different loans need no
	// coordination.
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewLedger creates a new Ledger with a given Storage implementation.
func NewLedger(s store.Storage) *Ledger {
	return &Ledger{
		storage: s,
		now:     time.Now,
		locks:   make(map[uuid.UUID]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(loanID uuid.UUID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[loanID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[loanID] = m
	}
	return m
}

// CreateLoan validates the terms and persists a new loan at origination.
func (l *Ledger) CreateLoan(borrower string, principal, rate decimal.Decimal, term int, createdAt time.Time, lateTerms models.LateTerms) (*models.Loan, error) {
	loan := &models.Loan{
		ID:           uuid.New(),
		Borrower:     borrower,
		Principal:    principal,
		InterestRate: rate,
		Term:         term,
		CreatedAt:    createdAt,
		LateTerms:    lateTerms,
		Status:       models.LoanStatusActive,
		Balance:      principal,
		TotalPaid:    decimal.Zero,
		UpdatedAt:    l.now(),
	}
	if err := loan.Validate(); err != nil {
		return nil, err
	}

	if err := l.storage.CreateLoan(loan); err != nil {
		return nil, fmt.Errorf("failed to store loan: %w", err)
	}
	return loan, nil
}

// GetLoan retrieves a loan by its ID.
func (l *Ledger) GetLoan(id uuid.UUID) (*models.Loan, error) {
	return l.storage.GetLoan(id)
}

// GetAllLoans retrieves all loans.
func (l *Ledger) GetAllLoans() ([]*models.Loan, error) {
	return l.storage.GetAllLoans()
}

// DeleteLoan deletes a loan and its payment history.
func (l *Ledger) DeleteLoan(id uuid.UUID) error {
	return l.storage.DeleteLoan(id)
}

// RecordReceipt allocates one cash receipt across the waterfall, persists the
// resulting sub-payments atomically, recomputes the loan's metrics against
// the updated history, and rewrites the loan's derived summary fields. The
// stored estado is a cache owned by this recompute; it is never advanced
// incrementally.
func (l *Ledger) RecordReceipt(loanID uuid.UUID, receipt allocation.Receipt) ([]models.Payment, *metrics.Metrics, error) {
	lock := l.lockFor(loanID)
	lock.Lock()
	defer lock.Unlock()

	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, nil, err
	}
	history, err := l.storage.GetPaymentsForLoan(loanID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load payment history: %w", err)
	}

	subPayments, err := allocation.Allocate(loan, history, receipt)
	if err != nil {
		return nil, nil, err
	}

	if err := l.storage.AppendPayments(subPayments); err != nil {
		return nil, nil, fmt.Errorf("failed to persist payments: %w", err)
	}

	updated := append(history, subPayments...)
	m, err := metrics.Compute(loan, updated, l.now())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to recompute metrics: %w", err)
	}

	loan.Balance = m.RemainingPrincipal
	loan.TotalPaid = m.TotalPaid
	loan.Status = m.StoredStatus()
	loan.UpdatedAt = l.now()
	if err := l.storage.UpdateLoan(loan); err != nil {
		return nil, nil, fmt.Errorf("failed to update loan summary: %w", err)
	}

	return subPayments, m, nil
}

// Metrics recomputes the full metrics view of a loan as of now.
func (l *Ledger) Metrics(loanID uuid.UUID) (*metrics.Metrics, error) {
	loan, err := l.storage.GetLoan(loanID)
	if err != nil {
		return nil, err
	}
	payments, err := l.storage.GetPaymentsForLoan(loanID)
	if err != nil {
		return nil, fmt.Errorf("failed to load payment history: %w", err)
	}
	return metrics.Compute(loan, payments, l.now())
}

// PortfolioReport buckets every payment in [start, end) into calendar-aligned
// 15-day collection windows.
func (l *Ledger) PortfolioReport(start, end time.Time) (*metrics.PeriodicReport, error) {
	payments, err := l.storage.GetPaymentsBetween(start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments for report: %w", err)
	}
	return metrics.Periodic(payments, start, end)
}

// DelinquencyReport computes the portfolio-wide delinquency buckets as of now.
func (l *Ledger) DelinquencyReport() (*metrics.DelinquencyReport, error) {
	loans, err := l.storage.GetAllLoans()
	if err != nil {
		return nil, fmt.Errorf("failed to load loans for report: %w", err)
	}

	portfolio := make([]metrics.LoanHistory, 0, len(loans))
	for _, loan := range loans {
		payments, err := l.storage.GetPaymentsForLoan(loan.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load payments for loan %s: %w", loan.ID, err)
		}
		portfolio = append(portfolio, metrics.LoanHistory{Loan: loan, Payments: payments})
	}
	return metrics.Delinquency(portfolio, l.now())
}
