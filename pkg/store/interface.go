package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/aalvarez351/prestamos/pkg/models"
)

// Storage defines the persistence port for loans and payments. The engine
// never queries storage itself; the ledger loads records through this
// interface and hands plain structures to the pure computation packages.
type Storage interface {
	CreateLoan(loan *models.Loan) error
	GetLoan(id uuid.UUID) (*models.Loan, error)
	UpdateLoan(loan *models.Loan) error
	DeleteLoan(id uuid.UUID) error
	GetAllLoans() ([]*models.Loan, error)
	GetAllActiveLoans() ([]*models.Loan, error)

	// AppendPayments persists the sub-payments of one receipt atomically:
	// either every record is written or none is.
	AppendPayments(payments []models.Payment) error
	GetPaymentsForLoan(loanID uuid.UUID) ([]models.Payment, error)
	GetPaymentsBetween(start, end time.Time) ([]models.Payment, error)

	Close() error
}
