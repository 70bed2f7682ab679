package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aalvarez351/prestamos/pkg/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore manages the database connection and operations for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore and initializes the database.
func NewSQLiteStore(dataSourceName string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	// Manually enable foreign keys and WAL mode
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	_, err = db.Exec("PRAGMA journal_mode = WAL;")
	if err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("could not initialize schema: %w", err)
	}
	return s, nil
}

// initSchema creates the database tables if they don't already exist.
// We use TEXT for decimal fields in SQLite to ensure no precision is lost.
func (s *SQLiteStore) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS loans (
		id TEXT PRIMARY KEY,
		prestatario TEXT NOT NULL,
		capital_inicial TEXT NOT NULL,
		tasa_interes TEXT NOT NULL,
		plazo INTEGER NOT NULL,
		fecha_creacion DATETIME NOT NULL,
		tasa_mora TEXT NOT NULL DEFAULT '0',
		dias_gracia INTEGER NOT NULL DEFAULT 0,
		estado TEXT NOT NULL,
		saldo TEXT NOT NULL,
		total_pagado TEXT NOT NULL DEFAULT '0',
		updated_at DATETIME NOT NULL
	);
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		loan_id TEXT NOT NULL,
		fecha DATETIME NOT NULL,
		monto TEXT NOT NULL,
		tipo TEXT NOT NULL,
		periodo_numero INTEGER NOT NULL,
		dias_atraso INTEGER NOT NULL DEFAULT 0,
		comprobante TEXT NOT NULL DEFAULT '',
		FOREIGN KEY(loan_id) REFERENCES loans(id)
	);
	CREATE INDEX IF NOT EXISTS idx_payments_loan ON payments(loan_id);
	CREATE INDEX IF NOT EXISTS idx_payments_fecha ON payments(fecha);
	`
	_, err := s.db.Exec(schema)
	return err
}

const loanColumns = `id, prestatario, capital_inicial, tasa_interes, plazo, fecha_creacion, tasa_mora, dias_gracia, estado, saldo, total_pagado, updated_at`

// CreateLoan inserts a new loan into the database.
func (s *SQLiteStore) CreateLoan(loan *models.Loan) error {
	_, err := s.db.Exec(
		`INSERT INTO loans (`+loanColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		loan.ID.String(), loan.Borrower, loan.Principal, loan.InterestRate, loan.Term,
		loan.CreatedAt, loan.LateTerms.LateRate, loan.LateTerms.GraceDays,
		loan.Status, loan.Balance, loan.TotalPaid, loan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create loan: %w", err)
	}
	return nil
}

// GetLoan retrieves a loan by its ID.
func (s *SQLiteStore) GetLoan(id uuid.UUID) (*models.Loan, error) {
	row := s.db.QueryRow(`SELECT `+loanColumns+` FROM loans WHERE id = ?`, id.String())
	loan, err := scanLoan(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.ErrLoanNotFound
		}
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}
	return loan, nil
}

// UpdateLoan updates an existing loan in the database.
func (s *SQLiteStore) UpdateLoan(loan *models.Loan) error {
	result, err := s.db.Exec(
		`UPDATE loans SET prestatario = ?, capital_inicial = ?, tasa_interes = ?, plazo = ?, fecha_creacion = ?, tasa_mora = ?, dias_gracia = ?, estado = ?, saldo = ?, total_pagado = ?, updated_at = ? WHERE id = ?`,
		loan.Borrower, loan.Principal, loan.InterestRate, loan.Term,
		loan.CreatedAt, loan.LateTerms.LateRate, loan.LateTerms.GraceDays,
		loan.Status, loan.Balance, loan.TotalPaid, loan.UpdatedAt, loan.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update loan: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrLoanNotFound
	}
	return nil
}

// DeleteLoan removes a loan and its payments from the database within a transaction.
func (s *SQLiteStore) DeleteLoan(id uuid.UUID) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`DELETE FROM payments WHERE loan_id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete associated payments: %w", err)
	}

	result, err := tx.Exec(`DELETE FROM loans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete loan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return models.ErrLoanNotFound
	}

	return tx.Commit()
}

// GetAllLoans retrieves all loans.
func (s *SQLiteStore) GetAllLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT ` + loanColumns + ` FROM loans`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

// GetAllActiveLoans retrieves all loans not yet paid off.
func (s *SQLiteStore) GetAllActiveLoans() ([]*models.Loan, error) {
	rows, err := s.db.Query(`SELECT `+loanColumns+` FROM loans WHERE estado != ?`, models.LoanStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("failed to get active loans: %w", err)
	}
	defer rows.Close()

	return scanLoans(rows)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLoan(row rowScanner) (*models.Loan, error) {
	var loan models.Loan
	var idStr string
	var created, updated time.Time
	err := row.Scan(&idStr, &loan.Borrower, &loan.Principal, &loan.InterestRate, &loan.Term,
		&created, &loan.LateTerms.LateRate, &loan.LateTerms.GraceDays,
		&loan.Status, &loan.Balance, &loan.TotalPaid, &updated)
	if err != nil {
		return nil, err
	}
	loan.ID = uuid.MustParse(idStr)
	loan.CreatedAt = created
	loan.UpdatedAt = updated
	return &loan, nil
}

func scanLoans(rows *sql.Rows) ([]*models.Loan, error) {
	var loans []*models.Loan
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan row: %w", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration: %w", err)
	}
	return loans, nil
}

// AppendPayments inserts the sub-payments of one receipt in a single SQL
// transaction so a receipt is never half-persisted.
func (s *SQLiteStore) AppendPayments(payments []models.Payment) error {
	if len(payments) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, p := range payments {
		_, err := tx.Exec(
			`INSERT INTO payments (id, loan_id, fecha, monto, tipo, periodo_numero, dias_atraso, comprobante)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID.String(), p.LoanID.String(), p.Date, p.Amount, p.Type, p.PeriodNumber, p.LateDays, p.Reference,
		)
		if err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}
	}
	return tx.Commit()
}

// GetPaymentsForLoan retrieves all payments for a given loan ID ordered by date.
func (s *SQLiteStore) GetPaymentsForLoan(loanID uuid.UUID) ([]models.Payment, error) {
	rows, err := s.db.Query(
		`SELECT id, loan_id, fecha, monto, tipo, periodo_numero, dias_atraso, comprobante
		FROM payments WHERE loan_id = ? ORDER BY fecha ASC`, loanID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to get payments for loan %s: %w", loanID, err)
	}
	defer rows.Close()

	return scanPayments(rows)
}

// GetPaymentsBetween retrieves every payment with fecha in [start, end)
// ordered by date, across all loans.
func (s *SQLiteStore) GetPaymentsBetween(start, end time.Time) ([]models.Payment, error) {
	rows, err := s.db.Query(
		`SELECT id, loan_id, fecha, monto, tipo, periodo_numero, dias_atraso, comprobante
		FROM payments WHERE fecha >= ? AND fecha < ? ORDER BY fecha ASC`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments between %s and %s: %w",
			start.Format("2006-01-02"), end.Format("2006-01-02"), err)
	}
	defer rows.Close()

	return scanPayments(rows)
}

func scanPayments(rows *sql.Rows) ([]models.Payment, error) {
	var payments []models.Payment
	for rows.Next() {
		var p models.Payment
		var idStr, loanIDStr string
		var date time.Time
		if err := rows.Scan(&idStr, &loanIDStr, &date, &p.Amount, &p.Type, &p.PeriodNumber, &p.LateDays, &p.Reference); err != nil {
			return nil, fmt.Errorf("failed to scan payment row: %w", err)
		}
		p.ID = uuid.MustParse(idStr)
		p.LoanID = uuid.MustParse(loanIDStr)
		p.Date = date
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during rows iteration for payments: %w", err)
	}
	return payments, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
