package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aalvarez351/prestamos/internal/config"
	"github.com/aalvarez351/prestamos/pkg/allocation"
	"github.com/aalvarez351/prestamos/pkg/ledger"
	"github.com/aalvarez351/prestamos/pkg/models"
	"github.com/aalvarez351/prestamos/pkg/store"
)

const dateLayout = "2006-01-02"

// Server holds the ledger instance.
type Server struct {
	ledger  *ledger.Ledger
	storage store.Storage // Keep a reference to the storage to close it
	logger  *zap.Logger
}

func NewServer(s store.Storage, logger *zap.Logger) *Server {
	return &Server{
		ledger:  ledger.NewLedger(s),
		storage: s,
		logger:  logger,
	}
}

// initializeLogger creates a zap logger based on configuration.
func initializeLogger(loggingConfig config.LoggingConfig) (*zap.Logger, error) {
	level := loggingConfig.Level
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)

	return cfg.Build()
}

// writeError maps engine errors onto HTTP status codes.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, models.ErrLoanNotFound):
		http.Error(w, "Loan not found", http.StatusNotFound)
	case errors.Is(err, models.ErrInvalidLoanTerms),
		errors.Is(err, models.ErrPaymentBeforeOrigination):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) createLoanHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Borrower     string          `json:"prestatario"`
		Principal    decimal.Decimal `json:"capital_inicial"`
		InterestRate decimal.Decimal `json:"tasa_interes"`
		Term         int             `json:"plazo"`
		CreatedAt    string          `json:"fecha_creacion"`
		LateRate     decimal.Decimal `json:"tasa_mora"`
		GraceDays    int             `json:"dias_gracia"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	createdAt, err := time.Parse(dateLayout, req.CreatedAt)
	if err != nil {
		http.Error(w, "Invalid fecha_creacion, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.CreateLoan(req.Borrower, req.Principal, req.InterestRate, req.Term, createdAt,
		models.LateTerms{LateRate: req.LateRate, GraceDays: req.GraceDays})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("loan created",
		zap.String("loan_id", loan.ID.String()),
		zap.String("capital_inicial", loan.Principal.String()),
		zap.Int("plazo", loan.Term))
	writeJSON(w, http.StatusCreated, loan)
}

func (s *Server) getLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	loan, err := s.ledger.GetLoan(loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loan)
}

func (s *Server) listLoansHandler(w http.ResponseWriter, r *http.Request) {
	loans, err := s.ledger.GetAllLoans()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loans)
}

func (s *Server) deleteLoanHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	if err := s.ledger.DeleteLoan(loanID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) recordPaymentHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Date      string          `json:"fecha"`
		Amount    decimal.Decimal `json:"monto"`
		Reference string          `json:"comprobante"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		http.Error(w, "Invalid fecha, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		http.Error(w, "monto must be positive", http.StatusBadRequest)
		return
	}

	payments, m, err := s.ledger.RecordReceipt(loanID, allocation.Receipt{
		Date:      date,
		Amount:    req.Amount,
		Reference: req.Reference,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	s.logger.Info("receipt recorded",
		zap.String("loan_id", loanID.String()),
		zap.String("monto", req.Amount.String()),
		zap.Int("sub_payments", len(payments)),
		zap.String("estado", string(m.StoredStatus())))
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"payments": payments,
		"metrics":  m,
	})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	loanID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid loan ID", http.StatusBadRequest)
		return
	}

	m, err := s.ledger.Metrics(loanID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) periodicReportHandler(w http.ResponseWriter, r *http.Request) {
	start, err := time.Parse(dateLayout, r.URL.Query().Get("start"))
	if err != nil {
		http.Error(w, "Invalid start, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}
	end, err := time.Parse(dateLayout, r.URL.Query().Get("end"))
	if err != nil {
		http.Error(w, "Invalid end, expected YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	report, err := s.ledger.PortfolioReport(start, end)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) delinquencyHandler(w http.ResponseWriter, r *http.Request) {
	report, err := s.ledger.DelinquencyReport()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) routes() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/loans", s.listLoansHandler).Methods("GET")
	router.HandleFunc("/loans", s.createLoanHandler).Methods("POST")
	router.HandleFunc("/loans/{id}", s.getLoanHandler).Methods("GET")
	router.HandleFunc("/loans/{id}", s.deleteLoanHandler).Methods("DELETE")
	router.HandleFunc("/loans/{id}/payments", s.recordPaymentHandler).Methods("POST")
	router.HandleFunc("/loans/{id}/metrics", s.metricsHandler).Methods("GET")
	router.HandleFunc("/reports/periodic", s.periodicReportHandler).Methods("GET")
	router.HandleFunc("/reports/delinquency", s.delinquencyHandler).Methods("GET")

	return router
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	conf, err := config.LoadConfiguration(*configPath)
	if err != nil {
		fmt.Printf("failed to load configuration: %v\n", err)
		return
	}

	logger, err := initializeLogger(conf.Logging)
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		return
	}
	defer logger.Sync()

	sqliteStore, err := store.NewSQLiteStore(conf.Database.Path)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer sqliteStore.Close()

	server := NewServer(sqliteStore, logger)

	logger.Info("server starting", zap.String("address", conf.Server.ListenAddress))
	if err := http.ListenAndServe(conf.Server.ListenAddress, server.routes()); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
