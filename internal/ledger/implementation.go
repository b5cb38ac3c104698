package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"bookledger/internal/catalog"
	"bookledger/internal/storage"
)

// returnRemarksMarker separates return-time remarks from the remarks
// recorded at issue time.
const returnRemarksMarker = "\nReturn remarks: "

// service implements the Service interface.
type service struct {
	db         *sqlx.DB
	logger     *zap.Logger
	tracer     trace.Tracer
	loanPeriod int
}

// NewService creates a new lending ledger backed by the same database the
// catalog writes to, so issue and return run as single local transactions.
func NewService(db *sqlx.DB, logger *zap.Logger, loanPeriodDays int) Service {
	return &service{
		db:         db,
		logger:     logger,
		tracer:     otel.Tracer("bookledger/ledger"),
		loanPeriod: loanPeriodDays,
	}
}

// IssueBook atomically claims one available copy and records the loan.
// The guarded decrement is the sole arbiter of availability: when it
// affects no row the book either does not exist or has no free copies,
// and the transaction leaves no trace.
func (s *service) IssueBook(ctx context.Context, req IssueRequest) (*Loan, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.issue",
		trace.WithAttributes(
			attribute.Int64("book.id", req.BookID),
			attribute.Int64("borrower.id", req.BorrowerID),
		),
	)
	defer span.End()

	issueDate := req.IssueDate
	if issueDate.IsZero() {
		issueDate = Today()
	}
	dueDate := req.DueDate
	if dueDate.IsZero() {
		dueDate = issueDate.AddDays(s.loanPeriod)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE books SET available = available - 1 WHERE id = ? AND available > 0`), req.BookID)
	if err != nil {
		return nil, fmt.Errorf("claim copy: %w", err)
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}

	var title string
	err = tx.GetContext(ctx, &title, tx.Rebind(`SELECT title FROM books WHERE id = ?`), req.BookID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, catalog.ErrBookNotFound
		}
		return nil, fmt.Errorf("load book: %w", err)
	}
	if claimed == 0 {
		span.SetAttributes(attribute.Bool("issue.no_copies", true))
		return nil, ErrNoCopiesAvailable
	}

	var borrowerName string
	err = tx.GetContext(ctx, &borrowerName, tx.Rebind(`SELECT full_name FROM users WHERE id = ?`), req.BorrowerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBorrowerNotFound
		}
		return nil, fmt.Errorf("load borrower: %w", err)
	}

	id, err := storage.InsertReturningID(ctx, tx, `
		INSERT INTO issues (book_id, book_title, user_id, user_name, issue_date, due_date, late_days, issued_by, remarks)
		VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		req.BookID, title, req.BorrowerID, borrowerName,
		issueDate.String(), dueDate.String(), req.IssuedBy, req.Remarks)
	if err != nil {
		return nil, fmt.Errorf("insert loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Int64("loan.id", id))
	s.logger.Info("book issued",
		zap.Int64("loan_id", id),
		zap.Int64("book_id", req.BookID),
		zap.Int64("borrower_id", req.BorrowerID),
		zap.String("due_date", dueDate.String()))

	return &Loan{
		ID:           id,
		BookID:       req.BookID,
		BookTitle:    title,
		BorrowerID:   req.BorrowerID,
		BorrowerName: borrowerName,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		IssuedBy:     req.IssuedBy,
		Remarks:      req.Remarks,
	}, nil
}

// ReturnBook closes an open loan and releases its copy. A loan is closed
// at most once: the return_date IS NULL guard in the update makes a second
// return a no-op that surfaces ErrAlreadyReturned.
func (s *service) ReturnBook(ctx context.Context, loanID int64, returnDate Date, remarks string) (int, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.return",
		trace.WithAttributes(attribute.Int64("loan.id", loanID)),
	)
	defer span.End()

	if returnDate.IsZero() {
		returnDate = Today()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `SELECT id, book_id, due_date, return_date FROM issues WHERE id = ?`
	if s.db.DriverName() == "postgres" {
		query += " FOR UPDATE"
	}
	var row struct {
		ID         int64          `db:"id"`
		BookID     int64          `db:"book_id"`
		DueDate    string         `db:"due_date"`
		ReturnDate sql.NullString `db:"return_date"`
	}
	err = tx.GetContext(ctx, &row, tx.Rebind(query), loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrLoanNotFound
		}
		return 0, fmt.Errorf("load loan: %w", err)
	}
	if row.ReturnDate.Valid {
		span.SetAttributes(attribute.Bool("return.duplicate", true))
		return 0, ErrAlreadyReturned
	}

	dueDate, err := ParseDate(row.DueDate)
	if err != nil {
		return 0, fmt.Errorf("stored due date: %w", err)
	}
	lateDays := LateDays(dueDate.Time, returnDate.Time)

	appended := ""
	if trimmed := strings.TrimSpace(remarks); trimmed != "" {
		appended = returnRemarksMarker + trimmed
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`
		UPDATE issues
		SET return_date = ?, late_days = ?, remarks = COALESCE(remarks, '') || ?
		WHERE id = ? AND return_date IS NULL`),
		returnDate.String(), lateDays, appended, loanID)
	if err != nil {
		return 0, fmt.Errorf("close loan: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return 0, ErrAlreadyReturned
	}

	// A decrement always preceded this increment, but the clamp keeps
	// available within quantity even after manual catalog edits.
	_, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE books SET available = available + 1 WHERE id = ? AND available < quantity`), row.BookID)
	if err != nil {
		return 0, fmt.Errorf("release copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	span.SetAttributes(attribute.Int("loan.late_days", lateDays))
	s.logger.Info("book returned",
		zap.Int64("loan_id", loanID),
		zap.Int64("book_id", row.BookID),
		zap.Int("late_days", lateDays))
	return lateDays, nil
}

// GetLoan retrieves a single loan snapshot.
func (s *service) GetLoan(ctx context.Context, id int64) (*Loan, error) {
	var row loanRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(`SELECT `+loanColumns+` FROM issues WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLoanNotFound
		}
		return nil, fmt.Errorf("get loan: %w", err)
	}
	return row.toLoan()
}

// ListLoans returns all loans, newest first.
func (s *service) ListLoans(ctx context.Context) ([]*Loan, error) {
	return s.listLoans(ctx)
}

// ListLoansForBorrower returns the loan history of one borrower, newest first.
func (s *service) ListLoansForBorrower(ctx context.Context, borrowerID int64) ([]*Loan, error) {
	return s.listLoans(ctx, goqu.C("user_id").Eq(borrowerID))
}

// ListOpenLoans returns loans that have not been returned, newest first.
func (s *service) ListOpenLoans(ctx context.Context) ([]*Loan, error) {
	return s.listLoans(ctx, goqu.C("return_date").IsNull())
}

const loanColumns = "id, book_id, book_title, user_id, user_name, issue_date, due_date, return_date, late_days, issued_by, remarks"

type loanRow struct {
	ID         int64          `db:"id"`
	BookID     int64          `db:"book_id"`
	BookTitle  string         `db:"book_title"`
	UserID     int64          `db:"user_id"`
	UserName   string         `db:"user_name"`
	IssueDate  string         `db:"issue_date"`
	DueDate    string         `db:"due_date"`
	ReturnDate sql.NullString `db:"return_date"`
	LateDays   int            `db:"late_days"`
	IssuedBy   string         `db:"issued_by"`
	Remarks    string         `db:"remarks"`
}

func (r *loanRow) toLoan() (*Loan, error) {
	issueDate, err := ParseDate(r.IssueDate)
	if err != nil {
		return nil, fmt.Errorf("stored issue date: %w", err)
	}
	dueDate, err := ParseDate(r.DueDate)
	if err != nil {
		return nil, fmt.Errorf("stored due date: %w", err)
	}

	loan := &Loan{
		ID:           r.ID,
		BookID:       r.BookID,
		BookTitle:    r.BookTitle,
		BorrowerID:   r.UserID,
		BorrowerName: r.UserName,
		IssueDate:    issueDate,
		DueDate:      dueDate,
		LateDays:     r.LateDays,
		IssuedBy:     r.IssuedBy,
		Remarks:      r.Remarks,
	}
	if r.ReturnDate.Valid {
		returned, err := ParseDate(r.ReturnDate.String)
		if err != nil {
			return nil, fmt.Errorf("stored return date: %w", err)
		}
		loan.ReturnDate = &returned
	}
	return loan, nil
}

func (s *service) listLoans(ctx context.Context, where ...goqu.Expression) ([]*Loan, error) {
	ds := goqu.Dialect(s.db.DriverName()).
		From("issues").
		Select("id", "book_id", "book_title", "user_id", "user_name", "issue_date", "due_date", "return_date", "late_days", "issued_by", "remarks").
		Order(goqu.C("id").Desc())
	if len(where) > 0 {
		ds = ds.Where(where...)
	}

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build loan query: %w", err)
	}

	var rows []loanRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list loans: %w", err)
	}

	loans := make([]*Loan, 0, len(rows))
	for i := range rows {
		loan, err := rows[i].toLoan()
		if err != nil {
			return nil, err
		}
		loans = append(loans, loan)
	}
	return loans, nil
}
