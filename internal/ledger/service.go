package ledger

import "context"

// Service defines the interface for the lending ledger.
type Service interface {
	IssueBook(ctx context.Context, req IssueRequest) (*Loan, error)
	ReturnBook(ctx context.Context, loanID int64, returnDate Date, remarks string) (int, error)
	GetLoan(ctx context.Context, id int64) (*Loan, error)
	ListLoans(ctx context.Context) ([]*Loan, error)
	ListLoansForBorrower(ctx context.Context, borrowerID int64) ([]*Loan, error)
	ListOpenLoans(ctx context.Context) ([]*Loan, error)
}
