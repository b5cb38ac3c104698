package ledger

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrLoanNotFound      = errors.New("loan not found")
	ErrBorrowerNotFound  = errors.New("borrower not found")
	ErrNoCopiesAvailable = errors.New("no copies available")
	ErrAlreadyReturned   = errors.New("loan already returned")
)

// DateLayout is the wire and storage format for loan dates.
const DateLayout = "2006-01-02"

// Date is a calendar day without a time-of-day component.
type Date struct {
	time.Time
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD)", s)
	}
	return Date{Time: t}, nil
}

// Today returns the current calendar day in UTC.
func Today() Date {
	y, m, d := time.Now().UTC().Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// AddDays returns the date n days later.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" || s == `""` {
		*d = Date{}
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s (want YYYY-MM-DD)", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Loan represents one copy of a book held by a borrower between issue and
// return. BookTitle and BorrowerName are snapshots taken at issue time and
// are never refreshed from the catalog or directory.
type Loan struct {
	ID           int64  `json:"id"`
	BookID       int64  `json:"book_id"`
	BookTitle    string `json:"book_title"`
	BorrowerID   int64  `json:"borrower_id"`
	BorrowerName string `json:"borrower_name"`
	IssueDate    Date   `json:"issue_date"`
	DueDate      Date   `json:"due_date"`
	ReturnDate   *Date  `json:"return_date,omitempty"`
	LateDays     int    `json:"late_days"`
	IssuedBy     string `json:"issued_by"`
	Remarks      string `json:"remarks,omitempty"`
}

// Open reports whether the loan is still outstanding.
func (l *Loan) Open() bool {
	return l.ReturnDate == nil
}

// IssueRequest carries the operator input for issuing one copy of a book.
// IssueDate defaults to today and DueDate to the configured loan period
// when left zero.
type IssueRequest struct {
	BookID     int64  `json:"book_id"`
	BorrowerID int64  `json:"borrower_id"`
	IssueDate  Date   `json:"issue_date"`
	DueDate    Date   `json:"due_date"`
	IssuedBy   string `json:"issued_by"`
	Remarks    string `json:"remarks"`
}
