package clients

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"bookledger/internal/ledger"
)

type LedgerClient struct {
	baseURL string
}

func NewLedgerClient(baseURL string) *LedgerClient {
	return &LedgerClient{baseURL: baseURL}
}

func (c *LedgerClient) IssueBook(ctx context.Context, issue ledger.IssueRequest) (*ledger.Loan, error) {
	body, err := json.Marshal(issue)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/loans", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return nil, decodeError(resp)
	}

	var loan ledger.Loan
	if err := json.NewDecoder(resp.Body).Decode(&loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

// ReturnBook closes a loan and reports how many days late it came back.
func (c *LedgerClient) ReturnBook(ctx context.Context, loanID int64, returnDate *ledger.Date, remarks string) (int, error) {
	payload := struct {
		ReturnDate *ledger.Date `json:"return_date,omitempty"`
		Remarks    string       `json:"remarks,omitempty"`
	}{ReturnDate: returnDate, Remarks: remarks}

	body, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/loans/%d/return", c.baseURL, loanID), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, decodeError(resp)
	}

	var result struct {
		LateDays int `json:"late_days"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, err
	}
	return result.LateDays, nil
}

func (c *LedgerClient) GetLoan(ctx context.Context, id int64) (*ledger.Loan, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/loans/%d", c.baseURL, id), nil)
	if err != nil {
		return nil, err
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var loan ledger.Loan
	if err := json.NewDecoder(resp.Body).Decode(&loan); err != nil {
		return nil, err
	}
	return &loan, nil
}

// ListLoans fetches loans, optionally filtered to a borrower or to open
// loans only. Pass borrowerID 0 for no borrower filter.
func (c *LedgerClient) ListLoans(ctx context.Context, borrowerID int64, openOnly bool) ([]*ledger.Loan, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/loans", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	if borrowerID > 0 {
		q.Set("borrower_id", fmt.Sprintf("%d", borrowerID))
	}
	if openOnly {
		q.Set("open", "true")
	}
	req.URL.RawQuery = q.Encode()

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp)
	}

	var loans []*ledger.Loan
	if err := json.NewDecoder(resp.Body).Decode(&loans); err != nil {
		return nil, err
	}
	return loans, nil
}
