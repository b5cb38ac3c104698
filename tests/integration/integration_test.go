// Integration tests for the full HTTP surface. They run against postgres
// when DATABASE_URL is set and fall back to an in-memory sqlite database,
// so they work both locally and in CI without a running cluster.
package integration

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookledger/internal/catalog"
	"bookledger/internal/clients"
	"bookledger/internal/config"
	"bookledger/internal/directory"
	"bookledger/internal/ledger"
	"bookledger/internal/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	cfg := &config.Config{
		DatabaseDriver:    "sqlite3",
		DatabaseURL:       ":memory:",
		LoanPeriodDays:    14,
		AuthRatePerMinute: 1000,
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		cfg.DatabaseDriver = "postgres"
		cfg.DatabaseURL = url
	}

	db, err := storage.Open(context.Background(), cfg)
	if err != nil {
		if cfg.DatabaseDriver == "postgres" {
			t.Skipf("postgres not reachable: %v", err)
		}
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if cfg.DatabaseDriver == "postgres" {
			db.Exec(`TRUNCATE books, users, librarians, issues, reset_tokens`)
		}
		db.Close()
	})

	logger := zap.NewNop()
	directoryHandler := directory.NewHandler(directory.NewService(db, logger, cfg.AuthRatePerMinute))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Mount("/books", catalog.NewHandler(catalog.NewService(db, logger)).Routes())
	r.Mount("/loans", ledger.NewHandler(ledger.NewService(db, logger, cfg.LoanPeriodDays)).Routes())
	r.Mount("/users", directoryHandler.UserRoutes())
	r.Mount("/librarians", directoryHandler.LibrarianRoutes())
	r.Mount("/auth", directoryHandler.AuthRoutes())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func registerUser(t *testing.T, baseURL, fullName, username string) int64 {
	t.Helper()

	body := `{"full_name": "` + fullName + `", "username": "` + username + `", "password": "s3cret-pass"}`
	resp, err := http.Post(baseURL+"/users", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user directory.User
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	return user.ID
}

func TestLendingFlow(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	catalogClient := clients.NewCatalogClient(srv.URL)
	ledgerClient := clients.NewLedgerClient(srv.URL)

	borrowerID := registerUser(t, srv.URL, "Ada Lovelace", "ada-flow")

	book, err := catalogClient.AddBook(ctx, catalog.Book{
		Title:    "The Go Programming Language",
		Author:   "Donovan and Kernighan",
		ISBN:     "978-0134190440",
		Quantity: 2,
	})
	require.NoError(t, err)
	require.Equal(t, 2, book.Available)

	issueDate, err := ledger.ParseDate("2024-01-01")
	require.NoError(t, err)
	dueDate, err := ledger.ParseDate("2024-01-15")
	require.NoError(t, err)

	loan, err := ledgerClient.IssueBook(ctx, ledger.IssueRequest{
		BookID:     book.ID,
		BorrowerID: borrowerID,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		IssuedBy:   "grace",
	})
	require.NoError(t, err)
	assert.Equal(t, "The Go Programming Language", loan.BookTitle)
	assert.Equal(t, "Ada Lovelace", loan.BorrowerName)

	afterIssue, err := catalogClient.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, afterIssue.Available)

	open, err := ledgerClient.ListLoans(ctx, 0, true)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, loan.ID, open[0].ID)

	returnDate, err := ledger.ParseDate("2024-01-20")
	require.NoError(t, err)
	lateDays, err := ledgerClient.ReturnBook(ctx, loan.ID, &returnDate, "worn cover")
	require.NoError(t, err)
	assert.Equal(t, 5, lateDays)

	afterReturn, err := catalogClient.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, afterReturn.Available)

	// A second return of the same loan is refused.
	_, err = ledgerClient.ReturnBook(ctx, loan.ID, &returnDate, "")
	assert.Error(t, err)

	closed, err := ledgerClient.GetLoan(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, closed.LateDays)
	assert.Contains(t, closed.Remarks, "worn cover")
}

func TestConcurrentCheckoutRace(t *testing.T) {
	srv := startServer(t)
	ctx := context.Background()

	catalogClient := clients.NewCatalogClient(srv.URL)
	ledgerClient := clients.NewLedgerClient(srv.URL)

	borrowerID := registerUser(t, srv.URL, "Grace Hopper", "grace-race")

	book, err := catalogClient.AddBook(ctx, catalog.Book{
		Title:    "Rare Volume",
		Author:   "Anonymous",
		Quantity: 1,
	})
	require.NoError(t, err)

	const attempts = 10

	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = ledgerClient.IssueBook(ctx, ledger.IssueRequest{
				BookID:     book.ID,
				BorrowerID: borrowerID,
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.Equal(t, 1, succeeded, "only one checkout may claim the last copy")

	after, err := catalogClient.GetBook(ctx, book.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.Available)
	assert.Equal(t, 1, after.Quantity)
}

func TestAuthFlowOverHTTP(t *testing.T) {
	srv := startServer(t)

	registerUser(t, srv.URL, "Ada Lovelace", "ada-auth")

	resp, err := http.Post(srv.URL+"/auth/login", "application/json",
		strings.NewReader(`{"username": "ada-auth", "password": "s3cret-pass"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/auth/login", "application/json",
		strings.NewReader(`{"username": "ada-auth", "password": "wrong"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/auth/forgot", "application/json",
		strings.NewReader(`{"username": "ada-auth"}`))
	require.NoError(t, err)
	var forgot struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&forgot))
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, forgot.Token)

	resp, err = http.Post(srv.URL+"/auth/reset", "application/json",
		strings.NewReader(`{"token": "`+forgot.Token+`", "new_password": "brand-new-pass"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/auth/login", "application/json",
		strings.NewReader(`{"username": "ada-auth", "password": "brand-new-pass"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
