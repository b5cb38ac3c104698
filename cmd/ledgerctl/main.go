// ledgerctl is a small command-line client for the bookledger API.
package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"bookledger/internal/catalog"
	"bookledger/internal/clients"
	"bookledger/internal/ledger"
)

var apiURL string

func main() {
	root := &cobra.Command{
		Use:           "ledgerctl",
		Short:         "Command-line client for the bookledger API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultURL := os.Getenv("BOOKLEDGER_API_URL")
	if defaultURL == "" {
		defaultURL = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&apiURL, "api", defaultURL, "base URL of the bookledger API")

	root.AddCommand(addBookCmd(), searchCmd(), issueCmd(), returnCmd(), loansCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addBookCmd() *cobra.Command {
	var book catalog.Book

	cmd := &cobra.Command{
		Use:   "add-book",
		Short: "Add a book to the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			created, err := clients.NewCatalogClient(apiURL).AddBook(cmd.Context(), book)
			if err != nil {
				return err
			}
			fmt.Printf("added book %d: %s by %s (%d copies)\n", created.ID, created.Title, created.Author, created.Quantity)
			return nil
		},
	}

	cmd.Flags().StringVar(&book.Title, "title", "", "book title")
	cmd.Flags().StringVar(&book.Author, "author", "", "book author")
	cmd.Flags().StringVar(&book.ISBN, "isbn", "", "ISBN")
	cmd.Flags().StringVar(&book.Category, "category", "", "category")
	cmd.Flags().StringVar(&book.Publisher, "publisher", "", "publisher")
	cmd.Flags().IntVar(&book.Quantity, "quantity", 1, "number of copies")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("author")

	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search the catalog",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			books, err := clients.NewCatalogClient(apiURL).Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tAUTHOR\tAVAILABLE")
			for _, b := range books {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d/%d\n", b.ID, b.Title, b.Author, b.Available, b.Quantity)
			}
			return w.Flush()
		},
	}
}

func issueCmd() *cobra.Command {
	var req ledger.IssueRequest
	var issueDate, dueDate string

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a book to a borrower",
		RunE: func(cmd *cobra.Command, args []string) error {
			if issueDate != "" {
				d, err := ledger.ParseDate(issueDate)
				if err != nil {
					return fmt.Errorf("invalid --issue-date: %w", err)
				}
				req.IssueDate = d
			}
			if dueDate != "" {
				d, err := ledger.ParseDate(dueDate)
				if err != nil {
					return fmt.Errorf("invalid --due-date: %w", err)
				}
				req.DueDate = d
			}

			loan, err := clients.NewLedgerClient(apiURL).IssueBook(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Printf("loan %d: %q to %s, due %s\n", loan.ID, loan.BookTitle, loan.BorrowerName, loan.DueDate)
			return nil
		},
	}

	cmd.Flags().Int64Var(&req.BookID, "book", 0, "book ID")
	cmd.Flags().Int64Var(&req.BorrowerID, "borrower", 0, "borrower user ID")
	cmd.Flags().StringVar(&issueDate, "issue-date", "", "issue date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&dueDate, "due-date", "", "due date (YYYY-MM-DD, default issue date plus loan period)")
	cmd.Flags().StringVar(&req.IssuedBy, "issued-by", "", "librarian username")
	cmd.Flags().StringVar(&req.Remarks, "remarks", "", "remarks")
	cmd.MarkFlagRequired("book")
	cmd.MarkFlagRequired("borrower")

	return cmd
}

func returnCmd() *cobra.Command {
	var returnDate, remarks string

	cmd := &cobra.Command{
		Use:   "return <loan-id>",
		Short: "Return a book",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loanID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid loan ID %q", args[0])
			}

			var when *ledger.Date
			if returnDate != "" {
				d, err := ledger.ParseDate(returnDate)
				if err != nil {
					return fmt.Errorf("invalid --return-date: %w", err)
				}
				when = &d
			}

			lateDays, err := clients.NewLedgerClient(apiURL).ReturnBook(cmd.Context(), loanID, when, remarks)
			if err != nil {
				return err
			}
			if lateDays > 0 {
				fmt.Printf("returned %d days late\n", lateDays)
			} else {
				fmt.Println("returned on time")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&returnDate, "return-date", "", "return date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&remarks, "remarks", "", "return remarks")

	return cmd
}

func loansCmd() *cobra.Command {
	var borrowerID int64
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "loans",
		Short: "List loans",
		RunE: func(cmd *cobra.Command, args []string) error {
			loans, err := clients.NewLedgerClient(apiURL).ListLoans(cmd.Context(), borrowerID, openOnly)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tBOOK\tBORROWER\tISSUED\tDUE\tRETURNED\tLATE")
			for _, l := range loans {
				returned := "-"
				if l.ReturnDate != nil {
					returned = l.ReturnDate.String()
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\t%d\n",
					l.ID, l.BookTitle, l.BorrowerName, l.IssueDate, l.DueDate, returned, l.LateDays)
			}
			return w.Flush()
		},
	}

	cmd.Flags().Int64Var(&borrowerID, "borrower", 0, "filter by borrower user ID")
	cmd.Flags().BoolVar(&openOnly, "open", false, "only loans not yet returned")

	return cmd
}
