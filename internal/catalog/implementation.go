package catalog

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
	"go.uber.org/zap"

	"bookledger/internal/storage"
)

const bookColumns = "id, isbn, title, author, category, publisher, publish_year, edition, quantity, available"

// service implements the Service interface.
type service struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// NewService creates a new catalog service instance.
func NewService(db *sqlx.DB, logger *zap.Logger) Service {
	return &service{db: db, logger: logger}
}

// AddBook creates a new book with all copies available.
func (s *service) AddBook(ctx context.Context, book Book) (*Book, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	}
	if strings.TrimSpace(book.Author) == "" {
		return nil, fmt.Errorf("%w: author", ErrMissingField)
	}
	if book.Quantity < 0 {
		return nil, fmt.Errorf("%w: quantity %d", ErrInvalidCopyCount, book.Quantity)
	}
	book.Available = book.Quantity

	id, err := storage.InsertReturningID(ctx, s.db, `
		INSERT INTO books (isbn, title, author, category, publisher, publish_year, edition, quantity, available)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		book.ISBN, book.Title, book.Author, book.Category, book.Publisher,
		book.PublishYear, book.Edition, book.Quantity, book.Available)
	if err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	book.ID = id

	s.logger.Info("book added",
		zap.Int64("book_id", book.ID),
		zap.String("title", book.Title),
		zap.Int("quantity", book.Quantity))
	return &book, nil
}

// EditBook replaces the descriptive fields and copy counts of a book.
// Copy counts must keep 0 <= available <= quantity.
func (s *service) EditBook(ctx context.Context, id int64, book Book) (*Book, error) {
	if strings.TrimSpace(book.Title) == "" {
		return nil, fmt.Errorf("%w: title", ErrMissingField)
	}
	if strings.TrimSpace(book.Author) == "" {
		return nil, fmt.Errorf("%w: author", ErrMissingField)
	}
	if book.Quantity < 0 || book.Available < 0 {
		return nil, fmt.Errorf("%w: counts must not be negative", ErrInvalidCopyCount)
	}
	if book.Available > book.Quantity {
		return nil, fmt.Errorf("%w: available %d exceeds quantity %d", ErrInvalidCopyCount, book.Available, book.Quantity)
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE books
		SET isbn = ?, title = ?, author = ?, category = ?, publisher = ?, publish_year = ?, edition = ?, quantity = ?, available = ?
		WHERE id = ?`),
		book.ISBN, book.Title, book.Author, book.Category, book.Publisher,
		book.PublishYear, book.Edition, book.Quantity, book.Available, id)
	if err != nil {
		return nil, fmt.Errorf("update book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrBookNotFound
	}

	book.ID = id
	s.logger.Info("book updated", zap.Int64("book_id", id))
	return &book, nil
}

// DeleteBook removes a book from the catalog. Books with open loans are
// refused so the loan ledger never charges against a missing record.
func (s *service) DeleteBook(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var open int
	err = tx.GetContext(ctx, &open, tx.Rebind(`SELECT COUNT(*) FROM issues WHERE book_id = ? AND return_date IS NULL`), id)
	if err != nil {
		return fmt.Errorf("count open loans: %w", err)
	}
	if open > 0 {
		return fmt.Errorf("%w: %d outstanding", ErrBookOnLoan, open)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM books WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrBookNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info("book deleted", zap.Int64("book_id", id))
	return nil
}

// GetBook retrieves a book snapshot by its ID.
func (s *service) GetBook(ctx context.Context, id int64) (*Book, error) {
	book := &Book{}
	err := s.db.GetContext(ctx, book, s.db.Rebind(`SELECT `+bookColumns+` FROM books WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book: %w", err)
	}
	return book, nil
}

// GetBookByISBN retrieves a book snapshot by ISBN.
func (s *service) GetBookByISBN(ctx context.Context, isbn string) (*Book, error) {
	book := &Book{}
	err := s.db.GetContext(ctx, book, s.db.Rebind(`SELECT `+bookColumns+` FROM books WHERE isbn = ?`), isbn)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookNotFound
		}
		return nil, fmt.Errorf("get book by isbn: %w", err)
	}
	return book, nil
}

// ListBooks returns the whole catalog, newest first.
func (s *service) ListBooks(ctx context.Context) ([]*Book, error) {
	var books []*Book
	err := s.db.SelectContext(ctx, &books, `SELECT `+bookColumns+` FROM books ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return books, nil
}

// Search matches the keyword as a case-insensitive substring against
// isbn, title, author, and category, newest first.
func (s *service) Search(ctx context.Context, keyword string) ([]*Book, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"

	ds := goqu.Dialect(s.db.DriverName()).
		From("books").
		Select("id", "isbn", "title", "author", "category", "publisher", "publish_year", "edition", "quantity", "available").
		Where(goqu.Or(
			goqu.Func("lower", goqu.C("isbn")).Like(pattern),
			goqu.Func("lower", goqu.C("title")).Like(pattern),
			goqu.Func("lower", goqu.C("author")).Like(pattern),
			goqu.Func("lower", goqu.C("category")).Like(pattern),
		)).
		Order(goqu.C("id").Desc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	var books []*Book
	if err := s.db.SelectContext(ctx, &books, query, args...); err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	return books, nil
}
