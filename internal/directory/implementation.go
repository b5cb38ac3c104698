package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bookledger/internal/storage"
)

const (
	userColumns      = "id, full_name, username, password_hash, salt, email, phone, role, address, gender, status, date_created, last_login"
	librarianColumns = "id, full_name, username, password_hash, salt, email, phone, address, gender, date_joining, shift, status"

	resetTokenTTL = 15 * time.Minute
)

// service implements the Service interface.
type service struct {
	db          *sqlx.DB
	logger      *zap.Logger
	authLimiter *rate.Limiter
}

// NewService creates a new directory service instance. ratePerMinute bounds
// registration, login, and reset-token attempts across all callers.
func NewService(db *sqlx.DB, logger *zap.Logger, ratePerMinute int) Service {
	return &service{
		db:          db,
		logger:      logger,
		authLimiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(ratePerMinute)), ratePerMinute),
	}
}

// RegisterUser creates a new user account with a salted Argon2id credential.
func (s *service) RegisterUser(ctx context.Context, user User, password string) (*User, error) {
	if !s.authLimiter.Allow() {
		return nil, ErrRateLimited
	}
	if err := validateAccount(user.FullName, user.Username, password); err != nil {
		return nil, err
	}
	if user.Role == "" {
		user.Role = "User"
	}
	if user.Status == "" {
		user.Status = "Active"
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = hash
	user.Salt = salt
	user.DateCreated = time.Now().UTC().Format(time.RFC3339)

	id, err := storage.InsertReturningID(ctx, s.db, `
		INSERT INTO users (full_name, username, password_hash, salt, email, phone, role, address, gender, status, date_created, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')`,
		user.FullName, user.Username, user.PasswordHash, user.Salt, user.Email,
		user.Phone, user.Role, user.Address, user.Gender, user.Status, user.DateCreated)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	user.ID = id

	s.logger.Info("user registered", zap.Int64("user_id", id), zap.String("username", user.Username))
	return &user, nil
}

// Authenticate verifies a user's credentials and records the login time.
func (s *service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	if !s.authLimiter.Allow() {
		return nil, ErrRateLimited
	}

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	ok, err := verifyPassword(password, user.Salt, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	user.LastLogin = time.Now().UTC().Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`UPDATE users SET last_login = ? WHERE id = ?`), user.LastLogin, user.ID)
	if err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}

	return user, nil
}

// GetUser retrieves a user by ID.
func (s *service) GetUser(ctx context.Context, id int64) (*User, error) {
	user := &User{}
	err := s.db.GetContext(ctx, user, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// GetUserByUsername retrieves a user by username.
func (s *service) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	user := &User{}
	err := s.db.GetContext(ctx, user, s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE username = ?`), username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by username: %w", err)
	}
	return user, nil
}

// ListUsers returns all users, newest first.
func (s *service) ListUsers(ctx context.Context) ([]*User, error) {
	var users []*User
	err := s.db.SelectContext(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// UpdateUser replaces a user's profile fields. Credentials are untouched;
// password changes go through the reset-token flow.
func (s *service) UpdateUser(ctx context.Context, id int64, user User) (*User, error) {
	if err := validateName(user.FullName, user.Username); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE users
		SET full_name = ?, username = ?, email = ?, phone = ?, role = ?, address = ?, gender = ?, status = ?
		WHERE id = ?`),
		user.FullName, user.Username, user.Email, user.Phone, user.Role,
		user.Address, user.Gender, user.Status, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrUserNotFound
	}

	return s.GetUser(ctx, id)
}

// DeleteUser removes a user account. Loan history keeps its name snapshots.
func (s *service) DeleteUser(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM users WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	s.logger.Info("user deleted", zap.Int64("user_id", id))
	return nil
}

// AddLibrarian creates a new librarian record.
func (s *service) AddLibrarian(ctx context.Context, librarian Librarian, password string) (*Librarian, error) {
	if err := validateAccount(librarian.FullName, librarian.Username, password); err != nil {
		return nil, err
	}
	if librarian.Status == "" {
		librarian.Status = "Active"
	}

	hash, salt, err := hashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	librarian.PasswordHash = hash
	librarian.Salt = salt

	id, err := storage.InsertReturningID(ctx, s.db, `
		INSERT INTO librarians (full_name, username, password_hash, salt, email, phone, address, gender, date_joining, shift, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		librarian.FullName, librarian.Username, librarian.PasswordHash, librarian.Salt,
		librarian.Email, librarian.Phone, librarian.Address, librarian.Gender,
		librarian.DateJoining, librarian.Shift, librarian.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("insert librarian: %w", err)
	}
	librarian.ID = id

	s.logger.Info("librarian added", zap.Int64("librarian_id", id), zap.String("username", librarian.Username))
	return &librarian, nil
}

// GetLibrarian retrieves a librarian by ID.
func (s *service) GetLibrarian(ctx context.Context, id int64) (*Librarian, error) {
	librarian := &Librarian{}
	err := s.db.GetContext(ctx, librarian, s.db.Rebind(`SELECT `+librarianColumns+` FROM librarians WHERE id = ?`), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrLibrarianNotFound
		}
		return nil, fmt.Errorf("get librarian: %w", err)
	}
	return librarian, nil
}

// ListLibrarians returns all librarians, newest first.
func (s *service) ListLibrarians(ctx context.Context) ([]*Librarian, error) {
	var librarians []*Librarian
	err := s.db.SelectContext(ctx, &librarians, `SELECT `+librarianColumns+` FROM librarians ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list librarians: %w", err)
	}
	return librarians, nil
}

// SearchLibrarians matches the keyword against name, username, email, and
// phone, newest first.
func (s *service) SearchLibrarians(ctx context.Context, keyword string) ([]*Librarian, error) {
	pattern := "%" + strings.ToLower(keyword) + "%"

	ds := goqu.Dialect(s.db.DriverName()).
		From("librarians").
		Select("id", "full_name", "username", "password_hash", "salt", "email", "phone", "address", "gender", "date_joining", "shift", "status").
		Where(goqu.Or(
			goqu.Func("lower", goqu.C("full_name")).Like(pattern),
			goqu.Func("lower", goqu.C("username")).Like(pattern),
			goqu.Func("lower", goqu.C("email")).Like(pattern),
			goqu.Func("lower", goqu.C("phone")).Like(pattern),
		)).
		Order(goqu.C("id").Desc())

	query, args, err := ds.Prepared(true).ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build search query: %w", err)
	}

	var librarians []*Librarian
	if err := s.db.SelectContext(ctx, &librarians, query, args...); err != nil {
		return nil, fmt.Errorf("search librarians: %w", err)
	}
	return librarians, nil
}

// UpdateLibrarian replaces a librarian's profile fields.
func (s *service) UpdateLibrarian(ctx context.Context, id int64, librarian Librarian) (*Librarian, error) {
	if err := validateName(librarian.FullName, librarian.Username); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, s.db.Rebind(`
		UPDATE librarians
		SET full_name = ?, username = ?, email = ?, phone = ?, address = ?, gender = ?, date_joining = ?, shift = ?, status = ?
		WHERE id = ?`),
		librarian.FullName, librarian.Username, librarian.Email, librarian.Phone,
		librarian.Address, librarian.Gender, librarian.DateJoining, librarian.Shift,
		librarian.Status, id)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("update librarian: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, ErrLibrarianNotFound
	}

	return s.GetLibrarian(ctx, id)
}

// DeleteLibrarian removes a librarian record.
func (s *service) DeleteLibrarian(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM librarians WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("delete librarian: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrLibrarianNotFound
	}
	s.logger.Info("librarian deleted", zap.Int64("librarian_id", id))
	return nil
}

// CreateResetToken issues a short-lived password-reset token for the user.
func (s *service) CreateResetToken(ctx context.Context, username string) (string, error) {
	if !s.authLimiter.Allow() {
		return "", ErrRateLimited
	}

	user, err := s.GetUserByUsername(ctx, username)
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	expiresAt := time.Now().UTC().Add(resetTokenTTL).Format(time.RFC3339)
	_, err = s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO reset_tokens (token, user_id, expires_at) VALUES (?, ?, ?)`),
		token, user.ID, expiresAt)
	if err != nil {
		return "", fmt.Errorf("insert reset token: %w", err)
	}

	s.logger.Info("reset token created", zap.Int64("user_id", user.ID))
	return token, nil
}

// ResetPassword consumes a reset token and installs a new credential.
// The token is deleted in the same transaction, so it is usable once.
func (s *service) ResetPassword(ctx context.Context, token, newPassword string) error {
	if strings.TrimSpace(newPassword) == "" {
		return fmt.Errorf("%w: password", ErrMissingField)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var row struct {
		UserID    int64  `db:"user_id"`
		ExpiresAt string `db:"expires_at"`
	}
	err = tx.GetContext(ctx, &row, tx.Rebind(`SELECT user_id, expires_at FROM reset_tokens WHERE token = ?`), token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTokenNotFound
		}
		return fmt.Errorf("load reset token: %w", err)
	}

	expiresAt, err := time.Parse(time.RFC3339, row.ExpiresAt)
	if err != nil {
		return fmt.Errorf("stored expiry: %w", err)
	}
	if time.Now().UTC().After(expiresAt) {
		return ErrTokenExpired
	}

	hash, salt, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE users SET password_hash = ?, salt = ? WHERE id = ?`), hash, salt, row.UserID)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM reset_tokens WHERE token = ?`), token); err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.logger.Info("password reset", zap.Int64("user_id", row.UserID))
	return nil
}

func validateAccount(fullName, username, password string) error {
	if err := validateName(fullName, username); err != nil {
		return err
	}
	if strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: password", ErrMissingField)
	}
	return nil
}

func validateName(fullName, username string) error {
	if strings.TrimSpace(fullName) == "" {
		return fmt.Errorf("%w: full_name", ErrMissingField)
	}
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username", ErrMissingField)
	}
	return nil
}

// isUniqueViolation recognizes unique-constraint errors from both drivers.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
