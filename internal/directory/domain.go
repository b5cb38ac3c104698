package directory

import "errors"

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrLibrarianNotFound  = errors.New("librarian not found")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrMissingField       = errors.New("missing required field")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrTokenNotFound      = errors.New("reset token not found")
	ErrTokenExpired       = errors.New("reset token expired")
)

// User represents a library member or staff account. Credentials are
// stored alongside the profile and never serialized.
type User struct {
	ID           int64  `json:"id" db:"id"`
	FullName     string `json:"full_name" db:"full_name"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	Salt         string `json:"-" db:"salt"`
	Email        string `json:"email,omitempty" db:"email"`
	Phone        string `json:"phone,omitempty" db:"phone"`
	Role         string `json:"role" db:"role"`
	Address      string `json:"address,omitempty" db:"address"`
	Gender       string `json:"gender,omitempty" db:"gender"`
	Status       string `json:"status" db:"status"`
	DateCreated  string `json:"date_created,omitempty" db:"date_created"`
	LastLogin    string `json:"last_login,omitempty" db:"last_login"`
}

// Librarian represents a staff record managed by administrators.
type Librarian struct {
	ID           int64  `json:"id" db:"id"`
	FullName     string `json:"full_name" db:"full_name"`
	Username     string `json:"username" db:"username"`
	PasswordHash string `json:"-" db:"password_hash"`
	Salt         string `json:"-" db:"salt"`
	Email        string `json:"email,omitempty" db:"email"`
	Phone        string `json:"phone,omitempty" db:"phone"`
	Address      string `json:"address,omitempty" db:"address"`
	Gender       string `json:"gender,omitempty" db:"gender"`
	DateJoining  string `json:"date_joining,omitempty" db:"date_joining"`
	Shift        string `json:"shift,omitempty" db:"shift"`
	Status       string `json:"status" db:"status"`
}
