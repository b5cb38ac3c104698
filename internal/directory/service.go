package directory

import "context"

// Service defines the interface for the directory of users and librarians.
type Service interface {
	RegisterUser(ctx context.Context, user User, password string) (*User, error)
	Authenticate(ctx context.Context, username, password string) (*User, error)
	GetUser(ctx context.Context, id int64) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, id int64, user User) (*User, error)
	DeleteUser(ctx context.Context, id int64) error

	AddLibrarian(ctx context.Context, librarian Librarian, password string) (*Librarian, error)
	GetLibrarian(ctx context.Context, id int64) (*Librarian, error)
	ListLibrarians(ctx context.Context) ([]*Librarian, error)
	SearchLibrarians(ctx context.Context, keyword string) ([]*Librarian, error)
	UpdateLibrarian(ctx context.Context, id int64, librarian Librarian) (*Librarian, error)
	DeleteLibrarian(ctx context.Context, id int64) error

	CreateResetToken(ctx context.Context, username string) (string, error)
	ResetPassword(ctx context.Context, token, newPassword string) error
}
