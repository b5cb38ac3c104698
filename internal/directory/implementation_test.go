package directory_test

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bookledger/internal/config"
	"bookledger/internal/directory"
	"bookledger/internal/storage"
)

func setupDirectory(t *testing.T) (directory.Service, *sqlx.DB) {
	t.Helper()

	cfg := &config.Config{
		DatabaseDriver: "sqlite3",
		DatabaseURL:    ":memory:",
	}
	db, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	// A generous rate limit keeps these tests from tripping the limiter.
	return directory.NewService(db, zap.NewNop(), 1000), db
}

func TestRegisterAndAuthenticate(t *testing.T) {
	svc, _ := setupDirectory(t)
	ctx := context.Background()

	created, err := svc.RegisterUser(ctx, directory.User{
		FullName: "Ada Lovelace",
		Username: "ada",
		Email:    "ada@example.com",
	}, "s3cret-pass")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "User", created.Role)
	assert.Equal(t, "Active", created.Status)

	authed, err := svc.Authenticate(ctx, "ada", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, created.ID, authed.ID)
	assert.NotEmpty(t, authed.LastLogin)

	_, err = svc.Authenticate(ctx, "ada", "wrong-pass")
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody", "s3cret-pass")
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials, "unknown usernames must not be distinguishable")
}

func TestRegisterRejectsDuplicateUsername(t *testing.T) {
	svc, _ := setupDirectory(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, directory.User{FullName: "Ada Lovelace", Username: "ada"}, "pass-one")
	require.NoError(t, err)

	_, err = svc.RegisterUser(ctx, directory.User{FullName: "Another Ada", Username: "ada"}, "pass-two")
	assert.ErrorIs(t, err, directory.ErrUsernameTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := setupDirectory(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, directory.User{Username: "ada"}, "pass")
	assert.ErrorIs(t, err, directory.ErrMissingField)

	_, err = svc.RegisterUser(ctx, directory.User{FullName: "Ada Lovelace"}, "pass")
	assert.ErrorIs(t, err, directory.ErrMissingField)

	_, err = svc.RegisterUser(ctx, directory.User{FullName: "Ada Lovelace", Username: "ada"}, "  ")
	assert.ErrorIs(t, err, directory.ErrMissingField)
}

func TestAuthRateLimit(t *testing.T) {
	cfg := &config.Config{DatabaseDriver: "sqlite3", DatabaseURL: ":memory:"}
	db, err := storage.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	svc := directory.NewService(db, zap.NewNop(), 2)
	ctx := context.Background()

	_, err = svc.RegisterUser(ctx, directory.User{FullName: "Ada Lovelace", Username: "ada"}, "pass")
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, "ada", "pass")
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "ada", "pass")
	assert.ErrorIs(t, err, directory.ErrRateLimited)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	svc, _ := setupDirectory(t)
	ctx := context.Background()

	created, err := svc.RegisterUser(ctx, directory.User{FullName: "Ada Lovelace", Username: "ada"}, "pass")
	require.NoError(t, err)

	created.Email = "ada@newdomain.example"
	created.Status = "Suspended"
	updated, err := svc.UpdateUser(ctx, created.ID, *created)
	require.NoError(t, err)
	assert.Equal(t, "ada@newdomain.example", updated.Email)
	assert.Equal(t, "Suspended", updated.Status)

	require.NoError(t, svc.DeleteUser(ctx, created.ID))

	_, err = svc.GetUser(ctx, created.ID)
	assert.ErrorIs(t, err, directory.ErrUserNotFound)

	err = svc.DeleteUser(ctx, created.ID)
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}

func TestLibrarianLifecycle(t *testing.T) {
	svc, _ := setupDirectory(t)
	ctx := context.Background()

	created, err := svc.AddLibrarian(ctx, directory.Librarian{
		FullName:    "Grace Hopper",
		Username:    "grace",
		Email:       "grace@example.com",
		Phone:       "555-0100",
		DateJoining: "2024-01-01",
		Shift:       "Morning",
	}, "s3cret-pass")
	require.NoError(t, err)
	assert.NotZero(t, created.ID)

	got, err := svc.GetLibrarian(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", got.FullName)

	all, err := svc.ListLibrarians(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	got.Shift = "Evening"
	updated, err := svc.UpdateLibrarian(ctx, got.ID, *got)
	require.NoError(t, err)
	assert.Equal(t, "Evening", updated.Shift)

	require.NoError(t, svc.DeleteLibrarian(ctx, created.ID))
	_, err = svc.GetLibrarian(ctx, created.ID)
	assert.ErrorIs(t, err, directory.ErrLibrarianNotFound)
}

func TestSearchLibrarians(t *testing.T) {
	svc, _ := setupDirectory(t)
	ctx := context.Background()

	_, err := svc.AddLibrarian(ctx, directory.Librarian{FullName: "Grace Hopper", Username: "grace", Phone: "555-0100"}, "pass")
	require.NoError(t, err)
	_, err = svc.AddLibrarian(ctx, directory.Librarian{FullName: "Barbara Liskov", Username: "barbara", Email: "liskov@example.com"}, "pass")
	require.NoError(t, err)

	byName, err := svc.SearchLibrarians(ctx, "hopper")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "grace", byName[0].Username)

	byEmail, err := svc.SearchLibrarians(ctx, "liskov@")
	require.NoError(t, err)
	require.Len(t, byEmail, 1)
	assert.Equal(t, "barbara", byEmail[0].Username)

	byPhone, err := svc.SearchLibrarians(ctx, "555-0100")
	require.NoError(t, err)
	require.Len(t, byPhone, 1)

	none, err := svc.SearchLibrarians(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPasswordResetFlow(t *testing.T) {
	svc, _ := setupDirectory(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, directory.User{FullName: "Ada Lovelace", Username: "ada"}, "old-pass")
	require.NoError(t, err)

	token, err := svc.CreateResetToken(ctx, "ada")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	require.NoError(t, svc.ResetPassword(ctx, token, "new-pass"))

	_, err = svc.Authenticate(ctx, "ada", "old-pass")
	assert.ErrorIs(t, err, directory.ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "ada", "new-pass")
	require.NoError(t, err)

	// The token is single use.
	err = svc.ResetPassword(ctx, token, "another-pass")
	assert.ErrorIs(t, err, directory.ErrTokenNotFound)
}

func TestResetTokenExpiry(t *testing.T) {
	svc, db := setupDirectory(t)
	ctx := context.Background()

	_, err := svc.RegisterUser(ctx, directory.User{FullName: "Ada Lovelace", Username: "ada"}, "old-pass")
	require.NoError(t, err)

	token, err := svc.CreateResetToken(ctx, "ada")
	require.NoError(t, err)

	_, err = db.Exec(`UPDATE reset_tokens SET expires_at = '2020-01-01T00:00:00Z' WHERE token = ?`, token)
	require.NoError(t, err)

	err = svc.ResetPassword(ctx, token, "new-pass")
	assert.ErrorIs(t, err, directory.ErrTokenExpired)
}

func TestResetTokenForUnknownUser(t *testing.T) {
	svc, _ := setupDirectory(t)

	_, err := svc.CreateResetToken(context.Background(), "nobody")
	assert.ErrorIs(t, err, directory.ErrUserNotFound)
}
