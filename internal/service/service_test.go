package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/repo/memory"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func assertKind(t *testing.T, err error, want apperr.Kind) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	if got := apperr.KindOf(err); got != want {
		t.Fatalf("kind = %s, want %s (err=%v)", got, want, err)
	}
}

func newAuthFixture(t *testing.T) (*AuthService, *memory.UsersRepo, *auth.Manager) {
	t.Helper()

	users := memory.NewUsersRepo()
	tokens := auth.NewManager("test-secret", time.Hour)
	svc := NewAuthService(users, tokens, cache.New[user.Profile](time.Minute), discardLogger())

	return svc, users, tokens
}

func mustRegister(t *testing.T, svc *AuthService, name, email string) AuthResult {
	t.Helper()

	res, err := svc.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: "secret1"})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

// fakeUserStore lets a test control each store call.
type fakeUserStore struct {
	CreateFn     func(ctx context.Context, u user.User) (user.User, error)
	GetByEmailFn func(ctx context.Context, email string) (user.User, error)
	GetByIDFn    func(ctx context.Context, id string) (user.User, error)
}

func (f *fakeUserStore) Create(ctx context.Context, u user.User) (user.User, error) {
	return f.CreateFn(ctx, u)
}

func (f *fakeUserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return f.GetByEmailFn(ctx, email)
}

func (f *fakeUserStore) GetByID(ctx context.Context, id string) (user.User, error) {
	return f.GetByIDFn(ctx, id)
}

var errBoom = errors.New("boom")
