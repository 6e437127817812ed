// Package service holds the business operations behind the HTTP handlers.
// Handlers bind and respond; everything that decides something lives here.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/taskhub/internal/apperr"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const msgInvalidLogin = "Invalid email or password"

type UserStore interface {
	Create(ctx context.Context, u user.User) (user.User, error)
	GetByEmail(ctx context.Context, email string) (user.User, error)
	GetByID(ctx context.Context, id string) (user.User, error)
}

type TokenIssuer interface {
	Issue(principalID string, role user.Role) (auth.Token, error)
}

type RegisterInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type AuthResult struct {
	User      user.Summary `json:"user"`
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

type AuthService struct {
	users    UserStore
	tokens   TokenIssuer
	profiles *cache.Cache[user.Profile]
	loads    singleflight.Group // collapses concurrent profile misses
	validate *validator.Validate
	log      *slog.Logger
	now      func() time.Time
}

// NewAuthService wires the credential operations. profiles may be nil to
// disable profile caching.
func NewAuthService(users UserStore, tokens TokenIssuer, profiles *cache.Cache[user.Profile], log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}

	return &AuthService{
		users:    users,
		tokens:   tokens,
		profiles: profiles,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
		now:      time.Now,
	}
}

func (s *AuthService) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = user.NormalizeEmail(in.Email)

	if err := s.validate.Struct(in); err != nil {
		return AuthResult{}, validationError(err)
	}
	if len(in.Password) > security.MaxPasswordBytes {
		return AuthResult{}, passwordTooLong()
	}

	_, err := s.users.GetByEmail(ctx, in.Email)
	switch {
	case err == nil:
		return AuthResult{}, apperr.New(apperr.KindDuplicateIdentity, "User already exists with this email")
	case !errors.Is(err, user.ErrNotFound):
		return AuthResult{}, apperr.Internal("Could not create user", fmt.Errorf("lookup email: %w", err))
	}

	hash, err := security.HashPassword(in.Password)
	if errors.Is(err, security.ErrPasswordTooLong) {
		return AuthResult{}, passwordTooLong()
	}
	if err != nil {
		return AuthResult{}, apperr.Internal("Could not create user", err)
	}

	now := s.now().UTC()

	created, err := s.users.Create(ctx, user.User{
		ID:           uuid.NewString(),
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         user.RoleMember,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, user.ErrEmailAlreadyUsed) {
			return AuthResult{}, apperr.New(apperr.KindDuplicateIdentity, "User already exists with this email")
		}
		return AuthResult{}, apperr.Internal("Could not create user", fmt.Errorf("create user: %w", err))
	}

	res, err := s.issue(created)
	if err != nil {
		return AuthResult{}, err
	}

	s.log.InfoContext(ctx, "auth.register", "user_id", created.ID)

	return res, nil
}

// Authenticate returns the same error for every failure so a caller cannot
// tell an unknown email from a wrong password or a disabled account.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, user.NormalizeEmail(email))
	if err != nil {
		if !errors.Is(err, user.ErrNotFound) {
			return AuthResult{}, apperr.Internal("Could not log in", fmt.Errorf("lookup email: %w", err))
		}

		security.BurnCompare(password)
		s.loginFailed(ctx, "unknown_email", "")
		return AuthResult{}, apperr.New(apperr.KindAuthenticationFailed, msgInvalidLogin)
	}

	if err := security.CheckPassword(u.PasswordHash, password); err != nil {
		s.loginFailed(ctx, "bad_password", u.ID)
		return AuthResult{}, apperr.New(apperr.KindAuthenticationFailed, msgInvalidLogin)
	}

	if !u.IsActive {
		s.loginFailed(ctx, "inactive", u.ID)
		return AuthResult{}, apperr.New(apperr.KindAuthenticationFailed, msgInvalidLogin)
	}

	return s.issue(u)
}

func (s *AuthService) Profile(ctx context.Context, p user.Principal) (user.Profile, error) {
	if s.profiles != nil {
		if prof, ok := s.profiles.Get(p.ID); ok {
			return prof, nil
		}
	}

	// the load is shared, so one caller's cancellation must not fail the rest
	loadCtx := context.WithoutCancel(ctx)
	v, err, _ := s.loads.Do(p.ID, func() (any, error) {
		u, err := s.users.GetByID(loadCtx, p.ID)
		if err != nil {
			return nil, err
		}

		prof := u.Profile()
		if s.profiles != nil {
			s.profiles.Set(p.ID, prof)
		}
		return prof, nil
	})
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.Profile{}, apperr.NotFound("User not found")
		}
		return user.Profile{}, apperr.Internal("Could not load profile", fmt.Errorf("get user: %w", err))
	}

	return v.(user.Profile), nil
}

func (s *AuthService) issue(u user.User) (AuthResult, error) {
	tok, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return AuthResult{}, apperr.Internal("Could not generate access token", err)
	}

	return AuthResult{User: u.Summary(), Token: tok.Value, ExpiresAt: tok.ExpiresAt}, nil
}

func (s *AuthService) loginFailed(ctx context.Context, reason, userID string) {
	attrs := []any{"reason", reason}
	if userID != "" {
		attrs = append(attrs, "user_id", userID)
	}
	s.log.WarnContext(ctx, "auth.login_failed", attrs...)
}

func passwordTooLong() error {
	param := strconv.Itoa(security.MaxPasswordBytes)
	return apperr.Validation("Validation error", apperr.FieldError{
		Field:   "password",
		Rule:    "max",
		Param:   param,
		Message: "must be at most " + param + " bytes",
	})
}

func validationError(err error) error {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return apperr.Validation("Validation error")
	}

	fields := make([]apperr.FieldError, 0, len(ves))
	for _, fe := range ves {
		fields = append(fields, apperr.FieldError{
			Field:   strings.ToLower(fe.Field()),
			Rule:    fe.Tag(),
			Param:   fe.Param(),
			Message: apperr.RuleMessage(fe.Tag(), fe.Param()),
		})
	}

	return apperr.Validation("Validation error", fields...)
}
