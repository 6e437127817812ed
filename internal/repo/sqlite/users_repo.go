package sqlite

import (
	"context"
	"errors"

	"github.com/geocoder89/taskhub/internal/domain/user"
	"github.com/geocoder89/taskhub/internal/observability"
	"gorm.io/gorm"
)

type UsersRepo struct {
	db   *gorm.DB
	prom *observability.Prom
}

func NewUsersRepo(db *gorm.DB, prom *observability.Prom) *UsersRepo {
	return &UsersRepo{db: db, prom: prom}
}

func (r *UsersRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	u.Email = user.NormalizeEmail(u.Email)
	m := userToModel(u)

	err := r.prom.ObserveDB(ctx, "users.create", func() error {
		return r.db.WithContext(ctx).Create(&m).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailAlreadyUsed
		}
		return user.User{}, err
	}

	return userFromModel(m), nil
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return r.first(ctx, "users.get_by_email", "email = ?", user.NormalizeEmail(email))
}

func (r *UsersRepo) GetByID(ctx context.Context, id string) (user.User, error) {
	return r.first(ctx, "users.get_by_id", "id = ?", id)
}

func (r *UsersRepo) first(ctx context.Context, op, cond string, arg any) (user.User, error) {
	var m userModel
	err := r.prom.ObserveDB(ctx, op, func() error {
		return r.db.WithContext(ctx).First(&m, cond, arg).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}

	return userFromModel(m), nil
}
