package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/Skotchmaster/marketplace/internal/models"
)

func (r *GormRepo) findUser(ctx context.Context, query string, args ...any) (*models.User, error) {
	var user models.User
	if err := r.db(ctx).Where(query, args...).First(&user).Error; err != nil {
		if errors.Is(translate(err), ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// FindUserByUsername returns nil, nil when no user has that username.
func (r *GormRepo) FindUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := r.findUser(ctx, "username = ?", username)
	if err != nil {
		return nil, fmt.Errorf("find user by username: %w", err)
	}
	return user, nil
}

// FindUserByUsernameOrEmail matches identifier against both columns.
func (r *GormRepo) FindUserByUsernameOrEmail(ctx context.Context, identifier string) (*models.User, error) {
	return r.FindUserByUsernameOrEmailPair(ctx, identifier, identifier)
}

// FindUserByUsernameOrEmailPair returns any user colliding with username or email.
func (r *GormRepo) FindUserByUsernameOrEmailPair(ctx context.Context, username, email string) (*models.User, error) {
	user, err := r.findUser(ctx, "username = ? OR email = ?", username, email)
	if err != nil {
		return nil, fmt.Errorf("find user by username or email: %w", err)
	}
	return user, nil
}

func (r *GormRepo) CreateUser(ctx context.Context, u *models.User) error {
	if err := r.db(ctx).Create(u).Error; err != nil {
		if err := translate(err); errors.Is(err, ErrDuplicate) {
			return err
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// FindUsersByIDs resolves product owners in one query.
func (r *GormRepo) FindUsersByIDs(ctx context.Context, ids []uint) (map[uint]models.User, error) {
	out := make(map[uint]models.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var users []models.User
	if err := r.db(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u
	}
	return out, nil
}
