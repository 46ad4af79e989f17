package repo

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

type GormRepo struct {
	DB *gorm.DB
}

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

// Tx runs fn inside one transaction. fn must do all of its work through tx;
// the transaction commits when fn returns nil and rolls back otherwise.
func (r *GormRepo) Tx(ctx context.Context, fn func(tx *GormRepo) error) error {
	return r.DB.WithContext(ctx).Transaction(func(db *gorm.DB) error {
		return fn(&GormRepo{DB: db})
	})
}

func (r *GormRepo) db(ctx context.Context) *gorm.DB {
	return r.DB.WithContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case isUniqueViolation(err):
		return ErrDuplicate
	}
	return err
}

// isUniqueViolation covers drivers that do not implement gorm's error translation.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "23505")
}
