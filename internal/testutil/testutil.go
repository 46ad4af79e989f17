// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"context"
	"log/slog"
	"testing"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/marketplace/internal/credential"
	"github.com/Skotchmaster/marketplace/internal/db"
	"github.com/Skotchmaster/marketplace/internal/logging"
	"github.com/Skotchmaster/marketplace/internal/models"
)

func init() {
	credential.Cost = bcrypt.MinCost
}

// OpenDB returns a migrated in-memory sqlite database closed at test cleanup.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	return OpenDBWithLogger(t, slog.Default())
}

// OpenDBWithLogger is OpenDB with GORM output sent to l.
func OpenDBWithLogger(t testing.TB, l *slog.Logger) *gorm.DB {
	t.Helper()

	gdb, err := db.Open(logging.IntoContext(context.Background(), l), db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = db.Close(gdb) })

	return gdb
}

// CreateUser inserts a user whose password is "password".
func CreateUser(t testing.TB, gdb *gorm.DB, username string) *models.User {
	t.Helper()

	hash, err := credential.Hash("password")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{
		Fullname: username + " Test",
		Username: username,
		Email:    username + "@example.com",
		Password: hash,
	}
	if err := gdb.Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreateProduct inserts a product owned by owner.
func CreateProduct(t testing.TB, gdb *gorm.DB, owner *models.User, name string) *models.Product {
	t.Helper()

	p := &models.Product{
		Category:    "Shoes",
		Name:        name,
		Description: "test_description",
		PriceRange:  "50-100",
		Filename:    name + ".png",
		UserID:      owner.ID,
	}
	if err := gdb.Create(p).Error; err != nil {
		t.Fatalf("create product %s: %v", name, err)
	}
	return p
}
