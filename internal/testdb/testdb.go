// Package testdb opens throwaway sqlite databases for package tests.
package testdb

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Skotchmaster/game_store/internal/models"
	pkgdb "github.com/Skotchmaster/game_store/pkg/db"
	"github.com/Skotchmaster/game_store/pkg/hash"
)

func init() {
	hash.Cost = bcrypt.MinCost
}

func New(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := pkgdb.Open(context.Background(), pkgdb.DriverSQLite, ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}
	t.Cleanup(func() { _ = pkgdb.Close(db) })
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, email string, role models.Role) *models.User {
	t.Helper()
	pw, err := hash.HashPassword("secret123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &models.User{Name: "user " + email, Email: email, PasswordHash: pw, Role: role}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func CreateProduct(t *testing.T, db *gorm.DB, title, price string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		Title:    title,
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		Platform: "PS5",
		Genre:    "RPG",
		Active:   true,
	}
	if err := db.Create(p).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return p
}

func Stock(t *testing.T, db *gorm.DB, productID uint) int {
	t.Helper()
	var p models.Product
	if err := db.First(&p, productID).Error; err != nil {
		t.Fatalf("load product %d: %v", productID, err)
	}
	return p.Stock
}

func Count(t *testing.T, db *gorm.DB, model any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count %T: %v", model, err)
	}
	return n
}

func Email(n int) string {
	return fmt.Sprintf("user%d@example.com", n)
}
