package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"spendsnap/internal/domain"
	"spendsnap/internal/models"
)

// TestPassword is the plaintext password of every fixture user.
const TestPassword = "password123"

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Name:     fmt.Sprintf("Test User %d", nextID()),
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestExpense creates an expense dated today in the Others category.
func CreateTestExpense(t *testing.T, db *gorm.DB, userID string, amount string) *models.Expense {
	t.Helper()
	return CreateTestExpenseWith(t, db, userID, amount, domain.CategoryOthers, domain.DateOf(time.Now()))
}

// CreateTestExpenseWith creates an expense with the given category and date.
func CreateTestExpenseWith(t *testing.T, db *gorm.DB, userID string, amount string, category domain.Category, date domain.Date) *models.Expense {
	t.Helper()

	n := nextID()
	expense := &models.Expense{
		UserID:      userID,
		Title:       fmt.Sprintf("Expense %d", n),
		Description: fmt.Sprintf("Test expense number %d", n),
		Amount:      decimal.RequireFromString(amount),
		Category:    category,
		Date:        date,
	}
	if err := db.Create(expense).Error; err != nil {
		t.Fatalf("failed to create test expense: %v", err)
	}
	return expense
}
