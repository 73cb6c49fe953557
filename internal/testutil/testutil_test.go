package testutil_test

import (
	"testing"
	"time"

	"spendsnap/internal/domain"
	"spendsnap/internal/errors"
	"spendsnap/internal/testutil"
)

func TestSetupTestDB(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	var count int64
	for _, table := range []string{"users", "expenses", "audit_logs"} {
		if err := db.Table(table).Count(&count).Error; err != nil {
			t.Errorf("table %q should exist after migration: %v", table, err)
		}
	}
}

func TestSetupTestDB_isolated(t *testing.T) {
	a := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, a)
	b := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, b)

	testutil.CreateTestUser(t, a)

	var count int64
	b.Table("users").Count(&count)
	if count != 0 {
		t.Errorf("expected second database to be empty, found %d users", count)
	}
}

func TestFixtures(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.TeardownTestDB(t, db)

	user := testutil.CreateTestUser(t, db)
	if user.ID == "" {
		t.Fatal("user should have an ID")
	}

	expense := testutil.CreateTestExpense(t, db, user.ID, "12.34")
	if expense.Amount.String() != "12.34" {
		t.Errorf("expected amount 12.34, got %s", expense.Amount)
	}
	if expense.Category != domain.CategoryOthers {
		t.Errorf("expected category Others, got %s", expense.Category)
	}

	dated := testutil.CreateTestExpenseWith(t, db, user.ID, "1", domain.CategoryTravel, domain.NewDate(2024, time.July, 4))
	if got := dated.ToDomain().Date.String(); got != "2024-07-04" {
		t.Errorf("expected date 2024-07-04, got %s", got)
	}
}

func TestAssertAppError(t *testing.T) {
	err := errors.WithMessage(errors.ErrExpenseNotFound, "custom message")
	testutil.AssertAppError(t, err, "EXPENSE_NOT_FOUND")
}

func TestAssertNoError(t *testing.T) {
	testutil.AssertNoError(t, nil)
}
