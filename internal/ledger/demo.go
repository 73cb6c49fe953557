package ledger

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

// DemoUserID owns the fixture expenses.
const DemoUserID = "1"

// DemoSource is an in-process Source used in demo mode.
type DemoSource struct {
	mu    sync.Mutex
	items []domain.Expense
	now   func() time.Time
}

// NewDemoSource returns an empty demo source.
func NewDemoSource() *DemoSource {
	return &DemoSource{now: time.Now}
}

// Seed replaces the source's contents.
func (d *DemoSource) Seed(items []domain.Expense) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = cloneAll(items)
}

func (d *DemoSource) All(_ context.Context) ([]domain.Expense, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return cloneAll(d.items), nil
}

func (d *DemoSource) Create(_ context.Context, req domain.CreateExpenseRequest) (domain.Expense, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slices.ContainsFunc(d.items, func(e domain.Expense) bool { return e.ID == req.ID }) {
		return domain.Expense{}, apperrors.ErrDuplicateID
	}
	e := domain.NewExpense(req.ID, DemoUserID, req, d.now())
	d.items = slices.Insert(d.items, 0, e)
	return e.Clone(), nil
}

func (d *DemoSource) Update(_ context.Context, id string, req domain.UpdateExpenseRequest) (domain.Expense, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	idx := slices.IndexFunc(d.items, func(e domain.Expense) bool { return e.ID == id })
	if idx < 0 {
		return domain.Expense{}, apperrors.ErrExpenseNotFound
	}
	d.items[idx] = d.items[idx].Apply(req, d.now())
	return d.items[idx].Clone(), nil
}

func (d *DemoSource) Delete(_ context.Context, id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.items = slices.DeleteFunc(d.items, func(e domain.Expense) bool { return e.ID == id })
	return nil
}

// DemoExpenses returns the demo account's fixture expenses.
func DemoExpenses() []domain.Expense {
	fixture := func(id, title, desc, amount string, cat domain.Category, merchant string, day int, created string) domain.Expense {
		ts, _ := time.Parse(time.RFC3339, created)
		return domain.Expense{
			ID:          id,
			Title:       title,
			Description: desc,
			Amount:      decimal.RequireFromString(amount),
			Category:    cat,
			Merchant:    merchant,
			Date:        domain.NewDate(2024, time.January, day),
			UserID:      DemoUserID,
			CreatedAt:   ts,
			UpdatedAt:   ts,
		}
	}
	return []domain.Expense{
		fixture("1", "Grocery Shopping", "Weekly groceries at Walmart", "85.50", domain.CategoryFood, "Walmart", 15, "2024-01-15T10:30:00Z"),
		fixture("2", "Gas Station", "Fuel for car", "45.00", domain.CategoryTransport, "Shell", 14, "2024-01-14T15:20:00Z"),
		fixture("3", "Coffee Shop", "Morning coffee and pastry", "12.75", domain.CategoryFood, "Starbucks", 13, "2024-01-13T08:15:00Z"),
		fixture("4", "Movie Tickets", "Weekend movie with friends", "28.00", domain.CategoryEntertainment, "AMC Theaters", 12, "2024-01-12T19:45:00Z"),
		fixture("5", "Pharmacy", "Prescription medication", "35.20", domain.CategoryHealthcare, "CVS Pharmacy", 11, "2024-01-11T14:30:00Z"),
	}
}
