package services

import (
	"context"
	"io"

	"spendsnap/internal/domain"
	"spendsnap/internal/models"
	"spendsnap/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(name, email, password string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// ExpenseFilter holds optional filter parameters for listing expenses.
type ExpenseFilter struct {
	Category  *domain.Category
	StartDate *domain.Date
	EndDate   *domain.Date
	Search    string
}

// ExpenseServicer defines the contract for expense-related business logic.
type ExpenseServicer interface {
	CreateExpense(userID string, req domain.CreateExpenseRequest) (*models.Expense, error)
	GetUserExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error)
	ListUserExpenses(userID string, filter ExpenseFilter) ([]models.Expense, error)
	GetExpenseByID(userID, expenseID string) (*models.Expense, error)
	UpdateExpense(userID, expenseID string, req domain.UpdateExpenseRequest) (*models.Expense, error)
	DeleteExpense(userID, expenseID string) error
}

// ExtractionServicer turns a receipt image into an expense candidate.
type ExtractionServicer interface {
	Extract(ctx context.Context, image []byte, mimeType string) (*domain.ExtractedExpenseData, error)
}

// ExportServicer renders a user's expenses as a downloadable document.
type ExportServicer interface {
	WriteCSV(w io.Writer, expenses []domain.Expense) error
	WritePDF(w io.Writer, report Report) error
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID, action, resourceType, resourceID, ipAddress string, changes map[string]any)
}

// EventPublisher fans expense changes out to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event ExpenseEvent) error
	Close() error
}
