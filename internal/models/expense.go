package models

import (
	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
)

// Expense is a committed expense row.
type Expense struct {
	Base
	UserID        string                       `gorm:"type:uuid;not null;index" json:"userId"`
	Title         string                       `gorm:"not null" json:"title"`
	Description   string                       `gorm:"not null" json:"description"`
	Amount        decimal.Decimal              `gorm:"type:numeric(12,2);not null" json:"amount"`
	Category      domain.Category              `gorm:"size:32;not null;index" json:"category"`
	Merchant      string                       `json:"merchant,omitempty"`
	Date          domain.Date                  `gorm:"not null;index" json:"date"`
	ImageURL      string                       `json:"imageUrl,omitempty"`
	ExtractedData *domain.ExtractedExpenseData `gorm:"serializer:json" json:"extractedData,omitempty"`
}

// ToDomain returns the API representation of the row.
func (e *Expense) ToDomain() domain.Expense {
	return domain.Expense{
		ID:            e.ID,
		Title:         e.Title,
		Description:   e.Description,
		Amount:        e.Amount,
		Category:      domain.ParseCategory(string(e.Category)),
		Merchant:      e.Merchant,
		Date:          e.Date,
		ImageURL:      e.ImageURL,
		ExtractedData: e.ExtractedData.Clone(),
		UserID:        e.UserID,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
	}
}

// ExpensesToDomain converts a slice of rows.
func ExpensesToDomain(rows []Expense) []domain.Expense {
	out := make([]domain.Expense, len(rows))
	for i := range rows {
		out[i] = rows[i].ToDomain()
	}
	return out
}
