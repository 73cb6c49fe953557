package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Amounts travel as JSON numbers, as the mobile API always sent them.
	decimal.MarshalJSONWithoutQuotes = true
}

// Expense is a committed expense record owned by a user.
type Expense struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Amount        decimal.Decimal       `json:"amount"`
	Category      Category              `json:"category"`
	Merchant      string                `json:"merchant,omitempty"`
	Date          Date                  `json:"date"`
	ImageURL      string                `json:"imageUrl,omitempty"`
	ExtractedData *ExtractedExpenseData `json:"extractedData,omitempty"`
	UserID        string                `json:"userId"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// CreateExpenseRequest is a fully formed expense candidate, ready to commit.
// ID is assigned by the ledger before the request leaves the client; the API
// generates one when it is empty.
type CreateExpenseRequest struct {
	ID            string                `json:"id,omitempty"`
	Title         string                `json:"title" validate:"required"`
	Description   string                `json:"description" validate:"required"`
	Amount        decimal.Decimal       `json:"amount" validate:"gte=0"`
	Category      Category              `json:"category" validate:"required,expense_category"`
	Merchant      string                `json:"merchant,omitempty"`
	Date          Date                  `json:"date" validate:"required"`
	ImageURL      string                `json:"imageUrl,omitempty"`
	ExtractedData *ExtractedExpenseData `json:"extractedData,omitempty"`
}

// UpdateExpenseRequest carries a partial update. Nil fields are left as they are.
type UpdateExpenseRequest struct {
	Title         *string               `json:"title,omitempty" validate:"omitnil,required"`
	Description   *string               `json:"description,omitempty" validate:"omitnil,required"`
	Amount        *decimal.Decimal      `json:"amount,omitempty" validate:"omitnil,gte=0"`
	Category      *Category             `json:"category,omitempty" validate:"omitnil,expense_category"`
	Merchant      *string               `json:"merchant,omitempty"`
	Date          *Date                 `json:"date,omitempty" validate:"omitnil,required"`
	ImageURL      *string               `json:"imageUrl,omitempty"`
	ExtractedData *ExtractedExpenseData `json:"extractedData,omitempty"`
}

// IsEmpty reports whether the update carries no fields at all.
func (u UpdateExpenseRequest) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Amount == nil &&
		u.Category == nil && u.Merchant == nil && u.Date == nil &&
		u.ImageURL == nil && u.ExtractedData == nil
}

// NewExpense builds the committed record for req.
func NewExpense(id, userID string, req CreateExpenseRequest, now time.Time) Expense {
	if id == "" {
		id = req.ID
	}
	return Expense{
		ID:            id,
		Title:         req.Title,
		Description:   req.Description,
		Amount:        req.Amount,
		Category:      req.Category,
		Merchant:      req.Merchant,
		Date:          req.Date,
		ImageURL:      req.ImageURL,
		ExtractedData: req.ExtractedData.Clone(),
		UserID:        userID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Apply returns a copy of e with the supplied fields of u merged in and the
// updated timestamp set to now. Identity and ownership never change.
func (e Expense) Apply(u UpdateExpenseRequest, now time.Time) Expense {
	out := e.Clone()
	if u.Title != nil {
		out.Title = *u.Title
	}
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Amount != nil {
		out.Amount = *u.Amount
	}
	if u.Category != nil {
		out.Category = *u.Category
	}
	if u.Merchant != nil {
		out.Merchant = *u.Merchant
	}
	if u.Date != nil {
		out.Date = *u.Date
	}
	if u.ImageURL != nil {
		out.ImageURL = *u.ImageURL
	}
	if u.ExtractedData != nil {
		out.ExtractedData = u.ExtractedData.Clone()
	}
	out.UpdatedAt = now
	return out
}

// Clone returns a deep copy of e.
func (e Expense) Clone() Expense {
	e.ExtractedData = e.ExtractedData.Clone()
	return e
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
