package capture

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
	"spendsnap/internal/validator"
)

// Draft is the editable expense form. Fields hold the text as typed;
// ImageURL and Extracted are carried along from a successful extraction.
type Draft struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description" validate:"required,trim_min=3,trim_max=500"`
	Amount      string `json:"amount" validate:"required,amount_format,amount_min,amount_max"`
	Category    string `json:"category" validate:"required,expense_category"`
	Merchant    string `json:"merchant"`
	Date        string `json:"date" validate:"required,ymd_date,not_far_future"`

	ImageURL  string                       `json:"imageUrl,omitempty" validate:"-"`
	Extracted *domain.ExtractedExpenseData `json:"extractedData,omitempty" validate:"-"`
}

// NewDraft returns an empty form dated today with category Others.
func NewDraft(now time.Time) *Draft {
	return &Draft{
		Category: string(domain.CategoryOthers),
		Date:     domain.DateOf(now).String(),
	}
}

// DraftFromExpense fills the form from an existing expense for editing.
func DraftFromExpense(e domain.Expense) *Draft {
	d := &Draft{
		Title:       e.Title,
		Description: e.Description,
		Amount:      formatAmount(e.Amount),
		Category:    string(e.Category),
		Merchant:    e.Merchant,
		Date:        e.Date.String(),
		ImageURL:    e.ImageURL,
		Extracted:   e.ExtractedData.Clone(),
	}
	if d.Category == "" {
		d.Category = string(domain.CategoryOthers)
	}
	return d
}

// Merge copies the fields present in x into the draft. Absent fields and
// empty strings never overwrite what the user already has. A present amount
// is taken even when it is zero.
func (d *Draft) Merge(x *domain.ExtractedExpenseData) {
	if x == nil {
		return
	}
	if x.Title != nil && *x.Title != "" {
		d.Title = *x.Title
	}
	if x.Description != nil && *x.Description != "" {
		d.Description = *x.Description
	}
	if x.Amount != nil {
		d.Amount = formatAmount(*x.Amount)
	}
	if x.Merchant != nil && *x.Merchant != "" {
		d.Merchant = *x.Merchant
	}
	if x.Category != nil && *x.Category != "" {
		d.Category = string(*x.Category)
	}
	if x.Date != nil && !x.Date.IsZero() {
		d.Date = x.Date.String()
	}
	d.Extracted = x.Clone()
}

// Validate checks every field and returns an INVALID_INPUT error whose
// message is the first failure. Use Errors for the full set.
func (d *Draft) Validate() error {
	return validator.Struct(d.trimmed())
}

// Errors maps each invalid field to its message. It is empty when the draft
// is valid.
func (d *Draft) Errors() map[string]string {
	out := validator.FieldErrors(d.Validate())
	if out == nil {
		out = map[string]string{}
	}
	return out
}

func (d *Draft) trimmed() Draft {
	t := *d
	t.Title = strings.TrimSpace(t.Title)
	t.Amount = strings.TrimSpace(t.Amount)
	t.Merchant = strings.TrimSpace(t.Merchant)
	t.Date = strings.TrimSpace(t.Date)
	return t
}

// CreateRequest validates the draft and builds the request to add it.
func (d *Draft) CreateRequest() (domain.CreateExpenseRequest, error) {
	if err := d.Validate(); err != nil {
		return domain.CreateExpenseRequest{}, err
	}
	t := d.trimmed()
	amount, _ := validator.ParseAmount(t.Amount)
	date, _ := domain.ParseDate(t.Date)
	return domain.CreateExpenseRequest{
		Title:         t.Title,
		Description:   strings.TrimSpace(t.Description),
		Amount:        amount,
		Category:      domain.Category(t.Category),
		Merchant:      t.Merchant,
		Date:          date,
		ImageURL:      t.ImageURL,
		ExtractedData: t.Extracted.Clone(),
	}, nil
}

// UpdateRequest validates the draft and builds a full update. The image and
// extraction snapshot are only sent when the draft has them.
func (d *Draft) UpdateRequest() (domain.UpdateExpenseRequest, error) {
	req, err := d.CreateRequest()
	if err != nil {
		return domain.UpdateExpenseRequest{}, err
	}
	u := domain.UpdateExpenseRequest{
		Title:         &req.Title,
		Description:   &req.Description,
		Amount:        &req.Amount,
		Category:      &req.Category,
		Merchant:      &req.Merchant,
		Date:          &req.Date,
		ExtractedData: req.ExtractedData,
	}
	if req.ImageURL != "" {
		u.ImageURL = &req.ImageURL
	}
	return u, nil
}

// formatAmount renders amounts with at least two decimals: 42.5 → "42.50".
func formatAmount(a decimal.Decimal) string {
	if a.Exponent() >= -2 {
		return a.StringFixed(2)
	}
	return a.String()
}
