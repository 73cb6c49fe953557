package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/models"
	"spendsnap/internal/pagination"
	"spendsnap/internal/uuid"
)

// expenseService handles expense-related business logic.
type expenseService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewExpenseService creates a new ExpenseServicer.
func NewExpenseService(db *gorm.DB) ExpenseServicer {
	return &expenseService{db: db, now: time.Now}
}

// CreateExpense stores a new expense for the user. A client-supplied id is
// kept when it is a valid UUID that is not yet taken.
func (s *expenseService) CreateExpense(userID string, req domain.CreateExpenseRequest) (*models.Expense, error) {
	if err := checkExpenseFields(req.Amount.IsNegative(), req.Category); err != nil {
		return nil, err
	}

	expense := &models.Expense{
		UserID:        userID,
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		Amount:        req.Amount,
		Category:      req.Category,
		Merchant:      strings.TrimSpace(req.Merchant),
		Date:          req.Date,
		ImageURL:      req.ImageURL,
		ExtractedData: req.ExtractedData.Clone(),
	}

	if req.ID != "" {
		id, err := uuid.Parse(req.ID)
		if err != nil {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "expense id must be a UUID")
		}
		var count int64
		if err := s.db.Unscoped().Model(&models.Expense{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return nil, apperrors.ErrDuplicateID
		}
		expense.ID = id
	}

	if err := s.db.Create(expense).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return expense, nil
}

// GetUserExpenses retrieves a paginated, filtered list of the user's expenses,
// newest first.
func (s *expenseService) GetUserExpenses(userID string, page pagination.PageRequest, filter ExpenseFilter) (*pagination.PageResponse[models.Expense], error) {
	page.Defaults()

	base := s.db.Model(&models.Expense{}).Where("user_id = ?", userID)
	base = applyExpenseFilters(base, filter)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var expenses []models.Expense
	if err := base.Scopes(pagination.Paginate(page)).
		Order("date DESC").Order("created_at DESC").
		Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(expenses, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// ListUserExpenses returns every matching expense without paging. Exports use it.
func (s *expenseService) ListUserExpenses(userID string, filter ExpenseFilter) ([]models.Expense, error) {
	q := applyExpenseFilters(s.db.Model(&models.Expense{}).Where("user_id = ?", userID), filter)

	var expenses []models.Expense
	if err := q.Order("date DESC").Order("created_at DESC").Find(&expenses).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return expenses, nil
}

func applyExpenseFilters(q *gorm.DB, f ExpenseFilter) *gorm.DB {
	if f.Category != nil {
		q = q.Where("category = ?", *f.Category)
	}
	if f.StartDate != nil {
		q = q.Where("date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		q = q.Where("date <= ?", *f.EndDate)
	}
	if term := strings.TrimSpace(f.Search); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(merchant) LIKE ?", like, like, like)
	}
	return q
}

// GetExpenseByID retrieves an expense by ID for a specific user
func (s *expenseService) GetExpenseByID(userID, expenseID string) (*models.Expense, error) {
	var expense models.Expense
	if err := s.db.Where("id = ? AND user_id = ?", expenseID, userID).First(&expense).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrExpenseNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &expense, nil
}

// UpdateExpense merges the supplied fields into the stored expense.
func (s *expenseService) UpdateExpense(userID, expenseID string, req domain.UpdateExpenseRequest) (*models.Expense, error) {
	negative := req.Amount != nil && req.Amount.IsNegative()
	category := domain.CategoryOthers
	if req.Category != nil {
		category = *req.Category
	}
	if err := checkExpenseFields(negative, category); err != nil {
		return nil, err
	}

	expense, err := s.GetExpenseByID(userID, expenseID)
	if err != nil {
		return nil, err
	}

	merged := expense.ToDomain().Apply(req, s.now())
	expense.Title = strings.TrimSpace(merged.Title)
	expense.Description = strings.TrimSpace(merged.Description)
	expense.Amount = merged.Amount
	expense.Category = merged.Category
	expense.Merchant = strings.TrimSpace(merged.Merchant)
	expense.Date = merged.Date
	expense.ImageURL = merged.ImageURL
	expense.ExtractedData = merged.ExtractedData

	if err := s.db.Save(expense).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return expense, nil
}

// DeleteExpense removes the user's expense.
func (s *expenseService) DeleteExpense(userID, expenseID string) error {
	result := s.db.Where("id = ? AND user_id = ?", expenseID, userID).Delete(&models.Expense{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrExpenseNotFound
	}
	return nil
}

func checkExpenseFields(negativeAmount bool, category domain.Category) error {
	if negativeAmount {
		return apperrors.ErrInvalidAmount
	}
	if !category.IsValid() {
		return apperrors.ErrInvalidCategory
	}
	return nil
}
