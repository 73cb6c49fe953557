package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
	"spendsnap/internal/pagination"
	"spendsnap/internal/services"
)

// ExpenseHandler handles expense-related requests
type ExpenseHandler struct {
	expenseService services.ExpenseServicer
	auditService   services.AuditServicer
	events         services.EventPublisher
	log            *zap.SugaredLogger
}

// NewExpenseHandler creates a new ExpenseHandler
func NewExpenseHandler(expenseService services.ExpenseServicer, auditService services.AuditServicer, events services.EventPublisher) *ExpenseHandler {
	if events == nil {
		events = services.NewNoopPublisher()
	}
	return &ExpenseHandler{
		expenseService: expenseService,
		auditService:   auditService,
		events:         events,
		log:            logger.Named("expenses"),
	}
}

// ExpenseQuery holds the filter query parameters of GET /expenses.
type ExpenseQuery struct {
	Category  string `form:"category"`
	StartDate string `form:"startDate"`
	EndDate   string `form:"endDate"`
	Search    string `form:"q"`
}

func (q ExpenseQuery) filter() (services.ExpenseFilter, error) {
	var f services.ExpenseFilter
	if s := strings.TrimSpace(q.Category); s != "" {
		c := domain.Category(s)
		if !c.IsValid() {
			return f, apperrors.ErrInvalidCategory
		}
		f.Category = &c
	}
	if s := strings.TrimSpace(q.StartDate); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			return f, apperrors.WithMessage(apperrors.ErrInvalidInput, "startDate must be YYYY-MM-DD")
		}
		f.StartDate = &d
	}
	if s := strings.TrimSpace(q.EndDate); s != "" {
		d, err := domain.ParseDate(s)
		if err != nil {
			return f, apperrors.WithMessage(apperrors.ErrInvalidInput, "endDate must be YYYY-MM-DD")
		}
		f.EndDate = &d
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, apperrors.WithMessage(apperrors.ErrInvalidInput, "endDate must not be before startDate")
	}
	f.Search = strings.TrimSpace(q.Search)
	return f, nil
}

// ListExpenses returns the caller's expenses, newest first
// @Summary     List expenses
// @Description Get a paginated, filtered list of the user's expenses
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       category  query string false "Category"
// @Param       startDate query string false "Earliest date (YYYY-MM-DD)"
// @Param       endDate   query string false "Latest date (YYYY-MM-DD)"
// @Param       q         query string false "Search title, description and merchant"
// @Param       page      query int    false "Page number" minimum(1)
// @Param       pageSize  query int    false "Items per page" minimum(1) maximum(100)
// @Success     200 {object} domain.ExpenseListResponse "Expenses"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Router      /expenses [get]
func (h *ExpenseHandler) ListExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	var query ExpenseQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}
	filter, err := query.filter()
	if err != nil {
		respondWithError(c, err)
		return
	}

	result, err := h.expenseService.GetUserExpenses(userID, page, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.ExpenseListResponse{
		Success:    true,
		Data:       expensesOrEmpty(result.Data),
		Pagination: result.Pagination,
	})
}

// GetExpense returns one expense
// @Summary     Get expense
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} domain.APIResponse[domain.Expense] "Expense"
// @Failure     400 {object} ErrorResponse "Invalid id"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /expenses/{id} [get]
func (h *ExpenseHandler) GetExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parseExpenseID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.GetExpenseByID(userID, id)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.APIResponse[domain.Expense]{Success: true, Data: expense.ToDomain()})
}

// CreateExpense stores a new expense
// @Summary     Create expense
// @Description Create an expense; a client-generated UUID in "id" is kept
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body domain.CreateExpenseRequest true "Expense"
// @Success     201 {object} domain.APIResponse[domain.Expense] "Created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     409 {object} ErrorResponse "Duplicate id"
// @Router      /expenses [post]
func (h *ExpenseHandler) CreateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req domain.CreateExpenseRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}

	expense, err := h.expenseService.CreateExpense(userID, req)
	if err != nil {
		respondWithError(c, err)
		return
	}
	out := expense.ToDomain()

	h.auditService.Log(userID, services.AuditCreateExpense, "expense", out.ID, c.ClientIP(), map[string]any{
		"title":    out.Title,
		"amount":   out.Amount.StringFixed(2),
		"category": out.Category,
		"scanned":  out.ExtractedData != nil,
	})
	h.publish(c.Request.Context(), services.NewExpenseEvent(services.EventExpenseCreated, out))

	c.JSON(http.StatusCreated, domain.APIResponse[domain.Expense]{Success: true, Data: out, Message: "Expense created successfully"})
}

// UpdateExpense applies a partial update
// @Summary     Update expense
// @Description Update the supplied fields of an expense
// @Tags        expenses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path string                      true "Expense ID"
// @Param       request body domain.UpdateExpenseRequest true "Fields to change"
// @Success     200 {object} domain.APIResponse[domain.Expense] "Updated"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /expenses/{id} [put]
func (h *ExpenseHandler) UpdateExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parseExpenseID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req domain.UpdateExpenseRequest
	if err := bindJSON(c, &req); err != nil {
		respondWithError(c, err)
		return
	}
	if req.IsEmpty() {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "No fields to update"))
		return
	}

	expense, err := h.expenseService.UpdateExpense(userID, id, req)
	if err != nil {
		respondWithError(c, err)
		return
	}
	out := expense.ToDomain()

	h.auditService.Log(userID, services.AuditUpdateExpense, "expense", out.ID, c.ClientIP(), updatedFields(req))
	h.publish(c.Request.Context(), services.NewExpenseEvent(services.EventExpenseUpdated, out))

	c.JSON(http.StatusOK, domain.APIResponse[domain.Expense]{Success: true, Data: out, Message: "Expense updated successfully"})
}

// DeleteExpense removes an expense
// @Summary     Delete expense
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Param       id path string true "Expense ID"
// @Success     200 {object} MessageResponse "Deleted"
// @Failure     404 {object} ErrorResponse "Not found"
// @Router      /expenses/{id} [delete]
func (h *ExpenseHandler) DeleteExpense(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	id, err := parseExpenseID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.expenseService.DeleteExpense(userID, id); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditDeleteExpense, "expense", id, c.ClientIP(), nil)
	h.publish(c.Request.Context(), services.NewExpenseEvent(services.EventExpenseDeleted, domain.Expense{ID: id, UserID: userID}))

	c.JSON(http.StatusOK, MessageResponse{Success: true, Message: "Expense deleted successfully"})
}

// ListCategories returns the category set
// @Summary     List categories
// @Tags        expenses
// @Produce     json
// @Security    BearerAuth
// @Success     200 {object} domain.APIResponse[[]domain.Category] "Categories"
// @Router      /expenses/categories [get]
func (h *ExpenseHandler) ListCategories(c *gin.Context) {
	c.JSON(http.StatusOK, domain.APIResponse[[]domain.Category]{Success: true, Data: domain.Categories})
}

// publish sends an event without failing the request.
func (h *ExpenseHandler) publish(ctx context.Context, event services.ExpenseEvent) {
	if err := h.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		h.log.Warnw("failed to publish expense event", "type", event.Type, "expense_id", event.ExpenseID, "error", err)
	}
}

func updatedFields(req domain.UpdateExpenseRequest) map[string]any {
	changes := map[string]any{}
	if req.Title != nil {
		changes["title"] = *req.Title
	}
	if req.Description != nil {
		changes["description"] = *req.Description
	}
	if req.Amount != nil {
		changes["amount"] = req.Amount.StringFixed(2)
	}
	if req.Category != nil {
		changes["category"] = *req.Category
	}
	if req.Merchant != nil {
		changes["merchant"] = *req.Merchant
	}
	if req.Date != nil {
		changes["date"] = req.Date.String()
	}
	if req.ImageURL != nil {
		changes["imageUrl"] = *req.ImageURL
	}
	return changes
}
