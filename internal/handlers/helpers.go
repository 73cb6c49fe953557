package handlers

import (
	"github.com/gin-gonic/gin"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/middleware"
	"spendsnap/internal/models"
	"spendsnap/internal/uuid"
	"spendsnap/internal/validator"
)

// getUserID extracts the authenticated user ID from the Gin context.
// Returns ErrUnauthorized if not present.
func getUserID(c *gin.Context) (string, error) {
	userID := c.GetString("userID")
	if userID == "" {
		return "", apperrors.ErrUnauthorized
	}
	return userID, nil
}

// parseExpenseID validates the :id path parameter.
func parseExpenseID(c *gin.Context) (string, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid expense id")
	}
	return id, nil
}

// bindJSON decodes the request body into req and runs the field rules.
func bindJSON(c *gin.Context, req any) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return validator.Struct(req)
}

// respondWithError writes the failure envelope for err.
func respondWithError(c *gin.Context, err error) {
	middleware.RespondWithError(c, err)
}

// MessageResponse is the envelope of endpoints that return no data.
type MessageResponse = domain.APIResponse[any]

// ErrorResponse documents the failure envelope.
type ErrorResponse struct {
	Success bool   `json:"success" example:"false"`
	Message string `json:"message" example:"Expense not found"`
	Error   string `json:"error" example:"EXPENSE_NOT_FOUND"`
}

// expensesOrEmpty converts rows for a response, never returning nil.
func expensesOrEmpty(rows []models.Expense) []domain.Expense {
	if len(rows) == 0 {
		return []domain.Expense{}
	}
	return models.ExpensesToDomain(rows)
}
