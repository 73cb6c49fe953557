package domain

// APIResponse is the generic response envelope of the expense API.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// AuthResponse is returned by the login and signup endpoints.
type AuthResponse struct {
	Success bool   `json:"success"`
	User    User   `json:"user"`
	Token   string `json:"token"`
	Message string `json:"message,omitempty"`
}

// ImageUploadResponse is returned by the extraction endpoint.
type ImageUploadResponse struct {
	Success       bool                  `json:"success"`
	ExtractedData *ExtractedExpenseData `json:"extractedData,omitempty"`
	Message       string                `json:"message,omitempty"`
	Error         string                `json:"error,omitempty"`
}

// Page is the pagination block attached to list responses.
type Page struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	TotalItems int64 `json:"totalItems"`
	TotalPages int   `json:"totalPages"`
}

// ExpenseListResponse is returned by GET /expenses.
type ExpenseListResponse struct {
	Success    bool      `json:"success"`
	Data       []Expense `json:"data"`
	Pagination Page      `json:"pagination"`
	Message    string    `json:"message,omitempty"`
}
