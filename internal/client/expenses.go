package client

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

// Export formats accepted by the API.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// DefaultPageSize is the page size used when walking the expense list.
const DefaultPageSize = 100

// ListOptions filters GET /expenses.
type ListOptions struct {
	Category  domain.Category
	StartDate domain.Date
	EndDate   domain.Date
	Search    string
	Page      int
	PageSize  int
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Category != "" {
		q.Set("category", o.Category.String())
	}
	if !o.StartDate.IsZero() {
		q.Set("startDate", o.StartDate.String())
	}
	if !o.EndDate.IsZero() {
		q.Set("endDate", o.EndDate.String())
	}
	if o.Search != "" {
		q.Set("q", o.Search)
	}
	if o.Page > 0 {
		q.Set("page", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(o.PageSize))
	}
	return q
}

// ImageUpload is a receipt image submitted for extraction.
type ImageUpload struct {
	FileName string
	MIMEType string
	Body     io.Reader
}

// ExpenseAPI wraps the /expenses endpoints.
type ExpenseAPI struct {
	c *Client
}

// NewExpenseAPI creates an ExpenseAPI.
func NewExpenseAPI(c *Client) *ExpenseAPI {
	return &ExpenseAPI{c: c}
}

// List returns a single page of expenses.
func (e *ExpenseAPI) List(ctx context.Context, opts ListOptions) ([]domain.Expense, domain.Page, error) {
	var resp domain.ExpenseListResponse
	if err := e.c.Get(ctx, "/expenses", opts.values(), &resp); err != nil {
		return nil, domain.Page{}, err
	}
	if !resp.Success {
		return nil, domain.Page{}, failure(resp.Message, "")
	}
	return resp.Data, resp.Pagination, nil
}

// All walks every page and returns the full collection in server order.
func (e *ExpenseAPI) All(ctx context.Context) ([]domain.Expense, error) {
	opts := ListOptions{Page: 1, PageSize: DefaultPageSize}
	out := []domain.Expense{}
	for {
		items, page, err := e.List(ctx, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(items) == 0 || opts.Page >= page.TotalPages {
			return out, nil
		}
		opts.Page++
	}
}

// Get returns a single expense.
func (e *ExpenseAPI) Get(ctx context.Context, id string) (domain.Expense, error) {
	var resp domain.APIResponse[domain.Expense]
	if err := e.c.Get(ctx, "/expenses/"+url.PathEscape(id), nil, &resp); err != nil {
		return domain.Expense{}, err
	}
	if !resp.Success {
		return domain.Expense{}, failure(resp.Message, resp.Error)
	}
	return resp.Data, nil
}

// Create persists a new expense.
func (e *ExpenseAPI) Create(ctx context.Context, req domain.CreateExpenseRequest) (domain.Expense, error) {
	var resp domain.APIResponse[domain.Expense]
	if err := e.c.Post(ctx, "/expenses", req, &resp); err != nil {
		return domain.Expense{}, err
	}
	if !resp.Success {
		return domain.Expense{}, failure(resp.Message, resp.Error)
	}
	return resp.Data, nil
}

// Update applies a partial update.
func (e *ExpenseAPI) Update(ctx context.Context, id string, req domain.UpdateExpenseRequest) (domain.Expense, error) {
	var resp domain.APIResponse[domain.Expense]
	if err := e.c.Put(ctx, "/expenses/"+url.PathEscape(id), req, &resp); err != nil {
		return domain.Expense{}, err
	}
	if !resp.Success {
		return domain.Expense{}, failure(resp.Message, resp.Error)
	}
	return resp.Data, nil
}

// Delete removes an expense. A 404 counts as success.
func (e *ExpenseAPI) Delete(ctx context.Context, id string) error {
	err := e.c.Delete(ctx, "/expenses/"+url.PathEscape(id), nil)
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return nil
	}
	return err
}

// ExtractFromImage uploads a receipt and returns the recognition candidate.
func (e *ExpenseAPI) ExtractFromImage(ctx context.Context, img ImageUpload) (*domain.ExtractedExpenseData, error) {
	var resp domain.ImageUploadResponse
	file := FilePart{Field: "image", FileName: img.FileName, MIMEType: img.MIMEType, Body: img.Body}
	if err := e.c.Upload(ctx, "/expenses/extract-from-image", file, nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, apperrors.WithMessage(apperrors.ErrExtractionFailed, firstNonEmpty(resp.Message, resp.Error, apperrors.ErrExtractionFailed.Message))
	}
	if resp.ExtractedData == nil {
		return nil, apperrors.WithMessage(apperrors.ErrMalformedResult, "Extraction response carried no data")
	}
	if err := resp.ExtractedData.Validate(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrMalformedResult, err)
	}
	return resp.ExtractedData, nil
}

// Export downloads the expense list as csv or pdf.
func (e *ExpenseAPI) Export(ctx context.Context, format string, start, end domain.Date) ([]byte, string, error) {
	if format != FormatCSV && format != FormatPDF {
		return nil, "", apperrors.WithMessage(apperrors.ErrInvalidInput, "Export format must be csv or pdf")
	}
	q := ListOptions{StartDate: start, EndDate: end}.values()
	q.Set("format", format)
	return e.c.Download(ctx, "/expenses/export", q)
}

// Categories returns the category set advertised by the API.
func (e *ExpenseAPI) Categories(ctx context.Context) ([]domain.Category, error) {
	var resp domain.APIResponse[[]domain.Category]
	if err := e.c.Get(ctx, "/expenses/categories", nil, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, failure(resp.Message, resp.Error)
	}
	return resp.Data, nil
}

func failure(message, code string) error {
	appErr := apperrors.WithMessage(apperrors.ErrUnexpected, firstNonEmpty(message, code))
	if codePattern.MatchString(code) {
		appErr.Code = code
	}
	return appErr
}
