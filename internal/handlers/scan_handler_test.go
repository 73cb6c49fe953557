package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/models"
	"spendsnap/internal/services"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

type mockExtractor struct {
	calls    int
	mimeType string
	result   *domain.ExtractedExpenseData
	err      error
}

func (m *mockExtractor) Extract(_ context.Context, _ []byte, mimeType string) (*domain.ExtractedExpenseData, error) {
	m.calls++
	m.mimeType = mimeType
	return m.result, m.err
}

func setupScanRouter(handler *ScanHandler) *gin.Engine {
	r := gin.New()
	auth := r.Group("", injectUserID(testUserID))
	auth.POST("/expenses/extract-from-image", handler.ExtractFromImage)
	auth.GET("/expenses/export", handler.ExportExpenses)
	return r
}

func uploadRequest(t *testing.T, r *gin.Engine, field, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest("POST", "/expenses/extract-from-image", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func newTestScanHandler(ex services.ExtractionServicer, exp services.ExpenseServicer, audit services.AuditServicer, maxBytes int64) *ScanHandler {
	return NewScanHandler(ex, exp, services.NewExportService(), &mockUserService{}, audit, maxBytes)
}

func TestScanHandler_ExtractFromImage(t *testing.T) {
	t.Run("returns extracted data", func(t *testing.T) {
		ex := &mockExtractor{result: &domain.ExtractedExpenseData{
			Title:      domain.Ptr("Coffee"),
			Amount:     domain.Ptr(decimal.RequireFromString("4.20")),
			Category:   domain.Ptr(domain.CategoryFood),
			Confidence: 0.9,
		}}
		r := setupScanRouter(newTestScanHandler(ex, &mockExpenseService{}, &mockAuditService{}, 0))

		rec := uploadRequest(t, r, "image", "receipt.png", pngHeader)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ex.mimeType != "image/png" {
			t.Errorf("expected sniffed image/png, got %q", ex.mimeType)
		}
		result := parseJSON(t, rec)
		data := result["extractedData"].(map[string]interface{})
		if data["title"] != "Coffee" || data["amount"].(float64) != 4.2 {
			t.Errorf("unexpected extracted data %v", data)
		}
		if _, ok := data["merchant"]; ok {
			t.Error("absent fields must be omitted")
		}
	})

	t.Run("returns 400 when the image field is missing", func(t *testing.T) {
		ex := &mockExtractor{}
		r := setupScanRouter(newTestScanHandler(ex, &mockExpenseService{}, &mockAuditService{}, 0))

		rec := uploadRequest(t, r, "file", "receipt.png", pngHeader)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "NO_IMAGE")
		if ex.calls != 0 {
			t.Error("extractor must not be called")
		}
	})

	t.Run("returns 413 when the image is too large", func(t *testing.T) {
		ex := &mockExtractor{}
		r := setupScanRouter(newTestScanHandler(ex, &mockExpenseService{}, &mockAuditService{}, 1024))

		big := append(append([]byte{}, pngHeader...), bytes.Repeat([]byte{0}, 2048)...)
		rec := uploadRequest(t, r, "image", "receipt.png", big)

		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("expected 413, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "IMAGE_TOO_LARGE")
	})

	t.Run("returns 415 for other image types", func(t *testing.T) {
		ex := &mockExtractor{}
		r := setupScanRouter(newTestScanHandler(ex, &mockExpenseService{}, &mockAuditService{}, 0))

		rec := uploadRequest(t, r, "image", "receipt.png", []byte("GIF89a\x01\x00\x01\x00"))

		if rec.Code != http.StatusUnsupportedMediaType {
			t.Fatalf("expected 415, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNSUPPORTED_IMAGE")
	})

	t.Run("passes extraction failures through", func(t *testing.T) {
		ex := &mockExtractor{err: apperrors.ErrExtractionFailed}
		r := setupScanRouter(newTestScanHandler(ex, &mockExpenseService{}, &mockAuditService{}, 0))

		rec := uploadRequest(t, r, "image", "receipt.png", pngHeader)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "EXTRACTION_FAILED")
	})

	t.Run("rejects out-of-range confidence", func(t *testing.T) {
		ex := &mockExtractor{result: &domain.ExtractedExpenseData{Confidence: 3}}
		r := setupScanRouter(newTestScanHandler(ex, &mockExpenseService{}, &mockAuditService{}, 0))

		rec := uploadRequest(t, r, "image", "receipt.png", pngHeader)

		if rec.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected 422, got %d", rec.Code)
		}
	})
}

func TestScanHandler_ExportExpenses(t *testing.T) {
	rows := []models.Expense{
		{
			Base:        models.Base{ID: testExpenseID},
			UserID:      testUserID,
			Title:       "Lunch",
			Description: "Team lunch",
			Amount:      decimal.RequireFromString("12.5"),
			Category:    domain.CategoryFood,
			Date:        domain.NewDate(2024, 3, 1),
		},
	}

	t.Run("defaults to csv", func(t *testing.T) {
		audit := &mockAuditService{}
		var gotFilter services.ExpenseFilter
		svc := &mockExpenseService{
			listUserExpensesFn: func(_ string, f services.ExpenseFilter) ([]models.Expense, error) {
				gotFilter = f
				return rows, nil
			},
		}
		r := setupScanRouter(newTestScanHandler(&mockExtractor{}, svc, audit, 0))

		rec := doRequest(r, "GET", "/expenses/export?startDate=2024-03-01", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
			t.Errorf("expected text/csv, got %q", ct)
		}
		if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, ".csv") {
			t.Errorf("expected csv attachment, got %q", cd)
		}
		body := rec.Body.String()
		if !strings.HasPrefix(body, "id,date,title") || !strings.Contains(body, "12.50") {
			t.Errorf("unexpected csv body:\n%s", body)
		}
		if gotFilter.StartDate == nil || gotFilter.StartDate.String() != "2024-03-01" {
			t.Errorf("expected start date filter, got %+v", gotFilter)
		}
		if len(audit.entries) != 1 || audit.entries[0].action != services.AuditExportExpense {
			t.Errorf("expected export audit entry, got %+v", audit.entries)
		}
	})

	t.Run("renders pdf", func(t *testing.T) {
		svc := &mockExpenseService{
			listUserExpensesFn: func(_ string, _ services.ExpenseFilter) ([]models.Expense, error) {
				return rows, nil
			},
		}
		r := setupScanRouter(newTestScanHandler(&mockExtractor{}, svc, &mockAuditService{}, 0))

		rec := doRequest(r, "GET", "/expenses/export?format=pdf", "")

		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("expected application/pdf, got %q", ct)
		}
		if !bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF")) {
			t.Error("expected a PDF document")
		}
	})

	t.Run("returns 400 on unknown format", func(t *testing.T) {
		r := setupScanRouter(newTestScanHandler(&mockExtractor{}, &mockExpenseService{}, &mockAuditService{}, 0))

		rec := doRequest(r, "GET", "/expenses/export?format=xlsx", "")

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400, got %d", rec.Code)
		}
		assertErrorCode(t, parseJSON(t, rec), "UNSUPPORTED_FORMAT")
	})
}
