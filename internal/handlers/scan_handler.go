package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spendsnap/internal/capture"
	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/services"
)

// multipartOverhead is the slack allowed on top of the image for form framing.
const multipartOverhead = 64 << 10

// ScanHandler handles receipt extraction and expense exports.
type ScanHandler struct {
	extractor      services.ExtractionServicer
	expenseService services.ExpenseServicer
	exporter       services.ExportServicer
	userService    services.UserServicer
	auditService   services.AuditServicer
	maxImageBytes  int64
	timeout        time.Duration
}

// NewScanHandler creates a new ScanHandler.
func NewScanHandler(
	extractor services.ExtractionServicer,
	expenseService services.ExpenseServicer,
	exporter services.ExportServicer,
	userService services.UserServicer,
	auditService services.AuditServicer,
	maxImageBytes int64,
) *ScanHandler {
	if maxImageBytes <= 0 {
		maxImageBytes = capture.MaxImageBytes
	}
	return &ScanHandler{
		extractor:      extractor,
		expenseService: expenseService,
		exporter:       exporter,
		userService:    userService,
		auditService:   auditService,
		maxImageBytes:  maxImageBytes,
		timeout:        30 * time.Second,
	}
}

// ExtractFromImage reads a receipt image
// @Summary     Extract expense from image
// @Description Upload a receipt (JPEG or PNG) and get a pre-filled expense candidate
// @Tags        expenses
// @Accept      multipart/form-data
// @Produce     json
// @Security    BearerAuth
// @Param       image formData file true "Receipt image"
// @Success     200 {object} domain.ImageUploadResponse "Extracted data"
// @Failure     400 {object} ErrorResponse "No image"
// @Failure     413 {object} ErrorResponse "Image too large"
// @Failure     415 {object} ErrorResponse "Unsupported image"
// @Failure     422 {object} ErrorResponse "Extraction failed"
// @Router      /expenses/extract-from-image [post]
func (h *ScanHandler) ExtractFromImage(c *gin.Context) {
	if _, err := getUserID(c); err != nil {
		respondWithError(c, err)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxImageBytes+multipartOverhead)
	header, err := c.FormFile("image")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondWithError(c, h.tooLarge())
			return
		}
		respondWithError(c, apperrors.WithMessage(apperrors.ErrNoImage, "No image file provided"))
		return
	}
	if header.Size > h.maxImageBytes {
		respondWithError(c, h.tooLarge())
		return
	}

	file, err := header.Open()
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrNoImage, err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.maxImageBytes+1))
	if err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrNoImage, err))
		return
	}

	mimeType := sniffImageType(data)
	if err := capture.ValidateImage(capture.ImageRef{
		URI:      header.Filename,
		FileName: header.Filename,
		MIMEType: mimeType,
		Size:     int64(len(data)),
	}, h.maxImageBytes); err != nil {
		respondWithError(c, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	extracted, err := h.extractor.Extract(ctx, data, mimeType)
	if err != nil {
		respondWithError(c, err)
		return
	}
	if err := extracted.Validate(); err != nil {
		respondWithError(c, apperrors.Wrap(apperrors.ErrExtractionFailed, err))
		return
	}

	c.JSON(http.StatusOK, domain.ImageUploadResponse{
		Success:       true,
		ExtractedData: extracted,
		Message:       "Data extracted successfully",
	})
}

func (h *ScanHandler) tooLarge() error {
	return capture.ValidateImage(capture.ImageRef{URI: "upload", MIMEType: "image/jpeg", Size: h.maxImageBytes + 1}, h.maxImageBytes)
}

// sniffImageType detects the content type from the file's leading bytes.
func sniffImageType(data []byte) string {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mimeType := http.DetectContentType(head)
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	return mimeType
}

// ExportExpenses downloads the caller's expenses
// @Summary     Export expenses
// @Description Download expenses in a date range as CSV or PDF
// @Tags        expenses
// @Produce     text/csv
// @Produce     application/pdf
// @Security    BearerAuth
// @Param       format    query string false "csv or pdf" Enums(csv, pdf)
// @Param       startDate query string false "Earliest date (YYYY-MM-DD)"
// @Param       endDate   query string false "Latest date (YYYY-MM-DD)"
// @Param       category  query string false "Category"
// @Success     200 {file} file "Export document"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Router      /expenses/export [get]
func (h *ScanHandler) ExportExpenses(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	format := strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", services.FormatCSV)))
	if format != services.FormatCSV && format != services.FormatPDF {
		respondWithError(c, apperrors.ErrUnsupportedExport)
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

	rows, err := h.expenseService.ListUserExpenses(userID, filter)
	if err != nil {
		respondWithError(c, err)
		return
	}
	expenses := expensesOrEmpty(rows)

	var buf bytes.Buffer
	contentType := "text/csv; charset=utf-8"
	if format == services.FormatPDF {
		contentType = "application/pdf"
		report := services.Report{
			Start:       filter.StartDate,
			End:         filter.EndDate,
			Expenses:    expenses,
			GeneratedAt: time.Now(),
		}
		if user, err := h.userService.GetUserByID(userID); err == nil {
			report.UserName, report.Email = user.Name, user.Email
		}
		err = h.exporter.WritePDF(&buf, report)
	} else {
		err = h.exporter.WriteCSV(&buf, expenses)
	}
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, services.AuditExportExpense, "expense", "", c.ClientIP(), map[string]any{
		"format": format,
		"count":  len(expenses),
	})

	filename := "expenses-" + time.Now().Format("20060102") + "." + format
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, buf.Bytes())
}
