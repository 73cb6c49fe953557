package services

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

// Export formats.
const (
	FormatCSV = "csv"
	FormatPDF = "pdf"
)

// Report is the input of a PDF export.
type Report struct {
	UserName    string
	Email       string
	Start       *domain.Date
	End         *domain.Date
	Expenses    []domain.Expense
	GeneratedAt time.Time
}

// Total returns the sum of the report's expenses.
func (r Report) Total() decimal.Decimal {
	total := decimal.Zero
	for _, e := range r.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// Period describes the date range covered by the report.
func (r Report) Period() string {
	switch {
	case r.Start != nil && r.End != nil:
		return r.Start.String() + " to " + r.End.String()
	case r.Start != nil:
		return "from " + r.Start.String()
	case r.End != nil:
		return "until " + r.End.String()
	default:
		return "All time"
	}
}

// CategoryTotal is one line of the report's category breakdown.
type CategoryTotal struct {
	Category domain.Category
	Count    int
	Total    decimal.Decimal
	Percent  float64
}

// Breakdown groups the report's expenses by category, largest total first.
func (r Report) Breakdown() []CategoryTotal {
	byCat := make(map[domain.Category]*CategoryTotal)
	for _, e := range r.Expenses {
		ct, ok := byCat[e.Category]
		if !ok {
			ct = &CategoryTotal{Category: e.Category, Total: decimal.Zero}
			byCat[e.Category] = ct
		}
		ct.Count++
		ct.Total = ct.Total.Add(e.Amount)
	}

	total := r.Total()
	out := make([]CategoryTotal, 0, len(byCat))
	for _, ct := range byCat {
		if total.IsPositive() {
			ct.Percent = ct.Total.Div(total).Mul(decimal.NewFromInt(100)).InexactFloat64()
		}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// exportService renders expense exports.
type exportService struct{}

// NewExportService creates a new ExportServicer.
func NewExportService() ExportServicer {
	return &exportService{}
}

var csvHeader = []string{"id", "date", "title", "description", "category", "merchant", "amount"}

// WriteCSV writes one row per expense below a header row.
func (s *exportService) WriteCSV(w io.Writer, expenses []domain.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	for _, e := range expenses {
		if err := cw.Write([]string{
			e.ID,
			e.Date.String(),
			e.Title,
			e.Description,
			string(e.Category),
			e.Merchant,
			e.Amount.StringFixed(2),
		}); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// WritePDF renders a one-document expense report.
func (s *exportService) WritePDF(w io.Writer, report Report) error {
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = time.Now()
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("SpendSnap Expense Report", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "SpendSnap Expense Report")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s", report.Period()))
	pdf.Ln(6)
	if report.UserName != "" {
		pdf.Cell(0, 8, fmt.Sprintf("User: %s <%s>", report.UserName, report.Email))
		pdf.Ln(6)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", report.GeneratedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("Total Spend: $%s (%d expenses)", report.Total().StringFixed(2), len(report.Expenses)))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Category Breakdown")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(70, 7, "Category")
	pdf.Cell(50, 7, "Amount")
	pdf.Cell(30, 7, "%")
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 11)
	for _, b := range report.Breakdown() {
		pdf.Cell(70, 7, string(b.Category))
		pdf.Cell(50, 7, "$"+b.Total.StringFixed(2))
		pdf.Cell(30, 7, fmt.Sprintf("%.1f%%", b.Percent))
		pdf.Ln(7)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, "Expenses")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(25, 7, "Date")
	pdf.Cell(65, 7, "Title")
	pdf.Cell(45, 7, "Category")
	pdf.Cell(30, 7, "Merchant")
	pdf.CellFormat(25, 7, "Amount", "", 0, "R", false, 0, "")
	pdf.Ln(7)

	pdf.SetFont("Helvetica", "", 10)
	for _, e := range report.Expenses {
		pdf.Cell(25, 6, e.Date.String())
		pdf.Cell(65, 6, truncate(e.Title, 34))
		pdf.Cell(45, 6, string(e.Category))
		pdf.Cell(30, 6, truncate(e.Merchant, 16))
		pdf.CellFormat(25, 6, "$"+e.Amount.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.Ln(6)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}
