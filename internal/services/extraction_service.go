package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// contentGenerator is the part of the genai Models service the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// geminiExtractor reads receipts with a Gemini model.
type geminiExtractor struct {
	models contentGenerator
	model  string
	now    func() time.Time
	log    *zap.SugaredLogger
}

// NewGeminiExtractor creates an ExtractionServicer backed by Gemini.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (ExtractionServicer, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return newGeminiExtractor(client.Models, model), nil
}

func newGeminiExtractor(models contentGenerator, model string) *geminiExtractor {
	if model == "" {
		model = DefaultGeminiModel
	}
	return &geminiExtractor{
		models: models,
		model:  model,
		now:    time.Now,
		log:    logger.Named("extractor"),
	}
}

func (g *geminiExtractor) prompt() string {
	var b strings.Builder
	b.WriteString("You read shop receipts. Extract the expense shown in this image.\n")
	b.WriteString("Return a RAW JSON OBJECT. Do NOT use markdown formatting.\n")
	b.WriteString("Keys: 'title' (short label), 'description' (one sentence), 'amount' (total paid, number), ")
	b.WriteString("'merchant', 'date' (YYYY-MM-DD), 'category' and 'confidence' (0 to 1).\n")
	b.WriteString("Category must be one of: ")
	for i, c := range domain.Categories {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(c))
	}
	b.WriteString(".\nOmit any key you cannot read. Today is ")
	b.WriteString(domain.DateOf(g.now()).String())
	b.WriteString(".\n")
	return b.String()
}

// Extract sends the image to Gemini and converts its answer into a candidate.
func (g *geminiExtractor) Extract(ctx context.Context, image []byte, mimeType string) (*domain.ExtractedExpenseData, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(g.prompt()),
			genai.NewPartFromBytes(image, mimeType),
		}, genai.RoleUser),
	}

	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		g.log.Warnw("gemini generation failed", "model", g.model, "error", err)
		return nil, apperrors.Wrap(apperrors.ErrExtractionFailed, err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, apperrors.WithMessage(apperrors.ErrExtractionFailed, "No data could be read from the image")
	}

	rawText := ""
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			rawText += part.Text
		}
	}

	data, err := parseReceiptJSON(rawText)
	if err != nil {
		g.log.Warnw("unreadable gemini response", "error", err, "length", len(rawText))
		return nil, apperrors.Wrap(apperrors.ErrExtractionFailed, err)
	}
	return data, nil
}

// receiptJSON is the loosely typed answer of the model.
type receiptJSON struct {
	Title       *string      `json:"title"`
	Description *string      `json:"description"`
	Amount      *json.Number `json:"amount"`
	Merchant    *string      `json:"merchant"`
	Category    *string      `json:"category"`
	Date        *string      `json:"date"`
	Confidence  *float64     `json:"confidence"`
}

// parseReceiptJSON strips markdown fences and converts the model's answer.
// Values that cannot be interpreted are dropped rather than guessed.
func parseReceiptJSON(raw string) (*domain.ExtractedExpenseData, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty response")
	}

	var r receiptJSON
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	out := &domain.ExtractedExpenseData{
		Title:       nonEmpty(r.Title),
		Description: nonEmpty(r.Description),
		Merchant:    nonEmpty(r.Merchant),
		Confidence:  0.5,
	}
	if r.Amount != nil {
		if amount, err := decimal.NewFromString(r.Amount.String()); err == nil && !amount.IsNegative() {
			out.Amount = domain.Ptr(amount.Round(2))
		}
	}
	if r.Category != nil && strings.TrimSpace(*r.Category) != "" {
		out.Category = domain.Ptr(domain.ParseCategory(*r.Category))
	}
	if r.Date != nil {
		if d, err := domain.ParseDate(strings.TrimSpace(*r.Date)); err == nil {
			out.Date = &d
		}
	}
	if r.Confidence != nil {
		out.Confidence = min(max(*r.Confidence, 0), 1)
	}
	return out, nil
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// fixtureExtractor answers every image with the same restaurant receipt.
// It stands in for Gemini in development when no API key is set.
type fixtureExtractor struct {
	now func() time.Time
}

// NewFixtureExtractor returns the deterministic development extractor.
func NewFixtureExtractor() ExtractionServicer {
	return &fixtureExtractor{now: time.Now}
}

func (f *fixtureExtractor) Extract(ctx context.Context, image []byte, _ string) (*domain.ExtractedExpenseData, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExtractionFailed, err)
	}
	if len(image) == 0 {
		return nil, apperrors.ErrNoImage
	}
	return &domain.ExtractedExpenseData{
		Title:       domain.Ptr("Restaurant Bill"),
		Description: domain.Ptr("Dinner at Italian Restaurant"),
		Amount:      domain.Ptr(decimal.RequireFromString("42.50")),
		Merchant:    domain.Ptr("Olive Garden"),
		Category:    domain.Ptr(domain.CategoryFood),
		Date:        domain.Ptr(domain.DateOf(f.now())),
		Confidence:  0.85,
	}, nil
}

// disabledExtractor rejects every request.
type disabledExtractor struct{}

// NewDisabledExtractor returns an extractor that reports recognition as unavailable.
func NewDisabledExtractor() ExtractionServicer { return disabledExtractor{} }

func (disabledExtractor) Extract(context.Context, []byte, string) (*domain.ExtractedExpenseData, error) {
	return nil, apperrors.ErrExtractorDisabled
}
