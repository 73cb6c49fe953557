package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ExtractedExpenseData is a candidate produced by the recognition service.
// A nil field was absent from the result; a non-nil field was present, even
// when it holds an empty value.
type ExtractedExpenseData struct {
	Title       *string          `json:"title,omitempty"`
	Description *string          `json:"description,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Merchant    *string          `json:"merchant,omitempty"`
	Category    *Category        `json:"category,omitempty"`
	Date        *Date            `json:"date,omitempty"`
	Confidence  float64          `json:"confidence"`
}

var errMissingConfidence = errors.New("extracted data: confidence is required")

// UnmarshalJSON rejects payloads without a confidence score. A blank
// category is treated as absent; any other unknown value becomes Others.
func (x *ExtractedExpenseData) UnmarshalJSON(data []byte) error {
	type plain ExtractedExpenseData
	var aux struct {
		plain
		Category   *string  `json:"category"`
		Confidence *float64 `json:"confidence"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Confidence == nil {
		return errMissingConfidence
	}
	*x = ExtractedExpenseData(aux.plain)
	x.Category = nil
	if aux.Category != nil && strings.TrimSpace(*aux.Category) != "" {
		x.Category = Ptr(ParseCategory(*aux.Category))
	}
	x.Confidence = *aux.Confidence
	return nil
}

// Validate checks the candidate's own invariants: confidence in [0,1] and a
// non-negative amount when one is present.
func (x *ExtractedExpenseData) Validate() error {
	if x == nil {
		return errors.New("extracted data: missing")
	}
	if x.Confidence < 0 || x.Confidence > 1 {
		return fmt.Errorf("extracted data: confidence %v out of range [0,1]", x.Confidence)
	}
	if x.Amount != nil && x.Amount.IsNegative() {
		return fmt.Errorf("extracted data: negative amount %s", x.Amount.String())
	}
	return nil
}

// Clone returns a deep copy of x. Cloning nil returns nil.
func (x *ExtractedExpenseData) Clone() *ExtractedExpenseData {
	if x == nil {
		return nil
	}
	out := &ExtractedExpenseData{Confidence: x.Confidence}
	if x.Title != nil {
		out.Title = Ptr(*x.Title)
	}
	if x.Description != nil {
		out.Description = Ptr(*x.Description)
	}
	if x.Amount != nil {
		out.Amount = Ptr(*x.Amount)
	}
	if x.Merchant != nil {
		out.Merchant = Ptr(*x.Merchant)
	}
	if x.Category != nil {
		out.Category = Ptr(*x.Category)
	}
	if x.Date != nil {
		out.Date = Ptr(*x.Date)
	}
	return out
}
