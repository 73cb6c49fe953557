// Package validator provides the field rules shared by the client forms and
// Gin's binding engine, together with the user-facing messages for them.
package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

// Amount bounds for user-entered amounts.
var (
	MinAmount = decimal.RequireFromString("0.01")
	MaxAmount = decimal.RequireFromString("999999.99")
)

// MaxFutureYears is how far ahead of today an expense date may lie.
const MaxFutureYears = 1

var validate = newValidate()

func newValidate() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	configure(v)
	return v
}

// Register registers the custom rules and types with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		configure(v)
	}
}

func configure(v *validator.Validate) {
	v.RegisterTagNameFunc(jsonName)
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{})
	v.RegisterCustomTypeFunc(dateValue, domain.Date{})

	_ = v.RegisterValidation("expense_category", validateCategory)
	_ = v.RegisterValidation("ymd_date", validateYMD)
	_ = v.RegisterValidation("not_far_future", validateNotFarFuture)
	_ = v.RegisterValidation("trim_min", validateTrimMin)
	_ = v.RegisterValidation("trim_max", validateTrimMax)
	_ = v.RegisterValidation("amount_format", validateAmountFormat)
	_ = v.RegisterValidation("amount_min", validateAmountMin)
	_ = v.RegisterValidation("amount_max", validateAmountMax)
}

// Struct validates s and returns nil or an INVALID_INPUT *AppError whose
// message is the first field's message. The validator.ValidationErrors are
// kept as the internal error so FieldErrors can recover all of them.
func Struct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.Wrap(apperrors.ErrInvalidInput, err)
	}
	appErr := apperrors.WithMessage(apperrors.ErrInvalidInput, messageFor(verrs[0]))
	appErr.Internal = verrs
	return appErr
}

// FieldErrors maps each failing field (by its JSON name) to its message.
// It returns nil when err carries no field errors.
func FieldErrors(err error) map[string]string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		if _, seen := out[fe.Field()]; !seen {
			out[fe.Field()] = messageFor(fe)
		}
	}
	return out
}

func messageFor(fe validator.FieldError) string {
	label := labelFor(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please enter a valid email address"
	case "min", "trim_min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max", "trim_max":
		return fmt.Sprintf("%s must not exceed %s characters", label, fe.Param())
	case "gte":
		return label + " must not be negative"
	case "lte":
		return fmt.Sprintf("%s must not exceed %s", label, fe.Param())
	case "eqfield":
		return "Passwords do not match"
	case "expense_category":
		return "Please select a valid category"
	case "ymd_date":
		return "Please enter date in YYYY-MM-DD format"
	case "not_far_future":
		return fmt.Sprintf("Date cannot be more than %d year in the future", MaxFutureYears)
	case "amount_format":
		return "Please enter a valid amount"
	case "amount_min":
		return "Amount must be at least $" + MinAmount.StringFixed(2)
	case "amount_max":
		return "Amount must not exceed $" + humanize.CommafWithDigits(MaxAmount.InexactFloat64(), 2)
	default:
		return label + " is invalid"
	}
}

func labelFor(field string) string {
	switch field {
	case "confirmPassword":
		return "Confirm password"
	case "imageUrl":
		return "Image URL"
	}
	if field == "" {
		return "Value"
	}
	r := []rune(field)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func jsonName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return f.Name
	}
	return name
}

func decimalValue(v reflect.Value) any {
	if d, ok := v.Interface().(decimal.Decimal); ok {
		return d.InexactFloat64()
	}
	return nil
}

func dateValue(v reflect.Value) any {
	if d, ok := v.Interface().(domain.Date); ok {
		return d.String()
	}
	return nil
}

func validateCategory(fl validator.FieldLevel) bool {
	return domain.Category(fl.Field().String()).IsValid()
}

func validateYMD(fl validator.FieldLevel) bool {
	_, err := domain.ParseDate(fl.Field().String())
	return err == nil
}

func validateNotFarFuture(fl validator.FieldLevel) bool {
	d, err := domain.ParseDate(fl.Field().String())
	if err != nil {
		// Format problems are reported by ymd_date.
		return true
	}
	limit := domain.DateOf(time.Now().AddDate(MaxFutureYears, 0, 0))
	return !d.After(limit)
}

func validateTrimMin(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len([]rune(strings.TrimSpace(fl.Field().String()))) >= n
}

func validateTrimMax(fl validator.FieldLevel) bool {
	n, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len([]rune(strings.TrimSpace(fl.Field().String()))) <= n
}

// ParseAmount parses a user-entered amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(s))
}

func validateAmountFormat(fl validator.FieldLevel) bool {
	_, err := ParseAmount(fl.Field().String())
	return err == nil
}

func validateAmountMin(fl validator.FieldLevel) bool {
	d, err := ParseAmount(fl.Field().String())
	return err != nil || d.GreaterThanOrEqual(MinAmount)
}

func validateAmountMax(fl validator.FieldLevel) bool {
	d, err := ParseAmount(fl.Field().String())
	return err != nil || d.LessThanOrEqual(MaxAmount)
}
