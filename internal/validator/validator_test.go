package validator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
	"spendsnap/internal/testutil"
)

type amountForm struct {
	Amount string `json:"amount" validate:"required,amount_format,amount_min,amount_max"`
}

type dateForm struct {
	Date string `json:"date" validate:"required,ymd_date,not_far_future"`
}

func validCreate() domain.CreateExpenseRequest {
	return domain.CreateExpenseRequest{
		Title:       "Lunch",
		Description: "Team lunch",
		Amount:      decimal.RequireFromString("18.40"),
		Category:    domain.CategoryFood,
		Date:        domain.NewDate(2024, time.March, 2),
	}
}

func TestStruct_Login(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		testutil.AssertNoError(t, Struct(domain.LoginRequest{Email: "a@b.co", Password: "secret1"}))
	})

	t.Run("bad_email", func(t *testing.T) {
		err := Struct(domain.LoginRequest{Email: "not-an-email", Password: "secret1"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		if err.Error() != "Please enter a valid email address" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("short_password", func(t *testing.T) {
		err := Struct(domain.LoginRequest{Email: "a@b.co", Password: "123"})
		testutil.AssertAppError(t, err, "INVALID_INPUT")
		if err.Error() != "Password must be at least 6 characters long" {
			t.Errorf("unexpected message %q", err.Error())
		}
	})

	t.Run("missing_email", func(t *testing.T) {
		err := Struct(domain.LoginRequest{Password: "secret1"})
		if err == nil || err.Error() != "Email is required" {
			t.Errorf("expected required message, got %v", err)
		}
	})
}

func TestStruct_SignupNameIsTrimmed(t *testing.T) {
	err := Struct(domain.SignupRequest{Name: "  J  ", Email: "j@b.co", Password: "secret1"})
	if err == nil || err.Error() != "Name must be at least 2 characters long" {
		t.Fatalf("expected trimmed length message, got %v", err)
	}
}

func TestStruct_CreateExpense(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		testutil.AssertNoError(t, Struct(validCreate()))
	})

	t.Run("zero_amount_allowed", func(t *testing.T) {
		req := validCreate()
		req.Amount = decimal.Zero
		testutil.AssertNoError(t, Struct(req))
	})

	t.Run("negative_amount", func(t *testing.T) {
		req := validCreate()
		req.Amount = decimal.NewFromInt(-1)
		fields := FieldErrors(Struct(req))
		if fields["amount"] != "Amount must not be negative" {
			t.Errorf("unexpected field errors %v", fields)
		}
	})

	t.Run("unknown_category", func(t *testing.T) {
		req := validCreate()
		req.Category = domain.Category("Groceries")
		fields := FieldErrors(Struct(req))
		if fields["category"] != "Please select a valid category" {
			t.Errorf("unexpected field errors %v", fields)
		}
	})

	t.Run("missing_date_and_title", func(t *testing.T) {
		req := validCreate()
		req.Date = domain.Date{}
		req.Title = ""
		fields := FieldErrors(Struct(req))
		if fields["date"] != "Date is required" {
			t.Errorf("expected date error, got %v", fields)
		}
		if fields["title"] != "Title is required" {
			t.Errorf("expected title error, got %v", fields)
		}
	})
}

func TestStruct_UpdateExpense(t *testing.T) {
	testutil.AssertNoError(t, Struct(domain.UpdateExpenseRequest{}))

	neg := decimal.NewFromInt(-5)
	err := Struct(domain.UpdateExpenseRequest{Amount: &neg})
	testutil.AssertAppError(t, err, "INVALID_INPUT")

	empty := ""
	err = Struct(domain.UpdateExpenseRequest{Title: &empty})
	testutil.AssertAppError(t, err, "INVALID_INPUT")
}

func TestAmountRules(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"12.50", ""},
		{"0.01", ""},
		{"999999.99", ""},
		{"abc", "Please enter a valid amount"},
		{"0", "Amount must be at least $0.01"},
		{"1000000", "Amount must not exceed $999,999.99"},
		{"", "Amount is required"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := FieldErrors(Struct(amountForm{Amount: tt.in}))["amount"]
			if got != tt.want {
				t.Errorf("amount %q: expected %q, got %q", tt.in, tt.want, got)
			}
		})
	}
}

func TestDateRules(t *testing.T) {
	far := time.Now().AddDate(2, 0, 0).Format(domain.DateLayout)
	tests := []struct {
		in   string
		want string
	}{
		{"2024-01-15", ""},
		{"15/01/2024", "Please enter date in YYYY-MM-DD format"},
		{"2024-02-30", "Please enter date in YYYY-MM-DD format"},
		{far, "Date cannot be more than 1 year in the future"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := FieldErrors(Struct(dateForm{Date: tt.in}))["date"]
			if got != tt.want {
				t.Errorf("date %q: expected %q, got %q", tt.in, tt.want, got)
			}
		})
	}
}

func TestFieldErrors_NonValidationError(t *testing.T) {
	if got := FieldErrors(nil); got != nil {
		t.Errorf("expected nil, got %v", got)
	}
}
