package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsnap/internal/config"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
)

func TestMain(m *testing.M) {
	logger.Init("test", "")
	os.Exit(m.Run())
}

type testApp struct {
	*app
	out, errOut *bytes.Buffer
}

func newDemoApp(t *testing.T, input string) *testApp {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	a, err := newApp(&config.ClientConfig{Demo: true}, strings.NewReader(input), out, errOut)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return &testApp{app: a, out: out, errOut: errOut}
}

func (ta *testApp) run(t *testing.T, args ...string) error {
	t.Helper()
	ta.out.Reset()
	return ta.Run(context.Background(), args)
}

func signedIn(t *testing.T) *testApp {
	t.Helper()
	ta := newDemoApp(t, "")
	require.NoError(t, ta.run(t, "login", "-email", "john@example.com", "-password", "secret1"))
	return ta
}

func TestRun_Usage(t *testing.T) {
	ta := newDemoApp(t, "")

	require.NoError(t, ta.run(t))
	assert.Contains(t, ta.out.String(), "Usage: spendsnap")

	err := ta.run(t, "frobnicate")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestRun_RequiresSignIn(t *testing.T) {
	ta := newDemoApp(t, "")

	err := ta.run(t, "list")

	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestLogin(t *testing.T) {
	t.Run("flags", func(t *testing.T) {
		ta := signedIn(t)
		assert.Contains(t, ta.out.String(), "Signed in as John Doe <john@example.com>")

		require.NoError(t, ta.run(t, "whoami"))
		assert.Contains(t, ta.out.String(), "5 expenses")
	})

	t.Run("prompts for missing values", func(t *testing.T) {
		ta := newDemoApp(t, "john@example.com\nsecret1\n")

		require.NoError(t, ta.run(t, "login"))
		assert.Contains(t, ta.errOut.String(), "Email: ")
		assert.Contains(t, ta.out.String(), "Signed in as John Doe")
	})

	t.Run("rejects invalid email", func(t *testing.T) {
		ta := newDemoApp(t, "")

		err := ta.run(t, "login", "-email", "nope", "-password", "secret1")

		require.Error(t, err)
		assert.Equal(t, "Please enter a valid email address", apperrors.Message(err))
	})

	t.Run("second login is rejected", func(t *testing.T) {
		ta := signedIn(t)

		err := ta.run(t, "login", "-email", "john@example.com", "-password", "secret1")

		assert.ErrorIs(t, err, apperrors.ErrAlreadySignedIn)
	})
}

func TestSignup(t *testing.T) {
	t.Run("starts with an empty ledger", func(t *testing.T) {
		ta := newDemoApp(t, "")

		require.NoError(t, ta.run(t, "signup", "-name", "Ada", "-email", "ada@example.com", "-password", "secret1"))
		assert.Contains(t, ta.out.String(), "Welcome, Ada!")

		require.NoError(t, ta.run(t, "list"))
		assert.Contains(t, ta.out.String(), "No expenses found")
	})

	t.Run("mismatched confirmation", func(t *testing.T) {
		ta := newDemoApp(t, "secret1\nsecret2\n")

		err := ta.run(t, "signup", "-name", "Ada", "-email", "ada@example.com")

		require.Error(t, err)
		assert.Equal(t, "Passwords do not match", apperrors.Message(err))
	})
}

func TestList(t *testing.T) {
	ta := signedIn(t)

	require.NoError(t, ta.run(t, "list"))
	assert.Contains(t, ta.out.String(), "Grocery Shopping")
	assert.Contains(t, ta.out.String(), "$85.50")

	require.NoError(t, ta.run(t, "list", "-category", "food & dining"))
	assert.Contains(t, ta.out.String(), "Coffee Shop")
	assert.NotContains(t, ta.out.String(), "Gas Station")

	require.NoError(t, ta.run(t, "list", "-from", "2024-01-13", "-q", "coffee"))
	assert.Contains(t, ta.out.String(), "Coffee Shop")
	assert.NotContains(t, ta.out.String(), "Grocery Shopping")

	err := ta.run(t, "list", "-category", "gadgets")
	assert.ErrorIs(t, err, apperrors.ErrInvalidCategory)

	err = ta.run(t, "list", "-from", "2024-02-01", "-to", "2024-01-01")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddEditDelete(t *testing.T) {
	ta := signedIn(t)

	require.NoError(t, ta.run(t, "add", "-title", "Lunch", "-description", "Team lunch", "-amount", "$18.40", "-category", "Food & Dining", "-date", "2024-01-20"))
	assert.Contains(t, ta.out.String(), "Lunch $18.40")
	assert.Equal(t, 6, ta.store.Count())
	added := ta.store.List()[0]
	assert.Equal(t, "Lunch", added.Title)

	require.NoError(t, ta.run(t, "edit", added.ID[:shortIDLen], "-amount", "20"))
	assert.Contains(t, ta.out.String(), "Lunch $20.00")
	got, ok := ta.store.Get(added.ID)
	require.True(t, ok)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(20)))

	require.NoError(t, ta.run(t, "delete", added.ID, "-yes"))
	assert.Equal(t, 5, ta.store.Count())

	err := ta.run(t, "delete", "nope", "-yes")
	assert.ErrorIs(t, err, apperrors.ErrExpenseNotFound)
}

func TestAdd_ReportsEveryInvalidField(t *testing.T) {
	ta := signedIn(t)

	err := ta.run(t, "add", "-title", "Lunch", "-amount", "0")

	require.Error(t, err)
	assert.Contains(t, ta.errOut.String(), "description: Description is required")
	assert.Contains(t, ta.errOut.String(), "amount: Amount must be at least $0.01")
	assert.Equal(t, 5, ta.store.Count())
}

func TestEdit_NoFields(t *testing.T) {
	ta := signedIn(t)

	err := ta.run(t, "edit", "1")

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDelete_Confirmation(t *testing.T) {
	ta := newDemoApp(t, "n\n")
	require.NoError(t, ta.run(t, "login", "-email", "john@example.com", "-password", "secret1"))

	require.NoError(t, ta.run(t, "delete", "2"))

	assert.Contains(t, ta.out.String(), "Cancelled")
	assert.Equal(t, 5, ta.store.Count())
}

func TestSummary(t *testing.T) {
	ta := signedIn(t)

	require.NoError(t, ta.run(t, "summary"))

	out := ta.out.String()
	assert.Contains(t, out, "Total spent:  $206.45 across 5 expenses")
	assert.Contains(t, out, "Food & Dining")
	assert.Contains(t, out, "Recent:")
}

func writePNG(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "receipt.png")
	require.NoError(t, os.WriteFile(path, []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), 0o600))
	return path
}

func TestScan(t *testing.T) {
	t.Run("previews without saving", func(t *testing.T) {
		ta := signedIn(t)

		require.NoError(t, ta.run(t, "scan", writePNG(t)))

		out := ta.out.String()
		assert.Contains(t, out, "confidence 85%")
		assert.Contains(t, out, "Restaurant Bill")
		assert.Contains(t, out, "42.50")
		assert.Equal(t, 5, ta.store.Count())
	})

	t.Run("saves with overrides", func(t *testing.T) {
		ta := signedIn(t)

		require.NoError(t, ta.run(t, "scan", writePNG(t), "-save", "-title", "Team dinner"))

		require.Equal(t, 6, ta.store.Count())
		added := ta.store.List()[0]
		assert.Equal(t, "Team dinner", added.Title)
		assert.Equal(t, "Olive Garden", added.Merchant)
		require.NotNil(t, added.ExtractedData)
	})

	t.Run("empty path cancels", func(t *testing.T) {
		ta := newDemoApp(t, "\n")
		require.NoError(t, ta.run(t, "login", "-email", "john@example.com", "-password", "secret1"))

		require.NoError(t, ta.run(t, "scan"))

		assert.Contains(t, ta.out.String(), "No image selected")
	})

	t.Run("rejects non-images", func(t *testing.T) {
		ta := signedIn(t)
		path := filepath.Join(t.TempDir(), "notes.txt")
		require.NoError(t, os.WriteFile(path, []byte("just text"), 0o600))

		err := ta.run(t, "scan", path)

		assert.ErrorIs(t, err, apperrors.ErrUnsupportedImage)
	})
}

func TestExport(t *testing.T) {
	t.Run("csv to stdout", func(t *testing.T) {
		ta := signedIn(t)

		require.NoError(t, ta.run(t, "export", "-o", "-", "-from", "2024-01-13"))

		out := ta.out.String()
		assert.True(t, strings.HasPrefix(out, "id,date,title"), out)
		assert.Contains(t, out, "Coffee Shop")
		assert.NotContains(t, out, "Pharmacy")
	})

	t.Run("pdf to file", func(t *testing.T) {
		ta := signedIn(t)
		path := filepath.Join(t.TempDir(), "out.pdf")

		require.NoError(t, ta.run(t, "export", "-format", "pdf", "-o", path))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(data, []byte("%PDF")))
		assert.Contains(t, ta.out.String(), "Saved")
	})

	t.Run("unknown format", func(t *testing.T) {
		ta := signedIn(t)

		err := ta.run(t, "export", "-format", "xlsx", "-o", "-")

		assert.ErrorIs(t, err, apperrors.ErrUnsupportedExport)
	})
}

func TestLogout(t *testing.T) {
	ta := signedIn(t)

	require.NoError(t, ta.run(t, "logout"))
	assert.False(t, ta.gate.IsAuthenticated())
	assert.Equal(t, 0, ta.store.Count())

	err := ta.run(t, "list")
	assert.ErrorIs(t, err, apperrors.ErrNotAuthenticated)
}

func TestShell(t *testing.T) {
	script := strings.Join([]string{
		`login -email john@example.com -password secret1`,
		`list -category "Food & Dining"`,
		`frobnicate`,
		`exit`,
		`list`,
	}, "\n") + "\n"
	ta := newDemoApp(t, script)

	require.NoError(t, ta.run(t, "shell"))

	out := ta.out.String()
	assert.Contains(t, out, "Signed in as John Doe")
	assert.Contains(t, out, "Grocery Shopping")
	assert.NotContains(t, out, "Movie Tickets")
	assert.Contains(t, ta.errOut.String(), `Unknown command "frobnicate"`)
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		line string
		want []string
	}{
		{"", nil},
		{"  list  ", []string{"list"}},
		{`add -title "Team lunch" -merchant 'Joe''s'`, []string{"add", "-title", "Team lunch", "-merchant", "Joes"}},
		{`scan my\ receipt.png`, []string{"scan", "my receipt.png"}},
		{`list -category ""`, []string{"list", "-category", ""}},
	}
	for _, tt := range tests {
		got, err := splitArgs(tt.line)
		require.NoError(t, err, tt.line)
		assert.Equal(t, tt.want, got, tt.line)
	}

	_, err := splitArgs(`add -title "open`)
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", formatMoney(decimal.RequireFromString("1234.5")))
	assert.Equal(t, "-$3.10", formatMoney(decimal.RequireFromString("-3.1")))
}
