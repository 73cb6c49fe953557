package capture

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendsnap/internal/client"
	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

// stubExtractor records uploads and replies with a canned result.
type stubExtractor struct {
	mu      sync.Mutex
	calls   int
	body    []byte
	result  *domain.ExtractedExpenseData
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *stubExtractor) ExtractFromImage(_ context.Context, img client.ImageUpload) (*domain.ExtractedExpenseData, error) {
	s.mu.Lock()
	s.calls++
	s.body, _ = io.ReadAll(img.Body)
	s.mu.Unlock()
	if s.entered != nil {
		close(s.entered)
	}
	if s.release != nil {
		<-s.release
	}
	return s.result, s.err
}

func (s *stubExtractor) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestValidateImage(t *testing.T) {
	tests := []struct {
		name string
		img  ImageRef
		want *apperrors.AppError
	}{
		{"ok_jpeg", ImageRef{URI: "a.jpg", MIMEType: "image/jpeg", Size: 1024}, nil},
		{"ok_png_at_limit", ImageRef{URI: "a.png", MIMEType: "image/png", Size: MaxImageBytes}, nil},
		{"unknown_size_and_type", ImageRef{URI: "a"}, nil},
		{"missing_uri", ImageRef{MIMEType: "image/png"}, apperrors.ErrNoImage},
		{"too_large", ImageRef{URI: "a.png", MIMEType: "image/png", Size: MaxImageBytes + 1}, apperrors.ErrImageTooLarge},
		{"gif", ImageRef{URI: "a.gif", MIMEType: "image/gif", Size: 10}, apperrors.ErrUnsupportedImage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateImage(tt.img, 0)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, "Image size must be less than 5MB", apperrors.Message(ValidateImage(ImageRef{URI: "a", Size: 6 << 20}, 0)))
}

func TestImageHelpers(t *testing.T) {
	assert.True(t, IsValidImageFormat("receipt.JPG"))
	assert.True(t, IsValidImageFormat("scan.png"))
	assert.False(t, IsValidImageFormat("notes.pdf"))
	assert.False(t, IsValidImageFormat("noext"))

	assert.Equal(t, "0 B", FormatFileSize(0))
	assert.Equal(t, "1.5 KiB", FormatFileSize(1536))
	assert.Equal(t, "5.0 MiB", FormatFileSize(MaxImageBytes))
}

func TestFilePicker(t *testing.T) {
	ctx := context.Background()

	t.Run("sniffs_png", func(t *testing.T) {
		path := writeFile(t, "receipt.png", pngHeader)
		img, err := FilePicker{Path: path}.Pick(ctx)
		require.NoError(t, err)
		assert.Equal(t, "image/png", img.MIMEType)
		assert.Equal(t, "receipt.png", img.FileName)
		assert.Equal(t, int64(len(pngHeader)), img.Size)
	})

	t.Run("empty_path_cancels", func(t *testing.T) {
		_, err := FilePicker{}.Pick(ctx)
		assert.ErrorIs(t, err, ErrCancelled)
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := FilePicker{Path: filepath.Join(t.TempDir(), "nope.jpg")}.Pick(ctx)
		assert.ErrorIs(t, err, apperrors.ErrNoImage)
	})
}

func TestDraft_Merge(t *testing.T) {
	t.Run("absent_fields_keep_user_input", func(t *testing.T) {
		d := &Draft{Title: "X", Amount: ""}
		d.Merge(&domain.ExtractedExpenseData{Amount: domain.Ptr(decimal.RequireFromString("42.50")), Confidence: 0.9})

		assert.Equal(t, "X", d.Title)
		assert.Equal(t, "42.50", d.Amount)
		require.NotNil(t, d.Extracted)
	})

	t.Run("empty_strings_do_not_overwrite", func(t *testing.T) {
		d := &Draft{Title: "Lunch", Merchant: "Cafe"}
		d.Merge(&domain.ExtractedExpenseData{Title: domain.Ptr(""), Merchant: domain.Ptr("")})
		assert.Equal(t, "Lunch", d.Title)
		assert.Equal(t, "Cafe", d.Merchant)
	})

	t.Run("blank_category_from_wire_keeps_user_choice", func(t *testing.T) {
		var x domain.ExtractedExpenseData
		require.NoError(t, json.Unmarshal([]byte(`{"title":"","category":"  ","confidence":0.4}`), &x))
		assert.Nil(t, x.Category)

		d := &Draft{Title: "Lunch", Category: string(domain.CategoryTravel)}
		d.Merge(&x)
		assert.Equal(t, "Lunch", d.Title)
		assert.Equal(t, string(domain.CategoryTravel), d.Category)
	})

	t.Run("unknown_category_from_wire_is_others", func(t *testing.T) {
		var x domain.ExtractedExpenseData
		require.NoError(t, json.Unmarshal([]byte(`{"category":"Gadgets","confidence":0.4}`), &x))

		d := &Draft{Category: string(domain.CategoryTravel)}
		d.Merge(&x)
		assert.Equal(t, string(domain.CategoryOthers), d.Category)
	})

	t.Run("zero_amount_is_present", func(t *testing.T) {
		d := &Draft{Amount: "12.00"}
		d.Merge(&domain.ExtractedExpenseData{Amount: domain.Ptr(decimal.Zero)})
		assert.Equal(t, "0.00", d.Amount)
	})

	t.Run("all_fields", func(t *testing.T) {
		d := NewDraft(time.Date(2024, time.May, 1, 0, 0, 0, 0, time.UTC))
		x, _ := DemoExtractor{Now: func() time.Time { return time.Date(2024, time.May, 3, 0, 0, 0, 0, time.UTC) }}.
			ExtractFromImage(context.Background(), client.ImageUpload{})
		d.Merge(x)

		assert.Equal(t, Draft{
			Title:       "Restaurant Bill",
			Description: "Dinner at Italian Restaurant",
			Amount:      "42.50",
			Category:    "Food & Dining",
			Merchant:    "Olive Garden",
			Date:        "2024-05-03",
			Extracted:   x,
		}, *d)
	})

	t.Run("nil_is_noop", func(t *testing.T) {
		d := &Draft{Title: "keep"}
		d.Merge(nil)
		assert.Equal(t, &Draft{Title: "keep"}, d)
	})
}

func validDraft() *Draft {
	return &Draft{
		Title:       " Coffee ",
		Description: "Morning latte",
		Amount:      "4.5",
		Category:    string(domain.CategoryFood),
		Merchant:    "Cafe",
		Date:        "2024-03-01",
	}
}

func TestDraft_Validate(t *testing.T) {
	require.NoError(t, validDraft().Validate())
	assert.Empty(t, validDraft().Errors())

	tests := []struct {
		name  string
		edit  func(*Draft)
		field string
		msg   string
	}{
		{"title_blank", func(d *Draft) { d.Title = "   " }, "title", "Title is required"},
		{"description_short", func(d *Draft) { d.Description = " ab " }, "description", "Description must be at least 3 characters long"},
		{"amount_missing", func(d *Draft) { d.Amount = "" }, "amount", "Amount is required"},
		{"amount_garbage", func(d *Draft) { d.Amount = "abc" }, "amount", "Please enter a valid amount"},
		{"amount_too_small", func(d *Draft) { d.Amount = "0" }, "amount", "Amount must be at least $0.01"},
		{"amount_too_big", func(d *Draft) { d.Amount = "1000000" }, "amount", "Amount must not exceed $999,999.99"},
		{"category_unknown", func(d *Draft) { d.Category = "Groceries" }, "category", "Please select a valid category"},
		{"date_format", func(d *Draft) { d.Date = "03/01/2024" }, "date", "Please enter date in YYYY-MM-DD format"},
		{"date_far_future", func(d *Draft) { d.Date = domain.DateOf(time.Now().AddDate(2, 0, 0)).String() }, "date", "Date cannot be more than 1 year in the future"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDraft()
			tt.edit(d)
			assert.Equal(t, "INVALID_INPUT", apperrors.CodeOf(d.Validate()))
			assert.Equal(t, tt.msg, d.Errors()[tt.field])
		})
	}
}

func TestDraft_Requests(t *testing.T) {
	d := validDraft()
	d.ImageURL = "/tmp/r.jpg"
	d.Extracted = &domain.ExtractedExpenseData{Confidence: 0.5}

	req, err := d.CreateRequest()
	require.NoError(t, err)
	assert.Equal(t, "Coffee", req.Title)
	assert.True(t, req.Amount.Equal(decimal.RequireFromString("4.5")))
	assert.Equal(t, domain.NewDate(2024, time.March, 1), req.Date)
	assert.Equal(t, "/tmp/r.jpg", req.ImageURL)
	require.NotNil(t, req.ExtractedData)
	assert.NotSame(t, d.Extracted, req.ExtractedData)

	upd, err := d.UpdateRequest()
	require.NoError(t, err)
	require.NotNil(t, upd.Title)
	assert.Equal(t, "Coffee", *upd.Title)
	require.NotNil(t, upd.ImageURL)

	d.ImageURL = ""
	upd, err = d.UpdateRequest()
	require.NoError(t, err)
	assert.Nil(t, upd.ImageURL)

	d.Amount = "-3"
	_, err = d.CreateRequest()
	assert.Error(t, err)
}

func TestDraftFromExpense(t *testing.T) {
	e := domain.Expense{
		ID: "e1", Title: "Taxi", Description: "Airport", Amount: decimal.RequireFromString("30"),
		Category: domain.CategoryTransport, Date: domain.NewDate(2024, time.June, 2), ImageURL: "img.jpg",
	}
	d := DraftFromExpense(e)
	assert.Equal(t, "30.00", d.Amount)
	assert.Equal(t, "Transportation", d.Category)
	assert.Equal(t, "2024-06-02", d.Date)
	assert.Equal(t, "img.jpg", d.ImageURL)
}

func TestCaptureAndExtract(t *testing.T) {
	ctx := context.Background()

	t.Run("prefills_draft", func(t *testing.T) {
		path := writeFile(t, "receipt.png", pngHeader)
		ext := &stubExtractor{result: &domain.ExtractedExpenseData{
			Amount:     domain.Ptr(decimal.RequireFromString("42.50")),
			Merchant:   domain.Ptr("Olive Garden"),
			Confidence: 0.85,
		}}
		w := NewWorkflow(FilePicker{Path: path}, ext)
		d := &Draft{Title: "X"}

		out, err := w.CaptureAndExtract(ctx, d)
		require.NoError(t, err)
		assert.False(t, out.Cancelled)
		assert.Equal(t, "X", d.Title)
		assert.Equal(t, "42.50", d.Amount)
		assert.Equal(t, "Olive Garden", d.Merchant)
		assert.Equal(t, path, d.ImageURL)
		assert.True(t, bytes.Equal(pngHeader, ext.body))
		assert.InDelta(t, 0.85, out.Extracted.Confidence, 1e-9)
	})

	t.Run("cancel_is_silent", func(t *testing.T) {
		ext := &stubExtractor{}
		w := NewWorkflow(PickerFunc(func(context.Context) (ImageRef, error) { return ImageRef{}, ErrCancelled }), ext)
		d := &Draft{Title: "X"}

		out, err := w.CaptureAndExtract(ctx, d)
		require.NoError(t, err)
		assert.True(t, out.Cancelled)
		assert.Equal(t, &Draft{Title: "X"}, d)
		assert.Zero(t, ext.callCount())
	})

	t.Run("invalid_image_aborts_before_upload", func(t *testing.T) {
		path := writeFile(t, "anim.gif", []byte("GIF89a......"))
		ext := &stubExtractor{}
		w := NewWorkflow(FilePicker{Path: path}, ext)
		d := &Draft{}

		_, err := w.CaptureAndExtract(ctx, d)
		assert.ErrorIs(t, err, apperrors.ErrUnsupportedImage)
		assert.Zero(t, ext.callCount())
		assert.Equal(t, &Draft{}, d)
	})

	t.Run("size_limit_option", func(t *testing.T) {
		path := writeFile(t, "big.png", append(pngHeader, make([]byte, 100)...))
		ext := &stubExtractor{}
		w := NewWorkflow(FilePicker{Path: path}, ext, WithMaxImageBytes(50))

		_, err := w.CaptureAndExtract(ctx, &Draft{})
		assert.ErrorIs(t, err, apperrors.ErrImageTooLarge)
		assert.Zero(t, ext.callCount())
	})

	t.Run("extraction_failure_leaves_draft", func(t *testing.T) {
		path := writeFile(t, "receipt.png", pngHeader)
		ext := &stubExtractor{err: apperrors.WithMessage(apperrors.ErrExtractionFailed, "Blurry image")}
		w := NewWorkflow(FilePicker{Path: path}, ext)
		d := &Draft{Title: "keep"}

		_, err := w.CaptureAndExtract(ctx, d)
		assert.Equal(t, "Blurry image", apperrors.Message(err))
		assert.Equal(t, &Draft{Title: "keep"}, d)
	})

	t.Run("out_of_range_confidence_is_malformed", func(t *testing.T) {
		path := writeFile(t, "receipt.png", pngHeader)
		ext := &stubExtractor{result: &domain.ExtractedExpenseData{Title: domain.Ptr("T"), Confidence: 2}}
		w := NewWorkflow(FilePicker{Path: path}, ext)
		d := &Draft{}

		_, err := w.CaptureAndExtract(ctx, d)
		assert.ErrorIs(t, err, apperrors.ErrMalformedResult)
		assert.Equal(t, &Draft{}, d)
	})

	t.Run("second_capture_is_busy", func(t *testing.T) {
		path := writeFile(t, "receipt.png", pngHeader)
		ext := &stubExtractor{
			result:  &domain.ExtractedExpenseData{Confidence: 1},
			entered: make(chan struct{}),
			release: make(chan struct{}),
		}
		w := NewWorkflow(FilePicker{Path: path}, ext)

		done := make(chan error, 1)
		go func() {
			_, err := w.CaptureAndExtract(ctx, &Draft{})
			done <- err
		}()
		<-ext.entered

		assert.True(t, w.IsBusy())
		_, err := w.CaptureAndExtract(ctx, &Draft{})
		assert.ErrorIs(t, err, apperrors.ErrBusy)

		close(ext.release)
		require.NoError(t, <-done)
		assert.False(t, w.IsBusy())
	})

	t.Run("picker_error_propagates", func(t *testing.T) {
		boom := errors.New("camera unavailable")
		w := NewWorkflow(PickerFunc(func(context.Context) (ImageRef, error) { return ImageRef{}, boom }), &stubExtractor{})
		_, err := w.CaptureAndExtract(ctx, &Draft{})
		assert.ErrorIs(t, err, boom)
	})
}
