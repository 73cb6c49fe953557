package capture

import (
	"context"
	"errors"
	"io"
	"sync"

	"go.uber.org/zap"

	"spendsnap/internal/client"
	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/logger"
)

// Extractor sends an image to the recognition service.
// *client.ExpenseAPI satisfies it.
type Extractor interface {
	ExtractFromImage(ctx context.Context, img client.ImageUpload) (*domain.ExtractedExpenseData, error)
}

// Outcome reports what CaptureAndExtract did. Cancelled is set when the user
// backed out of the picker; nothing else is populated then.
type Outcome struct {
	Cancelled bool
	Image     ImageRef
	Extracted *domain.ExtractedExpenseData
}

// Workflow runs one capture at a time: pick, validate, extract, merge.
type Workflow struct {
	picker    Picker
	extractor Extractor
	maxBytes  int64
	open      func(ImageRef) (io.ReadCloser, error)
	log       *zap.SugaredLogger

	mu   sync.Mutex
	busy bool
}

// WorkflowOption configures a Workflow.
type WorkflowOption func(*Workflow)

// WithMaxImageBytes overrides the size limit.
func WithMaxImageBytes(n int64) WorkflowOption {
	return func(w *Workflow) {
		if n > 0 {
			w.maxBytes = n
		}
	}
}

// NewWorkflow creates a Workflow.
func NewWorkflow(picker Picker, extractor Extractor, opts ...WorkflowOption) *Workflow {
	w := &Workflow{
		picker:    picker,
		extractor: extractor,
		maxBytes:  MaxImageBytes,
		open:      openImage,
		log:       logger.Named("capture"),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// IsBusy reports whether an extraction is in flight.
func (w *Workflow) IsBusy() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busy
}

// CaptureAndExtract asks the picker for an image, checks it, submits it for
// extraction and merges the result into draft. Cancelling the picker returns
// a zero error with Outcome.Cancelled set. On any failure draft is left as
// it was.
func (w *Workflow) CaptureAndExtract(ctx context.Context, draft *Draft) (Outcome, error) {
	if draft == nil {
		return Outcome{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "No draft to fill")
	}
	w.mu.Lock()
	if w.busy {
		w.mu.Unlock()
		return Outcome{}, apperrors.ErrBusy
	}
	w.busy = true
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.busy = false
		w.mu.Unlock()
	}()

	img, err := w.picker.Pick(ctx)
	if errors.Is(err, ErrCancelled) {
		w.log.Debugw("image selection cancelled")
		return Outcome{Cancelled: true}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	if img.FileName == "" {
		img.FileName = DefaultCameraName
	}
	if img.MIMEType == "" {
		img.MIMEType = "image/jpeg"
	}
	if err := ValidateImage(img, w.maxBytes); err != nil {
		return Outcome{}, err
	}

	body, err := w.open(img)
	if err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.ErrNoImage, err)
	}
	defer body.Close()

	w.log.Debugw("submitting image for extraction", "file", img.FileName, "size", FormatFileSize(img.Size))
	extracted, err := w.extractor.ExtractFromImage(ctx, client.ImageUpload{
		FileName: img.FileName,
		MIMEType: img.MIMEType,
		Body:     body,
	})
	if err != nil {
		w.log.Warnw("extraction failed", "file", img.FileName, "error", err)
		return Outcome{}, err
	}
	if err := extracted.Validate(); err != nil {
		return Outcome{}, apperrors.Wrap(apperrors.ErrMalformedResult, err)
	}

	draft.Merge(extracted)
	draft.ImageURL = img.URI
	w.log.Infow("draft pre-filled from image", "file", img.FileName, "confidence", extracted.Confidence)
	return Outcome{Image: img, Extracted: extracted.Clone()}, nil
}
