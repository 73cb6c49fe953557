package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"spendsnap/internal/capture"
	"spendsnap/internal/client"
	"spendsnap/internal/config"
	"spendsnap/internal/credstore"
	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
	"spendsnap/internal/ledger"
	"spendsnap/internal/services"
	"spendsnap/internal/session"
)

// exporter downloads the expense list as a document.
// *client.ExpenseAPI satisfies it.
type exporter interface {
	Export(ctx context.Context, format string, start, end domain.Date) ([]byte, string, error)
}

// app holds one CLI process's session and its collaborators.
type app struct {
	demo      bool
	gate      *session.Gate
	store     *ledger.Store
	extractor capture.Extractor
	exporter  exporter

	stdin  io.Reader
	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	resumed bool
	closers []func() error
}

// newApp wires the client against the API, or against the in-process demo
// backend when cfg.Demo is set.
func newApp(cfg *config.ClientConfig, stdin io.Reader, out, errOut io.Writer) (*app, error) {
	a := &app{
		demo:   cfg.Demo,
		stdin:  stdin,
		in:     bufio.NewReader(stdin),
		out:    out,
		errOut: errOut,
		now:    time.Now,
	}

	if cfg.Demo {
		source := ledger.NewDemoSource()
		creds := credstore.NewMemory()
		a.store = ledger.NewStore(source)
		a.gate = session.NewGate(session.NewDemoAuthenticator(source, creds), creds, a.store)
		a.extractor = capture.DemoExtractor{}
		a.exporter = &localExporter{store: a.store, gate: a.gate, svc: services.NewExportService(), now: time.Now}
		return a, nil
	}

	creds, err := credstore.OpenSQLite(cfg.StateDB)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, creds.Close)

	c := client.New(cfg.APIURL, creds, nil, client.WithTimeouts(client.Timeouts{
		Default:  cfg.Timeout,
		Upload:   cfg.UploadTimeout,
		Download: cfg.DownloadTimeout,
	}))
	expenses := client.NewExpenseAPI(c)
	a.store = ledger.NewStore(expenses)
	a.gate = session.NewGate(client.NewAuthAPI(c, creds), creds, a.store)
	a.extractor = expenses
	a.exporter = expenses
	return a, nil
}

// Close releases the persisted state.
func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Run executes one command line.
func (a *app) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return nil
	}
	cmd, ok := lookup(args[0])
	if !ok {
		a.usage()
		return apperrors.WithMessage(apperrors.ErrInvalidInput, fmt.Sprintf("Unknown command %q", args[0]))
	}

	if err := a.resume(ctx); err != nil {
		return err
	}
	if cmd.auth && !a.gate.IsAuthenticated() {
		if a.demo {
			return apperrors.WithMessage(apperrors.ErrNotAuthenticated, "Please sign in first; demo sessions last for one shell")
		}
		return apperrors.WithMessage(apperrors.ErrNotAuthenticated, "Please sign in first: spendsnap login")
	}
	return a.gate.Check(cmd.run(a, ctx, args[1:]))
}

// resume restores the stored session once per process. An expired session
// is reported and then treated as signed out.
func (a *app) resume(ctx context.Context) error {
	if a.resumed {
		return nil
	}
	a.resumed = true
	err := a.gate.Resume(ctx)
	if errors.Is(err, apperrors.ErrSessionExpired) {
		fmt.Fprintln(a.errOut, apperrors.Message(err))
		return nil
	}
	return err
}

// resolveID finds the expense whose id is, or starts with, ref.
func (a *app) resolveID(ref string) (domain.Expense, error) {
	ref = strings.ToLower(strings.TrimSpace(ref))
	if ref == "" {
		return domain.Expense{}, apperrors.WithMessage(apperrors.ErrInvalidInput, "Expense id is required")
	}
	if e, ok := a.store.Get(ref); ok {
		return e, nil
	}
	var matches []domain.Expense
	for _, e := range a.store.List() {
		if strings.HasPrefix(strings.ToLower(e.ID), ref) {
			matches = append(matches, e)
		}
	}
	switch len(matches) {
	case 0:
		return domain.Expense{}, apperrors.ErrExpenseNotFound
	case 1:
		return matches[0], nil
	default:
		return domain.Expense{}, apperrors.WithMessage(apperrors.ErrInvalidInput,
			fmt.Sprintf("Expense id %q is ambiguous (%d matches)", ref, len(matches)))
	}
}

// localExporter renders documents from the in-process ledger.
type localExporter struct {
	store *ledger.Store
	gate  *session.Gate
	svc   services.ExportServicer
	now   func() time.Time
}

func (l *localExporter) Export(_ context.Context, format string, start, end domain.Date) ([]byte, string, error) {
	items := l.store.List()
	items = slices.DeleteFunc(items, func(e domain.Expense) bool {
		return (!start.IsZero() && e.Date.Before(start)) || (!end.IsZero() && e.Date.After(end))
	})
	slices.SortStableFunc(items, func(a, b domain.Expense) int {
		switch {
		case a.Date.After(b.Date):
			return -1
		case a.Date.Before(b.Date):
			return 1
		}
		return 0
	})

	var buf bytes.Buffer
	switch format {
	case client.FormatCSV:
		if err := l.svc.WriteCSV(&buf, items); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "text/csv", nil
	case client.FormatPDF:
		report := services.Report{Expenses: items, GeneratedAt: l.now()}
		if !start.IsZero() {
			report.Start = &start
		}
		if !end.IsZero() {
			report.End = &end
		}
		if user, ok := l.gate.User(); ok {
			report.UserName, report.Email = user.Name, user.Email
		}
		if err := l.svc.WritePDF(&buf, report); err != nil {
			return nil, "", err
		}
		return buf.Bytes(), "application/pdf", nil
	default:
		return nil, "", apperrors.ErrUnsupportedExport
	}
}
