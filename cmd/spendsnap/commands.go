package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	"spendsnap/internal/capture"
	"spendsnap/internal/client"
	"spendsnap/internal/domain"
	apperrors "spendsnap/internal/errors"
)

type command struct {
	name    string
	args    string
	summary string
	// auth commands need a signed-in session.
	auth bool
	run  func(a *app, ctx context.Context, args []string) error
}

var commands []command

func init() {
	commands = []command{
		{name: "login", args: "[-email E] [-password P]", summary: "Sign in", run: (*app).login},
		{name: "signup", args: "[-name N] [-email E] [-password P]", summary: "Create an account", run: (*app).signup},
		{name: "logout", summary: "Sign out and forget the stored session", run: (*app).logout},
		{name: "whoami", summary: "Show the signed-in user", auth: true, run: (*app).whoami},
		{name: "list", args: "[-category C] [-from DATE] [-to DATE] [-q TEXT] [-n N]", summary: "List expenses", auth: true, run: (*app).list},
		{name: "add", args: "-title T -description D -amount A [-category C] [-merchant M] [-date DATE]", summary: "Add an expense", auth: true, run: (*app).add},
		{name: "edit", args: "ID [-title T] [-description D] [-amount A] [-category C] [-merchant M] [-date DATE]", summary: "Change an expense", auth: true, run: (*app).edit},
		{name: "delete", args: "ID [-yes]", summary: "Delete an expense", auth: true, run: (*app).delete},
		{name: "summary", summary: "Show totals and the category breakdown", auth: true, run: (*app).summary},
		{name: "scan", args: "IMAGE [-save] [field overrides]", summary: "Pre-fill an expense from a receipt image", auth: true, run: (*app).scan},
		{name: "export", args: "[-format csv|pdf] [-from DATE] [-to DATE] [-o FILE]", summary: "Download expenses as CSV or PDF", auth: true, run: (*app).export},
		{name: "categories", summary: "List expense categories", run: (*app).categories},
		{name: "shell", summary: "Run commands interactively", run: (*app).shell},
		{name: "help", summary: "Show this help", run: func(a *app, _ context.Context, _ []string) error {
			a.usage()
			return nil
		}},
	}
}

func lookup(name string) (command, bool) {
	for _, c := range commands {
		if c.name == name {
			return c, true
		}
	}
	return command{}, false
}

func (a *app) usage() {
	fmt.Fprintln(a.out, "Usage: spendsnap <command> [flags]")
	fmt.Fprintln(a.out)
	for _, c := range commands {
		fmt.Fprintf(a.out, "  %-11s %s\n", c.name, c.summary)
		if c.args != "" {
			fmt.Fprintf(a.out, "  %-11s   %s %s\n", "", c.name, c.args)
		}
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
	}
	return nil
}

// leadingArg splits off a positional argument given before the flags.
func leadingArg(args []string) (string, []string) {
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		return args[0], args[1:]
	}
	return "", args
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if *email == "" {
		if *email, err = a.prompt("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.readPassword("Password: "); err != nil {
			return err
		}
	}

	if err := a.gate.Login(ctx, strings.TrimSpace(*email), *password); err != nil {
		return err
	}
	user, _ := a.gate.User()
	fmt.Fprintf(a.out, "Signed in as %s <%s>\n", user.Name, user.Email)
	return nil
}

func (a *app) signup(ctx context.Context, args []string) error {
	fs := a.flags("signup")
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (prompted when omitted)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	var err error
	if *name == "" {
		if *name, err = a.prompt("Name: "); err != nil {
			return err
		}
	}
	if *email == "" {
		if *email, err = a.prompt("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.readPassword("Password: "); err != nil {
			return err
		}
		confirm, err := a.readPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if confirm != *password {
			return apperrors.WithMessage(apperrors.ErrInvalidInput, "Passwords do not match")
		}
	}

	if err := a.gate.Signup(ctx, strings.TrimSpace(*name), strings.TrimSpace(*email), *password); err != nil {
		return err
	}
	user, _ := a.gate.User()
	fmt.Fprintf(a.out, "Welcome, %s! Your account is ready.\n", user.Name)
	return nil
}

func (a *app) logout(ctx context.Context, _ []string) error {
	if err := a.gate.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

func (a *app) whoami(_ context.Context, _ []string) error {
	user, _ := a.gate.User()
	fmt.Fprintf(a.out, "%s <%s>\n", user.Name, user.Email)
	if !user.CreatedAt.IsZero() {
		fmt.Fprintf(a.out, "Member since %s\n", user.CreatedAt.Format("January 2, 2006"))
	}
	fmt.Fprintf(a.out, "%d expenses\n", a.store.Count())
	return nil
}

func (a *app) list(_ context.Context, args []string) error {
	fs := a.flags("list")
	category := fs.String("category", "", "only this category")
	from := fs.String("from", "", "earliest date (YYYY-MM-DD)")
	to := fs.String("to", "", "latest date (YYYY-MM-DD)")
	query := fs.String("q", "", "search title, description, category and merchant")
	limit := fs.Int("n", 0, "show at most N expenses")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	items := a.store.List()
	if *category != "" {
		c, err := parseCategory(*category)
		if err != nil {
			return err
		}
		items = intersect(items, a.store.ByCategory(c))
	}
	if *from != "" || *to != "" {
		start, end, err := parseRange(*from, *to)
		if err != nil {
			return err
		}
		if start.IsZero() {
			start = domain.NewDate(1, 1, 1)
		}
		if end.IsZero() {
			end = domain.NewDate(9999, 12, 31)
		}
		items = intersect(items, a.store.InRange(start, end))
	}
	if q := strings.TrimSpace(*query); q != "" {
		items = intersect(items, a.store.Search(q))
	}
	if *limit > 0 && len(items) > *limit {
		items = items[:*limit]
	}

	if len(items) == 0 {
		fmt.Fprintln(a.out, "No expenses found")
		return nil
	}
	printExpenses(a.out, items)
	return nil
}

// draftFlags registers the editable expense fields on fs.
type draftFlags struct {
	fs          *flag.FlagSet
	title       *string
	description *string
	amount      *string
	category    *string
	merchant    *string
	date        *string
}

func newDraftFlags(fs *flag.FlagSet) *draftFlags {
	return &draftFlags{
		fs:          fs,
		title:       fs.String("title", "", "title"),
		description: fs.String("description", "", "description"),
		amount:      fs.String("amount", "", "amount, e.g. 12.50"),
		category:    fs.String("category", "", "category"),
		merchant:    fs.String("merchant", "", "merchant"),
		date:        fs.String("date", "", "date (YYYY-MM-DD)"),
	}
}

// apply copies every flag that was set onto d.
func (f *draftFlags) apply(d *capture.Draft) error {
	var err error
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "title":
			d.Title = *f.title
		case "description":
			d.Description = *f.description
		case "amount":
			d.Amount = strings.TrimPrefix(strings.TrimSpace(*f.amount), "$")
		case "category":
			var c domain.Category
			if c, err = parseCategory(*f.category); err == nil {
				d.Category = string(c)
			}
		case "merchant":
			d.Merchant = *f.merchant
		case "date":
			d.Date = *f.date
		}
	})
	return err
}

// checkDraft reports every invalid field, or nil.
func (a *app) checkDraft(d *capture.Draft) error {
	errs := d.Errors()
	if len(errs) == 0 {
		return nil
	}
	fields := make([]string, 0, len(errs))
	for field := range errs {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		fmt.Fprintf(a.errOut, "  %s: %s\n", field, errs[field])
	}
	return d.Validate()
}

func (a *app) add(ctx context.Context, args []string) error {
	fs := a.flags("add")
	fields := newDraftFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	draft := capture.NewDraft(a.now())
	if err := fields.apply(draft); err != nil {
		return err
	}
	if err := a.checkDraft(draft); err != nil {
		return err
	}
	req, err := draft.CreateRequest()
	if err != nil {
		return err
	}

	created, err := a.store.Add(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s: %s %s\n", shortID(created.ID), created.Title, formatMoney(created.Amount))
	return nil
}

func (a *app) edit(ctx context.Context, args []string) error {
	ref, args := leadingArg(args)
	fs := a.flags("edit")
	fields := newDraftFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if ref == "" {
		ref = fs.Arg(0)
	}
	if fs.NFlag() == 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "No fields to update")
	}

	current, err := a.resolveID(ref)
	if err != nil {
		return err
	}
	draft := capture.DraftFromExpense(current)
	if err := fields.apply(draft); err != nil {
		return err
	}
	if err := a.checkDraft(draft); err != nil {
		return err
	}
	req, err := draft.UpdateRequest()
	if err != nil {
		return err
	}

	updated, err := a.store.Update(ctx, current.ID, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Updated %s: %s %s\n", shortID(updated.ID), updated.Title, formatMoney(updated.Amount))
	return nil
}

func (a *app) delete(ctx context.Context, args []string) error {
	ref, args := leadingArg(args)
	fs := a.flags("delete")
	yes := fs.Bool("yes", false, "do not ask for confirmation")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if ref == "" {
		ref = fs.Arg(0)
	}

	target, err := a.resolveID(ref)
	if err != nil {
		return err
	}
	if !*yes {
		ok, err := a.confirm(fmt.Sprintf("Delete %q (%s)? [y/N] ", target.Title, formatMoney(target.Amount)))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(a.out, "Cancelled")
			return nil
		}
	}

	if err := a.store.Delete(ctx, target.ID); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Deleted %s\n", shortID(target.ID))
	return nil
}

func (a *app) summary(_ context.Context, _ []string) error {
	fmt.Fprintf(a.out, "Total spent:  %s across %d expenses\n", formatMoney(a.store.TotalAmount()), a.store.Count())
	month := a.store.ExpensesInCurrentMonth()
	fmt.Fprintf(a.out, "This month:   %s across %d expenses\n", formatMoney(a.store.CurrentMonthTotal()), len(month))

	stats := a.store.CategorySummary()
	if len(stats) > 0 {
		fmt.Fprintln(a.out)
		printCategoryStats(a.out, stats)
	}

	recent := a.store.Recent(5)
	if len(recent) > 0 {
		fmt.Fprintln(a.out)
		fmt.Fprintln(a.out, "Recent:")
		printExpenses(a.out, recent)
	}
	return nil
}

func (a *app) scan(ctx context.Context, args []string) error {
	path, args := leadingArg(args)
	fs := a.flags("scan")
	save := fs.Bool("save", false, "add the expense after extraction")
	fields := newDraftFlags(fs)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if path == "" {
		path = fs.Arg(0)
	}
	if path == "" {
		var err error
		if path, err = a.prompt("Receipt image (empty to cancel): "); err != nil {
			return err
		}
	}

	draft := capture.NewDraft(a.now())
	workflow := capture.NewWorkflow(capture.FilePicker{Path: path}, a.extractor)
	fmt.Fprintln(a.errOut, "Analyzing receipt...")
	outcome, err := workflow.CaptureAndExtract(ctx, draft)
	if err != nil {
		return err
	}
	if outcome.Cancelled {
		fmt.Fprintln(a.out, "No image selected")
		return nil
	}
	if err := fields.apply(draft); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Extracted from %s (%s), confidence %.0f%%\n",
		outcome.Image.FileName, capture.FormatFileSize(outcome.Image.Size), outcome.Extracted.Confidence*100)
	printDraft(a.out, draft)

	if !*save {
		fmt.Fprintln(a.out, "Run again with -save to add it, adding field flags to correct anything.")
		return nil
	}
	if err := a.checkDraft(draft); err != nil {
		return err
	}
	req, err := draft.CreateRequest()
	if err != nil {
		return err
	}
	created, err := a.store.Add(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Added %s: %s %s\n", shortID(created.ID), created.Title, formatMoney(created.Amount))
	return nil
}

func (a *app) export(ctx context.Context, args []string) error {
	fs := a.flags("export")
	format := fs.String("format", client.FormatCSV, "csv or pdf")
	from := fs.String("from", "", "earliest date (YYYY-MM-DD)")
	to := fs.String("to", "", "latest date (YYYY-MM-DD)")
	output := fs.String("o", "", "output file (default expenses-YYYYMMDD.FORMAT)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}

	*format = strings.ToLower(strings.TrimSpace(*format))
	start, end, err := parseRange(*from, *to)
	if err != nil {
		return err
	}

	data, _, err := a.exporter.Export(ctx, *format, start, end)
	if err != nil {
		return err
	}

	path := *output
	if path == "" {
		path = fmt.Sprintf("expenses-%s.%s", a.now().Format("20060102"), *format)
	}
	if path == "-" {
		_, err := a.out.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	fmt.Fprintf(a.out, "Saved %s to %s\n", humanize.Bytes(uint64(len(data))), path)
	return nil
}

func (a *app) categories(_ context.Context, _ []string) error {
	for _, c := range domain.Categories {
		fmt.Fprintln(a.out, c)
	}
	return nil
}

func (a *app) shell(ctx context.Context, _ []string) error {
	if a.demo {
		fmt.Fprintln(a.out, "Demo mode: sign in with any email and password.")
	}
	fmt.Fprintln(a.out, `Type "help" for commands, "exit" to quit.`)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(a.out, "spendsnap> ")
		line, err := a.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		args, splitErr := splitArgs(line)
		switch {
		case splitErr != nil:
			fmt.Fprintln(a.errOut, "Error:", splitErr)
		case len(args) == 0:
		case args[0] == "exit" || args[0] == "quit":
			return nil
		case args[0] == "shell":
			fmt.Fprintln(a.errOut, "Error: already in the shell")
		default:
			if runErr := a.Run(ctx, args); runErr != nil {
				fmt.Fprintln(a.errOut, "Error:", apperrors.Message(runErr))
			}
		}
		if err == io.EOF {
			fmt.Fprintln(a.out)
			return nil
		}
	}
}

// parseCategory accepts a category name in any letter case.
func parseCategory(s string) (domain.Category, error) {
	c := domain.ParseCategory(s)
	if c == domain.CategoryOthers && !strings.EqualFold(strings.TrimSpace(s), string(domain.CategoryOthers)) {
		return "", apperrors.WithMessage(apperrors.ErrInvalidCategory,
			fmt.Sprintf("Unknown category %q; see spendsnap categories", s))
	}
	return c, nil
}

// parseRange parses optional bounds. Either may be empty.
func parseRange(from, to string) (domain.Date, domain.Date, error) {
	var start, end domain.Date
	var err error
	if s := strings.TrimSpace(from); s != "" {
		if start, err = domain.ParseDate(s); err != nil {
			return start, end, apperrors.WithMessage(apperrors.ErrInvalidInput, "Please enter date in YYYY-MM-DD format")
		}
	}
	if s := strings.TrimSpace(to); s != "" {
		if end, err = domain.ParseDate(s); err != nil {
			return start, end, apperrors.WithMessage(apperrors.ErrInvalidInput, "Please enter date in YYYY-MM-DD format")
		}
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		return start, end, apperrors.WithMessage(apperrors.ErrInvalidInput, "End date must not be before start date")
	}
	return start, end, nil
}

// intersect keeps the items of base whose id is also in subset.
func intersect(base, subset []domain.Expense) []domain.Expense {
	ids := make(map[string]struct{}, len(subset))
	for _, e := range subset {
		ids[e.ID] = struct{}{}
	}
	out := base[:0]
	for _, e := range base {
		if _, ok := ids[e.ID]; ok {
			out = append(out, e)
		}
	}
	return out
}
