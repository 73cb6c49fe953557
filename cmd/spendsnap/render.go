package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"spendsnap/internal/capture"
	"spendsnap/internal/domain"
	"spendsnap/internal/ledger"
)

const shortIDLen = 8

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// formatMoney renders an amount as dollars with thousands separators.
func formatMoney(d decimal.Decimal) string {
	sign := ""
	if d.IsNegative() {
		sign, d = "-", d.Neg()
	}
	return sign + "$" + humanize.FormatFloat("#,###.##", d.Round(2).InexactFloat64())
}

func printExpenses(w io.Writer, items []domain.Expense) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTITLE\tCATEGORY\tMERCHANT\tAMOUNT")
	for _, e := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			shortID(e.ID), e.Date, e.Title, e.Category, e.Merchant, formatMoney(e.Amount))
	}
	_ = tw.Flush()
}

func printCategoryStats(w io.Writer, stats []ledger.CategoryStat) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CATEGORY\tCOUNT\tTOTAL\tSHARE")
	for _, s := range stats {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.1f%%\n", s.Category, s.Count, formatMoney(s.Total), s.Percentage)
	}
	_ = tw.Flush()
}

func printDraft(w io.Writer, d *capture.Draft) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "  Title:\t%s\n", d.Title)
	fmt.Fprintf(tw, "  Description:\t%s\n", d.Description)
	fmt.Fprintf(tw, "  Amount:\t%s\n", d.Amount)
	fmt.Fprintf(tw, "  Category:\t%s\n", d.Category)
	fmt.Fprintf(tw, "  Merchant:\t%s\n", d.Merchant)
	fmt.Fprintf(tw, "  Date:\t%s\n", d.Date)
	_ = tw.Flush()
}
