package ledger

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"spendsnap/internal/domain"
)

// CategoryStat summarises one category's share of total spend.
type CategoryStat struct {
	Category   domain.Category `json:"category"`
	Total      decimal.Decimal `json:"total"`
	Count      int             `json:"count"`
	Percentage float64         `json:"percentage"`
}

var hundred = decimal.NewFromInt(100)

// TotalAmount sums every expense.
func (s *Store) TotalAmount() decimal.Decimal {
	return sum(s.List())
}

// ExpensesInCurrentMonth returns the expenses dated in the current calendar
// month, evaluated at call time.
func (s *Store) ExpensesInCurrentMonth() []domain.Expense {
	now := s.now()
	return filter(s.List(), func(e domain.Expense) bool { return e.Date.SameMonth(now) })
}

// CurrentMonthTotal sums the current month's expenses.
func (s *Store) CurrentMonthTotal() decimal.Decimal {
	return sum(s.ExpensesInCurrentMonth())
}

// ByCategory returns the expenses in category c.
func (s *Store) ByCategory(c domain.Category) []domain.Expense {
	return filter(s.List(), func(e domain.Expense) bool { return e.Category == c })
}

// InRange returns expenses dated within [start, end], both inclusive.
func (s *Store) InRange(start, end domain.Date) []domain.Expense {
	return filter(s.List(), func(e domain.Expense) bool {
		return !e.Date.Before(start) && !e.Date.After(end)
	})
}

// Search matches q case-insensitively against title, description, category
// and merchant.
func (s *Store) Search(q string) []domain.Expense {
	q = strings.ToLower(strings.TrimSpace(q))
	return filter(s.List(), func(e domain.Expense) bool {
		return strings.Contains(strings.ToLower(e.Title), q) ||
			strings.Contains(strings.ToLower(e.Description), q) ||
			strings.Contains(strings.ToLower(string(e.Category)), q) ||
			strings.Contains(strings.ToLower(e.Merchant), q)
	})
}

// Recent returns up to n expenses, newest CreatedAt first.
func (s *Store) Recent(n int) []domain.Expense {
	items := s.List()
	slices.SortStableFunc(items, func(a, b domain.Expense) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// CategorySummary groups the collection by category in order of first
// appearance. Percentages are of the grand total, or 0 when it is zero.
func (s *Store) CategorySummary() []CategoryStat {
	items := s.List()
	grand := sum(items)

	var out []CategoryStat
	index := make(map[domain.Category]int)
	for _, e := range items {
		i, ok := index[e.Category]
		if !ok {
			i = len(out)
			index[e.Category] = i
			out = append(out, CategoryStat{Category: e.Category, Total: decimal.Zero})
		}
		out[i].Total = out[i].Total.Add(e.Amount)
		out[i].Count++
	}

	for i := range out {
		if grand.IsPositive() {
			out[i].Percentage = out[i].Total.Mul(hundred).Div(grand).InexactFloat64()
		}
	}
	return out
}

func sum(items []domain.Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range items {
		total = total.Add(e.Amount)
	}
	return total
}

func filter(items []domain.Expense, keep func(domain.Expense) bool) []domain.Expense {
	out := make([]domain.Expense, 0, len(items))
	for _, e := range items {
		if keep(e) {
			out = append(out, e)
		}
	}
	return out
}
