// Package domain holds the expense ledger's wire-level types, shared by the
// client components and the reference API.
package domain

import "strings"

// Category is one of the fixed expense categories.
type Category string

const (
	CategoryFood          Category = "Food & Dining"
	CategoryTransport     Category = "Transportation"
	CategoryShopping      Category = "Shopping"
	CategoryEntertainment Category = "Entertainment"
	CategoryBills         Category = "Bills & Utilities"
	CategoryHealthcare    Category = "Healthcare"
	CategoryTravel        Category = "Travel"
	CategoryEducation     Category = "Education"
	CategoryPersonalCare  Category = "Personal Care"
	CategoryOthers        Category = "Others"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryFood,
	CategoryTransport,
	CategoryShopping,
	CategoryEntertainment,
	CategoryBills,
	CategoryHealthcare,
	CategoryTravel,
	CategoryEducation,
	CategoryPersonalCare,
	CategoryOthers,
}

var categoryIndex = func() map[string]Category {
	m := make(map[string]Category, len(Categories))
	for _, c := range Categories {
		m[strings.ToLower(string(c))] = c
	}
	return m
}()

// IsValid reports whether c is a member of the category set.
func (c Category) IsValid() bool {
	known, ok := categoryIndex[strings.ToLower(string(c))]
	return ok && known == c
}

// String implements fmt.Stringer.
func (c Category) String() string { return string(c) }

// ParseCategory maps s onto the category set, case-insensitively.
// Anything outside the set is coerced to CategoryOthers.
func ParseCategory(s string) Category {
	if c, ok := categoryIndex[strings.ToLower(strings.TrimSpace(s))]; ok {
		return c
	}
	return CategoryOthers
}

// UnmarshalText coerces unknown values to CategoryOthers, so every category
// decoded from the wire is a member of the set.
func (c *Category) UnmarshalText(text []byte) error {
	*c = ParseCategory(string(text))
	return nil
}
