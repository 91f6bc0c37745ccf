package domain

import (
	"fmt"
	"strings"
)

// CategoryKind is the closed set of menu categories the engine understands.
// Catalog entries carrying any other string are rejected at the boundary.
type CategoryKind string

const (
	CategoryRodizio  CategoryKind = "rodizio"
	CategoryDrinks   CategoryKind = "drinks"
	CategoryDesserts CategoryKind = "desserts"
	CategoryAlacarte CategoryKind = "alacarte"
	// CategorySystem covers non-food charges such as the buffet cover.
	CategorySystem CategoryKind = "system"
)

var categories = map[CategoryKind]struct{}{
	CategoryRodizio:  {},
	CategoryDrinks:   {},
	CategoryDesserts: {},
	CategoryAlacarte: {},
	CategorySystem:   {},
}

// ParseCategory normalizes s and returns the matching CategoryKind.
func ParseCategory(s string) (CategoryKind, error) {
	k := CategoryKind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := categories[k]; !ok {
		return "", fmt.Errorf("unknown menu category %q", s)
	}
	return k, nil
}

// Valid reports whether k belongs to the closed enumeration.
func (k CategoryKind) Valid() bool {
	_, ok := categories[k]
	return ok
}

// CountsTowardRound reports whether units of this category are capped by the
// table's round limit.
func (k CategoryKind) CountsTowardRound() bool { return k == CategoryRodizio }
