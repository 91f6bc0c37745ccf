// Package catalog reads the menu catalog file. The catalog is owned outside
// the engine; this package is the boundary where free-form category strings
// become the closed domain.CategoryKind enumeration and prices become
// decimals. Entries that fail validation reject the whole file.
package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Fredcx/ezmenu/internal/domain"
)

// File is the on-disk layout:
//
//	items:
//	  - id: temaki-salmon
//	    name: Temaki de salmão
//	    category: rodizio
//	    price: "0"
type File struct {
	Items []Entry `yaml:"items"`
}

// Entry is one catalog line before validation. Price is a string so values
// such as "12.90" keep their exact decimal form.
type Entry struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Price    string `yaml:"price"`
}

// Load reads and validates the catalog at path.
func Load(path string) ([]domain.MenuItem, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a catalog document and converts it to menu items.
func Parse(r io.Reader) ([]domain.MenuItem, error) {
	var file File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return []domain.MenuItem{}, nil
		}
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	out := make([]domain.MenuItem, 0, len(file.Items))
	seen := make(map[string]struct{}, len(file.Items))
	for i, e := range file.Items {
		item, err := e.toMenuItem()
		if err != nil {
			return nil, fmt.Errorf("catalog item %d: %w", i, err)
		}
		if _, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("catalog item %d: duplicate id %q", i, item.ID)
		}
		seen[item.ID] = struct{}{}
		out = append(out, item)
	}
	return out, nil
}

func (e Entry) toMenuItem() (domain.MenuItem, error) {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		return domain.MenuItem{}, errors.New("id is required")
	}
	cat, err := domain.ParseCategory(e.Category)
	if err != nil {
		return domain.MenuItem{}, err
	}
	price := decimal.Zero
	if p := strings.TrimSpace(e.Price); p != "" {
		price, err = decimal.NewFromString(p)
		if err != nil {
			return domain.MenuItem{}, fmt.Errorf("price %q: %w", e.Price, err)
		}
	}
	if price.IsNegative() {
		return domain.MenuItem{}, fmt.Errorf("price %q must be >= 0", e.Price)
	}
	name := strings.TrimSpace(e.Name)
	if name == "" {
		name = id
	}
	return domain.MenuItem{ID: id, Name: name, Category: cat, Price: price}, nil
}
