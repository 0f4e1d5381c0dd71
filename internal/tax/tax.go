// Package tax applies US state sales tax to quoted prices.
//
// There is one rate table. It is embedded in the binary and may be
// overridden at runtime by an operator-supplied TOML file with the same
// layout, which is watched and reloaded on change.
package tax

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"
)

//go:embed rates.toml
var defaultRates []byte

// ErrInvalidTable indicates a rate file that cannot be used.
var ErrInvalidTable = errors.New("invalid tax table")

var hundred = decimal.NewFromInt(100)

// Adjustment is a price with state tax applied. Amounts are whole dollars.
type Adjustment struct {
	State string  `json:"state"`
	Rate  float64 `json:"rate"`
	Price int     `json:"price"`
	Tax   int     `json:"tax"`
	Total int     `json:"total"`
}

// Table maps state abbreviations to percentage rates. It is safe for
// concurrent use; Reload swaps the rates atomically.
type Table struct {
	mu    sync.RWMutex
	rates map[string]decimal.Decimal
}

// Default returns the embedded table.
func Default() *Table {
	rates, err := Parse(defaultRates)
	if err != nil {
		panic(fmt.Sprintf("embedded tax table: %v", err))
	}
	return &Table{rates: rates}
}

// Load returns the embedded table with the rates in path layered on top.
// An empty path returns the embedded table.
func Load(path string) (*Table, error) {
	t := Default()
	if path == "" {
		return t, nil
	}
	if err := t.Reload(path); err != nil {
		return nil, err
	}
	return t, nil
}

// Parse decodes a TOML rate table.
func Parse(data []byte) (map[string]decimal.Decimal, error) {
	var doc struct {
		Rates map[string]float64 `toml:"rates"`
	}
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTable, err)
	}

	rates := make(map[string]decimal.Decimal, len(doc.Rates))
	for state, rate := range doc.Rates {
		key := normalize(state)
		if len(key) != 2 {
			return nil, fmt.Errorf("%w: state %q is not a two-letter abbreviation", ErrInvalidTable, state)
		}
		if rate < 0 || rate > 100 {
			return nil, fmt.Errorf("%w: rate %v for %s out of range", ErrInvalidTable, rate, key)
		}
		rates[key] = decimal.NewFromFloat(rate)
	}
	return rates, nil
}

// Reload rebuilds the table from the embedded rates plus the file at path.
// On error the current rates are left in place.
func (t *Table) Reload(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading tax table: %w", err)
	}
	override, err := Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	merged, err := Parse(defaultRates)
	if err != nil {
		return err
	}
	for k, v := range override {
		merged[k] = v
	}

	t.mu.Lock()
	t.rates = merged
	t.mu.Unlock()
	return nil
}

// Rate returns the percentage rate for state. Unknown or blank states get 0.
func (t *Table) Rate(state string) decimal.Decimal {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if r, ok := t.rates[normalize(state)]; ok {
		return r
	}
	return decimal.Zero
}

// Adjust adds state tax to price: tax = round(price*rate/100), half-up.
func (t *Table) Adjust(price int, state string) Adjustment {
	return Apply(price, state, t.Rate(state))
}

// Apply adds tax at a known percentage rate, rounding the same way Adjust
// does. Clients that only have the rate from the API use it.
func Apply(price int, state string, rate decimal.Decimal) Adjustment {
	tax := decimal.NewFromInt(int64(price)).Mul(rate).Div(hundred).Round(0)
	return Adjustment{
		State: normalize(state),
		Rate:  rate.InexactFloat64(),
		Price: price,
		Tax:   int(tax.IntPart()),
		Total: price + int(tax.IntPart()),
	}
}

// States returns the abbreviations in the table, sorted.
func (t *Table) States() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.rates))
	for k := range t.rates {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func normalize(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}
