package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// ErrMissingSpec is returned by Lookup when a symbol has no tick specification.
var ErrMissingSpec = errors.New("missing instrument spec")

// Spec carries the pricing constants of one instrument.
type Spec struct {
	Symbol    string          `json:"symbol"`
	TickSize  decimal.Decimal `json:"tick_size"`
	TickValue decimal.Decimal `json:"tick_value"`
}

// Lookup is the read side of the registry used during P&L computation.
type Lookup interface {
	Lookup(symbol string) (Spec, error)
}

// fileSpec is the on-disk shape: symbol -> {tick_value, tick_size}.
type fileSpec struct {
	TickValue float64 `json:"tick_value" yaml:"tick_value"`
	TickSize  float64 `json:"tick_size" yaml:"tick_size"`
}

// Defaults returns the instruments seeded into a fresh registry file.
func Defaults() map[string]Spec {
	return map[string]Spec{
		"ES": {Symbol: "ES", TickValue: decimal.RequireFromString("12.50"), TickSize: decimal.RequireFromString("0.25")},
		"GC": {Symbol: "GC", TickValue: decimal.RequireFromString("10.00"), TickSize: decimal.RequireFromString("0.10")},
	}
}

// Registry maps base symbols to tick specifications. It is safe for concurrent
// lookups; Save persists the whole map when the registry is file backed.
type Registry struct {
	mu    sync.RWMutex
	path  string
	specs map[string]Spec
}

// NewRegistry builds an in-memory registry.
func NewRegistry(specs map[string]Spec) *Registry {
	r := &Registry{specs: make(map[string]Spec, len(specs))}
	for symbol, spec := range specs {
		spec.Symbol = symbol
		r.specs[symbol] = spec
	}
	return r
}

// Load reads the registry file at path. A missing file is created with the defaults.
// Files ending in .yaml or .yml are YAML, everything else JSON.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		r := NewRegistry(Defaults())
		r.path = path
		if err := r.persist(); err != nil {
			return nil, err
		}
		log.Info().Str("path", path).Msg("Created contract registry with defaults")
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read contract registry: %w", err)
	}

	raw := map[string]fileSpec{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &raw)
	} else {
		err = json.Unmarshal(data, &raw)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode contract registry %s: %w", path, err)
	}

	specs := make(map[string]Spec, len(raw))
	for symbol, fs := range raw {
		specs[symbol] = Spec{
			Symbol:    symbol,
			TickValue: decimal.NewFromFloat(fs.TickValue),
			TickSize:  decimal.NewFromFloat(fs.TickSize),
		}
	}

	r := NewRegistry(specs)
	r.path = path
	return r, nil
}

// Lookup returns the spec for symbol or an error wrapping ErrMissingSpec.
func (r *Registry) Lookup(symbol string) (Spec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[symbol]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrMissingSpec, symbol)
	}
	if !spec.TickSize.IsPositive() {
		return Spec{}, fmt.Errorf("%w: %s has non-positive tick size", ErrMissingSpec, symbol)
	}
	return spec, nil
}

// Save upserts a spec and writes the registry back to its file.
func (r *Registry) Save(symbol string, tickValue, tickSize decimal.Decimal) (Spec, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return Spec{}, errors.New("contract symbol is required")
	}
	if !tickValue.IsPositive() || !tickSize.IsPositive() {
		return Spec{}, fmt.Errorf("tick value and tick size must be positive for %s", symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	spec := Spec{Symbol: symbol, TickValue: tickValue, TickSize: tickSize}
	next := make(map[string]Spec, len(r.specs)+1)
	for k, v := range r.specs {
		next[k] = v
	}
	next[symbol] = spec
	if err := r.writeLocked(next); err != nil {
		return Spec{}, err
	}
	r.specs = next
	return spec, nil
}

// All returns the specs ordered by symbol.
func (r *Registry) All() []Spec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Spec, 0, len(r.specs))
	for _, spec := range r.specs {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Symbols lists the registered base symbols.
func (r *Registry) Symbols() []string {
	specs := r.All()
	out := make([]string, len(specs))
	for i, spec := range specs {
		out[i] = spec.Symbol
	}
	return out
}

// Snapshot copies the current specs into a detached in-memory registry, so a
// batch run keeps reading the same values while edits land on the original.
func (r *Registry) Snapshot() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return NewRegistry(r.specs)
}

func (r *Registry) persist() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.writeLocked(r.specs)
}

// writeLocked writes specs to the registry file. The caller holds r.mu.
func (r *Registry) writeLocked(specs map[string]Spec) error {
	if r.path == "" {
		return nil
	}

	raw := make(map[string]fileSpec, len(specs))
	for symbol, spec := range specs {
		raw[symbol] = fileSpec{
			TickValue: spec.TickValue.InexactFloat64(),
			TickSize:  spec.TickSize.InexactFloat64(),
		}
	}

	var (
		data []byte
		err  error
	)
	if isYAML(r.path) {
		data, err = yaml.Marshal(raw)
	} else {
		data, err = json.MarshalIndent(raw, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode contract registry: %w", err)
	}

	if dir := filepath.Dir(r.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create registry directory: %w", err)
		}
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write contract registry: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace contract registry: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
