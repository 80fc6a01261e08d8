package protocol

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/amandahq/converse/core"
)

//go:embed defs/*.yaml
var builtinDefs embed.FS

// Load parses and validates a single protocol definition.
func Load(data []byte) (*Protocol, error) {
	var p Protocol
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse protocol: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Registry holds validated protocols keyed by risk category. It is immutable
// after construction and safe for concurrent use without locking.
type Registry struct {
	byCategory map[core.RiskCategory]*Protocol
}

// NewRegistry builds a registry from already-validated protocols. Duplicate
// categories are rejected.
func NewRegistry(protocols ...*Protocol) (*Registry, error) {
	r := &Registry{byCategory: make(map[core.RiskCategory]*Protocol, len(protocols))}
	for _, p := range protocols {
		if _, dup := r.byCategory[p.Category]; dup {
			return nil, fmt.Errorf("duplicate protocol for category %q", p.Category)
		}
		r.byCategory[p.Category] = p
	}
	return r, nil
}

// Get returns the protocol for a category.
func (r *Registry) Get(cat core.RiskCategory) (*Protocol, bool) {
	p, ok := r.byCategory[cat]
	return p, ok
}

// Categories returns the covered categories in stable order.
func (r *Registry) Categories() []core.RiskCategory {
	out := make([]core.RiskCategory, 0, len(r.byCategory))
	for cat := range r.byCategory {
		out = append(out, cat)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// LoadDir loads every *.yaml file in dir into a registry. Any malformed
// definition fails the whole load; the process must refuse to start with it.
func LoadDir(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read protocol dir: %w", err)
	}
	var protocols []*Protocol
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		p, err := Load(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		protocols = append(protocols, p)
	}
	if len(protocols) == 0 {
		return nil, fmt.Errorf("no protocol definitions in %s", dir)
	}
	return NewRegistry(protocols...)
}

// LoadBuiltin loads the protocol definitions embedded in the binary: one per
// known risk category.
func LoadBuiltin() (*Registry, error) {
	var protocols []*Protocol
	err := fs.WalkDir(builtinDefs, "defs", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := builtinDefs.ReadFile(path)
		if err != nil {
			return err
		}
		p, err := Load(data)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		protocols = append(protocols, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewRegistry(protocols...)
}
