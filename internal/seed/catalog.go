// Package seed holds the bundled reference dataset used as the always-available
// fallback and as the merge base for AI-generated industries.
package seed

import (
	"bytes"
	_ "embed"
	"io"
	"os"
	"sync"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/vigyl/internal/model"
)

//go:embed catalog.yaml
var bundled []byte

// Catalog is the immutable seed dataset. Accessors return copies.
type Catalog struct {
	industries []model.Industry
	signals    []model.Signal
	prospects  []model.Prospect
}

type catalogFile struct {
	Industries []model.Industry `yaml:"industries"`
	Signals    []model.Signal   `yaml:"signals"`
	Prospects  []model.Prospect `yaml:"prospects"`
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the catalog bundled into the binary. It panics if the
// bundled YAML is invalid, which is a build defect.
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := Load(bytes.NewReader(bundled))
		if err != nil {
			panic(eris.Wrap(err, "seed: bundled catalog"))
		}
		defaultCatalog = c
	})
	return defaultCatalog
}

// LoadFile reads a catalog override from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "seed: open %s", path)
	}
	defer f.Close() //nolint:errcheck
	return Load(f)
}

// Load parses a YAML catalog and validates identity uniqueness.
func Load(r io.Reader) (*Catalog, error) {
	var cf catalogFile
	if err := yaml.NewDecoder(r).Decode(&cf); err != nil {
		return nil, eris.Wrap(err, "seed: decode catalog")
	}
	if err := validate(cf); err != nil {
		return nil, err
	}

	for n := range cf.Industries {
		cf.Industries[n].Normalize()
	}
	for n := range cf.Signals {
		cf.Signals[n].Normalize()
	}
	for n := range cf.Prospects {
		cf.Prospects[n].Normalize()
	}

	return &Catalog{
		industries: cf.Industries,
		signals:    cf.Signals,
		prospects:  cf.Prospects,
	}, nil
}

// New builds a catalog from in-memory records. Used by tests and tools that
// assemble a catalog programmatically.
func New(industries []model.Industry, signals []model.Signal, prospects []model.Prospect) (*Catalog, error) {
	cf := catalogFile{Industries: industries, Signals: signals, Prospects: prospects}
	if err := validate(cf); err != nil {
		return nil, err
	}
	return &Catalog{
		industries: model.CloneIndustries(industries),
		signals:    append([]model.Signal(nil), signals...),
		prospects:  append([]model.Prospect(nil), prospects...),
	}, nil
}

func validate(cf catalogFile) error {
	ids := make(map[string]bool, len(cf.Industries))
	slugs := make(map[string]bool, len(cf.Industries))
	for _, ind := range cf.Industries {
		if ind.ID == "" || ind.Slug == "" {
			return eris.Errorf("seed: industry %q missing id or slug", ind.Name)
		}
		if ids[ind.ID] {
			return eris.Errorf("seed: duplicate industry id %s", ind.ID)
		}
		if slugs[ind.Slug] {
			return eris.Errorf("seed: duplicate industry slug %s", ind.Slug)
		}
		ids[ind.ID] = true
		slugs[ind.Slug] = true
	}
	return nil
}

// Industries returns a copy of the seed industries in catalog order.
func (c *Catalog) Industries() []model.Industry {
	return model.CloneIndustries(c.industries)
}

// Signals returns a copy of the seed signals.
func (c *Catalog) Signals() []model.Signal {
	return append([]model.Signal(nil), c.signals...)
}

// Prospects returns a copy of the seed prospects.
func (c *Catalog) Prospects() []model.Prospect {
	return append([]model.Prospect(nil), c.prospects...)
}

// IndustryIDs returns the seed industry ids in catalog order.
func (c *Catalog) IndustryIDs() []string {
	ids := make([]string, len(c.industries))
	for n, ind := range c.industries {
		ids[n] = ind.ID
	}
	return ids
}

// Len returns the number of seed industries.
func (c *Catalog) Len() int {
	return len(c.industries)
}

// Snapshot returns the seed fallback snapshot for an owner.
func (c *Catalog) Snapshot(ownerID string) *model.Snapshot {
	return &model.Snapshot{
		OwnerID:    ownerID,
		Industries: c.Industries(),
		Signals:    c.Signals(),
		Prospects:  c.Prospects(),
	}
}
