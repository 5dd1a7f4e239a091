// Package dummy provides an in-memory turbine record store loaded from a
// YAML catalog. It needs no database and is useful for local development and
// for building new clients.
//
// The catalog is read once; the store never changes afterwards, so a Store is
// safe for concurrent use.
package dummy

import (
	"bytes"
	"cmp"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/openclimatefix/turbine-selector/internal/database"
	"github.com/openclimatefix/turbine-selector/internal/turbine"
)

//go:embed catalog.yaml
var embeddedCatalog []byte

// Entry is a single turbine in a catalog file. The efficiency curve is given
// either as a list of samples or as its serialized JSON form, never both.
type Entry struct {
	ID         int32            `yaml:"id"`
	Name       string           `yaml:"name"`
	Type       *string          `yaml:"type"`
	Notes      *string          `yaml:"notes"`
	QMin       float64          `yaml:"q_min"`
	QMax       float64          `yaml:"q_max"`
	HMin       float64          `yaml:"h_min"`
	HMax       float64          `yaml:"h_max"`
	DesignQ    *float64         `yaml:"design_q"`
	DesignH    *float64         `yaml:"design_h"`
	Efficiency *float64         `yaml:"efficiency"`
	Curve      []turbine.Sample `yaml:"efficiency_curve"`
	CurveJSON  string           `yaml:"efficiency_curve_json"`
}

// Catalog is the top level of a catalog file.
type Catalog struct {
	Turbines []Entry `yaml:"turbines"`
}

// ParseCatalog reads and validates a catalog. Entries without an id are
// numbered after the highest explicit id. Descriptors come back ordered by id
// with RawCurve set.
func ParseCatalog(r io.Reader) ([]turbine.Descriptor, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	var next int32
	for _, e := range c.Turbines {
		next = max(next, e.ID)
	}

	seen := make(map[int32]bool, len(c.Turbines))
	descriptors := make([]turbine.Descriptor, 0, len(c.Turbines))
	for i, e := range c.Turbines {
		if e.ID == 0 {
			next++
			e.ID = next
		}
		if seen[e.ID] {
			return nil, turbine.Errorf(turbine.CodeInvalidDescriptor, "catalog entry %d: duplicate id %d", i, e.ID)
		}
		seen[e.ID] = true

		d, err := e.descriptor()
		if err != nil {
			return nil, fmt.Errorf("catalog entry %d: %w", i, err)
		}
		descriptors = append(descriptors, d)
	}

	slices.SortStableFunc(descriptors, func(a, b turbine.Descriptor) int { return cmp.Compare(a.ID, b.ID) })
	return descriptors, nil
}

func (e Entry) descriptor() (turbine.Descriptor, error) {
	d := turbine.Descriptor{
		ID:         e.ID,
		Name:       e.Name,
		Type:       e.Type,
		Notes:      e.Notes,
		QMin:       e.QMin,
		QMax:       e.QMax,
		HMin:       e.HMin,
		HMax:       e.HMax,
		DesignQ:    e.DesignQ,
		DesignH:    e.DesignH,
		Efficiency: e.Efficiency,
		RawCurve:   e.CurveJSON,
	}
	if err := d.Validate(); err != nil {
		return d, err
	}
	if len(e.Curve) > 0 {
		if e.CurveJSON != "" {
			return d, turbine.Errorf(turbine.CodeInvalidDescriptor,
				"turbine %q sets both efficiency_curve and efficiency_curve_json", e.Name)
		}
		raw, err := turbine.EncodeCurve(e.Curve)
		if err != nil {
			return d, err
		}
		d.RawCurve = raw
	}
	return d, nil
}

// Store is a database.TurbineStore serving a fixed catalog.
type Store struct {
	turbines []turbine.Descriptor
	samples  map[int32][]turbine.EfficiencySample
}

// EmbeddedCatalog parses the built-in development catalog.
func EmbeddedCatalog() ([]turbine.Descriptor, error) {
	return ParseCatalog(bytes.NewReader(embeddedCatalog))
}

// New returns a Store serving the embedded development catalog.
func New() (*Store, error) {
	return Load(bytes.NewReader(embeddedCatalog))
}

// LoadFile returns a Store serving the catalog at path.
func LoadFile(path string) (*Store, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load returns a Store serving the catalog read from r. Efficiency samples
// are derived from each decodable curve; undecodable curves are kept as-is
// so the matcher can report them.
func Load(r io.Reader) (*Store, error) {
	descriptors, err := ParseCatalog(r)
	if err != nil {
		return nil, err
	}

	samples := make(map[int32][]turbine.EfficiencySample, len(descriptors))
	for _, d := range descriptors {
		curve, err := turbine.DecodeCurve(d.RawCurve)
		if err != nil {
			log.Warn().Int32("id", d.ID).Err(err).Msg("catalog curve cannot be decoded, no samples derived")
			continue
		}
		if len(curve) > 0 {
			samples[d.ID] = turbine.SortedSamples(d.ID, curve)
		}
	}

	log.Debug().Int("turbines", len(descriptors)).Msg("loaded turbine catalog")
	return &Store{turbines: descriptors, samples: samples}, nil
}

// ListTurbines implements database.TurbineStore.
func (s *Store) ListTurbines(ctx context.Context) ([]turbine.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "list turbines", err)
	}
	return slices.Clone(s.turbines), nil
}

// GetTurbine implements database.TurbineStore.
func (s *Store) GetTurbine(ctx context.Context, id int32) (turbine.Descriptor, error) {
	if err := ctx.Err(); err != nil {
		return turbine.Descriptor{}, turbine.Wrap(turbine.CodeStoreUnavailable, "get turbine", err)
	}
	i, found := slices.BinarySearchFunc(s.turbines, id, func(d turbine.Descriptor, id int32) int {
		return cmp.Compare(d.ID, id)
	})
	if !found {
		return turbine.Descriptor{}, turbine.Errorf(turbine.CodeNotFound, "no turbine with id %d", id)
	}
	return s.turbines[i], nil
}

// ListEfficiencySamples implements database.TurbineStore.
func (s *Store) ListEfficiencySamples(ctx context.Context, id int32) ([]turbine.EfficiencySample, error) {
	if err := ctx.Err(); err != nil {
		return nil, turbine.Wrap(turbine.CodeStoreUnavailable, "list efficiency samples", err)
	}
	return slices.Clone(s.samples[id]), nil
}

// Ping implements database.TurbineStore.
func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

var _ database.TurbineStore = (*Store)(nil)
