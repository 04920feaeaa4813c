// Package schema accumulates per-field statistics over a document sample.
package schema

import (
	"sort"

	"github.com/ppiankov/mongolens/internal/document"
	"github.com/ppiankov/mongolens/internal/sketch"
)

// ValueCap bounds the distinct scalar values remembered per field path.
const ValueCap = 5000

// FieldStats holds everything observed for one field path.
type FieldStats struct {
	Path    string
	Present int
	Types   map[string]int
	// ArrayLengths is nil unless the path held a list in at least one document.
	ArrayLengths []int
	Values       *sketch.Capped
}

// HasType reports whether the path was ever observed with the given tag.
func (f *FieldStats) HasType(tag string) bool {
	return f.Types[tag] > 0
}

// Profile is the result of one pass over a sample.
type Profile struct {
	Sampled    int
	DocSizes   []int
	Depths     []int
	Fields     map[string]*FieldStats
	valueLimit int
}

// NewProfile returns an empty profile using ValueCap.
func NewProfile() *Profile {
	return newProfile(ValueCap)
}

func newProfile(valueLimit int) *Profile {
	return &Profile{
		Fields:     make(map[string]*FieldStats),
		valueLimit: valueLimit,
	}
}

// Aggregate observes every document of samples once, in order.
func Aggregate[D any](samples []D) *Profile {
	p := NewProfile()
	for _, doc := range samples {
		p.Observe(doc)
	}
	return p
}

// Observe folds one document into the profile.
func (p *Profile) Observe(doc any) {
	p.Sampled++
	if size, ok := document.Size(doc); ok {
		p.DocSizes = append(p.DocSizes, size)
	}
	p.Depths = append(p.Depths, document.Depth(doc))

	for _, e := range document.Flatten(doc) {
		fs := p.field(e.Path)
		fs.Present++
		tag := document.TypeName(e.Value)
		fs.Types[tag]++
		if n, ok := document.ArrayLen(e.Value); ok {
			fs.ArrayLengths = append(fs.ArrayLengths, n)
			continue
		}
		if tag == document.TypeObject {
			continue
		}
		fs.Values.Add(document.CanonicalKey(e.Value))
	}
}

func (p *Profile) field(path string) *FieldStats {
	fs, ok := p.Fields[path]
	if !ok {
		fs = &FieldStats{
			Path:   path,
			Types:  make(map[string]int),
			Values: sketch.NewCapped(p.valueLimit),
		}
		p.Fields[path] = fs
	}
	return fs
}

// Paths returns every observed field path in sorted order.
func (p *Profile) Paths() []string {
	paths := make([]string, 0, len(p.Fields))
	for path := range p.Fields {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Empty reports whether no document was observed.
func (p *Profile) Empty() bool {
	return p == nil || p.Sampled == 0
}
