// Package sidebar builds and serializes rustdoc module sidebar indices.
//
// An Index groups the public declarations of one module by kind. Each bucket
// keeps its entries in insertion order and never holds the same name twice.
// The serialized form is the sidebar-items.js script consumed by rustdoc's
// front end:
//
//	initSidebarItems({"enum":[["CheckTask",""]],"fn":[["run","Runs it."]]});
package sidebar

import (
	"errors"
	"fmt"
	"sort"

	"github.com/jcdickinson/rsidebar/internal/markdown"
)

var (
	ErrDuplicateName = errors.New("duplicate name in kind bucket")
	ErrUnknownKind   = errors.New("unknown sidebar kind")
	ErrEmptyBucket   = errors.New("empty kind bucket")
)

// Declaration is a public item of a module together with its raw doc comment.
type Declaration struct {
	Kind Kind
	Name string
	Docs string
}

// Entry is a single sidebar row.
type Entry struct {
	Name    string
	Summary string
}

// Index maps a kind to the entries declared under it.
type Index map[Kind][]Entry

// Section is a titled list of names shown on an item page's sidebar,
// e.g. the fields of a struct.
type Section struct {
	Title  string   `json:"title"`
	Anchor string   `json:"anchor"`
	Items  []string `json:"items"`
}

type options struct {
	sortEntries bool
}

// Option configures index construction.
type Option func(*options)

// SortEntries orders each bucket by name instead of declaration order.
func SortEntries() Option {
	return func(o *options) { o.sortEntries = true }
}

// Builder accumulates declarations into an Index.
type Builder struct {
	opts  options
	idx   Index
	names map[Kind]map[string]struct{}
}

func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		idx:   make(Index),
		names: make(map[Kind]map[string]struct{}),
	}
	for _, o := range opts {
		o(&b.opts)
	}
	return b
}

// Add appends a declaration to its kind bucket. It returns false when the
// declaration was dropped: empty name, or the name is already in the bucket.
func (b *Builder) Add(d Declaration) bool {
	if d.Name == "" || d.Kind == "" {
		return false
	}
	seen, ok := b.names[d.Kind]
	if !ok {
		seen = make(map[string]struct{})
		b.names[d.Kind] = seen
	}
	if _, dup := seen[d.Name]; dup {
		return false
	}
	seen[d.Name] = struct{}{}
	b.idx[d.Kind] = append(b.idx[d.Kind], Entry{Name: d.Name, Summary: markdown.SummaryLine(d.Docs)})
	return true
}

// Index returns a copy of the accumulated index.
func (b *Builder) Index() Index {
	out := make(Index, len(b.idx))
	for k, entries := range b.idx {
		cp := make([]Entry, len(entries))
		copy(cp, entries)
		if b.opts.sortEntries {
			sort.SliceStable(cp, func(i, j int) bool { return cp[i].Name < cp[j].Name })
		}
		out[k] = cp
	}
	return out
}

// Build groups decls by kind, keeping the first declaration of each name.
func Build(decls []Declaration, opts ...Option) Index {
	b := NewBuilder(opts...)
	for _, d := range decls {
		b.Add(d)
	}
	return b.Index()
}

// Kinds returns the kinds present in the index in lexical order, which is
// also the order used by the serialized form.
func (idx Index) Kinds() []Kind {
	kinds := make([]Kind, 0, len(idx))
	for k := range idx {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// DisplayKinds returns the kinds present in the index in rustdoc page order.
func (idx Index) DisplayKinds() []Kind {
	kinds := idx.Kinds()
	sort.SliceStable(kinds, func(i, j int) bool { return kinds[i].rank() < kinds[j].rank() })
	return kinds
}

// Len returns the total number of entries across all buckets.
func (idx Index) Len() int {
	n := 0
	for _, entries := range idx {
		n += len(entries)
	}
	return n
}

// Lookup finds an entry by kind and name.
func (idx Index) Lookup(kind Kind, name string) (Entry, bool) {
	for _, e := range idx[kind] {
		if e.Name == name {
			return e, true
		}
	}
	return Entry{}, false
}

// Validate checks the structural invariants of the index.
func (idx Index) Validate() error {
	var errs []error
	for _, k := range idx.Kinds() {
		if !k.Valid() {
			errs = append(errs, fmt.Errorf("%w: %q", ErrUnknownKind, k))
		}
		entries := idx[k]
		if len(entries) == 0 {
			errs = append(errs, fmt.Errorf("%w: %q", ErrEmptyBucket, k))
			continue
		}
		seen := make(map[string]struct{}, len(entries))
		for _, e := range entries {
			if _, dup := seen[e.Name]; dup {
				errs = append(errs, fmt.Errorf("%w: %s %q", ErrDuplicateName, k, e.Name))
			}
			seen[e.Name] = struct{}{}
		}
	}
	return errors.Join(errs...)
}
