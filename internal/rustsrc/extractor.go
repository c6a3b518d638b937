// Package rustsrc builds module declarations straight from a crate's Rust
// sources, for crates that have no rustdoc JSON at hand.
package rustsrc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

// ErrModuleNotFound is returned when a `mod foo;` has no matching file.
var ErrModuleNotFound = errors.New("module file not found")

// Module is one documented module with its declarations in source order.
type Module struct {
	Path  string // "::"-joined, starts with the crate name
	File  string // file holding the module's items
	Docs  string
	Decls []sidebar.Declaration
}

// Crate is the result of extracting a crate directory.
type Crate struct {
	Name    string
	Version string
	Dir     string
	Modules []Module // sorted by path
}

// BuildIndices builds the sidebar index of every module, keyed by module path.
func (c *Crate) BuildIndices(opts ...sidebar.Option) map[string]sidebar.Index {
	indices := make(map[string]sidebar.Index, len(c.Modules))
	for _, m := range c.Modules {
		indices[m.Path] = sidebar.Build(m.Decls, opts...)
	}
	return indices
}

// Options controls extraction.
type Options struct {
	IncludeHidden bool // keep #[doc(hidden)] items
	Concurrency   int  // files parsed at once; 0 means GOMAXPROCS
}

// Extractor parses crates with tree-sitter.
type Extractor struct {
	cache *Cache
	opts  Options
}

// NewExtractor returns an extractor. cache may be nil.
func NewExtractor(cache *Cache, opts Options) *Extractor {
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.GOMAXPROCS(0)
	}
	return &Extractor{cache: cache, opts: opts}
}

// ExtractCrate reads dir/Cargo.toml, then parses the crate root and every
// public module reachable from it.
func (e *Extractor) ExtractCrate(ctx context.Context, dir string) (*Crate, error) {
	m, err := ReadManifest(dir)
	if err != nil {
		return nil, err
	}
	root, err := m.RootFile()
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Concurrency)

	w := &walker{e: e, g: g, ctx: gctx, crate: m.CrateName()}
	if err := w.schedule(fileJob{path: w.crate, file: root, childDir: filepath.Dir(root)}); err != nil {
		return nil, err
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	crate := &Crate{Name: m.CrateName(), Version: m.Package.Version, Dir: dir, Modules: w.assemble()}
	slog.Debug("extracted crate", "crate", crate.Name, "modules", len(crate.Modules), "dir", dir)
	return crate, nil
}

// fileJob is a module whose items live in their own file.
type fileJob struct {
	path     string
	file     string
	childDir string // where `mod foo;` inside this file looks for foo.rs
	docs     string // outer docs on the `mod foo;` item
	private  bool   // only exported macros are collected
}

type exportedMacro struct {
	module string
	seq    int
	decl   sidebar.Declaration
}

type walker struct {
	e     *Extractor
	g     *errgroup.Group
	ctx   context.Context
	crate string

	mu      sync.Mutex
	modules []Module
	macros  []exportedMacro
}

// schedule parses a module file on the group, or inline when every slot is
// taken so that a full group can't block on its own children.
func (w *walker) schedule(job fileJob) error {
	run := func() error { return w.runFile(job) }
	if w.g.TryGo(run) {
		return nil
	}
	return run()
}

func (w *walker) runFile(job fileJob) error {
	if err := w.ctx.Err(); err != nil {
		return err
	}
	syn, err := w.e.parseFile(w.ctx, job.file)
	if err != nil {
		return err
	}
	return w.walk(job.path, job.file, job.childDir, true, job.private, joinDocs(job.docs, syn.InnerDocs), syn)
}

// walk records one module and descends into its child modules. topLevel is
// false inside inline `mod foo { ... }` bodies. Private modules are not
// recorded; they are only searched for #[macro_export] macros.
func (w *walker) walk(path, file, childDir string, topLevel, private bool, docs string, syn *fileSyntax) error {
	mod := Module{Path: path, File: file, Docs: docs}

	for seq, item := range syn.Items {
		if item.Hidden && !w.e.opts.IncludeHidden {
			continue
		}
		decl := sidebar.Declaration{Kind: item.Kind, Name: item.Name, Docs: item.Docs}
		childPrivate := private || item.Private

		if item.MacroExport {
			if path == w.crate {
				mod.Decls = append(mod.Decls, decl)
			} else {
				w.mu.Lock()
				w.macros = append(w.macros, exportedMacro{module: path, seq: seq, decl: decl})
				w.mu.Unlock()
			}
			continue
		}
		if !childPrivate {
			mod.Decls = append(mod.Decls, decl)
		}

		if item.Kind != sidebar.KindModule {
			continue
		}
		childPath := path + "::" + item.Name

		if item.Body != nil {
			childDocs := joinDocs(item.Docs, item.Body.InnerDocs)
			if err := w.walk(childPath, file, filepath.Join(childDir, item.Name), false, childPrivate, childDocs, item.Body); err != nil {
				return err
			}
			continue
		}

		job, err := resolveModFile(file, childDir, topLevel, item)
		if err != nil {
			if childPrivate {
				// Often a cfg-gated platform module.
				slog.Debug("skipping private module", "module", childPath, "err", err)
				continue
			}
			return fmt.Errorf("%s: mod %s: %w", file, item.Name, err)
		}
		job.path = childPath
		job.docs = item.Docs
		job.private = childPrivate
		if err := w.schedule(job); err != nil {
			return err
		}
	}

	if private {
		return nil
	}
	w.mu.Lock()
	w.modules = append(w.modules, mod)
	w.mu.Unlock()
	return nil
}

// resolveModFile locates the file of `mod name;`.
func resolveModFile(file, childDir string, topLevel bool, item syntaxItem) (fileJob, error) {
	if item.PathAttr != "" {
		base := childDir
		if topLevel {
			base = filepath.Dir(file)
		}
		target := filepath.Join(base, filepath.FromSlash(item.PathAttr))
		if _, err := os.Stat(target); err != nil {
			return fileJob{}, fmt.Errorf("%w: %s", ErrModuleNotFound, target)
		}
		// Files loaded through #[path] resolve their own children like mod.rs.
		return fileJob{file: target, childDir: filepath.Dir(target)}, nil
	}

	nested := filepath.Join(childDir, item.Name)
	for _, candidate := range []string{
		filepath.Join(childDir, item.Name+".rs"),
		filepath.Join(nested, "mod.rs"),
	} {
		if _, err := os.Stat(candidate); err == nil {
			return fileJob{file: candidate, childDir: nested}, nil
		}
	}
	return fileJob{}, fmt.Errorf("%w: %s.rs or %s", ErrModuleNotFound, nested, filepath.Join(nested, "mod.rs"))
}

// joinDocs concatenates the docs on `mod foo` with the module's own //! docs.
func joinDocs(outer, inner string) string {
	switch {
	case outer == "":
		return inner
	case inner == "":
		return outer
	}
	return outer + "\n" + inner
}

// assemble sorts modules by path, fills in submodule summaries from the
// docs inside their files and appends macros exported from submodules to
// the crate root.
func (w *walker) assemble() []Module {
	w.mu.Lock()
	defer w.mu.Unlock()

	sort.Slice(w.modules, func(i, j int) bool { return w.modules[i].Path < w.modules[j].Path })

	docs := make(map[string]string, len(w.modules))
	for _, m := range w.modules {
		docs[m.Path] = m.Docs
	}
	for i := range w.modules {
		for j, d := range w.modules[i].Decls {
			if d.Kind == sidebar.KindModule {
				w.modules[i].Decls[j].Docs = docs[w.modules[i].Path+"::"+d.Name]
			}
		}
	}
	sort.SliceStable(w.macros, func(i, j int) bool {
		if w.macros[i].module != w.macros[j].module {
			return w.macros[i].module < w.macros[j].module
		}
		return w.macros[i].seq < w.macros[j].seq
	})

	for i := range w.modules {
		if w.modules[i].Path != w.crate {
			continue
		}
		for _, m := range w.macros {
			w.modules[i].Decls = append(w.modules[i].Decls, m.decl)
		}
	}
	return w.modules
}

// parseFile reads and parses one file, going through the cache when set.
func (e *Extractor) parseFile(ctx context.Context, file string) (*fileSyntax, error) {
	source, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", file, err)
	}

	key := contentKey(source)
	if syn, ok, err := e.cache.get(key); err != nil {
		slog.Warn("source cache read failed", "file", file, "err", err)
	} else if ok {
		return syn, nil
	}

	syn, err := parseSource(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", file, err)
	}
	if err := e.cache.put(key, syn); err != nil {
		slog.Warn("source cache write failed", "file", file, "err", err)
	}
	return syn, nil
}

// IsSourceFile reports whether a change to path can affect extraction.
func IsSourceFile(path string) bool {
	base := filepath.Base(path)
	return base == "Cargo.toml" || strings.HasSuffix(base, ".rs")
}
