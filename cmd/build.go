package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/config"
	"github.com/jcdickinson/rsidebar/internal/docs"
	"github.com/jcdickinson/rsidebar/internal/rustsrc"
	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

var (
	outDir        string
	sortEntries   bool
	includeHidden bool
	noCache       bool
	buildModule   string
)

func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&outDir, "out", "o", "doc", "output directory, laid out like rustdoc's")
	cmd.Flags().BoolVar(&sortEntries, "sort", false, "sort entries by name instead of declaration order (default from sidebar.sort_entries)")
	cmd.Flags().BoolVar(&includeHidden, "include-hidden", false, "keep #[doc(hidden)] items (default from sidebar.include_hidden)")
}

var buildCmd = &cobra.Command{
	Use:   "build <rustdoc.json[.zst]>",
	Short: "Write sidebar-items.js files from a local rustdoc JSON file",
	Example: `  cargo +nightly rustdoc -- -Z unstable-options --output-format json
  rsidebar build target/doc/my_crate.json -o target/doc`,
	Args: cobra.ExactArgs(1),
	Run:  runBuild,
}

var srcCmd = &cobra.Command{
	Use:   "src <crate dir>",
	Short: "Write sidebar-items.js files by parsing a crate's Rust sources",
	Long: `Parse a crate's sources with tree-sitter, following pub mod declarations from
the crate root, and write one sidebar-items.js per public module. Parsed files
are cached by content, so re-runs only parse what changed.`,
	Example: `  rsidebar src .
  rsidebar src ~/src/widget-kit -o /tmp/doc --sort`,
	Args: cobra.ExactArgs(1),
	Run:  runSrc,
}

func init() {
	addOutputFlags(buildCmd)
	addOutputFlags(srcCmd)
	buildCmd.Flags().StringVar(&buildModule, "module", "", "write only this module's sidebar (e.g. my_crate::io)")
	srcCmd.Flags().BoolVar(&noCache, "no-cache", false, "parse every file even if it is cached")
}

// sidebarSettings merges the config file with flags given on the command line.
func sidebarSettings(cmd *cobra.Command) (*config.Config, config.SidebarConfig) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	s := cfg.Sidebar
	if cmd.Flags().Changed("sort") {
		s.SortEntries = sortEntries
	}
	if cmd.Flags().Changed("include-hidden") {
		s.IncludeHidden = includeHidden
	}
	return cfg, s
}

// writeStats counts the sidebar files a write touched.
type writeStats struct {
	written, removed int
}

// writeIndices writes every module's sidebar-items.js below dir, then removes
// the sidebar files left behind by modules of the same crates that no longer
// exist.
func writeIndices(dir string, indices map[string]sidebar.Index) (writeStats, error) {
	var stats writeStats
	paths := make([]string, 0, len(indices))
	for p := range indices {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		file := sidebar.FilePath(dir, p)
		changed, err := sidebar.WriteFile(file, indices[p])
		if err != nil {
			return stats, fmt.Errorf("module %s: %w", p, err)
		}
		if changed {
			stats.written++
			slog.Debug("wrote sidebar", "module", p, "file", file, "entries", indices[p].Len())
		}
	}

	removed, err := pruneStale(dir, indices)
	stats.removed = removed
	return stats, err
}

// pruneStale removes sidebar files below the crate directories of indices
// whose module is not in indices.
func pruneStale(dir string, indices map[string]sidebar.Index) (int, error) {
	roots := make(map[string]bool)
	for p := range indices {
		root, _, _ := strings.Cut(p, "::")
		roots[root] = true
	}

	removed := 0
	for root := range roots {
		err := filepath.WalkDir(filepath.Join(dir, root), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) {
					return nil
				}
				return err
			}
			if d.IsDir() || d.Name() != sidebar.FileName {
				return nil
			}
			rel, err := filepath.Rel(dir, filepath.Dir(path))
			if err != nil {
				return err
			}
			module := strings.Join(strings.Split(filepath.ToSlash(rel), "/"), "::")
			if _, ok := indices[module]; ok {
				return nil
			}
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("removing stale sidebar: %w", err)
			}
			removed++
			slog.Debug("removed stale sidebar", "module", module, "file", path)
			return nil
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

// moduleIndex builds the sidebar index of the single module at path.
func moduleIndex(crate *docs.RustdocCrate, opts docs.BuildOptions, path string) (sidebar.Index, error) {
	m, ok := crate.FindModule(path, opts.IncludeHidden)
	if !ok {
		return nil, fmt.Errorf("module %s not found in %s@%s", path, crate.Name(), crate.Version())
	}
	var sidebarOpts []sidebar.Option
	if opts.SortEntries {
		sidebarOpts = append(sidebarOpts, sidebar.SortEntries())
	}
	return sidebar.Build(crate.Declarations(m.ID, opts.IncludeHidden), sidebarOpts...), nil
}

func runBuild(cmd *cobra.Command, args []string) {
	_, s := sidebarSettings(cmd)

	crate, err := docs.ReadRustdocFile(args[0])
	if err != nil {
		log.Fatal(err)
	}
	opts := docs.BuildOptions{IncludeHidden: s.IncludeHidden, SortEntries: s.SortEntries}

	if buildModule != "" {
		idx, err := moduleIndex(crate, opts, buildModule)
		if err != nil {
			log.Fatal(err)
		}
		file := sidebar.FilePath(outDir, buildModule)
		if _, err := sidebar.WriteFile(file, idx); err != nil {
			log.Fatalf("writing sidebar: %v", err)
		}
		fmt.Printf("%s: %d entries written to %s\n", buildModule, idx.Len(), file)
		return
	}

	indices := crate.BuildIndices(opts)
	stats, err := writeIndices(outDir, indices)
	if err != nil {
		log.Fatalf("writing sidebars: %v", err)
	}
	fmt.Printf("%s@%s: %d modules, %d written, %d removed in %s\n",
		crate.Name(), crate.Version(), len(indices), stats.written, stats.removed, outDir)
}

// newExtractor opens the source cache unless disabled. A cache that cannot
// be opened only costs speed.
func newExtractor(s config.SidebarConfig, useCache bool) *rustsrc.Extractor {
	var cache *rustsrc.Cache
	if useCache {
		c, err := rustsrc.OpenCache(config.SourceCacheDir())
		if err != nil {
			slog.Warn("source cache unavailable", "error", err)
		} else {
			cache = c
		}
	}
	return rustsrc.NewExtractor(cache, rustsrc.Options{IncludeHidden: s.IncludeHidden})
}

func indexOptions(s config.SidebarConfig) []sidebar.Option {
	if s.SortEntries {
		return []sidebar.Option{sidebar.SortEntries()}
	}
	return nil
}

// extractTo parses a crate directory and writes its sidebars.
func extractTo(ctx context.Context, ex *rustsrc.Extractor, s config.SidebarConfig, dir, out string) (*rustsrc.Crate, writeStats, error) {
	crate, err := ex.ExtractCrate(ctx, dir)
	if err != nil {
		return nil, writeStats{}, err
	}
	stats, err := writeIndices(out, crate.BuildIndices(indexOptions(s)...))
	if err != nil {
		return crate, stats, fmt.Errorf("writing sidebars: %w", err)
	}
	return crate, stats, nil
}

func runSrc(cmd *cobra.Command, args []string) {
	_, s := sidebarSettings(cmd)

	crate, stats, err := extractTo(context.Background(), newExtractor(s, !noCache), s, args[0], outDir)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%s@%s: %d modules, %d written, %d removed in %s\n",
		crate.Name, crate.Version, len(crate.Modules), stats.written, stats.removed, outDir)
}
