package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/rustsrc"
	"github.com/jcdickinson/rsidebar/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <crate dir>",
	Short: "Rebuild a crate's sidebars whenever its sources change",
	Long: `Run "src" once, then keep watching the crate directory and rebuild after each
burst of changes to .rs files or Cargo.toml. target/, dot directories and the
watch.ignore patterns are not watched.`,
	Example: `  rsidebar watch . -o target/doc`,
	Args:    cobra.ExactArgs(1),
	Run:     runWatch,
}

func init() {
	addOutputFlags(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) {
	cfg, s := sidebarSettings(cmd)
	dir := args[0]
	ex := newExtractor(s, true)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Bursts are debounced, but a slow rebuild can still overlap the next one.
	var mu sync.Mutex
	rebuild := func(ctx context.Context, changed []string) {
		mu.Lock()
		defer mu.Unlock()
		crate, stats, err := extractTo(ctx, ex, s, dir, outDir)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				slog.Error("rebuild failed", "dir", dir, "error", err)
			}
			return
		}
		slog.Info("rebuilt sidebars", "crate", crate.Name, "changed_files", len(changed), "modules", len(crate.Modules), "written", stats.written, "removed", stats.removed)
	}

	rebuild(ctx, nil)

	w, err := watch.New(dir, watch.Options{
		Debounce: cfg.Watch.Debounce,
		Ignore:   cfg.Watch.Ignore,
		Match:    rustsrc.IsSourceFile,
	}, rebuild)
	if err != nil {
		log.Fatalf("watching %s: %v", dir, err)
	}
	defer w.Close()

	fmt.Printf("watching %s, writing to %s\n", dir, outDir)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("watch failed: %v", err)
	}
}
