package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/config"
	"github.com/jcdickinson/rsidebar/internal/daemon"
	"github.com/jcdickinson/rsidebar/internal/rustsrc"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache",
	Short: "Clear the daemon's version resolution cache",
	Long: `Clear the daemon's version resolution cache, so "latest" and crates docs.rs
did not have are looked up again. With --all, also delete every indexed crate,
the stored sidebars, cached rustdoc JSON and the parsed source cache.`,
	Run: runClearCache,
}

var clearAll bool

func init() {
	clearCacheCmd.Flags().BoolVar(&clearAll, "all", false, "remove all indexed crates and cached files")
}

func runClearCache(cmd *cobra.Command, args []string) {
	if clearAll {
		if err := dropSourceCache(); err != nil {
			slog.Error("failed to clear source cache", "error", err)
			os.Exit(1)
		}
	}

	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		if clearAll {
			// Nothing holds the database open, so the files can go directly.
			for _, p := range []string{config.DBPath(), config.DBPath() + ".wal", config.CASDir(), config.JSONCacheDir()} {
				if err := os.RemoveAll(p); err != nil {
					slog.Error("failed to remove cache", "path", p, "error", err)
					os.Exit(1)
				}
			}
			fmt.Println("cache removed")
			return
		}
		fmt.Println("daemon is not running")
		return
	}

	if err := client.ClearCache(context.Background(), clearAll); err != nil {
		slog.Error("failed to clear cache", "error", err)
		os.Exit(1)
	}
	if clearAll {
		fmt.Println("all caches cleared")
		return
	}
	fmt.Println("version cache cleared")
}

func dropSourceCache() error {
	cache, err := rustsrc.OpenCache(config.SourceCacheDir())
	if err != nil {
		return err
	}
	return cache.DropAll()
}
