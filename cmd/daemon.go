package cmd

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/config"
	"github.com/jcdickinson/rsidebar/internal/daemon"
	"github.com/jcdickinson/rsidebar/internal/db"
)

var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Short:  "Run the background daemon (usually spawned automatically)",
	Hidden: true,
	Run:    runDaemon,
}

var (
	daemonSocket     string
	daemonExpiration time.Duration
)

func init() {
	daemonCmd.Flags().StringVar(&daemonSocket, "socket", "", "socket path (default from XDG_RUNTIME_DIR)")
	daemonCmd.Flags().DurationVar(&daemonExpiration, "expiration", 0, "exit after this long without requests (default from daemon.expiration_seconds)")
}

// openDaemonLog points slog, and through it the log package the server
// writes to, at the daemon log file.
func openDaemonLog() (*os.File, error) {
	logPath := config.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(f, nil)))
	return f, nil
}

func runDaemon(cmd *cobra.Command, args []string) {
	logFile, err := openDaemonLog()
	if err != nil {
		slog.Error("failed to open log file", "error", err)
		os.Exit(1)
	}
	defer logFile.Close()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cmd.Flags().Changed("expiration") {
		cfg.Daemon.ExpirationSeconds = int(daemonExpiration.Seconds())
	}
	socketPath := daemonSocket
	if socketPath == "" {
		socketPath = config.SocketPath()
	}

	database, err := db.New(config.DBPath())
	if err != nil {
		slog.Error("failed to open database", "path", config.DBPath(), "error", err)
		os.Exit(1)
	}

	slog.Info("daemon starting", "pid", os.Getpid(), "socket", socketPath, "docs_rs", cfg.DocsRs.BaseURL)
	srv := daemon.NewServer(cfg, database, socketPath)
	if err := srv.Start(context.Background()); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}
