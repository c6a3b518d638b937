package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/config"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon log file",
	Run:   runLogs,
}

var (
	logsFollow bool
	logsLines  int
)

func init() {
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow log output")
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
}

func runLogs(cmd *cobra.Command, args []string) {
	logPath := config.LogPath()
	data, err := os.ReadFile(logPath)
	if os.IsNotExist(err) {
		fmt.Println("no log file found (daemon may not have run yet)")
		return
	}
	if err != nil {
		log.Fatalf("reading log: %v", err)
	}
	os.Stdout.Write(lastLines(data, logsLines))

	if !logsFollow {
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := followFile(ctx, logPath, int64(len(data)), os.Stdout); err != nil {
		log.Fatalf("following log: %v", err)
	}
}

// lastLines returns the final n lines of data.
func lastLines(data []byte, n int) []byte {
	if n <= 0 {
		return nil
	}
	end := len(data)
	if end > 0 && data[end-1] == '\n' {
		end--
	}
	start := end
	for i := 0; i < n; i++ {
		idx := bytes.LastIndexByte(data[:start], '\n')
		if idx < 0 {
			return data
		}
		start = idx
	}
	return data[start+1:]
}

// followFile copies whatever is appended to path after offset to w until ctx
// is done. The directory is watched so a removed and recreated log is picked
// up from its start.
func followFile(ctx context.Context, path string, offset int64, w io.Writer) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	copyNew := func() error {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		info, err := f.Stat()
		if err != nil {
			return err
		}
		if info.Size() < offset {
			offset = 0
		}
		n, err := io.Copy(w, io.NewSectionReader(f, offset, info.Size()-offset))
		offset += n
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				offset = 0
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				if err := copyNew(); err != nil && !os.IsNotExist(err) {
					return err
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
