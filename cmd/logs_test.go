package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

func TestLastLines(t *testing.T) {
	t.Parallel()

	data := []byte("one\ntwo\nthree\n")
	tests := []struct {
		n    int
		want string
	}{
		{0, ""},
		{1, "three\n"},
		{2, "two\nthree\n"},
		{3, "one\ntwo\nthree\n"},
		{10, "one\ntwo\nthree\n"},
	}
	for _, tt := range tests {
		if got := string(lastLines(data, tt.n)); got != tt.want {
			t.Errorf("lastLines(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
	if got := string(lastLines([]byte("a\nb"), 1)); got != "b" {
		t.Errorf("without trailing newline: %q", got)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestFollowFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, []byte("old\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var out syncBuffer
	done := make(chan error, 1)
	go func() { done <- followFile(ctx, path, 4, &out) }()

	// Keep appending until the watcher is up and sees a write.
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	deadline := time.Now().Add(5 * time.Second)
	for out.String() == "" && time.Now().Before(deadline) {
		f.WriteString("new\n")
		time.Sleep(50 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("followFile: %v", err)
	}

	got := out.String()
	if got == "" || bytes.Contains([]byte(got), []byte("old")) {
		t.Errorf("followed output = %q", got)
	}
}
