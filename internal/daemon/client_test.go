package daemon

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jcdickinson/rsidebar/internal/rpc"
)

func startTestDaemon(t *testing.T) *Client {
	t.Helper()
	env := newTestEnv(t)
	env.server.socketPath = filepath.Join(t.TempDir(), "d.sock")

	errCh := make(chan error, 1)
	go func() { errCh <- env.server.Start(context.Background()) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		env.server.Stop(ctx)
		if err := <-errCh; err != nil {
			t.Errorf("Start: %v", err)
		}
	})

	client := NewClient(env.server.socketPath)
	deadline := time.Now().Add(5 * time.Second)
	for !client.IsAvailable() {
		if time.Now().After(deadline) {
			t.Fatal("daemon did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}
	return client
}

func TestClient_RoundTrip(t *testing.T) {
	t.Parallel()
	client := startTestDaemon(t)
	ctx := context.Background()

	var progress []string
	results, err := client.AddCrates(ctx, []rpc.CrateSpec{{Name: "ra_flycheck"}}, func(msg string) {
		progress = append(progress, msg)
	})
	if err != nil {
		t.Fatalf("AddCrates: %v", err)
	}
	if len(results) != 1 || results[0].Version != "0.1.0" || results[0].Modules != 1 {
		t.Errorf("results = %+v", results)
	}
	if len(progress) == 0 {
		t.Error("no progress reported")
	}

	resp, err := client.GetSidebar(ctx, rpc.GetSidebarRequest{Crate: "ra_flycheck", Format: rpc.FormatMarkdown})
	if err != nil {
		t.Fatalf("GetSidebar: %v", err)
	}
	if !strings.Contains(resp.Content, "## Enums") {
		t.Errorf("markdown:\n%s", resp.Content)
	}

	search, err := client.SearchItems(ctx, rpc.SearchItemsRequest{Query: "url_from"})
	if err != nil {
		t.Fatalf("SearchItems: %v", err)
	}
	if len(search.Results) != 1 || search.Results[0].Name != "url_from_path_with_drive_lowercasing" {
		t.Errorf("search = %+v", search.Results)
	}

	status, err := client.Status(ctx, false)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(status.Crates) != 1 {
		t.Errorf("status = %+v", status)
	}

	if err := client.ClearCache(ctx, false); err != nil {
		t.Errorf("ClearCache: %v", err)
	}
}

func TestClient_ErrorResponse(t *testing.T) {
	t.Parallel()
	client := startTestDaemon(t)

	_, err := client.GetSidebar(context.Background(), rpc.GetSidebarRequest{Crate: "ra_flycheck", Module: "missing"})
	if err == nil {
		t.Fatal("expected an error for a missing module")
	}
	if !strings.Contains(err.Error(), "module ra_flycheck::missing not found") {
		t.Errorf("error = %v", err)
	}
}

func TestClient_Unavailable(t *testing.T) {
	t.Parallel()

	client := NewClient(filepath.Join(t.TempDir(), "nobody.sock"))
	if client.IsAvailable() {
		t.Fatal("no daemon should be listening")
	}
	if _, err := client.Status(context.Background(), false); err == nil {
		t.Error("Status succeeded without a daemon")
	}
}
