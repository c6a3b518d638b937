package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/jcdickinson/rsidebar/internal/config"
	"github.com/jcdickinson/rsidebar/internal/rpc"
)

// Client talks to the daemon over its unix socket.
type Client struct {
	socketPath string
	httpClient *http.Client
}

func NewClient(socketPath string) *Client {
	return &Client{
		socketPath: socketPath,
		httpClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					var d net.Dialer
					return d.DialContext(ctx, "unix", socketPath)
				},
			},
			Timeout: 5 * time.Minute, // add-crates on a large crate
		},
	}
}

// ConnectOrSpawn tries to connect to the daemon, spawning it if necessary.
func ConnectOrSpawn(socketPath string) (*Client, error) {
	client := NewClient(socketPath)
	if client.IsAvailable() {
		return client, nil
	}

	if err := Spawn(config.LogPath()); err != nil {
		return nil, fmt.Errorf("spawning daemon: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(100 * time.Millisecond)
		if client.IsAvailable() {
			return client, nil
		}
	}
	return nil, fmt.Errorf("daemon did not start within 5 seconds (see %s)", config.LogPath())
}

func (c *Client) IsAvailable() bool {
	conn, err := net.DialTimeout("unix", c.socketPath, 100*time.Millisecond)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// AddCrates indexes crates, streaming progress messages to onProgress.
func (c *Client) AddCrates(ctx context.Context, crates []rpc.CrateSpec, onProgress func(string)) ([]rpc.CrateResult, error) {
	resp, err := c.send(ctx, http.MethodPost, "/add-crates", rpc.AddCratesRequest{Crates: crates})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var results []rpc.CrateResult
	dec := json.NewDecoder(resp.Body)
	for dec.More() {
		var line rpc.ProgressLine
		if err := dec.Decode(&line); err != nil {
			return results, fmt.Errorf("decoding progress: %w", err)
		}
		switch {
		case line.Type == "progress" && onProgress != nil:
			onProgress(line.Message)
		case line.Type == "result" && line.Result != nil:
			results = append(results, *line.Result)
		}
	}
	return results, nil
}

func (c *Client) GetSidebar(ctx context.Context, req rpc.GetSidebarRequest) (*rpc.GetSidebarResponse, error) {
	var resp rpc.GetSidebarResponse
	if err := c.call(ctx, http.MethodPost, "/get-sidebar", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SearchItems(ctx context.Context, req rpc.SearchItemsRequest) (*rpc.SearchItemsResponse, error) {
	var resp rpc.SearchItemsResponse
	if err := c.call(ctx, http.MethodPost, "/search-items", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status lists the indexed crates; modules also lists each crate's module
// paths.
func (c *Client) Status(ctx context.Context, modules bool) (*rpc.StatusResponse, error) {
	path := "/status"
	if modules {
		path += "?modules=1"
	}
	var resp rpc.StatusResponse
	if err := c.call(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ClearCache drops the daemon's version cache; all also removes every
// indexed crate and cached file.
func (c *Client) ClearCache(ctx context.Context, all bool) error {
	return c.call(ctx, http.MethodPost, "/clear-cache", rpc.ClearCacheRequest{All: all}, nil)
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/shutdown", nil, nil)
}

// call sends a request and decodes the JSON reply into result, if non-nil.
func (c *Client) call(ctx context.Context, method, path string, body, result any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// send issues a request with an optional JSON body. Replies other than 200
// are turned into errors and their body is consumed.
func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, "http://unix"+path, r)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return nil, responseError(resp.StatusCode, data)
	}
	return resp, nil
}

// responseError turns a non-200 reply into an error, preferring the
// {"error": ...} message the daemon sends.
func responseError(status int, body []byte) error {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return fmt.Errorf("daemon returned %d: %s", status, e.Error)
	}
	return fmt.Errorf("daemon returned %d: %s", status, string(body))
}
