package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/docs"
	"github.com/jcdickinson/rsidebar/internal/rpc"
)

var getCmd = &cobra.Command{
	Use:   "get <crate[/version[/module[/item]]] | docs.rs URL>",
	Short: "Print the sidebar of a module, or the sections of an item page",
	Example: `  rsidebar get serde
  rsidebar get serde/latest/serde::de
  rsidebar get sidebar://tokio/1.45.0/tokio::sync
  rsidebar get --format js https://docs.rs/serde/latest/serde/de/index.html
  rsidebar get https://docs.rs/serde/latest/serde/trait.Serialize.html`,
	Args: cobra.ExactArgs(1),
	Run:  runGet,
}

var getFormat string

func init() {
	getCmd.Flags().StringVar(&getFormat, "format", rpc.FormatMarkdown, "output format: markdown, json or js")
}

// parseTarget accepts crate[/version[/module[/item]]], with an optional
// sidebar:// scheme, or a docs.rs page URL.
func parseTarget(arg string) (rpc.GetSidebarRequest, error) {
	if strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "http://") {
		loc, ok := docs.ParseDocsRsURL(arg)
		if !ok {
			return rpc.GetSidebarRequest{}, fmt.Errorf("not a docs.rs module or item URL: %s", arg)
		}
		return rpc.GetSidebarRequest{Crate: loc.Crate, Version: loc.Version, Module: loc.Module, Item: loc.Name}, nil
	}

	parts := strings.SplitN(strings.TrimPrefix(arg, "sidebar://"), "/", 4)
	if parts[0] == "" {
		return rpc.GetSidebarRequest{}, fmt.Errorf("missing crate name in %q", arg)
	}
	req := rpc.GetSidebarRequest{Crate: parts[0]}
	if len(parts) > 1 {
		req.Version = parts[1]
	}
	if len(parts) > 2 {
		req.Module = parts[2]
	}
	if len(parts) > 3 {
		req.Item = parts[3]
	}
	return req, nil
}

func runGet(cmd *cobra.Command, args []string) {
	req, err := parseTarget(args[0])
	if err != nil {
		log.Fatal(err)
	}
	req.Format = getFormat

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.GetSidebar(context.Background(), req)
	if err != nil {
		log.Fatalf("get sidebar failed: %v", err)
	}

	if resp.Content != "" {
		fmt.Print(resp.Content)
		if req.Format == rpc.FormatJS {
			fmt.Println()
		}
		return
	}
	var v any = resp.Index
	if resp.Sections != nil {
		v = resp.Sections
	}
	out, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(out))
}
