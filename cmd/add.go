package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/config"
	"github.com/jcdickinson/rsidebar/internal/daemon"
	"github.com/jcdickinson/rsidebar/internal/rpc"
	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

var addCmd = &cobra.Command{
	Use:   "add [crate[@version] ...]",
	Short: "Index crate sidebars from docs.rs",
	Long:  `Fetch rustdoc JSON from docs.rs and build the sidebar index of every module. Version defaults to "latest".`,
	Example: `  rsidebar add serde
  rsidebar add serde@1.0.219 tokio
  rsidebar add serde serde_json tokio`,
	Args: cobra.MinimumNArgs(1),
	Run:  runAdd,
}

func parseCrateSpecs(args []string) []rpc.CrateSpec {
	specs := make([]rpc.CrateSpec, 0, len(args))
	for _, arg := range args {
		name, version, _ := strings.Cut(arg, "@")
		specs = append(specs, rpc.CrateSpec{Name: name, Version: version})
	}
	return specs
}

func runAdd(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	results, err := client.AddCrates(context.Background(), parseCrateSpecs(args), func(msg string) {
		fmt.Printf("  %s\n", msg)
	})
	if err != nil {
		log.Fatalf("failed to add crates: %v", err)
	}

	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("  %s@%s: error: %s\n", r.Name, r.Version, r.Error)
		} else {
			fmt.Printf("  %s@%s: %d modules (%d changed)\n", r.Name, r.Version, r.Modules, r.Changed)
		}
	}
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search items of indexed crates by name or summary",
	Example: `  rsidebar search Deserializer
  rsidebar search --crate serde --kind trait ser
  rsidebar search --limit 5 spawn`,
	Args: cobra.ExactArgs(1),
	Run:  runSearch,
}

var (
	searchCrates []string
	searchKinds  []string
	searchLimit  int
)

func init() {
	searchCmd.Flags().StringSliceVar(&searchCrates, "crate", nil, "filter to specific crates (repeatable)")
	searchCmd.Flags().StringSliceVar(&searchKinds, "kind", nil, "filter to item kinds such as struct, fn, trait (repeatable)")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "max results")
}

func runSearch(cmd *cobra.Command, args []string) {
	req := rpc.SearchItemsRequest{Query: args[0], Crates: searchCrates, Limit: searchLimit}
	for _, k := range searchKinds {
		kind := sidebar.Kind(k)
		if !kind.Valid() {
			log.Fatalf("unknown item kind %q", k)
		}
		req.Kinds = append(req.Kinds, kind)
	}

	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.SearchItems(context.Background(), req)
	if err != nil {
		log.Fatalf("search failed: %v", err)
	}

	if len(resp.Results) == 0 {
		fmt.Println("no results")
		return
	}

	for i, r := range resp.Results {
		fmt.Printf("%d. %s::%s (%s) %s@%s\n", i+1, r.Module, r.Name, r.Kind, r.Crate, r.Version)
		if r.Summary != "" {
			fmt.Printf("   %s\n", r.Summary)
		}
		fmt.Printf("   %s\n", r.URL)
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show indexed crates and daemon state",
	Run:   runStatus,
}

var (
	statusJSON    bool
	statusModules bool
)

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	statusCmd.Flags().BoolVar(&statusModules, "modules", false, "list the module paths of each crate")
}

func runStatus(cmd *cobra.Command, args []string) {
	client, err := connectDaemon()
	if err != nil {
		log.Fatalf("failed to connect to daemon: %v", err)
	}

	resp, err := client.Status(context.Background(), statusModules)
	if err != nil {
		log.Fatalf("status failed: %v", err)
	}

	if statusJSON {
		out, _ := json.MarshalIndent(resp, "", "  ")
		fmt.Println(string(out))
		return
	}

	if len(resp.Crates) == 0 {
		fmt.Println("no crates indexed")
		return
	}

	for _, c := range resp.Crates {
		state := "processing"
		if c.Processed {
			state = "ready"
		}
		fmt.Printf("  %s@%s [%s] %d modules\n", c.Name, c.Version, state, c.Modules)
		for _, path := range c.ModulePaths {
			fmt.Printf("    %s\n", path)
		}
	}
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the background daemon",
	Run:   runStop,
}

func runStop(cmd *cobra.Command, args []string) {
	client := daemon.NewClient(config.SocketPath())
	if !client.IsAvailable() {
		fmt.Println("daemon is not running")
		return
	}

	// The daemon may exit before the response is fully read, so errors are ignored.
	client.Shutdown(context.Background())
	fmt.Println("daemon stopped")
}
