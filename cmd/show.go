package cmd

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jcdickinson/rsidebar/internal/sidebar"
)

var (
	headingColor = color.New(color.FgYellow, color.Bold)
	nameColor    = color.New(color.FgGreen, color.Bold)
	kindColor    = color.New(color.FgBlue)
)

var showCmd = &cobra.Command{
	Use:   "show <sidebar-items.js>",
	Short: "Pretty-print a sidebar-items.js file",
	Example: `  rsidebar show target/doc/serde/de/sidebar-items.js
  rsidebar show --kind struct --kind trait doc/widget_kit/sidebar-items.js`,
	Args: cobra.ExactArgs(1),
	Run:  runShow,
}

var showKinds []string

func init() {
	showCmd.Flags().StringSliceVar(&showKinds, "kind", nil, "only show these kinds (repeatable)")
}

func runShow(cmd *cobra.Command, args []string) {
	idx, err := sidebar.ReadFile(args[0])
	if err != nil {
		log.Fatal(err)
	}
	if err := idx.Validate(); err != nil {
		log.Printf("warning: %v", err)
	}
	printIndex(os.Stdout, idx, showKinds)
}

// printIndex lists entries grouped under rustdoc's section titles.
func printIndex(w io.Writer, idx sidebar.Index, only []string) {
	want := make(map[sidebar.Kind]bool, len(only))
	for _, k := range only {
		want[sidebar.Kind(k)] = true
	}

	for _, k := range idx.DisplayKinds() {
		if len(want) > 0 && !want[k] {
			continue
		}
		headingColor.Fprintf(w, "%s ", k.Title())
		kindColor.Fprintf(w, "(%s, %d)\n", k, len(idx[k]))
		for _, e := range idx[k] {
			fmt.Fprint(w, "  ")
			nameColor.Fprint(w, e.Name)
			if e.Summary != "" {
				fmt.Fprintf(w, "  %s", e.Summary)
			}
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w)
	}
}
