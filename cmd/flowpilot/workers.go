package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var workersJSON bool

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the registered workers",
	Long: `List the workers tasks can be routed to, with their tier, model and
capabilities. The built-in catalog is extended by the file named in
workers_file, if any.`,
	Args: cobra.NoArgs,
	RunE: runWorkers,
}

func init() {
	workersCmd.Flags().BoolVar(&workersJSON, "json", false, "Print workers as JSON")
}

func runWorkers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	registry, err := buildRegistry(cfg)
	if err != nil {
		return fmt.Errorf("build worker registry: %w", err)
	}

	workers := registry.All()
	if workersJSON {
		// Instructions are long; list them only in JSON output.
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(workers)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tTIER\tMODEL\tCAPABILITIES")
	for _, wk := range workers {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", wk.ID, wk.Name, wk.Tier, wk.Model, strings.Join(wk.Capabilities, ","))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d workers\n", registry.Len())
	return nil
}
