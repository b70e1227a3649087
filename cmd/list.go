package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jandubois/usagebar/internal/probes"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the registered probes",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Bool("json", false, "Output as JSON")
}

func runList(cmd *cobra.Command, args []string) error {
	registry, err := probes.NewRegistry(true)
	if err != nil {
		return err
	}
	infos := registry.Infos()

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		return json.NewEncoder(os.Stdout).Encode(infos)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tVERSION")
	for _, info := range infos {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.ID, info.Name, info.Version)
	}
	return w.Flush()
}
