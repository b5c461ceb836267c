package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nfrund/vrpanel/internal/commands"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "List the commands the appliance pushes over its state socket",
	Long: `List every known state socket command with its bus topic, payload type and
an example frame.

Output formats:
  table - Human-readable table format (default)
  json  - Machine-readable JSON format`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := validateFormat(); err != nil {
			return err
		}
		list := commands.Default().List()

		if outputFormat == "json" {
			return printJSON(cmd.OutOrStdout(), struct {
				Commands []commands.Command `json:"commands"`
				Count    int                `json:"count"`
			}{list, len(list)})
		}

		w := newTable(cmd.OutOrStdout())
		defer w.Flush()
		fmt.Fprintln(w, "COMMAND\tTOPIC\tPAYLOAD\tDESCRIPTION")
		fmt.Fprintln(w, "-------\t-----\t-------\t-----------")
		for _, c := range list {
			payload := c.Payload
			if payload == "" {
				payload = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", c.Name, c.Topic(), payload, truncateString(c.Description, 60))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(commandsCmd)
	commandsCmd.Flags().StringVarP(&outputFormat, "format", "f", "table", "Output format (table, json)")
}
