package commands

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var logsSource *string
var logsLimit *int

func init() {
	logsSource = logsCmd.Flags().String("source", "", "Only show runs for this source.")
	logsLimit = logsCmd.Flags().Int("limit", 20, "Max rows to show.")
	rootCmd.AddCommand(logsCmd)
}

var logsCmd = &cobra.Command{
	Use:   "logs [--source <source>] [--limit n]",
	Short: "Prints recent scrape runs from scraping_logs.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore(readConfig())

		query := store.Table("scraping_logs").
			Select("created_at", "source", "status", "products_found",
				"products_added", "products_updated", "duration_seconds", "message").
			Order("created_at", true).
			Limit(*logsLimit)
		if *logsSource != "" {
			query = query.Eq("source", *logsSource)
		}

		res, err := query.Execute(cmd.Context())
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"When", "Source", "Status", "Found", "Added", "Updated", "Duration", "Message"})
		for _, row := range res.Data {
			t.AppendRow(table.Row{
				row["created_at"],
				row["source"],
				row["status"],
				row["products_found"],
				row["products_added"],
				row["products_updated"],
				row["duration_seconds"],
				row["message"],
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
