package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(urlCmd)
}

var urlCmd = &cobra.Command{
	Use:   "url <url>",
	Short: "Routes a single url to its scraper, scrapes it and stores the result.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc := newService()

		p, err := svc.ScrapeOne(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if p == nil {
			fmt.Println("the url was recognized but nothing resolvable lives behind it")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendRow(table.Row{"Name", p.Name})
		t.AppendRow(table.Row{"Source", p.Source})
		t.AppendRow(table.Row{"Type", p.Type})
		t.AppendRow(table.Row{"Url", p.Url})
		t.AppendRow(table.Row{"Tags", strings.Join(p.Tags, ", ")})
		t.SetStyle(table.StyleRounded)
		t.Render()
		return nil
	},
}
