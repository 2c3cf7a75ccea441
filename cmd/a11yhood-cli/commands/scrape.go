package commands

import (
	"fmt"
	"os"
	"strings"

	"a11yhood-backend/lib/scrapers"
	"a11yhood-backend/services/scraperd"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var scrapeMode *string
var scrapeLimit *int
var scrapeUrls *[]string

func init() {
	scrapeMode = scrapeCmd.Flags().String("mode", "test", "Scrape mode: 'test' caps the attempted targets, 'full' does not.")
	scrapeLimit = scrapeCmd.Flags().Int("limit", 0, "Max targets to attempt in test mode, 0 uses the default.")
	scrapeUrls = scrapeCmd.Flags().StringArray("url", nil, "Explicit target url, repeatable. Overrides persisted search terms.")
	rootCmd.AddCommand(scrapeCmd)
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <source> [--mode test|full] [--limit n] [--url <url>]...",
	Short: "Runs a scrape for one source and prints the run report.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if *scrapeMode != "test" && *scrapeMode != "full" {
			return fmt.Errorf("invalid mode %q, expected 'test' or 'full'", *scrapeMode)
		}

		svc := newService()
		source := strings.ToLower(args[0])
		report, err := svc.Run(cmd.Context(), scraperd.RunRequest{
			Source:    source,
			TestMode:  *scrapeMode == "test",
			TestLimit: *scrapeLimit,
			Urls:      *scrapeUrls,
		})
		if err != nil {
			return fmt.Errorf("%w (known sources: %s)",
				err, strings.Join(svc.Sources(), ", "))
		}

		renderReport(report)
		if report.Status == scrapers.StatusError {
			os.Exit(1)
		}
		return nil
	},
}

func renderReport(report scrapers.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Status", "Found", "Added", "Updated", "Duration"})
	t.AppendRow(table.Row{
		report.Source,
		report.Status,
		report.ProductsFound,
		report.ProductsAdded,
		report.ProductsUpdated,
		fmt.Sprintf("%.1fs", report.DurationSeconds),
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if report.Message != "" {
		fmt.Println(report.Message)
	}
	if report.ErrorMessage != "" {
		fmt.Fprintln(os.Stderr, report.ErrorMessage)
	}

	if len(report.Targets) > 0 {
		t = table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Target", "Outcome", "Detail"})
		for _, target := range report.Targets {
			t.AppendRow(table.Row{target.Target, target.Outcome, target.Detail})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	}
}
