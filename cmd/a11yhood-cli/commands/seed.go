package commands

import (
	"fmt"
	"time"

	"a11yhood-backend/lib/rowstore"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// starter terms per platform, enough for a first useful crawl. operators
// refine these in scraper_search_terms afterwards.
var defaultSearchTerms = map[string][]string{
	"github":      {"accessibility", "screen reader", "assistive technology", "switch access"},
	"thingiverse": {"assistive", "accessibility", "prosthetic", "adaptive"},
	"ravelry":     {"one-handed", "adaptive"},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seeds scraper_search_terms with starter terms for each platform.",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := openStore(readConfig())
		ctx := cmd.Context()

		var seeded int
		for platform, terms := range defaultSearchTerms {
			existing, err := store.Table("scraper_search_terms").
				Select("search_term").
				Eq("platform", platform).
				Execute(ctx)
			if err != nil {
				return err
			}
			present := map[string]bool{}
			for _, row := range existing.Data {
				if term, ok := row["search_term"].(string); ok {
					present[term] = true
				}
			}

			var rows []rowstore.Row
			for _, term := range terms {
				if present[term] {
					continue
				}
				rows = append(rows, rowstore.Row{
					"id":          uuid.NewString(),
					"platform":    platform,
					"search_term": term,
					"created_at":  time.Now().UTC().Format(time.RFC3339),
				})
			}
			if len(rows) == 0 {
				continue
			}
			_, err = store.Table("scraper_search_terms").Insert(rows...).Execute(ctx)
			if err != nil {
				return err
			}
			seeded += len(rows)
		}

		fmt.Printf("seeded %d search terms\n", seeded)
		return nil
	},
}
