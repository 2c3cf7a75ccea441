package commands

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"a11yhood-backend/lib/configutil"
	configsqlite "a11yhood-backend/lib/configutil/sqlite"
	"a11yhood-backend/lib/rowstore"
	"a11yhood-backend/lib/rowstore/sqlitestore"
	"a11yhood-backend/lib/rowstore/supabase"
	"a11yhood-backend/lib/serviceutil"
	"a11yhood-backend/services/scraperd"
	"a11yhood-backend/services/scraperd/db"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "a11yhood-cli",
	Short: "a11yhood-cli runs and inspects accessibility product scrapes.",
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type Config struct {
	Supabase supabase.Options      `json:"supabase"`
	Sqlite   configsqlite.Struct   `json:"sqlite"`
	Notify   scraperd.NotifyConfig `json:"notify"`
}

// readConfig tolerates a missing config file, the sqlite default keeps the
// CLI usable with zero setup.
func readConfig() Config {
	cfg, err := configutil.ReadConfig[Config]("scraperd.json5")
	if errors.Is(err, fs.ErrNotExist) {
		return Config{Sqlite: configsqlite.Struct{File: "a11yhood.db"}}
	}
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	if cfg.Supabase.Url == "" && cfg.Sqlite.File == "" && cfg.Sqlite.Url == "" {
		cfg.Sqlite.File = "a11yhood.db"
	}
	return cfg
}

func openStore(cfg Config) rowstore.Store {
	if cfg.Supabase.Url != "" {
		return supabase.New(cfg.Supabase)
	}
	database, err := cfg.Sqlite.OpenDB(db.Schema)
	if err != nil {
		serviceutil.Fatal("failed to open db", err)
	}
	return sqlitestore.New(database)
}

func newService() *scraperd.Service {
	cfg := readConfig()
	svc, err := scraperd.NewService(openStore(cfg), scraperd.DefaultRegistry(), scraperd.Options{
		Notify: cfg.Notify,
	})
	if err != nil {
		serviceutil.Fatal("failed to initialize scraper service", err)
	}
	return svc
}
