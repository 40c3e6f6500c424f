// Package admincli implements the catalog administration commands: schema
// migration, password hashing and direct listing maintenance against the
// configured backends.
package admincli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/autolot/internal/logging"
	"github.com/dmitrijs2005/autolot/internal/server"
	"github.com/dmitrijs2005/autolot/internal/server/config"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/repomanager"
)

// Test seams.
var (
	readPassword = term.ReadPassword
	openStack    = server.NewStack
	openRepos    = repomanager.New
)

type cli struct {
	cfg *config.Config
}

// NewRootCmd builds the command tree around an already loaded cfg. The
// persistent flags mirror the server's short flags so both binaries accept
// the same invocation.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	c := &cli{cfg: cfg}

	root := &cobra.Command{
		Use:           "autolot-cli",
		Short:         "Catalog administration",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	// -c is consumed by config.LoadConfig; declared here so cobra accepts it.
	pf.StringP("config", "c", "", "config file (JSON or YAML)")
	pf.StringVarP(&cfg.DatabaseDSN, "dsn", "d", cfg.DatabaseDSN, "PostgreSQL DSN")
	pf.StringVarP(&cfg.CatalogBackend, "backend", "k", cfg.CatalogBackend, "catalog backend (postgres|badger)")
	pf.StringVarP(&cfg.AssetBackend, "assets", "x", cfg.AssetBackend, "asset backend (fs|s3)")
	pf.StringVarP(&cfg.UploadDir, "upload-dir", "f", cfg.UploadDir, "upload directory for the fs asset backend")
	pf.StringVarP(&cfg.S3Bucket, "bucket", "b", cfg.S3Bucket, "S3 bucket")
	pf.StringVarP(&cfg.S3BaseEndpoint, "endpoint", "e", cfg.S3BaseEndpoint, "S3 base endpoint")
	pf.StringVarP(&cfg.ImageEngine, "engine", "i", cfg.ImageEngine, "image engine (vips|native)")

	root.AddCommand(c.newHashPasswordCmd())
	root.AddCommand(c.newMigrateCmd())
	root.AddCommand(c.newListCmd())
	root.AddCommand(c.newAddCmd())
	root.AddCommand(c.newDeleteCmd())
	root.AddCommand(c.newVerifyCmd())

	return root
}

func (c *cli) logger(cmd *cobra.Command) logging.Logger {
	return logging.NewJSONLogger(cmd.ErrOrStderr(), c.cfg.LogLevel)
}

// withStack opens the full catalog stack for the duration of fn.
func (c *cli) withStack(cmd *cobra.Command, fn func(ctx context.Context, st *server.Stack) error) error {
	ctx := cmd.Context()
	st, err := openStack(ctx, c.cfg, c.logger(cmd))
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

// withRepos opens only the catalog backend.
func (c *cli) withRepos(cmd *cobra.Command, fn func(ctx context.Context, rm repomanager.RepositoryManager) error) error {
	ctx := cmd.Context()
	rm, err := openRepos(ctx, c.cfg, c.logger(cmd))
	if err != nil {
		return err
	}
	defer rm.Close()
	return fn(ctx, rm)
}
