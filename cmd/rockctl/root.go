package main

import (
	"fmt"
	"io"

	"github.com/samber/do/v2"
	"github.com/spf13/cobra"

	"github.com/clairecatohanson/rock-of-ages-api/internal/config"
	"github.com/clairecatohanson/rock-of-ages-api/internal/di"
	"github.com/clairecatohanson/rock-of-ages-api/internal/logger"
)

// globalOptions are the persistent flags every command shares. Empty values
// fall through to the environment, the .env file and the config file.
type globalOptions struct {
	dataPath   string
	dbDriver   string
	dbDSN      string
	configFile string
	envFile    string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "rockctl",
		Short: "Administer a Rock of Ages data directory",
		Long: `rockctl works directly on the store the API server is configured with.

It reads the same configuration sources as the server: flags, environment
variables, the .env file and an optional YAML config file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.dataPath, "data-path", "", "Base path for on-disk data")
	flags.StringVar(&opts.dbDriver, "db-driver", "", "Database driver (sqlite, badger, mysql)")
	flags.StringVar(&opts.dbDSN, "db-dsn", "", "Database DSN (mysql only)")
	flags.StringVar(&opts.configFile, "config", "", "Path to YAML config file")
	flags.StringVar(&opts.envFile, "env-file", ".env", "Path to .env file")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log at info level to stderr")

	root.AddCommand(
		newSeedCmd(opts),
		newInspectCmd(opts),
		newTypesCmd(opts),
		newReindexCmd(opts),
		newVersionCmd(),
	)

	return root
}

// loadConfig builds the server configuration from the persistent flags.
func (o *globalOptions) loadConfig() (*config.Config, error) {
	args := []string{"--env-file", o.envFile}
	for _, f := range []struct{ name, value string }{
		{"data-path", o.dataPath},
		{"db-driver", o.dbDriver},
		{"db-dsn", o.dbDSN},
		{"config", o.configFile},
	} {
		if f.value != "" {
			args = append(args, "--"+f.name, f.value)
		}
	}

	cfg, err := config.LoadConfig(args)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// container opens a tool container for cmd. The caller must shut it down.
func (o *globalOptions) container(cmd *cobra.Command, forceSearch bool) (*do.RootScope, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	if forceSearch {
		cfg.Search.Enabled = true
	}

	level := "warn"
	if o.verbose {
		level = "info"
	}
	log := logger.New(logger.Config{
		Writer:      cmd.ErrOrStderr(),
		Format:      cfg.Logger.Format,
		Level:       logger.ParseLevel(level),
		Environment: cfg.App.Environment,
	})

	return di.NewToolContainer(cfg, log), nil
}

// shutdown closes everything the container opened and reports failures to w.
func shutdown(injector *do.RootScope, w io.Writer) {
	if report := injector.Shutdown(); report != nil && !report.Succeed {
		fmt.Fprintln(w, report.Error())
	}
}
