package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/roach88/shapeql/internal/config"
)

// RootOptions holds global flags and the configuration resolved from
// flags, environment and config file before any subcommand runs.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	Config *config.Config
	Logger *zap.Logger
}

// NewRootCommand creates the root command for the shapeql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{Logger: zap.NewNop()}

	cmd := &cobra.Command{
		Use:   "shapeql",
		Short: "shapeql - GraphQL to SPARQL over shapes",
		Long: `Compile GraphQL operations into SPARQL queries using a shape registry
that maps GraphQL types and fields to RDF classes and predicate paths.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = opts.Logger.Sync()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", config.FormatText, "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (YAML)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// resolve merges flags, SHAPEQL_* environment and the config file, and
// builds the logger.
func (o *RootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(config.New(), o.ConfigFile, cmd.Flags())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	o.Config = cfg
	o.Format = cfg.Format
	o.Verbose = cfg.Verbose

	logger, err := config.NewLogger(o.Verbose)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to initialize logger", err)
	}
	o.Logger = logger
	return nil
}

// addInputFlags registers the schema, shapes and compiler flags shared by
// the commands that load a schema.
func addInputFlags(fs *pflag.FlagSet) {
	fs.StringSlice("schema", nil, "GraphQL SDL files or directories")
	fs.String("shapes", "", "CUE shape file or directory")
	fs.String("language", "", "language tag for language-tagged literal filters")
	fs.String("root-variable", "", "name of the root subject variable")
}
