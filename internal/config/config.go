// Package config reads shapeql settings from a YAML file, SHAPEQL_*
// environment variables and command-line flags, and builds the logger.
//
// Precedence, highest first: flags set on the command line, environment,
// config file, defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/shapeql/internal/querysparql"
	"github.com/roach88/shapeql/internal/term"
)

// EnvPrefix prefixes every environment variable, e.g. SHAPEQL_SHAPES.
const EnvPrefix = "SHAPEQL"

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Compiler holds the query compiler settings. It is shared by the CLI
// config and by test scenarios.
type Compiler struct {
	// Language tags language-sensitive literal filters. Empty uses the
	// compiler default.
	Language string `mapstructure:"language" yaml:"language"`

	// RootVariable names the variable bound to queried subjects, without
	// the leading '?'.
	RootVariable string `mapstructure:"root_variable" yaml:"root_variable"`
}

// Options returns the compiler options for the configured values.
func (c Compiler) Options() []querysparql.Option {
	var opts []querysparql.Option
	if c.Language != "" {
		opts = append(opts, querysparql.WithLanguage(c.Language))
	}
	if c.RootVariable != "" {
		opts = append(opts, querysparql.WithRootVariable(c.RootVariable))
	}
	return opts
}

// Validate checks the compiler settings.
func (c Compiler) Validate() error {
	if c.Language != "" {
		if _, err := term.Language(c.Language); err != nil {
			return fmt.Errorf("language: %w", err)
		}
	}
	return nil
}

// Config is the resolved shapeql configuration.
type Config struct {
	Compiler `mapstructure:",squash"`

	// Schema lists GraphQL SDL files or directories.
	Schema []string `mapstructure:"schema"`

	// Shapes is a CUE shape file or directory.
	Shapes string `mapstructure:"shapes"`

	// DB is the compilation log; empty disables recording.
	DB string `mapstructure:"db"`

	Format  string `mapstructure:"format"`
	Verbose bool   `mapstructure:"verbose"`
}

// envKeys are the settings without a default.
var envKeys = []string{"schema", "shapes", "db", "language", "root_variable"}

// New returns a viper instance with defaults and environment binding set up.
func New() *viper.Viper {
	v := viper.New()
	v.SetDefault("format", FormatText)
	v.SetDefault("verbose", false)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
	return v
}

// Load binds flags, reads the config file when path is set and decodes the
// result. Flag names use dashes; config keys use underscores.
func Load(v *viper.Viper, path string, flags ...*pflag.FlagSet) (*Config, error) {
	for _, fs := range flags {
		if fs == nil {
			continue
		}
		var bindErr error
		fs.VisitAll(func(f *pflag.Flag) {
			if bindErr == nil {
				bindErr = v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f)
			}
		})
		if bindErr != nil {
			return nil, errors.Wrap(bindErr, "binding flags")
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "reading config %s", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "decoding config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON:
	default:
		return errors.Errorf("format must be %q or %q, got %q", FormatText, FormatJSON, c.Format)
	}
	return c.Compiler.Validate()
}

// RequireInputs reports a missing schema or shapes setting.
func (c *Config) RequireInputs() error {
	if len(c.Schema) == 0 {
		return errors.New("no schema: set --schema, SHAPEQL_SCHEMA or schema in the config file")
	}
	if c.Shapes == "" {
		return errors.New("no shapes: set --shapes, SHAPEQL_SHAPES or shapes in the config file")
	}
	return nil
}

// NewLogger builds the process logger. Verbose selects a development logger
// at debug level; otherwise a production logger at info level is built.
// Logs go to stderr so command output on stdout stays parseable.
func NewLogger(verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	if verbose {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	} else {
		cfg = zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build()
	if err != nil {
		return nil, errors.Wrap(err, "building logger")
	}
	return logger, nil
}
