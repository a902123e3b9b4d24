package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/psantana5/dftd-labeler/pkg/config"
	"github.com/psantana5/dftd-labeler/pkg/logging"
	"github.com/psantana5/dftd-labeler/pkg/models"
	"github.com/psantana5/dftd-labeler/pkg/pipeline"
	"github.com/psantana5/dftd-labeler/pkg/progress"
	"github.com/psantana5/dftd-labeler/pkg/runtimeenv"
)

// Version is set at build time with -ldflags "-X .../cmd.Version=..."
var Version = "dev"

var (
	cfgFile string

	v              *viper.Viper
	cfg            *config.Config
	logger         *logging.Logger
	threadSettings []runtimeenv.Setting
)

// flagKeys maps command line flags to configuration keys
var flagKeys = map[string]string{
	"input":            "input",
	"output":           "output",
	"method":           "method",
	"dispersion":       "dispersion",
	"progress-backend": "progress.backend",
	"progress-dir":     "progress.dir",
	"progress-dsn":     "progress.dsn",
	"d3-binary":        "provider.d3_binary",
	"d4-binary":        "provider.d4_binary",
	"workdir":          "provider.workdir",
	"timeout":          "provider.timeout",
	"log-level":        "log.level",
	"log-json":         "log.json",
	"log-dir":          "log.dir",
	"metrics-addr":     "metrics.addr",
	"metrics-textfile": "metrics.textfile",
	"tracing":          "tracing.enabled",
	"tracing-endpoint": "tracing.endpoint",
}

var rootCmd = &cobra.Command{
	Use:   "dftdlabel",
	Short: "Add DFT-D3/D4 dispersion corrections to extxyz datasets",
	Long: `dftdlabel appends dispersion-corrected energies, forces and stresses to the
structures of an extended XYZ dataset. Runs checkpoint after every structure
and resume where they stopped when rerun with the same input and output.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", models.ErrConfig, err)
	})

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.dftdlabel/config.yaml)")
	pf.String("progress-backend", "file", "progress store: file, sqlite or postgres")
	pf.String("progress-dir", ".", "directory holding progress files (file backend)")
	pf.String("progress-dsn", "", "sqlite path or postgres connection string")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.Bool("log-json", false, "write logs as JSON lines")
	pf.String("log-dir", "", "also write logs to <dir>/dftdlabel.log")
}

// setup pins the thread environment and loads configuration before any command runs
func setup(cmd *cobra.Command, args []string) error {
	threadSettings = runtimeenv.Apply()

	var err error
	v, err = config.New(cfgFile)
	if err != nil {
		return err
	}
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("%w: %v", models.ErrConfig, err)
			}
		}
	}

	cfg, err = config.Load(v)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := logging.ParseLevel(cfg.Log.Level)
	if cfg.Log.Dir != "" {
		logger, err = logging.NewFileLogger(cfg.Log.Dir, "dftdlabel", level, cfg.Log.JSON)
		if err != nil {
			return err
		}
	} else {
		logger = logging.NewLogger(level, cfg.Log.JSON)
		logger.SetOutput(cmd.ErrOrStderr())
	}
	return nil
}

// Exit codes returned by the dftdlabel binary
const (
	ExitFailure      = 1
	ExitConfig       = 2
	ExitInputRead    = 3
	ExitCorrupt      = 4
	ExitMissingField = 5
	ExitInterrupted  = 130
)

// ExitCode maps an error to the process exit status
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, pipeline.ErrInterrupted):
		return ExitInterrupted
	case errors.Is(err, models.ErrConfig), errors.Is(err, progress.ErrUnsupportedBackend):
		return ExitConfig
	case errors.Is(err, models.ErrInputRead):
		return ExitInputRead
	case errors.Is(err, progress.ErrCorrupt):
		return ExitCorrupt
	case errors.Is(err, models.ErrMissingField), errors.Is(err, models.ErrFieldShape):
		return ExitMissingField
	default:
		return ExitFailure
	}
}
