package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/dftd-labeler/internal/observe"
	"github.com/psantana5/dftd-labeler/pkg/correction"
	"github.com/psantana5/dftd-labeler/pkg/dispersion"
	"github.com/psantana5/dftd-labeler/pkg/models"
	"github.com/psantana5/dftd-labeler/pkg/pipeline"
	"github.com/psantana5/dftd-labeler/pkg/progress"
	"github.com/psantana5/dftd-labeler/pkg/runtimeenv"
	"github.com/psantana5/dftd-labeler/pkg/shutdown"
	"github.com/psantana5/dftd-labeler/pkg/tracing"
)

var labelFormat string

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Label a dataset with dispersion corrections",
	Long: `Reads every structure of the input dataset, adds the D3 or D4 correction to
energy_<method>, forces_<method> and stress_<method>, and appends each result to
the output dataset. Progress is saved after every appended structure, so
rerunning the same command continues after the last completed structure.

Only one process may work on a given input/output pair at a time.`,
	Example: `  dftdlabel label -i train.extxyz -o train_d4.extxyz -m SCAN -d 4
  dftdlabel label -i md.extxyz -o md_d3.extxyz -d 3 --progress-backend sqlite`,
	Args: cobra.NoArgs,
	RunE: runLabel,
}

func init() {
	rootCmd.AddCommand(labelCmd)

	f := labelCmd.Flags()
	f.StringP("input", "i", "", "input extxyz dataset (required)")
	f.StringP("output", "o", "", "output extxyz dataset, appended to (required)")
	f.StringP("method", "m", models.DefaultMethod, "DFT method whose energy/forces/stress fields are corrected")
	f.StringP("dispersion", "d", "", "dispersion scheme: 3 or 4 (required)")
	f.String("d3-binary", dispersion.DefaultD3Binary, "s-dftd3 executable")
	f.String("d4-binary", dispersion.DefaultD4Binary, "dftd4 executable")
	f.String("workdir", "", "parent directory for provider scratch files (default: system temp)")
	f.Duration("timeout", 0, "per-structure provider timeout, 0 for none")
	f.String("metrics-addr", "", "serve /metrics, /health and /progress on this address")
	f.String("metrics-textfile", "", "write metrics to this file when the run ends")
	f.Bool("tracing", false, "export OpenTelemetry spans")
	f.String("tracing-endpoint", "localhost:4318", "OTLP/HTTP collector address")
	f.StringVar(&labelFormat, "format", "table", "summary format: table, json or yaml")
}

func runLabel(cmd *cobra.Command, args []string) error {
	job, err := cfg.Job()
	if err != nil {
		return err
	}

	sm := shutdown.New(10*time.Second, logger)
	defer sm.Shutdown()
	sm.Register("log file", func(context.Context) error { return logger.Sync() })

	store, err := progress.NewStore(cfg.ProgressStore())
	if err != nil {
		return err
	}
	sm.Register("progress store", shutdown.CloseResource(store))

	tp, err := tracing.Init(cfg.TracingConfig(Version), logger)
	if err != nil {
		return err
	}
	sm.Register("tracing", tp.Shutdown)

	provider, err := dispersion.New(job.Scheme, cfg.ProviderOptions(runtimeenv.Env(threadSettings), logger))
	if err != nil {
		return err
	}

	metrics := pipeline.NewMetrics()
	driver := pipeline.New(pipeline.Options{
		Store:     store,
		Corrector: correction.NewEngine(provider, job.Method),
		Logger:    logger,
		Tracer:    tp,
		Metrics:   metrics,
	})

	if cfg.Metrics.Addr != "" {
		srv, err := observe.Start(cfg.Metrics.Addr, observe.NewRouter(metrics.Registry(), driver.Status), logger)
		if err != nil {
			return err
		}
		sm.Register("observation server", shutdown.StopHTTPServer(srv))
	}
	if path := cfg.Metrics.Textfile; path != "" {
		sm.Register("metrics textfile", func(context.Context) error {
			return observe.WriteTextfile(path, metrics.Registry())
		})
	}

	ctx, stop := sm.Context(cmd.Context())
	defer stop()

	res, runErr := driver.Run(ctx, job)
	if err := printResult(cmd.OutOrStdout(), res, labelFormat); err != nil {
		logger.Warn("Failed to print summary", map[string]interface{}{"error": err.Error()})
	}
	return runErr
}

func printResult(w io.Writer, res *models.JobResult, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return enc.Encode(res)
	default:
		table := tablewriter.NewWriter(w)
		table.Header("Property", "Value")
		table.Append([]string{"Job ID", res.JobID})
		table.Append([]string{"Run ID", res.RunID})
		table.Append([]string{"State", string(res.State)})
		table.Append([]string{"Structures", fmt.Sprintf("%d", res.Total)})
		table.Append([]string{"Started at index", fmt.Sprintf("%d", res.StartIndex)})
		table.Append([]string{"Processed", fmt.Sprintf("%d", res.Processed)})
		table.Append([]string{"Last completed index", fmt.Sprintf("%d", res.LastIndex)})
		if res.Error != "" {
			table.Append([]string{"Error", res.Error})
		}
		return table.Render()
	}
}
