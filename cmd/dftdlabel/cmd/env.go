package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/dftd-labeler/pkg/runtimeenv"
)

var envFormat string

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show thread settings and host resources",
	Long: `Shows the thread-count variables passed to the dispersion providers and the
CPU and memory of this host. Unset variables default to a single thread so
several jobs can share a machine without oversubscribing it.`,
	Args: cobra.NoArgs,
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().StringVar(&envFormat, "format", "table", "output format: table, json or yaml")
}

type envReport struct {
	Threads []runtimeenv.Setting `json:"threads" yaml:"threads"`
	Host    runtimeenv.Host      `json:"host" yaml:"host"`
}

func runEnv(cmd *cobra.Command, args []string) error {
	rep := envReport{Threads: threadSettings, Host: runtimeenv.DetectHost()}
	out := cmd.OutOrStdout()

	switch envFormat {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		return enc.Encode(rep)
	}

	table := tablewriter.NewWriter(out)
	table.Header("Variable", "Value", "Source")
	for _, s := range rep.Threads {
		table.Append([]string{s.Name, s.Value, s.Source})
	}
	if err := table.Render(); err != nil {
		return err
	}

	h := rep.Host
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Host: %s/%s\n", h.OS, h.Architecture)
	if h.CPUModel != "" {
		fmt.Fprintf(out, "CPU:  %s (%d logical)\n", h.CPUModel, h.LogicalCPUs)
	} else {
		fmt.Fprintf(out, "CPU:  %d logical\n", h.LogicalCPUs)
	}
	fmt.Fprintf(out, "RAM:  %.1f GB total, %.1f GB available\n",
		float64(h.MemoryTotal)/(1<<30), float64(h.MemoryAvail)/(1<<30))
	return nil
}
