package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/psantana5/dftd-labeler/pkg/jobid"
	"github.com/psantana5/dftd-labeler/pkg/progress"
)

var (
	statusInput  string
	statusOutput string
	statusFormat string
)

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show saved progress records",
	Long: `Lists the progress records held by the configured store. Pass a job ID, or
--input and --output, to show a single job.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusInput, "input", "i", "", "input dataset of the job")
	statusCmd.Flags().StringVarP(&statusOutput, "output", "o", "", "output dataset of the job")
	statusCmd.Flags().StringVar(&statusFormat, "format", "table", "output format: table, json or yaml")
}

// selectJob resolves a job ID from an argument or an input/output pair.
// An empty result means every job.
func selectJob(args []string, input, output string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	if input == "" && output == "" {
		return "", nil
	}
	if input == "" || output == "" {
		return "", configErrorf("--input and --output must be given together")
	}
	return jobid.Identity(input, output), nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	id, err := selectJob(args, statusInput, statusOutput)
	if err != nil {
		return err
	}

	store, err := progress.NewStore(cfg.ProgressStore())
	if err != nil {
		return err
	}
	defer store.Close()

	var records []progress.Record
	if id != "" {
		rec, err := store.Load(cmd.Context(), id)
		if err != nil {
			return err
		}
		if rec == nil {
			fmt.Fprintf(cmd.OutOrStdout(), "No progress recorded for job %s\n", id)
			return nil
		}
		records = append(records, *rec)
	} else {
		records, err = store.List(cmd.Context())
		if err != nil {
			return err
		}
	}
	return printRecords(cmd.OutOrStdout(), records, statusFormat)
}

func printRecords(w io.Writer, records []progress.Record, format string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(w, "No progress records")
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("Job ID", "Next Index", "Input", "Output", "Updated")
	for _, r := range records {
		updated := ""
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.Local().Format(time.DateTime)
		}
		table.Append([]string{
			r.JobID,
			strconv.Itoa(progress.NextIndex(&r)),
			r.InputPath,
			r.OutputPath,
			updated,
		})
	}
	if err := table.Render(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nTotal jobs: %d\n", len(records))
	return nil
}
