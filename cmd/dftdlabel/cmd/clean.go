package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psantana5/dftd-labeler/pkg/progress"
)

var (
	cleanInput  string
	cleanOutput string
)

var cleanCmd = &cobra.Command{
	Use:   "clean [job-id]",
	Short: "Remove a job's progress record",
	Long: `Deletes the progress record of one job so the next run starts from the first
structure. The output dataset is not touched; remove or rename it first or the
next run will append duplicate frames.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
	cleanCmd.Flags().StringVarP(&cleanInput, "input", "i", "", "input dataset of the job")
	cleanCmd.Flags().StringVarP(&cleanOutput, "output", "o", "", "output dataset of the job")
}

func runClean(cmd *cobra.Command, args []string) error {
	id, err := selectJob(args, cleanInput, cleanOutput)
	if err != nil {
		return err
	}
	if id == "" {
		return configErrorf("a job ID or --input and --output is required")
	}

	store, err := progress.NewStore(cfg.ProgressStore())
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), id); err != nil {
		return err
	}
	logger.Info("Progress record removed", map[string]interface{}{"job_id": id})
	fmt.Fprintf(cmd.OutOrStdout(), "Removed progress record for job %s\n", id)
	return nil
}
