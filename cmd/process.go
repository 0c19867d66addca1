package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var processCmd = &cobra.Command{
	Use:   "process <job-id>",
	Short: "Process a queued submission synchronously",
	Long:  "Runs one submission through the full pipeline in the foreground. Useful for reprocessing submissions that were queued while the worker pool was full, and for local debugging.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := initStore(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "init store")
		}
		defer st.Close()

		pl, err := buildPipeline(st)
		if err != nil {
			return err
		}

		jobID := args[0]
		if err := pl.Process(cmd.Context(), jobID); err != nil {
			return eris.Wrapf(err, "process %s", jobID)
		}

		zap.L().Info("submission processed", zap.String("job_id", jobID))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(processCmd)
}
