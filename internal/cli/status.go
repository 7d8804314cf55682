package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/infra/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the previous run's outcome",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := setup()
		if err != nil {
			return err
		}

		desc, err := storage.LoadDescriptor(cfg.Output.ResumeFile)
		if err != nil {
			return err
		}

		fmt.Printf("run %s at %s\n", desc.RunID, desc.Timestamp.Format("2006-01-02 15:04:05 MST"))
		fmt.Printf("  %d/%d succeeded\n", desc.Succeeded, desc.Total)
		if len(desc.FailedIDs) > 0 {
			fmt.Printf("  %d failed (retry with `nimbus-exporter resume`):\n", len(desc.FailedIDs))
			for _, id := range desc.FailedIDs {
				fmt.Printf("    %s\n", id)
			}
		}
		return nil
	},
}
