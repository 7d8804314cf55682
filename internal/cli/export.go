package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sachajw/dops-nimbus-note-exporter/internal/control"
	"github.com/sachajw/dops-nimbus-note-exporter/internal/infra/storage"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Run a full export pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}
		return runPass(control.New(cfg, log))
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Retry only the items that failed in the previous run",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		desc, err := storage.LoadDescriptor(cfg.Output.ResumeFile)
		if err != nil {
			if errors.Is(err, storage.ErrNoDescriptor) {
				return fmt.Errorf("no previous run to resume (%s missing)", cfg.Output.ResumeFile)
			}
			return err
		}
		if len(desc.FailedIDs) == 0 {
			log.Info("previous run left no failures to retry")
			return nil
		}

		r := control.New(cfg, log)
		r.Allowlist = desc.FailedIDs
		return runPass(r)
	},
}

func runPass(r *control.Runner) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return r.Run(ctx)
}
