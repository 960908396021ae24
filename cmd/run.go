package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/challan-cli/internal/batch"
	"github.com/xkilldash9x/challan-cli/internal/config"
	"github.com/xkilldash9x/challan-cli/internal/observability"
	"github.com/xkilldash9x/challan-cli/internal/reporting"
	"github.com/xkilldash9x/challan-cli/internal/service"
)

// newComponentFactory is swapped in tests to run without Chrome.
var newComponentFactory = service.NewComponentFactory

// runFlagKeys maps run flags onto their viper keys.
var runFlagKeys = map[string]string{
	"records":      "records.path",
	"headless":     "browser.headless",
	"download-dir": "browser.download_dir",
	"report":       "records.report_dir",
}

func newRunCmd() *cobra.Command {
	var summaryFormat string

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Creates a challan for every pending record in the workbook",
		Long: `Logs in, navigates to e-Pay Tax and creates a challan for each record whose
status is not already "Challan created". Each outcome is written back to the
workbook before the next record starts, so an interrupted run can simply be
started again.`,
		Args: cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			v, err := viperFrom(cmd.Context())
			if err != nil {
				return err
			}
			for flag, key := range runFlagKeys {
				if err := v.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
					return err
				}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := viperFrom(cmd.Context())
			if err != nil {
				return err
			}
			// Rebuilt now that flags are bound, so they take precedence.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to load or validate config: %w", err)
			}
			rep, err := reporting.NewWriter(summaryFormat, nopCloser{cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			defer rep.Close()
			return runBatch(cmd, cfg, rep)
		},
	}

	runCmd.Flags().StringP("records", "r", "", "Record workbook (.xlsx, .xlsm or .csv). (Overrides config/env)")
	runCmd.Flags().Bool("headless", false, "Run Chrome without a window. (Overrides config/env)")
	runCmd.Flags().String("download-dir", "", "Directory Chrome saves challan PDFs into. (Overrides config/env)")
	runCmd.Flags().String("report", "", "Directory the run report is written to. (Overrides config/env)")
	runCmd.Flags().StringVarP(&summaryFormat, "format", "f", "text", "Console summary format (text or json).")

	return runCmd
}

func runBatch(cmd *cobra.Command, cfg *config.Config, rep reporting.Reporter) error {
	ctx := cmd.Context()
	logger := observability.GetLogger()

	logger.Info("Starting challan run",
		zap.String("records", cfg.Records.Path),
		zap.Bool("headless", cfg.Browser.Headless),
		zap.String("download_dir", cfg.Browser.DownloadDir))

	components, err := newComponentFactory().Create(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize run components: %w", err)
	}
	defer components.Shutdown()

	sum, runErr := components.Runner.Run(ctx)

	// The report covers whatever was processed, including an interrupted run.
	if path, err := batch.WriteReport(cfg.Records.ReportDir, sum); err != nil {
		logger.Error("Could not write run report.", zap.Error(err))
	} else {
		logger.Info("Run report written.", zap.String("path", path))
	}
	if err := rep.Write(&sum); err != nil {
		logger.Warn("Could not print run summary.", zap.Error(err))
	}

	switch {
	case runErr == nil:
		logger.Info("Challan run completed.", zap.String("run_id", sum.RunID))
		return nil
	case batch.IsAbort(runErr):
		logger.Warn("Challan run aborted, progress so far is saved.", zap.String("run_id", sum.RunID))
		return fmt.Errorf("run aborted by user signal: %w", runErr)
	default:
		return runErr
	}
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
