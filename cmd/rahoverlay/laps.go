package main

import (
	"fmt"
	"text/tabwriter"

	"codeberg.org/mutker/rahoverlay/internal/config"
	"codeberg.org/mutker/rahoverlay/internal/logger"
	"codeberg.org/mutker/rahoverlay/internal/telemetry"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newLapsCmd(configPath *string) *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "laps",
		Short: "List laps stored in the lap archive",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.WithConfigFile(*configPath), config.WithFlags(cmd.Flags()))
			if err != nil {
				return err
			}
			logger.InitWithWriter(cmd.ErrOrStderr(), cfg.GetLogLevel(), logger.IsService())

			filter := telemetry.LapFilter{Limit: limit}
			if runID != "" {
				if filter.RunID, err = uuid.Parse(runID); err != nil {
					return fmt.Errorf("invalid run id %q: %w", runID, err)
				}
			}

			store, err := telemetry.NewRepository(telemetry.Config{
				Enabled: true,
				DBPath:  cfg.GetArchiveDBPath(),
			}, logger.WithComponent("telemetry"))
			if err != nil {
				return err
			}
			defer store.Close()

			laps, err := store.ListLaps(cmd.Context(), filter)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "RUN\tTIME\tSESSION\tTYPE\tLAP\tLAP TIME\tFRONT\tDELTA\tTARGET")
			for _, l := range laps {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%.3f\t%.3f\t%+.3f\t%.3f\n",
					l.RunID.String()[:8], l.Timestamp.Format("2006-01-02 15:04:05"),
					l.SessionNum, l.SessionType, l.Lap,
					l.LapTime, l.FrontLapTime, l.LapDelta, l.TargetPace)
			}
			return w.Flush()
		},
	}

	cmd.Flags().String("archive-db", "", "Path to the lap archive database")
	cmd.Flags().String("log-level", config.DefaultLogLevel, "Log level (debug, info, warning, error)")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of laps to list, 0 for all")
	cmd.Flags().StringVar(&runID, "run", "", "Only list laps of this run id")
	return cmd
}
