package commands

import (
	"log/slog"
	"time"

	"fmcsa-backend/lib/serviceutil"
	"fmcsa-backend/lib/telemetry"

	"github.com/spf13/cobra"
)

var watchInterval *time.Duration

func init() {
	watchInterval = watchCmd.Flags().Duration("interval", 0, "How often to scrape, overrides the config.")
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [--interval <duration>]",
	Short: "Scrapes the configured carriers periodically until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to open environment", err)
		}
		defer e.Close()

		o, _, err := e.orchestrator()
		if err != nil {
			serviceutil.Fatal("failed to create scraper", err)
		}

		interval := time.Duration(e.cfg.Watch.IntervalMinutes) * time.Minute
		if *watchInterval > 0 {
			interval = *watchInterval
		}
		if interval <= 0 {
			interval = time.Hour
		}
		if len(e.cfg.Watch.DotNumbers) == 0 {
			slog.Warn("no dot numbers configured under watch.dot_numbers")
		}

		ctx := cmd.Context()
		telemetry.InstrumentPerfStats(ctx, time.Second*15)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			start := time.Now()
			summaries := o.RunAll(ctx, e.cfg.Watch.DotNumbers, e.cfg.Workers)
			failed := 0
			for _, summary := range summaries {
				if err := summary.Err(); err != nil {
					failed++
					slog.Warn("scrape failed", "dot_number", summary.SubjectKey, "err", err)
				}
			}
			slog.Info(
				"scrape round finished",
				"carriers", len(summaries),
				"failed", failed,
				"seconds", time.Since(start).Seconds(),
			)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	},
}
