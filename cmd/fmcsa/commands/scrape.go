package commands

import (
	"fmt"
	"os"
	"strings"

	"fmcsa-backend/internal/orchestrator"
	"fmcsa-backend/lib/restyutil"
	"fmcsa-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var scrapeDump *string
var scrapeWorkers *int

func init() {
	scrapeDump = scrapeCmd.Flags().String("dump", "", "A directory to write every http exchange to, ex. <dev_state>/resty.")
	scrapeWorkers = scrapeCmd.Flags().Int("workers", 0, "How many carriers to scrape at once, overrides the config.")
	rootCmd.AddCommand(scrapeCmd)
}

func renderSummaries(summaries []orchestrator.Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"DOT", "Report", "Committed", "Skipped", "Duplicate", "Version", "Notes"})
	for _, summary := range summaries {
		if summary.Failure != nil {
			t.AppendRow(table.Row{summary.SubjectKey, "", "", "", "", "", summary.Failure.Error()})
			continue
		}
		for _, r := range summary.Reports {
			var notes []string
			for _, err := range r.Errors {
				notes = append(notes, err.Error())
			}
			version := ""
			if r.Version > 0 {
				version = fmt.Sprint(r.Version)
			}
			t.AppendRow(table.Row{
				summary.SubjectKey, r.Report,
				r.Committed, r.Skipped, r.Duplicate, version,
				strings.Join(notes, "; "),
			})
		}
		t.AppendSeparator()
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape <dot_number...> [--dump <dir>] [--workers <n>]",
	Short: "Scrapes every report of the given carriers and stores what changed.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to open environment", err)
		}
		defer e.Close()

		o, client, err := e.orchestrator()
		if err != nil {
			serviceutil.Fatal("failed to create scraper", err)
		}
		if *scrapeDump != "" {
			output, err := restyutil.NewFilesystemOutput(*scrapeDump)
			if err != nil {
				serviceutil.Fatal("failed to create dump directory", err)
			}
			client.Dump(output)
		}

		workers := e.cfg.Workers
		if *scrapeWorkers > 0 {
			workers = *scrapeWorkers
		}
		summaries := o.RunAll(cmd.Context(), args, workers)
		renderSummaries(summaries)

		for _, summary := range summaries {
			if summary.Err() != nil {
				os.Exit(1)
			}
		}
	},
}
