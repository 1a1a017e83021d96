package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/store"
	"fmcsa-backend/lib/serviceutil"

	"github.com/google/go-cmp/cmp"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var historyReport *string
var historyDiff *bool

func init() {
	historyReport = historyCmd.Flags().String("report", record.ReportSafer, "The report type to print.")
	historyDiff = historyCmd.Flags().Bool("diff", false, "Print what changed between versions instead of whole records.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history <dot_number> [--report <type>] [--diff]",
	Short: "Prints every stored record of a report for a carrier.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		schema, ok := record.Lookup(*historyReport)
		if !ok {
			serviceutil.Fatal("unknown report", fmt.Errorf("%w: %s", store.ErrUnknownReport, *historyReport))
		}
		dotNumber, err := record.NormalizeSubjectKey(args[0])
		if err != nil {
			serviceutil.Fatal("invalid dot number", err)
		}

		e, err := openEnv(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to open environment", err)
		}
		defer e.Close()
		session, err := e.session(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to open shard", err)
		}
		defer session.Close()

		var records []record.Record
		if schema.Versioned {
			records, err = store.NewVersionStore(session, e.tel, e.storeOptions()).
				History(cmd.Context(), schema.Name, dotNumber)
		} else {
			records, err = store.NewAppendStore(session, e.tel, e.storeOptions()).
				List(cmd.Context(), schema.Name, dotNumber)
		}
		if err != nil {
			serviceutil.Fatal("failed to read records", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Version", "UUID", "Extracted", "Fields"})
		for i, rec := range records {
			version := ""
			if schema.Versioned {
				version = fmt.Sprint(rec.Version)
			}

			var fields string
			if *historyDiff && i > 0 {
				fields = cmp.Diff(records[i-1].Fields.Map(), rec.Fields.Map())
			} else {
				body, err := json.MarshalIndent(rec.Fields, "", "  ")
				if err != nil {
					serviceutil.Fatal("failed to render record", err)
				}
				fields = string(body)
			}

			t.AppendRow(table.Row{version, rec.UUID.String(), rec.ExtractedAt.Format(time.RFC3339), fields})
			t.AppendSeparator()
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
