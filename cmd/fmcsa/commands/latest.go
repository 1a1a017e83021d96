package commands

import (
	"fmt"
	"os"
	"strings"

	"fmcsa-backend/internal/record"
	"fmcsa-backend/internal/store"
	"fmcsa-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var latestReport *string

func init() {
	latestReport = latestCmd.Flags().String("report", record.ReportSafer, "The versioned report type to print.")
	rootCmd.AddCommand(latestCmd)
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, ", ")
	}
	return fmt.Sprint(value)
}

var latestCmd = &cobra.Command{
	Use:   "latest <dot_number> [--report <type>]",
	Short: "Prints the latest stored version of a report for a carrier.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
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

		rec, err := store.NewVersionStore(session, e.tel, e.storeOptions()).
			LatestRecord(cmd.Context(), *latestReport, dotNumber)
		if err != nil {
			serviceutil.Fatal("failed to read latest record", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.SetTitle(fmt.Sprintf("%s %s v%d (%s)", rec.ReportType, rec.SubjectKey, rec.Version, rec.ExtractedAt.Format("2006-01-02 15:04")))
		t.AppendHeader(table.Row{"Field", "Value"})
		for _, name := range rec.Fields.Names() {
			value, _ := rec.Fields.Get(name)
			t.AppendRow(table.Row{name, formatValue(value)})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
