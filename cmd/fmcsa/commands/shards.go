package commands

import (
	"os"

	"fmcsa-backend/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(shardsCmd)
}

var shardsCmd = &cobra.Command{
	Use:   "shards",
	Short: "Lists the registered shards.",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to open environment", err)
		}
		defer e.Close()

		shards, err := e.lookup.List(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list shards", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Shard", "Database", "Schema"})
		for _, desc := range shards {
			t.AppendRow(table.Row{desc.Name, desc.Database, desc.Schema})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
