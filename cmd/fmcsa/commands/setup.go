package commands

import (
	"errors"
	"log/slog"

	"fmcsa-backend/internal/shard"
	"fmcsa-backend/lib/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup [shard...]",
	Short: "Provisions the lookup and search databases and creates the given shards (the configured shard by default).",
	Run: func(cmd *cobra.Command, args []string) {
		e, err := openEnv(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to open environment", err)
		}
		defer e.Close()

		if len(args) == 0 {
			args = []string{e.cfg.Shard}
		}
		for _, name := range args {
			desc, err := e.registry.Create(cmd.Context(), name)
			if errors.Is(err, shard.ErrShardExists) {
				slog.Info("shard already exists", "shard", name)
				continue
			}
			if err != nil {
				serviceutil.Fatal("failed to create shard", err)
			}
			slog.Info("created shard", "shard", desc.Name, "database", desc.Database, "schema", desc.Schema)
		}
	},
}
