package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"fmcsa-backend/cmd/fmcsa/commands"
	"fmcsa-backend/lib/serviceutil"
	"fmcsa-backend/lib/telemetry"
)

func main() {
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "fmcsa")
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to setup telemetry", "err", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	commands.ExecuteContext(ctx)
}
