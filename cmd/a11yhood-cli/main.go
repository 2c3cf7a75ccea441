package main

import (
	"a11yhood-backend/cmd/a11yhood-cli/commands"
	"a11yhood-backend/lib/serviceutil"
	"a11yhood-backend/lib/telemetry"

	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()

	// long bulk runs respond to Ctrl+C by finishing the current target and
	// reporting what was done so far
	ctx := serviceutil.SignalContext()

	tel, err := telemetry.SetupFromEnv(ctx, "a11yhood-cli")
	if err != nil {
		serviceutil.Fatal("failed to setup telemetry", err)
	}
	defer tel.Shutdown(ctx)
	telemetry.InitSlog(true)
	telemetry.InstrumentPerfStats(ctx)

	commands.ExecuteContext(ctx)
}
