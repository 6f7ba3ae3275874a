package main

import (
	"context"
	"fmt"
	"os"

	"github.com/LeoCommon/odometer/internal/app"
	"github.com/LeoCommon/odometer/pkg/log"
	"go.uber.org/zap"
)

func main() {
	a, err := app.Setup(false)
	if err != nil || a == nil {
		fmt.Printf("Initialization failed, error: %s\n", err)
		os.Exit(1)
	}

	// Signals are handled by the app loop, ctx only ends on a fatal error
	ctx, cancel := context.WithCancel(context.Background())

	exitCode := 0
	if err = a.Run(ctx); err != nil {
		// Let systemd restart us, the counters are saved by Shutdown
		log.Error("odometer stopped", zap.Error(err))
		exitCode = 1
	}
	cancel()

	a.Shutdown()

	log.Info("odometer stopped, counters saved")
	os.Exit(exitCode)
}
