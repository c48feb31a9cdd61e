package main

import (
	"fmt"
	"os"

	"github.com/RealZimboGuy/onboardflow/internal/cli"
	"github.com/RealZimboGuy/onboardflow/internal/config"
	"github.com/RealZimboGuy/onboardflow/pkg/onboardflow"
)

func main() {
	if err := config.Load(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	//you may do your own logger setup here or use this default one with slog
	onboardflow.SetupLogger(config.GetSystemSettingString(config.LOG_LEVEL))

	os.Exit(cli.Execute(cli.NewApp()))
}
