package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/rkadam/opsbook/internal/cli"
	"github.com/rkadam/opsbook/internal/util"
)

func main() {
	// Setup signal handling for graceful shutdown
	ctx := util.SetupSignalHandler()

	// Execute the CLI
	err := cli.Execute(ctx)
	code := util.ExitCode(err)

	// Host-level outcomes (exit 2 and 3) were already reported in the
	// recap table, so only fatal errors get printed here
	if err != nil && code == util.ExitFatal {
		fmt.Fprintf(os.Stderr, "%s %s\n", color.RedString("ERROR:"), util.FriendlyError(err))
	}

	os.Exit(code)
}
