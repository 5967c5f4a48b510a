package main

import (
	"fmt"
	"os"

	"github.com/ORNL/curifactory-go/internal/cli"
)

func main() {
	app := cli.NewApp()
	registerExperiments(app)

	if err := cli.NewRootCommand(app).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
